package asset

import (
	"fmt"
	"sync"
)

// Handle is an opaque reference to an image stored in Assets.
// Handles are generational: once an image is removed its handle never resolves
// again, even after the slot is reused. The zero Handle is never valid.
type Handle struct {
	Index      uint32
	Generation uint32
}

// String returns the handle formatted as "image#<index>g<generation>".
func (h Handle) String() string {
	return fmt.Sprintf("image#%dg%d", h.Index, h.Generation)
}

// EventKind describes what happened to an asset.
type EventKind int

const (
	// EventAdded is emitted when an image is added.
	EventAdded EventKind = iota
	// EventModified is emitted when an image is borrowed mutably.
	EventModified
	// EventRemoved is emitted when an image is removed.
	EventRemoved
)

// Event records a change to an asset since the last DrainEvents call.
type Event struct {
	Kind   EventKind
	Handle Handle
}

type slot struct {
	image      *Image
	generation uint32
}

// Images is the world resource holding the image store.
type Images struct {
	Assets
}

// assets implements the Assets interface as a slot arena with a free list.
type assets struct {
	mu     *sync.RWMutex
	slots  []slot
	free   []uint32
	count  int
	events []Event
}

// Assets stores images addressed by generational handles.
// Thread-safe for concurrent access.
type Assets interface {
	// Add stores img and returns its handle.
	//
	// Parameters:
	//   - img: the image to store
	//
	// Returns:
	//   - Handle: the new handle
	Add(img Image) Handle

	// Get returns the image behind h for reading.
	//
	// Parameters:
	//   - h: the image handle
	//
	// Returns:
	//   - *Image: the image, or nil
	//   - bool: true if h resolves
	Get(h Handle) (*Image, bool)

	// GetMut returns the image behind h and records it as modified so it is
	// re-uploaded on the next frame.
	//
	// Parameters:
	//   - h: the image handle
	//
	// Returns:
	//   - *Image: the image, or nil
	//   - bool: true if h resolves
	GetMut(h Handle) (*Image, bool)

	// Remove deletes the image behind h.
	//
	// Parameters:
	//   - h: the image handle
	//
	// Returns:
	//   - bool: true if an image was removed
	Remove(h Handle) bool

	// Len returns the number of stored images.
	Len() int

	// DrainEvents returns and clears the change events recorded since the last call.
	//
	// Returns:
	//   - []Event: events in the order they happened
	DrainEvents() []Event
}

var _ Assets = &assets{}

// NewAssets creates an empty image store.
//
// Returns:
//   - Assets: the new store
func NewAssets() Assets {
	return &assets{
		mu: &sync.RWMutex{},
	}
}

func (a *assets) Add(img Image) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored := img
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx].image = &stored
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{image: &stored, generation: 1})
	}
	a.count++

	h := Handle{Index: idx, Generation: a.slots[idx].generation}
	a.events = append(a.events, Event{Kind: EventAdded, Handle: h})
	return h
}

func (a *assets) Get(h Handle) (*Image, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lookup(h)
}

func (a *assets) GetMut(h Handle) (*Image, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	img, ok := a.lookup(h)
	if ok {
		a.events = append(a.events, Event{Kind: EventModified, Handle: h})
	}
	return img, ok
}

func (a *assets) Remove(h Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.lookup(h); !ok {
		return false
	}
	s := &a.slots[h.Index]
	s.image = nil
	s.generation++
	a.free = append(a.free, h.Index)
	a.count--
	a.events = append(a.events, Event{Kind: EventRemoved, Handle: h})
	return true
}

func (a *assets) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

func (a *assets) DrainEvents() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.events
	a.events = nil
	return out
}

// lookup resolves h. The caller must hold a.mu.
func (a *assets) lookup(h Handle) (*Image, bool) {
	if int(h.Index) >= len(a.slots) {
		return nil, false
	}
	s := a.slots[h.Index]
	if s.image == nil || s.generation != h.Generation {
		return nil, false
	}
	return s.image, true
}
