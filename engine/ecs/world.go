package ecs

import (
	"fmt"
	"reflect"
)

// Entity identifies an object living in a World.
// Version distinguishes successive occupants of the same ID slot, so an Entity
// captured before a Despawn never resolves to the slot's next occupant.
type Entity struct {
	ID      uint32
	Version uint32
}

// String returns the entity formatted as "<id>v<version>".
func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.ID, e.Version)
}

// entityMeta stores the bookkeeping for one ID slot.
// high is the largest version the slot has held. Spawn issues high+1.
type entityMeta struct {
	version uint32
	high    uint32
	alive   bool
}

// World is an entity-component store with typed resources.
//
// World is not safe for concurrent use. The engine touches a World from one
// goroutine at a time and sequences phases (update, extract, render) itself.
type World struct {
	entities []entityMeta
	free     []uint32
	alive    int

	stores    map[reflect.Type]componentStore
	resources map[reflect.Type]any

	// layoutVersion changes whenever the set of component stores or the
	// component membership of any entity changes. QueryState compares against
	// it to know when it must re-sync.
	layoutVersion uint64
}

// NewWorld creates an empty World.
//
// Returns:
//   - *World: the new world
func NewWorld() *World {
	return &World{
		stores:    make(map[reflect.Type]componentStore),
		resources: make(map[reflect.Type]any),
	}
}

// Spawn allocates a new entity, reusing a freed ID slot when one is available.
//
// Returns:
//   - Entity: the new entity
func (w *World) Spawn() Entity {
	if n := len(w.free); n > 0 {
		id := w.free[n-1]
		w.free = w.free[:n-1]
		meta := &w.entities[id]
		meta.high++
		meta.version = meta.high
		meta.alive = true
		w.alive++
		return Entity{ID: id, Version: meta.version}
	}

	id := uint32(len(w.entities))
	w.entities = append(w.entities, entityMeta{alive: true})
	w.alive++
	return Entity{ID: id}
}

// GetOrSpawn makes e alive in this world with exactly e's ID and Version.
// Extraction uses it to mirror main world entities into the render world.
// If the slot is held by a different version of the entity, that occupant is
// despawned first.
//
// The slot takes e.Version even when it is lower than a version the slot held
// before, so an Entity of this world kept across ClearEntities may resolve
// again once the same (ID, Version) is mirrored back in. Spawn never reuses a
// version the slot has held.
//
// Parameters:
//   - e: the entity to materialize
//
// Returns:
//   - Entity: e, now alive in this world
func (w *World) GetOrSpawn(e Entity) Entity {
	if w.Alive(e) {
		return e
	}

	if int(e.ID) < len(w.entities) && w.entities[e.ID].alive {
		w.Despawn(Entity{ID: e.ID, Version: w.entities[e.ID].version})
	}

	for int(e.ID) >= len(w.entities) {
		w.free = append(w.free, uint32(len(w.entities)))
		w.entities = append(w.entities, entityMeta{})
	}

	for i, id := range w.free {
		if id == e.ID {
			w.free = append(w.free[:i], w.free[i+1:]...)
			break
		}
	}

	meta := &w.entities[e.ID]
	meta.version = e.Version
	meta.high = max(meta.high, e.Version)
	meta.alive = true
	w.alive++
	return e
}

// Alive reports whether e refers to a live entity of this world.
//
// Parameters:
//   - e: the entity to check
//
// Returns:
//   - bool: true if e is alive
func (w *World) Alive(e Entity) bool {
	if int(e.ID) >= len(w.entities) {
		return false
	}
	meta := w.entities[e.ID]
	return meta.alive && meta.version == e.Version
}

// Despawn removes e and all of its components. Despawning a dead entity is a no-op.
//
// Parameters:
//   - e: the entity to remove
//
// Returns:
//   - bool: true if the entity was alive and has been removed
func (w *World) Despawn(e Entity) bool {
	if !w.Alive(e) {
		return false
	}

	for _, s := range w.stores {
		s.remove(e)
	}

	w.entities[e.ID].alive = false
	w.free = append(w.free, e.ID)
	w.alive--
	w.layoutVersion++
	return true
}

// ClearEntities despawns every entity while keeping resources and component
// stores. The render world is cleared this way at the end of every frame.
func (w *World) ClearEntities() {
	for _, s := range w.stores {
		s.clear()
	}

	w.free = w.free[:0]
	for id := range w.entities {
		w.entities[id].alive = false
		w.free = append(w.free, uint32(id))
	}
	w.alive = 0
	w.layoutVersion++
}

// Len returns the number of live entities.
//
// Returns:
//   - int: count of live entities
func (w *World) Len() int {
	return w.alive
}
