package ecs

import (
	"fmt"
	"iter"
	"reflect"
)

// componentStore is the type-erased view of a typedStore used by World for
// entity-wide operations.
type componentStore interface {
	remove(e Entity) bool
	clear()
	len() int
}

// typedStore keeps components of one type densely packed in insertion order.
// Removal swaps the last element into the hole.
type typedStore[T any] struct {
	dense    []T
	entities []Entity
	sparse   map[uint32]int
}

func newTypedStore[T any]() *typedStore[T] {
	return &typedStore[T]{sparse: make(map[uint32]int)}
}

func (s *typedStore[T]) get(e Entity) (*T, bool) {
	i, ok := s.sparse[e.ID]
	if !ok || s.entities[i] != e {
		return nil, false
	}
	return &s.dense[i], true
}

// set stores c for e and reports whether e did not have the component before.
func (s *typedStore[T]) set(e Entity, c T) bool {
	if i, ok := s.sparse[e.ID]; ok {
		if s.entities[i] == e {
			s.dense[i] = c
			return false
		}
		// Stale slot left by an older version of the entity.
		s.removeAt(i)
	}
	s.sparse[e.ID] = len(s.dense)
	s.dense = append(s.dense, c)
	s.entities = append(s.entities, e)
	return true
}

func (s *typedStore[T]) remove(e Entity) bool {
	i, ok := s.sparse[e.ID]
	if !ok || s.entities[i] != e {
		return false
	}
	s.removeAt(i)
	return true
}

func (s *typedStore[T]) removeAt(i int) {
	last := len(s.dense) - 1
	delete(s.sparse, s.entities[i].ID)
	if i != last {
		s.dense[i] = s.dense[last]
		s.entities[i] = s.entities[last]
		s.sparse[s.entities[i].ID] = i
	}
	var zero T
	s.dense[last] = zero
	s.dense = s.dense[:last]
	s.entities = s.entities[:last]
}

func (s *typedStore[T]) clear() {
	clear(s.dense)
	s.dense = s.dense[:0]
	s.entities = s.entities[:0]
	clear(s.sparse)
}

func (s *typedStore[T]) len() int {
	return len(s.dense)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// lookupStore returns the store for T or nil when no component of type T was ever inserted.
func lookupStore[T any](w *World) *typedStore[T] {
	s, ok := w.stores[typeOf[T]()]
	if !ok {
		return nil
	}
	return s.(*typedStore[T])
}

// Insert attaches c to e, replacing any existing component of the same type.
// Panics if e is not alive.
//
// Parameters:
//   - w: the world holding e
//   - e: the entity to attach the component to
//   - c: the component value
func Insert[T any](w *World, e Entity, c T) {
	if !w.Alive(e) {
		panic(fmt.Sprintf("ecs: insert %s on dead entity %s", typeOf[T](), e))
	}

	s := lookupStore[T](w)
	if s == nil {
		s = newTypedStore[T]()
		w.stores[typeOf[T]()] = s
		w.layoutVersion++
	}
	if s.set(e, c) {
		w.layoutVersion++
	}
}

// Get returns a pointer to e's component of type T.
// The pointer is valid until the next structural change to the T store.
//
// Parameters:
//   - w: the world holding e
//   - e: the entity to read
//
// Returns:
//   - *T: the component, or nil
//   - bool: true if e is alive and has the component
func Get[T any](w *World, e Entity) (*T, bool) {
	if !w.Alive(e) {
		return nil, false
	}
	s := lookupStore[T](w)
	if s == nil {
		return nil, false
	}
	return s.get(e)
}

// Has reports whether e carries a component of type T.
//
// Parameters:
//   - w: the world holding e
//   - e: the entity to check
//
// Returns:
//   - bool: true if the component is present
func Has[T any](w *World, e Entity) bool {
	_, ok := Get[T](w, e)
	return ok
}

// Remove detaches e's component of type T.
//
// Parameters:
//   - w: the world holding e
//   - e: the entity to modify
//
// Returns:
//   - bool: true if a component was removed
func Remove[T any](w *World, e Entity) bool {
	s := lookupStore[T](w)
	if s == nil || !s.remove(e) {
		return false
	}
	w.layoutVersion++
	return true
}

// Query iterates every entity carrying T, in store order (insertion order
// until a removal swaps elements). Components must not be inserted into or
// removed from the T store while iterating.
//
// Parameters:
//   - w: the world to iterate
//
// Returns:
//   - iter.Seq2[Entity, *T]: the entity/component sequence
func Query[T any](w *World) iter.Seq2[Entity, *T] {
	return func(yield func(Entity, *T) bool) {
		s := lookupStore[T](w)
		if s == nil {
			return
		}
		for i := range s.dense {
			if !yield(s.entities[i], &s.dense[i]) {
				return
			}
		}
	}
}

// Count returns how many entities carry a component of type T.
//
// Parameters:
//   - w: the world to inspect
//
// Returns:
//   - int: component count
func Count[T any](w *World) int {
	s := lookupStore[T](w)
	if s == nil {
		return 0
	}
	return s.len()
}
