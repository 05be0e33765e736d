package ecs

import "fmt"

// InsertResource stores r as the world's single resource of type T, replacing any previous one.
//
// Parameters:
//   - w: the world to store the resource in
//   - r: the resource
func InsertResource[T any](w *World, r *T) {
	w.resources[typeOf[T]()] = r
}

// Resource returns the world's resource of type T.
// Panics if it was never inserted; resources are set up by plugins before the
// first frame, so a missing one is a wiring bug.
//
// Parameters:
//   - w: the world holding the resource
//
// Returns:
//   - *T: the resource
func Resource[T any](w *World) *T {
	r, ok := ResourceOk[T](w)
	if !ok {
		panic(fmt.Sprintf("ecs: resource %s not found", typeOf[T]()))
	}
	return r
}

// ResourceOk returns the world's resource of type T if present.
//
// Parameters:
//   - w: the world holding the resource
//
// Returns:
//   - *T: the resource, or nil
//   - bool: true if the resource exists
func ResourceOk[T any](w *World) (*T, bool) {
	r, ok := w.resources[typeOf[T]()]
	if !ok {
		return nil, false
	}
	return r.(*T), true
}

// RemoveResource deletes the world's resource of type T.
//
// Parameters:
//   - w: the world holding the resource
//
// Returns:
//   - bool: true if a resource was removed
func RemoveResource[T any](w *World) bool {
	t := typeOf[T]()
	if _, ok := w.resources[t]; !ok {
		return false
	}
	delete(w.resources, t)
	return true
}
