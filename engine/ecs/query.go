package ecs

// QueryState caches the lookup of a component store across frames.
//
// The cache is only as fresh as the last UpdateArchetypes call: a store created
// or an entity layout changed afterwards is invisible to GetManual until the
// state is re-synced. Render graph nodes hold a QueryState and re-sync it once
// at the top of every frame.
type QueryState[T any] struct {
	world   *World
	store   *typedStore[T]
	version uint64
	synced  bool
}

// NewQueryState creates a QueryState bound to w and syncs it once.
//
// Parameters:
//   - w: the world the query reads from
//
// Returns:
//   - *QueryState[T]: the new query state
func NewQueryState[T any](w *World) *QueryState[T] {
	q := &QueryState[T]{world: w}
	q.UpdateArchetypes(w)
	return q
}

// UpdateArchetypes re-syncs the cached store against the current layout of w.
// Panics if w is not the world the state was created for.
//
// Parameters:
//   - w: the world the query was created for
func (q *QueryState[T]) UpdateArchetypes(w *World) {
	q.checkWorld(w)
	if q.synced && q.version == w.layoutVersion {
		return
	}
	q.store = lookupStore[T](w)
	q.version = w.layoutVersion
	q.synced = true
}

// GetManual reads e's component through the cached state without re-syncing.
//
// Parameters:
//   - w: the world the query was created for
//   - e: the entity to read
//
// Returns:
//   - *T: the component, or nil
//   - bool: true if e is alive and the synced state can see its component
func (q *QueryState[T]) GetManual(w *World, e Entity) (*T, bool) {
	q.checkWorld(w)
	if q.store == nil || !w.Alive(e) {
		return nil, false
	}
	return q.store.get(e)
}

// Stale reports whether the world layout has changed since the last sync.
//
// Returns:
//   - bool: true if UpdateArchetypes should be called
func (q *QueryState[T]) Stale() bool {
	return !q.synced || q.version != q.world.layoutVersion
}

func (q *QueryState[T]) checkWorld(w *World) {
	if w != q.world {
		panic("ecs: query state used with a different world")
	}
}
