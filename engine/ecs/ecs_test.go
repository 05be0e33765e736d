package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct{ X, Y int }

type tag struct{ Name string }

func TestSpawnDespawnReusesSlotWithNewVersion(t *testing.T) {
	w := NewWorld()

	a := w.Spawn()
	b := w.Spawn()
	require.True(t, w.Alive(a))
	require.True(t, w.Alive(b))
	assert.Equal(t, 2, w.Len())

	require.True(t, w.Despawn(a))
	assert.False(t, w.Alive(a))
	assert.False(t, w.Despawn(a))

	c := w.Spawn()
	assert.Equal(t, a.ID, c.ID)
	assert.NotEqual(t, a.Version, c.Version)
	assert.False(t, w.Alive(a), "old handle must not resolve to the new occupant")
	assert.True(t, w.Alive(c))
}

func TestInsertGetRemove(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()

	Insert(w, e, position{X: 1, Y: 2})
	p, ok := Get[position](w, e)
	require.True(t, ok)
	assert.Equal(t, position{X: 1, Y: 2}, *p)

	p.X = 10
	p2, _ := Get[position](w, e)
	assert.Equal(t, 10, p2.X)

	Insert(w, e, position{X: 3})
	p3, _ := Get[position](w, e)
	assert.Equal(t, 3, p3.X)
	assert.Equal(t, 1, Count[position](w))

	assert.False(t, Has[tag](w, e))
	assert.True(t, Remove[position](w, e))
	assert.False(t, Has[position](w, e))
	assert.False(t, Remove[position](w, e))
}

func TestInsertOnDeadEntityPanics(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	w.Despawn(e)

	assert.Panics(t, func() { Insert(w, e, tag{}) })
}

func TestDespawnRemovesComponents(t *testing.T) {
	w := NewWorld()
	a := w.Spawn()
	b := w.Spawn()
	Insert(w, a, tag{Name: "a"})
	Insert(w, b, tag{Name: "b"})

	w.Despawn(a)

	var names []string
	for _, c := range Query[tag](w) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"b"}, names)
}

func TestQueryIteratesInInsertionOrder(t *testing.T) {
	w := NewWorld()
	var want []Entity
	for i := 0; i < 5; i++ {
		e := w.Spawn()
		Insert(w, e, position{X: i})
		want = append(want, e)
	}

	var got []Entity
	for e, p := range Query[position](w) {
		assert.Equal(t, int(e.ID), p.X)
		got = append(got, e)
	}
	assert.Equal(t, want, got)
}

func TestGetOrSpawnMirrorsEntity(t *testing.T) {
	main := NewWorld()
	render := NewWorld()

	main.Spawn()
	e := main.Spawn()
	main.Despawn(e)
	e = main.Spawn()
	require.Equal(t, uint32(1), e.Version)

	got := render.GetOrSpawn(e)
	assert.Equal(t, e, got)
	assert.True(t, render.Alive(e))
	assert.Equal(t, 1, render.Len())

	// The slot below e is free and can still be spawned.
	other := render.Spawn()
	assert.NotEqual(t, e.ID, other.ID)

	// A newer version replaces the older occupant.
	newer := Entity{ID: e.ID, Version: e.Version + 1}
	Insert(render, e, tag{Name: "old"})
	render.GetOrSpawn(newer)
	assert.False(t, render.Alive(e))
	assert.True(t, render.Alive(newer))
	assert.False(t, Has[tag](render, newer))
}

func TestClearEntitiesKeepsResources(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	Insert(w, e, tag{Name: "x"})
	InsertResource(w, &position{X: 7})

	w.ClearEntities()

	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Alive(e))
	assert.Equal(t, 0, Count[tag](w))
	assert.Equal(t, 7, Resource[position](w).X)

	w.GetOrSpawn(e)
	assert.True(t, w.Alive(e))
	assert.False(t, Has[tag](w, e))
}

func TestSpawnNeverReusesMirroredVersion(t *testing.T) {
	w := NewWorld()
	w.GetOrSpawn(Entity{ID: 0, Version: 5})
	w.ClearEntities()

	old := Entity{ID: 0, Version: 2}
	w.GetOrSpawn(old)
	assert.True(t, w.Alive(old))
	w.ClearEntities()

	e := w.Spawn()
	assert.Equal(t, uint32(0), e.ID)
	assert.Equal(t, uint32(6), e.Version)
	assert.False(t, w.Alive(old))
	assert.False(t, w.Alive(Entity{ID: 0, Version: 5}))
}

func TestQueryStateRequiresSync(t *testing.T) {
	w := NewWorld()
	q := NewQueryState[tag](w)

	e := w.Spawn()
	Insert(w, e, tag{Name: "late"})

	_, ok := q.GetManual(w, e)
	assert.False(t, ok, "store created after the last sync is invisible")
	assert.True(t, q.Stale())

	q.UpdateArchetypes(w)
	c, ok := q.GetManual(w, e)
	require.True(t, ok)
	assert.Equal(t, "late", c.Name)
	assert.False(t, q.Stale())

	w.Despawn(e)
	_, ok = q.GetManual(w, e)
	assert.False(t, ok)
}

func TestQueryStateRejectsOtherWorld(t *testing.T) {
	w := NewWorld()
	q := NewQueryState[tag](w)

	assert.Panics(t, func() { q.UpdateArchetypes(NewWorld()) })
}

func TestResources(t *testing.T) {
	w := NewWorld()

	_, ok := ResourceOk[tag](w)
	assert.False(t, ok)
	assert.Panics(t, func() { Resource[tag](w) })

	InsertResource(w, &tag{Name: "r"})
	assert.Equal(t, "r", Resource[tag](w).Name)

	assert.True(t, RemoveResource[tag](w))
	assert.False(t, RemoveResource[tag](w))
}
