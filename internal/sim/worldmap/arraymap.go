package worldmap

import "roguecloud.ai/internal/sim/geom"

// Map is the read-only view shared by the engine, AI and frame encoders.
type Map interface {
	Width() int
	Height() int
	// Tile returns nil outside the map (and, for sparse maps, for unknown tiles).
	Tile(p geom.Position) *Tile
}

// ArrayMap is the authoritative grid. Writes go to a copy-on-write overlay of tiles layered
// over a base array, so CloneForRead can hand a consistent snapshot to other goroutines
// without copying the grid. ArrayMap itself is not safe for concurrent use: one goroutine
// writes, and readers only ever see clones.
type ArrayMap struct {
	width, height int
	base          []*Tile

	overlay map[geom.Position]*Tile
	// owned marks overlay tiles not yet shared with a read clone; they can be written in place.
	owned    map[geom.Position]struct{}
	readOnly bool
}

func NewArrayMap(width, height int) *ArrayMap {
	return &ArrayMap{width: width, height: height, base: make([]*Tile, width*height)}
}

func (m *ArrayMap) Width() int  { return m.width }
func (m *ArrayMap) Height() int { return m.height }

func (m *ArrayMap) index(p geom.Position) (int, bool) {
	if !p.InBounds(m.width, m.height) {
		return 0, false
	}
	return p.X*m.height + p.Y, true
}

// Put installs a tile directly into the base array. It is meant for world construction,
// before any clone has been taken.
func (m *ArrayMap) Put(p geom.Position, t *Tile) {
	if m.readOnly {
		panic("worldmap: Put on read-only map")
	}
	i, ok := m.index(p)
	if !ok {
		return
	}
	m.base[i] = t
}

func (m *ArrayMap) Tile(p geom.Position) *Tile {
	if t, ok := m.overlay[p]; ok {
		return t
	}
	i, ok := m.index(p)
	if !ok {
		return nil
	}
	return m.base[i]
}

// TileForWrite returns a tile private to the writer, cloning the visible version on first use
// after the last CloneForRead. It returns nil outside the map.
func (m *ArrayMap) TileForWrite(p geom.Position) *Tile {
	if m.readOnly {
		panic("worldmap: write to map cloned for read")
	}
	if _, ok := m.owned[p]; ok {
		return m.overlay[p]
	}
	cur := m.Tile(p)
	if cur == nil {
		return nil
	}
	t := cur.shallowClone()
	if m.overlay == nil {
		m.overlay = map[geom.Position]*Tile{}
		m.owned = map[geom.Position]struct{}{}
	}
	m.overlay[p] = t
	m.owned[p] = struct{}{}
	return t
}

// CloneForRead returns a read-only snapshot that never observes later writes to m.
func (m *ArrayMap) CloneForRead() *ArrayMap {
	c := &ArrayMap{width: m.width, height: m.height, base: m.base, readOnly: true}
	if len(m.overlay) > 0 {
		c.overlay = make(map[geom.Position]*Tile, len(m.overlay))
		for k, v := range m.overlay {
			c.overlay[k] = v
		}
	}
	// Every overlay tile is now visible to the clone.
	m.owned = map[geom.Position]struct{}{}
	return c
}

// Collapse folds the overlay into a fresh base array and returns the new writable map.
// m and any clones of it keep referencing the old array.
func (m *ArrayMap) Collapse() *ArrayMap {
	base := make([]*Tile, len(m.base))
	copy(base, m.base)
	for p, t := range m.overlay {
		base[p.X*m.height+p.Y] = t
	}
	return &ArrayMap{width: m.width, height: m.height, base: base}
}

// OverlaySize is the number of tiles modified since the last collapse.
func (m *ArrayMap) OverlaySize() int { return len(m.overlay) }

func (m *ArrayMap) ReadOnly() bool { return m.readOnly }
