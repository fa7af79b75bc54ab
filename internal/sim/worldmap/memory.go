package worldmap

import (
	"sync"

	"roguecloud.ai/internal/sim/geom"
)

// MemoryMap is a sparse record of the tiles one agent has observed, each stamped with the
// tick it was last seen. Tiles outside the agent's past viewports are absent. Safe for
// concurrent use.
type MemoryMap struct {
	width, height int

	mu    sync.RWMutex
	tiles map[geom.Position]*Tile
}

func NewMemoryMap(width, height int) *MemoryMap {
	return &MemoryMap{width: width, height: height, tiles: map[geom.Position]*Tile{}}
}

func (m *MemoryMap) Width() int  { return m.width }
func (m *MemoryMap) Height() int { return m.height }

func (m *MemoryMap) Tile(p geom.Position) *Tile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tiles[p]
}

// Observe records t as seen at tick. The stored tile is a private copy.
func (m *MemoryMap) Observe(p geom.Position, t *Tile, tick uint64) {
	if t == nil || !p.InBounds(m.width, m.height) {
		return
	}
	cp := t.shallowClone()
	cp.SetLastTickUpdated(tick)
	m.mu.Lock()
	m.tiles[p] = cp
	m.mu.Unlock()
}

// ObserveBox copies every tile of src inside b.
func (m *MemoryMap) ObserveBox(src Map, b geom.Box, tick uint64) {
	for y := b.Y; y < b.Y+b.H; y++ {
		for x := b.X; x < b.X+b.W; x++ {
			p := geom.P(x, y)
			m.Observe(p, src.Tile(p), tick)
		}
	}
}

// IsStale reports whether p was observed before now. Unknown tiles are stale.
func (m *MemoryMap) IsStale(p geom.Position, now uint64) bool {
	t := m.Tile(p)
	if t == nil {
		return true
	}
	seen, ok := t.LastTickUpdated()
	return !ok || seen < now
}

func (m *MemoryMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tiles)
}
