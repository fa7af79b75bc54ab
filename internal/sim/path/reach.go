package path

import (
	"math/rand"
	"sort"

	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

// CanReach reports whether an actor at src can touch dest: the same tile or one cardinal step
// away, both inside the map. It says nothing about routes.
func CanReach(m worldmap.Map, src, dest geom.Position) bool {
	if !src.InBounds(m.Width(), m.Height()) || !dest.InBounds(m.Width(), m.Height()) {
		return false
	}
	return src.Manhattan(dest) <= 1
}

// Neighbours returns the in-bounds cardinal neighbours of p.
func Neighbours(m worldmap.Map, p geom.Position) []geom.Position {
	out := make([]geom.Position, 0, 4)
	for _, n := range p.CardinalNeighbors() {
		if n.InBounds(m.Width(), m.Height()) {
			out = append(out, n)
		}
	}
	return out
}

// CreaturesIn returns the living creatures inside b, excluding any standing at self.
// Results are sorted by distance from self, then id.
func CreaturesIn(m worldmap.Map, b geom.Box, self geom.Position) []*entity.Creature {
	var out []*entity.Creature
	forEachTile(m, b, func(_ geom.Position, t *worldmap.Tile) {
		for _, c := range t.Creatures() {
			if c.IsDead() || c.Position() == self {
				continue
			}
			out = append(out, c)
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := self.Manhattan(out[i].Position()), self.Manhattan(out[j].Position())
		if di != dj {
			return di < dj
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// CreaturesWithin is CreaturesIn over the square of the given radius around self.
func CreaturesWithin(m worldmap.Map, self geom.Position, radius int) []*entity.Creature {
	b := geom.Box{X: self.X - radius, Y: self.Y - radius, W: 2*radius + 1, H: 2*radius + 1}
	return CreaturesIn(m, b, self)
}

// GroundObjectsIn returns the ground objects inside b sorted by distance from self.
func GroundObjectsIn(m worldmap.Map, b geom.Box, self geom.Position) []*entity.GroundObject {
	var out []*entity.GroundObject
	forEachTile(m, b, func(_ geom.Position, t *worldmap.Tile) {
		out = append(out, t.GroundObjects()...)
	})
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := self.Manhattan(out[i].Pos), self.Manhattan(out[j].Pos)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Target pairs something worth walking to with the route there, start excluded.
type Target[T any] struct {
	Value T
	Route []geom.Position
}

// ClosestReachableCreature returns the nearest creature in b that has a route from self.
func ClosestReachableCreature(m worldmap.Map, b geom.Box, self geom.Position, maxTiles int, rng *rand.Rand) (Target[*entity.Creature], bool) {
	for _, c := range CreaturesIn(m, b, self) {
		if r := Fast(m, self, c.Position(), maxTiles, rng); len(r) > 0 {
			return Target[*entity.Creature]{Value: c, Route: r[1:]}, true
		}
	}
	return Target[*entity.Creature]{}, false
}

// ClosestReachableGroundObject returns the nearest ground object in b with a route from self.
func ClosestReachableGroundObject(m worldmap.Map, b geom.Box, self geom.Position, maxTiles int, rng *rand.Rand) (Target[*entity.GroundObject], bool) {
	for _, g := range GroundObjectsIn(m, b, self) {
		if r := Fast(m, self, g.Pos, maxTiles, rng); len(r) > 0 {
			return Target[*entity.GroundObject]{Value: g, Route: r[1:]}, true
		}
	}
	return Target[*entity.GroundObject]{}, false
}

// RandomPassable picks a passable position inside b, trying a bounded number of times.
// Unknown tiles qualify only when allowUnknown is set.
func RandomPassable(m worldmap.Map, b geom.Box, allowUnknown bool, rng *rand.Rand) (geom.Position, bool) {
	b = geom.Normalize(b, m.Width(), m.Height())
	if b.W <= 0 || b.H <= 0 {
		return geom.Position{}, false
	}
	for attempt := 0; attempt < 100; attempt++ {
		p := geom.P(b.X+rng.Intn(b.W), b.Y+rng.Intn(b.H))
		t := m.Tile(p)
		if t == nil {
			if allowUnknown {
				return p, true
			}
			continue
		}
		if t.Passable() {
			return p, true
		}
	}
	return geom.Position{}, false
}

func forEachTile(m worldmap.Map, b geom.Box, fn func(geom.Position, *worldmap.Tile)) {
	x0, y0 := max(b.X, 0), max(b.Y, 0)
	x1, y1 := min(b.X+b.W, m.Width()), min(b.Y+b.H, m.Height())
	for x := x0; x < x1; x++ {
		for y := y0; y < y1; y++ {
			p := geom.P(x, y)
			if t := m.Tile(p); t != nil {
				fn(p, t)
			}
		}
	}
}
