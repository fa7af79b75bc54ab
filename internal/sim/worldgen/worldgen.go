// Package worldgen builds the starting map of a round from a seed.
package worldgen

import (
	"math/rand"

	"roguecloud.ai/internal/sim/catalogs"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

type Params struct {
	Width  int
	Height int
	Seed   int64

	// Rooms is how many walled buildings to try to place.
	Rooms int
	// RoadSpacing is the distance between parallel roads; 0 disables roads.
	RoadSpacing int
	// RockClusterPermille is the chance that a cluster cell seeds a rock or tree cluster.
	RockClusterPermille uint64
}

// DefaultParams scales room count with the map area.
func DefaultParams(width, height int, seed int64) Params {
	return Params{
		Width:               width,
		Height:              height,
		Seed:                seed,
		Rooms:               max(1, width*height/1500),
		RoadSpacing:         40,
		RockClusterPermille: 350,
	}
}

type palette struct {
	grass, floor, road, wall, rock, tree, door entity.TileType
}

// Generate returns a fully populated map. The same params and tiles always produce the same map.
func Generate(p Params, tiles catalogs.TileCatalog) *worldmap.ArrayMap {
	pal := palette{
		grass: tiles.Get("grass"),
		floor: tiles.Get("floor"),
		road:  tiles.Get("road"),
		wall:  tiles.Get("wall"),
		rock:  tiles.Get("rock"),
		tree:  tiles.Get("tree"),
		door:  tiles.Get("door"),
	}
	m := worldmap.NewArrayMap(p.Width, p.Height)
	roads := make(map[geom.Position]bool)

	for x := 0; x < p.Width; x++ {
		for y := 0; y < p.Height; y++ {
			pos := geom.P(x, y)
			switch {
			case x == 0 || y == 0 || x == p.Width-1 || y == p.Height-1:
				m.Put(pos, worldmap.NewTile(false, pal.wall))
			case onRoad(p, x, y):
				roads[pos] = true
				m.Put(pos, worldmap.NewTile(true, pal.road))
			case inCluster(p.Seed+101, x, y, 24, 2, p.RockClusterPermille):
				m.Put(pos, worldmap.NewTile(false, pal.rock, pal.grass))
			case inCluster(p.Seed+202, x, y, 32, 3, p.RockClusterPermille):
				m.Put(pos, worldmap.NewTile(false, pal.tree, pal.grass))
			default:
				m.Put(pos, worldmap.NewTile(true, pal.grass))
			}
		}
	}

	rng := rand.New(rand.NewSource(p.Seed))
	var placed []geom.Box
	for i := 0; i < p.Rooms; i++ {
		b, ok := pickRoom(p, rng, placed, roads)
		if !ok {
			continue
		}
		placed = append(placed, b)
		buildRoom(m, b, pal, rng)
	}
	return m
}

func onRoad(p Params, x, y int) bool {
	if p.RoadSpacing <= 0 {
		return false
	}
	return x%p.RoadSpacing == p.RoadSpacing/2 || y%p.RoadSpacing == p.RoadSpacing/2
}

// pickRoom finds a box that stays off roads and keeps a one-tile gap from other rooms.
func pickRoom(p Params, rng *rand.Rand, placed []geom.Box, roads map[geom.Position]bool) (geom.Box, bool) {
	for attempt := 0; attempt < 20; attempt++ {
		w := 5 + rng.Intn(8)
		h := 5 + rng.Intn(6)
		if w+4 >= p.Width || h+4 >= p.Height {
			return geom.Box{}, false
		}
		b := geom.Box{X: 2 + rng.Intn(p.Width-w-4), Y: 2 + rng.Intn(p.Height-h-4), W: w, H: h}
		grown := geom.Box{X: b.X - 1, Y: b.Y - 1, W: b.W + 2, H: b.H + 2}
		if overlapsAny(grown, placed) || touchesRoad(grown, roads) {
			continue
		}
		return b, true
	}
	return geom.Box{}, false
}

func overlapsAny(b geom.Box, others []geom.Box) bool {
	for _, o := range others {
		if b.X < o.X+o.W && o.X < b.X+b.W && b.Y < o.Y+o.H && o.Y < b.Y+b.H {
			return true
		}
	}
	return false
}

func touchesRoad(b geom.Box, roads map[geom.Position]bool) bool {
	for x := b.X; x < b.X+b.W; x++ {
		for y := b.Y; y < b.Y+b.H; y++ {
			if roads[geom.P(x, y)] {
				return true
			}
		}
	}
	return false
}

// buildRoom walls in b, floors the inside and opens one door in a random wall.
func buildRoom(m *worldmap.ArrayMap, b geom.Box, pal palette, rng *rand.Rand) {
	for x := b.X; x < b.X+b.W; x++ {
		for y := b.Y; y < b.Y+b.H; y++ {
			edge := x == b.X || y == b.Y || x == b.X+b.W-1 || y == b.Y+b.H-1
			if edge {
				m.Put(geom.P(x, y), worldmap.NewTile(false, pal.wall))
			} else {
				m.Put(geom.P(x, y), worldmap.NewTile(true, pal.floor))
			}
		}
	}
	var door geom.Position
	switch rng.Intn(4) {
	case 0:
		door = geom.P(b.X+1+rng.Intn(b.W-2), b.Y)
	case 1:
		door = geom.P(b.X+1+rng.Intn(b.W-2), b.Y+b.H-1)
	case 2:
		door = geom.P(b.X, b.Y+1+rng.Intn(b.H-2))
	default:
		door = geom.P(b.X+b.W-1, b.Y+1+rng.Intn(b.H-2))
	}
	t := worldmap.NewTile(true, pal.door, pal.floor)
	t.SetProperties([]worldmap.Property{{Kind: worldmap.PropertyDoor, Open: true}})
	m.Put(door, t)
	// Clear whatever clutter sits in front of the door.
	for _, n := range door.CardinalNeighbors() {
		if b.Contains(n) || !n.InBounds(m.Width()-1, m.Height()-1) || n.X == 0 || n.Y == 0 {
			continue
		}
		m.Put(n, worldmap.NewTile(true, pal.grass))
	}
}
