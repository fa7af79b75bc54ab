package path

import (
	"math/rand"
	"testing"

	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

// grid builds a map from rows of '.' (open) and '#' (wall); row index is y.
func grid(rows ...string) *worldmap.ArrayMap {
	m := worldmap.NewArrayMap(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, c := range row {
			m.Put(geom.P(x, y), worldmap.NewTile(c != '#', entity.TileType{Number: 1}))
		}
	}
	return m
}

func assertRoute(t *testing.T, m worldmap.Map, route []geom.Position, start, goal geom.Position) {
	t.Helper()
	if len(route) == 0 {
		t.Fatalf("expected a route from %v to %v", start, goal)
	}
	if route[0] != start || route[len(route)-1] != goal {
		t.Fatalf("route endpoints %v..%v, want %v..%v", route[0], route[len(route)-1], start, goal)
	}
	seen := map[geom.Position]bool{}
	for i, p := range route {
		if !Passable(m, p) {
			t.Fatalf("route crosses impassable %v", p)
		}
		if seen[p] {
			t.Fatalf("route revisits %v", p)
		}
		seen[p] = true
		if i > 0 && !route[i-1].IsCardinalNeighbor(p) {
			t.Fatalf("non-cardinal step %v -> %v", route[i-1], p)
		}
	}
}

func TestAStar_AroundWall(t *testing.T) {
	m := grid(
		".....",
		".###.",
		"...#.",
		"##.#.",
		".....",
	)
	start, goal := geom.P(0, 2), geom.P(4, 2)
	r := AStar(m, start, goal, 0)
	assertRoute(t, m, r, start, goal)
	// Shortest: (0,2)->(0,1)->(0,0)->...->(4,0)->(4,1)->(4,2) is 8 steps.
	if len(r) != 9 {
		t.Fatalf("expected 9 positions, got %d: %v", len(r), r)
	}
}

func TestAStar_NoRoute(t *testing.T) {
	m := grid(
		"..#..",
		"..#..",
		"..#..",
	)
	if r := AStar(m, geom.P(0, 0), geom.P(4, 0), 0); r != nil {
		t.Fatalf("expected no route, got %v", r)
	}
	if r := AStar(m, geom.P(0, 0), geom.P(2, 0), 0); r != nil {
		t.Fatalf("wall goal should be unreachable, got %v", r)
	}
}

func TestAStar_CapExhausted(t *testing.T) {
	m := grid(
		"..........",
		"..........",
		"..........",
		"..........",
	)
	if r := AStar(m, geom.P(0, 0), geom.P(9, 3), 3); r != nil {
		t.Fatalf("expected cap to stop the search, got %v", r)
	}
	if r := AStar(m, geom.P(0, 0), geom.P(9, 3), 0); len(r) != 13 {
		t.Fatalf("expected 13 positions with the default cap, got %d", len(r))
	}
}

func TestAStar_StartIsGoal(t *testing.T) {
	m := grid("...")
	r := AStar(m, geom.P(1, 0), geom.P(1, 0), 0)
	if len(r) != 1 || r[0] != geom.P(1, 0) {
		t.Fatalf("unexpected %v", r)
	}
}

func TestFast_FallsBackToAStar(t *testing.T) {
	m := grid(
		"......",
		".####.",
		".#..#.",
		".#..#.",
		"......",
	)
	start, goal := geom.P(2, 2), geom.P(5, 0)
	rng := rand.New(rand.NewSource(1))
	r := Fast(m, start, goal, 0, rng)
	assertRoute(t, m, r, start, goal)
}

func TestFast_StraightLine(t *testing.T) {
	m := grid(".......")
	r := Fast(m, geom.P(0, 0), geom.P(6, 0), 0, rand.New(rand.NewSource(1)))
	if len(r) != 7 {
		t.Fatalf("expected direct route, got %v", r)
	}
}

func TestRemoveLoops(t *testing.T) {
	in := []geom.Position{geom.P(0, 0), geom.P(1, 0), geom.P(0, 0), geom.P(1, 0), geom.P(1, 1)}
	got := removeLoops(in)
	want := []geom.Position{geom.P(0, 0), geom.P(1, 0), geom.P(1, 1)}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestCanReach(t *testing.T) {
	m := grid("...", "...", "...")
	cases := []struct {
		a, b geom.Position
		want bool
	}{
		{geom.P(1, 1), geom.P(1, 1), true},
		{geom.P(1, 1), geom.P(1, 2), true},
		{geom.P(1, 1), geom.P(2, 2), false},
		{geom.P(0, 0), geom.P(2, 0), false},
		{geom.P(0, 0), geom.P(-1, 0), false},
	}
	for _, tc := range cases {
		if got := CanReach(m, tc.a, tc.b); got != tc.want {
			t.Fatalf("CanReach(%v,%v)=%v want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestPassable_UnknownTiles(t *testing.T) {
	mem := worldmap.NewMemoryMap(3, 3)
	if !Passable(mem, geom.P(1, 1)) {
		t.Fatalf("unknown tiles should be passable for planning")
	}
	if Passable(mem, geom.P(3, 1)) {
		t.Fatalf("out of bounds should never be passable")
	}
}

func TestCreaturesIn_SortedAndFiltered(t *testing.T) {
	m := grid(".....", ".....", ".....")
	self := geom.P(0, 0)
	add := func(id int64, p geom.Position, dead bool) {
		c := entity.NewCreature(entity.CreatureSpec{ID: id, MaxHP: 5, Pos: p})
		if dead {
			c.SetHP(0)
		}
		m.TileForWrite(p).AddCreature(c)
	}
	add(1, self, false)
	add(2, geom.P(4, 2), false)
	add(3, geom.P(1, 0), false)
	add(4, geom.P(2, 0), true)

	got := CreaturesIn(m, geom.Box{X: 0, Y: 0, W: 5, H: 3}, self)
	if len(got) != 2 || got[0].ID() != 3 || got[1].ID() != 2 {
		ids := []int64{}
		for _, c := range got {
			ids = append(ids, c.ID())
		}
		t.Fatalf("unexpected creatures %v", ids)
	}
}

func TestRandomPassable(t *testing.T) {
	m := grid("#.#", "###")
	p, ok := RandomPassable(m, geom.Box{W: 3, H: 2}, false, rand.New(rand.NewSource(3)))
	if !ok || p != geom.P(1, 0) {
		t.Fatalf("got %v ok=%v", p, ok)
	}
}
