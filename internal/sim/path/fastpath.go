package path

import (
	"math/rand"

	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

// Greedy walks straight toward goal, alternating axes when both reduce the distance, and
// stops at the first position where neither axis can advance. The result starts with start
// and ends at goal only if the walk got there.
func Greedy(m worldmap.Map, start, goal geom.Position, rng *rand.Rand) []geom.Position {
	out := []geom.Position{start}
	cur := start
	dx, dy := 0, 0
	for cur != goal {
		ddx, ddy := goal.X-cur.X, goal.Y-cur.Y
		canX := ddx != 0 && Passable(m, cur.Add(sign(ddx), 0))
		canY := ddy != 0 && Passable(m, cur.Add(0, sign(ddy)))

		var useX bool
		switch {
		case !canX && !canY:
			return out
		case canX && !canY:
			useX = true
		case canY && !canX:
			useX = false
		case dx == 0 && dy == 0:
			useX = rng != nil && rng.Intn(2) == 0
		default:
			useX = dx == 0
		}
		if useX {
			dx, dy = sign(ddx), 0
		} else {
			dx, dy = 0, sign(ddy)
		}
		cur = cur.Add(dx, dy)
		out = append(out, cur)
	}
	return out
}

// Fast returns a route from start to goal, trying Greedy first and finishing with A* from
// wherever the greedy walk stopped. It returns nil when no route is found.
func Fast(m worldmap.Map, start, goal geom.Position, maxTiles int, rng *rand.Rand) []geom.Position {
	if !Passable(m, goal) {
		return nil
	}
	route := Greedy(m, start, goal, rng)
	last := route[len(route)-1]
	if last == goal {
		return route
	}
	if len(route) == 1 {
		return AStar(m, start, goal, maxTiles)
	}
	tail := AStar(m, last, goal, maxTiles)
	if len(tail) == 0 {
		// The greedy walk may have led into a dead end; retry from the start.
		return AStar(m, start, goal, maxTiles)
	}
	return removeLoops(append(route, tail[1:]...))
}

// removeLoops cuts every revisit so each position appears once, keeping the route contiguous.
func removeLoops(route []geom.Position) []geom.Position {
	last := make(map[geom.Position]int, len(route))
	for i, p := range route {
		last[p] = i
	}
	out := make([]geom.Position, 0, len(route))
	for i := 0; i < len(route); {
		p := route[i]
		out = append(out, p)
		i = last[p] + 1
	}
	return out
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
