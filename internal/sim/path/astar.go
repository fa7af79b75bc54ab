// Package path finds routes across a worldmap.Map. Routes are 4-directional with unit step
// cost and always include the start position as their first element.
package path

import (
	"container/heap"

	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

// DefaultMaxTiles caps A* expansion when callers pass a non-positive limit.
const DefaultMaxTiles = 20000

// Passable reports whether a creature may stand on p. Tiles a sparse map has never seen are
// treated as passable so agents can plan through unexplored space.
func Passable(m worldmap.Map, p geom.Position) bool {
	if !p.InBounds(m.Width(), m.Height()) {
		return false
	}
	t := m.Tile(p)
	return t == nil || t.Passable()
}

type node struct {
	pos    geom.Position
	g, f   int
	seq    int
	index  int
	parent *node
}

type openSet []*node

func (q openSet) Len() int { return len(q) }

func (q openSet) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	// Prefer deeper nodes on ties, then insertion order.
	if q[i].g != q[j].g {
		return q[i].g > q[j].g
	}
	return q[i].seq < q[j].seq
}

func (q openSet) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *openSet) Push(x any) {
	n := x.(*node)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *openSet) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// AStar returns the shortest route from start to goal, or nil when the goal is unreachable or
// more than maxTiles positions were expanded.
func AStar(m worldmap.Map, start, goal geom.Position, maxTiles int) []geom.Position {
	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}
	if !start.InBounds(m.Width(), m.Height()) || !Passable(m, goal) {
		return nil
	}
	if start == goal {
		return []geom.Position{start}
	}

	open := &openSet{}
	heap.Init(open)
	seq := 0
	heap.Push(open, &node{pos: start, f: start.Manhattan(goal)})
	gScore := map[geom.Position]int{start: 0}
	closed := make(map[geom.Position]struct{})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if _, seen := closed[cur.pos]; seen {
			continue
		}
		if cur.pos == goal {
			return reconstruct(cur)
		}
		closed[cur.pos] = struct{}{}
		if len(closed) > maxTiles {
			return nil
		}

		for _, next := range cur.pos.CardinalNeighbors() {
			if _, seen := closed[next]; seen {
				continue
			}
			if !Passable(m, next) {
				continue
			}
			g := cur.g + 1
			if prev, ok := gScore[next]; ok && g >= prev {
				continue
			}
			gScore[next] = g
			seq++
			heap.Push(open, &node{pos: next, g: g, f: g + next.Manhattan(goal), seq: seq, parent: cur})
		}
	}
	return nil
}

func reconstruct(end *node) []geom.Position {
	out := make([]geom.Position, 0, end.g+1)
	for n := end; n != nil; n = n.parent {
		out = append(out, n.pos)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
