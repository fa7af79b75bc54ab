package geom

import "fmt"

// Position is an immutable world coordinate. Validity is checked against map bounds by callers.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func P(x, y int) Position { return Position{X: x, Y: y} }

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

func (p Position) Add(dx, dy int) Position { return Position{X: p.X + dx, Y: p.Y + dy} }

// Manhattan returns |dx|+|dy|.
func (p Position) Manhattan(o Position) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

// Chebyshev returns max(|dx|,|dy|).
func (p Position) Chebyshev(o Position) int {
	dx, dy := abs(p.X-o.X), abs(p.Y-o.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// InBounds reports whether p lies inside a width x height grid.
func (p Position) InBounds(width, height int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < width && p.Y < height
}

// IsCardinalNeighbor reports whether o is exactly one step up/down/left/right of p.
func (p Position) IsCardinalNeighbor(o Position) bool {
	return p.Manhattan(o) == 1
}

// CardinalNeighbors returns the four cardinal neighbours in a fixed order: N, S, E, W.
func (p Position) CardinalNeighbors() [4]Position {
	return [4]Position{
		{X: p.X, Y: p.Y - 1},
		{X: p.X, Y: p.Y + 1},
		{X: p.X + 1, Y: p.Y},
		{X: p.X - 1, Y: p.Y},
	}
}

// Box is a viewport rectangle with its top-left corner at (X,Y).
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (b Box) Contains(p Position) bool {
	return p.X >= b.X && p.Y >= b.Y && p.X < b.X+b.W && p.Y < b.Y+b.H
}

func (b Box) TopLeft() Position { return Position{X: b.X, Y: b.Y} }

func (b Box) Area() int { return b.W * b.H }

// Normalize clamps the box so it lies fully inside a width x height world.
// A box larger than the world is shrunk to the world size.
func Normalize(b Box, width, height int) Box {
	if b.W > width {
		b.W = width
	}
	if b.H > height {
		b.H = height
	}
	if b.X < 0 {
		b.X = 0
	}
	if b.Y < 0 {
		b.Y = 0
	}
	if b.X+b.W > width {
		b.X = width - b.W
	}
	if b.Y+b.H > height {
		b.Y = height - b.H
	}
	return b
}

// CenterOn returns a w x h box centred on p and clamped to the world.
func CenterOn(p Position, w, h, width, height int) Box {
	return Normalize(Box{X: p.X - w/2, Y: p.Y - h/2, W: w, H: h}, width, height)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
