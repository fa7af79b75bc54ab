package geom

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Box
		want Box
	}{
		{"inside", Box{X: 2, Y: 3, W: 4, H: 4}, Box{X: 2, Y: 3, W: 4, H: 4}},
		{"negative", Box{X: -3, Y: -1, W: 4, H: 4}, Box{X: 0, Y: 0, W: 4, H: 4}},
		{"past_edge", Box{X: 8, Y: 9, W: 4, H: 4}, Box{X: 6, Y: 6, W: 4, H: 4}},
		{"too_big", Box{X: 1, Y: 1, W: 20, H: 20}, Box{X: 0, Y: 0, W: 10, H: 10}},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in, 10, 10); got != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.name, got, tc.want)
		}
	}
}

func TestCenterOn(t *testing.T) {
	b := CenterOn(P(50, 50), 80, 40, 161, 191)
	if b.X != 10 || b.Y != 30 || b.W != 80 || b.H != 40 {
		t.Fatalf("unexpected box: %+v", b)
	}
	if !b.Contains(P(50, 50)) {
		t.Fatalf("box must contain its centre")
	}
}

func TestCardinal(t *testing.T) {
	p := P(2, 2)
	for _, n := range p.CardinalNeighbors() {
		if !p.IsCardinalNeighbor(n) {
			t.Fatalf("expected %v to be a cardinal neighbour of %v", n, p)
		}
	}
	if p.IsCardinalNeighbor(P(3, 3)) {
		t.Fatalf("diagonal must not be a cardinal neighbour")
	}
	if p.IsCardinalNeighbor(p) {
		t.Fatalf("self must not be a cardinal neighbour")
	}
}
