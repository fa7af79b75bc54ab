package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"roguecloud.ai/internal/persistence/snapshot"
	"roguecloud.ai/internal/sim/encoding"
)

type cropBox struct{ X, Y, W, H int }

// snapshotMap is a decoded snapshot ready for drawing. Cells are column-major (x*height+y),
// the order snapshots store layers in.
type snapshotMap struct {
	width, height int
	passable      []bool
	marks         map[int]byte
}

func newSnapshotMap(s snapshot.SnapshotV1) (*snapshotMap, error) {
	n := s.Width * s.Height
	passable, err := encoding.DecodeBools(s.Passable, n)
	if err != nil {
		return nil, fmt.Errorf("passable layer: %w", err)
	}
	m := &snapshotMap{width: s.Width, height: s.Height, passable: passable, marks: map[int]byte{}}
	for _, p := range s.Props {
		if m.in(p.X, p.Y) {
			if p.Open {
				m.marks[m.index(p.X, p.Y)] = '\''
			} else {
				m.marks[m.index(p.X, p.Y)] = '+'
			}
		}
	}
	for _, g := range s.GroundObjects {
		if m.in(g.X, g.Y) {
			m.marks[m.index(g.X, g.Y)] = objectGlyph(g.Object.Kind)
		}
	}
	// Creatures draw over items; players over monsters.
	for _, c := range s.Creatures {
		if !m.in(c.X, c.Y) || c.HP <= 0 {
			continue
		}
		i := m.index(c.X, c.Y)
		switch {
		case c.Player:
			m.marks[i] = '@'
		case m.marks[i] != '@':
			m.marks[i] = 'M'
		}
	}
	return m, nil
}

func (m *snapshotMap) in(x, y int) bool { return x >= 0 && y >= 0 && x < m.width && y < m.height }

func (m *snapshotMap) index(x, y int) int { return x*m.height + y }

func (m *snapshotMap) glyph(x, y int) byte {
	i := m.index(x, y)
	if g, ok := m.marks[i]; ok {
		return g
	}
	if m.passable[i] {
		return '.'
	}
	return '#'
}

// Render draws the map one row per line, clipped to crop. A zero crop size means the whole map.
func (m *snapshotMap) Render(w io.Writer, crop cropBox) error {
	x0, y0 := max(crop.X, 0), max(crop.Y, 0)
	x1, y1 := m.width, m.height
	if crop.W > 0 {
		x1 = min(x0+crop.W, m.width)
	}
	if crop.H > 0 {
		y1 = min(y0+crop.H, m.height)
	}
	bw := bufio.NewWriter(w)
	row := make([]byte, 0, max(x1-x0, 0)+1)
	for y := y0; y < y1; y++ {
		row = row[:0]
		for x := x0; x < x1; x++ {
			row = append(row, m.glyph(x, y))
		}
		row = append(row, '\n')
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func objectGlyph(kind string) byte {
	switch kind {
	case "WEAPON":
		return '/'
	case "ARMOUR":
		return '['
	case "ITEM":
		return '!'
	default:
		return '?'
	}
}

// writeCreatureTable lists players first (by score), then monsters by id.
func writeCreatureTable(w io.Writer, s snapshot.SnapshotV1) error {
	scores := map[int64]snapshot.PlayerV1{}
	for _, p := range s.Players {
		scores[p.CreatureID] = p
	}
	cs := append([]snapshot.CreatureV1(nil), s.Creatures...)
	sort.Slice(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Player != b.Player {
			return a.Player
		}
		if a.Player && scores[a.ID].Score != scores[b.ID].Score {
			return scores[a.ID].Score > scores[b.ID].Score
		}
		return a.ID < b.ID
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tPOS\tHP\tLEVEL\tWEAPON\tARMOUR\tITEMS\tSCORE")
	for _, c := range cs {
		kind, score := c.Behavior, "-"
		if c.Player {
			p := scores[c.ID]
			kind = "player"
			if p.Dead {
				kind = "player(dead)"
			}
			score = fmt.Sprint(p.Score)
		}
		if kind == "" {
			kind = "monster"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t(%d,%d)\t%d/%d\t%d\t%d\t%d\t%d\t%s\n",
			c.ID, c.Name, kind, c.X, c.Y, c.HP, c.MaxHP, c.Level, c.WeaponID, len(c.ArmourIDs), len(c.Inventory), score)
	}
	return tw.Flush()
}
