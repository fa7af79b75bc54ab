// Package view decides what part of the world each viewer must be sent every tick and encodes
// it: a full frame after a discontinuity, exposed strips after a straight scroll, and single
// dirty tiles otherwise.
package view

import "roguecloud.ai/internal/sim/geom"

// Plan lists the world regions to encode for one frame.
type Plan struct {
	Viewport geom.Box
	Full     bool
	Regions  []geom.Box
}

// TileCount is the number of tile entries the plan encodes.
func (p Plan) TileCount() int {
	n := 0
	for _, r := range p.Regions {
		n += r.Area()
	}
	return n
}

// Tracker remembers the last viewport sent to one viewer. The zero value is not usable;
// call NewTracker.
type Tracker struct {
	prevX, prevY int
	prevW, prevH int
	forceFull    bool
}

func NewTracker() *Tracker {
	return &Tracker{prevX: -1, prevY: -1}
}

// ForceFull makes the next plan a full frame, e.g. after a reconnect or a revival.
func (t *Tracker) ForceFull() { t.forceFull = true }

func (t *Tracker) Reset() {
	*t = Tracker{prevX: -1, prevY: -1}
}

// Next plans the frame for viewport v and records v as sent. Dirty positions outside v, or
// already covered by an exposed strip, are skipped.
func (t *Tracker) Next(v geom.Box, dirty []geom.Position) Plan {
	dx, dy := v.X-t.prevX, v.Y-t.prevY
	full := t.forceFull ||
		t.prevX == -1 || t.prevY == -1 ||
		v.W != t.prevW || v.H != t.prevH ||
		(dx != 0 && dy != 0) ||
		abs(dx) >= v.W || abs(dy) >= v.H

	t.prevX, t.prevY, t.prevW, t.prevH = v.X, v.Y, v.W, v.H
	t.forceFull = false

	if full {
		return Plan{Viewport: v, Full: true, Regions: []geom.Box{v}}
	}

	p := Plan{Viewport: v}
	switch {
	case dx > 0:
		p.Regions = append(p.Regions, geom.Box{X: v.X + v.W - dx, Y: v.Y, W: dx, H: v.H})
	case dx < 0:
		p.Regions = append(p.Regions, geom.Box{X: v.X, Y: v.Y, W: -dx, H: v.H})
	case dy > 0:
		p.Regions = append(p.Regions, geom.Box{X: v.X, Y: v.Y + v.H - dy, W: v.W, H: dy})
	case dy < 0:
		p.Regions = append(p.Regions, geom.Box{X: v.X, Y: v.Y, W: v.W, H: -dy})
	}

	seen := make(map[geom.Position]struct{}, len(dirty))
	for _, d := range dirty {
		if !v.Contains(d) {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		if len(p.Regions) > 0 && p.Regions[0].Contains(d) {
			continue
		}
		p.Regions = append(p.Regions, geom.Box{X: d.X, Y: d.Y, W: 1, H: 1})
	}
	return p
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
