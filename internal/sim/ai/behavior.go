// Package ai drives monsters. Each monster has a Brain that looks at a read snapshot of the
// world and picks at most one action per decision.
package ai

import (
	"math/rand"

	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/events"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/path"
	"roguecloud.ai/internal/sim/worldmap"
)

type Behavior string

const (
	WanderAttack Behavior = "WANDER_ATTACK"
	WanderDefend Behavior = "WANDER_DEFEND"
	Guard        Behavior = "GUARD"
	StandRun     Behavior = "STAND_RUN"
)

func ValidBehavior(b Behavior) bool {
	switch b {
	case WanderAttack, WanderDefend, Guard, StandRun:
		return true
	}
	return false
}

const (
	// chaseReplanDistance is how close a target must be before the route is replanned every
	// decision instead of followed.
	chaseReplanDistance = 10
	guardSightRadius    = 10
	fleeDistance        = 10
	defendMemoryTurns   = 10
)

// View is what a monster sees. Map is a read snapshot; Events is the shared monster log.
type View struct {
	Map        worldmap.Map
	Self       *entity.Creature
	Events     *events.Log
	Tick       uint64
	ViewWidth  int
	ViewHeight int
	MaxTiles   int
}

func (v View) maxTiles() int {
	if v.MaxTiles <= 0 {
		return path.DefaultMaxTiles
	}
	return v.MaxTiles
}

// sight is the half-extent of the view box.
func (v View) sight() int {
	return max(1, max(v.ViewWidth, v.ViewHeight)/2)
}

// Brain decides a monster's next action. lastFailed reports whether its previous action was
// rejected. A Brain is only ever called from one goroutine at a time.
type Brain interface {
	Decide(v View, lastFailed bool) action.Action
}

// NewBrain returns the brain for b; unknown behaviours wander and attack.
func NewBrain(b Behavior, home geom.Position, rng *rand.Rand) Brain {
	switch b {
	case WanderDefend:
		return &wanderer{rng: rng, defendOnly: true}
	case Guard:
		return &guard{rng: rng, home: home}
	case StandRun:
		return &runner{rng: rng}
	default:
		return &wanderer{rng: rng}
	}
}

// find looks a creature up by id in the snapshot within radius of self, own tile included.
func find(v View, id int64, radius int) *entity.Creature {
	if id == 0 || id == v.Self.ID() {
		return nil
	}
	self := v.Self.Position()
	for y := self.Y - radius; y <= self.Y+radius; y++ {
		for x := self.X - radius; x <= self.X+radius; x++ {
			t := v.Map.Tile(geom.P(x, y))
			if t == nil {
				continue
			}
			if c := t.Creature(id); c != nil {
				return c
			}
		}
	}
	return nil
}

// stepToward plans a route to goal and returns the first step of it.
func stepToward(v View, goal geom.Position, rng *rand.Rand) ([]geom.Position, bool) {
	route := path.Fast(v.Map, v.Self.Position(), goal, v.maxTiles(), rng)
	if len(route) < 2 {
		return nil, false
	}
	return route[1:], true
}

// wanderer walks to random points and attacks the nearest creature it sees, or, when
// defendOnly is set, only creatures that recently attacked it.
type wanderer struct {
	rng        *rand.Rand
	defendOnly bool

	target int64
	route  []geom.Position
}

func (w *wanderer) Decide(v View, lastFailed bool) action.Action {
	if v.Self.IsDead() {
		return nil
	}
	if lastFailed {
		w.route = nil
	}
	if w.target != 0 {
		if a := w.attack(v); a != nil {
			return a
		}
	}
	if t := w.pickTarget(v); t != 0 {
		w.target = t
		w.route = nil
		if a := w.attack(v); a != nil {
			return a
		}
	}
	return w.wander(v)
}

func (w *wanderer) pickTarget(v View) int64 {
	self := v.Self
	if w.defendOnly {
		for _, e := range v.Events.LastTurnsSelf(defendMemoryTurns, self.ID(), v.Tick) {
			c, ok := e.(events.Combat)
			if !ok || c.DefenderID != self.ID() {
				continue
			}
			if find(v, c.AttackerID, v.sight()) != nil {
				return c.AttackerID
			}
		}
		return 0
	}
	box := geom.CenterOn(self.Position(), v.ViewWidth, v.ViewHeight, v.Map.Width(), v.Map.Height())
	if cs := path.CreaturesIn(v.Map, box, self.Position()); len(cs) > 0 {
		for _, c := range cs {
			if c.ID() != self.ID() {
				return c.ID()
			}
		}
	}
	return 0
}

func (w *wanderer) attack(v View) action.Action {
	target := find(v, w.target, v.sight())
	if target == nil || target.IsDead() {
		w.target = 0
		w.route = nil
		return nil
	}
	self := v.Self.Position()
	if path.CanReach(v.Map, self, target.Position()) {
		return action.Combat{TargetCreatureID: target.ID()}
	}
	if self.Manhattan(target.Position()) > chaseReplanDistance && len(w.route) > 0 {
		next := w.route[0]
		w.route = w.route[1:]
		return action.Step{Destination: next}
	}
	route, ok := stepToward(v, target.Position(), w.rng)
	if !ok {
		w.target = 0
		w.route = nil
		return nil
	}
	w.route = route[1:]
	return action.Step{Destination: route[0]}
}

func (w *wanderer) wander(v View) action.Action {
	if len(w.route) == 0 {
		box := geom.Box{X: 0, Y: 0, W: v.Map.Width(), H: v.Map.Height()}
		goal, ok := path.RandomPassable(v.Map, box, false, w.rng)
		if !ok {
			return nil
		}
		route, ok := stepToward(v, goal, w.rng)
		if !ok {
			return nil
		}
		w.route = route
	}
	next := w.route[0]
	w.route = w.route[1:]
	return action.Step{Destination: next}
}

type guardState int

const (
	guarding guardState = iota
	chasing
	returning
	stuck
)

// guard stands on its home tile and chases players that come within sight, then walks back.
type guard struct {
	rng  *rand.Rand
	home geom.Position

	state  guardState
	target int64
	route  []geom.Position
}

func (g *guard) Decide(v View, lastFailed bool) action.Action {
	if v.Self.IsDead() {
		return nil
	}
	if lastFailed {
		g.route = nil
	}
	if g.state == guarding {
		for _, c := range path.CreaturesWithin(v.Map, v.Self.Position(), guardSightRadius) {
			if c.IsPlayerCreature() {
				g.state, g.target, g.route = chasing, c.ID(), nil
				break
			}
		}
	}
	switch g.state {
	case chasing:
		return g.chase(v)
	case returning:
		return g.walkHome(v)
	}
	return nil
}

func (g *guard) chase(v View) action.Action {
	target := find(v, g.target, v.sight())
	if target == nil || target.IsDead() {
		g.state, g.target, g.route = returning, 0, nil
		return nil
	}
	self := v.Self.Position()
	if path.CanReach(v.Map, self, target.Position()) {
		g.route = nil
		return action.Combat{TargetCreatureID: target.ID()}
	}
	if self.Manhattan(target.Position()) > chaseReplanDistance && len(g.route) > 0 {
		next := g.route[0]
		g.route = g.route[1:]
		return action.Step{Destination: next}
	}
	route, ok := stepToward(v, target.Position(), g.rng)
	if !ok {
		return nil
	}
	g.route = route[1:]
	return action.Step{Destination: route[0]}
}

func (g *guard) walkHome(v View) action.Action {
	if v.Self.Position() == g.home {
		g.state, g.route = guarding, nil
		return nil
	}
	if len(g.route) == 0 {
		route, ok := stepToward(v, g.home, g.rng)
		if !ok {
			g.state = stuck
			return nil
		}
		g.route = route
	}
	next := g.route[0]
	g.route = g.route[1:]
	return action.Step{Destination: next}
}

// runner stands still until attacked, then runs away from the attacker until it is far enough.
type runner struct {
	rng       *rand.Rand
	fleeingID int64
}

func (r *runner) Decide(v View, _ bool) action.Action {
	self := v.Self
	if self.IsDead() {
		return nil
	}
	if r.fleeingID == 0 {
		for _, e := range v.Events.LastTurnSelf(self.ID(), v.Tick) {
			if c, ok := e.(events.Combat); ok && c.DefenderID == self.ID() {
				r.fleeingID = c.AttackerID
				break
			}
		}
	}
	if r.fleeingID == 0 {
		return nil
	}
	attacker := find(v, r.fleeingID, fleeDistance)
	if attacker == nil || attacker.Position().Manhattan(self.Position()) > fleeDistance {
		r.fleeingID = 0
		return nil
	}
	if p, ok := r.away(v, attacker.Position()); ok {
		return action.Step{Destination: p}
	}
	if p, ok := r.anyStep(v); ok {
		return action.Step{Destination: p}
	}
	return nil
}

func (r *runner) away(v View, from geom.Position) (geom.Position, bool) {
	self := v.Self.Position()
	dx, dy := sign(self.X-from.X), sign(self.Y-from.Y)
	if dx != 0 && dy != 0 {
		if r.rng.Intn(2) == 0 {
			dx = 0
		} else {
			dy = 0
		}
	}
	if dx == 0 && dy == 0 {
		mag := 1 - 2*r.rng.Intn(2)
		if r.rng.Intn(2) == 0 {
			dx = mag
		} else {
			dy = mag
		}
	}
	p := self.Add(dx, dy)
	t := v.Map.Tile(p)
	if t == nil || !t.Passable() {
		return geom.Position{}, false
	}
	return p, true
}

func (r *runner) anyStep(v View) (geom.Position, bool) {
	ns := v.Self.Position().CardinalNeighbors()
	off := r.rng.Intn(len(ns))
	for i := range ns {
		p := ns[(i+off)%len(ns)]
		if t := v.Map.Tile(p); t != nil && t.Passable() {
			return p, true
		}
	}
	return geom.Position{}, false
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
