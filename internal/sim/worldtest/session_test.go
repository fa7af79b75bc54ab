package worldtest

import (
	"errors"
	"testing"
	"time"

	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/geom"
	world "roguecloud.ai/internal/sim/world"
)

func openHarness(t *testing.T) *Harness {
	t.Helper()
	h := NewHarness(t, world.WorldConfig{ID: "test", Seed: 1, Width: 40, Height: 30}, LoadCatalogs(t), "alice")
	h.ClearAround(geom.P(10, 10), 3)
	h.SetPos(h.Default, geom.P(10, 10))
	return h
}

func TestReconnect_ReplaysNewerResponsesAndFullFrame(t *testing.T) {
	h := openHarness(t)
	h.Step(action.Step{Destination: geom.P(10, 11)})
	h.Step(action.Step{Destination: geom.P(10, 12)})
	h.Step(action.Step{Destination: geom.P(11, 12)})
	if h.LastFrame().IsFull {
		t.Fatalf("steady-state frame should be incremental")
	}

	a, replay := h.Reconnect(h.Default, 1)
	if a.CreatureID != h.Default.CreatureID {
		t.Fatalf("reconnect changed creature")
	}
	if len(replay) != 2 || replay[0].MessageID != 2 || replay[1].MessageID != 3 {
		t.Fatalf("replay: %+v", replay)
	}
	if !h.LastFrameFor(a).IsFull {
		t.Fatalf("frame after reconnect must be full")
	}
	if got := h.LastFrameFor(a).SelfState.Creature.Position; got.X != 11 || got.Y != 12 {
		t.Fatalf("self position %+v", got)
	}
}

func TestFrame_ReportsOwnStepEvent(t *testing.T) {
	h := openHarness(t)
	h.Step(action.Step{Destination: geom.P(9, 10)})
	f := h.LastFrame()
	found := false
	for _, e := range f.WorldState.Events {
		if e.CreatureID == h.Default.CreatureID {
			found = true
		}
	}
	if !found {
		t.Fatalf("own step event missing from frame: %+v", f.WorldState.Events)
	}
}

func TestTwoPlayers_FightToTheDeath(t *testing.T) {
	h := openHarness(t)
	bob := h.Join("bob")
	h.SetPos(bob, geom.P(10, 11))
	h.W.DebugSetHP(bob.CreatureID, 1)
	axe, _ := h.W.DebugGive(h.Default.CreatureID, h.Cats.Weapons.ByID[6])
	h.Step(action.Equip{ObjectID: axe})

	var r action.CombatResponse
	for i := 0; i < 50; i++ {
		r = h.Step(action.Combat{TargetCreatureID: bob.CreatureID}).(action.CombatResponse)
		if r.Result == action.CombatHit {
			break
		}
	}
	if r.Result != action.CombatHit {
		t.Fatalf("never hit bob")
	}
	c, _ := h.W.DebugCreature(bob.CreatureID)
	if !c.IsDead() {
		t.Fatalf("bob survived")
	}
	// bob's submissions while dead are rejected, not errors.
	if r := h.Act(bob, action.Step{Destination: c.Position().Add(0, 1)}).(action.StepResponse); r.Success {
		t.Fatalf("dead player moved")
	}
	score, _ := h.W.DebugScore(h.Default.CreatureID)
	if score < 1000 {
		t.Fatalf("killer score %d", score)
	}
}

func TestLeave_CreatureStaysWithoutController(t *testing.T) {
	h := openHarness(t)
	bob := h.Join("bob")
	h.Leave(bob)
	if _, err := bob.Submit(100, action.Null{}); err != action.ErrDisconnected {
		t.Fatalf("submit after leave: %v", err)
	}
	if _, ok := h.W.DebugCreature(bob.CreatureID); !ok {
		t.Fatalf("creature removed on leave")
	}
	h.StepNoop()
	if m := h.W.Metrics(); m.Clients != 1 || m.Players != 2 {
		t.Fatalf("metrics: %+v", m)
	}
}

func TestLeave_AbandonsQueuedAction(t *testing.T) {
	h := openHarness(t)
	bob := h.Join("bob")
	f := h.Submit(bob, action.Step{Destination: h.Pos(bob).Add(1, 0)})
	h.Leave(bob)
	h.StepNoop()
	if _, err := f.WaitTimeout(200 * time.Millisecond); !errors.Is(err, action.ErrDisconnected) {
		t.Fatalf("queued action after leave: %v", err)
	}
	if f.Received() {
		t.Fatalf("abandoned action reported a response")
	}
}
