package worldtest

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"roguecloud.ai/internal/persistence/snapshot"
	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/catalogs"
	"roguecloud.ai/internal/sim/geom"
	world "roguecloud.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues a JoinRequest via StepOnce()
// - Act()/Step() submit actions through the agent and advance one tick
// - Per-player Out channels carry frame JSON
// - Snapshot/Debug* helpers provide deterministic preconditions
//
// It avoids world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	Default *world.Agent

	sessions map[int64]*session
	nextUser int64
}

func LoadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func NewHarness(t *testing.T, cfg world.WorldConfig, cats *catalogs.Catalogs, username string) *Harness {
	t.Helper()

	w, err := world.New(cfg, cats, zap.NewNop())
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, cats, username)
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world instance.
// This is useful for snapshot round-trip tests where the snapshot is imported before join.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs, username string) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	t.Cleanup(w.Close)

	h := &Harness{
		T:        t,
		Cats:     cats,
		W:        w,
		sessions: map[int64]*session{},
	}
	h.Default = h.Join(username)
	return h
}

type session struct {
	agent     *world.Agent
	out       chan []byte
	nextMsg   int64
	lastFrame protocol.FrameUpdate
}

// Join connects a new user. Reconnecting an existing username reuses its user id.
func (h *Harness) Join(username string) *world.Agent {
	h.T.Helper()
	for _, s := range h.sessions {
		if s.agent.Username == username {
			return h.rejoin(s.agent.UserID, username)
		}
	}
	h.nextUser++
	return h.rejoin(h.nextUser, username)
}

// Reconnect re-joins as a's user and returns the replayed responses.
func (h *Harness) Reconnect(a *world.Agent, lastResponse int64) (*world.Agent, []protocol.ActionMessageResponse) {
	h.T.Helper()
	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce([]world.JoinRequest{{UserID: a.UserID, Username: a.Username, LastResponse: lastResponse, Out: out, Resp: resp}}, nil)
	jr := <-resp
	if jr.Err != nil {
		h.T.Fatalf("reconnect: %v", jr.Err)
	}
	prev := h.sessions[a.CreatureID]
	s := &session{agent: jr.Agent, out: out}
	if prev != nil {
		s.nextMsg = prev.nextMsg
	}
	h.sessions[jr.Agent.CreatureID] = s
	h.drainAll()
	return jr.Agent, jr.Replay
}

func (h *Harness) rejoin(userID int64, username string) *world.Agent {
	h.T.Helper()
	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce([]world.JoinRequest{{UserID: userID, Username: username, Out: out, Resp: resp}}, nil)
	jr := <-resp
	if jr.Err != nil {
		h.T.Fatalf("join %q: %v", username, jr.Err)
	}
	h.sessions[jr.Agent.CreatureID] = &session{agent: jr.Agent, out: out}
	h.drainAll()
	return jr.Agent
}

func (h *Harness) LastFrame() protocol.FrameUpdate {
	return h.LastFrameFor(h.Default)
}

func (h *Harness) LastFrameFor(a *world.Agent) protocol.FrameUpdate {
	h.T.Helper()
	s := h.sessions[a.CreatureID]
	if s == nil {
		h.T.Fatalf("unknown creature id: %d", a.CreatureID)
	}
	return s.lastFrame
}

// Submit queues act for a with the next message id without advancing the world.
func (h *Harness) Submit(a *world.Agent, act action.Action) *action.Future {
	h.T.Helper()
	s := h.sessions[a.CreatureID]
	s.nextMsg++
	f, err := a.Submit(s.nextMsg, act)
	if err != nil {
		h.T.Fatalf("submit %s: %v", act.Kind(), err)
	}
	return f
}

// Act submits act for a, advances one tick and returns the resolved response.
func (h *Harness) Act(a *world.Agent, act action.Action) action.Response {
	h.T.Helper()
	f := h.Submit(a, act)
	h.StepNoop()
	r, ok := f.Poll()
	if !ok {
		h.T.Fatalf("%s unresolved after one tick", act.Kind())
	}
	return r
}

func (h *Harness) Step(act action.Action) action.Response {
	return h.Act(h.Default, act)
}

func (h *Harness) StepNoop() (tick uint64, digest string) {
	h.T.Helper()
	tick, digest = h.W.StepOnce(nil, nil)
	h.drainAll()
	return tick, digest
}

func (h *Harness) Leave(a *world.Agent) {
	h.T.Helper()
	h.W.StepOnce(nil, []*world.Agent{a})
	delete(h.sessions, a.CreatureID)
}

func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	// Keep tick stable: export at currentTick-1 then import would restore to currentTick.
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

func (h *Harness) Pos(a *world.Agent) geom.Position {
	h.T.Helper()
	c, ok := h.W.DebugCreature(a.CreatureID)
	if !ok {
		h.T.Fatalf("creature %d missing", a.CreatureID)
	}
	return c.Position()
}

func (h *Harness) SetPos(a *world.Agent, p geom.Position) {
	h.T.Helper()
	if ok := h.W.DebugSetCreaturePos(a.CreatureID, p); !ok {
		h.T.Fatalf("DebugSetCreaturePos(%d, %v) returned false", a.CreatureID, p)
	}
}

// ClearAround makes every tile within r of p passable grass.
func (h *Harness) ClearAround(p geom.Position, r int) {
	h.T.Helper()
	for x := p.X - r; x <= p.X+r; x++ {
		for y := p.Y - r; y <= p.Y+r; y++ {
			h.W.DebugSetTerrain(geom.P(x, y), true, "grass")
		}
	}
}

func (h *Harness) drainAll() {
	h.T.Helper()
	for _, s := range h.sessions {
		h.drainOne(s)
	}
}

func (h *Harness) drainOne(s *session) {
	h.T.Helper()
	var last []byte
	for {
		select {
		case b := <-s.out:
			last = b
			continue
		default:
		}
		break
	}
	if len(last) == 0 {
		return
	}
	var f protocol.FrameUpdate
	if err := json.Unmarshal(last, &f); err != nil {
		h.T.Fatalf("unmarshal frame: %v", err)
	}
	s.lastFrame = f
}
