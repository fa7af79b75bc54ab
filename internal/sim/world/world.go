package world

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"roguecloud.ai/internal/persistence/snapshot"
	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/ai"
	"roguecloud.ai/internal/sim/catalogs"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/events"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/view"
	"roguecloud.ai/internal/sim/worldgen"
	"roguecloud.ai/internal/sim/worldmap"
)

var (
	ErrDuplicateMessage = errors.New("world: message id already used")
	ErrStopped          = errors.New("world: stopped")
)

type JoinRequest struct {
	UserID   int64
	Username string
	// LastResponse is the highest message id the client has a response for; newer cached
	// responses are replayed in JoinResponse.
	LastResponse int64
	// Out receives encoded FrameUpdate messages. Nil joins without frames (bots in tests).
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Agent  *Agent
	Replay []protocol.ActionMessageResponse
	Err    error
}

type RecordedJoin struct {
	CreatureID int64  `json:"creature_id"`
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Reconnect  bool   `json:"reconnect,omitempty"`
}

// Agent is the handle a connection uses to act for its player creature. It is invalidated by
// Leave or by a newer connection of the same user.
type Agent struct {
	CreatureID int64
	UserID     int64
	Username   string

	slot      *action.Slot
	lastMsg   *atomic.Int64
	responses *responseCache
}

// Submit queues a for the next tick. Message ids must increase per player across
// reconnects; a reused id is rejected so a retransmitted message is not acted on twice.
func (a *Agent) Submit(messageID int64, act action.Action) (*action.Future, error) {
	for {
		last := a.lastMsg.Load()
		if messageID <= last {
			return nil, ErrDuplicateMessage
		}
		if a.lastMsg.CompareAndSwap(last, messageID) {
			break
		}
	}
	return a.slot.Submit(messageID, act)
}

func (a *Agent) Closed() bool { return a.slot.Closed() }

type player struct {
	creatureID int64
	userID     int64
	username   string
	score      int64

	dead     bool
	reviveAt uint64

	bestWeapon   int
	bestDefenses map[entity.ArmourSlot]int

	lastMsg   *atomic.Int64
	responses *responseCache
	agent     *Agent
}

func (p *player) slot() *action.Slot {
	if p.agent == nil {
		return nil
	}
	return p.agent.slot
}

type monster struct {
	creatureID int64
	home       geom.Position
	slot       *action.Slot
	dead       bool
	diedAt     uint64
}

type clientState struct {
	out     chan []byte
	session *view.Session
	agent   *Agent
}

// Published is the read-only state handed to other goroutines after every tick.
type Published struct {
	Tick          uint64
	Map           *worldmap.ArrayMap
	Dirty         []geom.Position
	FollowID      int64
	FollowPos     geom.Position
	RoundSecsLeft int
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg  WorldConfig
	cats *catalogs.Catalogs
	log  *zap.Logger
	rng  *rand.Rand

	tick atomic.Uint64

	m         *worldmap.ArrayMap
	creatures map[int64]*entity.Creature
	players   map[int64]*player
	byUser    map[int64]int64
	monsters  map[int64]*monster
	ground    map[int64]*entity.GroundObject
	clients   map[int64]*clientState

	nextCreature int64
	nextObject   int64
	nextEvent    int64

	events        *events.Log
	monsterEvents *events.Log
	machine       *ai.Machine

	// Per-tick scratch, reset by beginTick.
	dirty       []geom.Position
	dirtySet    map[geom.Position]struct{}
	tickEvents  []events.Event
	tickActions []RecordedAction

	follow followState

	roundEnds atomic.Int64

	join     chan JoinRequest
	leave    chan *Agent
	stop     chan struct{}
	stopOnce sync.Once

	published atomic.Pointer[Published]
	metrics   atomic.Value
	standings atomic.Value
	stepNanos atomic.Int64

	// Optional loggers (may be nil). Implemented in internal/persistence/log.
	tickLogger  TickLogger
	eventLogger EventLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1
}

// New generates a fresh world for one round and populates it with monsters and items.
func New(cfg WorldConfig, cats *catalogs.Catalogs, log *zap.Logger) (*World, error) {
	w, err := newEmpty(cfg, cats, log)
	if err != nil {
		return nil, err
	}
	w.m = worldgen.Generate(worldgen.DefaultParams(w.cfg.Width, w.cfg.Height, w.cfg.Seed), cats.Tiles)
	for len(w.monsters) < w.cfg.MonsterTarget {
		if !w.spawnMonster() {
			break
		}
	}
	for len(w.ground) < w.cfg.GroundItemTarget {
		if !w.spawnGroundItem() {
			break
		}
	}
	w.publish(0, w.m.CloneForRead())
	return w, nil
}

func newEmpty(cfg WorldConfig, cats *catalogs.Catalogs, log *zap.Logger) (*World, error) {
	if cats == nil {
		return nil, errors.New("world: nil catalogs")
	}
	if cats.Weapons.BareHands == nil {
		return nil, fmt.Errorf("world: catalogs lack %q", catalogs.BareHandsName)
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.applyDefaults()
	w := &World{
		cfg:           cfg,
		cats:          cats,
		log:           log.Named("world").With(zap.String("world_id", cfg.ID)),
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		creatures:     map[int64]*entity.Creature{},
		players:       map[int64]*player{},
		byUser:        map[int64]int64{},
		monsters:      map[int64]*monster{},
		ground:        map[int64]*entity.GroundObject{},
		clients:       map[int64]*clientState{},
		events:        events.NewLog(uint64(cfg.EventRetentionTicks)),
		monsterEvents: events.NewLog(uint64(cfg.MonsterEventRetentionTicks)),
		machine:       ai.NewMachine(cfg.AIWorkers, log),
		dirtySet:      map[geom.Position]struct{}{},
		join:          make(chan JoinRequest, 64),
		leave:         make(chan *Agent, 256),
		stop:          make(chan struct{}),
	}
	if !cfg.RoundEndsAt.IsZero() {
		w.roundEnds.Store(cfg.RoundEndsAt.UnixNano())
	}
	return w, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) RoundID() int64 { return w.cfg.RoundID }

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetEventLogger(l EventLogger) { w.eventLogger = l }

func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

// SetRoundEnd sets the wall-clock end reported in frames as roundSecsLeft.
func (w *World) SetRoundEnd(t time.Time) { w.roundEnds.Store(t.UnixNano()) }

func (w *World) roundSecsLeft() int {
	end := w.roundEnds.Load()
	if end == 0 {
		return 0
	}
	left := time.Until(time.Unix(0, end))
	if left <= 0 {
		return 0
	}
	return int(left.Round(time.Second) / time.Second)
}

// Published returns the state published after the latest tick.
func (w *World) Published() *Published { return w.published.Load() }

// Join registers (or reconnects) a user's player creature at the next tick boundary.
func (w *World) Join(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	req.Resp = make(chan JoinResponse, 1)
	select {
	case w.join <- req:
	case <-w.stop:
		return JoinResponse{}, ErrStopped
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		if resp.Err != nil {
			return JoinResponse{}, resp.Err
		}
		return resp, nil
	case <-w.stop:
		return JoinResponse{}, ErrStopped
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
}

// Leave disconnects a; its pending action is abandoned immediately and the creature stays in
// the world without a controller.
func (w *World) Leave(a *Agent) {
	if a == nil {
		return
	}
	a.slot.Close()
	select {
	case w.leave <- a:
	case <-w.stop:
	}
}

func (w *World) handleJoin(now uint64, req JoinRequest) (RecordedJoin, bool) {
	resp := JoinResponse{}
	defer func() {
		if req.Resp == nil {
			return
		}
		select {
		case req.Resp <- resp:
		default:
		}
	}()

	rec := RecordedJoin{UserID: req.UserID, Username: req.Username}
	var p *player
	if cid, ok := w.byUser[req.UserID]; ok {
		p = w.players[cid]
		if p.agent != nil {
			p.agent.slot.Close()
			delete(w.clients, cid)
		}
		rec.Reconnect = true
	} else {
		c, err := w.spawnPlayer(req.UserID, req.Username)
		if err != nil {
			resp.Err = err
			return rec, false
		}
		p = &player{
			creatureID:   c.ID(),
			userID:       req.UserID,
			username:     req.Username,
			bestWeapon:   w.cats.Weapons.BareHands.Rating(),
			bestDefenses: map[entity.ArmourSlot]int{},
			lastMsg:      new(atomic.Int64),
			responses:    &responseCache{},
		}
		w.players[c.ID()] = p
		w.byUser[req.UserID] = c.ID()
	}
	rec.CreatureID = p.creatureID

	agent := &Agent{
		CreatureID: p.creatureID,
		UserID:     p.userID,
		Username:   p.username,
		slot:       action.NewSlot(),
		lastMsg:    p.lastMsg,
		responses:  p.responses,
	}
	p.agent = agent
	if req.Out != nil {
		w.clients[p.creatureID] = &clientState{out: req.Out, session: view.NewSession(), agent: agent}
	}
	resp.Agent = agent
	resp.Replay = p.responses.after(req.LastResponse)
	w.log.Info("player joined",
		zap.Int64("user_id", req.UserID),
		zap.Int64("creature_id", p.creatureID),
		zap.Bool("reconnect", rec.Reconnect),
		zap.Uint64("tick", now))
	return rec, true
}

func (w *World) handleLeave(a *Agent) (int64, bool) {
	// Leaves recorded for replay arrive here without passing through Leave.
	a.slot.Close()
	p := w.players[a.CreatureID]
	if p == nil || p.agent != a {
		return 0, false
	}
	p.agent = nil
	delete(w.clients, a.CreatureID)
	w.log.Info("player left", zap.Int64("creature_id", a.CreatureID))
	return a.CreatureID, true
}

// Close stops the AI workers. Call it after Run has returned.
func (w *World) Close() {
	w.machine.Close()
	for _, p := range w.players {
		if p.agent != nil {
			p.agent.slot.Close()
		}
	}
}
