// Package client is the agent SDK: it connects to the agent websocket endpoint, keeps a
// memory of observed tiles and recent events, and turns action responses into futures.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/events"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

var ErrNotConnected = errors.New("client: not connected")

// RejectedError is returned by Run when the server refuses the connection for a reason that
// retrying will not fix.
type RejectedError struct{ Result string }

func (e *RejectedError) Error() string { return "client: connect rejected: " + e.Result }

type Config struct {
	URL      string
	Username string
	Password string
	// UUID identifies this client process; empty generates one.
	UUID string

	MinBackoff     time.Duration
	MaxBackoff     time.Duration
	EventRetention uint64

	Log *zap.Logger
}

// FrameFunc is called on the connection's reader goroutine for every frame, after the
// client's memory and event log have absorbed it.
type FrameFunc func(ctx context.Context, c *Client, f protocol.FrameUpdate)

type Client struct {
	cfg Config
	log *zap.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	roundID    int64
	creatureID int64
	nextMsg    int64
	lastResp   int64
	pending    map[int64]*action.Future
	self       protocol.SelfState
	visible    []protocol.Creature
	objects    []protocol.GroundObject
	lastFrame  uint64
	connected  bool
	initial    bool

	writeMu sync.Mutex

	memory *worldmap.MemoryMap
	events *events.Log
	// defs holds the object definitions received this round, by kind and object id.
	defs map[entity.ObjectKind]map[int64]entity.Object
}

func New(cfg Config) *Client {
	if cfg.UUID == "" {
		cfg.UUID = uuid.NewString()
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.EventRetention == 0 {
		cfg.EventRetention = 100
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		log:     cfg.Log.Named("client"),
		pending: map[int64]*action.Future{},
		initial: true,
		events:  events.NewLog(cfg.EventRetention),
		memory:  worldmap.NewMemoryMap(0, 0),
		defs:    map[entity.ObjectKind]map[int64]entity.Object{},
	}
}

// Run connects and reads until ctx ends, reconnecting with exponential backoff. It returns a
// *RejectedError for bad credentials or an incompatible client version.
func (c *Client) Run(ctx context.Context, onFrame FrameFunc) error {
	backoff := c.cfg.MinBackoff
	for {
		err := c.connectAndRead(ctx, onFrame)
		var rej *RejectedError
		if errors.As(err, &rej) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Debug("disconnected", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if err == nil {
			backoff = c.cfg.MinBackoff
			continue
		}
		backoff = min(backoff*2, c.cfg.MaxBackoff)
	}
}

func (c *Client) connectAndRead(ctx context.Context, onFrame FrameFunc) error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.DialContext(ctx, c.cfg.URL, http.Header{})
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.mu.Lock()
	hello := protocol.ClientConnect{
		Type:           protocol.TypeClientConnect,
		UUID:           c.cfg.UUID,
		Username:       c.cfg.Username,
		Password:       c.cfg.Password,
		ClientVersion:  protocol.Version,
		InitialConnect: c.initial,
	}
	if c.roundID != 0 {
		last := c.lastResp
		hello.LastActionResponseReceived = &last
	}
	c.mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(hello); err != nil {
		return err
	}
	var welcome protocol.ClientConnectResponse
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		return err
	}
	switch welcome.ConnectResult {
	case protocol.ConnectSuccess:
	case protocol.ConnectFailInvalidCredentials, protocol.ConnectFailInvalidClientAPIVersion:
		return &RejectedError{Result: welcome.ConnectResult}
	default:
		return fmt.Errorf("connect: %s", welcome.ConnectResult)
	}
	c.attach(conn, welcome)
	defer c.detach(conn)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseGoingAway {
				return nil
			}
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeFrameUpdate:
			var f protocol.FrameUpdate
			if err := json.Unmarshal(msg, &f); err != nil {
				c.log.Warn("bad frame", zap.Error(err))
				continue
			}
			c.applyFrame(f)
			if onFrame != nil {
				onFrame(ctx, c, f)
			}
		case protocol.TypeActionMessageResponse:
			var r protocol.ActionMessageResponse
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			c.resolve(r)
		case protocol.TypeError:
			var e protocol.ErrorMessage
			if err := json.Unmarshal(msg, &e); err == nil {
				c.log.Warn("server error", zap.String("code", e.Code), zap.String("message", e.Message), zap.Int64("message_id", e.MessageID))
			}
		}
	}
}

func (c *Client) attach(conn *websocket.Conn, w protocol.ClientConnectResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var round int64
	if w.RoundEntered != nil {
		round = *w.RoundEntered
	}
	if round != c.roundID {
		// A new round is a new world: nothing carries over.
		for id, f := range c.pending {
			f.Abandon()
			delete(c.pending, id)
		}
		c.nextMsg = 0
		c.lastResp = 0
		c.lastFrame = 0
		c.memory = worldmap.NewMemoryMap(w.WorldWidth, w.WorldHeight)
		c.events = events.NewLog(c.cfg.EventRetention)
		c.defs = map[entity.ObjectKind]map[int64]entity.Object{}
	}
	c.roundID = round
	c.creatureID = w.CreatureID
	c.conn = conn
	c.connected = true
	c.initial = false
	c.log.Info("connected", zap.Int64("round_id", round), zap.Int64("creature_id", w.CreatureID))
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
}

func (c *Client) applyFrame(f protocol.FrameUpdate) {
	ws := f.WorldState
	c.mu.Lock()
	mem, log := c.memory, c.events
	c.self = f.SelfState
	c.visible = ws.VisibleCreatures
	c.objects = ws.VisibleObjects
	c.lastFrame = f.Frame
	c.learnDefs(ws)
	objects := make([]*entity.GroundObject, 0, len(ws.VisibleObjects))
	for _, g := range ws.VisibleObjects {
		obj := c.defs[entity.ObjectKind(g.Kind)][g.ObjectID]
		if obj == nil {
			c.log.Debug("ground object without definition", zap.String("kind", g.Kind), zap.Int64("object_id", g.ObjectID))
			continue
		}
		objects = append(objects, g.Entity(obj))
	}
	c.mu.Unlock()

	// Every tile in the viewport is rebuilt from this frame: patched tiles take their new
	// terrain, the rest keep what was remembered with occupants cleared. Tiles outside the
	// viewport keep their last contents and tick.
	viewport := geom.Box{X: ws.ClientViewPosX, Y: ws.ClientViewPosY, W: ws.ClientViewWidth, H: ws.ClientViewHeight}
	fresh := map[geom.Position]*worldmap.Tile{}
	for _, patch := range ws.FrameData {
		if patch.W <= 0 {
			continue
		}
		for i, td := range patch.Tiles {
			fresh[geom.P(patch.X+i%patch.W, patch.Y+i/patch.W)] = frameTile(td)
		}
	}
	for y := viewport.Y; y < viewport.Y+viewport.H; y++ {
		for x := viewport.X; x < viewport.X+viewport.W; x++ {
			p := geom.P(x, y)
			if fresh[p] != nil {
				continue
			}
			if old := mem.Tile(p); old != nil {
				fresh[p] = old.Vacated()
			}
		}
	}
	for _, cr := range ws.VisibleCreatures {
		if t := fresh[cr.Position.Geom()]; t != nil {
			t.AddCreature(cr.Entity())
		}
	}
	for _, g := range objects {
		if t := fresh[g.Pos]; t != nil {
			t.AddGroundObject(g)
		}
	}
	for p, t := range fresh {
		mem.Observe(p, t, f.Frame)
	}

	for _, we := range ws.Events {
		e, err := we.Domain()
		if err != nil {
			continue
		}
		log.Add(e)
	}
	log.Purge(f.Frame)
}

// learnDefs records the object definitions carried by ws. Callers hold c.mu.
func (c *Client) learnDefs(ws protocol.WorldState) {
	add := func(o entity.Object) {
		byID := c.defs[o.Kind()]
		if byID == nil {
			byID = map[int64]entity.Object{}
			c.defs[o.Kind()] = byID
		}
		byID[o.ObjectID()] = o
	}
	for _, d := range ws.Weapons {
		add(d.Entity())
	}
	for _, d := range ws.Armours {
		add(d.Entity())
	}
	for _, d := range ws.Drinkables {
		add(d.Entity())
	}
}

func frameTile(td protocol.TileData) *worldmap.Tile {
	terrain := make([]entity.TileType, 0, len(td.Terrain))
	for _, t := range td.Terrain {
		terrain = append(terrain, t.Entity())
	}
	t := worldmap.NewTile(td.Passable, terrain...)
	if len(td.Props) > 0 {
		props := make([]worldmap.Property, 0, len(td.Props))
		for _, p := range td.Props {
			props = append(props, worldmap.Property{Kind: worldmap.PropertyKind(p.Kind), Open: p.Open})
		}
		t.SetProperties(props)
	}
	return t
}

func (c *Client) resolve(r protocol.ActionMessageResponse) {
	resp, err := protocol.DecodeResponse(r.Response)
	c.mu.Lock()
	if r.MessageID > c.lastResp {
		c.lastResp = r.MessageID
	}
	f := c.pending[r.MessageID]
	delete(c.pending, r.MessageID)
	c.mu.Unlock()
	if f == nil {
		return
	}
	if err != nil {
		c.log.Warn("bad response", zap.Int64("message_id", r.MessageID), zap.Error(err))
		f.Resolve(action.Failure(f.Action()))
		return
	}
	f.Resolve(resp)
}

// Submit sends a for the next tick. The future resolves when the server's response arrives;
// it is abandoned if the round ends first.
func (c *Client) Submit(a action.Action) (*action.Future, error) {
	if a == nil {
		a = action.Null{}
	}
	raw, err := protocol.EncodeAction(a)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.nextMsg++
	id := c.nextMsg
	f := action.NewFuture(id, a)
	c.pending[id] = f
	c.mu.Unlock()

	msg := protocol.ActionMessage{Type: protocol.TypeActionMessage, MessageID: id, Action: raw}
	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	err = conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		// Kept pending: a reconnect within the round replays the response if the server got it.
		return f, fmt.Errorf("send action: %w", err)
	}
	return f, nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) RoundID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roundID
}

func (c *Client) CreatureID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creatureID
}

func (c *Client) Self() protocol.SelfState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

func (c *Client) Position() geom.Position {
	return c.Self().Creature.Position.Geom()
}

// Visible returns the creatures and ground objects of the latest frame.
func (c *Client) Visible() ([]protocol.Creature, []protocol.GroundObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Creature(nil), c.visible...), append([]protocol.GroundObject(nil), c.objects...)
}

func (c *Client) Frame() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFrame
}

// Memory is every tile observed this round.
func (c *Client) Memory() *worldmap.MemoryMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memory
}

func (c *Client) Events() *events.Log {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}
