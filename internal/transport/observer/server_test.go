package observer

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"roguecloud.ai/internal/persistence/db"
	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/catalogs"
	"roguecloud.ai/internal/sim/rounds"
	"roguecloud.ai/internal/sim/tuning"
)

func newRounds(t *testing.T) *rounds.Manager {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune := tuning.Defaults()
	tune.TickMs = 20
	tune.World = tuning.Size{Width: 50, Height: 50}
	tune.BrowserView = tuning.Size{Width: 20, Height: 16}
	tune.MonsterTarget = 3
	tune.GroundItemTarget = 3
	tune.AIWorkers = 0
	tune.SnapshotEveryTicks = 0
	m := rounds.NewManager(rounds.Config{RoundLength: time.Minute, Tuning: tune, Seed: 9}, cats, db.NewMemory(), zap.NewNop())
	t.Cleanup(func() { _ = m.EndRound(context.Background()) })
	return m
}

func dial(t *testing.T, m *rounds.Manager) (*Server, *websocket.Conn) {
	t.Helper()
	s := NewServer(m, 5*time.Millisecond, zap.NewNop())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.SetReadLimit(8 << 20)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return s, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.BrowserFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, b, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f protocol.BrowserFrame
	if err := json.Unmarshal(b, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return f
}

func TestStream_FirstFrameFullThenAdvances(t *testing.T) {
	m := newRounds(t)
	if _, err := m.StartRound(context.Background()); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	s, conn := dial(t, m)

	first := readFrame(t, conn)
	if first.Type != protocol.TypeBrowserFrame || !first.FullSent {
		t.Fatalf("first frame: type=%s full=%v", first.Type, first.FullSent)
	}
	if first.CurrViewWidth != 20 || first.CurrViewHeight != 16 {
		t.Fatalf("view size: %dx%d", first.CurrViewWidth, first.CurrViewHeight)
	}
	tiles := 0
	for _, p := range first.FrameData {
		tiles += len(p.Data)
	}
	if tiles != 20*16 {
		t.Fatalf("full frame tiles: got %d want %d", tiles, 20*16)
	}
	if s.Spectators() != 1 {
		t.Fatalf("spectators: %d", s.Spectators())
	}

	second := readFrame(t, conn)
	if second.Frame <= first.Frame {
		t.Fatalf("frames did not advance: %d then %d", first.Frame, second.Frame)
	}
}

func TestStream_NewRoundStartsWithFullFrame(t *testing.T) {
	m := newRounds(t)
	ctx := context.Background()
	if _, err := m.StartRound(ctx); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	_, conn := dial(t, m)
	readFrame(t, conn)

	if err := m.EndRound(ctx); err != nil {
		t.Fatalf("EndRound: %v", err)
	}
	if _, err := m.StartRound(ctx); err != nil {
		t.Fatalf("second StartRound: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f := readFrame(t, conn)
		// Frame numbers restart with the new world.
		if f.FullSent && f.Frame < 50 {
			return
		}
	}
	t.Fatalf("no full frame after the round changed")
}
