package observer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"roguecloud.ai/internal/sim/rounds"
	"roguecloud.ai/internal/sim/view"
)

// RoundSource reports the running round.
type RoundSource interface {
	Current() (*rounds.Round, error)
}

// Server streams the browser follow view. Each spectator diffs the world's published read
// snapshots on its own goroutine; the world loop never waits on a browser.
type Server struct {
	rounds RoundSource
	log    *zap.Logger
	poll   time.Duration

	spectators atomic.Int64
}

func NewServer(src RoundSource, poll time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return &Server{rounds: src, log: log.Named("observer"), poll: poll}
}

func (s *Server) Spectators() int64 { return s.spectators.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(rw, r, &websocket.AcceptOptions{InsecureSkipVerify: true}) // dev default
		if err != nil {
			return
		}
		defer conn.CloseNow()

		s.spectators.Add(1)
		defer s.spectators.Add(-1)

		// Spectators never send; CloseRead handles control frames and cancels ctx on close.
		ctx := conn.CloseRead(r.Context())
		err = s.stream(ctx, conn)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
		default:
			s.log.Debug("spectator stream ended", zap.Error(err))
		}
	}
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	var (
		spec     *view.Spectator
		roundID  int64
		lastTick uint64
		sent     bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		r, err := s.rounds.Current()
		if err != nil {
			continue
		}
		if spec == nil || r.ID != roundID {
			spec = view.NewSpectator()
			roundID = r.ID
			sent = false
		}
		p := r.World.Published()
		if p == nil || p.Map == nil || (sent && p.Tick == lastTick) {
			continue
		}
		// Dirty tiles only cover the latest tick.
		if sent && p.Tick != lastTick+1 {
			spec.ForceFull()
		}
		cfg := r.World.Config()
		frame := spec.Frame(view.BrowserInput{
			Map:           p.Map,
			Center:        p.FollowPos,
			ViewWidth:     cfg.BrowserViewWidth,
			ViewHeight:    cfg.BrowserViewHeight,
			Tick:          p.Tick,
			Dirty:         p.Dirty,
			RoundSecsLeft: p.RoundSecsLeft,
		})
		b, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = conn.Write(wctx, websocket.MessageText, b)
		cancel()
		if err != nil {
			return err
		}
		lastTick = p.Tick
		sent = true
	}
}
