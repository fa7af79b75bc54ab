// Package rounds runs the game as a sequence of fixed-length rounds, each on a freshly
// generated world, and writes every player's score to the leaderboard when a round ends.
package rounds

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"roguecloud.ai/internal/persistence/archive"
	"roguecloud.ai/internal/persistence/db"
	persistlog "roguecloud.ai/internal/persistence/log"
	"roguecloud.ai/internal/persistence/snapshot"
	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/catalogs"
	"roguecloud.ai/internal/sim/tuning"
	"roguecloud.ai/internal/sim/world"
)

var ErrNoActiveRound = errors.New("rounds: no active round")

type Config struct {
	// DataDir receives per-round tick logs, event logs and snapshots. Empty disables them.
	DataDir       string
	RoundLength   time.Duration
	BetweenRounds time.Duration
	Tuning        tuning.Tuning
	// Seed fixes the world seed of every round; 0 derives one from the round id.
	Seed int64
}

// ConfigFromTuning takes round timing from the tuning file.
func ConfigFromTuning(dataDir string, seed int64, t tuning.Tuning) Config {
	return Config{
		DataDir:       dataDir,
		RoundLength:   time.Duration(t.RoundSeconds) * time.Second,
		BetweenRounds: time.Duration(t.BetweenRoundsSeconds) * time.Second,
		Tuning:        t,
		Seed:          seed,
	}
}

// Round is one running round. Its world is stopped and closed once Done is closed.
type Round struct {
	ID        int64
	World     *world.World
	StartedAt time.Time
	EndsAt    time.Time

	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	closers []interface{ Close() error }
}

// Done is closed when the round ends.
func (r *Round) Done() <-chan struct{} { return r.done }

// SecondsLeft is the whole seconds until the round ends, never negative.
func (r *Round) SecondsLeft(now time.Time) int {
	left := r.EndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left.Round(time.Second) / time.Second)
}

// Status is a point-in-time view for metrics and handlers.
type Status struct {
	RoundID        int64 `json:"round_id"`
	Active         bool  `json:"active"`
	SecondsLeft    int   `json:"seconds_left"`
	SecondsToStart int   `json:"seconds_to_start"`
	LastEnded      int64 `json:"last_ended"`
}

type tickIndexer interface {
	TickIndex(roundID int64) world.TickLogger
}

type snapshotRecorder interface {
	RecordSnapshot(path string, roundID int64, tick uint64, seed int64, creatures, players int)
}

type Manager struct {
	cfg  Config
	cats *catalogs.Catalogs
	db   db.Database
	log  *zap.Logger
	now  func() time.Time

	mu        sync.RWMutex
	current   *Round
	nextStart time.Time
	lastEnded int64
	wg        sync.WaitGroup
}

func NewManager(cfg Config, cats *catalogs.Catalogs, database db.Database, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RoundLength <= 0 {
		cfg.RoundLength = time.Duration(tuning.Defaults().RoundSeconds) * time.Second
	}
	if cfg.BetweenRounds < 0 {
		cfg.BetweenRounds = 0
	}
	return &Manager{
		cfg:  cfg,
		cats: cats,
		db:   database,
		log:  log.Named("rounds"),
		now:  time.Now,
	}
}

// Run starts rounds back to back, pausing BetweenRounds after each, until ctx is cancelled.
// The running round is ended (and scored) before Run returns.
func (m *Manager) Run(ctx context.Context) error {
	for {
		r, err := m.StartRound(ctx)
		if err != nil {
			return err
		}
		timer := time.NewTimer(r.EndsAt.Sub(m.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.EndRound(endCtx); err != nil {
				m.log.Warn("end round on shutdown", zap.Error(err))
			}
			cancel()
			return ctx.Err()
		case <-timer.C:
		}
		if err := m.EndRound(ctx); err != nil {
			m.log.Error("end round", zap.Int64("round_id", r.ID), zap.Error(err))
		}

		pause := time.NewTimer(m.cfg.BetweenRounds)
		select {
		case <-ctx.Done():
			pause.Stop()
			return ctx.Err()
		case <-pause.C:
		}
	}
}

// StartRound allocates a round id, generates the round's world and starts its loop.
func (m *Manager) StartRound(ctx context.Context) (*Round, error) {
	m.mu.RLock()
	busy := m.current != nil
	m.mu.RUnlock()
	if busy {
		return nil, fmt.Errorf("rounds: round already running")
	}

	id, err := m.db.NextRoundID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate round id: %w", err)
	}
	seed := m.cfg.Seed
	if seed == 0 {
		seed = id*7919 + 1
	}
	wcfg := world.ConfigFromTuning(fmt.Sprintf("round-%d", id), id, seed, m.cfg.Tuning)
	w, err := world.New(wcfg, m.cats, m.log)
	if err != nil {
		return nil, fmt.Errorf("round %d world: %w", id, err)
	}

	start := m.now()
	r := &Round{
		ID:        id,
		World:     w,
		StartedAt: start,
		EndsAt:    start.Add(m.cfg.RoundLength),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	w.SetRoundEnd(r.EndsAt)
	m.attachLogs(r, seed)

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() {
		defer close(r.stopped)
		if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Error("world stopped", zap.Int64("round_id", id), zap.Error(err))
		}
	}()

	m.mu.Lock()
	m.current = r
	m.nextStart = time.Time{}
	m.mu.Unlock()
	m.log.Info("round started",
		zap.Int64("round_id", id),
		zap.Int64("seed", seed),
		zap.Time("ends_at", r.EndsAt))
	return r, nil
}

func (m *Manager) attachLogs(r *Round, seed int64) {
	var tickLoggers []world.TickLogger
	if m.cfg.DataDir != "" {
		dir := persistlog.RoundDir(m.cfg.DataDir, r.ID)
		tl := persistlog.NewTickLogger(dir)
		el := persistlog.NewEventLogger(dir)
		tickLoggers = append(tickLoggers, tl)
		r.World.SetEventLogger(el)
		r.closers = append(r.closers, tl, el)

		snapCh := make(chan snapshot.SnapshotV1, 2)
		r.World.SetSnapshotSink(snapCh)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-r.stopped:
					return
				case snap := <-snapCh:
					m.writeSnapshot(r.ID, seed, snap)
				}
			}
		}()
	}
	if ix, ok := m.db.(tickIndexer); ok {
		tickLoggers = append(tickLoggers, ix.TickIndex(r.ID))
	}
	switch len(tickLoggers) {
	case 0:
	case 1:
		r.World.SetTickLogger(tickLoggers[0])
	default:
		r.World.SetTickLogger(multiTickLogger(tickLoggers))
	}
}

func (m *Manager) writeSnapshot(roundID, seed int64, snap snapshot.SnapshotV1) (string, bool) {
	path := snapshot.Path(filepath.Join(m.cfg.DataDir, "snapshots"), roundID, snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		m.log.Warn("snapshot write", zap.Int64("round_id", roundID), zap.Error(err))
		return "", false
	}
	if rec, ok := m.db.(snapshotRecorder); ok {
		rec.RecordSnapshot(path, roundID, snap.Header.Tick, seed, len(snap.Creatures), len(snap.Players))
	}
	return path, true
}

// EndRound stops the running round's world, writes its final snapshot and stores every
// player's score on the leaderboard.
func (m *Manager) EndRound(ctx context.Context) error {
	m.mu.Lock()
	r := m.current
	if r == nil {
		m.mu.Unlock()
		return ErrNoActiveRound
	}
	m.current = nil
	m.lastEnded = r.ID
	m.nextStart = m.now().Add(m.cfg.BetweenRounds)
	m.mu.Unlock()

	close(r.done)
	r.World.Stop()
	r.cancel()
	<-r.stopped
	r.World.Close()
	m.wg.Wait()

	if m.cfg.DataDir != "" {
		last := r.World.CurrentTick()
		if last > 0 {
			last--
		}
		snap := r.World.ExportSnapshot(last)
		if path, ok := m.writeSnapshot(r.ID, r.World.Config().Seed, snap); ok {
			if _, err := archive.ArchiveRound(m.cfg.DataDir, path, snap); err != nil {
				m.log.Warn("archive round", zap.Int64("round_id", r.ID), zap.Error(err))
			}
		}
	}
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			m.log.Warn("close round log", zap.Int64("round_id", r.ID), zap.Error(err))
		}
	}

	at := m.now().UTC()
	var errs []error
	standings := r.World.Standings()
	for _, s := range standings {
		err := m.db.PutLeaderboardEntry(ctx, db.LeaderboardEntry{
			UserID:   s.UserID,
			RoundID:  r.ID,
			Score:    s.Score,
			DateTime: at,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", s.UserID, err))
		}
	}
	m.log.Info("round ended",
		zap.Int64("round_id", r.ID),
		zap.Uint64("tick", r.World.CurrentTick()),
		zap.Int("players", len(standings)))
	return errors.Join(errs...)
}

// Current returns the running round.
func (m *Manager) Current() (*Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, ErrNoActiveRound
	}
	return m.current, nil
}

// Admit decides which round a connecting client enters. roundToEnter 0 means "whatever is
// running"; an older round id is over, a newer one has not started.
func (m *Manager) Admit(roundToEnter int64) (*Round, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.current
	if r == nil {
		if roundToEnter > 0 && roundToEnter <= m.lastEnded {
			return nil, protocol.ConnectFailRoundOver
		}
		return nil, protocol.ConnectFailRoundNotStarted
	}
	switch {
	case roundToEnter == 0 || roundToEnter == r.ID:
		return r, protocol.ConnectSuccess
	case roundToEnter < r.ID:
		return nil, protocol.ConnectFailRoundOver
	default:
		return nil, protocol.ConnectFailRoundNotStarted
	}
}

func (m *Manager) Status() Status {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{LastEnded: m.lastEnded}
	if m.current != nil {
		st.RoundID = m.current.ID
		st.Active = true
		st.SecondsLeft = m.current.SecondsLeft(now)
		return st
	}
	if !m.nextStart.IsZero() {
		if d := m.nextStart.Sub(now); d > 0 {
			st.SecondsToStart = int(d.Round(time.Second) / time.Second)
		}
	}
	return st
}

type multiTickLogger []world.TickLogger

func (ls multiTickLogger) WriteTick(e world.TickLogEntry) error {
	var errs []error
	for _, l := range ls {
		if err := l.WriteTick(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
