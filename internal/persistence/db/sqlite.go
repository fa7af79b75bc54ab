package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"roguecloud.ai/internal/sim/world"
)

// SQLite is the file-backed store. Besides users and the leaderboard it keeps a queryable index
// of tick logs and snapshots, written asynchronously so the world loop never waits on disk.
type SQLite struct {
	*sqlStore

	ch     chan indexReq
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool
	drops  atomic.Uint64
}

type indexReqKind int

const (
	reqTick indexReqKind = iota + 1
	reqSnapshot
)

type indexReq struct {
	kind    indexReqKind
	roundID int64
	tick    world.TickLogEntry
	snap    snapshotRow
}

type snapshotRow struct {
	Tick      uint64
	Path      string
	Seed      int64
	Creatures int
	Players   int
}

var sqliteDialect = dialect{
	name:       "sqlite",
	userIDType: "INTEGER PRIMARY KEY AUTOINCREMENT",
	isUnique: func(err error) bool {
		return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
}

func OpenSQLite(path string, log *zap.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLite{
		sqlStore: &sqlStore{db: db, d: sqliteDialect, log: log.Named("db")},
		ch:       make(chan indexReq, 65536),
	}
	ctx := context.Background()
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initIndexSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initIndexSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			round_id INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			actions INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (round_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			round_id INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			creature_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			act_json TEXT NOT NULL,
			resp_json TEXT NOT NULL,
			PRIMARY KEY (round_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_creature_tick ON actions(creature_id, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			round_id INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			creatures INTEGER NOT NULL,
			players INTEGER NOT NULL,
			PRIMARY KEY (round_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// TickIndex returns a world.TickLogger that indexes the round's ticks into this database.
func (s *SQLite) TickIndex(roundID int64) world.TickLogger {
	return tickIndex{s: s, roundID: roundID}
}

type tickIndex struct {
	s       *SQLite
	roundID int64
}

func (t tickIndex) WriteTick(entry world.TickLogEntry) error {
	t.s.enqueue(indexReq{kind: reqTick, roundID: t.roundID, tick: entry})
	return nil
}

func (s *SQLite) RecordSnapshot(path string, roundID int64, tick uint64, seed int64, creatures, players int) {
	s.enqueue(indexReq{kind: reqSnapshot, roundID: roundID, snap: snapshotRow{
		Tick: tick, Path: path, Seed: seed, Creatures: creatures, Players: players,
	}})
}

// enqueue drops the request if the indexer falls behind; JSONL logs remain the source of truth.
func (s *SQLite) enqueue(r indexReq) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		if s.drops.Add(1)%1000 == 1 {
			s.log.Warn("index queue full, dropping", zap.Uint64("dropped", s.drops.Load()))
		}
	}
}

// IndexedTicks reports how many ticks of a round are indexed.
func (s *SQLite) IndexedTicks(ctx context.Context, roundID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks WHERE round_id = ?`, roundID).Scan(&n)
	return n, err
}

func (s *SQLite) LatestSnapshot(ctx context.Context, roundID int64) (string, uint64, error) {
	var path string
	var tick int64
	err := s.db.QueryRowContext(ctx,
		`SELECT path, tick FROM snapshots WHERE round_id = ? ORDER BY tick DESC LIMIT 1`, roundID).Scan(&path, &tick)
	if err == sql.ErrNoRows {
		return "", 0, ErrNotFound
	}
	return path, uint64(tick), err
}

func (s *SQLite) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(round_id,tick,digest,joins,leaves,actions,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertAction, _ := s.db.Prepare(`INSERT OR REPLACE INTO actions(round_id,tick,seq,creature_id,type,act_json,resp_json) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(round_id,tick,path,seed,creatures,players) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertAction, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.Warn("index commit failed", zap.Error(err))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.log.Warn("index write failed", zap.Error(err))
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if insertTick == nil || insertAction == nil {
				continue
			}
			b, _ := json.Marshal(r.tick)
			if _, err := tx.Stmt(insertTick).Exec(
				r.roundID,
				int64(r.tick.Tick),
				r.tick.Digest,
				len(r.tick.Joins),
				len(r.tick.Leaves),
				len(r.tick.Actions),
				string(b),
			); err != nil {
				rollback(err)
				continue
			}
			opCount++
			for i, a := range r.tick.Actions {
				if _, err := tx.Stmt(insertAction).Exec(
					r.roundID, int64(r.tick.Tick), i, a.CreatureID, a.Type, string(a.Action), string(a.Response),
				); err != nil {
					rollback(err)
					break
				}
				opCount++
			}

		case reqSnapshot:
			if insertSnapshot == nil {
				continue
			}
			sn := r.snap
			if _, err := tx.Stmt(insertSnapshot).Exec(
				r.roundID, int64(sn.Tick), sn.Path, sn.Seed, sn.Creatures, sn.Players,
			); err != nil {
				rollback(err)
				continue
			}
			opCount++
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
