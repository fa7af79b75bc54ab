package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// dialect covers the few places SQLite and Postgres differ.
type dialect struct {
	name       string
	userIDType string
	dollar     bool
	isUnique   func(error) bool
}

// sqlStore implements Database over database/sql. Queries are written with ? placeholders and
// rebound for Postgres.
type sqlStore struct {
	db  *sql.DB
	d   dialect
	log *zap.Logger
}

func (s *sqlStore) q(query string) string {
	if !s.d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id ` + s.d.userIDType + `,
			username TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			user_id BIGINT NOT NULL,
			round_id BIGINT NOT NULL,
			score BIGINT NOT NULL,
			date_time BIGINT NOT NULL,
			PRIMARY KEY (user_id, round_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_round ON leaderboard(round_id, score)`,
		`INSERT INTO meta (key, value) VALUES ('next_round_id', 1) ON CONFLICT (key) DO NOTHING`,
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("%s schema: %w", s.d.name, err)
		}
	}
	return nil
}

func (s *sqlStore) NextRoundID(ctx context.Context) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx,
		s.q(`UPDATE meta SET value = value + 1 WHERE key = 'next_round_id' RETURNING value`)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next round id: %w", err)
	}
	return next - 1, nil
}

func (s *sqlStore) CreateUser(ctx context.Context, username, password string) (int64, error) {
	username = NormalizeUsername(username)
	if err := validateUser(username, password); err != nil {
		return 0, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO users (username, password) VALUES (?, ?) RETURNING id`), username, hash).Scan(&id)
	if err != nil {
		if s.d.isUnique(err) {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user created", zap.Int64("user_id", id), zap.String("username", username))
	return id, nil
}

func (s *sqlStore) userWhere(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, username, password FROM users WHERE `+where), arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *sqlStore) UserByUsername(ctx context.Context, username string) (User, error) {
	return s.userWhere(ctx, `username = ?`, NormalizeUsername(username))
}

func (s *sqlStore) UserByID(ctx context.Context, id int64) (User, error) {
	return s.userWhere(ctx, `id = ?`, id)
}

func (s *sqlStore) ValidPassword(ctx context.Context, username, password string) (bool, error) {
	u, err := s.UserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return CheckPassword(u.PasswordHash, password), nil
}

func (s *sqlStore) BestScoreAndRank(ctx context.Context, userID int64) (int64, int64, error) {
	best, err := s.BestOverall(ctx)
	if err != nil {
		return 0, 0, err
	}
	return bestAndRank(best, userID)
}

func (s *sqlStore) PutLeaderboardEntry(ctx context.Context, e LeaderboardEntry) error {
	if !validEntry(e) {
		return ErrInvalidUser
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO leaderboard (user_id, round_id, score, date_time) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, round_id) DO UPDATE SET score = excluded.score, date_time = excluded.date_time`),
		e.UserID, e.RoundID, e.Score, e.DateTime.UnixMilli())
	if err != nil {
		return fmt.Errorf("put leaderboard entry: %w", err)
	}
	return nil
}

func (s *sqlStore) entries(ctx context.Context, where string, args ...any) ([]LeaderboardEntry, error) {
	query := `SELECT user_id, round_id, score, date_time FROM leaderboard`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY score DESC, user_id ASC, round_id ASC`
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]LeaderboardEntry, 0)
	for rows.Next() {
		var e LeaderboardEntry
		var ms int64
		if err := rows.Scan(&e.UserID, &e.RoundID, &e.Score, &ms); err != nil {
			return nil, err
		}
		e.DateTime = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqlStore) LeaderboardForRound(ctx context.Context, roundID int64) ([]LeaderboardEntry, error) {
	return s.entries(ctx, `round_id = ?`, roundID)
}

func (s *sqlStore) BestOverall(ctx context.Context) ([]LeaderboardEntry, error) {
	return s.entries(ctx, "")
}

func (s *sqlStore) BestOfPreviousRounds(ctx context.Context, rounds int64) ([]LeaderboardEntry, error) {
	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(round_id) FROM leaderboard`).Scan(&latest); err != nil {
		return nil, fmt.Errorf("latest round: %w", err)
	}
	if !latest.Valid {
		return []LeaderboardEntry{}, nil
	}
	first := max(0, latest.Int64-rounds+1)
	return s.entries(ctx, `round_id >= ? AND round_id <= ?`, first, latest.Int64)
}

func (s *sqlStore) EntriesForUser(ctx context.Context, userID int64) ([]LeaderboardEntry, error) {
	return s.entries(ctx, `user_id = ?`, userID)
}

func (s *sqlStore) EntriesForUserAndRound(ctx context.Context, userID, roundID int64) ([]LeaderboardEntry, error) {
	return s.entries(ctx, `user_id = ? AND round_id = ?`, userID, roundID)
}
