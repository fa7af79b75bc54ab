// Package db stores users, round ids and leaderboard entries.
package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound    = errors.New("db: not found")
	ErrUserExists  = errors.New("db: user already exists")
	ErrInvalidUser = errors.New("db: invalid username or password")
)

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	// PasswordHash is "sha256:<salt hex>:<digest hex>".
	PasswordHash string `json:"-"`
}

// LeaderboardEntry is one user's score for one round. There is at most one per (user, round).
type LeaderboardEntry struct {
	UserID   int64     `json:"userId"`
	RoundID  int64     `json:"roundId"`
	Score    int64     `json:"score"`
	DateTime time.Time `json:"dateTime"`
}

type Database interface {
	// NextRoundID returns the next unused round id and advances the counter.
	NextRoundID(ctx context.Context) (int64, error)

	CreateUser(ctx context.Context, username, password string) (int64, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	ValidPassword(ctx context.Context, username, password string) (bool, error)
	// BestScoreAndRank reports the user's best entry and its 1-based position in BestOverall.
	BestScoreAndRank(ctx context.Context, userID int64) (score, rank int64, err error)

	PutLeaderboardEntry(ctx context.Context, e LeaderboardEntry) error
	LeaderboardForRound(ctx context.Context, roundID int64) ([]LeaderboardEntry, error)
	BestOverall(ctx context.Context) ([]LeaderboardEntry, error)
	BestOfPreviousRounds(ctx context.Context, rounds int64) ([]LeaderboardEntry, error)
	EntriesForUser(ctx context.Context, userID int64) ([]LeaderboardEntry, error)
	EntriesForUserAndRound(ctx context.Context, userID, roundID int64) ([]LeaderboardEntry, error)

	Close() error
}

// Open returns the backend named by driver: "memory", "sqlite" (dsn is a file path) or
// "postgres" (dsn is a lib/pq connection string).
func Open(driver, dsn string, log *zap.Logger) (Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(dsn, log)
	case "postgres":
		return OpenPostgres(dsn, log)
	default:
		return nil, fmt.Errorf("db: unknown driver %q", driver)
	}
}

var usernameRE = regexp.MustCompile(`^[a-z0-9_\-]{1,32}$`)

// NormalizeUsername lowercases and trims; usernames are case-insensitive.
func NormalizeUsername(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func validateUser(username, password string) error {
	if !usernameRE.MatchString(username) || password == "" || len(password) > 256 {
		return ErrInvalidUser
	}
	return nil
}

func validEntry(e LeaderboardEntry) bool {
	return e.UserID > 0 && e.RoundID >= 0 && e.Score >= 0
}

// sortByScore orders entries by score descending, then user id and round id ascending.
func sortByScore(es []LeaderboardEntry) {
	sort.SliceStable(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.RoundID < b.RoundID
	})
}

func bestAndRank(best []LeaderboardEntry, userID int64) (int64, int64, error) {
	for i, e := range best {
		if e.UserID == userID {
			return e.Score, int64(i + 1), nil
		}
	}
	return 0, 0, ErrNotFound
}
