package db

import (
	"context"
	"sync"
)

type entryKey struct{ user, round int64 }

// Memory keeps everything in process. It is the default when no database is configured.
type Memory struct {
	mu          sync.Mutex
	nextRound   int64
	nextUser    int64
	users       map[int64]User
	byName      map[string]int64
	leaderboard map[entryKey]LeaderboardEntry
}

func NewMemory() *Memory {
	return &Memory{
		nextRound:   1,
		nextUser:    1,
		users:       map[int64]User{},
		byName:      map[string]int64{},
		leaderboard: map[entryKey]LeaderboardEntry{},
	}
}

func (m *Memory) NextRoundID(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextRound
	m.nextRound++
	return id, nil
}

func (m *Memory) CreateUser(_ context.Context, username, password string) (int64, error) {
	username = NormalizeUsername(username)
	if err := validateUser(username, password); err != nil {
		return 0, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return 0, ErrUserExists
	}
	u := User{ID: m.nextUser, Username: username, PasswordHash: hash}
	m.nextUser++
	m.users[u.ID] = u
	m.byName[username] = u.ID
	return u.ID, nil
}

func (m *Memory) UserByUsername(_ context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[NormalizeUsername(username)]
	if !ok {
		return User{}, ErrNotFound
	}
	return m.users[id], nil
}

func (m *Memory) UserByID(_ context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) ValidPassword(ctx context.Context, username, password string) (bool, error) {
	u, err := m.UserByUsername(ctx, username)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return CheckPassword(u.PasswordHash, password), nil
}

func (m *Memory) BestScoreAndRank(ctx context.Context, userID int64) (int64, int64, error) {
	best, err := m.BestOverall(ctx)
	if err != nil {
		return 0, 0, err
	}
	return bestAndRank(best, userID)
}

func (m *Memory) PutLeaderboardEntry(_ context.Context, e LeaderboardEntry) error {
	if !validEntry(e) {
		return ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaderboard[entryKey{e.UserID, e.RoundID}] = e
	return nil
}

func (m *Memory) filter(keep func(LeaderboardEntry) bool) []LeaderboardEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LeaderboardEntry, 0)
	for _, e := range m.leaderboard {
		if keep(e) {
			out = append(out, e)
		}
	}
	sortByScore(out)
	return out
}

func (m *Memory) LeaderboardForRound(_ context.Context, roundID int64) ([]LeaderboardEntry, error) {
	return m.filter(func(e LeaderboardEntry) bool { return e.RoundID == roundID }), nil
}

func (m *Memory) BestOverall(context.Context) ([]LeaderboardEntry, error) {
	return m.filter(func(LeaderboardEntry) bool { return true }), nil
}

func (m *Memory) BestOfPreviousRounds(_ context.Context, rounds int64) ([]LeaderboardEntry, error) {
	m.mu.Lock()
	latest := int64(-1)
	for k := range m.leaderboard {
		latest = max(latest, k.round)
	}
	m.mu.Unlock()
	if latest < 0 {
		return []LeaderboardEntry{}, nil
	}
	first := max(0, latest-rounds+1)
	return m.filter(func(e LeaderboardEntry) bool { return e.RoundID >= first && e.RoundID <= latest }), nil
}

func (m *Memory) EntriesForUser(_ context.Context, userID int64) ([]LeaderboardEntry, error) {
	return m.filter(func(e LeaderboardEntry) bool { return e.UserID == userID }), nil
}

func (m *Memory) EntriesForUserAndRound(_ context.Context, userID, roundID int64) ([]LeaderboardEntry, error) {
	return m.filter(func(e LeaderboardEntry) bool { return e.UserID == userID && e.RoundID == roundID }), nil
}

func (m *Memory) Close() error { return nil }
