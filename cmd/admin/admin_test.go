package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"roguecloud.ai/internal/persistence/db"
	"roguecloud.ai/internal/persistence/snapshot"
)

func TestListRounds(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"round-1", "round-3", "index", "round-x"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	snaps := filepath.Join(dir, "snapshots")
	for _, tick := range []uint64{100, 2000} {
		snap := snapshot.SnapshotV1{Header: snapshot.Header{Version: snapshot.Version, RoundID: 3, Tick: tick}, Width: 1, Height: 1}
		if err := snapshot.WriteSnapshot(snapshot.Path(snaps, 3, tick), snap); err != nil {
			t.Fatalf("write snapshot: %v", err)
		}
	}

	rounds, err := listRounds(dir)
	if err != nil {
		t.Fatalf("listRounds: %v", err)
	}
	if len(rounds) != 2 || rounds[0].ID != 1 || rounds[1].ID != 3 {
		t.Fatalf("rounds: %+v", rounds)
	}
	if rounds[0].Snapshots != 0 || rounds[0].LogDir == "" {
		t.Fatalf("round 1: %+v", rounds[0])
	}
	r3 := rounds[1]
	if r3.Snapshots != 2 || r3.LatestTick != 2000 || !strings.HasSuffix(r3.LatestSnapshot, "000000002000.snap.zst") {
		t.Fatalf("round 3: %+v", r3)
	}

	var buf bytes.Buffer
	writeRounds(&buf, rounds)
	if !strings.Contains(buf.String(), "round 1 logs=") || !strings.Contains(buf.String(), "snapshots=2") {
		t.Fatalf("output:\n%s", buf.String())
	}
}

func TestDBQuery(t *testing.T) {
	ctx := context.Background()
	d := db.NewMemory()
	var out bytes.Buffer
	run := func(q dbQuery) error {
		out.Reset()
		return q.Run(ctx, d, &out)
	}

	if err := run(dbQuery{Name: "create-user", Args: []string{"Alice", "pw"}}); err != nil {
		t.Fatalf("create-user: %v", err)
	}
	if !strings.Contains(out.String(), `"username":"alice"`) {
		t.Fatalf("create-user output: %s", out.String())
	}
	u, err := d.UserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("UserByUsername: %v", err)
	}
	for i, score := range []int64{40, 90} {
		e := db.LeaderboardEntry{UserID: u.ID, RoundID: int64(i + 1), Score: score, DateTime: time.Unix(0, 0)}
		if err := d.PutLeaderboardEntry(ctx, e); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	if err := run(dbQuery{Name: "leaderboard", Limit: 1}); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	var row boardRow
	if err := json.Unmarshal(out.Bytes(), &row); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if row.Rank != 1 || row.Username != "alice" || row.Score != 90 {
		t.Fatalf("row: %+v", row)
	}

	if err := run(dbQuery{Name: "user", Args: []string{"ALICE"}}); err != nil {
		t.Fatalf("user: %v", err)
	}
	var user struct {
		BestScore int64 `json:"bestScore"`
		Rank      int64 `json:"rank"`
		Rounds    []db.LeaderboardEntry
	}
	if err := json.Unmarshal(out.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.BestScore != 90 || user.Rank != 1 || len(user.Rounds) != 2 {
		t.Fatalf("user: %+v", user)
	}

	if err := run(dbQuery{Name: "user"}); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(dbQuery{Name: "bogus"}); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(dbQuery{Name: "user", Args: []string{"nobody"}}); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdminCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/v1/round/end" && r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"ended":1}`))
			return
		}
		http.Error(w, "nope", http.StatusConflict)
	}))
	defer srv.Close()

	var out bytes.Buffer
	if code := adminCall(&out, http.MethodPost, srv.URL+"/", "/admin/v1/round/end"); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if strings.TrimSpace(out.String()) != `{"ended":1}` {
		t.Fatalf("body: %q", out.String())
	}
	out.Reset()
	if code := adminCall(&out, http.MethodGet, srv.URL, "/admin/v1/state"); code != 1 {
		t.Fatalf("expected failure exit code, got %d", code)
	}
}
