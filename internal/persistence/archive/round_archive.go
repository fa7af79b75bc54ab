// Package archive keeps the final state of finished rounds next to a small JSON summary.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"roguecloud.ai/internal/persistence/snapshot"
)

type RoundArchiveMeta struct {
	RoundID   int64          `json:"round_id"`
	EndTick   uint64         `json:"end_tick"`
	Seed      int64          `json:"seed"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Snapshot  string         `json:"snapshot"`
	CreatedAt string         `json:"created_at"`
	Standings []StandingMeta `json:"standings"`
}

type StandingMeta struct {
	Username string `json:"username"`
	UserID   int64  `json:"user_id"`
	Score    int64  `json:"score"`
}

// Dir is where a round's archive lives under the data directory.
func Dir(dataDir string, roundID int64) string {
	return filepath.Join(dataDir, "archives", fmt.Sprintf("round_%06d", roundID))
}

// ArchiveRound copies a round's final snapshot into Dir(dataDir, round) and writes meta.json
// with the final standings, best score first.
func ArchiveRound(dataDir, snapshotPath string, snap snapshot.SnapshotV1) (string, error) {
	if snap.Header.RoundID <= 0 {
		return "", fmt.Errorf("archive: snapshot has no round id")
	}
	archiveDir := Dir(dataDir, snap.Header.RoundID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	meta := RoundArchiveMeta{
		RoundID:   snap.Header.RoundID,
		EndTick:   snap.Header.Tick,
		Seed:      snap.Seed,
		Width:     snap.Width,
		Height:    snap.Height,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Standings: make([]StandingMeta, 0, len(snap.Players)),
	}
	for _, p := range snap.Players {
		meta.Standings = append(meta.Standings, StandingMeta{Username: p.Username, UserID: p.UserID, Score: p.Score})
	}
	sort.SliceStable(meta.Standings, func(i, j int) bool {
		a, b := meta.Standings[i], meta.Standings[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.UserID < b.UserID
	})
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return dst, err
	}
	return dst, os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
}

// ReadMeta loads the meta.json of an archived round.
func ReadMeta(dataDir string, roundID int64) (RoundArchiveMeta, error) {
	var meta RoundArchiveMeta
	b, err := os.ReadFile(filepath.Join(Dir(dataDir, roundID), "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(b, &meta)
	return meta, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
