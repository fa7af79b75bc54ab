package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"roguecloud.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "end-round":
			endRoundCmd(os.Args[2:])
			return
		case "latest":
			latestCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	rounds, err := listRounds(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	writeRounds(os.Stdout, rounds)
}

func latestCmd(args []string) {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	round := fs.Int64("round", 0, "round id (defaults to the newest round with a snapshot)")
	_ = fs.Parse(args)

	rounds, err := listRounds(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for i := len(rounds) - 1; i >= 0; i-- {
		r := rounds[i]
		if (*round == 0 || r.ID == *round) && r.LatestSnapshot != "" {
			h, err := snapshot.ReadHeader(r.LatestSnapshot)
			if err != nil {
				fmt.Fprintln(os.Stderr, "read header:", err)
				os.Exit(1)
			}
			fmt.Printf("%s round=%d tick=%d version=%d\n", r.LatestSnapshot, h.RoundID, h.Tick, h.Version)
			return
		}
	}
	fmt.Fprintln(os.Stderr, "no snapshot found")
	os.Exit(2)
}

// roundFiles is what the server left on disk for one round.
type roundFiles struct {
	ID             int64
	LogDir         string
	Snapshots      int
	LatestSnapshot string
	LatestTick     uint64
}

// listRounds scans data/round-N log directories and data/snapshots/round-N snapshot
// directories, ordered by round id.
func listRounds(dataDir string) ([]roundFiles, error) {
	byID := map[int64]*roundFiles{}
	get := func(id int64) *roundFiles {
		r := byID[id]
		if r == nil {
			r = &roundFiles{ID: id}
			byID[id] = r
		}
		return r
	}

	ents, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		if id, ok := parseRoundDir(e); ok {
			get(id).LogDir = filepath.Join(dataDir, e.Name())
		}
	}

	snapRoot := filepath.Join(dataDir, "snapshots")
	ents, err = os.ReadDir(snapRoot)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, e := range ents {
		id, ok := parseRoundDir(e)
		if !ok {
			continue
		}
		r := get(id)
		dir := filepath.Join(snapRoot, e.Name())
		snaps, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, s := range snaps {
			base, ok := strings.CutSuffix(s.Name(), ".snap.zst")
			if !ok || s.IsDir() {
				continue
			}
			tick, err := strconv.ParseUint(base, 10, 64)
			if err != nil {
				continue
			}
			r.Snapshots++
			if r.LatestSnapshot == "" || tick > r.LatestTick {
				r.LatestTick = tick
				r.LatestSnapshot = filepath.Join(dir, s.Name())
			}
		}
	}

	out := make([]roundFiles, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func parseRoundDir(e os.DirEntry) (int64, bool) {
	if !e.IsDir() {
		return 0, false
	}
	s, ok := strings.CutPrefix(e.Name(), "round-")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

func writeRounds(w io.Writer, rounds []roundFiles) {
	for _, r := range rounds {
		logs := "-"
		if r.LogDir != "" {
			logs = r.LogDir
		}
		latest := "-"
		if r.LatestSnapshot != "" {
			latest = fmt.Sprintf("%s (tick %d)", r.LatestSnapshot, r.LatestTick)
		}
		fmt.Fprintf(w, "round %d logs=%s snapshots=%d latest=%s\n", r.ID, logs, r.Snapshots, latest)
	}
}
