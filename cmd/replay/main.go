package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"roguecloud.ai/internal/persistence/snapshot"
)

func main() {
	var (
		snapPath = flag.String("snapshot", "", "path to .snap.zst")
		roundDir = flag.String("round", "", "round log directory (data/round-N) to summarise (optional)")
		showMap  = flag.Bool("map", true, "render the snapshot as an ASCII map")
		cropX    = flag.Int("x", 0, "map crop left")
		cropY    = flag.Int("y", 0, "map crop top")
		cropW    = flag.Int("w", 0, "map crop width (0 = whole map)")
		cropH    = flag.Int("h", 0, "map crop height (0 = whole map)")
		top      = flag.Int("top", 10, "creatures to list in event summaries")
	)
	flag.Parse()

	if *snapPath == "" && *roundDir == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot or -round")
		os.Exit(2)
	}

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d world=%s round=%d tick=%d seed=%d size=%dx%d creatures=%d players=%d monsters=%d ground=%d catalogs=%s\n",
			snap.Header.Version, snap.Header.WorldID, snap.Header.RoundID, snap.Header.Tick, snap.Seed,
			snap.Width, snap.Height, len(snap.Creatures), len(snap.Players), len(snap.Monsters),
			len(snap.GroundObjects), snap.CatalogDigest)

		if *showMap {
			m, err := newSnapshotMap(snap)
			if err != nil {
				fmt.Fprintln(os.Stderr, "decode map:", err)
				os.Exit(1)
			}
			crop := cropBox{X: *cropX, Y: *cropY, W: *cropW, H: *cropH}
			if err := m.Render(os.Stdout, crop); err != nil {
				fmt.Fprintln(os.Stderr, "render:", err)
				os.Exit(1)
			}
		}
		if err := writeCreatureTable(os.Stdout, snap); err != nil {
			fmt.Fprintln(os.Stderr, "creatures:", err)
			os.Exit(1)
		}
	}

	if *roundDir == "" {
		return
	}
	ts, err := summarizeTicks(filepath.Join(*roundDir, "ticks"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "tick log:", err)
		os.Exit(1)
	}
	ts.Write(os.Stdout)

	es, err := summarizeEvents(filepath.Join(*roundDir, "events"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "event log:", err)
		os.Exit(1)
	}
	es.Write(os.Stdout, *top)
}
