package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"roguecloud.ai/internal/persistence/db"
)

const dbUsage = "usage: admin db [-driver sqlite|postgres] [-dsn DSN] [-data ./data] [-round N] [-rounds N] [-limit N] leaderboard|previous|user NAME|create-user NAME PASSWORD"

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	driver := fs.String("driver", "sqlite", "database driver: sqlite or postgres")
	dsn := fs.String("dsn", "", "database dsn (sqlite defaults to <data>/index/roguecloud.sqlite)")
	round := fs.Int64("round", 0, "leaderboard: one round instead of best overall")
	prev := fs.Int64("rounds", 5, "previous: how many past rounds to include")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, dbUsage)
		os.Exit(2)
	}
	if *driver == "sqlite" && strings.TrimSpace(*dsn) == "" {
		*dsn = filepath.Join(*dataDir, "index", "roguecloud.sqlite")
	}

	d, err := db.Open(*driver, *dsn, zap.NewNop())
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer d.Close()

	q := dbQuery{Name: fs.Arg(0), Args: fs.Args()[1:], Round: *round, Rounds: *prev, Limit: *limit}
	if err := q.Run(context.Background(), d, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, dbUsage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("bad arguments")

type dbQuery struct {
	Name   string
	Args   []string
	Round  int64
	Rounds int64
	Limit  int
}

type boardRow struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	db.LeaderboardEntry
}

// Run executes q and prints one JSON object per line.
func (q dbQuery) Run(ctx context.Context, d db.Database, out io.Writer) error {
	switch q.Name {
	case "leaderboard", "previous":
		var (
			es  []db.LeaderboardEntry
			err error
		)
		switch {
		case q.Name == "previous":
			es, err = d.BestOfPreviousRounds(ctx, q.Rounds)
		case q.Round > 0:
			es, err = d.LeaderboardForRound(ctx, q.Round)
		default:
			es, err = d.BestOverall(ctx)
		}
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		if q.Limit > 0 && len(es) > q.Limit {
			es = es[:q.Limit]
		}
		names := map[int64]string{}
		for i, e := range es {
			name, ok := names[e.UserID]
			if !ok {
				if u, err := d.UserByID(ctx, e.UserID); err == nil {
					name = u.Username
				}
				names[e.UserID] = name
			}
			printJSON(out, boardRow{Rank: i + 1, Username: name, LeaderboardEntry: e})
		}
		return nil

	case "user":
		if len(q.Args) != 1 {
			return fmt.Errorf("user: %w", errUsage)
		}
		u, err := d.UserByUsername(ctx, q.Args[0])
		if err != nil {
			return fmt.Errorf("user %q: %w", q.Args[0], err)
		}
		score, rank, err := d.BestScoreAndRank(ctx, u.ID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("best: %w", err)
		}
		entries, err := d.EntriesForUser(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("entries: %w", err)
		}
		printJSON(out, struct {
			db.User
			BestScore int64                 `json:"bestScore"`
			Rank      int64                 `json:"rank"`
			Rounds    []db.LeaderboardEntry `json:"rounds"`
		}{u, score, rank, entries})
		return nil

	case "create-user":
		if len(q.Args) != 2 {
			return fmt.Errorf("create-user: %w", errUsage)
		}
		id, err := d.CreateUser(ctx, q.Args[0], q.Args[1])
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		printJSON(out, db.User{ID: id, Username: db.NormalizeUsername(q.Args[0])})
		return nil

	default:
		return fmt.Errorf("unknown query %q: %w", q.Name, errUsage)
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
