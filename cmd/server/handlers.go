package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"roguecloud.ai/internal/persistence/db"
	"roguecloud.ai/internal/sim/rounds"
	"roguecloud.ai/internal/sim/world"
)

type roundService interface {
	Current() (*rounds.Round, error)
	Status() rounds.Status
	EndRound(ctx context.Context) error
}

type connCounter interface{ Connections() int64 }

type spectatorCounter interface{ Spectators() int64 }

type handlers struct {
	rounds        roundService
	db            db.Database
	agents        connCounter
	spectators    spectatorCounter
	catalogDigest string
	log           *zap.Logger
}

func (h *handlers) metrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	st := h.rounds.Status()
	active := 0
	if st.Active {
		active = 1
	}

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP roguecloud_round_id Id of the running round, or of the last ended one.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_round_id gauge\n")
	if st.Active {
		fmt.Fprintf(rw, "roguecloud_round_id %d\n", st.RoundID)
	} else {
		fmt.Fprintf(rw, "roguecloud_round_id %d\n", st.LastEnded)
	}

	fmt.Fprintf(rw, "# HELP roguecloud_round_active Whether a round is running.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_round_active gauge\n")
	fmt.Fprintf(rw, "roguecloud_round_active %d\n", active)

	fmt.Fprintf(rw, "# HELP roguecloud_round_seconds_left Seconds until the running round ends.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_round_seconds_left gauge\n")
	fmt.Fprintf(rw, "roguecloud_round_seconds_left %d\n", st.SecondsLeft)

	fmt.Fprintf(rw, "# HELP roguecloud_round_seconds_to_start Seconds until the next round starts.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_round_seconds_to_start gauge\n")
	fmt.Fprintf(rw, "roguecloud_round_seconds_to_start %d\n", st.SecondsToStart)

	fmt.Fprintf(rw, "# HELP roguecloud_ws_connections Open agent websocket connections.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_ws_connections gauge\n")
	fmt.Fprintf(rw, "roguecloud_ws_connections %d\n", h.agents.Connections())

	fmt.Fprintf(rw, "# HELP roguecloud_browser_spectators Open browser spectator connections.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_browser_spectators gauge\n")
	fmt.Fprintf(rw, "roguecloud_browser_spectators %d\n", h.spectators.Spectators())

	fmt.Fprintf(rw, "# HELP roguecloud_catalog_info Content catalog digest.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_catalog_info gauge\n")
	fmt.Fprintf(rw, "roguecloud_catalog_info{digest=%q} 1\n", h.catalogDigest)

	cur, err := h.rounds.Current()
	if err != nil {
		return
	}
	writeWorldMetrics(rw, cur.ID, cur.World.Metrics())
}

func writeWorldMetrics(rw http.ResponseWriter, roundID int64, m world.WorldMetrics) {
	round := strconv.FormatInt(roundID, 10)

	fmt.Fprintf(rw, "# HELP roguecloud_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_world_tick gauge\n")
	fmt.Fprintf(rw, "roguecloud_world_tick{round=%q} %d\n", round, m.Tick)

	fmt.Fprintf(rw, "# HELP roguecloud_world_creatures Creatures in the world by kind.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_world_creatures gauge\n")
	fmt.Fprintf(rw, "roguecloud_world_creatures{round=%q,kind=%q} %d\n", round, "all", m.Creatures)
	fmt.Fprintf(rw, "roguecloud_world_creatures{round=%q,kind=%q} %d\n", round, "player", m.Players)
	fmt.Fprintf(rw, "roguecloud_world_creatures{round=%q,kind=%q} %d\n", round, "monster", m.Monsters)

	fmt.Fprintf(rw, "# HELP roguecloud_world_clients Agents with a live session.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_world_clients gauge\n")
	fmt.Fprintf(rw, "roguecloud_world_clients{round=%q} %d\n", round, m.Clients)

	fmt.Fprintf(rw, "# HELP roguecloud_world_ground_objects Items lying on the map.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_world_ground_objects gauge\n")
	fmt.Fprintf(rw, "roguecloud_world_ground_objects{round=%q} %d\n", round, m.GroundObjects)

	fmt.Fprintf(rw, "# HELP roguecloud_world_events_retained Events held in the world event log.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_world_events_retained gauge\n")
	fmt.Fprintf(rw, "roguecloud_world_events_retained{round=%q} %d\n", round, m.EventsRetained)

	fmt.Fprintf(rw, "# HELP roguecloud_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "roguecloud_world_queue_depth{round=%q,queue=%q} %d\n", round, "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "roguecloud_world_queue_depth{round=%q,queue=%q} %d\n", round, "leave", m.QueueDepths.Leave)

	fmt.Fprintf(rw, "# HELP roguecloud_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_world_step_ms gauge\n")
	fmt.Fprintf(rw, "roguecloud_world_step_ms{round=%q} %.3f\n", round, m.StepMS)

	fmt.Fprintf(rw, "# HELP roguecloud_ai_decisions_total Monster decisions applied.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_ai_decisions_total counter\n")
	fmt.Fprintf(rw, "roguecloud_ai_decisions_total{round=%q} %d\n", round, m.AI.Decisions)

	fmt.Fprintf(rw, "# HELP roguecloud_ai_skipped_total Monster turns skipped because the previous decision was still running.\n")
	fmt.Fprintf(rw, "# TYPE roguecloud_ai_skipped_total counter\n")
	fmt.Fprintf(rw, "roguecloud_ai_skipped_total{round=%q} %d\n", round, m.AI.Skipped)
}

type leaderboardRow struct {
	Rank     int       `json:"rank"`
	UserID   int64     `json:"userId"`
	Username string    `json:"username,omitempty"`
	RoundID  int64     `json:"roundId"`
	Score    int64     `json:"score"`
	DateTime time.Time `json:"dateTime"`
}

// leaderboard serves GET /v1/leaderboard. With no query it lists every entry by score;
// round=N lists one round, previous=N the best of the last N rounds, user=ID (optionally with
// round) one user's entries.
func (h *handlers) leaderboard(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	round, err := queryInt(q.Get("round"))
	if err != nil {
		http.Error(rw, "bad round", http.StatusBadRequest)
		return
	}
	previous, err := queryInt(q.Get("previous"))
	if err != nil {
		http.Error(rw, "bad previous", http.StatusBadRequest)
		return
	}
	user, err := queryInt(q.Get("user"))
	if err != nil {
		http.Error(rw, "bad user", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var entries []db.LeaderboardEntry
	switch {
	case user > 0 && round > 0:
		entries, err = h.db.EntriesForUserAndRound(ctx, user, round)
	case user > 0:
		entries, err = h.db.EntriesForUser(ctx, user)
	case round > 0:
		entries, err = h.db.LeaderboardForRound(ctx, round)
	case previous > 0:
		entries, err = h.db.BestOfPreviousRounds(ctx, previous)
	default:
		entries, err = h.db.BestOverall(ctx)
	}
	if err != nil {
		h.log.Error("leaderboard query", zap.Error(err))
		http.Error(rw, "internal error", http.StatusInternalServerError)
		return
	}

	names := map[int64]string{}
	rows := make([]leaderboardRow, 0, len(entries))
	for i, e := range entries {
		name, ok := names[e.UserID]
		if !ok {
			if u, err := h.db.UserByID(ctx, e.UserID); err == nil {
				name = u.Username
			}
			names[e.UserID] = name
		}
		rows = append(rows, leaderboardRow{
			Rank:     i + 1,
			UserID:   e.UserID,
			Username: name,
			RoundID:  e.RoundID,
			Score:    e.Score,
			DateTime: e.DateTime,
		})
	}
	writeJSON(rw, http.StatusOK, map[string]any{"entries": rows})
}

func (h *handlers) userBest(rw http.ResponseWriter, r *http.Request) {
	u, err := h.db.UserByUsername(r.Context(), r.PathValue("username"))
	if errors.Is(err, db.ErrNotFound) {
		http.Error(rw, "unknown user", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("user lookup", zap.Error(err))
		http.Error(rw, "internal error", http.StatusInternalServerError)
		return
	}
	score, rank, err := h.db.BestScoreAndRank(r.Context(), u.ID)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(rw, http.StatusOK, map[string]any{"userId": u.ID, "username": u.Username, "score": 0, "rank": 0})
		return
	}
	if err != nil {
		h.log.Error("best score", zap.Error(err))
		http.Error(rw, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"userId": u.ID, "username": u.Username, "score": score, "rank": rank})
}

func (h *handlers) adminState(rw http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status    rounds.Status       `json:"status"`
		Metrics   *world.WorldMetrics `json:"metrics,omitempty"`
		Standings []world.Standing    `json:"standings,omitempty"`
	}{Status: h.rounds.Status()}
	if cur, err := h.rounds.Current(); err == nil {
		m := cur.World.Metrics()
		resp.Metrics = &m
		resp.Standings = cur.World.Standings()
	}
	writeJSON(rw, http.StatusOK, resp)
}

// adminEndRound ends the running round now; the manager starts the next one after its pause.
func (h *handlers) adminEndRound(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	err := h.rounds.EndRound(ctx)
	if errors.Is(err, rounds.ErrNoActiveRound) {
		writeJSON(rw, http.StatusConflict, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "status": h.rounds.Status()})
}

func loopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func queryInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(v)
}
