package world

import (
	"sort"
	"time"

	"roguecloud.ai/internal/sim/ai"
)

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick    uint64 `json:"tick"`
	RoundID int64  `json:"round_id"`

	Creatures      int `json:"creatures"`
	Players        int `json:"players"`
	Monsters       int `json:"monsters"`
	Clients        int `json:"clients"`
	GroundObjects  int `json:"ground_objects"`
	EventsRetained int `json:"events_retained"`
	OverlayTiles   int `json:"overlay_tiles"`
	RoundSecsLeft  int `json:"round_secs_left"`

	QueueDepths QueueDepths `json:"queue_depths"`
	AI          ai.Stats    `json:"ai"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

// Standing is one player's current score in the running round.
type Standing struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	CreatureID int64  `json:"creature_id"`
	Score      int64  `json:"score"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

// Standings returns the players of this round ordered by score, highest first.
func (w *World) Standings() []Standing {
	v, _ := w.standings.Load().([]Standing)
	return append([]Standing(nil), v...)
}

func (w *World) updateMetrics(now uint64) {
	w.metrics.Store(WorldMetrics{
		Tick:           now,
		RoundID:        w.cfg.RoundID,
		Creatures:      len(w.creatures),
		Players:        len(w.players),
		Monsters:       len(w.monsters),
		Clients:        len(w.clients),
		GroundObjects:  len(w.ground),
		EventsRetained: w.events.Len(),
		OverlayTiles:   w.m.OverlaySize(),
		RoundSecsLeft:  w.roundSecsLeft(),
		QueueDepths:    QueueDepths{Join: len(w.join), Leave: len(w.leave)},
		AI:             w.machine.Stats(),
		StepMS:         float64(w.stepNanos.Load()) / float64(time.Millisecond),
	})
	w.standings.Store(w.computeStandings())
}

func (w *World) computeStandings() []Standing {
	out := make([]Standing, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, Standing{UserID: p.userID, Username: p.username, CreatureID: p.creatureID, Score: p.score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
