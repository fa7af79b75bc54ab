package world

import (
	"time"

	"roguecloud.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID      string
	RoundID int64
	Seed    int64

	Width  int
	Height int
	TickMs int

	AgentViewWidth    int
	AgentViewHeight   int
	BrowserViewWidth  int
	BrowserViewHeight int

	EventRetentionTicks        int
	MonsterEventRetentionTicks int

	ReviveAfterTicks       int
	DeadMonsterLingerTicks int
	DeathMaxHPFactor       float64
	PlayerMaxHP            int
	HitChanceMin           float64
	HitChanceMax           float64

	MonsterTarget    int
	GroundItemTarget int
	// SpawnPerTick caps how many monsters and items are topped up in one tick after the
	// initial population.
	SpawnPerTick int

	AStarMaxTiles int
	// AIWorkers is the monster decision pool size; 0 runs decisions inline on the world loop.
	AIWorkers     int
	FollowSeconds int

	SnapshotEveryTicks int
	// CollapseOverlayAt folds the map overlay into a new base array once it holds this many
	// tiles.
	CollapseOverlayAt int

	// RoundEndsAt drives roundSecsLeft in frames; zero reports 0.
	RoundEndsAt time.Time
}

// ConfigFromTuning maps the YAML tuning onto a world config for one round.
func ConfigFromTuning(id string, roundID int64, seed int64, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                         id,
		RoundID:                    roundID,
		Seed:                       seed,
		Width:                      t.World.Width,
		Height:                     t.World.Height,
		TickMs:                     t.TickMs,
		AgentViewWidth:             t.AgentView.Width,
		AgentViewHeight:            t.AgentView.Height,
		BrowserViewWidth:           t.BrowserView.Width,
		BrowserViewHeight:          t.BrowserView.Height,
		EventRetentionTicks:        t.EventRetentionTicks,
		MonsterEventRetentionTicks: t.MonsterEventRetentionTicks,
		ReviveAfterTicks:           t.ReviveAfterTicks,
		DeadMonsterLingerTicks:     t.DeadMonsterLingerTicks,
		DeathMaxHPFactor:           t.DeathMaxHPFactor,
		PlayerMaxHP:                t.PlayerMaxHP,
		HitChanceMin:               t.HitChanceMin,
		HitChanceMax:               t.HitChanceMax,
		MonsterTarget:              t.MonsterTarget,
		GroundItemTarget:           t.GroundItemTarget,
		AStarMaxTiles:              t.AStarMaxTiles,
		AIWorkers:                  t.AIWorkers,
		FollowSeconds:              t.FollowSeconds,
		SnapshotEveryTicks:         t.SnapshotEveryTicks,
	}
}

func (c *WorldConfig) applyDefaults() {
	if c.Width <= 0 {
		c.Width = 161
	}
	if c.Height <= 0 {
		c.Height = 191
	}
	if c.TickMs <= 0 {
		c.TickMs = 100
	}
	if c.AgentViewWidth <= 0 {
		c.AgentViewWidth = 80
	}
	if c.AgentViewHeight <= 0 {
		c.AgentViewHeight = 40
	}
	if c.BrowserViewWidth <= 0 {
		c.BrowserViewWidth = 40
	}
	if c.BrowserViewHeight <= 0 {
		c.BrowserViewHeight = 40
	}
	if c.EventRetentionTicks <= 0 {
		c.EventRetentionTicks = 100
	}
	if c.MonsterEventRetentionTicks <= 0 {
		c.MonsterEventRetentionTicks = 10
	}
	if c.ReviveAfterTicks <= 0 {
		c.ReviveAfterTicks = 100
	}
	if c.DeadMonsterLingerTicks < 0 {
		c.DeadMonsterLingerTicks = 0
	}
	if c.DeathMaxHPFactor <= 0 || c.DeathMaxHPFactor > 1 {
		c.DeathMaxHPFactor = 0.8
	}
	if c.PlayerMaxHP <= 0 {
		c.PlayerMaxHP = 250
	}
	if c.HitChanceMax <= 0 || c.HitChanceMax > 1 {
		c.HitChanceMax = 0.95
	}
	if c.HitChanceMin < 0 || c.HitChanceMin > c.HitChanceMax {
		c.HitChanceMin = 0.05
	}
	if c.SpawnPerTick <= 0 {
		c.SpawnPerTick = 3
	}
	if c.AStarMaxTiles <= 0 {
		c.AStarMaxTiles = 20000
	}
	if c.AIWorkers < 0 {
		c.AIWorkers = 0
	}
	if c.FollowSeconds <= 0 {
		c.FollowSeconds = 30
	}
	if c.CollapseOverlayAt <= 0 {
		c.CollapseOverlayAt = max(64, c.Width*c.Height/8)
	}
}

func (c WorldConfig) tickDuration() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// followTicks is FollowSeconds expressed in ticks.
func (c WorldConfig) followTicks() uint64 {
	return uint64(max(1, c.FollowSeconds*1000/c.TickMs))
}
