package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickMs int `yaml:"tick_ms"`

	AgentView   Size `yaml:"agent_view"`
	BrowserView Size `yaml:"browser_view"`
	World       Size `yaml:"world"`

	EventRetentionTicks        int `yaml:"event_retention_ticks"`
	MonsterEventRetentionTicks int `yaml:"monster_event_retention_ticks"`

	RoundSeconds           int `yaml:"round_seconds"`
	BetweenRoundsSeconds   int `yaml:"between_rounds_seconds"`
	ReviveAfterTicks       int `yaml:"revive_after_ticks"`
	DeadMonsterLingerTicks int `yaml:"dead_monster_linger_ticks"`

	DeathMaxHPFactor float64 `yaml:"death_max_hp_factor"`
	PlayerMaxHP      int     `yaml:"player_max_hp"`
	HitChanceMin     float64 `yaml:"hit_chance_min"`
	HitChanceMax     float64 `yaml:"hit_chance_max"`

	MonsterTarget    int `yaml:"monster_target"`
	GroundItemTarget int `yaml:"ground_item_target"`
	AStarMaxTiles    int `yaml:"astar_max_tiles"`
	AIWorkers        int `yaml:"ai_workers"`

	FollowSeconds      int  `yaml:"follow_seconds"`
	AutoRegister       bool `yaml:"auto_register"`
	SnapshotEveryTicks int  `yaml:"snapshot_every_ticks"`

	Logging  Logging  `yaml:"logging"`
	Database Database `yaml:"database"`
}

type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func Defaults() Tuning {
	return Tuning{
		TickMs:                     100,
		AgentView:                  Size{Width: 80, Height: 40},
		BrowserView:                Size{Width: 40, Height: 40},
		World:                      Size{Width: 161, Height: 191},
		EventRetentionTicks:        100,
		MonsterEventRetentionTicks: 10,
		RoundSeconds:               300,
		BetweenRoundsSeconds:       20,
		ReviveAfterTicks:           100,
		DeadMonsterLingerTicks:     50,
		DeathMaxHPFactor:           0.8,
		PlayerMaxHP:                250,
		HitChanceMin:               0.05,
		HitChanceMax:               0.95,
		MonsterTarget:              60,
		GroundItemTarget:           80,
		AStarMaxTiles:              20000,
		AIWorkers:                  4,
		FollowSeconds:              30,
		AutoRegister:               true,
		SnapshotEveryTicks:         600,
		Logging:                    Logging{Level: "info", Format: "console"},
		Database:                   Database{Driver: "memory"},
	}
}

// Load overlays the YAML file at path on Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", name))
		}
	}
	positive("tick_ms", t.TickMs)
	positive("agent_view.width", t.AgentView.Width)
	positive("agent_view.height", t.AgentView.Height)
	positive("browser_view.width", t.BrowserView.Width)
	positive("browser_view.height", t.BrowserView.Height)
	positive("world.width", t.World.Width)
	positive("world.height", t.World.Height)
	positive("event_retention_ticks", t.EventRetentionTicks)
	positive("monster_event_retention_ticks", t.MonsterEventRetentionTicks)
	positive("round_seconds", t.RoundSeconds)
	positive("revive_after_ticks", t.ReviveAfterTicks)
	positive("player_max_hp", t.PlayerMaxHP)
	positive("astar_max_tiles", t.AStarMaxTiles)
	positive("ai_workers", t.AIWorkers)
	positive("follow_seconds", t.FollowSeconds)
	if t.BetweenRoundsSeconds < 0 || t.DeadMonsterLingerTicks < 0 || t.SnapshotEveryTicks < 0 {
		errs = append(errs, errors.New("between_rounds_seconds, dead_monster_linger_ticks and snapshot_every_ticks must be >= 0"))
	}
	if t.MonsterTarget < 0 || t.GroundItemTarget < 0 {
		errs = append(errs, errors.New("spawn targets must be >= 0"))
	}
	if t.DeathMaxHPFactor <= 0 || t.DeathMaxHPFactor > 1 {
		errs = append(errs, errors.New("death_max_hp_factor must be in (0, 1]"))
	}
	if t.HitChanceMin < 0 || t.HitChanceMax > 1 || t.HitChanceMin > t.HitChanceMax {
		errs = append(errs, errors.New("hit_chance_min/max must satisfy 0 <= min <= max <= 1"))
	}
	switch t.Database.Driver {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want memory, sqlite or postgres", t.Database.Driver))
	}
	return errors.Join(errs...)
}
