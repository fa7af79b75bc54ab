package worldmap

import "roguecloud.ai/internal/sim/entity"

type PropertyKind string

const PropertyDoor PropertyKind = "DOOR"

type Property struct {
	Kind PropertyKind `json:"kind"`
	Open bool         `json:"open"`
}

// Tile is one grid cell. Tiles reachable from a published map are never mutated; the world
// obtains a private shallow copy through ArrayMap.TileForWrite before changing anything.
type Tile struct {
	passable  bool
	terrain   []entity.TileType
	ground    []*entity.GroundObject
	creatures []*entity.Creature
	props     []Property

	lastTick    uint64
	hasLastTick bool
}

// NewTile builds a tile with a foreground terrain layer and an optional background layer.
func NewTile(passable bool, terrain ...entity.TileType) *Tile {
	return &Tile{passable: passable, terrain: append([]entity.TileType(nil), terrain...)}
}

func (t *Tile) Passable() bool { return t.passable }

func (t *Tile) Terrain() []entity.TileType {
	return append([]entity.TileType(nil), t.terrain...)
}

func (t *Tile) GroundObjects() []*entity.GroundObject {
	return append([]*entity.GroundObject(nil), t.ground...)
}

func (t *Tile) Creatures() []*entity.Creature {
	return append([]*entity.Creature(nil), t.creatures...)
}

func (t *Tile) Properties() []Property {
	return append([]Property(nil), t.props...)
}

func (t *Tile) HasCreatures() bool { return len(t.creatures) > 0 }

// LastTickUpdated reports the tick this tile was last observed at; ok is false when never observed.
func (t *Tile) LastTickUpdated() (tick uint64, ok bool) { return t.lastTick, t.hasLastTick }

func (t *Tile) GroundObject(id int64) *entity.GroundObject {
	for _, g := range t.ground {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (t *Tile) Creature(id int64) *entity.Creature {
	for _, c := range t.creatures {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

// Layers returns the presentation layers top-down: one foreground entry (a creature, else a
// ground object) followed by the terrain layers. When several creatures share the tile,
// offset selects which one is shown so overlapping creatures cycle over time.
func (t *Tile) Layers(offset int) []entity.TileType {
	out := make([]entity.TileType, 0, 1+len(t.terrain))
	if offset < 0 {
		offset = -offset
	}
	switch {
	case len(t.creatures) > 0:
		c := t.creatures[offset%len(t.creatures)]
		tt := c.TileType()
		if c.IsDead() {
			tt.Rotation = (tt.Rotation + 270) % 360
		}
		out = append(out, tt)
	case len(t.ground) > 0:
		out = append(out, t.ground[offset%len(t.ground)].Object.ObjectTile())
	}
	return append(out, t.terrain...)
}

func (t *Tile) shallowClone() *Tile {
	return &Tile{
		passable:    t.passable,
		terrain:     t.terrain,
		ground:      append([]*entity.GroundObject(nil), t.ground...),
		creatures:   append([]*entity.Creature(nil), t.creatures...),
		props:       append([]Property(nil), t.props...),
		lastTick:    t.lastTick,
		hasLastTick: t.hasLastTick,
	}
}

// Vacated copies t without its creatures and ground objects. Terrain and properties carry over.
func (t *Tile) Vacated() *Tile {
	return &Tile{
		passable:    t.passable,
		terrain:     t.terrain,
		props:       append([]Property(nil), t.props...),
		lastTick:    t.lastTick,
		hasLastTick: t.hasLastTick,
	}
}

// Mutators. Only valid on a tile returned by TileForWrite or on a tile not yet placed in a map.

func (t *Tile) SetPassable(v bool) { t.passable = v }

func (t *Tile) AddCreature(c *entity.Creature) { t.creatures = append(t.creatures, c) }

// ReplaceCreature swaps the stored pointer for the creature with the same id.
func (t *Tile) ReplaceCreature(c *entity.Creature) bool {
	for i, old := range t.creatures {
		if old.ID() == c.ID() {
			t.creatures[i] = c
			return true
		}
	}
	return false
}

func (t *Tile) RemoveCreature(id int64) bool {
	for i, c := range t.creatures {
		if c.ID() == id {
			t.creatures = append(t.creatures[:i], t.creatures[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Tile) AddGroundObject(g *entity.GroundObject) { t.ground = append(t.ground, g) }

func (t *Tile) RemoveGroundObject(id int64) (*entity.GroundObject, bool) {
	for i, g := range t.ground {
		if g.ID == id {
			t.ground = append(t.ground[:i], t.ground[i+1:]...)
			return g, true
		}
	}
	return nil, false
}

func (t *Tile) SetProperties(props []Property) { t.props = append([]Property(nil), props...) }

func (t *Tile) SetLastTickUpdated(tick uint64) {
	t.lastTick = tick
	t.hasLastTick = true
}
