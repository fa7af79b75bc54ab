package world

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"roguecloud.ai/internal/persistence/snapshot"
	"roguecloud.ai/internal/sim/catalogs"
	"roguecloud.ai/internal/sim/encoding"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

// NewFromSnapshot restores a world saved by ExportSnapshot. Identity and geometry come from the
// snapshot; the remaining cfg fields (tuning) are taken as given. The restored world resumes at
// the tick after the snapshot.
func NewFromSnapshot(cfg WorldConfig, cats *catalogs.Catalogs, log *zap.Logger, s snapshot.SnapshotV1) (*World, error) {
	if s.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	if cats != nil && s.CatalogDigest != "" && s.CatalogDigest != cats.Digest {
		return nil, fmt.Errorf("snapshot catalogs %s differ from loaded catalogs %s", s.CatalogDigest, cats.Digest)
	}
	cfg.ID = s.Header.WorldID
	cfg.RoundID = s.Header.RoundID
	cfg.Seed = s.Seed
	cfg.Width = s.Width
	cfg.Height = s.Height
	w, err := newEmpty(cfg, cats, log)
	if err != nil {
		return nil, err
	}
	if w.m, err = importTerrain(s); err != nil {
		return nil, err
	}

	for _, cv := range s.Creatures {
		c, err := w.importCreature(cv)
		if err != nil {
			return nil, err
		}
		w.creatures[c.ID()] = c
		if t := w.m.Tile(c.Position()); t != nil {
			t.AddCreature(c)
		}
	}
	for _, gv := range s.GroundObjects {
		o, err := w.resolveRef(gv.Object)
		if err != nil {
			return nil, fmt.Errorf("ground object %d: %w", gv.ID, err)
		}
		g := &entity.GroundObject{ID: gv.ID, Object: o, Pos: geom.P(gv.X, gv.Y)}
		w.ground[g.ID] = g
		if t := w.m.Tile(g.Pos); t != nil {
			t.AddGroundObject(g)
		}
	}
	for _, pv := range s.Players {
		if w.creatures[pv.CreatureID] == nil {
			return nil, fmt.Errorf("player %d: missing creature %d", pv.UserID, pv.CreatureID)
		}
		p := &player{
			creatureID:   pv.CreatureID,
			userID:       pv.UserID,
			username:     pv.Username,
			score:        pv.Score,
			dead:         pv.Dead,
			reviveAt:     pv.ReviveAt,
			bestWeapon:   pv.BestWeapon,
			bestDefenses: map[entity.ArmourSlot]int{},
			lastMsg:      new(atomic.Int64),
			responses:    &responseCache{},
		}
		p.lastMsg.Store(pv.LastMessage)
		for slot, d := range pv.BestDefenses {
			p.bestDefenses[entity.ArmourSlot(slot)] = d
		}
		w.players[p.creatureID] = p
		w.byUser[p.userID] = p.creatureID
	}
	for _, mv := range s.Monsters {
		c := w.creatures[mv.CreatureID]
		if c == nil {
			return nil, fmt.Errorf("monster: missing creature %d", mv.CreatureID)
		}
		m := w.addMonster(c, geom.P(mv.HomeX, mv.HomeY))
		if mv.Dead {
			m.dead = true
			m.diedAt = mv.DiedAt
			m.slot.Close()
			w.machine.Remove(c.ID())
		}
	}

	w.nextCreature = s.Counters.NextCreature
	w.nextObject = s.Counters.NextObject
	w.nextEvent = s.Counters.NextEvent
	w.tick.Store(s.Header.Tick + 1)
	w.publish(s.Header.Tick, w.m.CloneForRead())
	return w, nil
}

func importTerrain(s snapshot.SnapshotV1) (*worldmap.ArrayMap, error) {
	n := s.Width * s.Height
	passable, err := encoding.DecodeBools(s.Passable, n)
	if err != nil {
		return nil, fmt.Errorf("passable layer: %w", err)
	}
	numbers := make([][]uint16, len(s.Terrain))
	rotations := make([][]uint16, len(s.Terrain))
	for d, l := range s.Terrain {
		if numbers[d], err = encoding.DecodeRLE(l.Numbers, n); err != nil {
			return nil, fmt.Errorf("terrain layer %d: %w", d, err)
		}
		if rotations[d], err = encoding.DecodeRLE(l.Rotations, n); err != nil {
			return nil, fmt.Errorf("terrain layer %d rotations: %w", d, err)
		}
	}

	m := worldmap.NewArrayMap(s.Width, s.Height)
	for x := 0; x < s.Width; x++ {
		for y := 0; y < s.Height; y++ {
			i := x*s.Height + y
			var terrain []entity.TileType
			for d := range numbers {
				if numbers[d][i] == 0 {
					continue
				}
				terrain = append(terrain, entity.TileType{Number: int(numbers[d][i]), Rotation: int(rotations[d][i])})
			}
			m.Put(geom.P(x, y), worldmap.NewTile(passable[i], terrain...))
		}
	}
	for _, pv := range s.Props {
		t := m.Tile(geom.P(pv.X, pv.Y))
		if t == nil {
			continue
		}
		props := append(t.Properties(), worldmap.Property{Kind: worldmap.PropertyKind(pv.Kind), Open: pv.Open})
		t.SetProperties(props)
	}
	return m, nil
}

func (w *World) importCreature(cv snapshot.CreatureV1) (*entity.Creature, error) {
	var weapon *entity.Weapon
	if cv.WeaponID != 0 {
		weapon = w.cats.Weapons.ByID[cv.WeaponID]
		if weapon == nil {
			return nil, fmt.Errorf("creature %d: unknown weapon %d", cv.ID, cv.WeaponID)
		}
	}
	c := entity.NewCreature(entity.CreatureSpec{
		ID:       cv.ID,
		Name:     cv.Name,
		Player:   cv.Player,
		UserID:   cv.UserID,
		Pos:      geom.P(cv.X, cv.Y),
		MaxHP:    cv.MaxHP,
		Level:    cv.Level,
		Weapon:   weapon,
		Tile:     entity.TileType{Number: cv.Tile, Rotation: cv.TileRot},
		Behavior: cv.Behavior,
	})
	c.SetHP(cv.HP)
	for _, aid := range cv.ArmourIDs {
		a := w.cats.Armours.ByID[aid]
		if a == nil {
			return nil, fmt.Errorf("creature %d: unknown armour %d", cv.ID, aid)
		}
		c.EquipArmour(a)
	}
	for _, ov := range cv.Inventory {
		o, err := w.resolveRef(ov.Object)
		if err != nil {
			return nil, fmt.Errorf("creature %d inventory %d: %w", cv.ID, ov.ID, err)
		}
		c.AddInventory(entity.OwnableObject{ID: ov.ID, Object: o})
	}
	var effects []entity.Effect
	for _, ev := range cv.Effects {
		effects = append(effects, entity.Effect{Type: entity.EffectType(ev.Type), Magnitude: ev.Magnitude, RemainingTurns: ev.Turns})
	}
	c.SetEffects(effects)
	return c, nil
}

func (w *World) resolveRef(r snapshot.ObjectRefV1) (entity.Object, error) {
	switch entity.ObjectKind(r.Kind) {
	case entity.KindWeapon:
		if o := w.cats.Weapons.ByID[r.DefID]; o != nil {
			return o, nil
		}
	case entity.KindArmour:
		if o := w.cats.Armours.ByID[r.DefID]; o != nil {
			return o, nil
		}
	case entity.KindItem:
		if o := w.cats.Potions.ByID[r.DefID]; o != nil {
			return o, nil
		}
	}
	return nil, fmt.Errorf("unknown %s %d", r.Kind, r.DefID)
}
