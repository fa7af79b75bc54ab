package world

import (
	"roguecloud.ai/internal/persistence/snapshot"
	"roguecloud.ai/internal/sim/encoding"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
)

// ExportSnapshot captures the state after tick now has been resolved. It must run on the world
// loop goroutine (the tick step calls it for the snapshot sink).
func (w *World) ExportSnapshot(now uint64) snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			RoundID: w.cfg.RoundID,
			Tick:    now,
		},
		Seed:          w.cfg.Seed,
		Width:         w.cfg.Width,
		Height:        w.cfg.Height,
		TickMs:        w.cfg.TickMs,
		CatalogDigest: w.cats.Digest,
		Counters: snapshot.CountersV1{
			NextCreature: w.nextCreature,
			NextObject:   w.nextObject,
			NextEvent:    w.nextEvent,
		},
	}
	w.exportTerrain(&s)

	for _, id := range sortedKeys(w.creatures) {
		s.Creatures = append(s.Creatures, exportCreature(w.creatures[id]))
	}
	for _, id := range sortedKeys(w.ground) {
		g := w.ground[id]
		s.GroundObjects = append(s.GroundObjects, snapshot.GroundObjectV1{
			ID: g.ID, X: g.Pos.X, Y: g.Pos.Y, Object: objectRef(g.Object),
		})
	}
	for _, id := range sortedKeys(w.players) {
		p := w.players[id]
		pv := snapshot.PlayerV1{
			CreatureID:  p.creatureID,
			UserID:      p.userID,
			Username:    p.username,
			Score:       p.score,
			Dead:        p.dead,
			ReviveAt:    p.reviveAt,
			LastMessage: p.lastMsg.Load(),
			BestWeapon:  p.bestWeapon,
		}
		if len(p.bestDefenses) > 0 {
			pv.BestDefenses = make(map[string]int, len(p.bestDefenses))
			for slot, d := range p.bestDefenses {
				pv.BestDefenses[string(slot)] = d
			}
		}
		s.Players = append(s.Players, pv)
	}
	for _, id := range sortedKeys(w.monsters) {
		m := w.monsters[id]
		s.Monsters = append(s.Monsters, snapshot.MonsterV1{
			CreatureID: m.creatureID,
			HomeX:      m.home.X,
			HomeY:      m.home.Y,
			Dead:       m.dead,
			DiedAt:     m.diedAt,
		})
	}
	return s
}

// exportTerrain writes terrain layers in the map's column-major order (index x*height+y).
func (w *World) exportTerrain(s *snapshot.SnapshotV1) {
	n := w.cfg.Width * w.cfg.Height
	passable := make([]bool, n)
	var numbers, rotations [][]uint16

	for x := 0; x < w.cfg.Width; x++ {
		for y := 0; y < w.cfg.Height; y++ {
			i := x*w.cfg.Height + y
			t := w.m.Tile(geom.P(x, y))
			if t == nil {
				continue
			}
			passable[i] = t.Passable()
			for d, tt := range t.Terrain() {
				for len(numbers) <= d {
					numbers = append(numbers, make([]uint16, n))
					rotations = append(rotations, make([]uint16, n))
				}
				numbers[d][i] = uint16(tt.Number)
				rotations[d][i] = uint16(tt.Rotation)
			}
			for _, pr := range t.Properties() {
				s.Props = append(s.Props, snapshot.PropertyV1{X: x, Y: y, Kind: string(pr.Kind), Open: pr.Open})
			}
		}
	}
	s.Passable = encoding.EncodeBools(passable)
	for d := range numbers {
		s.Terrain = append(s.Terrain, snapshot.LayerV1{
			Numbers:   encoding.EncodeRLE(numbers[d]),
			Rotations: encoding.EncodeRLE(rotations[d]),
		})
	}
}

func exportCreature(c *entity.Creature) snapshot.CreatureV1 {
	cv := snapshot.CreatureV1{
		ID:       c.ID(),
		Name:     c.Name(),
		Player:   c.IsPlayerCreature(),
		UserID:   c.UserID(),
		X:        c.Position().X,
		Y:        c.Position().Y,
		HP:       c.HP(),
		MaxHP:    c.MaxHP(),
		Level:    c.Level(),
		Tile:     c.TileType().Number,
		TileRot:  c.TileType().Rotation,
		Behavior: c.Behavior(),
	}
	if wp := c.Weapon(); wp != nil {
		cv.WeaponID = wp.ID
	}
	for _, a := range c.Armour() {
		cv.ArmourIDs = append(cv.ArmourIDs, a.ID)
	}
	for _, o := range c.Inventory() {
		cv.Inventory = append(cv.Inventory, snapshot.OwnedV1{ID: o.ID, Object: objectRef(o.Object)})
	}
	for _, e := range c.ActiveEffects() {
		cv.Effects = append(cv.Effects, snapshot.EffectV1{Type: string(e.Type), Magnitude: e.Magnitude, Turns: e.RemainingTurns})
	}
	return cv
}

func objectRef(o entity.Object) snapshot.ObjectRefV1 {
	return snapshot.ObjectRefV1{Kind: string(o.Kind()), DefID: o.ObjectID()}
}
