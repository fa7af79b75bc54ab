package world

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/events"
	"roguecloud.ai/internal/sim/path"
)

type RecordedAction struct {
	CreatureID int64           `json:"creature_id"`
	MessageID  int64           `json:"message_id,omitempty"`
	Type       string          `json:"type"`
	Action     json.RawMessage `json:"action"`
	Response   json.RawMessage `json:"response"`
}

// Score awards.
const (
	scoreKillPerLevel  = 1000
	scoreDrink         = 50
	scoreWeaponPerRate = 10
	scoreArmourPerDef  = 100
)

// Interest weights feeding the spectator follow choice.
const (
	interestStep   = 1
	interestItem   = 2
	interestCombat = 5
)

func (w *World) slotFor(id int64) *action.Slot {
	if p := w.players[id]; p != nil {
		return p.slot()
	}
	if m := w.monsters[id]; m != nil && !m.dead {
		return m.slot
	}
	return nil
}

// resolveActions drains every pending action once, by ascending creature id.
func (w *World) resolveActions(now uint64) {
	for _, id := range sortedKeys(w.creatures) {
		slot := w.slotFor(id)
		if slot == nil {
			continue
		}
		f := slot.Take()
		if f == nil {
			continue
		}
		resp := w.resolveSafely(now, id, f.Action())
		// Cached before resolving so a waiter woken by Resolve finds the wire message.
		if p := w.players[id]; p != nil {
			w.cacheResponse(now, p, f, resp)
		}
		f.Resolve(resp)
		w.recordAction(id, f, resp)
	}
}

func (w *World) resolveSafely(now uint64, id int64, a action.Action) (resp action.Response) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("action resolution failed",
				zap.Int64("creature_id", id),
				zap.String("action", string(a.Kind())),
				zap.Uint64("tick", now),
				zap.String("panic", fmt.Sprint(r)))
			resp = action.Failure(a)
		}
	}()
	return w.resolve(now, id, a)
}

func (w *World) resolve(now uint64, id int64, a action.Action) action.Response {
	switch v := a.(type) {
	case action.Step:
		return w.resolveStep(now, id, v)
	case action.Combat:
		return w.resolveCombat(now, id, v)
	case action.Drink:
		return w.resolveDrink(now, id, v)
	case action.Equip:
		return w.resolveEquip(now, id, v)
	case action.MoveInventoryItem:
		if v.Drop {
			return w.resolveDrop(now, id, v)
		}
		return w.resolvePickup(now, id, v)
	default:
		return action.NullResponse{}
	}
}

func (w *World) recordAction(id int64, f *action.Future, resp action.Response) {
	if w.tickLogger == nil {
		return
	}
	rawAct, err := protocol.EncodeAction(f.Action())
	if err != nil {
		return
	}
	rawResp, err := protocol.EncodeResponse(resp)
	if err != nil {
		return
	}
	w.tickActions = append(w.tickActions, RecordedAction{
		CreatureID: id,
		MessageID:  f.MessageID(),
		Type:       string(f.Action().Kind()),
		Action:     rawAct,
		Response:   rawResp,
	})
}

func (w *World) living(id int64) *entity.Creature {
	c := w.creatures[id]
	if c == nil || c.IsDead() {
		return nil
	}
	return c
}

func (w *World) resolveStep(now uint64, id int64, s action.Step) action.Response {
	c := w.living(id)
	if c == nil {
		return action.StepResponse{FailReason: action.StepOther}
	}
	from := c.Position()
	if !from.IsCardinalNeighbor(s.Destination) || !path.Passable(w.m, s.Destination) {
		return action.StepResponse{FailReason: action.StepBlocked}
	}
	w.mutate(id, func(c *entity.Creature) { c.SetPosition(s.Destination) })
	w.emit(events.Step{Base: w.base(now), CreatureID: id, From: from, To: s.Destination})
	w.follow.note(id, interestStep)
	return action.StepResponse{Success: true, NewPosition: s.Destination}
}

func (w *World) resolveCombat(now uint64, id int64, a action.Combat) action.Response {
	fail := action.CombatResponse{Result: action.CombatCouldNotAttack, TargetCreatureID: a.TargetCreatureID}
	attacker := w.living(id)
	target := w.living(a.TargetCreatureID)
	if attacker == nil || target == nil || target.ID() == id {
		return fail
	}
	if !path.CanReach(w.m, attacker.Position(), target.Position()) {
		return fail
	}

	weapon := w.weaponOf(attacker)
	hit := w.rollHit(weapon, target)
	damage := 0
	if hit {
		damage = reduceDamage(w.rollDamage(weapon), target.ActiveEffects())
	}
	after := w.mutate(target.ID(), func(c *entity.Creature) { c.SetHP(c.HP() - damage) })

	w.emit(events.Combat{
		Base:       w.base(now),
		AttackerID: id,
		DefenderID: target.ID(),
		Hit:        hit,
		Damage:     damage,
		Pos:        target.Position(),
	})
	w.follow.note(id, interestCombat)
	w.follow.note(target.ID(), interestCombat)

	if after.IsDead() {
		if p := w.players[id]; p != nil {
			p.score += int64(scoreKillPerLevel * max(1, after.Level()))
		}
		w.onDeath(now, after.ID())
	}
	result := action.CombatMiss
	if hit {
		result = action.CombatHit
	}
	return action.CombatResponse{Result: result, DamageDealt: damage, TargetCreatureID: target.ID()}
}

func (w *World) resolveDrink(now uint64, id int64, d action.Drink) action.Response {
	fail := action.DrinkResponse{ObjectID: d.ObjectID}
	c := w.living(id)
	if c == nil {
		return fail
	}
	item, ok := c.InventoryItem(d.ObjectID)
	if !ok {
		return fail
	}
	potion, ok := item.Object.(*entity.Potion)
	if !ok {
		return fail
	}
	eff := potion.Effect
	w.mutate(id, func(c *entity.Creature) {
		c.RemoveInventory(d.ObjectID)
		c.ApplyEffect(eff)
	})
	w.emit(events.Drink{Base: w.base(now), CreatureID: id, ObjectID: d.ObjectID, Effect: eff, Pos: c.Position()})
	w.follow.note(id, interestItem)
	if p := w.players[id]; p != nil {
		p.score += scoreDrink
	}
	return action.DrinkResponse{Success: true, ObjectID: d.ObjectID, Effect: &eff}
}

func (w *World) resolveEquip(now uint64, id int64, e action.Equip) action.Response {
	fail := action.EquipResponse{ObjectID: e.ObjectID}
	c := w.living(id)
	if c == nil {
		return fail
	}
	item, ok := c.InventoryItem(e.ObjectID)
	if !ok {
		return fail
	}
	p := w.players[id]

	switch o := item.Object.(type) {
	case *entity.Weapon:
		w.mutate(id, func(c *entity.Creature) {
			c.RemoveInventory(e.ObjectID)
			prev := c.Weapon()
			c.SetWeapon(o)
			if !w.isBareHands(prev) {
				c.AddInventory(entity.OwnableObject{ID: w.newObjectID(), Object: prev})
			}
		})
		if p != nil && o.Rating() > p.bestWeapon {
			p.score += int64(scoreWeaponPerRate * (o.Rating() - p.bestWeapon))
			p.bestWeapon = o.Rating()
		}
	case *entity.Armour:
		w.mutate(id, func(c *entity.Creature) {
			c.RemoveInventory(e.ObjectID)
			if prev := c.EquipArmour(o); prev != nil {
				c.AddInventory(entity.OwnableObject{ID: w.newObjectID(), Object: prev})
			}
		})
		if p != nil && o.Defense > p.bestDefenses[o.Slot] {
			p.score += int64(scoreArmourPerDef * (o.Defense - p.bestDefenses[o.Slot]))
			p.bestDefenses[o.Slot] = o.Defense
		}
	default:
		return fail
	}
	w.emit(events.Equip{Base: w.base(now), CreatureID: id, ObjectID: e.ObjectID, Pos: c.Position()})
	w.follow.note(id, interestItem)
	return action.EquipResponse{Success: true, ObjectID: e.ObjectID}
}

func (w *World) resolvePickup(now uint64, id int64, m action.MoveInventoryItem) action.Response {
	fail := action.MoveInventoryItemResponse{ObjectID: m.ObjectID}
	c := w.living(id)
	if c == nil {
		return fail
	}
	g := w.ground[m.ObjectID]
	if g == nil || !path.CanReach(w.m, c.Position(), g.Pos) {
		return fail
	}
	w.takeFromGround(g.ID)
	w.mutate(id, func(c *entity.Creature) {
		c.AddInventory(entity.OwnableObject{ID: g.ID, Object: g.Object})
	})
	w.emit(events.MoveInventoryItem{Base: w.base(now), CreatureID: id, ObjectID: g.ID, Pos: g.Pos})
	w.follow.note(id, interestItem)
	return action.MoveInventoryItemResponse{Success: true, ObjectID: g.ID}
}

func (w *World) resolveDrop(now uint64, id int64, m action.MoveInventoryItem) action.Response {
	fail := action.MoveInventoryItemResponse{ObjectID: m.ObjectID, Drop: true}
	c := w.living(id)
	if c == nil {
		return fail
	}
	item, ok := c.InventoryItem(m.ObjectID)
	if !ok {
		return fail
	}
	pos := c.Position()
	w.mutate(id, func(c *entity.Creature) { c.RemoveInventory(m.ObjectID) })
	w.dropOnGround(item.ID, item.Object, pos)
	w.emit(events.MoveInventoryItem{Base: w.base(now), CreatureID: id, ObjectID: item.ID, Drop: true, Pos: pos})
	w.follow.note(id, interestItem)
	return action.MoveInventoryItemResponse{Success: true, ObjectID: item.ID, Drop: true}
}
