package protocol

import (
	"encoding/json"
	"fmt"

	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/events"
	"roguecloud.ai/internal/sim/geom"
)

func FromPosition(p geom.Position) Position { return Position{X: p.X, Y: p.Y} }
func (p Position) Geom() geom.Position     { return geom.P(p.X, p.Y) }

func FromTile(t entity.TileType) TileRef { return TileRef{Number: t.Number, Rotation: t.Rotation} }
func (t TileRef) Entity() entity.TileType {
	return entity.TileType{Number: t.Number, Rotation: t.Rotation}
}

func FromEffect(e entity.Effect) Effect {
	return Effect{Type: string(e.Type), Magnitude: e.Magnitude, RemainingTurns: e.RemainingTurns, Name: e.Name()}
}

func (e Effect) Entity() entity.Effect {
	return entity.Effect{Type: entity.EffectType(e.Type), Magnitude: e.Magnitude, RemainingTurns: e.RemainingTurns}
}

// DecodeAction parses an action payload by its type field.
func DecodeAction(raw json.RawMessage) (action.Action, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	switch base.Type {
	case TypeStepAction:
		var m StepAction
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return action.Step{Destination: m.Destination.Geom()}, nil
	case TypeCombatAction:
		var m CombatAction
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return action.Combat{TargetCreatureID: m.TargetCreatureID}, nil
	case TypeDrinkItemAction:
		var m DrinkItemAction
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return action.Drink{ObjectID: m.ID}, nil
	case TypeEquipAction:
		var m EquipAction
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return action.Equip{ObjectID: m.ObjectID}, nil
	case TypeMoveInventoryItemAction:
		var m MoveInventoryItemAction
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return action.MoveInventoryItem{ObjectID: m.ObjectID, Drop: m.DropItem}, nil
	case TypeNullAction:
		return action.Null{}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", base.Type)
	}
}

// EncodeAction is the inverse of DecodeAction.
func EncodeAction(a action.Action) (json.RawMessage, error) {
	var v any
	switch a := a.(type) {
	case action.Step:
		v = StepAction{Type: TypeStepAction, Destination: FromPosition(a.Destination)}
	case action.Combat:
		v = CombatAction{Type: TypeCombatAction, TargetCreatureID: a.TargetCreatureID}
	case action.Drink:
		v = DrinkItemAction{Type: TypeDrinkItemAction, ID: a.ObjectID}
	case action.Equip:
		v = EquipAction{Type: TypeEquipAction, ObjectID: a.ObjectID}
	case action.MoveInventoryItem:
		v = MoveInventoryItemAction{Type: TypeMoveInventoryItemAction, ObjectID: a.ObjectID, DropItem: a.Drop}
	case action.Null, nil:
		v = NullAction{Type: TypeNullAction}
	default:
		return nil, fmt.Errorf("unsupported action %T", a)
	}
	return json.Marshal(v)
}

func EncodeResponse(r action.Response) (json.RawMessage, error) {
	var v any
	switch r := r.(type) {
	case action.StepResponse:
		m := StepActionResponse{Type: TypeStepActionResponse, Success: r.Success}
		if r.Success {
			p := FromPosition(r.NewPosition)
			m.NewPosition = &p
		} else {
			m.FailReason = string(r.FailReason)
		}
		v = m
	case action.CombatResponse:
		v = CombatActionResponse{Type: TypeCombatActionResponse, Result: string(r.Result), DamageDealt: r.DamageDealt, TargetCreatureID: r.TargetCreatureID}
	case action.DrinkResponse:
		m := DrinkItemActionResponse{Type: TypeDrinkItemActionResponse, Success: r.Success, ID: r.ObjectID}
		if r.Effect != nil {
			e := FromEffect(*r.Effect)
			m.Effect = &e
		}
		v = m
	case action.EquipResponse:
		v = EquipActionResponse{Type: TypeEquipActionResponse, Success: r.Success, ObjectID: r.ObjectID}
	case action.MoveInventoryItemResponse:
		v = MoveInventoryItemActionResponse{Type: TypeMoveInventoryItemActionResponse, Success: r.Success, ObjectID: r.ObjectID, DropItem: r.Drop}
	case action.NullResponse:
		v = NullActionResponse{Type: TypeNullActionResponse}
	default:
		return nil, fmt.Errorf("unsupported response %T", r)
	}
	return json.Marshal(v)
}

func DecodeResponse(raw json.RawMessage) (action.Response, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch base.Type {
	case TypeStepActionResponse:
		var m StepActionResponse
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		r := action.StepResponse{Success: m.Success, FailReason: action.StepFailReason(m.FailReason)}
		if m.NewPosition != nil {
			r.NewPosition = m.NewPosition.Geom()
		}
		return r, nil
	case TypeCombatActionResponse:
		var m CombatActionResponse
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return action.CombatResponse{Result: action.CombatResult(m.Result), DamageDealt: m.DamageDealt, TargetCreatureID: m.TargetCreatureID}, nil
	case TypeDrinkItemActionResponse:
		var m DrinkItemActionResponse
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		r := action.DrinkResponse{Success: m.Success, ObjectID: m.ID}
		if m.Effect != nil {
			e := m.Effect.Entity()
			r.Effect = &e
		}
		return r, nil
	case TypeEquipActionResponse:
		var m EquipActionResponse
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return action.EquipResponse{Success: m.Success, ObjectID: m.ObjectID}, nil
	case TypeMoveInventoryItemActionResponse:
		var m MoveInventoryItemActionResponse
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return action.MoveInventoryItemResponse{Success: m.Success, ObjectID: m.ObjectID, Drop: m.DropItem}, nil
	case TypeNullActionResponse:
		return action.NullResponse{}, nil
	default:
		return nil, fmt.Errorf("unknown response type %q", base.Type)
	}
}

func FromEvent(e events.Event) Event {
	out := Event{Type: string(e.Kind()), ID: e.ID(), Frame: e.Frame(), Position: FromPosition(e.Position())}
	switch e := e.(type) {
	case events.Step:
		from, to := FromPosition(e.From), FromPosition(e.To)
		out.CreatureID, out.From, out.To = e.CreatureID, &from, &to
	case events.Combat:
		out.AttackerID, out.DefenderID, out.Hit, out.Damage = e.AttackerID, e.DefenderID, e.Hit, e.Damage
	case events.Drink:
		eff := FromEffect(e.Effect)
		out.CreatureID, out.ObjectID, out.Effect = e.CreatureID, e.ObjectID, &eff
	case events.Equip:
		out.CreatureID, out.ObjectID = e.CreatureID, e.ObjectID
	case events.MoveInventoryItem:
		out.CreatureID, out.ObjectID, out.DropItem = e.CreatureID, e.ObjectID, e.Drop
	}
	return out
}

// Domain converts a wire event back into its events variant.
func (e Event) Domain() (events.Event, error) {
	base := events.Base{EventID: e.ID, Tick: e.Frame}
	pos := e.Position.Geom()
	switch events.Kind(e.Type) {
	case events.KindStep:
		if e.From == nil || e.To == nil {
			return nil, fmt.Errorf("step event %d missing from/to", e.ID)
		}
		return events.Step{Base: base, CreatureID: e.CreatureID, From: e.From.Geom(), To: e.To.Geom()}, nil
	case events.KindCombat:
		return events.Combat{Base: base, AttackerID: e.AttackerID, DefenderID: e.DefenderID, Hit: e.Hit, Damage: e.Damage, Pos: pos}, nil
	case events.KindDrink:
		ev := events.Drink{Base: base, CreatureID: e.CreatureID, ObjectID: e.ObjectID, Pos: pos}
		if e.Effect != nil {
			ev.Effect = e.Effect.Entity()
		}
		return ev, nil
	case events.KindEquip:
		return events.Equip{Base: base, CreatureID: e.CreatureID, ObjectID: e.ObjectID, Pos: pos}, nil
	case events.KindMoveInventoryItem:
		return events.MoveInventoryItem{Base: base, CreatureID: e.CreatureID, ObjectID: e.ObjectID, Drop: e.DropItem, Pos: pos}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// FromCreature converts c for a frame. Equipment and effects are included only when detailed.
func FromCreature(c *entity.Creature, detailed bool) Creature {
	out := Creature{
		ID:       c.ID(),
		Name:     c.Name(),
		Position: FromPosition(c.Position()),
		HP:       c.HP(),
		MaxHP:    c.MaxHP(),
		Level:    c.Level(),
		Player:   c.IsPlayerCreature(),
		Tile:     FromTile(c.TileType()),
	}
	if c.IsPlayerCreature() {
		out.Username = c.Name()
	}
	if !detailed {
		return out
	}
	if w := c.Weapon(); w != nil {
		out.WeaponID = w.ID
	}
	for _, a := range c.Armour() {
		out.ArmourIDs = append(out.ArmourIDs, a.ID)
	}
	for _, e := range c.ActiveEffects() {
		out.Effects = append(out.Effects, FromEffect(e))
	}
	return out
}

// Entity rebuilds a creature from its frame form. Equipment ids are not resolved.
func (c Creature) Entity() *entity.Creature {
	out := entity.NewCreature(entity.CreatureSpec{
		ID: c.ID, Name: c.Name, Player: c.Player, Pos: c.Position.Geom(),
		MaxHP: c.MaxHP, Level: c.Level, Tile: c.Tile.Entity(),
	})
	out.SetHP(c.HP)
	if len(c.Effects) > 0 {
		effects := make([]entity.Effect, 0, len(c.Effects))
		for _, e := range c.Effects {
			effects = append(effects, e.Entity())
		}
		out.SetEffects(effects)
	}
	return out
}

func FromWeapon(w *entity.Weapon) WeaponDef {
	return WeaponDef{
		ID: w.ID, Name: w.Name, WeaponType: w.Type,
		NumAttackDice: w.NumAttackDice, AttackDiceSize: w.AttackDiceSize, AttackPlus: w.AttackPlus,
		HitRating: w.HitRating, Hands: string(w.Hands), Tile: FromTile(w.Tile),
	}
}

func (d WeaponDef) Entity() *entity.Weapon {
	return &entity.Weapon{
		ID: d.ID, Name: d.Name, Type: d.WeaponType,
		NumAttackDice: d.NumAttackDice, AttackDiceSize: d.AttackDiceSize, AttackPlus: d.AttackPlus,
		HitRating: d.HitRating, Hands: entity.WeaponHands(d.Hands), Tile: d.Tile.Entity(),
	}
}

func FromArmour(a *entity.Armour) ArmourDef {
	return ArmourDef{ID: a.ID, Name: a.Name, Defense: a.Defense, Slot: string(a.Slot), Tile: FromTile(a.Tile)}
}

func (d ArmourDef) Entity() *entity.Armour {
	return &entity.Armour{ID: d.ID, Name: d.Name, Defense: d.Defense, Slot: entity.ArmourSlot(d.Slot), Tile: d.Tile.Entity()}
}

func FromPotion(p *entity.Potion) DrinkableDef {
	return DrinkableDef{ID: p.ID, Name: p.Name, Effect: FromEffect(p.Effect), Tile: FromTile(p.Tile)}
}

func (d DrinkableDef) Entity() *entity.Potion {
	return &entity.Potion{ID: d.ID, Name: d.Name, Effect: d.Effect.Entity(), Tile: d.Tile.Entity()}
}

func FromGroundObject(g *entity.GroundObject) GroundObject {
	return GroundObject{ID: g.ID, Kind: string(g.Object.Kind()), ObjectID: g.Object.ObjectID(), Position: FromPosition(g.Pos)}
}

func (g GroundObject) Entity(obj entity.Object) *entity.GroundObject {
	return &entity.GroundObject{ID: g.ID, Object: obj, Pos: g.Position.Geom()}
}

func FromOwnable(o entity.OwnableObject) InventoryEntry {
	return InventoryEntry{ID: o.ID, Kind: string(o.Object.Kind()), ObjectID: o.Object.ObjectID()}
}
