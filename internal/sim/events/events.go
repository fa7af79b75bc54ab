// Package events defines what-happened records emitted by action resolution and the bounded
// Log agents query them through.
package events

import (
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
)

type Kind string

const (
	KindStep              Kind = "StepActionEvent"
	KindCombat            Kind = "CombatActionEvent"
	KindDrink             Kind = "DrinkItemActionEvent"
	KindEquip             Kind = "EquipActionEvent"
	KindMoveInventoryItem Kind = "MoveInventoryItemActionEvent"
)

// Event is implemented by Step, Combat, Drink, Equip and MoveInventoryItem. Events are
// immutable once created.
type Event interface {
	ID() int64
	Frame() uint64
	Kind() Kind
	Position() geom.Position
	// Involves reports whether creature id acted in or was targeted by the event.
	Involves(id int64) bool
	isEvent()
}

type Base struct {
	EventID int64
	Tick    uint64
}

func (b Base) ID() int64     { return b.EventID }
func (b Base) Frame() uint64 { return b.Tick }
func (Base) isEvent()        {}

type Step struct {
	Base
	CreatureID int64
	From, To   geom.Position
}

type Combat struct {
	Base
	AttackerID int64
	DefenderID int64
	Hit        bool
	Damage     int
	Pos        geom.Position
}

type Drink struct {
	Base
	CreatureID int64
	ObjectID   int64
	Effect     entity.Effect
	Pos        geom.Position
}

type Equip struct {
	Base
	CreatureID int64
	ObjectID   int64
	Pos        geom.Position
}

type MoveInventoryItem struct {
	Base
	CreatureID int64
	ObjectID   int64
	Drop       bool
	Pos        geom.Position
}

func (Step) Kind() Kind              { return KindStep }
func (Combat) Kind() Kind            { return KindCombat }
func (Drink) Kind() Kind             { return KindDrink }
func (Equip) Kind() Kind             { return KindEquip }
func (MoveInventoryItem) Kind() Kind { return KindMoveInventoryItem }

func (e Step) Position() geom.Position              { return e.To }
func (e Combat) Position() geom.Position            { return e.Pos }
func (e Drink) Position() geom.Position             { return e.Pos }
func (e Equip) Position() geom.Position             { return e.Pos }
func (e MoveInventoryItem) Position() geom.Position { return e.Pos }

func (e Step) Involves(id int64) bool              { return e.CreatureID == id }
func (e Combat) Involves(id int64) bool            { return e.AttackerID == id || e.DefenderID == id }
func (e Drink) Involves(id int64) bool             { return e.CreatureID == id }
func (e Equip) Involves(id int64) bool             { return e.CreatureID == id }
func (e MoveInventoryItem) Involves(id int64) bool { return e.CreatureID == id }

// Within reports whether e happened inside b. Step events count if either end is inside.
func Within(e Event, b geom.Box) bool {
	if s, ok := e.(Step); ok {
		return b.Contains(s.From) || b.Contains(s.To)
	}
	return b.Contains(e.Position())
}
