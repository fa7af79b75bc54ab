// Package action holds the closed set of agent actions and their responses, plus the one-shot
// Future and per-agent Slot that carry an action from an agent to the world loop and back.
package action

import (
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/geom"
)

type Kind string

const (
	KindStep              Kind = "StepAction"
	KindCombat            Kind = "CombatAction"
	KindDrink             Kind = "DrinkItemAction"
	KindEquip             Kind = "EquipAction"
	KindMoveInventoryItem Kind = "MoveInventoryItemAction"
	KindNull              Kind = "NullAction"
)

// Action is implemented by Step, Combat, Drink, Equip, MoveInventoryItem and Null only.
type Action interface {
	Kind() Kind
	isAction()
}

type Step struct {
	Destination geom.Position
}

type Combat struct {
	TargetCreatureID int64
}

type Drink struct {
	ObjectID int64
}

type Equip struct {
	ObjectID int64
}

// MoveInventoryItem picks an object up from the ground (Drop=false) or drops one from the
// inventory onto the actor's tile (Drop=true).
type MoveInventoryItem struct {
	ObjectID int64
	Drop     bool
}

type Null struct{}

func (Step) Kind() Kind              { return KindStep }
func (Combat) Kind() Kind            { return KindCombat }
func (Drink) Kind() Kind             { return KindDrink }
func (Equip) Kind() Kind             { return KindEquip }
func (MoveInventoryItem) Kind() Kind { return KindMoveInventoryItem }
func (Null) Kind() Kind              { return KindNull }

func (Step) isAction()              {}
func (Combat) isAction()            {}
func (Drink) isAction()             {}
func (Equip) isAction()             {}
func (MoveInventoryItem) isAction() {}
func (Null) isAction()              {}

type StepFailReason string

const (
	StepBlocked StepFailReason = "BLOCKED"
	StepOther   StepFailReason = "OTHER"
)

type CombatResult string

const (
	CombatHit            CombatResult = "HIT"
	CombatMiss           CombatResult = "MISS"
	CombatCouldNotAttack CombatResult = "COULD_NOT_ATTACK"
	CombatOther          CombatResult = "OTHER"
)

// Response is the result of exactly one Action; each Action kind has one Response type.
type Response interface {
	Kind() Kind
	Succeeded() bool
	isResponse()
}

type StepResponse struct {
	Success     bool
	NewPosition geom.Position
	FailReason  StepFailReason
}

type CombatResponse struct {
	Result           CombatResult
	DamageDealt      int
	TargetCreatureID int64
}

type DrinkResponse struct {
	Success  bool
	ObjectID int64
	Effect   *entity.Effect
}

type EquipResponse struct {
	Success  bool
	ObjectID int64
}

type MoveInventoryItemResponse struct {
	Success  bool
	ObjectID int64
	Drop     bool
}

type NullResponse struct{}

func (StepResponse) Kind() Kind              { return KindStep }
func (CombatResponse) Kind() Kind            { return KindCombat }
func (DrinkResponse) Kind() Kind             { return KindDrink }
func (EquipResponse) Kind() Kind             { return KindEquip }
func (MoveInventoryItemResponse) Kind() Kind { return KindMoveInventoryItem }
func (NullResponse) Kind() Kind              { return KindNull }

func (r StepResponse) Succeeded() bool { return r.Success }

// Succeeded is true for HIT and MISS: the attack was performed.
func (r CombatResponse) Succeeded() bool {
	return r.Result == CombatHit || r.Result == CombatMiss
}
func (r DrinkResponse) Succeeded() bool             { return r.Success }
func (r EquipResponse) Succeeded() bool             { return r.Success }
func (r MoveInventoryItemResponse) Succeeded() bool { return r.Success }
func (NullResponse) Succeeded() bool                { return true }

func (StepResponse) isResponse()              {}
func (CombatResponse) isResponse()            {}
func (DrinkResponse) isResponse()             {}
func (EquipResponse) isResponse()             {}
func (MoveInventoryItemResponse) isResponse() {}
func (NullResponse) isResponse()              {}

// Failure returns the generic failed response for a, used for actions that were superseded or
// whose resolution faulted.
func Failure(a Action) Response {
	switch v := a.(type) {
	case Step:
		return StepResponse{FailReason: StepOther}
	case Combat:
		return CombatResponse{Result: CombatOther, TargetCreatureID: v.TargetCreatureID}
	case Drink:
		return DrinkResponse{ObjectID: v.ObjectID}
	case Equip:
		return EquipResponse{ObjectID: v.ObjectID}
	case MoveInventoryItem:
		return MoveInventoryItemResponse{ObjectID: v.ObjectID, Drop: v.Drop}
	default:
		return NullResponse{}
	}
}
