package entity

import "roguecloud.ai/internal/sim/geom"

// TileType is a sprite reference: a tile number plus an optional rotation in degrees.
type TileType struct {
	Number   int `json:"number"`
	Rotation int `json:"rotation,omitempty"`
}

type ObjectKind string

const (
	KindWeapon ObjectKind = "WEAPON"
	KindArmour ObjectKind = "ARMOUR"
	KindItem   ObjectKind = "ITEM"
)

// Object is the closed set of catalog definitions an item can wrap: *Weapon, *Armour, *Potion.
// Definitions are immutable once loaded and may be shared freely between goroutines.
type Object interface {
	ObjectID() int64
	ObjectName() string
	ObjectTile() TileType
	Kind() ObjectKind

	isObject()
}

type WeaponHands string

const (
	OneHanded WeaponHands = "ONE"
	TwoHanded WeaponHands = "TWO"
)

type Weapon struct {
	ID             int64
	Name           string
	Type           string
	NumAttackDice  int
	AttackDiceSize int
	AttackPlus     int
	HitRating      int
	Hands          WeaponHands
	Tile           TileType
}

func (w *Weapon) ObjectID() int64      { return w.ID }
func (w *Weapon) ObjectName() string   { return w.Name }
func (w *Weapon) ObjectTile() TileType { return w.Tile }
func (w *Weapon) Kind() ObjectKind     { return KindWeapon }
func (*Weapon) isObject()              {}

// Rating is the expected damage per hit, used to score upgrades.
func (w *Weapon) Rating() int {
	if w == nil {
		return 0
	}
	return w.NumAttackDice*(w.AttackDiceSize+1)/2 + w.AttackPlus
}

type ArmourSlot string

const (
	SlotHead   ArmourSlot = "HEAD"
	SlotChest  ArmourSlot = "CHEST"
	SlotLegs   ArmourSlot = "LEGS"
	SlotFeet   ArmourSlot = "FEET"
	SlotShield ArmourSlot = "SHIELD"
)

// ArmourSlots lists every slot in presentation order.
var ArmourSlots = []ArmourSlot{SlotHead, SlotChest, SlotLegs, SlotFeet, SlotShield}

func ValidArmourSlot(s ArmourSlot) bool {
	for _, v := range ArmourSlots {
		if v == s {
			return true
		}
	}
	return false
}

type Armour struct {
	ID      int64
	Name    string
	Defense int
	Slot    ArmourSlot
	Tile    TileType
}

func (a *Armour) ObjectID() int64      { return a.ID }
func (a *Armour) ObjectName() string   { return a.Name }
func (a *Armour) ObjectTile() TileType { return a.Tile }
func (a *Armour) Kind() ObjectKind     { return KindArmour }
func (*Armour) isObject()              {}

// Potion is a drinkable item wrapping an effect template.
type Potion struct {
	ID     int64
	Name   string
	Effect Effect
	Tile   TileType
}

func (p *Potion) ObjectID() int64      { return p.ID }
func (p *Potion) ObjectName() string   { return p.Name }
func (p *Potion) ObjectTile() TileType { return p.Tile }
func (p *Potion) Kind() ObjectKind     { return KindItem }
func (*Potion) isObject()              {}

// OwnableObject is an object held in an inventory. Equality is by ID only.
type OwnableObject struct {
	ID     int64
	Object Object
}

// GroundObject is an object lying on a world tile.
type GroundObject struct {
	ID     int64
	Object Object
	Pos    geom.Position
}
