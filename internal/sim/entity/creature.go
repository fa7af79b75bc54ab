package entity

import "roguecloud.ai/internal/sim/geom"

// Creature is a player-controlled creature or a monster.
//
// The world loop owns every *Creature it creates and never mutates one that may have been
// published to readers: it clones, mutates the clone, and swaps the pointer. Readers can
// therefore hold a *Creature from a read snapshot without locking. Accessors that expose
// lists return copies.
type Creature struct {
	id     int64
	name   string
	player bool
	userID int64

	pos   geom.Position
	hp    int
	maxHP int
	level int

	weapon    *Weapon
	armour    ArmourSet
	inventory []OwnableObject
	effects   []Effect

	tile     TileType
	behavior string
}

type CreatureSpec struct {
	ID       int64
	Name     string
	Player   bool
	UserID   int64
	Pos      geom.Position
	MaxHP    int
	Level    int
	Weapon   *Weapon
	Tile     TileType
	Behavior string
}

func NewCreature(spec CreatureSpec) *Creature {
	level := spec.Level
	if level <= 0 {
		level = 1
	}
	maxHP := spec.MaxHP
	if maxHP <= 0 {
		maxHP = 1
	}
	return &Creature{
		id:       spec.ID,
		name:     spec.Name,
		player:   spec.Player,
		userID:   spec.UserID,
		pos:      spec.Pos,
		hp:       maxHP,
		maxHP:    maxHP,
		level:    level,
		weapon:   spec.Weapon,
		tile:     spec.Tile,
		behavior: spec.Behavior,
	}
}

func (c *Creature) ID() int64               { return c.id }
func (c *Creature) Name() string            { return c.name }
func (c *Creature) IsPlayerCreature() bool  { return c.player }
func (c *Creature) UserID() int64           { return c.userID }
func (c *Creature) Position() geom.Position { return c.pos }
func (c *Creature) HP() int                 { return c.hp }
func (c *Creature) MaxHP() int              { return c.maxHP }
func (c *Creature) Level() int              { return c.level }
func (c *Creature) Weapon() *Weapon         { return c.weapon }
func (c *Creature) TileType() TileType      { return c.tile }
func (c *Creature) Behavior() string        { return c.behavior }
func (c *Creature) IsDead() bool            { return c.hp <= 0 }

// Armour returns the equipped pieces in slot order.
func (c *Creature) Armour() []*Armour { return c.armour.All() }

func (c *Creature) ArmourIn(slot ArmourSlot) *Armour { return c.armour.Get(slot) }

func (c *Creature) TotalDefense() int { return c.armour.TotalDefense() }

func (c *Creature) Inventory() []OwnableObject {
	out := make([]OwnableObject, len(c.inventory))
	copy(out, c.inventory)
	return out
}

func (c *Creature) ActiveEffects() []Effect {
	out := make([]Effect, len(c.effects))
	copy(out, c.effects)
	return out
}

// InventoryItem looks up an inventory entry by its ownable id.
func (c *Creature) InventoryItem(id int64) (OwnableObject, bool) {
	for _, o := range c.inventory {
		if o.ID == id {
			return o, true
		}
	}
	return OwnableObject{}, false
}

// Clone returns a deep copy whose lists can be mutated without affecting c.
func (c *Creature) Clone() *Creature {
	cp := *c
	cp.armour = c.armour.clone()
	cp.inventory = c.Inventory()
	cp.effects = c.ActiveEffects()
	return &cp
}

// Mutators. Callers must hold an unpublished clone.

func (c *Creature) SetPosition(p geom.Position) { c.pos = p }

// SetHP clamps to [0, maxHP].
func (c *Creature) SetHP(hp int) {
	if hp < 0 {
		hp = 0
	}
	if hp > c.maxHP {
		hp = c.maxHP
	}
	c.hp = hp
}

// SetMaxHP keeps hp <= maxHP.
func (c *Creature) SetMaxHP(maxHP int) {
	if maxHP < 1 {
		maxHP = 1
	}
	c.maxHP = maxHP
	if c.hp > maxHP {
		c.hp = maxHP
	}
}

func (c *Creature) SetWeapon(w *Weapon) { c.weapon = w }

// EquipArmour puts a into its slot and returns the replaced piece.
func (c *Creature) EquipArmour(a *Armour) *Armour { return c.armour.Put(a) }

// UnequipArmour empties slot and returns what was there.
func (c *Creature) UnequipArmour(slot ArmourSlot) *Armour { return c.armour.Remove(slot) }

func (c *Creature) AddInventory(o OwnableObject) { c.inventory = append(c.inventory, o) }

func (c *Creature) RemoveInventory(id int64) (OwnableObject, bool) {
	for i, o := range c.inventory {
		if o.ID == id {
			c.inventory = append(c.inventory[:i], c.inventory[i+1:]...)
			return o, true
		}
	}
	return OwnableObject{}, false
}

// ApplyEffect adds e, replacing any active effect of the same type.
func (c *Creature) ApplyEffect(e Effect) {
	for i := range c.effects {
		if c.effects[i].Type == e.Type {
			c.effects[i] = e
			return
		}
	}
	c.effects = append(c.effects, e)
}

func (c *Creature) SetEffects(effects []Effect) {
	c.effects = append(c.effects[:0:0], effects...)
}

func (c *Creature) ClearEffects() { c.effects = nil }
