// Package catalogs loads the immutable content definitions (weapons, armour, potions,
// monsters, terrain tiles) from JSON files in the config directory.
package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"roguecloud.ai/internal/sim/entity"
)

// BareHandsName is the weapon every creature falls back to when nothing is equipped.
const BareHandsName = "Bare Hands"

type Catalogs struct {
	Weapons  WeaponCatalog
	Armours  ArmourCatalog
	Potions  PotionCatalog
	Monsters MonsterCatalog
	Tiles    TileCatalog

	// Digest covers every catalog file in load order.
	Digest string
}

type WeaponCatalog struct {
	List      []*entity.Weapon
	ByID      map[int64]*entity.Weapon
	BareHands *entity.Weapon
	Digest    string
}

type ArmourCatalog struct {
	List   []*entity.Armour
	ByID   map[int64]*entity.Armour
	Digest string
}

type PotionCatalog struct {
	List   []*entity.Potion
	ByID   map[int64]*entity.Potion
	Digest string
}

type MonsterCatalog struct {
	List   []MonsterDef
	ByID   map[int64]MonsterDef
	Digest string
}

type TileCatalog struct {
	ByName map[string]entity.TileType
	Digest string
}

type WeaponDef struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	NumAttackDice  int    `json:"num_attack_dice"`
	AttackDiceSize int    `json:"attack_dice_size"`
	AttackPlus     int    `json:"attack_plus"`
	HitRating      int    `json:"hit_rating"`
	Hands          string `json:"hands"`
	Tile           int    `json:"tile"`
}

type ArmourDef struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Defense int    `json:"defense"`
	Slot    string `json:"slot"`
	Tile    int    `json:"tile"`
}

type PotionDef struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Effect    string `json:"effect"`
	Magnitude int    `json:"magnitude"`
	Turns     int    `json:"turns"`
	Tile      int    `json:"tile"`
}

// MonsterDef is a spawnable monster template.
type MonsterDef struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Level     int     `json:"level"`
	MaxHP     int     `json:"max_hp"`
	WeaponID  int64   `json:"weapon_id"`
	ArmourIDs []int64 `json:"armour_ids,omitempty"`
	Behavior  string  `json:"behavior"`
	Tile      int     `json:"tile"`
	Weight    int     `json:"weight"`
}

type tileDef struct {
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Rotation int    `json:"rotation,omitempty"`
}

// Tile names the world generator and engine rely on.
var requiredTiles = []string{"grass", "wall", "road", "rock", "player", "floor"}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	var all bytes.Buffer

	steps := []struct {
		file string
		load func([]byte) error
	}{
		{"tiles.json", c.Tiles.load},
		{"weapons.json", c.Weapons.load},
		{"armours.json", c.Armours.load},
		{"potions.json", c.Potions.load},
		{"monsters.json", c.Monsters.load},
	}
	for _, s := range steps {
		raw, err := os.ReadFile(filepath.Join(configDir, s.file))
		if err != nil {
			return nil, err
		}
		if err := s.load(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", s.file, err)
		}
		all.Write(raw)
		all.WriteByte('\n')
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.Digest = sha256Hex(all.Bytes())
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (c *TileCatalog) load(raw []byte) error {
	var defs []tileDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	c.Digest = sha256Hex(raw)
	c.ByName = make(map[string]entity.TileType, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("empty tile name")
		}
		c.ByName[d.Name] = entity.TileType{Number: d.Number, Rotation: d.Rotation}
	}
	for _, n := range requiredTiles {
		if _, ok := c.ByName[n]; !ok {
			return fmt.Errorf("missing tile %q", n)
		}
	}
	return nil
}

func (c *TileCatalog) Get(name string) entity.TileType { return c.ByName[name] }

func (c *WeaponCatalog) load(raw []byte) error {
	var defs []WeaponDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	c.Digest = sha256Hex(raw)
	c.ByID = make(map[int64]*entity.Weapon, len(defs))
	for _, d := range defs {
		if d.ID <= 0 || d.Name == "" {
			return fmt.Errorf("weapon %d: missing id or name", d.ID)
		}
		if d.NumAttackDice <= 0 || d.AttackDiceSize <= 0 {
			return fmt.Errorf("weapon %d: dice must be positive", d.ID)
		}
		if _, dup := c.ByID[d.ID]; dup {
			return fmt.Errorf("weapon %d: duplicate id", d.ID)
		}
		hands := entity.WeaponHands(d.Hands)
		if hands == "" {
			hands = entity.OneHanded
		}
		w := &entity.Weapon{
			ID: d.ID, Name: d.Name, Type: d.Type,
			NumAttackDice: d.NumAttackDice, AttackDiceSize: d.AttackDiceSize, AttackPlus: d.AttackPlus,
			HitRating: d.HitRating, Hands: hands, Tile: entity.TileType{Number: d.Tile},
		}
		c.ByID[w.ID] = w
		c.List = append(c.List, w)
		if w.Name == BareHandsName {
			c.BareHands = w
		}
	}
	if c.BareHands == nil {
		return fmt.Errorf("missing %q", BareHandsName)
	}
	sort.Slice(c.List, func(i, j int) bool { return c.List[i].ID < c.List[j].ID })
	return nil
}

func (c *ArmourCatalog) load(raw []byte) error {
	var defs []ArmourDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	c.Digest = sha256Hex(raw)
	c.ByID = make(map[int64]*entity.Armour, len(defs))
	for _, d := range defs {
		slot := entity.ArmourSlot(d.Slot)
		if d.ID <= 0 || d.Name == "" {
			return fmt.Errorf("armour %d: missing id or name", d.ID)
		}
		if !entity.ValidArmourSlot(slot) {
			return fmt.Errorf("armour %d: bad slot %q", d.ID, d.Slot)
		}
		if _, dup := c.ByID[d.ID]; dup {
			return fmt.Errorf("armour %d: duplicate id", d.ID)
		}
		a := &entity.Armour{ID: d.ID, Name: d.Name, Defense: d.Defense, Slot: slot, Tile: entity.TileType{Number: d.Tile}}
		c.ByID[a.ID] = a
		c.List = append(c.List, a)
	}
	sort.Slice(c.List, func(i, j int) bool { return c.List[i].ID < c.List[j].ID })
	return nil
}

func (c *PotionCatalog) load(raw []byte) error {
	var defs []PotionDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	c.Digest = sha256Hex(raw)
	c.ByID = make(map[int64]*entity.Potion, len(defs))
	for _, d := range defs {
		et := entity.EffectType(d.Effect)
		if d.ID <= 0 || d.Name == "" {
			return fmt.Errorf("potion %d: missing id or name", d.ID)
		}
		if !entity.ValidEffectType(et) {
			return fmt.Errorf("potion %d: bad effect %q", d.ID, d.Effect)
		}
		if d.Turns <= 0 {
			return fmt.Errorf("potion %d: turns must be positive", d.ID)
		}
		if _, dup := c.ByID[d.ID]; dup {
			return fmt.Errorf("potion %d: duplicate id", d.ID)
		}
		p := &entity.Potion{
			ID: d.ID, Name: d.Name,
			Effect: entity.Effect{Type: et, Magnitude: d.Magnitude, RemainingTurns: d.Turns},
			Tile:   entity.TileType{Number: d.Tile},
		}
		c.ByID[p.ID] = p
		c.List = append(c.List, p)
	}
	sort.Slice(c.List, func(i, j int) bool { return c.List[i].ID < c.List[j].ID })
	return nil
}

func (c *MonsterCatalog) load(raw []byte) error {
	var defs []MonsterDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	c.Digest = sha256Hex(raw)
	c.ByID = make(map[int64]MonsterDef, len(defs))
	for _, d := range defs {
		if d.ID <= 0 || d.Name == "" || d.MaxHP <= 0 {
			return fmt.Errorf("monster %d: missing id, name or max_hp", d.ID)
		}
		if d.Weight <= 0 {
			d.Weight = 1
		}
		if d.Level <= 0 {
			d.Level = 1
		}
		c.ByID[d.ID] = d
		c.List = append(c.List, d)
	}
	sort.Slice(c.List, func(i, j int) bool { return c.List[i].ID < c.List[j].ID })
	return nil
}

// validate checks cross-catalog references.
func (c *Catalogs) validate() error {
	for _, m := range c.Monsters.List {
		if _, ok := c.Weapons.ByID[m.WeaponID]; !ok {
			return fmt.Errorf("monster %d: unknown weapon %d", m.ID, m.WeaponID)
		}
		for _, a := range m.ArmourIDs {
			if _, ok := c.Armours.ByID[a]; !ok {
				return fmt.Errorf("monster %d: unknown armour %d", m.ID, a)
			}
		}
	}
	return nil
}

// Objects returns every weapon (except Bare Hands), armour and potion definition, ordered by
// kind then id. It is the pool random ground items are drawn from.
func (c *Catalogs) Objects() []entity.Object {
	out := make([]entity.Object, 0, len(c.Weapons.List)+len(c.Armours.List)+len(c.Potions.List))
	for _, w := range c.Weapons.List {
		if w != c.Weapons.BareHands {
			out = append(out, w)
		}
	}
	for _, a := range c.Armours.List {
		out = append(out, a)
	}
	for _, p := range c.Potions.List {
		out = append(out, p)
	}
	return out
}
