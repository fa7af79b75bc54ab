package entity

import (
	"testing"

	"roguecloud.ai/internal/sim/geom"
)

func TestCreature_HPClamp(t *testing.T) {
	c := NewCreature(CreatureSpec{ID: 1, Name: "orc", MaxHP: 20})
	c.SetHP(-5)
	if c.HP() != 0 || !c.IsDead() {
		t.Fatalf("expected hp floor at 0 and dead, got hp=%d", c.HP())
	}
	c.SetHP(99)
	if c.HP() != 20 {
		t.Fatalf("expected hp capped at max, got %d", c.HP())
	}
	c.SetMaxHP(10)
	if c.HP() != 10 {
		t.Fatalf("expected hp reduced with max, got %d", c.HP())
	}
}

func TestCreature_CloneIsolation(t *testing.T) {
	c := NewCreature(CreatureSpec{ID: 1, Name: "p", Player: true, MaxHP: 50, Pos: geom.P(1, 1)})
	c.AddInventory(OwnableObject{ID: 7, Object: &Potion{ID: 3, Name: "p"}})
	c.ApplyEffect(Effect{Type: EffectLife, Magnitude: 2, RemainingTurns: 3})

	cp := c.Clone()
	cp.RemoveInventory(7)
	cp.ClearEffects()
	cp.EquipArmour(&Armour{ID: 9, Slot: SlotHead, Defense: 4})

	if len(c.Inventory()) != 1 || len(c.ActiveEffects()) != 1 || c.TotalDefense() != 0 {
		t.Fatalf("clone mutation leaked into original: inv=%d eff=%d def=%d",
			len(c.Inventory()), len(c.ActiveEffects()), c.TotalDefense())
	}

	inv := c.Inventory()
	inv[0].ID = 100
	if _, ok := c.InventoryItem(7); !ok {
		t.Fatalf("inventory accessor must return a copy")
	}
}

func TestCreature_ApplyEffectReplacesSameType(t *testing.T) {
	c := NewCreature(CreatureSpec{ID: 1, MaxHP: 10})
	c.ApplyEffect(Effect{Type: EffectLife, Magnitude: 2, RemainingTurns: 3})
	c.ApplyEffect(Effect{Type: EffectLife, Magnitude: 5, RemainingTurns: 1})
	c.ApplyEffect(Effect{Type: EffectDamageReduction, Magnitude: 10, RemainingTurns: 4})
	effs := c.ActiveEffects()
	if len(effs) != 2 {
		t.Fatalf("expected 2 effects, got %d", len(effs))
	}
	if effs[0].Magnitude != 5 || effs[0].RemainingTurns != 1 {
		t.Fatalf("expected last-applied LIFE effect, got %+v", effs[0])
	}
}

func TestArmourSet_PutReplaces(t *testing.T) {
	var s ArmourSet
	a := &Armour{ID: 1, Slot: SlotChest, Defense: 3}
	b := &Armour{ID: 2, Slot: SlotChest, Defense: 5}
	if prev := s.Put(a); prev != nil {
		t.Fatalf("expected empty slot")
	}
	if prev := s.Put(b); prev != a {
		t.Fatalf("expected a to be replaced")
	}
	s.Put(&Armour{ID: 3, Slot: SlotHead, Defense: 1})
	if s.TotalDefense() != 6 {
		t.Fatalf("total defense: got %d", s.TotalDefense())
	}
	all := s.All()
	if len(all) != 2 || all[0].Slot != SlotHead {
		t.Fatalf("unexpected order: %+v", all)
	}
}

func TestEffectName(t *testing.T) {
	if n := (Effect{Type: EffectLife, Magnitude: -3}).Name(); n != "Poison" {
		t.Fatalf("got %q", n)
	}
	if n := (Effect{Type: EffectInvisibility, Magnitude: -3}).Name(); n != "Invisibility" {
		t.Fatalf("got %q", n)
	}
}
