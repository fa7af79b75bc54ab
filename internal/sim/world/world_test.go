package world

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/catalogs"
	"roguecloud.ai/internal/sim/entity"
	"roguecloud.ai/internal/sim/events"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

// newOpenWorld builds an empty all-grass world without monsters or items.
func newOpenWorld(t *testing.T, width, height int, mod func(*WorldConfig)) *World {
	t.Helper()
	cats := testCatalogs(t)
	cfg := WorldConfig{ID: "test", Seed: 7, Width: width, Height: height, ReviveAfterTicks: 3, DeadMonsterLingerTicks: 2}
	if mod != nil {
		mod(&cfg)
	}
	w, err := newEmpty(cfg, cats, zap.NewNop())
	if err != nil {
		t.Fatalf("newEmpty: %v", err)
	}
	grass := cats.Tiles.Get("grass")
	m := worldmap.NewArrayMap(width, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			m.Put(geom.P(x, y), worldmap.NewTile(true, grass))
		}
	}
	w.m = m
	return w
}

func putWall(w *World, p geom.Position) {
	w.m.Put(p, worldmap.NewTile(false, w.cats.Tiles.Get("wall")))
}

func joinPlayer(t *testing.T, w *World, userID int64, name string, out chan []byte) *Agent {
	t.Helper()
	req := JoinRequest{UserID: userID, Username: name, Out: out, Resp: make(chan JoinResponse, 1)}
	w.StepOnce([]JoinRequest{req}, nil)
	resp := <-req.Resp
	if resp.Err != nil {
		t.Fatalf("join: %v", resp.Err)
	}
	return resp.Agent
}

func moveTo(w *World, id int64, p geom.Position) {
	w.mutate(id, func(c *entity.Creature) { c.SetPosition(p) })
}

// addDummy places a creature with no controller.
func addDummy(w *World, p geom.Position, hp int) *entity.Creature {
	c := entity.NewCreature(entity.CreatureSpec{ID: w.newCreatureID(), Name: "dummy", Pos: p, MaxHP: hp, Level: 2})
	w.placeCreature(c)
	return c
}

func giveItem(w *World, id int64, o entity.Object) int64 {
	oid := w.newObjectID()
	w.mutate(id, func(c *entity.Creature) { c.AddInventory(entity.OwnableObject{ID: oid, Object: o}) })
	return oid
}

func submit(t *testing.T, a *Agent, msgID int64, act action.Action) *action.Future {
	t.Helper()
	f, err := a.Submit(msgID, act)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return f
}

func poll(t *testing.T, f *action.Future) action.Response {
	t.Helper()
	r, ok := f.Poll()
	if !ok {
		t.Fatalf("future not resolved")
	}
	return r
}

func TestStep_MovesAndRecordsEvent(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(2, 2))

	f := submit(t, a, 1, action.Step{Destination: geom.P(2, 3)})
	w.StepOnce(nil, nil)

	r := poll(t, f).(action.StepResponse)
	if !r.Success || r.NewPosition != geom.P(2, 3) {
		t.Fatalf("step response: %+v", r)
	}
	if got := w.creatures[a.CreatureID].Position(); got != geom.P(2, 3) {
		t.Fatalf("position: %v", got)
	}
	evs := w.events.LastTurnSelf(a.CreatureID, w.CurrentTick())
	if len(evs) != 1 {
		t.Fatalf("expected one event, got %d", len(evs))
	}
	se, ok := evs[0].(events.Step)
	if !ok || se.From != geom.P(2, 2) || se.To != geom.P(2, 3) {
		t.Fatalf("event: %#v", evs[0])
	}
	if w.m.Tile(geom.P(2, 2)).Creature(a.CreatureID) != nil || w.m.Tile(geom.P(2, 3)).Creature(a.CreatureID) == nil {
		t.Fatalf("tiles not updated")
	}
}

func TestStep_Legality(t *testing.T) {
	cases := []struct {
		name string
		dest geom.Position
		ok   bool
	}{
		{"north", geom.P(2, 1), true},
		{"west", geom.P(1, 2), true},
		{"diagonal", geom.P(3, 3), false},
		{"two away", geom.P(2, 4), false},
		{"same tile", geom.P(2, 2), false},
		{"wall", geom.P(3, 2), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newOpenWorld(t, 5, 5, nil)
			putWall(w, geom.P(3, 2))
			a := joinPlayer(t, w, 1, "alice", nil)
			moveTo(w, a.CreatureID, geom.P(2, 2))
			before := w.events.Len()

			f := submit(t, a, 1, action.Step{Destination: tc.dest})
			w.StepOnce(nil, nil)
			r := poll(t, f).(action.StepResponse)
			if r.Success != tc.ok {
				t.Fatalf("success=%v want %v", r.Success, tc.ok)
			}
			if !tc.ok {
				if r.FailReason != action.StepBlocked {
					t.Fatalf("fail reason %q", r.FailReason)
				}
				if w.events.Len() != before {
					t.Fatalf("failed step recorded an event")
				}
			}
		})
	}
}

func TestStep_OutOfBoundsBlocked(t *testing.T) {
	w := newOpenWorld(t, 3, 3, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(0, 0))
	f := submit(t, a, 1, action.Step{Destination: geom.P(-1, 0)})
	w.StepOnce(nil, nil)
	if r := poll(t, f).(action.StepResponse); r.Success || r.FailReason != action.StepBlocked {
		t.Fatalf("response: %+v", r)
	}
}

func TestCombat_UnarmouredDefenderAlwaysHit(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(2, 2))
	weapon := &entity.Weapon{ID: 99, Name: "Test Blade", NumAttackDice: 1, AttackDiceSize: 6, AttackPlus: 2, HitRating: 100}
	w.mutate(a.CreatureID, func(c *entity.Creature) { c.SetWeapon(weapon) })

	for i := 0; i < 20; i++ {
		target := addDummy(w, geom.P(2, 3), 50)
		f := submit(t, a, int64(i+1), action.Combat{TargetCreatureID: target.ID()})
		w.StepOnce(nil, nil)

		r := poll(t, f).(action.CombatResponse)
		if r.Result != action.CombatHit {
			t.Fatalf("attempt %d: result %q", i, r.Result)
		}
		if r.DamageDealt < 3 || r.DamageDealt > 8 {
			t.Fatalf("damage %d outside [3,8]", r.DamageDealt)
		}
		if hp := w.creatures[target.ID()].HP(); hp != 50-r.DamageDealt {
			t.Fatalf("hp %d after %d damage", hp, r.DamageDealt)
		}
		w.removeCreature(target.ID())
	}
}

func TestCombat_HPFloorsAtZeroAndKills(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(2, 2))
	w.mutate(a.CreatureID, func(c *entity.Creature) { c.SetWeapon(w.cats.Weapons.ByID[7]) })
	target := addDummy(w, geom.P(1, 2), 1)
	scoreBefore := w.players[a.CreatureID].score

	f := submit(t, a, 1, action.Combat{TargetCreatureID: target.ID()})
	w.StepOnce(nil, nil)

	r := poll(t, f).(action.CombatResponse)
	if r.Result != action.CombatHit {
		t.Fatalf("result %q", r.Result)
	}
	c := w.creatures[target.ID()]
	if c.HP() != 0 || !c.IsDead() {
		t.Fatalf("hp=%d dead=%v", c.HP(), c.IsDead())
	}
	// Kill bonus (level 2) plus one survival point.
	if got := w.players[a.CreatureID].score - scoreBefore; got != 2*scoreKillPerLevel+1 {
		t.Fatalf("score delta %d", got)
	}

	f = submit(t, a, 2, action.Combat{TargetCreatureID: target.ID()})
	w.StepOnce(nil, nil)
	if r := poll(t, f).(action.CombatResponse); r.Result != action.CombatCouldNotAttack {
		t.Fatalf("attacking the dead: %q", r.Result)
	}
}

func TestCombat_OutOfReach(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(0, 0))
	target := addDummy(w, geom.P(1, 1), 10)
	before := w.events.Len()

	f := submit(t, a, 1, action.Combat{TargetCreatureID: target.ID()})
	w.StepOnce(nil, nil)
	if r := poll(t, f).(action.CombatResponse); r.Result != action.CombatCouldNotAttack {
		t.Fatalf("result %q", r.Result)
	}
	if w.events.Len() != before {
		t.Fatalf("rejected attack recorded an event")
	}
}

func TestReduceDamage(t *testing.T) {
	effs := []entity.Effect{{Type: entity.EffectDamageReduction, Magnitude: 50, RemainingTurns: 3}, {Type: entity.EffectLife, Magnitude: 5}}
	if got := reduceDamage(10, effs); got != 5 {
		t.Fatalf("got %d", got)
	}
	if got := reduceDamage(10, nil); got != 10 {
		t.Fatalf("got %d", got)
	}
}

func TestHitChance_Clamped(t *testing.T) {
	w := newOpenWorld(t, 3, 3, nil)
	target := addDummy(w, geom.P(1, 1), 10)
	w.mutate(target.ID(), func(c *entity.Creature) { c.EquipArmour(w.cats.Armours.ByID[9]) })
	target = w.creatures[target.ID()]

	if p := w.hitChance(&entity.Weapon{HitRating: 600}, target); p != w.cfg.HitChanceMax {
		t.Fatalf("high: %v", p)
	}
	if p := w.hitChance(&entity.Weapon{HitRating: 0}, target); p != w.cfg.HitChanceMin {
		t.Fatalf("low: %v", p)
	}
	if p := w.hitChance(&entity.Weapon{HitRating: 3}, target); p != 0.5 {
		t.Fatalf("ratio: %v", p)
	}
}

func TestDrink_NotInInventory(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	before := w.events.Len()

	f := submit(t, a, 1, action.Drink{ObjectID: 12345})
	w.StepOnce(nil, nil)

	r := poll(t, f).(action.DrinkResponse)
	if r.Success || r.Effect != nil {
		t.Fatalf("response: %+v", r)
	}
	if len(w.creatures[a.CreatureID].ActiveEffects()) != 0 {
		t.Fatalf("effect applied")
	}
	if w.events.Len() != before {
		t.Fatalf("event recorded")
	}
}

func TestDrink_AppliesEffectAndScores(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	oid := giveItem(w, a.CreatureID, w.cats.Potions.ByID[4])
	score := w.players[a.CreatureID].score

	f := submit(t, a, 1, action.Drink{ObjectID: oid})
	w.StepOnce(nil, nil)

	r := poll(t, f).(action.DrinkResponse)
	if !r.Success || r.Effect == nil || r.Effect.Type != entity.EffectDamageReduction {
		t.Fatalf("response: %+v", r)
	}
	c := w.creatures[a.CreatureID]
	if _, ok := c.InventoryItem(oid); ok {
		t.Fatalf("potion still in inventory")
	}
	effs := c.ActiveEffects()
	// One turn has already elapsed at the end of the tick.
	if len(effs) != 1 || effs[0].RemainingTurns != 29 {
		t.Fatalf("effects: %+v", effs)
	}
	if got := w.players[a.CreatureID].score - score; got != scoreDrink+1 {
		t.Fatalf("score delta %d", got)
	}
}

func TestPickup_OnlyRemovesRequestedObject(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(2, 2))
	ga := w.dropOnGround(w.newObjectID(), w.cats.Potions.ByID[1], geom.P(2, 2))
	gb := w.dropOnGround(w.newObjectID(), w.cats.Armours.ByID[1], geom.P(2, 2))

	f := submit(t, a, 1, action.MoveInventoryItem{ObjectID: ga.ID})
	w.StepOnce(nil, nil)

	if r := poll(t, f).(action.MoveInventoryItemResponse); !r.Success || r.Drop {
		t.Fatalf("response: %+v", r)
	}
	ground := w.m.Tile(geom.P(2, 2)).GroundObjects()
	if len(ground) != 1 || ground[0].ID != gb.ID {
		t.Fatalf("ground after pickup: %+v", ground)
	}
	if _, ok := w.creatures[a.CreatureID].InventoryItem(ga.ID); !ok {
		t.Fatalf("object not in inventory")
	}
}

func TestPickup_AdjacentAllowedDistantRejected(t *testing.T) {
	w := newOpenWorld(t, 6, 6, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(2, 2))
	near := w.dropOnGround(w.newObjectID(), w.cats.Potions.ByID[1], geom.P(2, 3))
	far := w.dropOnGround(w.newObjectID(), w.cats.Potions.ByID[1], geom.P(4, 4))

	f := submit(t, a, 1, action.MoveInventoryItem{ObjectID: far.ID})
	w.StepOnce(nil, nil)
	if r := poll(t, f).(action.MoveInventoryItemResponse); r.Success {
		t.Fatalf("picked up a distant object")
	}
	f = submit(t, a, 2, action.MoveInventoryItem{ObjectID: near.ID})
	w.StepOnce(nil, nil)
	if r := poll(t, f).(action.MoveInventoryItemResponse); !r.Success {
		t.Fatalf("adjacent pickup failed")
	}
}

func TestInventory_PickupThenDropRoundTrip(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(1, 1))
	g := w.dropOnGround(w.newObjectID(), w.cats.Weapons.ByID[2], geom.P(1, 1))

	f := submit(t, a, 1, action.MoveInventoryItem{ObjectID: g.ID})
	w.StepOnce(nil, nil)
	poll(t, f)
	f = submit(t, a, 2, action.MoveInventoryItem{ObjectID: g.ID, Drop: true})
	w.StepOnce(nil, nil)

	if r := poll(t, f).(action.MoveInventoryItemResponse); !r.Success || !r.Drop || r.ObjectID != g.ID {
		t.Fatalf("drop response: %+v", r)
	}
	back := w.ground[g.ID]
	if back == nil || back.Pos != g.Pos || back.Object != g.Object {
		t.Fatalf("ground object after round trip: %+v", back)
	}
	if _, ok := w.creatures[a.CreatureID].InventoryItem(g.ID); ok {
		t.Fatalf("object still in inventory")
	}
	if w.m.Tile(geom.P(1, 1)).GroundObject(g.ID) == nil {
		t.Fatalf("object not on tile")
	}
}

func TestEquip_WeaponSwapsAndScoresUpgrades(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	short := giveItem(w, a.CreatureID, w.cats.Weapons.ByID[3])
	long := giveItem(w, a.CreatureID, w.cats.Weapons.ByID[5])
	p := w.players[a.CreatureID]

	score := p.score
	f := submit(t, a, 1, action.Equip{ObjectID: short})
	w.StepOnce(nil, nil)
	if r := poll(t, f).(action.EquipResponse); !r.Success {
		t.Fatalf("equip short sword failed")
	}
	c := w.creatures[a.CreatureID]
	if c.Weapon().ID != 3 || len(c.Inventory()) != 1 {
		t.Fatalf("weapon %v inventory %d", c.Weapon(), len(c.Inventory()))
	}
	wantGain := int64(scoreWeaponPerRate*(w.cats.Weapons.ByID[3].Rating()-w.cats.Weapons.BareHands.Rating())) + 1
	if got := p.score - score; got != wantGain {
		t.Fatalf("score delta %d want %d", got, wantGain)
	}

	f = submit(t, a, 2, action.Equip{ObjectID: long})
	w.StepOnce(nil, nil)
	poll(t, f)
	c = w.creatures[a.CreatureID]
	inv := c.Inventory()
	if c.Weapon().ID != 5 || len(inv) != 1 || inv[0].Object.ObjectID() != 3 {
		t.Fatalf("after swap weapon=%v inventory=%+v", c.Weapon(), inv)
	}
	if inv[0].ID == short || inv[0].ID == long {
		t.Fatalf("returned weapon reused id %d", inv[0].ID)
	}
}

func TestEquip_ArmourAndRejectsPotions(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	helm := giveItem(w, a.CreatureID, w.cats.Armours.ByID[2])
	potion := giveItem(w, a.CreatureID, w.cats.Potions.ByID[1])

	f1 := submit(t, a, 1, action.Equip{ObjectID: helm})
	w.StepOnce(nil, nil)
	f2 := submit(t, a, 2, action.Equip{ObjectID: potion})
	w.StepOnce(nil, nil)

	if r := poll(t, f1).(action.EquipResponse); !r.Success {
		t.Fatalf("helm equip failed")
	}
	if r := poll(t, f2).(action.EquipResponse); r.Success {
		t.Fatalf("potion equipped")
	}
	c := w.creatures[a.CreatureID]
	if c.TotalDefense() != 4 || c.ArmourIn(entity.SlotHead) == nil {
		t.Fatalf("defense %d", c.TotalDefense())
	}
}

func TestSubmit_SupersededResolvesWithFailure(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(2, 2))

	first := submit(t, a, 1, action.Step{Destination: geom.P(2, 1)})
	second := submit(t, a, 2, action.Step{Destination: geom.P(2, 3)})
	if r := poll(t, first).(action.StepResponse); r.Success {
		t.Fatalf("superseded step succeeded")
	}
	w.StepOnce(nil, nil)
	if r := poll(t, second).(action.StepResponse); !r.Success || r.NewPosition != geom.P(2, 3) {
		t.Fatalf("second: %+v", r)
	}
	if got := w.creatures[a.CreatureID].Position(); got != geom.P(2, 3) {
		t.Fatalf("position %v", got)
	}

	if _, err := a.Submit(2, action.Null{}); err != ErrDuplicateMessage {
		t.Fatalf("reused id: %v", err)
	}
}

func TestResolve_FaultStaysWithOneAgent(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	alice := joinPlayer(t, w, 1, "alice", nil)
	bob := joinPlayer(t, w, 2, "bob", nil)
	moveTo(w, alice.CreatureID, geom.P(4, 4))
	moveTo(w, bob.CreatureID, geom.P(0, 0))
	// A typed nil potion makes resolution of the drink panic.
	broken := giveItem(w, alice.CreatureID, (*entity.Potion)(nil))
	tick := w.CurrentTick()

	fa := submit(t, alice, 1, action.Drink{ObjectID: broken})
	fb := submit(t, bob, 1, action.Step{Destination: geom.P(0, 1)})
	// stepInternal skips the state digest, which would also trip over the nil potion.
	w.stepInternal(nil, nil)

	if r := poll(t, fa).(action.DrinkResponse); r.Success {
		t.Fatalf("faulted drink succeeded: %+v", r)
	}
	if _, ok := w.creatures[alice.CreatureID].InventoryItem(broken); !ok {
		t.Fatalf("faulted action mutated the inventory")
	}
	if r := poll(t, fb).(action.StepResponse); !r.Success {
		t.Fatalf("other agent's step failed: %+v", r)
	}
	if w.CurrentTick() != tick+1 {
		t.Fatalf("tick did not advance")
	}
}

func TestTickEffects_LifeHealsPoisonKillsAndExpire(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	healed := addDummy(w, geom.P(1, 1), 20)
	poisoned := addDummy(w, geom.P(3, 3), 20)
	w.mutate(healed.ID(), func(c *entity.Creature) {
		c.SetHP(5)
		c.ApplyEffect(entity.Effect{Type: entity.EffectLife, Magnitude: 5, RemainingTurns: 2})
	})
	w.mutate(poisoned.ID(), func(c *entity.Creature) {
		c.SetHP(3)
		c.ApplyEffect(entity.Effect{Type: entity.EffectLife, Magnitude: -5, RemainingTurns: 4})
	})

	w.StepOnce(nil, nil)
	h := w.creatures[healed.ID()]
	if h.HP() != 10 || len(h.ActiveEffects()) != 1 || h.ActiveEffects()[0].RemainingTurns != 1 {
		t.Fatalf("after one tick: hp=%d effects=%+v", h.HP(), h.ActiveEffects())
	}
	if p := w.creatures[poisoned.ID()]; p.HP() != 0 || !p.IsDead() {
		t.Fatalf("poison should floor hp at 0 and kill, hp=%d", p.HP())
	}

	w.StepOnce(nil, nil)
	h = w.creatures[healed.ID()]
	if h.HP() != 15 || len(h.ActiveEffects()) != 0 {
		t.Fatalf("after expiry: hp=%d effects=%+v", h.HP(), h.ActiveEffects())
	}
	w.StepOnce(nil, nil)
	if got := w.creatures[healed.ID()].HP(); got != 15 {
		t.Fatalf("expired effect still applied: hp=%d", got)
	}
}

func TestEvents_RetentionWindow(t *testing.T) {
	w := newOpenWorld(t, 5, 5, func(c *WorldConfig) { c.EventRetentionTicks = 3 })
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(2, 2))

	submit(t, a, 1, action.Step{Destination: geom.P(2, 3)})
	eventTick := w.CurrentTick()
	w.StepOnce(nil, nil)

	for k := uint64(1); k < 3; k++ {
		if got := len(w.events.Since(eventTick)); got != 1 {
			t.Fatalf("k=%d: %d events", k, got)
		}
		w.StepOnce(nil, nil)
	}
	if got := w.CurrentTick() - eventTick; got != 3 {
		t.Fatalf("age %d", got)
	}
	if got := len(w.events.Since(eventTick)); got != 0 {
		t.Fatalf("event outlived retention: %d", got)
	}
}

func TestPlayerDeath_ShrinksMaxHPAndRevives(t *testing.T) {
	w := newOpenWorld(t, 6, 6, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	id := a.CreatureID
	w.mutate(id, func(c *entity.Creature) {
		c.SetHP(2)
		c.ApplyEffect(entity.Effect{Type: entity.EffectLife, Magnitude: -5, RemainingTurns: 3})
	})
	w.StepOnce(nil, nil)

	c := w.creatures[id]
	if !c.IsDead() || !w.players[id].dead {
		t.Fatalf("poisoned player alive: hp=%d", c.HP())
	}
	wantMax := int(float64(w.cfg.PlayerMaxHP) * w.cfg.DeathMaxHPFactor)
	if c.MaxHP() != wantMax || len(c.ActiveEffects()) != 0 {
		t.Fatalf("max hp %d want %d, effects %v", c.MaxHP(), wantMax, c.ActiveEffects())
	}

	f := submit(t, a, 1, action.Step{Destination: c.Position().Add(1, 0)})
	w.StepOnce(nil, nil)
	if r := poll(t, f).(action.StepResponse); r.Success || r.FailReason != action.StepOther {
		t.Fatalf("dead step: %+v", r)
	}

	for i := 0; i < w.cfg.ReviveAfterTicks; i++ {
		w.StepOnce(nil, nil)
	}
	c = w.creatures[id]
	if c.IsDead() || c.HP() != wantMax || w.players[id].dead {
		t.Fatalf("not revived: hp=%d", c.HP())
	}
}

func TestMonster_RemovedAfterLinger(t *testing.T) {
	w := newOpenWorld(t, 6, 6, nil)
	c := addDummy(w, geom.P(3, 3), 5)
	w.addMonster(c, c.Position())
	w.mutate(c.ID(), func(c *entity.Creature) { c.SetHP(0) })
	w.onDeath(w.CurrentTick(), c.ID())

	w.StepOnce(nil, nil)
	if w.creatures[c.ID()] == nil {
		t.Fatalf("monster removed before linger elapsed")
	}
	for i := 0; i < w.cfg.DeadMonsterLingerTicks; i++ {
		w.StepOnce(nil, nil)
	}
	if w.creatures[c.ID()] != nil || w.monsters[c.ID()] != nil {
		t.Fatalf("dead monster still present")
	}
	if w.m.Tile(geom.P(3, 3)).Creature(c.ID()) != nil {
		t.Fatalf("dead monster still on tile")
	}
}

func TestReconnect_ReplaysCachedResponses(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	moveTo(w, a.CreatureID, geom.P(2, 2))
	submit(t, a, 5, action.Step{Destination: geom.P(2, 3)})
	w.StepOnce(nil, nil)

	if msg, ok := a.Response(5); !ok || msg.MessageID != 5 {
		t.Fatalf("response not cached: %+v", msg)
	}

	req := JoinRequest{UserID: 1, Username: "alice", LastResponse: 4, Resp: make(chan JoinResponse, 1)}
	w.StepOnce([]JoinRequest{req}, nil)
	resp := <-req.Resp
	if resp.Agent.CreatureID != a.CreatureID {
		t.Fatalf("reconnect got a new creature")
	}
	if len(resp.Replay) != 1 || resp.Replay[0].MessageID != 5 {
		t.Fatalf("replay: %+v", resp.Replay)
	}
	if !a.Closed() {
		t.Fatalf("old agent still open")
	}
	if _, err := resp.Agent.Submit(5, action.Null{}); err != ErrDuplicateMessage {
		t.Fatalf("message id reuse across reconnect: %v", err)
	}
	// Leave from the stale agent must not detach the new one.
	w.StepOnce(nil, []*Agent{a})
	if w.players[a.CreatureID].agent != resp.Agent {
		t.Fatalf("stale leave detached the live agent")
	}
}

func TestLeave_AbandonsPendingAction(t *testing.T) {
	w := newOpenWorld(t, 5, 5, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	f := submit(t, a, 1, action.Step{Destination: geom.P(0, 0)})

	a.slot.Close()
	w.StepOnce(nil, []*Agent{a})
	if _, err := f.WaitTimeout(time.Second); err != action.ErrDisconnected {
		t.Fatalf("wait: %v", err)
	}
	if w.players[a.CreatureID].agent != nil {
		t.Fatalf("agent still attached")
	}
	if w.creatures[a.CreatureID] == nil {
		t.Fatalf("creature removed on leave")
	}
}

func TestStandings_OrderedByScore(t *testing.T) {
	w := newOpenWorld(t, 6, 6, nil)
	a := joinPlayer(t, w, 1, "alice", nil)
	b := joinPlayer(t, w, 2, "bob", nil)
	w.players[b.CreatureID].score += 500
	w.StepOnce(nil, nil)

	st := w.Standings()
	if len(st) != 2 || st[0].UserID != 2 || st[1].CreatureID != a.CreatureID {
		t.Fatalf("standings: %+v", st)
	}
	if m := w.Metrics(); m.Players != 2 || m.Tick != w.CurrentTick()-1 {
		t.Fatalf("metrics: %+v", m)
	}
}
