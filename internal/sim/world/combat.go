package world

import (
	"math"

	"roguecloud.ai/internal/sim/entity"
)

// hitChance is hitRating/totalDefense clamped to the configured bounds. A defender with no
// armour is always hit.
func (w *World) hitChance(weapon *entity.Weapon, target *entity.Creature) float64 {
	def := target.TotalDefense()
	if def <= 0 {
		return 1
	}
	p := float64(weapon.HitRating) / float64(def)
	return math.Min(w.cfg.HitChanceMax, math.Max(w.cfg.HitChanceMin, p))
}

func (w *World) rollHit(weapon *entity.Weapon, target *entity.Creature) bool {
	p := w.hitChance(weapon, target)
	if p >= 1 {
		return true
	}
	return w.rng.Float64() < p
}

// rollDamage sums NumAttackDice dice, each uniform in [1, AttackDiceSize], plus AttackPlus.
func (w *World) rollDamage(weapon *entity.Weapon) int {
	total := weapon.AttackPlus
	if weapon.AttackDiceSize > 0 {
		for i := 0; i < weapon.NumAttackDice; i++ {
			total += 1 + w.rng.Intn(weapon.AttackDiceSize)
		}
	}
	return max(0, total)
}

// reduceDamage applies every DAMAGE_REDUCTION effect as a factor of (1 - magnitude/100).
func reduceDamage(damage int, effects []entity.Effect) int {
	d := float64(damage)
	for _, e := range effects {
		if e.Type != entity.EffectDamageReduction {
			continue
		}
		f := 1 - float64(e.Magnitude)/100
		d *= math.Max(0, f)
	}
	return max(0, int(math.Round(d)))
}
