package entity

type EffectType string

const (
	EffectLife            EffectType = "LIFE"
	EffectVisionRange     EffectType = "VISION_RANGE"
	EffectDamageReduction EffectType = "DAMAGE_REDUCTION"
	EffectInvisibility    EffectType = "INVISIBILITY"
)

var effectNames = map[EffectType][2]string{
	EffectLife:            {"Healing", "Poison"},
	EffectVisionRange:     {"Eagle Sight", "Blindness"},
	EffectDamageReduction: {"Armour", "Brittleness"},
	EffectInvisibility:    {"Invisibility", ""},
}

func ValidEffectType(t EffectType) bool {
	_, ok := effectNames[t]
	return ok
}

// Effect is a timed modifier. It is a value type; creatures hold copies.
type Effect struct {
	Type           EffectType
	Magnitude      int
	RemainingTurns int
}

// Name is the positive or negative label depending on the magnitude sign.
func (e Effect) Name() string {
	n, ok := effectNames[e.Type]
	if !ok {
		return string(e.Type)
	}
	if e.Magnitude < 0 && n[1] != "" {
		return n[1]
	}
	return n[0]
}
