package entity

// ArmourSet holds at most one armour piece per slot.
type ArmourSet struct {
	bySlot map[ArmourSlot]*Armour
}

func (s *ArmourSet) Get(slot ArmourSlot) *Armour {
	if s.bySlot == nil {
		return nil
	}
	return s.bySlot[slot]
}

// Put equips a and returns the piece it replaced, if any.
func (s *ArmourSet) Put(a *Armour) *Armour {
	if a == nil {
		return nil
	}
	if s.bySlot == nil {
		s.bySlot = map[ArmourSlot]*Armour{}
	}
	prev := s.bySlot[a.Slot]
	s.bySlot[a.Slot] = a
	return prev
}

func (s *ArmourSet) Remove(slot ArmourSlot) *Armour {
	if s.bySlot == nil {
		return nil
	}
	prev := s.bySlot[slot]
	delete(s.bySlot, slot)
	return prev
}

// All returns equipped pieces in slot order.
func (s *ArmourSet) All() []*Armour {
	out := make([]*Armour, 0, len(s.bySlot))
	for _, slot := range ArmourSlots {
		if a := s.bySlot[slot]; a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (s *ArmourSet) TotalDefense() int {
	total := 0
	for _, a := range s.bySlot {
		total += a.Defense
	}
	return total
}

func (s *ArmourSet) clone() ArmourSet {
	if len(s.bySlot) == 0 {
		return ArmourSet{}
	}
	m := make(map[ArmourSlot]*Armour, len(s.bySlot))
	for k, v := range s.bySlot {
		m[k] = v
	}
	return ArmourSet{bySlot: m}
}
