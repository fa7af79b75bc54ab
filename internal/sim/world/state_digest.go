package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"roguecloud.ai/internal/sim/entity"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes everything resolution depends on, in a fixed order. Two worlds with the
// same seed and the same inputs produce the same digest at every tick.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteI64(h, &tmp, w.cfg.Seed)
	digestWriteI64(h, &tmp, w.nextCreature)
	digestWriteI64(h, &tmp, w.nextObject)
	digestWriteI64(h, &tmp, w.nextEvent)

	for _, id := range sortedKeys(w.creatures) {
		digestCreature(h, &tmp, w.creatures[id])
	}
	for _, id := range sortedKeys(w.ground) {
		g := w.ground[id]
		digestWriteI64(h, &tmp, g.ID)
		digestWriteI64(h, &tmp, int64(g.Pos.X))
		digestWriteI64(h, &tmp, int64(g.Pos.Y))
		digestObject(h, &tmp, g.Object)
	}
	for _, id := range sortedKeys(w.players) {
		p := w.players[id]
		digestWriteI64(h, &tmp, p.userID)
		digestWriteI64(h, &tmp, p.score)
		h.Write([]byte{boolByte(p.dead)})
		digestWriteU64(h, &tmp, p.reviveAt)
	}
	for _, id := range sortedKeys(w.monsters) {
		m := w.monsters[id]
		h.Write([]byte{boolByte(m.dead)})
		digestWriteU64(h, &tmp, m.diedAt)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestCreature(h hashWriter, tmp *[8]byte, c *entity.Creature) {
	digestWriteI64(h, tmp, c.ID())
	digestWriteI64(h, tmp, int64(c.Position().X))
	digestWriteI64(h, tmp, int64(c.Position().Y))
	digestWriteI64(h, tmp, int64(c.HP()))
	digestWriteI64(h, tmp, int64(c.MaxHP()))
	if wp := c.Weapon(); wp != nil {
		digestWriteI64(h, tmp, wp.ID)
	} else {
		digestWriteI64(h, tmp, 0)
	}
	for _, a := range c.Armour() {
		digestWriteI64(h, tmp, a.ID)
	}
	inv := c.Inventory()
	sort.Slice(inv, func(i, j int) bool { return inv[i].ID < inv[j].ID })
	for _, o := range inv {
		digestWriteI64(h, tmp, o.ID)
		digestObject(h, tmp, o.Object)
	}
	for _, e := range c.ActiveEffects() {
		h.Write([]byte(e.Type))
		digestWriteI64(h, tmp, int64(e.Magnitude))
		digestWriteI64(h, tmp, int64(e.RemainingTurns))
	}
}

func digestObject(h hashWriter, tmp *[8]byte, o entity.Object) {
	h.Write([]byte(o.Kind()))
	digestWriteI64(h, tmp, o.ObjectID())
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
