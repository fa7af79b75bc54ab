package world

import (
	"encoding/json"

	"go.uber.org/zap"

	"roguecloud.ai/internal/sim/ai"
	"roguecloud.ai/internal/sim/view"
	"roguecloud.ai/internal/sim/worldmap"
)

// dispatchAI hands every living monster the snapshot of the tick just resolved. Decisions land
// in their slots and are resolved at tick next at the earliest.
func (w *World) dispatchAI(snap *worldmap.ArrayMap, next uint64) {
	for _, id := range sortedKeys(w.monsters) {
		if w.monsters[id].dead {
			continue
		}
		c := w.creatures[id]
		if c == nil {
			continue
		}
		w.machine.Dispatch(id, ai.View{
			Map:        snap,
			Self:       c,
			Events:     w.monsterEvents,
			Tick:       next,
			ViewWidth:  w.cfg.AgentViewWidth,
			ViewHeight: w.cfg.AgentViewHeight,
			MaxTiles:   w.cfg.AStarMaxTiles,
		})
	}
}

func (w *World) sendFrames(snap *worldmap.ArrayMap, now uint64) {
	if len(w.clients) == 0 {
		return
	}
	secsLeft := w.roundSecsLeft()
	retained := w.events.All()

	for _, id := range sortedKeys(w.clients) {
		cs := w.clients[id]
		c := w.creatures[id]
		p := w.players[id]
		if c == nil || p == nil {
			continue
		}
		in := view.FrameInput{
			Map:           snap,
			Self:          c,
			Score:         p.score,
			Tick:          now,
			ViewWidth:     w.cfg.AgentViewWidth,
			ViewHeight:    w.cfg.AgentViewHeight,
			RoundSecsLeft: secsLeft,
			Dirty:         w.dirty,
			Recent:        w.tickEvents,
			Retained:      retained,
		}

		b, err := json.Marshal(cs.session.Frame(in))
		if err != nil {
			w.log.Error("encode frame", zap.Int64("creature_id", id), zap.Error(err))
			continue
		}
		if !sendLatest(cs.out, b) {
			continue
		}
		// An incremental frame was dropped, so the next one the client applies must be full.
		cs.session.ForceFull()
		if b, err = json.Marshal(cs.session.Frame(in)); err == nil {
			sendLatest(cs.out, b)
		}
	}
}
