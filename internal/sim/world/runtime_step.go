package world

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"roguecloud.ai/internal/sim/events"
	"roguecloud.ai/internal/sim/geom"
	"roguecloud.ai/internal/sim/worldmap"
)

func (w *World) stepInternal(joins []JoinRequest, leaves []*Agent) {
	start := time.Now()
	now := w.tick.Load()
	w.beginTick()

	var recLeaves []int64
	for _, a := range leaves {
		if id, ok := w.handleLeave(a); ok {
			recLeaves = append(recLeaves, id)
		}
	}
	var recJoins []RecordedJoin
	for _, req := range joins {
		if rec, ok := w.handleJoin(now, req); ok {
			recJoins = append(recJoins, rec)
		}
	}

	w.resolveActions(now)
	w.tickEffects(now)
	w.tickLifecycle(now)
	w.scoreSurvivors()
	w.spawnTick()

	// Events of tick now stay queryable while the current tick is below now+retention.
	next := now + 1
	w.events.Add(w.tickEvents...)
	w.monsterEvents.Add(w.tickEvents...)
	w.events.Purge(next)
	w.monsterEvents.Purge(next)

	snap := w.m.CloneForRead()
	w.dispatchAI(snap, next)
	w.updateFollow(now)
	w.sendFrames(snap, now)
	w.publish(now, snap)

	digest := ""
	if w.tickLogger != nil {
		digest = w.stateDigest(now)
		if err := w.tickLogger.WriteTick(TickLogEntry{
			Tick:    now,
			Joins:   recJoins,
			Leaves:  recLeaves,
			Actions: w.tickActions,
			Digest:  digest,
		}); err != nil {
			w.log.Warn("tick log write failed", zap.Uint64("tick", now), zap.Error(err))
		}
	}
	if w.eventLogger != nil && len(w.tickEvents) > 0 {
		if err := w.eventLogger.WriteEvents(newEventLogEntry(now, w.tickEvents)); err != nil {
			w.log.Warn("event log write failed", zap.Uint64("tick", now), zap.Error(err))
		}
	}
	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && now > 0 && now%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		select {
		case w.snapshotSink <- w.ExportSnapshot(now):
		default:
			w.log.Warn("snapshot sink full, skipping", zap.Uint64("tick", now))
		}
	}

	if w.m.OverlaySize() >= w.cfg.CollapseOverlayAt {
		w.m = w.m.Collapse()
	}

	w.stepNanos.Store(int64(time.Since(start)))
	w.updateMetrics(now)
	w.tick.Store(next)
}

func (w *World) beginTick() {
	w.dirty = w.dirty[:0]
	clear(w.dirtySet)
	w.tickEvents = w.tickEvents[:0]
	w.tickActions = nil
}

// tileForWrite returns the writable tile at p and records p as changed this tick.
func (w *World) tileForWrite(p geom.Position) *worldmap.Tile {
	t := w.m.TileForWrite(p)
	if t == nil {
		return nil
	}
	if _, ok := w.dirtySet[p]; !ok {
		w.dirtySet[p] = struct{}{}
		w.dirty = append(w.dirty, p)
	}
	return t
}

func (w *World) base(now uint64) events.Base {
	w.nextEvent++
	return events.Base{EventID: w.nextEvent, Tick: now}
}

func (w *World) emit(e events.Event) { w.tickEvents = append(w.tickEvents, e) }

func (w *World) publish(now uint64, snap *worldmap.ArrayMap) {
	p := &Published{
		Tick:          now,
		Map:           snap,
		Dirty:         append([]geom.Position(nil), w.dirty...),
		FollowID:      w.follow.id,
		RoundSecsLeft: w.roundSecsLeft(),
	}
	if c := w.creatures[w.follow.id]; c != nil {
		p.FollowPos = c.Position()
	} else {
		p.FollowPos = geom.P(w.cfg.Width/2, w.cfg.Height/2)
	}
	w.published.Store(p)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
