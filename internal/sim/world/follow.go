package world

// followState picks which creature the browser view tracks. Creatures accumulate interest from
// their actions; the view switches to the most interesting unwatched living creature when its
// time is up or its target dies.
type followState struct {
	id       int64
	since    uint64
	interest map[int64]int
	watched  map[int64]struct{}
}

func (f *followState) note(id int64, weight int) {
	if f.interest == nil {
		f.interest = map[int64]int{}
	}
	f.interest[id] += weight
}

func (w *World) updateFollow(now uint64) {
	f := &w.follow
	cur := w.creatures[f.id]
	if cur != nil && !cur.IsDead() && now-f.since < w.cfg.followTicks() {
		return
	}
	if f.watched == nil {
		f.watched = map[int64]struct{}{}
	}

	pick := func(skipWatched bool) int64 {
		best, bestScore := int64(0), -1
		for _, id := range sortedKeys(w.creatures) {
			c := w.creatures[id]
			if c.IsDead() || id == f.id {
				continue
			}
			if _, seen := f.watched[id]; seen && skipWatched {
				continue
			}
			if s := f.interest[id]; s > bestScore {
				best, bestScore = id, s
			}
		}
		return best
	}

	next := pick(true)
	if next == 0 {
		clear(f.watched)
		next = pick(false)
	}
	if next == 0 {
		if cur == nil {
			f.id = 0
		}
		return
	}
	f.id = next
	f.since = now
	f.watched[next] = struct{}{}
	clear(f.interest)
}
