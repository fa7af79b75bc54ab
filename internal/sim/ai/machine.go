package ai

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"roguecloud.ai/internal/sim/action"
)

type monster struct {
	id    int64
	brain Brain
	slot  *action.Slot

	// busy is set while a decision for this monster is queued or running; last is only
	// touched by whoever holds busy.
	busy atomic.Bool
	last *action.Future
}

type job struct {
	m *monster
	v View
}

// Machine runs monster decisions on a fixed pool of workers. A monster whose previous
// decision has not finished is skipped. With zero workers decisions run inline in Dispatch.
type Machine struct {
	log *zap.Logger

	mu       sync.Mutex
	monsters map[int64]*monster

	jobs      chan job
	wg        sync.WaitGroup
	closeOnce sync.Once

	decisions atomic.Uint64
	skipped   atomic.Uint64
	panics    atomic.Uint64
}

func NewMachine(workers int, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Machine{log: log.Named("ai"), monsters: map[int64]*monster{}}
	if workers > 0 {
		m.jobs = make(chan job, workers*16)
		for i := 0; i < workers; i++ {
			m.wg.Add(1)
			go m.worker()
		}
	}
	return m
}

// Add registers a monster. Its decisions are submitted into slot.
func (m *Machine) Add(id int64, b Brain, slot *action.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monsters[id] = &monster{id: id, brain: b, slot: slot}
}

func (m *Machine) Remove(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.monsters, id)
}

func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.monsters)
}

// Dispatch schedules a decision for monster id against v. It reports false when the monster
// is unknown, still busy, or the queue is full.
func (m *Machine) Dispatch(id int64, v View) bool {
	m.mu.Lock()
	mo := m.monsters[id]
	m.mu.Unlock()
	if mo == nil || !mo.busy.CompareAndSwap(false, true) {
		m.skipped.Add(1)
		return false
	}
	if m.jobs == nil {
		m.run(job{m: mo, v: v})
		return true
	}
	select {
	case m.jobs <- job{m: mo, v: v}:
		return true
	default:
		mo.busy.Store(false)
		m.skipped.Add(1)
		return false
	}
}

func (m *Machine) worker() {
	defer m.wg.Done()
	for j := range m.jobs {
		m.run(j)
	}
}

func (m *Machine) run(j job) {
	mo := j.m
	defer mo.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			m.panics.Add(1)
			m.log.Error("monster decision panicked", zap.Int64("creature_id", mo.id), zap.Any("panic", r))
		}
	}()

	lastFailed := false
	if mo.last != nil {
		select {
		case <-mo.last.Done():
		default:
			// The previous action has not resolved yet.
			return
		}
		resp, ok := mo.last.Poll()
		lastFailed = !ok || !resp.Succeeded()
		mo.last = nil
	}
	m.decisions.Add(1)
	a := mo.brain.Decide(j.v, lastFailed)
	if a == nil {
		return
	}
	if _, isNull := a.(action.Null); isNull {
		return
	}
	f, err := mo.slot.Submit(0, a)
	if err != nil {
		return
	}
	mo.last = f
}

type Stats struct {
	Monsters  int    `json:"monsters"`
	Decisions uint64 `json:"decisions"`
	Skipped   uint64 `json:"skipped"`
	Panics    uint64 `json:"panics"`
}

func (m *Machine) Stats() Stats {
	return Stats{
		Monsters:  m.Len(),
		Decisions: m.decisions.Load(),
		Skipped:   m.skipped.Load(),
		Panics:    m.panics.Load(),
	}
}

// Close stops the workers after the queued decisions finish.
func (m *Machine) Close() {
	m.closeOnce.Do(func() {
		if m.jobs != nil {
			close(m.jobs)
		}
	})
	m.wg.Wait()
}
