package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.tickDuration())
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []*Agent

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case a := <-w.leave:
			pendingLeaves = append(pendingLeaves, a)
		case <-ticker.C:
			w.stepInternal(pendingJoins, pendingLeaves)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []*Agent) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.stepInternal(joins, leaves)
	return tick, w.stateDigest(tick)
}

// sendLatest queues b, dropping the oldest queued message when ch is full. It reports whether
// a message had to be dropped.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return false
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return true
}
