package action

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrDisconnected is returned when the agent's slot was closed before the action resolved,
	// or when submitting on a closed slot.
	ErrDisconnected = errors.New("action: agent disconnected")
	ErrTimeout      = errors.New("action: timed out waiting for response")
)

// Future is a one-shot handle for a submitted action. It is resolved exactly once, either
// with a Response by the world loop or abandoned when the agent disconnects.
type Future struct {
	action    Action
	messageID int64

	once sync.Once
	done chan struct{}
	resp Response
	err  error
}

func newFuture(messageID int64, a Action) *Future {
	return &Future{action: a, messageID: messageID, done: make(chan struct{})}
}

// NewFuture returns an unsettled future. Clients use it to track requests sent over the wire.
func NewFuture(messageID int64, a Action) *Future { return newFuture(messageID, a) }

func (f *Future) Action() Action   { return f.action }
func (f *Future) MessageID() int64 { return f.messageID }

// Resolve delivers r and wakes every waiter. It reports false if f was already settled.
func (f *Future) Resolve(r Response) bool {
	ok := false
	f.once.Do(func() {
		f.resp = r
		close(f.done)
		ok = true
	})
	return ok
}

// Abandon settles f with ErrDisconnected. It reports false if f was already settled.
func (f *Future) Abandon() bool { return f.abandon() }

func (f *Future) abandon() bool {
	ok := false
	f.once.Do(func() {
		f.err = ErrDisconnected
		close(f.done)
		ok = true
	})
	return ok
}

// Poll returns the response without blocking.
func (f *Future) Poll() (Response, bool) {
	select {
	case <-f.done:
		return f.resp, f.err == nil
	default:
		return nil, false
	}
}

// Received reports whether a response has arrived.
func (f *Future) Received() bool {
	_, ok := f.Poll()
	return ok
}

// Done is closed once the future is settled.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the response arrives, the slot closes, or ctx ends.
func (f *Future) Wait(ctx context.Context) (Response, error) {
	select {
	case <-f.done:
		if f.err != nil {
			return nil, f.err
		}
		return f.resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitTimeout is Wait bounded by d; it returns ErrTimeout when d elapses first.
func (f *Future) WaitTimeout(d time.Duration) (Response, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-f.done:
		if f.err != nil {
			return nil, f.err
		}
		return f.resp, nil
	case <-t.C:
		return nil, ErrTimeout
	}
}
