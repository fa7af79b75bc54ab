package action

import "sync"

// Slot holds at most one queued action for an agent. Agents call Submit from any goroutine;
// the world loop drains it with Take once per tick.
type Slot struct {
	mu      sync.Mutex
	pending *Future
	closed  bool
}

func NewSlot() *Slot { return &Slot{} }

// Submit queues a. A Null action resolves immediately and leaves any queued action alone.
// Otherwise a still-queued action is replaced and its future resolves with Failure.
func (s *Slot) Submit(messageID int64, a Action) (*Future, error) {
	if a == nil {
		a = Null{}
	}
	f := newFuture(messageID, a)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrDisconnected
	}
	if _, ok := a.(Null); ok {
		s.mu.Unlock()
		f.Resolve(NullResponse{})
		return f, nil
	}
	prev := s.pending
	s.pending = f
	s.mu.Unlock()

	if prev != nil {
		prev.Resolve(Failure(prev.action))
	}
	return f, nil
}

// Take removes and returns the queued future, or nil.
func (s *Slot) Take() *Future {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.pending
	s.pending = nil
	return f
}

func (s *Slot) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Close marks the agent disconnected. A queued future is abandoned so its waiters observe
// ErrDisconnected; later submissions fail.
func (s *Slot) Close() {
	s.mu.Lock()
	f := s.pending
	s.pending = nil
	s.closed = true
	s.mu.Unlock()
	if f != nil {
		f.abandon()
	}
}

func (s *Slot) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
