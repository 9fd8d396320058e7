package dashboard

import (
	"context"
	"sync"
)

// LoadFunc fetches data for a range. It must honour ctx cancellation.
type LoadFunc[T any] func(ctx context.Context, r Range) (T, error)

// Result is the outcome of one load.
type Result[T any] struct {
	Key   string
	Value T
	Err   error
}

// Session owns a dashboard State. When a dispatched action changes the
// range key it starts a new load and cancels the one still running for the
// previous key. Results of superseded loads are dropped.
type Session[T any] struct {
	mu      sync.Mutex
	state   State
	load    LoadFunc[T]
	cancel  context.CancelFunc
	gen     uint64
	results chan Result[T]
	wg      sync.WaitGroup
}

// NewSession creates a session in the given state. Call Start to issue the
// first load.
func NewSession[T any](initial State, load LoadFunc[T]) *Session[T] {
	return &Session[T]{
		state:   initial,
		load:    load,
		results: make(chan Result[T], 1),
	}
}

// Results delivers the latest non-superseded load results.
func (s *Session[T]) Results() <-chan Result[T] {
	return s.results
}

// State returns the current state.
func (s *Session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start issues the load for the current state.
func (s *Session[T]) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status == RangeSelected {
		s.startLocked(ctx)
	}
}

// Dispatch reduces the action into the state and re-fetches when the range
// key changed.
func (s *Session[T]) Dispatch(ctx context.Context, a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	s.state = Reduce(prev, a)
	if NeedsFetch(prev, s.state) {
		s.startLocked(ctx)
	}
	return s.state
}

// Reload re-issues the load for the current range, superseding any load
// still running. Use it after the cached data for the range was dropped.
func (s *Session[T]) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status == RangeSelected {
		s.startLocked(ctx)
	}
}

// Close cancels any in-flight load and waits for it to return.
func (s *Session[T]) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Session[T]) startLocked(parent context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.gen++
	gen := s.gen
	rng := s.state.Range

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		v, err := s.load(ctx, rng)
		s.deliver(gen, Result[T]{Key: rng.Key(), Value: v, Err: err})
	}()
}

func (s *Session[T]) deliver(gen uint64, res Result[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	// Keep only the newest result in the buffer.
	select {
	case <-s.results:
	default:
	}
	s.results <- res
}
