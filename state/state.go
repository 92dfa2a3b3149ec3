// Package state provides the shared state handed to every op handler.
//
// A single *State is created per driver and passed by pointer into each
// handler invocation, sync or async, so every handler observes the same
// instance. State has no internal locking: it is only mutated on the driver
// goroutine. Other goroutines (process exit watchers) may only call Wake.
package state

import (
	"github.com/deno-lib/oned/domain/ports"
	"go.uber.org/zap"
)

// State is the process-wide handle passed to op handlers.
type State struct {
	// Processes maps rids to the processes started by the run op.
	Processes *ResourceTable[ports.Process]

	// Launcher starts processes for the run op.
	Launcher ports.ProcessLauncher

	// Logger is the host-side logger for handlers.
	Logger *zap.Logger

	killed map[uint32]ports.Process
	wake   chan struct{}
}

// Option configures a State.
type Option func(*State)

// WithLauncher sets the process launcher.
func WithLauncher(l ports.ProcessLauncher) Option {
	return func(s *State) {
		s.Launcher = l
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *State) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// New creates a State with an empty process table.
func New(opts ...Option) *State {
	s := &State{
		Processes: NewResourceTable[ports.Process](),
		Logger:    zap.NewNop(),
		killed:    make(map[uint32]ports.Process),
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wake signals the driver that some pending work may have become ready.
// Safe to call from any goroutine; multiple signals coalesce.
func (s *State) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Woken returns the channel the driver waits on between polls.
func (s *State) Woken() <-chan struct{} {
	return s.wake
}

// MarkKilled records that proc, tracked under rid, was signalled by kill.
// The rid stays tracked until Reap observes the exit.
func (s *State) MarkKilled(rid uint32, proc ports.Process) {
	s.killed[rid] = proc
}

// Reap stops tracking killed processes that have exited and returns how many
// rids it released. Marks whose rid now holds another process are dropped.
func (s *State) Reap() int {
	released := 0
	for rid, proc := range s.killed {
		cur, ok := s.Processes.Get(rid)
		if !ok || cur != proc {
			delete(s.killed, rid)
			continue
		}
		select {
		case <-proc.Done():
			s.Processes.Remove(rid)
			delete(s.killed, rid)
			released++
		default:
		}
	}
	return released
}
