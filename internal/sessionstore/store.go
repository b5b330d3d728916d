// Package sessionstore holds the registry of live evaluation sessions.
// It owns the one-shot host-runtime boot gate (spec.md §3/§4.4): the
// first successful session.create in a process boots the host runtime
// and every later session.create reuses it.
//
// The server loop (spec.md §5) is the Store's primary caller and is
// itself single-threaded, but the optional idle-teardown timer
// (SPEC_FULL.md extension 1) calls TeardownIfIdle from its own ticker
// goroutine running concurrently with the loop, so the registry and the
// boot gate are guarded by a mutex. Each Session's busy/idle state is
// guarded independently, since the eval handler's scoped acquisition
// (internal/handlers) and any future concurrent caller both touch it.
package sessionstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akodkod/konsol/internal/hostruntime"
	"github.com/akodkod/konsol/internal/protocol"
)

// State is a session's lifecycle state (spec.md §3).
type State string

const (
	StateIdle        State = "idle"
	StateBusy        State = "busy"
	StateInterrupted State = "interrupted"
)

// Session is a named, persistent evaluation context plus its lifecycle
// state. EvalContext is the mutable name->value binding map carried
// across every evaluation performed against this session (spec.md §9).
type Session struct {
	ID          string
	CreatedAt   time.Time
	EvalContext map[string]any

	mu              sync.Mutex
	state           State
	cancelAttempts  int
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TryAcquire transitions idle->busy and reports whether it succeeded.
// Failing (false) means the session is already busy.
func (s *Session) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return false
	}
	s.state = StateBusy
	return true
}

// Release is the guaranteed-on-every-exit-path counterpart to TryAcquire
// (spec.md §4.6/§9: "scoped acquisition with guaranteed release"). If an
// interrupt was registered while busy (state is now Interrupted), this
// is the transition through interrupted to idle spec.md §3 describes.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
}

// MarkInterrupted records an interrupt request against a busy session.
// Returns false if the session was not busy (nothing to interrupt).
func (s *Session) MarkInterrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateBusy {
		return false
	}
	s.state = StateInterrupted
	return true
}

// RecordCancelAttempt bumps the observability counter for $/cancelRequest
// bookkeeping (SPEC_FULL.md extension 4). It has no effect on the
// running evaluation.
func (s *Session) RecordCancelAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAttempts++
}

// CancelAttempts returns how many cancel requests have been recorded
// against this session.
func (s *Session) CancelAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelAttempts
}

// Store is the registry of live sessions for one server process.
type Store struct {
	runtime hostruntime.Runtime

	mu       sync.Mutex
	booted   bool
	sessions map[string]*Session
}

// New builds an empty store bound to the given host runtime. The
// runtime is not booted yet; boot happens lazily on the first
// CreateSession call.
func New(runtime hostruntime.Runtime) *Store {
	return &Store{
		runtime:  runtime,
		sessions: make(map[string]*Session),
	}
}

// CreateSession boots the host runtime on first call (spec.md §4.4),
// then registers and returns a new session with a freshly generated
// opaque identifier.
func (st *Store) CreateSession(ctx context.Context) (*Session, *protocol.Error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.booted {
		if err := st.runtime.Boot(ctx); err != nil {
			return nil, protocol.NewErrorf(protocol.CodeRailsBootFailed, "host runtime boot failed: %v", err)
		}
		st.booted = true
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeInternal, "generate session id: %v", err)
	}

	s := &Session{
		ID:          id.String(),
		CreatedAt:   time.Now(),
		EvalContext: make(map[string]any),
		state:       StateIdle,
	}
	st.sessions[s.ID] = s
	return s, nil
}

// Get looks up a session by id, returning (nil, false) on a miss.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Require looks up a session by id or returns a session-not-found error.
func (st *Store) Require(id string) (*Session, *protocol.Error) {
	s, ok := st.Get(id)
	if !ok {
		return nil, protocol.NewErrorf(protocol.CodeSessionNotFound, "session %q not found", id)
	}
	return s, nil
}

// InvalidateAll clears the registry. Called on shutdown (spec.md §4.6);
// does not reset the boot gate, since the host runtime, once booted,
// stays booted for the remainder of the process unless the optional idle
// teardown (SPEC_FULL.md extension 1) runs.
func (st *Store) InvalidateAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions = make(map[string]*Session)
}

// Count returns the number of live sessions, for observability.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// TeardownIfIdle tears down the booted host runtime if there are zero
// live sessions, re-arming the boot gate so the next CreateSession boots
// again (SPEC_FULL.md extension 1). A no-op if the runtime was never
// booted or sessions are still live. Safe to call from a goroutine other
// than the one driving the server loop (see the idle-teardown ticker in
// cmd/konsol).
func (st *Store) TeardownIfIdle(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.booted || len(st.sessions) > 0 {
		return nil
	}
	if err := st.runtime.Teardown(ctx); err != nil {
		return fmt.Errorf("sessionstore: teardown idle host runtime: %w", err)
	}
	st.booted = false
	return nil
}
