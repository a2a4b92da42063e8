// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import (
	"sync"
	"time"
)

// DefaultTerminatedHistory bounds terminated id set kept for replay detection
const DefaultTerminatedHistory = 128

// SessionRegistry is thread safe store of live call sessions. It owns
// admission rules: one mutex covers admission, removal and aggregate
// predicate reads, so TryAdmit and Remove can never interleave into two
// live sessions with same id.
//
// Registry does bookkeeping only. All collaborator notification is
// Coordinator responsibility.
type SessionRegistry struct {
	mu         sync.Mutex
	sessions   map[string]*CallSession
	terminated []string
	termIndex  map[string]struct{}
	// maxTerminated bounds terminated FIFO
	maxTerminated int
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions:      make(map[string]*CallSession),
		termIndex:     make(map[string]struct{}),
		maxTerminated: DefaultTerminatedHistory,
	}
}

// TryAdmit is atomic check and insert. On success new session is created in
// RINGING or DIALING depending on direction. Rejection reasons:
//   - ErrAlreadyTerminated: id was live before, terminated ids are not reusable
//   - ErrAlreadyExistsAnswered / ErrAlreadyExists: live session with same id
//   - ErrBusy: second incoming offer while one is already pending
func (r *SessionRegistry) TryAdmit(id string, dir Direction, meta CallMeta) (*CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.termIndex[id]; ok {
		return nil, ErrAlreadyTerminated
	}

	if s, ok := r.sessions[id]; ok {
		if s.Answered() {
			return nil, ErrAlreadyExistsAnswered
		}
		return nil, ErrAlreadyExists
	}

	// Only one ringing session is permitted concurrently
	if dir == DirectionIncoming && r.hasIncomingPendingUnsafe() {
		return nil, ErrBusy
	}

	state := StateRinging
	if dir == DirectionOutgoing {
		state = StateDialing
	}

	s := &CallSession{
		ID:        id,
		Direction: dir,
		CreatedAt: time.Now(),
		state:     state,
	}
	s.applyMeta(meta)
	r.sessions[id] = s
	return s, nil
}

func (r *SessionRegistry) Get(id string) (*CallSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Terminated reports whether id belongs to already terminated session
func (r *SessionRegistry) Terminated(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.termIndex[id]
	return ok
}

// Sessions returns consistent snapshot of live sessions
func (r *SessionRegistry) Sessions() []*CallSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*CallSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *SessionRegistry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *SessionRegistry) HasVideoSession() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.HasVideo() {
			return true
		}
	}
	return false
}

// HasIncomingPending reports whether any session is still ringing
func (r *SessionRegistry) HasIncomingPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasIncomingPendingUnsafe()
}

func (r *SessionRegistry) hasIncomingPendingUnsafe() bool {
	for _, s := range r.sessions {
		if s.State() == StateRinging {
			return true
		}
	}
	return false
}

// ActiveSession returns session that is ACTIVE and not on hold, nil if none.
// Used to decide hangup-previous behavior before a new outgoing dial.
func (r *SessionRegistry) ActiveSession() *CallSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.State() == StateActive {
			return s
		}
	}
	return nil
}

// Remove moves id from live map to terminated set. Returns true only on
// first removal, second call is no-op.
func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)

	if _, ok := r.termIndex[id]; !ok {
		r.termIndex[id] = struct{}{}
		r.terminated = append(r.terminated, id)
		if len(r.terminated) > r.maxTerminated {
			evicted := r.terminated[0]
			r.terminated = r.terminated[1:]
			delete(r.termIndex, evicted)
		}
	}
	return true
}
