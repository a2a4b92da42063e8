// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type Direction int

const (
	DirectionIncoming Direction = iota
	DirectionOutgoing
)

func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "incoming"
	case DirectionOutgoing:
		return "outgoing"
	}
	return "unknown"
}

type CallState int

const (
	// StateRinging is incoming call not yet answered
	StateRinging CallState = iota + 1
	// StateDialing is outgoing call not yet confirmed by remote
	StateDialing
	StateActive
	StateOnHold
	// StateTerminated is absorbing. Session is removed from registry on entering
	StateTerminated
)

func (s CallState) String() string {
	switch s {
	case StateRinging:
		return "ringing"
	case StateDialing:
		return "dialing"
	case StateActive:
		return "active"
	case StateOnHold:
		return "on_hold"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// CallMeta is partial call metadata. Boolean fields are tristate so that late
// updates only touch what the remote actually sent. Zero value merges nothing.
type CallMeta struct {
	Handle      string
	DisplayName string

	HasVideo         *bool
	HasMute          *bool
	HasHold          *bool
	HasSpeaker       *bool
	ProximityEnabled *bool

	RingtonePath string
	DTMF         string
}

// Bool is helper for building CallMeta tristate fields
func Bool(v bool) *bool { return &v }

// CallSession tracks single call from offer to termination. Identity fields
// are immutable, mutable status is guarded by own mutex. Structural lifetime
// (admission, removal) is owned by SessionRegistry.
type CallSession struct {
	ID        string
	Direction Direction
	CreatedAt time.Time

	mu           sync.Mutex
	state        CallState
	handle       string
	displayName  string
	hasVideo     bool
	hasMute      bool
	hasHold      bool
	hasSpeaker   bool
	proximityOn  bool
	ringtonePath string
	dtmfTone     string
	answered     bool
	answeredAt   time.Time

	closed atomic.Uint32
}

func (s *CallSession) State() CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *CallSession) setState(st CallState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// tryTransition moves session into to only when current state is one of from.
func (s *CallSession) tryTransition(to CallState, from ...CallState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range from {
		if s.state == f {
			s.state = to
			return true
		}
	}
	return false
}

// markAnswered records answer exactly once
func (s *CallSession) markAnswered(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.answered {
		s.answered = true
		s.answeredAt = t
	}
}

// Answered reports whether user accepted the call. Flag survives hold and
// termination, it is not derived from current state.
func (s *CallSession) Answered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answered
}

func (s *CallSession) AnsweredAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answeredAt
}

// Terminated reports whether terminal teardown already started for session
func (s *CallSession) Terminated() bool {
	return s.closed.Load() == 1
}

// beginTerminate claims right to run terminal teardown. Only first caller
// gets true, making hangup side effects exactly-once.
func (s *CallSession) beginTerminate() bool {
	return s.closed.CompareAndSwap(0, 1)
}

func (s *CallSession) Handle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *CallSession) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.displayName == "" {
		return s.handle
	}
	return s.displayName
}

func (s *CallSession) HasVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasVideo
}

func (s *CallSession) HasMute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMute
}

func (s *CallSession) HasHold() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasHold
}

func (s *CallSession) HasSpeaker() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasSpeaker
}

func (s *CallSession) ProximityEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proximityOn
}

func (s *CallSession) RingtonePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ringtonePath
}

// DTMFTone returns most recently sent tone, transient
func (s *CallSession) DTMFTone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dtmfTone
}

func (s *CallSession) setDTMF(tone string) {
	s.mu.Lock()
	s.dtmfTone = tone
	s.mu.Unlock()
}

func (s *CallSession) setMute(v bool) {
	s.mu.Lock()
	s.hasMute = v
	s.mu.Unlock()
}

func (s *CallSession) setSpeaker(v bool) {
	s.mu.Lock()
	s.hasSpeaker = v
	s.mu.Unlock()
}

func (s *CallSession) setHold(v bool) {
	s.mu.Lock()
	s.hasHold = v
	s.mu.Unlock()
}

// applyMeta merges non empty fields into session
func (s *CallSession) applyMeta(meta CallMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta.Handle != "" {
		s.handle = meta.Handle
	}
	if meta.DisplayName != "" {
		s.displayName = meta.DisplayName
	}
	if meta.HasVideo != nil {
		s.hasVideo = *meta.HasVideo
	}
	if meta.HasMute != nil {
		s.hasMute = *meta.HasMute
	}
	if meta.HasHold != nil {
		s.hasHold = *meta.HasHold
	}
	if meta.HasSpeaker != nil {
		s.hasSpeaker = *meta.HasSpeaker
	}
	if meta.ProximityEnabled != nil {
		s.proximityOn = *meta.ProximityEnabled
	}
	if meta.RingtonePath != "" {
		s.ringtonePath = meta.RingtonePath
	}
	if meta.DTMF != "" {
		s.dtmfTone = meta.DTMF
	}
}

func (s *CallSession) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("CallSession(id=%s dir=%s state=%s handle=%s answered=%v)",
		s.ID, s.Direction, s.state, s.handle, s.answered)
}
