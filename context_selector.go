// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import "sync"

// ExecContext identifies which execution context handles an event
type ExecContext int

const (
	// ContextMain is foreground resident presentation layer
	ContextMain ExecContext = iota
	// ContextBackground is lazily started worker that may need cold start
	ContextBackground
)

func (c ExecContext) String() string {
	if c == ContextMain {
		return "main"
	}
	return "background"
}

type SignalingStatus int

const (
	SignalingUnknown SignalingStatus = iota
	SignalingConnecting
	SignalingConnected
	SignalingDisconnecting
	SignalingDisconnected
	SignalingFailed
)

// ContextSelector decides per event whether main or background context is
// authoritative. Selection is never cached across a call lifetime because
// residency can change mid call.
//
// When signaling status is published it wins: connected or connecting
// signaling means the main context is reachable. Otherwise the explicit
// foreground liveness flag decides. The flag is set and cleared by the
// presentation layer own lifecycle, never inferred from process state,
// since process can be alive with no handler attached yet.
type ContextSelector struct {
	mu sync.Mutex

	foregroundAttached bool
	signaling          SignalingStatus
	signalingKnown     bool
}

func NewContextSelector() *ContextSelector {
	return &ContextSelector{}
}

// SetForegroundAttached is called by presentation layer on attach and detach
func (c *ContextSelector) SetForegroundAttached(attached bool) {
	c.mu.Lock()
	c.foregroundAttached = attached
	c.mu.Unlock()
}

func (c *ContextSelector) SetSignalingStatus(st SignalingStatus) {
	c.mu.Lock()
	c.signaling = st
	c.signalingKnown = true
	c.mu.Unlock()
}

// ClearSignalingStatus drops published status, falling back to liveness flag
func (c *ContextSelector) ClearSignalingStatus() {
	c.mu.Lock()
	c.signaling = SignalingUnknown
	c.signalingKnown = false
	c.mu.Unlock()
}

func (c *ContextSelector) Context() ExecContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signalingKnown {
		if c.signaling == SignalingConnected || c.signaling == SignalingConnecting {
			return ContextMain
		}
		return ContextBackground
	}

	if c.foregroundAttached {
		return ContextMain
	}
	return ContextBackground
}
