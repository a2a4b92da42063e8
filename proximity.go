// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// WakeLock keeps screen or CPU awake while held. Acquire and Release must be
// idempotent, controller may call them repeatedly.
type WakeLock interface {
	Acquire()
	Release()
}

type nopWakeLock struct{}

func (nopWakeLock) Acquire() {}
func (nopWakeLock) Release() {}

// ProximityController drives wake lock from two independent inputs: proximity
// sensor state and should-listen policy flag tied to session state. Lock is
// held iff both are set. Conjunction is recomputed on every change to either
// input, so disabling listening while user is near releases lock immediately.
type ProximityController struct {
	mu sync.Mutex

	near         bool
	shouldListen bool
	held         bool

	lock WakeLock
}

func NewProximityController(lock WakeLock) *ProximityController {
	if lock == nil {
		lock = nopWakeLock{}
	}
	return &ProximityController{lock: lock}
}

func (p *ProximityController) OnProximityChanged(near bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.near = near
	p.recompute()
}

func (p *ProximityController) SetShouldListen(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shouldListen = enabled
	p.recompute()
}

// Held reports whether wake lock is currently held
func (p *ProximityController) Held() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held
}

// recompute must be called under mu
func (p *ProximityController) recompute() {
	want := p.shouldListen && p.near
	if want == p.held {
		return
	}
	p.held = want
	if want {
		log.Debug().Msg("Acquiring proximity wake lock")
		p.lock.Acquire()
		return
	}
	log.Debug().Msg("Releasing proximity wake lock")
	p.lock.Release()
}
