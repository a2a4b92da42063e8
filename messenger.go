// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Worker is the background execution context. Start is asynchronous: it
// returns immediately and the ready channel is closed once the worker
// accepts deliveries. Deliver blocks until the worker acknowledges the
// event or ctx expires.
type Worker interface {
	Start(ctx context.Context) <-chan struct{}
	Deliver(ctx context.Context, ev Event) error
	Running() bool
}

// Messenger wakes the background context and delivers events to it.
// Delivery is at-most-once per call, there is no internal retry of side
// effecting events. On ErrWorkerNotReady or ErrDeliveryTimeout the caller
// is expected to apply local fallback and proceed with the native action.
type Messenger struct {
	worker Worker

	startTimeout time.Duration
	ackTimeout   time.Duration

	mu    sync.Mutex
	ready <-chan struct{}
}

func NewMessenger(w Worker, startTimeout, ackTimeout time.Duration) *Messenger {
	if startTimeout <= 0 {
		startTimeout = 10 * time.Second
	}
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}
	return &Messenger{
		worker:       w,
		startTimeout: startTimeout,
		ackTimeout:   ackTimeout,
	}
}

func (m *Messenger) Deliver(ctx context.Context, ev Event) error {
	ready := m.ensureStarted(ctx)

	t := time.NewTimer(m.startTimeout)
	defer t.Stop()
	select {
	case <-ready:
	case <-t.C:
		log.Warn().Str("call_id", ev.CallID()).Msg("Background worker cold start timed out")
		return ErrWorkerNotReady
	case <-ctx.Done():
		return ctx.Err()
	}

	dctx, cancel := context.WithTimeout(ctx, m.ackTimeout)
	defer cancel()

	if err := m.worker.Deliver(dctx, ev); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Str("call_id", ev.CallID()).Msg("Background delivery not acknowledged in time")
			return ErrDeliveryTimeout
		}
		return fmt.Errorf("background delivery failed: %w", err)
	}
	return nil
}

// ensureStarted cold starts worker when it is not running. Ready channel is
// shared between concurrent deliveries racing on the same cold start.
func (m *Messenger) ensureStarted(ctx context.Context) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready != nil && m.worker.Running() {
		return m.ready
	}
	log.Debug().Msg("Cold starting background worker")
	m.ready = m.worker.Start(ctx)
	return m.ready
}

// WorkerFunc adapts plain handler function into an always resident Worker.
// Useful for tests and for embedding callkeep where background context is
// just another goroutine in the same process.
type WorkerFunc func(ctx context.Context, ev Event) error

func (f WorkerFunc) Start(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (f WorkerFunc) Deliver(ctx context.Context, ev Event) error { return f(ctx, ev) }

func (f WorkerFunc) Running() bool { return true }
