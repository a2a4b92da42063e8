// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWorker is scriptable: it can stay cold forever, delay readiness or
// never acknowledge a delivery.
type stubWorker struct {
	startDelay time.Duration
	neverReady bool
	neverAck   bool

	running    atomic.Bool
	starts     atomic.Int32
	deliveries atomic.Int32

	mu     sync.Mutex
	events []Event
}

func (w *stubWorker) Start(ctx context.Context) <-chan struct{} {
	w.starts.Add(1)
	ch := make(chan struct{})
	if w.neverReady {
		return ch
	}
	go func() {
		if w.startDelay > 0 {
			time.Sleep(w.startDelay)
		}
		w.running.Store(true)
		close(ch)
	}()
	return ch
}

func (w *stubWorker) Deliver(ctx context.Context, ev Event) error {
	w.deliveries.Add(1)
	if w.neverAck {
		<-ctx.Done()
		return ctx.Err()
	}
	w.mu.Lock()
	w.events = append(w.events, ev)
	w.mu.Unlock()
	return nil
}

func (w *stubWorker) Running() bool { return w.running.Load() }

func TestMessengerColdStartDelivery(t *testing.T) {
	w := &stubWorker{startDelay: 20 * time.Millisecond}
	m := NewMessenger(w, time.Second, time.Second)

	err := m.Deliver(context.Background(), AnswerCall{ID: "c1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, w.deliveries.Load())
	require.EqualValues(t, 1, w.starts.Load())

	// Warm worker is not restarted
	require.NoError(t, m.Deliver(context.Background(), HangupCall{ID: "c1"}))
	require.EqualValues(t, 1, w.starts.Load())
}

func TestMessengerColdStartTimeout(t *testing.T) {
	w := &stubWorker{neverReady: true}
	m := NewMessenger(w, 30*time.Millisecond, time.Second)

	started := time.Now()
	err := m.Deliver(context.Background(), AnswerCall{ID: "c1"})
	require.ErrorIs(t, err, ErrWorkerNotReady)
	assert.Less(t, time.Since(started), time.Second, "cold start failure must surface promptly")
	assert.EqualValues(t, 0, w.deliveries.Load(), "nothing may reach a worker that never came up")
}

func TestMessengerAckTimeout(t *testing.T) {
	w := &stubWorker{neverAck: true}
	m := NewMessenger(w, time.Second, 30*time.Millisecond)

	err := m.Deliver(context.Background(), AnswerCall{ID: "c1"})
	require.ErrorIs(t, err, ErrDeliveryTimeout)
	assert.EqualValues(t, 1, w.deliveries.Load(), "delivery is at most once, no internal retry")
}

func TestMessengerSharedColdStart(t *testing.T) {
	w := &stubWorker{startDelay: 20 * time.Millisecond}
	m := NewMessenger(w, time.Second, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Deliver(context.Background(), AnswerCall{ID: "c1"}))
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, w.starts.Load(), "racing deliveries share one cold start")
	require.EqualValues(t, 8, w.deliveries.Load())
}

func TestMessengerCallerContextCancel(t *testing.T) {
	w := &stubWorker{neverReady: true}
	m := NewMessenger(w, time.Minute, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := m.Deliver(ctx, AnswerCall{ID: "c1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// Fallback liveness: an unreachable background context must delay an answer
// by at most the ack timeout, never block it.
func TestBackgroundFallbackLiveness(t *testing.T) {
	ctx := context.Background()

	w := &stubWorker{neverAck: true}
	w.running.Store(true)

	conf := DefaultConfig()
	conf.AckTimeout = 50 * time.Millisecond
	f := newFixture(t,
		WithConfig(conf),
		WithMessenger(NewMessenger(w, time.Second, conf.AckTimeout)),
	)

	// Foreground handles the offer, then goes away before the answer
	f.coord.Selector().SetForegroundAttached(true)
	s, err := f.coord.ReportIncomingCall(ctx, "c1", CallMeta{Handle: "100"})
	require.NoError(t, err)
	f.coord.Selector().SetForegroundAttached(false)

	started := time.Now()
	require.NoError(t, f.coord.Answer(ctx, "c1"))
	elapsed := time.Since(started)

	assert.Equal(t, StateActive, s.State(), "local fallback must complete the answer")
	assert.Equal(t, []string{"c1"}, f.signaling.answered)
	assert.GreaterOrEqual(t, elapsed, conf.AckTimeout)
	assert.Less(t, elapsed, time.Second)
}
