// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingLock struct {
	acquires atomic.Int32
	releases atomic.Int32
}

func (l *countingLock) Acquire() { l.acquires.Add(1) }
func (l *countingLock) Release() { l.releases.Add(1) }

func TestProximityConjunction(t *testing.T) {
	lock := &countingLock{}
	p := NewProximityController(lock)

	// Neither input alone may hold the lock
	p.OnProximityChanged(true)
	require.False(t, p.Held())
	p.OnProximityChanged(false)
	p.SetShouldListen(true)
	require.False(t, p.Held())
	require.EqualValues(t, 0, lock.acquires.Load())

	p.OnProximityChanged(true)
	require.True(t, p.Held())
	require.EqualValues(t, 1, lock.acquires.Load())
}

func TestProximityReleaseOnEitherInput(t *testing.T) {
	lock := &countingLock{}
	p := NewProximityController(lock)

	p.SetShouldListen(true)
	p.OnProximityChanged(true)
	require.True(t, p.Held())

	// Call ended while user still near
	p.SetShouldListen(false)
	require.False(t, p.Held())
	require.EqualValues(t, 1, lock.releases.Load())

	p.SetShouldListen(true)
	require.True(t, p.Held())
	p.OnProximityChanged(false)
	require.False(t, p.Held())
	require.EqualValues(t, 2, lock.releases.Load())
}

func TestProximityEdgeTriggered(t *testing.T) {
	lock := &countingLock{}
	p := NewProximityController(lock)

	p.SetShouldListen(true)
	p.OnProximityChanged(true)
	p.OnProximityChanged(true)
	p.SetShouldListen(true)
	require.EqualValues(t, 1, lock.acquires.Load(), "repeated same-state inputs must not thrash the lock")

	p.OnProximityChanged(false)
	p.OnProximityChanged(false)
	require.EqualValues(t, 1, lock.releases.Load())
}

func TestProximityNilLock(t *testing.T) {
	p := NewProximityController(nil)
	p.SetShouldListen(true)
	p.OnProximityChanged(true)
	require.True(t, p.Held())
}
