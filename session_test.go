// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMetaMerge(t *testing.T) {
	s := &CallSession{ID: "c1", state: StateRinging}
	s.applyMeta(CallMeta{Handle: "100", HasVideo: Bool(false)})

	// Nil fields must not clobber current values
	s.applyMeta(CallMeta{DisplayName: "Alice"})
	assert.Equal(t, "100", s.Handle())
	assert.Equal(t, "Alice", s.DisplayName())
	assert.False(t, s.HasVideo())

	s.applyMeta(CallMeta{HasVideo: Bool(true), ProximityEnabled: Bool(true)})
	assert.True(t, s.HasVideo())
	assert.True(t, s.ProximityEnabled())
	assert.Equal(t, "Alice", s.DisplayName())
}

func TestSessionDisplayNameFallsBackToHandle(t *testing.T) {
	s := &CallSession{ID: "c1"}
	s.applyMeta(CallMeta{Handle: "100"})
	assert.Equal(t, "100", s.DisplayName())
}

func TestSessionAnsweredOnce(t *testing.T) {
	s := &CallSession{ID: "c1", state: StateRinging}

	first := time.Now()
	s.markAnswered(first)
	require.True(t, s.Answered())
	require.Equal(t, first, s.AnsweredAt())

	s.markAnswered(first.Add(time.Minute))
	assert.Equal(t, first, s.AnsweredAt(), "answeredAt is set once and never mutated")
}

func TestSessionTerminateClaim(t *testing.T) {
	s := &CallSession{ID: "c1", state: StateActive}

	require.True(t, s.beginTerminate())
	require.False(t, s.beginTerminate(), "only first caller may run teardown")
	require.True(t, s.Terminated())
}

func TestSessionTransitionGuards(t *testing.T) {
	s := &CallSession{ID: "c1", state: StateRinging}

	require.True(t, s.tryTransition(StateActive, StateRinging))
	require.False(t, s.tryTransition(StateActive, StateRinging))
	require.Equal(t, StateActive, s.State())

	require.True(t, s.tryTransition(StateOnHold, StateActive))
	require.False(t, s.tryTransition(StateOnHold, StateActive))
	require.True(t, s.tryTransition(StateActive, StateOnHold))
}
