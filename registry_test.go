// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAdmitRace(t *testing.T) {
	reg := NewSessionRegistry()

	const racers = 32
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.TryAdmit("c1", DirectionIncoming, CallMeta{})
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyExists)
	}
	require.Equal(t, 1, admitted, "exactly one racer must win admission")
	require.Equal(t, 1, reg.ActiveCount())
}

func TestRegistryBusyOnSecondIncoming(t *testing.T) {
	reg := NewSessionRegistry()

	s, err := reg.TryAdmit("c1", DirectionIncoming, CallMeta{})
	require.NoError(t, err)
	require.Equal(t, StateRinging, s.State())

	_, err = reg.TryAdmit("c2", DirectionIncoming, CallMeta{})
	require.ErrorIs(t, err, ErrBusy)

	// Outgoing is not blocked by pending incoming
	_, err = reg.TryAdmit("c3", DirectionOutgoing, CallMeta{})
	require.NoError(t, err)
}

func TestRegistryRejectsAnsweredDuplicate(t *testing.T) {
	reg := NewSessionRegistry()

	s, err := reg.TryAdmit("c1", DirectionIncoming, CallMeta{})
	require.NoError(t, err)

	_, err = reg.TryAdmit("c1", DirectionIncoming, CallMeta{})
	require.ErrorIs(t, err, ErrAlreadyExists)

	s.markAnswered(s.CreatedAt)
	_, err = reg.TryAdmit("c1", DirectionIncoming, CallMeta{})
	require.ErrorIs(t, err, ErrAlreadyExistsAnswered)
}

func TestRegistryTerminatedReplay(t *testing.T) {
	reg := NewSessionRegistry()

	_, err := reg.TryAdmit("c1", DirectionIncoming, CallMeta{})
	require.NoError(t, err)

	require.True(t, reg.Remove("c1"))
	require.False(t, reg.Remove("c1"), "second remove must be no-op")
	require.True(t, reg.Terminated("c1"))

	_, err = reg.TryAdmit("c1", DirectionIncoming, CallMeta{})
	require.ErrorIs(t, err, ErrAlreadyTerminated)
}

func TestRegistryTerminatedHistoryBounded(t *testing.T) {
	reg := NewSessionRegistry()

	for i := 0; i < DefaultTerminatedHistory+10; i++ {
		id := fmt.Sprintf("c%d", i)
		_, err := reg.TryAdmit(id, DirectionOutgoing, CallMeta{})
		require.NoError(t, err)
		require.True(t, reg.Remove(id))
	}

	assert.False(t, reg.Terminated("c0"), "oldest ids must be evicted")
	assert.True(t, reg.Terminated(fmt.Sprintf("c%d", DefaultTerminatedHistory+9)))
	assert.Len(t, reg.terminated, DefaultTerminatedHistory)
}

func TestRegistryPredicates(t *testing.T) {
	reg := NewSessionRegistry()

	assert.False(t, reg.HasIncomingPending())
	assert.False(t, reg.HasVideoSession())
	assert.Nil(t, reg.ActiveSession())

	s, err := reg.TryAdmit("c1", DirectionIncoming, CallMeta{HasVideo: Bool(true)})
	require.NoError(t, err)

	assert.True(t, reg.HasIncomingPending())
	assert.True(t, reg.HasVideoSession())
	assert.Nil(t, reg.ActiveSession())

	s.setState(StateActive)
	assert.False(t, reg.HasIncomingPending())
	assert.Same(t, s, reg.ActiveSession())

	// Held call is not treated as active
	s.setState(StateOnHold)
	assert.Nil(t, reg.ActiveSession())
}
