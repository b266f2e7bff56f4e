package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"susu_keeper/internal/domain/payout"
)

func newChecker(t *testing.T, chain *fakeChain) *PayoutChecker {
	t.Helper()
	log, _ := newTestLogger()
	return NewPayoutChecker(chain, time.Second, log)
}

func TestPayoutChecker_WaitingForDeadline(t *testing.T) {
	chain := newFakeChain()
	chain.add(groupOne, &fakeContract{active: true, canExec: false, round: 3, remaining: 7200})

	res, err := newChecker(t, chain).Check(context.Background(), groupOne.Hex())
	require.NoError(t, err)
	assert.False(t, res.CanExec)
	assert.Empty(t, res.ExecPayload)
	assert.Equal(t, "Waiting for round 3. Time until deadline: 7200s", res.Message)
}

func TestPayoutChecker_ExecutablePassesPayloadThrough(t *testing.T) {
	chain := newFakeChain()
	payload := []byte{0xAB, 0xCD}
	chain.add(groupOne, &fakeContract{active: true, canExec: true, payload: payload, round: 3})

	res, err := newChecker(t, chain).Check(context.Background(), groupOne.Hex())
	require.NoError(t, err)
	assert.True(t, res.CanExec)
	assert.Equal(t, payload, res.ExecPayload)
	assert.Equal(t, "Executing payout for round 3 of group "+groupOne.Hex(), res.Message)
}

func TestPayoutChecker_InactiveShortCircuits(t *testing.T) {
	chain := newFakeChain()
	c := chain.add(groupOne, &fakeContract{active: false, canExec: true})

	res, err := newChecker(t, chain).Check(context.Background(), groupOne.Hex())
	require.NoError(t, err)
	assert.False(t, res.CanExec)
	assert.Equal(t, groupOne.Hex()+" is no longer active", res.Message)
	assert.Zero(t, c.canExecCalls, "payout check must not run for an inactive group")
}

func TestPayoutChecker_ChainErrorsBecomeNegativeResults(t *testing.T) {
	tests := []struct {
		name     string
		contract *fakeContract
		want     string
	}{
		{
			name:     "groupActive fails",
			contract: &fakeContract{activeErr: errors.New("rpc unavailable")},
			want:     "Error checking payout: rpc unavailable",
		},
		{
			name:     "canExecutePayout reverts",
			contract: &fakeContract{active: true, canExecErr: errors.New("execution reverted")},
			want:     "Error checking payout: execution reverted",
		},
		{
			name:     "currentRound fails",
			contract: &fakeContract{active: true, canExec: true, roundErr: errors.New("malformed response")},
			want:     "Error checking payout: malformed response",
		},
		{
			name:     "reader panics",
			contract: &fakeContract{panicOnRead: true},
			want:     "Error checking payout: panic while reading chain state: reader exploded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.add(groupOne, tt.contract)

			res, err := newChecker(t, chain).Check(context.Background(), groupOne.Hex())
			require.NoError(t, err)
			assert.False(t, res.CanExec)
			assert.Empty(t, res.ExecPayload)
			assert.Equal(t, tt.want, res.Message)
		})
	}
}

func TestPayoutChecker_InvalidInput(t *testing.T) {
	checker := newChecker(t, newFakeChain())
	for _, in := range []string{"", "   ", "not-an-address", "0x1234", "0x0000000000000000000000000000000000000000"} {
		_, err := checker.Check(context.Background(), in)
		assert.ErrorIs(t, err, payout.ErrInvalidInput, "input %q", in)
	}
}

func TestPayoutChecker_AcceptsLowercaseAddress(t *testing.T) {
	chain := newFakeChain()
	chain.add(groupOne, &fakeContract{active: true, round: 1, remaining: 10})

	res, err := newChecker(t, chain).Check(context.Background(), "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, "Waiting for round 1. Time until deadline: 10s", res.Message)
}

func TestPayoutChecker_CheckManyKeepsInputOrder(t *testing.T) {
	chain := newFakeChain()
	chain.add(groupOne, &fakeContract{active: true, canExec: true, payload: []byte{1}, round: 2})
	chain.add(groupTwo, &fakeContract{active: false})

	results := newChecker(t, chain).CheckMany(context.Background(), []string{groupOne.Hex(), "bad", groupTwo.Hex()})
	require.Len(t, results, 3)

	assert.True(t, results[0].Result.CanExec)
	assert.ErrorIs(t, results[1].Err, payout.ErrInvalidInput)
	assert.False(t, results[2].Result.CanExec)
	assert.Equal(t, groupTwo.Hex()+" is no longer active", results[2].Result.Message)
}
