package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"susu_keeper/internal/domain/duty"
	"susu_keeper/internal/infra/chain"
	"susu_keeper/internal/infra/database"
)

func newRegistry(t *testing.T, network *fakeNetwork) (*TaskRegistry, *database.MemoryDutyRepository) {
	t.Helper()
	log, _ := newTestLogger()
	mirror := database.NewMemoryDutyRepository()
	return NewTaskRegistry(network, mirror, "", time.Second, log), mirror
}

func TestTaskRegistry_CreateDuty(t *testing.T) {
	network := &fakeNetwork{}
	registry, mirror := newRegistry(t, network)

	d, err := registry.CreateDuty(context.Background(), groupOne, "Family Circle")
	require.NoError(t, err)
	assert.Equal(t, "task-1", d.DutyID)
	assert.Equal(t, "Susu Payout - Family Circle", d.Name)
	assert.True(t, d.Active)

	require.Len(t, network.createCalls, 1)
	req := network.createCalls[0]
	assert.Equal(t, groupOne, req.ExecAddress)
	assert.Equal(t, groupOne, req.ResolverAddress)
	assert.Equal(t, chain.ExecSelector, req.ExecSelector)
	assert.Equal(t, chain.ResolverCallData(), req.ResolverData)
	assert.True(t, req.DedicatedCaller)

	mirrored, err := mirror.GetByGroup(context.Background(), groupOne)
	require.NoError(t, err)
	assert.Equal(t, "task-1", mirrored.DutyID)
	assert.Equal(t, chain.ResolverSelector, mirrored.ResolverSelector)
}

func TestTaskRegistry_CreateDutyIsIdempotent(t *testing.T) {
	network := &fakeNetwork{}
	registry, _ := newRegistry(t, network)

	_, err := registry.CreateDuty(context.Background(), groupOne, "Family Circle")
	require.NoError(t, err)

	_, err = registry.CreateDuty(context.Background(), groupOne, "Family Circle")
	assert.ErrorIs(t, err, duty.ErrDutyAlreadyExists)
	assert.Equal(t, 1, network.createCount(), "a second duty must not be registered")
}

func TestTaskRegistry_CreateDutyNetworkDuplicate(t *testing.T) {
	network := &fakeNetwork{createErr: duty.ErrTaskExists}
	registry, _ := newRegistry(t, network)

	_, err := registry.CreateDuty(context.Background(), groupOne, "Family Circle")
	assert.ErrorIs(t, err, duty.ErrDutyAlreadyExists)
}

func TestTaskRegistry_CreateDutyFailure(t *testing.T) {
	network := &fakeNetwork{createErr: errors.New("insufficient balance")}
	registry, mirror := newRegistry(t, network)

	_, err := registry.CreateDuty(context.Background(), groupOne, "Family Circle")
	var regErr *duty.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "createDuty", regErr.Op)
	assert.Contains(t, err.Error(), "insufficient balance")

	_, err = mirror.GetByGroup(context.Background(), groupOne)
	assert.ErrorIs(t, err, duty.ErrNotInMirror)
}

func TestTaskRegistry_ListDutiesFiltersCaseInsensitively(t *testing.T) {
	network := &fakeNetwork{tasks: []duty.Task{
		{ID: "a", ExecAddress: "0x1111111111111111111111111111111111111111", Active: true},
		{ID: "b", ExecAddress: groupTwo.Hex(), Active: true},
		{ID: "c", ExecAddress: "0X1111111111111111111111111111111111111111", Active: true},
	}}
	registry, _ := newRegistry(t, network)

	tasks, err := registry.ListDuties(context.Background(), groupOne)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "c", tasks[1].ID)

	has, err := registry.HasActiveDuty(context.Background(), groupThree)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestTaskRegistry_ListDutiesQueryError(t *testing.T) {
	network := &fakeNetwork{listErr: errors.New("gateway timeout")}
	registry, _ := newRegistry(t, network)

	_, err := registry.ListDuties(context.Background(), groupOne)
	var qErr *duty.QueryError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "listDuties", qErr.Op)
}

func TestTaskRegistry_CancelDuty(t *testing.T) {
	network := &fakeNetwork{}
	registry, mirror := newRegistry(t, network)
	ctx := context.Background()

	d, err := registry.CreateDuty(ctx, groupOne, "Family Circle")
	require.NoError(t, err)

	require.NoError(t, registry.CancelDuty(ctx, d.DutyID))
	mirrored, err := mirror.GetByDutyID(ctx, d.DutyID)
	require.NoError(t, err)
	assert.False(t, mirrored.Active)

	assert.ErrorIs(t, registry.CancelDuty(ctx, d.DutyID), duty.ErrDutyNotFound)
	assert.ErrorIs(t, registry.CancelDuty(ctx, ""), duty.ErrDutyNotFound)
}

func TestTaskRegistry_CancelDutyFailure(t *testing.T) {
	network := &fakeNetwork{cancelErr: errors.New("boom")}
	registry, _ := newRegistry(t, network)

	err := registry.CancelDuty(context.Background(), "task-1")
	var regErr *duty.RegistrationError
	assert.ErrorAs(t, err, &regErr)
}

func TestTaskRegistry_GetDutyStateRefreshesMirror(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next := last.Add(time.Hour)
	network := &fakeNetwork{}
	registry, mirror := newRegistry(t, network)
	ctx := context.Background()

	d, err := registry.CreateDuty(ctx, groupOne, "Family Circle")
	require.NoError(t, err)
	network.states = map[string]*duty.State{d.DutyID: {DutyID: d.DutyID, LastExecuted: &last, NextExecution: &next, Executions: 4}}

	state, err := registry.GetDutyState(ctx, d.DutyID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), state.Executions)

	mirrored, err := mirror.GetByDutyID(ctx, d.DutyID)
	require.NoError(t, err)
	require.NotNil(t, mirrored.LastExecuted)
	assert.True(t, last.Equal(*mirrored.LastExecuted))

	_, err = registry.GetDutyState(ctx, "missing")
	assert.ErrorIs(t, err, duty.ErrDutyNotFound)
}

func TestTaskRegistry_ReconcileAfterAmbiguousCreate(t *testing.T) {
	network := &fakeNetwork{createErrAfterRegister: context.DeadlineExceeded}
	registry, mirror := newRegistry(t, network)
	ctx := context.Background()

	_, err := registry.CreateDuty(ctx, groupOne, "Family Circle")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	d, err := registry.Reconcile(ctx, groupOne)
	require.NoError(t, err)
	assert.Equal(t, "task-1", d.DutyID)

	mirrored, err := mirror.GetByGroup(ctx, groupOne)
	require.NoError(t, err)
	assert.Equal(t, "task-1", mirrored.DutyID)

	_, err = registry.Reconcile(ctx, groupTwo)
	assert.ErrorIs(t, err, duty.ErrDutyNotFound)
}

func TestTaskRegistry_BalanceAndDeposit(t *testing.T) {
	network := &fakeNetwork{balance: decimal.RequireFromString("1.5")}
	registry, _ := newRegistry(t, network)
	ctx := context.Background()

	require.NoError(t, registry.Deposit(ctx, decimal.RequireFromString("0.25")))
	assert.ErrorIs(t, registry.Deposit(ctx, decimal.Zero), duty.ErrInvalidAmount)
	assert.ErrorIs(t, registry.Deposit(ctx, decimal.NewFromInt(-1)), duty.ErrInvalidAmount)

	balance, err := registry.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1.75")), "got %s", balance)
}

func TestTaskRegistry_DutyNameUsesProduct(t *testing.T) {
	log, _ := newTestLogger()
	registry := NewTaskRegistry(&fakeNetwork{}, database.NewMemoryDutyRepository(), "Ajo", 0, log)
	assert.Equal(t, "Ajo Payout - Market Women", registry.DutyName("Market Women"))
}

func TestTaskRegistry_RefreshStatesKeepsGoingOnFailure(t *testing.T) {
	next := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	network := &fakeNetwork{}
	registry, mirror := newRegistry(t, network)
	ctx := context.Background()

	first, err := registry.CreateDuty(ctx, groupOne, "Family Circle")
	require.NoError(t, err)
	second, err := registry.CreateDuty(ctx, groupTwo, "Market Women")
	require.NoError(t, err)
	// Only the second duty has state; the first one fails and is skipped.
	network.states = map[string]*duty.State{second.DutyID: {DutyID: second.DutyID, NextExecution: &next}}

	require.NoError(t, registry.RefreshStates(ctx))

	mirrored, err := mirror.GetByDutyID(ctx, second.DutyID)
	require.NoError(t, err)
	require.NotNil(t, mirrored.NextExecution)
	assert.True(t, next.Equal(*mirrored.NextExecution))

	mirrored, err = mirror.GetByDutyID(ctx, first.DutyID)
	require.NoError(t, err)
	assert.Nil(t, mirrored.NextExecution)
}
