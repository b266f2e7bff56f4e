package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrMalformedResponse is returned when a call decodes to unexpected types.
	ErrMalformedResponse = errors.New("malformed contract response")
	// ErrReadOnly is returned for writes on a contract bound without a signer.
	ErrReadOnly = errors.New("contract bound without a transaction signer")
	// ErrTxFailed is returned when a mined transaction reverted.
	ErrTxFailed = errors.New("transaction reverted")
)

// GroupContract binds one savings-group contract.
type GroupContract struct {
	address  common.Address
	contract *bind.BoundContract
	backend  bind.DeployBackend
	signer   *bind.TransactOpts
}

// NewGroupContract binds address. signer may be nil for a read-only binding.
func NewGroupContract(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, backend bind.DeployBackend, signer *bind.TransactOpts) *GroupContract {
	return &GroupContract{
		address:  address,
		contract: bind.NewBoundContract(address, GroupABI, caller, transactor, nil),
		backend:  backend,
		signer:   signer,
	}
}

func (g *GroupContract) Address() common.Address { return g.address }

func (g *GroupContract) call(ctx context.Context, method string) ([]interface{}, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

func (g *GroupContract) callUint(ctx context.Context, method string) (*big.Int, error) {
	out, err := g.call(ctx, method)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: %w", method, ErrMalformedResponse)
	}
	v, ok := out[0].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("%s: %w", method, ErrMalformedResponse)
	}
	return v, nil
}

func (g *GroupContract) GroupActive(ctx context.Context) (bool, error) {
	out, err := g.call(ctx, MethodGroupActive)
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("%s: %w", MethodGroupActive, ErrMalformedResponse)
	}
	active, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s: %w", MethodGroupActive, ErrMalformedResponse)
	}
	return active, nil
}

func (g *GroupContract) CurrentRound(ctx context.Context) (*big.Int, error) {
	return g.callUint(ctx, MethodCurrentRound)
}

func (g *GroupContract) RoundDeadline(ctx context.Context) (*big.Int, error) {
	return g.callUint(ctx, MethodRoundDeadline)
}

func (g *GroupContract) TimeUntilDeadline(ctx context.Context) (*big.Int, error) {
	return g.callUint(ctx, MethodTimeUntilDeadline)
}

// CanExecutePayout returns the decoded payload slice as is.
func (g *GroupContract) CanExecutePayout(ctx context.Context) (bool, []byte, error) {
	out, err := g.call(ctx, MethodCanExecutePayout)
	if err != nil {
		return false, nil, err
	}
	if len(out) != 2 {
		return false, nil, fmt.Errorf("%s: %w", MethodCanExecutePayout, ErrMalformedResponse)
	}
	canExec, ok := out[0].(bool)
	if !ok {
		return false, nil, fmt.Errorf("%s: %w", MethodCanExecutePayout, ErrMalformedResponse)
	}
	payload, ok := out[1].([]byte)
	if !ok {
		return false, nil, fmt.Errorf("%s: %w", MethodCanExecutePayout, ErrMalformedResponse)
	}
	return canExec, payload, nil
}

func (g *GroupContract) AutomationExecutor(ctx context.Context) (common.Address, error) {
	out, err := g.call(ctx, MethodAutomationExecutor)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("%s: %w", MethodAutomationExecutor, ErrMalformedResponse)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: %w", MethodAutomationExecutor, ErrMalformedResponse)
	}
	return addr, nil
}

// SetAutomationExecutor sends the write and blocks until it is mined or ctx ends.
func (g *GroupContract) SetAutomationExecutor(ctx context.Context, executor common.Address) (common.Hash, error) {
	if g.signer == nil {
		return common.Hash{}, ErrReadOnly
	}
	opts := *g.signer
	opts.Context = ctx

	tx, err := g.contract.Transact(&opts, MethodSetAutomationExecutor, executor)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", MethodSetAutomationExecutor, err)
	}

	receipt, err := bind.WaitMined(ctx, g.backend, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("%s %s: %w", MethodSetAutomationExecutor, tx.Hash().Hex(), ErrTxFailed)
	}
	return tx.Hash(), nil
}
