package group

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"susu_keeper/internal/domain/payout"
)

// Group is a savings group known to this service.
type Group struct {
	Address common.Address
	Name    string
}

// DisplayName falls back to the address when the group has no configured name.
func (g Group) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.Address.Hex()
}

// Source enumerates the groups reported by the group registry.
type Source interface {
	ListGroups(ctx context.Context) ([]Group, error)
}

// Contract is the read/write surface the bootstrap needs on one group contract.
type Contract interface {
	payout.ChainReader
	AutomationExecutor(ctx context.Context) (common.Address, error)
	// SetAutomationExecutor submits the write and waits until it is mined.
	SetAutomationExecutor(ctx context.Context, executor common.Address) (txHash common.Hash, err error)
}

// ContractFactory binds a Contract to a group address.
type ContractFactory interface {
	Contract(address common.Address) (Contract, error)
}
