// internal/domain/payout/reader.go
package payout

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainReader is the read-only view of one savings-group contract.
type ChainReader interface {
	GroupActive(ctx context.Context) (bool, error)
	CurrentRound(ctx context.Context) (*big.Int, error)
	RoundDeadline(ctx context.Context) (*big.Int, error)
	TimeUntilDeadline(ctx context.Context) (*big.Int, error)
	// CanExecutePayout returns the contract's own verdict and the call data to execute with.
	CanExecutePayout(ctx context.Context) (bool, []byte, error)
}

// ReaderFactory binds a ChainReader to a group address.
type ReaderFactory interface {
	Reader(group common.Address) (ChainReader, error)
}
