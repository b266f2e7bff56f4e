// internal/domain/deadline/repository.go
package deadline

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Repository persists delivery records. MarkDelivered is an atomic read-modify-write of one record.
type Repository interface {
	// Get returns an empty record when nothing was delivered for the round yet.
	Get(ctx context.Context, group common.Address, round uint64) (*DeliveryRecord, error)
	// MarkDelivered adds tier to the record and reports whether it was newly added.
	MarkDelivered(ctx context.Context, group common.Address, round uint64, tier Tier) (bool, error)
}
