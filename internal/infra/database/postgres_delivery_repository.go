package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"susu_keeper/internal/domain/deadline"
)

// PostgresDeliveryRepository keeps delivery records server-side so several devices share one dedup state.
type PostgresDeliveryRepository struct {
	db *sql.DB
}

func NewPostgresDeliveryRepository(db *sql.DB) *PostgresDeliveryRepository {
	return &PostgresDeliveryRepository{db: db}
}

func (r *PostgresDeliveryRepository) Get(ctx context.Context, group common.Address, round uint64) (*deadline.DeliveryRecord, error) {
	query := `SELECT tiers FROM notification_deliveries WHERE group_address = $1 AND round_number = $2`
	var tiers []string
	record := deadline.NewDeliveryRecord(group, round)

	err := r.db.QueryRowContext(ctx, query, addressKey(group), int64(round)).Scan(pq.Array(&tiers))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record, nil
		}
		return nil, fmt.Errorf("error getting delivery record: %w", err)
	}
	for _, name := range tiers {
		if t, err := deadline.ParseTier(name); err == nil {
			record.Tiers[t] = true
		}
	}
	return record, nil
}

// MarkDelivered appends tier in one statement; no row comes back when it was already present.
func (r *PostgresDeliveryRepository) MarkDelivered(ctx context.Context, group common.Address, round uint64, tier deadline.Tier) (bool, error) {
	query := `INSERT INTO notification_deliveries (group_address, round_number, tiers)
               VALUES ($1, $2, ARRAY[$3::text])
               ON CONFLICT (group_address, round_number) DO UPDATE
               SET tiers = array_append(notification_deliveries.tiers, $3::text), updated_at = NOW()
               WHERE NOT ($3::text = ANY(notification_deliveries.tiers))
               RETURNING round_number`
	var stored int64
	err := r.db.QueryRowContext(ctx, query, addressKey(group), int64(round), string(tier)).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error marking tier %s delivered: %w", tier, err)
	}
	return true, nil
}
