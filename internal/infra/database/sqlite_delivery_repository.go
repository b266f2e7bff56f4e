package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"susu_keeper/internal/domain/deadline"
)

// SQLiteDeliveryRepository is the client-local delivery store.
// Rows are "<namespace>-notification-<group>-<round>" keys holding a JSON map of tier to boolean.
type SQLiteDeliveryRepository struct {
	db        *sql.DB
	namespace string
}

func NewSQLiteDeliveryRepository(ctx context.Context, db *sql.DB, namespace string) (*SQLiteDeliveryRepository, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS notification_records (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification_records table: %w", err)
	}
	return &SQLiteDeliveryRepository{db: db, namespace: namespace}, nil
}

func (r *SQLiteDeliveryRepository) Get(ctx context.Context, group common.Address, round uint64) (*deadline.DeliveryRecord, error) {
	return r.load(ctx, r.db, group, round)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *SQLiteDeliveryRepository) load(ctx context.Context, q queryRower, group common.Address, round uint64) (*deadline.DeliveryRecord, error) {
	record := deadline.NewDeliveryRecord(group, round)

	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM notification_records WHERE key = ?`,
		deadline.RecordKey(r.namespace, group, round)).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record, nil
		}
		return nil, fmt.Errorf("error getting delivery record: %w", err)
	}

	tiers, err := deadline.DecodeTiers([]byte(value))
	if err != nil {
		return nil, err
	}
	record.Tiers = tiers
	return record, nil
}

func (r *SQLiteDeliveryRepository) MarkDelivered(ctx context.Context, group common.Address, round uint64, tier deadline.Tier) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin delivery transaction: %w", err)
	}
	defer tx.Rollback()

	record, err := r.load(ctx, tx, group, round)
	if err != nil {
		return false, err
	}
	if !record.Mark(tier) {
		return false, nil
	}

	value, err := deadline.EncodeTiers(record.Tiers)
	if err != nil {
		return false, fmt.Errorf("error encoding delivery record: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notification_records (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, deadline.RecordKey(r.namespace, group, round), string(value), time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("error storing delivery record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delivery record: %w", err)
	}
	return true, nil
}
