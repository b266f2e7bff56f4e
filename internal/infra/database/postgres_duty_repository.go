package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"susu_keeper/internal/domain/duty"
)

// ErrDuplicateDutyID is returned when another group already holds the duty id.
var ErrDuplicateDutyID = errors.New("scheduled duty with this duty id already exists")

const pqUniqueViolation = "23505"

type PostgresDutyRepository struct {
	db *sql.DB
}

func NewPostgresDutyRepository(db *sql.DB) *PostgresDutyRepository {
	return &PostgresDutyRepository{db: db}
}

const dutyColumns = `group_address, duty_id, name, exec_selector, resolver_selector, active, last_executed, next_execution, created_at, updated_at`

// Upsert stores d keyed by group address; a re-registered group replaces its previous duty.
func (r *PostgresDutyRepository) Upsert(ctx context.Context, d *duty.ScheduledDuty) error {
	query := `INSERT INTO scheduled_duties (group_address, duty_id, name, exec_selector, resolver_selector, active, last_executed, next_execution)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               ON CONFLICT (group_address) DO UPDATE
               SET duty_id = EXCLUDED.duty_id, name = EXCLUDED.name, exec_selector = EXCLUDED.exec_selector,
                   resolver_selector = EXCLUDED.resolver_selector, active = EXCLUDED.active,
                   last_executed = EXCLUDED.last_executed, next_execution = EXCLUDED.next_execution, updated_at = NOW()
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		addressKey(d.GroupAddress), d.DutyID, d.Name, d.ExecSelector.Hex(), d.ResolverSelector.Hex(),
		d.Active, nullTime(d.LastExecuted), nullTime(d.NextExecution),
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateDutyID
		}
		return fmt.Errorf("error upserting scheduled duty: %w", err)
	}
	return nil
}

func (r *PostgresDutyRepository) GetByGroup(ctx context.Context, group common.Address) (*duty.ScheduledDuty, error) {
	query := `SELECT ` + dutyColumns + ` FROM scheduled_duties WHERE group_address = $1`
	d, err := scanDuty(r.db.QueryRowContext(ctx, query, addressKey(group)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, duty.ErrNotInMirror
		}
		return nil, fmt.Errorf("error getting scheduled duty by group: %w", err)
	}
	return d, nil
}

func (r *PostgresDutyRepository) GetByDutyID(ctx context.Context, dutyID string) (*duty.ScheduledDuty, error) {
	query := `SELECT ` + dutyColumns + ` FROM scheduled_duties WHERE duty_id = $1`
	d, err := scanDuty(r.db.QueryRowContext(ctx, query, dutyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, duty.ErrNotInMirror
		}
		return nil, fmt.Errorf("error getting scheduled duty by id: %w", err)
	}
	return d, nil
}

func (r *PostgresDutyRepository) SetActive(ctx context.Context, dutyID string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_duties SET active = $1, updated_at = NOW() WHERE duty_id = $2`, active, dutyID)
	if err != nil {
		return fmt.Errorf("error updating scheduled duty active flag: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresDutyRepository) UpdateExecution(ctx context.Context, dutyID string, lastExecuted, nextExecution *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_duties SET last_executed = $1, next_execution = $2, updated_at = NOW() WHERE duty_id = $3`,
		nullTime(lastExecuted), nullTime(nextExecution), dutyID)
	if err != nil {
		return fmt.Errorf("error updating scheduled duty execution times: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresDutyRepository) ListActive(ctx context.Context) ([]*duty.ScheduledDuty, error) {
	query := `SELECT ` + dutyColumns + ` FROM scheduled_duties WHERE active = TRUE ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active scheduled duties: %w", err)
	}
	defer rows.Close()

	duties := make([]*duty.ScheduledDuty, 0)
	for rows.Next() {
		d, err := scanDuty(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning scheduled duty: %w", err)
		}
		duties = append(duties, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled duties: %w", err)
	}
	return duties, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDuty(row rowScanner) (*duty.ScheduledDuty, error) {
	var (
		d                    duty.ScheduledDuty
		group, exec, resolve string
		last, next           sql.NullTime
	)
	if err := row.Scan(&group, &d.DutyID, &d.Name, &exec, &resolve, &d.Active, &last, &next, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.GroupAddress = common.HexToAddress(group)
	d.ExecSelector = parseSelector(exec)
	d.ResolverSelector = parseSelector(resolve)
	if last.Valid {
		d.LastExecuted = &last.Time
	}
	if next.Valid {
		d.NextExecution = &next.Time
	}
	return &d, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return duty.ErrNotInMirror
	}
	return nil
}

// addressKey is the lower-case hex form used as the storage key for addresses.
func addressKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func parseSelector(s string) duty.Selector {
	var sel duty.Selector
	copy(sel[:], common.FromHex(s))
	return sel
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
