package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"susu_keeper/internal/domain/deadline"
	"susu_keeper/internal/domain/duty"
)

// MemoryDeliveryRepository keeps delivery records in process memory.
type MemoryDeliveryRepository struct {
	mu        sync.Mutex
	namespace string
	records   map[string]map[deadline.Tier]bool
}

func NewMemoryDeliveryRepository(namespace string) *MemoryDeliveryRepository {
	return &MemoryDeliveryRepository{namespace: namespace, records: make(map[string]map[deadline.Tier]bool)}
}

func (r *MemoryDeliveryRepository) Get(_ context.Context, group common.Address, round uint64) (*deadline.DeliveryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := deadline.NewDeliveryRecord(group, round)
	for t, ok := range r.records[deadline.RecordKey(r.namespace, group, round)] {
		record.Tiers[t] = ok
	}
	return record, nil
}

func (r *MemoryDeliveryRepository) MarkDelivered(_ context.Context, group common.Address, round uint64, tier deadline.Tier) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := deadline.RecordKey(r.namespace, group, round)
	tiers, ok := r.records[key]
	if !ok {
		tiers = make(map[deadline.Tier]bool)
		r.records[key] = tiers
	}
	if tiers[tier] {
		return false, nil
	}
	tiers[tier] = true
	return true, nil
}

// MemoryDutyRepository is the duty mirror used when no database is configured.
type MemoryDutyRepository struct {
	mu     sync.Mutex
	duties map[common.Address]duty.ScheduledDuty
}

func NewMemoryDutyRepository() *MemoryDutyRepository {
	return &MemoryDutyRepository{duties: make(map[common.Address]duty.ScheduledDuty)}
}

func (r *MemoryDutyRepository) Upsert(_ context.Context, d *duty.ScheduledDuty) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for addr, existing := range r.duties {
		if existing.DutyID == d.DutyID && addr != d.GroupAddress {
			return ErrDuplicateDutyID
		}
	}
	now := time.Now()
	if existing, ok := r.duties[d.GroupAddress]; ok {
		d.CreatedAt = existing.CreatedAt
	} else {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	r.duties[d.GroupAddress] = *d
	return nil
}

func (r *MemoryDutyRepository) GetByGroup(_ context.Context, group common.Address) (*duty.ScheduledDuty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.duties[group]
	if !ok {
		return nil, duty.ErrNotInMirror
	}
	return &d, nil
}

func (r *MemoryDutyRepository) GetByDutyID(_ context.Context, dutyID string) (*duty.ScheduledDuty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.duties {
		if d.DutyID == dutyID {
			found := d
			return &found, nil
		}
	}
	return nil, duty.ErrNotInMirror
}

func (r *MemoryDutyRepository) SetActive(_ context.Context, dutyID string, active bool) error {
	return r.update(dutyID, func(d *duty.ScheduledDuty) { d.Active = active })
}

func (r *MemoryDutyRepository) UpdateExecution(_ context.Context, dutyID string, lastExecuted, nextExecution *time.Time) error {
	return r.update(dutyID, func(d *duty.ScheduledDuty) {
		d.LastExecuted = lastExecuted
		d.NextExecution = nextExecution
	})
}

func (r *MemoryDutyRepository) update(dutyID string, fn func(d *duty.ScheduledDuty)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for addr, d := range r.duties {
		if d.DutyID == dutyID {
			fn(&d)
			d.UpdatedAt = time.Now()
			r.duties[addr] = d
			return nil
		}
	}
	return duty.ErrNotInMirror
}

func (r *MemoryDutyRepository) ListActive(_ context.Context) ([]*duty.ScheduledDuty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	duties := make([]*duty.ScheduledDuty, 0, len(r.duties))
	for _, d := range r.duties {
		if d.Active {
			found := d
			duties = append(duties, &found)
		}
	}
	sort.Slice(duties, func(i, j int) bool { return duties[i].CreatedAt.Before(duties[j].CreatedAt) })
	return duties, nil
}
