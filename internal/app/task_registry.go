// internal/app/task_registry.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"susu_keeper/internal/domain/duty"
	"susu_keeper/internal/infra/chain"
)

const (
	defaultProductName       = "Susu"
	defaultAutomationTimeout = 30 * time.Second
)

// TaskRegistry keeps the scheduled duties on the automation network and mirrors them locally.
// It never retries; callers own the retry policy.
type TaskRegistry struct {
	network duty.Network
	mirror  duty.Repository
	product string
	timeout time.Duration
	now     func() time.Time
	logger  *logrus.Entry
}

func NewTaskRegistry(network duty.Network, mirror duty.Repository, product string, timeout time.Duration, logger *logrus.Entry) *TaskRegistry {
	if product == "" {
		product = defaultProductName
	}
	if timeout <= 0 {
		timeout = defaultAutomationTimeout
	}
	return &TaskRegistry{
		network: network,
		mirror:  mirror,
		product: product,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.WithField("component", "task_registry"),
	}
}

// DutyName follows the "<product> Payout - <group>" naming convention.
func (r *TaskRegistry) DutyName(groupName string) string {
	return fmt.Sprintf("%s Payout - %s", r.product, groupName)
}

// CreateDuty registers the payout duty of a group. A group that already has an active duty yields
// duty.ErrDutyAlreadyExists and no second registration.
func (r *TaskRegistry) CreateDuty(ctx context.Context, groupAddress common.Address, groupName string) (*duty.ScheduledDuty, error) {
	log := r.logger.WithField("group", groupAddress.Hex())

	exists, err := r.HasActiveDuty(ctx, groupAddress)
	if err != nil {
		return nil, &duty.RegistrationError{Op: "createDuty", Group: groupAddress.Hex(), Err: err}
	}
	if exists {
		log.Info("Group already has an active duty, skipping registration")
		return nil, duty.ErrDutyAlreadyExists
	}

	name := r.DutyName(groupName)
	req := duty.CreateTaskRequest{
		ExecAddress:     groupAddress,
		ExecSelector:    chain.ExecSelector,
		DedicatedCaller: true,
		Name:            name,
		ResolverAddress: groupAddress,
		ResolverData:    chain.ResolverCallData(),
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	dutyID, err := r.network.CreateTask(callCtx, req)
	if err != nil {
		if errors.Is(err, duty.ErrTaskExists) {
			log.Info("Automation network reports the duty as already registered")
			return nil, duty.ErrDutyAlreadyExists
		}
		return nil, &duty.RegistrationError{Op: "createDuty", Group: groupAddress.Hex(), Err: err}
	}

	now := r.now().UTC()
	d := &duty.ScheduledDuty{
		GroupAddress:     groupAddress,
		DutyID:           dutyID,
		Name:             name,
		ExecSelector:     chain.ExecSelector,
		ResolverSelector: chain.ResolverSelector,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.mirror.Upsert(ctx, d); err != nil {
		// The duty exists on the network; a later Reconcile repairs the mirror.
		log.WithError(err).WithField("duty_id", dutyID).Error("Failed to mirror created duty")
	}
	log.WithField("duty_id", dutyID).Info("Scheduled duty created")
	return d, nil
}

// CancelDuty deregisters a duty and marks its mirror row inactive.
func (r *TaskRegistry) CancelDuty(ctx context.Context, dutyID string) error {
	if strings.TrimSpace(dutyID) == "" {
		return duty.ErrDutyNotFound
	}
	log := r.logger.WithField("duty_id", dutyID)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.network.CancelTask(callCtx, dutyID); err != nil {
		if errors.Is(err, duty.ErrTaskNotFound) {
			return duty.ErrDutyNotFound
		}
		return &duty.RegistrationError{Op: "cancelDuty", Err: err}
	}

	if err := r.mirror.SetActive(ctx, dutyID, false); err != nil && !errors.Is(err, duty.ErrNotInMirror) {
		log.WithError(err).Error("Failed to deactivate mirrored duty")
	}
	log.Info("Scheduled duty cancelled")
	return nil
}

// ListDuties returns the network's active duties whose exec address is the group.
func (r *TaskRegistry) ListDuties(ctx context.Context, groupAddress common.Address) ([]duty.Task, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	tasks, err := r.network.GetActiveTasks(callCtx)
	if err != nil {
		return nil, &duty.QueryError{Op: "listDuties", Err: err}
	}

	var matched []duty.Task
	for _, t := range tasks {
		if strings.EqualFold(strings.TrimSpace(t.ExecAddress), groupAddress.Hex()) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// HasActiveDuty reports whether ListDuties holds at least one active duty.
func (r *TaskRegistry) HasActiveDuty(ctx context.Context, groupAddress common.Address) (bool, error) {
	tasks, err := r.ListDuties(ctx, groupAddress)
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if t.Active {
			return true, nil
		}
	}
	return false, nil
}

// GetDutyState returns the advisory execution metadata of a duty and refreshes the mirror timestamps.
func (r *TaskRegistry) GetDutyState(ctx context.Context, dutyID string) (*duty.State, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	state, err := r.network.GetTaskState(callCtx, dutyID)
	if err != nil {
		if errors.Is(err, duty.ErrTaskNotFound) {
			return nil, duty.ErrDutyNotFound
		}
		return nil, &duty.QueryError{Op: "getDutyState", Err: err}
	}

	if err := r.mirror.UpdateExecution(ctx, dutyID, state.LastExecuted, state.NextExecution); err != nil && !errors.Is(err, duty.ErrNotInMirror) {
		r.logger.WithError(err).WithField("duty_id", dutyID).Warn("Failed to refresh mirrored duty state")
	}
	return state, nil
}

// RefreshStates pulls the state of every mirrored active duty. Failures are logged per duty.
func (r *TaskRegistry) RefreshStates(ctx context.Context) error {
	duties, err := r.mirror.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, d := range duties {
		if _, err := r.GetDutyState(ctx, d.DutyID); err != nil {
			r.logger.WithError(err).WithField("duty_id", d.DutyID).Warn("Failed to refresh duty state")
		}
	}
	return nil
}

// Reconcile re-queries the network after an ambiguous create and brings the mirror in line.
// It returns the active duty when one exists.
func (r *TaskRegistry) Reconcile(ctx context.Context, groupAddress common.Address) (*duty.ScheduledDuty, error) {
	tasks, err := r.ListDuties(ctx, groupAddress)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if !t.Active {
			continue
		}
		now := r.now().UTC()
		d := &duty.ScheduledDuty{
			GroupAddress:     groupAddress,
			DutyID:           t.ID,
			Name:             t.Name,
			ExecSelector:     chain.ExecSelector,
			ResolverSelector: chain.ResolverSelector,
			Active:           true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if existing, err := r.mirror.GetByGroup(ctx, groupAddress); err == nil && existing.DutyID == t.ID {
			d.CreatedAt = existing.CreatedAt
			d.LastExecuted = existing.LastExecuted
			d.NextExecution = existing.NextExecution
		}
		if err := r.mirror.Upsert(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, duty.ErrDutyNotFound
}

// MirroredDuty returns the locally known duty of a group.
func (r *TaskRegistry) MirroredDuty(ctx context.Context, groupAddress common.Address) (*duty.ScheduledDuty, error) {
	return r.mirror.GetByGroup(ctx, groupAddress)
}

// ActiveDuties lists every active duty known to the network.
func (r *TaskRegistry) ActiveDuties(ctx context.Context) ([]duty.Task, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	tasks, err := r.network.GetActiveTasks(callCtx)
	if err != nil {
		return nil, &duty.QueryError{Op: "getActiveTasks", Err: err}
	}
	return tasks, nil
}

func (r *TaskRegistry) Balance(ctx context.Context) (decimal.Decimal, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	balance, err := r.network.GetBalance(callCtx)
	if err != nil {
		return decimal.Zero, &duty.QueryError{Op: "getBalance", Err: err}
	}
	return balance, nil
}

func (r *TaskRegistry) Deposit(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return duty.ErrInvalidAmount
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.network.DepositFunds(callCtx, amount); err != nil {
		return &duty.RegistrationError{Op: "depositFunds", Err: err}
	}
	r.logger.WithField("amount", amount.String()).Info("Deposited automation funds")
	return nil
}

// DedicatedCaller is the address the network executes duties from.
func (r *TaskRegistry) DedicatedCaller(ctx context.Context) (common.Address, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	addr, err := r.network.DedicatedCaller(callCtx)
	if err != nil {
		return common.Address{}, &duty.QueryError{Op: "dedicatedCaller", Err: err}
	}
	return addr, nil
}
