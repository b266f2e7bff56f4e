// internal/app/bootstrap_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"susu_keeper/internal/domain/duty"
	"susu_keeper/internal/domain/group"
)

const defaultBootstrapConcurrency = 4

// OutcomeStatus is the result of wiring one group.
type OutcomeStatus string

const (
	StatusCreated      OutcomeStatus = "created"
	StatusAlreadyWired OutcomeStatus = "already_wired"
	StatusInactive     OutcomeStatus = "inactive"
	StatusFailed       OutcomeStatus = "failed"
)

type GroupOutcome struct {
	Group       group.Group
	Status      OutcomeStatus
	DutyID      string
	ExecutorSet bool
	ExecutorTx  common.Hash
	Err         error
}

// Report summarises one bootstrap run.
type Report struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Groups     []GroupOutcome
	// Balance is nil when the automation balance could not be read.
	Balance *decimal.Decimal
}

// Count returns how many groups ended with the given status.
func (r Report) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Groups {
		if o.Status == status {
			n++
		}
	}
	return n
}

// BootstrapService wires automation up for every group: executor address on chain, then the duty.
type BootstrapService struct {
	contracts   group.ContractFactory
	registry    *TaskRegistry
	executor    common.Address
	concurrency int
	readTimeout time.Duration
	logger      *logrus.Entry

	resolveOnce sync.Once
	resolved    common.Address
	resolveErr  error
}

// NewBootstrapService uses the automation network's dedicated caller as executor when executor is zero.
func NewBootstrapService(contracts group.ContractFactory, registry *TaskRegistry, executor common.Address, concurrency int, readTimeout time.Duration, logger *logrus.Entry) *BootstrapService {
	if concurrency <= 0 {
		concurrency = defaultBootstrapConcurrency
	}
	if readTimeout <= 0 {
		readTimeout = defaultChainReadTimeout
	}
	return &BootstrapService{
		contracts:   contracts,
		registry:    registry,
		executor:    executor,
		concurrency: concurrency,
		readTimeout: readTimeout,
		logger:      logger.WithField("component", "bootstrap"),
	}
}

// Run processes the groups on a bounded worker pool. A failing group never stops the others.
func (s *BootstrapService) Run(ctx context.Context, groups []group.Group) Report {
	report := Report{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
		Groups:    make([]GroupOutcome, len(groups)),
	}
	log := s.logger.WithField("run_id", report.RunID.String())
	log.WithField("groups", len(groups)).Info("Bootstrap started")

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := s.concurrency
	if workers > len(groups) {
		workers = len(groups)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				report.Groups[idx] = s.wire(ctx, log, groups[idx])
			}
		}()
	}
	for i := range groups {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if balance, err := s.registry.Balance(ctx); err != nil {
		log.WithError(err).Warn("Failed to read automation balance")
	} else {
		report.Balance = &balance
	}
	report.FinishedAt = time.Now().UTC()

	log.WithFields(logrus.Fields{
		"created":       report.Count(StatusCreated),
		"already_wired": report.Count(StatusAlreadyWired),
		"inactive":      report.Count(StatusInactive),
		"failed":        report.Count(StatusFailed),
	}).Info("Bootstrap finished")
	return report
}

func (s *BootstrapService) wire(ctx context.Context, runLog *logrus.Entry, g group.Group) GroupOutcome {
	outcome := GroupOutcome{Group: g}
	log := runLog.WithFields(logrus.Fields{"group": g.Address.Hex(), "group_name": g.DisplayName()})
	fail := func(err error) GroupOutcome {
		outcome.Status = StatusFailed
		outcome.Err = err
		log.WithError(err).Error("Failed to wire group automation")
		return outcome
	}

	contract, err := s.contracts.Contract(g.Address)
	if err != nil {
		return fail(err)
	}

	var active bool
	err = s.read(ctx, func(ctx context.Context) (err error) {
		active, err = contract.GroupActive(ctx)
		return err
	})
	if err != nil {
		return fail(fmt.Errorf("read groupActive: %w", err))
	}
	if !active {
		outcome.Status = StatusInactive
		log.Info("Group is inactive, skipping automation setup")
		return outcome
	}

	var current common.Address
	err = s.read(ctx, func(ctx context.Context) (err error) {
		current, err = contract.AutomationExecutor(ctx)
		return err
	})
	if err != nil {
		return fail(fmt.Errorf("read automationExecutor: %w", err))
	}
	if current == (common.Address{}) {
		executor, err := s.executorAddress(ctx)
		if err != nil {
			return fail(err)
		}
		tx, err := contract.SetAutomationExecutor(ctx, executor)
		if err != nil {
			return fail(fmt.Errorf("set automation executor: %w", err))
		}
		outcome.ExecutorSet = true
		outcome.ExecutorTx = tx
		log.WithFields(logrus.Fields{"executor": executor.Hex(), "tx": tx.Hex()}).Info("Automation executor set")
	} else {
		log.WithField("executor", current.Hex()).Debug("Automation executor already set")
	}

	d, err := s.registry.CreateDuty(ctx, g.Address, g.DisplayName())
	switch {
	case err == nil:
		outcome.Status = StatusCreated
		outcome.DutyID = d.DutyID
		return outcome
	case errors.Is(err, duty.ErrDutyAlreadyExists):
		outcome.Status = StatusAlreadyWired
		if mirrored, mErr := s.registry.MirroredDuty(ctx, g.Address); mErr == nil {
			outcome.DutyID = mirrored.DutyID
		}
		log.Info("Group already wired")
		return outcome
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return s.reconcile(ctx, log, outcome, err)
	default:
		return fail(err)
	}
}

// reconcile settles an ambiguous create by asking the network what actually exists.
func (s *BootstrapService) reconcile(ctx context.Context, log *logrus.Entry, outcome GroupOutcome, cause error) GroupOutcome {
	log.WithError(cause).Warn("Duty creation outcome unknown, re-querying automation network")

	reconcileCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.registry.timeout)
	defer cancel()
	d, err := s.registry.Reconcile(reconcileCtx, outcome.Group.Address)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = fmt.Errorf("%w (reconcile: %v)", cause, err)
		log.WithError(outcome.Err).Error("Failed to wire group automation")
		return outcome
	}
	outcome.Status = StatusCreated
	outcome.DutyID = d.DutyID
	log.WithField("duty_id", d.DutyID).Info("Duty found on automation network after ambiguous create")
	return outcome
}

func (s *BootstrapService) executorAddress(ctx context.Context) (common.Address, error) {
	if s.executor != (common.Address{}) {
		return s.executor, nil
	}
	s.resolveOnce.Do(func() {
		s.resolved, s.resolveErr = s.registry.DedicatedCaller(ctx)
		if s.resolveErr == nil && s.resolved == (common.Address{}) {
			s.resolveErr = errors.New("automation network reported a zero dedicated caller")
		}
	})
	return s.resolved, s.resolveErr
}

func (s *BootstrapService) read(ctx context.Context, fn func(ctx context.Context) error) error {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()
	return fn(readCtx)
}
