// internal/app/deadline_notifier.go
package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"susu_keeper/internal/domain/deadline"
	"susu_keeper/internal/domain/group"
	"susu_keeper/internal/domain/payout"
)

// DeadlineNotifier turns round deadlines into tiered contribution reminders.
// Ticks for one group are processed one at a time and must carry a non-decreasing clock.
type DeadlineNotifier struct {
	groups      group.Source
	readers     payout.ReaderFactory
	records     deadline.Repository
	presenter   deadline.Presenter
	policy      deadline.Policy
	readTimeout time.Duration
	logger      *logrus.Entry

	permMu   sync.Mutex
	prompted bool

	clockMu   sync.Mutex
	lastTick  map[common.Address]time.Time
	groupLock map[common.Address]*sync.Mutex
}

func NewDeadlineNotifier(
	groups group.Source,
	readers payout.ReaderFactory,
	records deadline.Repository,
	presenter deadline.Presenter,
	policy deadline.Policy,
	readTimeout time.Duration,
	logger *logrus.Entry,
) *DeadlineNotifier {
	if policy == nil {
		policy = deadline.CrossingPolicy{}
	}
	if readTimeout <= 0 {
		readTimeout = defaultChainReadTimeout
	}
	return &DeadlineNotifier{
		groups:      groups,
		readers:     readers,
		records:     records,
		presenter:   presenter,
		policy:      policy,
		readTimeout: readTimeout,
		logger:      logger.WithField("component", "deadline_notifier"),
		lastTick:    make(map[common.Address]time.Time),
		groupLock:   make(map[common.Address]*sync.Mutex),
	}
}

// Evaluate decides whether a reminder fires for the round and delivers it at most once per tier.
// It returns the notification that fired, or nil when nothing fired.
func (n *DeadlineNotifier) Evaluate(ctx context.Context, g group.Group, round uint64, roundDeadline, now time.Time) (*deadline.DeadlineNotification, error) {
	remaining := roundDeadline.Sub(now)
	tier, ok := n.policy.Select(remaining)
	if !ok {
		return nil, nil
	}
	log := n.logger.WithFields(logrus.Fields{
		"group": g.Address.Hex(),
		"round": round,
		"tier":  string(tier),
	})

	record, err := n.records.Get(ctx, g.Address, round)
	if err != nil {
		return nil, fmt.Errorf("load delivery record: %w", err)
	}
	if suppressed(record, tier) {
		log.Debug("Tier already covered by an earlier delivery")
		return nil, nil
	}

	// Claiming the tier first keeps two racing evaluations from both showing it.
	added, err := n.records.MarkDelivered(ctx, g.Address, round, tier)
	if err != nil {
		return nil, fmt.Errorf("mark tier delivered: %w", err)
	}
	if !added {
		return nil, nil
	}

	notification := deadline.NewNotification(g.Address, g.DisplayName(), round, tier, remaining)
	if n.permission(ctx) != deadline.PermissionGranted {
		log.Info("Notification permission not granted, recording delivery without showing")
		return &notification, nil
	}
	if err := n.presenter.Show(ctx, notification); err != nil {
		if errors.Is(err, deadline.ErrPermissionDenied) {
			log.Info("Notification permission revoked, reminder not shown")
		} else {
			log.WithError(err).Warn("Failed to show deadline notification")
		}
		return &notification, nil
	}
	log.Info("Deadline notification shown")
	return &notification, nil
}

// suppressed keeps the tier state machine monotonic: a tier fires once, and nothing less urgent
// fires after it.
func suppressed(record *deadline.DeliveryRecord, tier deadline.Tier) bool {
	if record.Delivered(tier) {
		return true
	}
	if tier == deadline.TierOverdue {
		return false
	}
	return record.MostUrgent().Urgency() > tier.Urgency()
}

// permission asks the member once per session and never again after a refusal.
func (n *DeadlineNotifier) permission(ctx context.Context) deadline.Permission {
	n.permMu.Lock()
	defer n.permMu.Unlock()

	current := n.presenter.Permission()
	if current != deadline.PermissionDefault || n.prompted {
		return current
	}
	n.prompted = true
	granted, err := n.presenter.RequestPermission(ctx)
	if err != nil {
		n.logger.WithError(err).Warn("Notification permission request failed")
		return deadline.PermissionDefault
	}
	return granted
}

// Tick evaluates every watched group concurrently. Per-group failures are logged and do not affect
// the other groups.
func (n *DeadlineNotifier) Tick(ctx context.Context, now time.Time) ([]deadline.DeadlineNotification, error) {
	groups, err := n.groups.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	var (
		mu    sync.Mutex
		fired []deadline.DeadlineNotification
		wg    sync.WaitGroup
	)
	for _, g := range groups {
		wg.Add(1)
		go func(g group.Group) {
			defer wg.Done()
			notification, err := n.tickGroup(ctx, g, now)
			if err != nil {
				n.logger.WithError(err).WithField("group", g.Address.Hex()).Warn("Deadline check failed")
				return
			}
			if notification != nil {
				mu.Lock()
				fired = append(fired, *notification)
				mu.Unlock()
			}
		}(g)
	}
	wg.Wait()
	return fired, nil
}

func (n *DeadlineNotifier) tickGroup(ctx context.Context, g group.Group, now time.Time) (*deadline.DeadlineNotification, error) {
	lock := n.lockFor(g.Address)
	lock.Lock()
	defer lock.Unlock()

	if !n.advanceClock(g.Address, now) {
		n.logger.WithFields(logrus.Fields{
			"group": g.Address.Hex(),
			"tick":  now.Format(time.RFC3339),
		}).Warn("Skipping out-of-order tick")
		return nil, nil
	}

	reader, err := n.readers.Reader(g.Address)
	if err != nil {
		return nil, err
	}
	readCtx, cancel := context.WithTimeout(ctx, n.readTimeout)
	defer cancel()

	active, err := reader.GroupActive(readCtx)
	if err != nil {
		return nil, fmt.Errorf("read groupActive: %w", err)
	}
	if !active {
		return nil, nil
	}
	roundNum, err := reader.CurrentRound(readCtx)
	if err != nil {
		return nil, fmt.Errorf("read currentRound: %w", err)
	}
	deadlineUnix, err := reader.RoundDeadline(readCtx)
	if err != nil {
		return nil, fmt.Errorf("read roundDeadline: %w", err)
	}
	round, roundDeadline, err := toRoundAndDeadline(roundNum, deadlineUnix)
	if err != nil {
		return nil, err
	}
	return n.Evaluate(ctx, g, round, roundDeadline, now)
}

func toRoundAndDeadline(round, deadlineUnix *big.Int) (uint64, time.Time, error) {
	if round == nil || !round.IsUint64() {
		return 0, time.Time{}, fmt.Errorf("round number out of range: %v", round)
	}
	if deadlineUnix == nil || !deadlineUnix.IsInt64() {
		return 0, time.Time{}, fmt.Errorf("round deadline out of range: %v", deadlineUnix)
	}
	return round.Uint64(), time.Unix(deadlineUnix.Int64(), 0).UTC(), nil
}

// advanceClock records now as the group's latest tick unless it is older than the previous one.
func (n *DeadlineNotifier) advanceClock(addr common.Address, now time.Time) bool {
	n.clockMu.Lock()
	defer n.clockMu.Unlock()
	if last, ok := n.lastTick[addr]; ok && now.Before(last) {
		return false
	}
	n.lastTick[addr] = now
	return true
}

func (n *DeadlineNotifier) lockFor(addr common.Address) *sync.Mutex {
	n.clockMu.Lock()
	defer n.clockMu.Unlock()
	l, ok := n.groupLock[addr]
	if !ok {
		l = &sync.Mutex{}
		n.groupLock[addr] = l
	}
	return l
}
