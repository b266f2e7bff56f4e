// internal/app/payout_checker.go
package app

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"susu_keeper/internal/domain/payout"
)

const defaultChainReadTimeout = 10 * time.Second

// PayoutChecker decides whether a group's current round can be paid out.
// It only reads chain state, so any number of concurrent calls is safe; paying a round at most once is
// left to the contract, whose canExecutePayout turns false after a successful execute.
type PayoutChecker struct {
	readers     payout.ReaderFactory
	readTimeout time.Duration
	logger      *logrus.Entry
}

func NewPayoutChecker(readers payout.ReaderFactory, readTimeout time.Duration, logger *logrus.Entry) *PayoutChecker {
	if readTimeout <= 0 {
		readTimeout = defaultChainReadTimeout
	}
	return &PayoutChecker{
		readers:     readers,
		readTimeout: readTimeout,
		logger:      logger.WithField("component", "payout_checker"),
	}
}

// ParseGroupAddress validates a hex group address.
func ParseGroupAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !common.IsHexAddress(raw) {
		return common.Address{}, payout.ErrInvalidInput
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, payout.ErrInvalidInput
	}
	return addr, nil
}

// Check returns payout.ErrInvalidInput for a missing or malformed address and never fails otherwise:
// chain errors become a negative result carrying the error text.
func (c *PayoutChecker) Check(ctx context.Context, groupAddress string) (payout.CheckResult, error) {
	group, err := ParseGroupAddress(groupAddress)
	if err != nil {
		return payout.CheckResult{}, err
	}
	log := c.logger.WithField("group", group.Hex())

	result, err := c.evaluate(ctx, group)
	if err != nil {
		log.WithError(err).Warn("Payout check failed, reporting not executable")
		return payout.CheckResult{CanExec: false, Message: fmt.Sprintf("Error checking payout: %v", err)}, nil
	}
	log.WithField("can_exec", result.CanExec).Debug(result.Message)
	return result, nil
}

func (c *PayoutChecker) evaluate(ctx context.Context, group common.Address) (result payout.CheckResult, err error) {
	defer func() {
		// A broken reader must not take the resolver down with it.
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while reading chain state: %v", r)
		}
	}()

	reader, err := c.readers.Reader(group)
	if err != nil {
		return payout.CheckResult{}, err
	}

	var active bool
	if err := c.withTimeout(ctx, func(ctx context.Context) (err error) {
		active, err = reader.GroupActive(ctx)
		return err
	}); err != nil {
		return payout.CheckResult{}, err
	}
	if !active {
		return payout.CheckResult{CanExec: false, Message: fmt.Sprintf("%s is no longer active", group.Hex())}, nil
	}

	var (
		canExec bool
		payload []byte
	)
	if err := c.withTimeout(ctx, func(ctx context.Context) (err error) {
		canExec, payload, err = reader.CanExecutePayout(ctx)
		return err
	}); err != nil {
		return payout.CheckResult{}, err
	}

	var round *big.Int
	if err := c.withTimeout(ctx, func(ctx context.Context) (err error) {
		round, err = reader.CurrentRound(ctx)
		return err
	}); err != nil {
		return payout.CheckResult{}, err
	}

	if canExec {
		return payout.CheckResult{
			CanExec:     true,
			ExecPayload: payload,
			Message:     fmt.Sprintf("Executing payout for round %s of group %s", round, group.Hex()),
		}, nil
	}

	var remaining *big.Int
	if err := c.withTimeout(ctx, func(ctx context.Context) (err error) {
		remaining, err = reader.TimeUntilDeadline(ctx)
		return err
	}); err != nil {
		return payout.CheckResult{}, err
	}
	return payout.CheckResult{
		CanExec: false,
		Message: fmt.Sprintf("Waiting for round %s. Time until deadline: %ss", round, remaining),
	}, nil
}

func (c *PayoutChecker) withTimeout(ctx context.Context, read func(ctx context.Context) error) error {
	readCtx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()
	return read(readCtx)
}

// GroupCheck pairs an address with its check outcome.
type GroupCheck struct {
	Group  string
	Result payout.CheckResult
	Err    error
}

// CheckMany checks every group concurrently and returns the outcomes in input order.
func (c *PayoutChecker) CheckMany(ctx context.Context, groups []string) []GroupCheck {
	out := make([]GroupCheck, len(groups))
	var wg sync.WaitGroup
	for i, g := range groups {
		wg.Add(1)
		go func(i int, g string) {
			defer wg.Done()
			res, err := c.Check(ctx, g)
			out[i] = GroupCheck{Group: g, Result: res, Err: err}
		}(i, g)
	}
	wg.Wait()
	return out
}
