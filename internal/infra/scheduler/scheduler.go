package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"susu_keeper/internal/domain/deadline"
	"susu_keeper/internal/infra/logger"
)

// DeadlineTicker is the deadline notifier's polling entry point.
type DeadlineTicker interface {
	Tick(ctx context.Context, now time.Time) ([]deadline.DeadlineNotification, error)
}

// DutyRefresher pulls advisory execution state for mirrored duties.
type DutyRefresher interface {
	RefreshStates(ctx context.Context) error
}

type KeeperScheduler struct {
	cronEngine            *cron.Cron
	ticker                DeadlineTicker
	refresher             DutyRefresher // nil disables the refresh job
	logger                *logrus.Entry
	now                   func() time.Time
	cronSpecDeadlineCheck string
	cronSpecDutyRefresh   string
	tickTimeout           time.Duration
}

func NewKeeperScheduler(
	ticker DeadlineTicker,
	refresher DutyRefresher,
	log *logrus.Entry,
	cronSpecDeadlineCheck string, // e.g., "* * * * *" (every minute)
	cronSpecDutyRefresh string, // e.g., "*/15 * * * *" (every 15 minutes)
) *KeeperScheduler {
	log = log.WithField("component", "scheduler")
	cronLog := logger.CronLogger{Entry: log}
	return &KeeperScheduler{
		// Ticks never overlap, so each group sees its ticks in order.
		cronEngine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		ticker:                ticker,
		refresher:             refresher,
		logger:                log,
		now:                   time.Now,
		cronSpecDeadlineCheck: cronSpecDeadlineCheck,
		cronSpecDutyRefresh:   cronSpecDutyRefresh,
		tickTimeout:           1 * time.Minute,
	}
}

func (s *KeeperScheduler) Start() error {
	s.logger.Info("Starting keeper scheduler...")

	// Job for deadline reminders
	if _, err := s.cronEngine.AddFunc(s.cronSpecDeadlineCheck, s.RunDeadlineCheck); err != nil {
		return fmt.Errorf("could not add deadline check cron job: %w", err)
	}

	// Job for refreshing duty state
	if s.refresher != nil {
		if _, err := s.cronEngine.AddFunc(s.cronSpecDutyRefresh, s.RunDutyRefresh); err != nil {
			return fmt.Errorf("could not add duty refresh cron job: %w", err)
		}
	}

	s.cronEngine.Start()
	s.logger.WithField("jobs", len(s.cronEngine.Entries())).Info("Keeper scheduler started with jobs.")
	return nil
}

// RunDeadlineCheck runs one deadline tick.
func (s *KeeperScheduler) RunDeadlineCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), s.tickTimeout)
	defer cancel()

	fired, err := s.ticker.Tick(ctx, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Error during deadline check")
		return
	}
	if len(fired) > 0 {
		s.logger.WithField("fired", len(fired)).Info("Deadline check delivered reminders")
	}
}

// RunDutyRefresh refreshes advisory duty state.
func (s *KeeperScheduler) RunDutyRefresh() {
	if s.refresher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute) // Longer timeout, one call per duty
	defer cancel()
	if err := s.refresher.RefreshStates(ctx); err != nil {
		s.logger.WithError(err).Error("Error during duty state refresh")
	}
}

func (s *KeeperScheduler) Stop() {
	s.logger.Info("Stopping keeper scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Keeper scheduler gracefully stopped.")
}
