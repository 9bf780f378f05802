// Package scheduler runs the periodic maintenance jobs: the midnight bulk
// counter reset, the morning expiry sweep and the recurring high-usage sweep.
// Jobs are stateless and safe to rerun; notifications are published to the
// queue and delivered out of band.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mirai-api/gateway/internal/config"
	"github.com/mirai-api/gateway/internal/logging"
	"github.com/mirai-api/gateway/internal/metrics"
	"github.com/mirai-api/gateway/internal/notify"
	"github.com/mirai-api/gateway/internal/quota"
	"github.com/mirai-api/gateway/pkg/models"
)

// Job names used in logs and metrics.
const (
	JobDailyReset     = "daily_reset"
	JobExpirySweep    = "expiry_sweep"
	JobHighUsageSweep = "high_usage_sweep"
)

// Store is the account store surface the jobs need
type Store interface {
	ResetAllDailyCounts(ctx context.Context) error
	AccountStats(ctx context.Context, now time.Time, warnDays int) (*models.AccountStats, error)
	FindAccountsExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Account, error)
	FindHighUsageAccounts(ctx context.Context, threshold float64) ([]*models.Account, error)
}

// Publisher hands rendered notifications to the delivery queue
type Publisher interface {
	PublishNotification(ctx context.Context, notification *models.Notification) error
}

// Scheduler triggers the periodic jobs. Every trigger spawns an independent
// run with its own timeout, so a hung run cannot block subsequent triggers.
type Scheduler struct {
	store       Store
	publisher   Publisher
	log         *logging.Logger
	cfg         config.SchedulerConfig
	adminChatID string
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler using the wall clock
func New(store Store, publisher Publisher, log *logging.Logger, cfg config.SchedulerConfig, adminChatID string) *Scheduler {
	return NewWithClock(store, publisher, log, cfg, adminChatID, time.Now)
}

// NewWithClock creates a scheduler with an injected clock for tests
func NewWithClock(store Store, publisher Publisher, log *logging.Logger, cfg config.SchedulerConfig, adminChatID string, now func() time.Time) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if cfg.HighUsageEvery <= 0 {
		cfg.HighUsageEvery = 6 * time.Hour
	}
	if cfg.ExpiryWarnDays <= 0 {
		cfg.ExpiryWarnDays = 3
	}

	return &Scheduler{
		store:       store,
		publisher:   publisher,
		log:         log,
		cfg:         cfg,
		adminChatID: adminChatID,
		now:         now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the trigger loops
func (s *Scheduler) Start() error {
	resetHour, resetMin, err := parseClock(s.cfg.DailyResetAt)
	if err != nil {
		return fmt.Errorf("invalid dailyResetAt: %w", err)
	}
	sweepHour, sweepMin, err := parseClock(s.cfg.ExpirySweepAt)
	if err != nil {
		return fmt.Errorf("invalid expirySweepAt: %w", err)
	}

	s.wg.Add(3)
	go s.runAt(resetHour, resetMin, JobDailyReset, s.dailyReset)
	go s.runAt(sweepHour, sweepMin, JobExpirySweep, s.expirySweep)
	go s.runEvery(s.cfg.HighUsageEvery, JobHighUsageSweep, s.highUsageSweep)

	s.log.Infof("Scheduler started (reset %s, expiry sweep %s, high usage every %s)",
		s.cfg.DailyResetAt, s.cfg.ExpirySweepAt, s.cfg.HighUsageEvery)
	return nil
}

// Stop cancels the trigger loops and waits for them to exit. In-flight job
// runs are cancelled through the shared context.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

// parseClock parses a "HH:MM" local time of day
func parseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}

	return hour, minute, nil
}

// nextAt returns the next occurrence of hour:minute after now, in now's location
func nextAt(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) runAt(hour, minute int, name string, job func(context.Context) error) {
	defer s.wg.Done()

	for {
		wait := nextAt(s.now(), hour, minute).Sub(s.now())
		timer := time.NewTimer(wait)

		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			go s.runJob(name, job)
		}
	}
}

func (s *Scheduler) runEvery(interval time.Duration, name string, job func(context.Context) error) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			go s.runJob(name, job)
		}
	}
}

// runJob executes one job run under its own timeout and records the outcome
func (s *Scheduler) runJob(name string, job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	defer cancel()

	start := s.now()
	err := job(ctx)
	duration := s.now().Sub(start)

	status := "ok"
	if err != nil {
		status = "failed"
	}
	metrics.JobRunsTotal.WithLabelValues(name, status).Inc()
	metrics.JobDuration.WithLabelValues(name).Observe(duration.Seconds())
	s.log.LogJobRun(name, duration, err)
}

// dailyReset bulk-zeroes every account counter, then publishes the operator
// digest. The request path already resets lazily on day rollover, so the bulk
// reset only converges stale rows faster.
func (s *Scheduler) dailyReset(ctx context.Context) error {
	if err := s.store.ResetAllDailyCounts(ctx); err != nil {
		return fmt.Errorf("bulk reset failed: %w", err)
	}

	if s.adminChatID == "" {
		return nil
	}

	stats, err := s.store.AccountStats(ctx, s.now(), s.cfg.ExpiryWarnDays)
	if err != nil {
		return fmt.Errorf("stats aggregation failed: %w", err)
	}

	s.publish(ctx, &models.Notification{
		Kind:   models.NotificationKindDailyDigest,
		ChatID: s.adminChatID,
		Text:   notify.DailyDigest(stats),
	})
	return nil
}

// expirySweep notifies accounts that expired today and accounts expiring
// within the warning window. Both windows are carved from a single day
// snapshot so an account lands in exactly one of them.
func (s *Scheduler) expirySweep(ctx context.Context) error {
	today := quota.Day(s.now())
	tomorrow := today.AddDate(0, 0, 1)
	horizon := today.AddDate(0, 0, s.cfg.ExpiryWarnDays)

	expired, err := s.store.FindAccountsExpiringBetween(ctx, today, tomorrow)
	if err != nil {
		return fmt.Errorf("expired account query failed: %w", err)
	}
	for _, account := range expired {
		s.publishTo(ctx, account, models.NotificationKindExpired, notify.ExpiredNotice(account))
	}

	expiring, err := s.store.FindAccountsExpiringBetween(ctx, tomorrow, horizon)
	if err != nil {
		return fmt.Errorf("expiring account query failed: %w", err)
	}
	for _, account := range expiring {
		// Calendar-day difference: an account expiring any time tomorrow is
		// "expiring in 1 day" regardless of the clock time.
		daysLeft := int(quota.Day(account.ExpiresAt).Sub(today) / (24 * time.Hour))
		s.publishTo(ctx, account, models.NotificationKindExpiring, notify.ExpiringNotice(account, daysLeft))
	}

	return nil
}

// highUsageSweep notifies accounts at or above the usage threshold
func (s *Scheduler) highUsageSweep(ctx context.Context) error {
	accounts, err := s.store.FindHighUsageAccounts(ctx, models.HighUsageThreshold)
	if err != nil {
		return fmt.Errorf("high usage query failed: %w", err)
	}

	for _, account := range accounts {
		s.publishTo(ctx, account, models.NotificationKindHighUsage, notify.HighUsageNotice(account))
	}
	return nil
}

// publishTo publishes one per-account notification. Accounts without a chat
// id are skipped; a publish failure is logged and the sweep continues.
func (s *Scheduler) publishTo(ctx context.Context, account *models.Account, kind, text string) {
	if account.TelegramID == "" {
		return
	}

	s.publish(ctx, &models.Notification{
		Kind:      kind,
		AccountID: account.ID,
		ChatID:    account.TelegramID,
		Text:      text,
	})
}

func (s *Scheduler) publish(ctx context.Context, notification *models.Notification) {
	notification.ID = uuid.New().String()
	notification.CreatedAt = s.now()

	if err := s.publisher.PublishNotification(ctx, notification); err != nil {
		s.log.WithAccountID(notification.AccountID).
			ErrorWithErr("Failed to publish notification", err)
		return
	}

	metrics.NotificationsPublishedTotal.WithLabelValues(notification.Kind).Inc()
}
