package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mirai-api/gateway/internal/config"
	"github.com/mirai-api/gateway/internal/logging"
	"github.com/mirai-api/gateway/pkg/models"
)

type fakeStore struct {
	accounts   []*models.Account
	stats      *models.AccountStats
	resetCalls int
	statsCalls int
	failQuery  error
}

func (s *fakeStore) ResetAllDailyCounts(_ context.Context) error {
	s.resetCalls++
	return nil
}

func (s *fakeStore) AccountStats(_ context.Context, _ time.Time, _ int) (*models.AccountStats, error) {
	s.statsCalls++
	return s.stats, nil
}

func (s *fakeStore) FindAccountsExpiringBetween(_ context.Context, from, to time.Time) ([]*models.Account, error) {
	if s.failQuery != nil {
		return nil, s.failQuery
	}

	var out []*models.Account
	for _, a := range s.accounts {
		if !a.ExpiresAt.Before(from) && a.ExpiresAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) FindHighUsageAccounts(_ context.Context, threshold float64) ([]*models.Account, error) {
	if s.failQuery != nil {
		return nil, s.failQuery
	}

	var out []*models.Account
	for _, a := range s.accounts {
		if a.UsageRatio() >= threshold {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*models.Notification
	failChats map[string]error
}

func (p *fakePublisher) PublishNotification(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failChats[n.ChatID]; err != nil {
		return err
	}
	p.published = append(p.published, n)
	return nil
}

func (p *fakePublisher) byKind(kind string) []*models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*models.Notification
	for _, n := range p.published {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func newTestScheduler(t *testing.T, store *fakeStore, publisher *fakePublisher, adminChat string, now time.Time) *Scheduler {
	t.Helper()

	log, err := logging.NewDefaultLogger()
	require.NoError(t, err)

	cfg := config.SchedulerConfig{
		DailyResetAt:   "00:00",
		ExpirySweepAt:  "09:00",
		HighUsageEvery: 6 * time.Hour,
		JobTimeout:     time.Minute,
		ExpiryWarnDays: 3,
	}

	return NewWithClock(store, publisher, log, cfg, adminChat, func() time.Time { return now })
}

func expiringAccount(id, chat string, expiresAt time.Time) *models.Account {
	return &models.Account{
		ID:         id,
		Name:       "user-" + id,
		TelegramID: chat,
		ExpiresAt:  expiresAt,
		DailyLimit: 100,
	}
}

func TestExpirySweepPartitionsWindows(t *testing.T) {
	now := time.Date(2026, time.August, 28, 9, 0, 0, 0, time.Local)
	today := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.Local)

	store := &fakeStore{accounts: []*models.Account{
		// Expires later today: expiry-occurred notice.
		expiringAccount("a", "1001", today.Add(14*time.Hour)),
		// Expires tomorrow morning, after the sweep's clock time: still a
		// 1-day warning, the count is a calendar-day difference.
		expiringAccount("b", "1002", today.Add(34*time.Hour)),
		// Expires midday the day after tomorrow: 2-day warning.
		expiringAccount("c", "1003", today.Add(60*time.Hour)),
		// Beyond the warning window: untouched.
		expiringAccount("d", "1004", today.AddDate(0, 0, 10)),
		// Expired yesterday: already notified by a previous sweep.
		expiringAccount("e", "1005", today.Add(-2*time.Hour)),
	}}
	publisher := &fakePublisher{}

	s := newTestScheduler(t, store, publisher, "", now)
	require.NoError(t, s.expirySweep(context.Background()))

	expired := publisher.byKind(models.NotificationKindExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, "1001", expired[0].ChatID)
	assert.Equal(t, "a", expired[0].AccountID)
	assert.Contains(t, expired[0].Text, "has expired")

	expiring := publisher.byKind(models.NotificationKindExpiring)
	require.Len(t, expiring, 2)
	assert.Equal(t, "1002", expiring[0].ChatID)
	assert.Contains(t, expiring[0].Text, "expire in 1 day.")
	assert.Equal(t, "1003", expiring[1].ChatID)
	assert.Contains(t, expiring[1].Text, "expire in 2 days")
}

func TestExpirySweepSkipsAccountsWithoutChat(t *testing.T) {
	now := time.Date(2026, time.August, 28, 9, 0, 0, 0, time.Local)
	today := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.Local)

	store := &fakeStore{accounts: []*models.Account{
		expiringAccount("a", "", today.Add(10*time.Hour)),
	}}
	publisher := &fakePublisher{}

	s := newTestScheduler(t, store, publisher, "", now)
	require.NoError(t, s.expirySweep(context.Background()))
	assert.Empty(t, publisher.published)
}

func TestExpirySweepStoreErrorAbortsRun(t *testing.T) {
	now := time.Date(2026, time.August, 28, 9, 0, 0, 0, time.Local)
	store := &fakeStore{failQuery: errors.New("connection refused")}
	publisher := &fakePublisher{}

	s := newTestScheduler(t, store, publisher, "", now)
	err := s.expirySweep(context.Background())
	require.Error(t, err)
	assert.Empty(t, publisher.published)
}

func TestExpirySweepContinuesPastPublishFailures(t *testing.T) {
	now := time.Date(2026, time.August, 28, 9, 0, 0, 0, time.Local)
	today := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.Local)

	store := &fakeStore{accounts: []*models.Account{
		expiringAccount("a", "1001", today.Add(6*time.Hour)),
		expiringAccount("b", "1002", today.Add(7*time.Hour)),
		expiringAccount("c", "1003", today.Add(8*time.Hour)),
	}}
	publisher := &fakePublisher{failChats: map[string]error{
		"1002": errors.New("queue unavailable"),
	}}

	s := newTestScheduler(t, store, publisher, "", now)
	require.NoError(t, s.expirySweep(context.Background()))

	expired := publisher.byKind(models.NotificationKindExpired)
	require.Len(t, expired, 2)
	assert.Equal(t, "1001", expired[0].ChatID)
	assert.Equal(t, "1003", expired[1].ChatID)
}

func TestHighUsageSweepThresholdBoundary(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.Local)

	atLimit := expiringAccount("a", "1001", now.AddDate(0, 0, 30))
	atLimit.DailyCount = 80
	below := expiringAccount("b", "1002", now.AddDate(0, 0, 30))
	below.DailyCount = 79
	over := expiringAccount("c", "1003", now.AddDate(0, 0, 30))
	over.DailyCount = 95

	store := &fakeStore{accounts: []*models.Account{atLimit, below, over}}
	publisher := &fakePublisher{}

	s := newTestScheduler(t, store, publisher, "", now)
	require.NoError(t, s.highUsageSweep(context.Background()))

	notices := publisher.byKind(models.NotificationKindHighUsage)
	require.Len(t, notices, 2)
	assert.Equal(t, "1001", notices[0].ChatID)
	assert.Contains(t, notices[0].Text, "80/100")
	assert.Equal(t, "1003", notices[1].ChatID)
}

func TestDailyResetPublishesDigest(t *testing.T) {
	now := time.Date(2026, time.August, 29, 0, 0, 0, 0, time.Local)

	store := &fakeStore{stats: &models.AccountStats{Total: 5, Active: 4, Expired: 1}}
	publisher := &fakePublisher{}

	s := newTestScheduler(t, store, publisher, "999", now)
	require.NoError(t, s.dailyReset(context.Background()))

	assert.Equal(t, 1, store.resetCalls)

	digests := publisher.byKind(models.NotificationKindDailyDigest)
	require.Len(t, digests, 1)
	assert.Equal(t, "999", digests[0].ChatID)
	assert.Empty(t, digests[0].AccountID)
	assert.Contains(t, digests[0].Text, "Total Users: 5")
}

func TestDailyResetWithoutAdminChatSkipsDigest(t *testing.T) {
	now := time.Date(2026, time.August, 29, 0, 0, 0, 0, time.Local)

	store := &fakeStore{}
	publisher := &fakePublisher{}

	s := newTestScheduler(t, store, publisher, "", now)
	require.NoError(t, s.dailyReset(context.Background()))

	assert.Equal(t, 1, store.resetCalls)
	assert.Equal(t, 0, store.statsCalls)
	assert.Empty(t, publisher.published)
}

func TestParseClock(t *testing.T) {
	hour, minute, err := parseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, hour)
	assert.Equal(t, 30, minute)

	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd"} {
		_, _, err := parseClock(bad)
		assert.Error(t, err, "value %q", bad)
	}
}

func TestNextAt(t *testing.T) {
	now := time.Date(2026, time.August, 28, 10, 15, 0, 0, time.Local)

	// Later today.
	next := nextAt(now, 23, 0)
	assert.Equal(t, time.Date(2026, time.August, 28, 23, 0, 0, 0, time.Local), next)

	// Already passed: tomorrow.
	next = nextAt(now, 9, 0)
	assert.Equal(t, time.Date(2026, time.August, 29, 9, 0, 0, 0, time.Local), next)

	// Exactly now counts as passed.
	next = nextAt(now, 10, 15)
	assert.Equal(t, now.AddDate(0, 0, 1), next)
}
