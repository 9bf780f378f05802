// Package quota implements the API-key authentication and daily-quota gate
// executed in front of every protected endpoint.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mirai-api/gateway/internal/database"
	"github.com/mirai-api/gateway/pkg/models"
)

// Authentication failures surfaced to the HTTP layer.
var (
	ErrMissingKey    = errors.New("API key is required")
	ErrInvalidKey    = errors.New("invalid API key")
	ErrExpired       = errors.New("API key has expired")
	ErrLimitExceeded = errors.New("daily request limit exceeded")
)

// Store is the account store surface the guard needs. The production
// implementation is database.Repository; tests use an in-memory fake that
// serializes ConsumeDailyQuota with a mutex.
type Store interface {
	GetAccountByAPIKey(ctx context.Context, apiKey string) (*models.Account, error)
	// ConsumeDailyQuota claims one slot for the given calendar day, resetting
	// the counter when the stored day is stale. It must be atomic per
	// account and return database.ErrLimitExceeded without incrementing when
	// the same-day counter has reached the limit.
	ConsumeDailyQuota(ctx context.Context, id string, day time.Time) (*models.Account, error)
}

// Guard authenticates requests by API key and meters daily usage
type Guard struct {
	store Store
	now   func() time.Time
}

// NewGuard creates a guard using the wall clock
func NewGuard(store Store) *Guard {
	return &Guard{store: store, now: time.Now}
}

// NewGuardWithClock creates a guard with an injected clock for tests
func NewGuardWithClock(store Store, now func() time.Time) *Guard {
	return &Guard{store: store, now: now}
}

// Day truncates an instant to its server-local calendar day
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Authenticate validates the API key, rejects expired accounts, and claims
// one slot of the account's daily quota. On success the returned account
// reflects the incremented counter. Every accepted request mutates the
// persisted counter; rejected requests leave it unchanged.
func (g *Guard) Authenticate(ctx context.Context, apiKey string) (*models.Account, error) {
	if apiKey == "" {
		return nil, ErrMissingKey
	}

	account, err := g.store.GetAccountByAPIKey(ctx, apiKey)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}

	now := g.now()
	if account.Expired(now) {
		return nil, ErrExpired
	}

	account, err = g.store.ConsumeDailyQuota(ctx, account.ID, Day(now))
	if errors.Is(err, database.ErrLimitExceeded) {
		return nil, ErrLimitExceeded
	}
	if errors.Is(err, database.ErrNotFound) {
		// Account deleted between lookup and consume.
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume quota: %w", err)
	}

	return account, nil
}
