package models

import (
	"time"
)

// Account represents a registered API principal
type Account struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email" db:"email"`
	TelegramID     string    `json:"telegramId" db:"telegram_id"`
	APIKey         string    `json:"-" db:"api_key"`
	ExpiresAt      time.Time `json:"expiryDate" db:"expires_at"`
	DailyLimit     int       `json:"maxRequestsPerDay" db:"daily_limit"`
	DailyCount     int       `json:"dailyRequests" db:"daily_count"`
	LastRequestDay time.Time `json:"lastRequestDate" db:"last_request_day"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// Expired reports whether the account is past its expiry at the given instant.
func (a *Account) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// UsageRatio returns daily_count/daily_limit. DailyLimit is always positive
// for persisted accounts.
func (a *Account) UsageRatio() float64 {
	return float64(a.DailyCount) / float64(a.DailyLimit)
}

// HighUsageThreshold is the usage ratio at which an account is flagged
// as approaching its daily limit (inclusive).
const HighUsageThreshold = 0.8

// DefaultDailyLimit applies when registration omits maxRequestsPerDay.
const DefaultDailyLimit = 100

// RegistrationValidityDays is how long a freshly registered key is valid.
const RegistrationValidityDays = 30

// AccountStats is the aggregate view sent in the operator digest and
// served by the admin stats endpoint.
type AccountStats struct {
	Total        int `json:"totalUsers"`
	Active       int `json:"activeUsers"`
	Expired      int `json:"expiredUsers"`
	ExpiringSoon int `json:"nearExpiryUsers"` // expiring within 3 days
	HighUsage    int `json:"highUsageUsers"`
}

// ProfileUpdate carries the optional fields of a profile mutation.
// Nil means "leave unchanged".
type ProfileUpdate struct {
	Name       *string
	Email      *string
	TelegramID *string
}
