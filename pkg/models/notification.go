package models

import (
	"time"
)

// Notification kinds
const (
	NotificationKindExpired     = "expired"
	NotificationKindExpiring    = "expiring"
	NotificationKindHighUsage   = "high_usage"
	NotificationKindDailyDigest = "daily_digest"
)

// Notification is a rendered message queued for delivery to a Telegram chat.
// Delivery is best-effort: a notification that cannot be sent is logged and
// dropped, never retried.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	AccountID string    `json:"account_id,omitempty"` // empty for the operator digest
	ChatID    string    `json:"chat_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
