package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/mirai-api/gateway/pkg/models"
)

func TestExpiredNotice(t *testing.T) {
	account := &models.Account{Name: "Alice"}

	text := ExpiredNotice(account)
	assert.Contains(t, text, "Hello Alice")
	assert.Contains(t, text, "has expired")
	assert.True(t, strings.HasPrefix(text, "<b>"))
}

func TestExpiringNotice(t *testing.T) {
	account := &models.Account{Name: "Bob"}

	text := ExpiringNotice(account, 3)
	assert.Contains(t, text, "Hello Bob")
	assert.Contains(t, text, "expire in 3 days")

	text = ExpiringNotice(account, 1)
	assert.Contains(t, text, "expire in 1 day")
	assert.NotContains(t, text, "1 days")
}

func TestHighUsageNotice(t *testing.T) {
	account := &models.Account{Name: "Carol", DailyCount: 80, DailyLimit: 100}

	text := HighUsageNotice(account)
	assert.Contains(t, text, "Hello Carol")
	assert.Contains(t, text, "80/100")
	assert.Contains(t, text, "reset tomorrow")
}

func TestDailyDigest(t *testing.T) {
	stats := &models.AccountStats{
		Total:        12,
		Active:       9,
		Expired:      3,
		ExpiringSoon: 2,
		HighUsage:    1,
	}

	text := DailyDigest(stats)
	assert.Contains(t, text, "Total Users: 12")
	assert.Contains(t, text, "Active Users: 9")
	assert.Contains(t, text, "Expired Users: 3")
	assert.Contains(t, text, "Users Expiring Soon: 2")
	assert.Contains(t, text, "High Usage Users: 1")
}
