package notify

import (
	"fmt"

	"github.com/mirai-api/gateway/pkg/models"
)

// Message templates are pure functions of the account snapshot; the rendered
// text uses the small HTML subset Telegram accepts (bold, line breaks).

// ExpiredNotice renders the notice sent when an account's key has expired
func ExpiredNotice(account *models.Account) string {
	return fmt.Sprintf(
		"<b>⚠️ API Key Expiry Notice</b>\n\nHello %s,\n\nYour API key has expired. Please extend your subscription to continue using our services.\n\nThank you for using Mirai API!",
		account.Name)
}

// ExpiringNotice renders the warning sent when an account expires in daysLeft days
func ExpiringNotice(account *models.Account, daysLeft int) string {
	plural := "days"
	if daysLeft == 1 {
		plural = "day"
	}
	return fmt.Sprintf(
		"<b>⚠️ API Key Expiry Warning</b>\n\nHello %s,\n\nYour API key will expire in %d %s. Please extend your subscription to avoid service interruption.\n\nThank you for using Mirai API!",
		account.Name, daysLeft, plural)
}

// HighUsageNotice renders the notice sent when an account nears its daily limit
func HighUsageNotice(account *models.Account) string {
	return fmt.Sprintf(
		"<b>⚠️ API Request Limit Notice</b>\n\nHello %s,\n\nYou have reached %d/%d of your daily API request limit.\n\nYour limit will reset tomorrow.\n\nThank you for using Mirai API!",
		account.Name, account.DailyCount, account.DailyLimit)
}

// DailyDigest renders the operator summary produced by the daily reset job
func DailyDigest(stats *models.AccountStats) string {
	return fmt.Sprintf(
		"<b>📊 Mirai API Daily Summary</b>\n\n"+
			"Total Users: %d\n"+
			"Active Users: %d\n"+
			"Expired Users: %d\n"+
			"Users Expiring Soon: %d\n"+
			"High Usage Users: %d\n",
		stats.Total, stats.Active, stats.Expired, stats.ExpiringSoon, stats.HighUsage)
}
