package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mirai-api/gateway/pkg/models"
)

// Sentinel errors shared by every account store implementation.
var (
	ErrNotFound      = errors.New("account not found")
	ErrDuplicate     = errors.New("account with this email or Telegram ID already exists")
	ErrLimitExceeded = errors.New("daily request limit exceeded")
)

const accountColumns = `id, name, email, telegram_id, api_key, expires_at,
	daily_limit, daily_count, last_request_day, created_at`

// Repository provides account store operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks the underlying connection
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.TelegramID, &a.APIKey, &a.ExpiresAt,
		&a.DailyLimit, &a.DailyCount, &a.LastRequestDay, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateAccount inserts a new account. Unique violations on email,
// telegram_id or api_key surface as ErrDuplicate.
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	query := `
		INSERT INTO accounts (id, name, email, telegram_id, api_key, expires_at, daily_limit, daily_count, last_request_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, CURRENT_DATE)
		RETURNING daily_count, last_request_day, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		account.ID, account.Name, account.Email, account.TelegramID,
		account.APIKey, account.ExpiresAt, account.DailyLimit,
	).Scan(&account.DailyCount, &account.LastRequestDay, &account.CreatedAt)

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetAccountByAPIKey retrieves an account by its API key
func (r *Repository) GetAccountByAPIKey(ctx context.Context, apiKey string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE api_key = $1`, accountColumns)

	account, err := scanAccount(r.db.Pool.QueryRow(ctx, query, apiKey))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// GetAccountByTelegramID retrieves an account by its Telegram chat id
func (r *Repository) GetAccountByTelegramID(ctx context.Context, telegramID string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE telegram_id = $1`, accountColumns)

	account, err := scanAccount(r.db.Pool.QueryRow(ctx, query, telegramID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// ListAccounts retrieves all accounts ordered by creation time
func (r *Repository) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts ORDER BY created_at`, accountColumns)

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// CountAccounts returns the total number of registered accounts
func (r *Repository) CountAccounts(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// UpdateAccountProfile mutates only the supplied fields of an account.
// Unique violations surface as ErrDuplicate.
func (r *Repository) UpdateAccountProfile(ctx context.Context, id string, update models.ProfileUpdate) error {
	query := `
		UPDATE accounts
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    telegram_id = COALESCE($4, telegram_id)
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, update.Name, update.Email, update.TelegramID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ExtendAccountExpiry moves the expiry forward by the given number of days
// and returns the new expiry. Days must be positive; expiry is never
// shortened through this path.
func (r *Repository) ExtendAccountExpiry(ctx context.Context, id string, days int) (time.Time, error) {
	query := `
		UPDATE accounts
		SET expires_at = expires_at + make_interval(days => $2)
		WHERE id = $1
		RETURNING expires_at
	`

	var expiresAt time.Time
	err := r.db.Pool.QueryRow(ctx, query, id, days).Scan(&expiresAt)
	if err == pgx.ErrNoRows {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to extend expiry: %w", err)
	}

	return expiresAt, nil
}

// UpdateAccountDailyLimit replaces the daily request limit
func (r *Repository) UpdateAccountDailyLimit(ctx context.Context, id string, limit int) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET daily_limit = $2 WHERE id = $1`, id, limit)
	if err != nil {
		return fmt.Errorf("failed to update daily limit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ResetDailyCount zeroes one account's daily counter
func (r *Repository) ResetDailyCount(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET daily_count = 0 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to reset daily count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ResetAllDailyCounts zeroes every account's daily counter. The request path
// lazily resets on day rollover, so this bulk job is cleanup, not a
// correctness requirement; both paths converge to the same state.
func (r *Repository) ResetAllDailyCounts(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, `UPDATE accounts SET daily_count = 0`); err != nil {
		return fmt.Errorf("failed to reset daily counts: %w", err)
	}
	return nil
}

// ConsumeDailyQuota atomically claims one request slot for the given calendar
// day. A stale last_request_day restarts the counter at 1; a same-day counter
// at the limit leaves the row untouched and returns ErrLimitExceeded. The
// conditional update runs as a single statement, so concurrent requests for
// the same account serialize on the row and the counter can never pass the
// limit.
func (r *Repository) ConsumeDailyQuota(ctx context.Context, id string, day time.Time) (*models.Account, error) {
	query := fmt.Sprintf(`
		UPDATE accounts
		SET daily_count = CASE WHEN last_request_day = $2::date THEN daily_count + 1 ELSE 1 END,
		    last_request_day = $2::date
		WHERE id = $1
		  AND (last_request_day <> $2::date OR daily_count < daily_limit)
		RETURNING %s
	`, accountColumns)

	account, err := scanAccount(r.db.Pool.QueryRow(ctx, query, id, day))
	if err == pgx.ErrNoRows {
		// Distinguish a vanished account from an exhausted one.
		var exists bool
		if lookupErr := r.db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); lookupErr != nil {
			return nil, fmt.Errorf("failed to consume quota: %w", lookupErr)
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrLimitExceeded
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume quota: %w", err)
	}

	return account, nil
}

// AccountStats aggregates the counters used by the operator digest and the
// admin stats endpoint. All windows are computed from the same now snapshot.
func (r *Repository) AccountStats(ctx context.Context, now time.Time, warnDays int) (*models.AccountStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE expires_at > $1),
			COUNT(*) FILTER (WHERE expires_at < $1),
			COUNT(*) FILTER (WHERE expires_at > $1 AND expires_at < $1 + make_interval(days => $2)),
			COUNT(*) FILTER (WHERE daily_count::float / daily_limit >= $3)
		FROM accounts
	`

	var stats models.AccountStats
	err := r.db.Pool.QueryRow(ctx, query, now, warnDays, models.HighUsageThreshold).Scan(
		&stats.Total, &stats.Active, &stats.Expired, &stats.ExpiringSoon, &stats.HighUsage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	return &stats, nil
}

// FindAccountsExpiringBetween returns accounts with expires_at in [from, to)
func (r *Repository) FindAccountsExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Account, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM accounts WHERE expires_at >= $1 AND expires_at < $2 ORDER BY expires_at`,
		accountColumns)

	rows, err := r.db.Pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// FindHighUsageAccounts returns accounts at or above the usage ratio threshold
func (r *Repository) FindHighUsageAccounts(ctx context.Context, threshold float64) ([]*models.Account, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM accounts WHERE daily_count::float / daily_limit >= $1 ORDER BY created_at`,
		accountColumns)

	rows, err := r.db.Pool.Query(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query high usage accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}
