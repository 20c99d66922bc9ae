package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"predmarket/database"
	"predmarket/models"
	"predmarket/service"
)

// UserRepository implements user persistence over PostgreSQL.
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a repository backed by the shared pool.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a repository scoped to a transaction.
func newUserRepositoryWithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `id, telegram_id, username, first_name, photo_url,
	pred_balance, ton_balance, rank, total_bets, total_wins, total_losses,
	win_streak, referrer_id, referral_code, is_banned, ban_reason, banned_at,
	created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.PhotoURL,
		&u.PredBalance, &u.TonBalance, &u.Rank, &u.TotalBets, &u.TotalWins,
		&u.TotalLosses, &u.WinStreak, &u.ReferrerID, &u.ReferralCode,
		&u.IsBanned, &u.BanReason, &u.BannedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID retrieves a user by internal id. Returns nil when not found.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return u, nil
}

// GetByTelegramID retrieves a user by Telegram id. Returns nil when not found.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	u, err := scanUser(r.q.QueryRow(ctx, query, telegramID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram id %d: %w", telegramID, err)
	}
	return u, nil
}

// GetByReferralCode retrieves a user by referral code. Returns nil when not found.
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1`
	u, err := scanUser(r.q.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by referral code: %w", err)
	}
	return u, nil
}

// Create inserts a new user with a starting balance and referral code.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (telegram_id, username, first_name, photo_url, pred_balance, referral_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, rank, ton_balance, created_at, updated_at`

	err := r.q.QueryRow(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.PhotoURL,
		user.PredBalance, user.ReferralCode,
	).Scan(&user.ID, &user.Rank, &user.TonBalance, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateProfile refreshes the mutable Telegram profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID int64, username, firstName, photoURL string) error {
	query := `
		UPDATE users
		SET username = $2, first_name = $3, photo_url = $4, updated_at = NOW()
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query, userID, username, firstName, photoURL)
	if err != nil {
		return fmt.Errorf("failed to update profile for user %d: %w", userID, err)
	}
	return nil
}

// GetForUpdate retrieves a user with a row lock, blocking concurrent
// balance changes for the duration of the transaction.
func (r *UserRepository) GetForUpdate(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	u, err := scanUser(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", userID, err)
	}
	return u, nil
}

// AddBalance credits amount to the user's balance in the given currency and
// returns the resulting balance.
func (r *UserRepository) AddBalance(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	column := balanceColumn(currency)
	query := fmt.Sprintf(`
		UPDATE users SET %s = %s + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, column, column, column)

	var after decimal.Decimal
	err := r.q.QueryRow(ctx, query, userID, amount).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("user %d not found", userID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to add balance for user %d: %w", userID, err)
	}
	return after, nil
}

// DeductBalance debits amount from the user's balance in the given currency,
// failing when funds are insufficient, and returns the resulting balance.
func (r *UserRepository) DeductBalance(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	column := balanceColumn(currency)
	query := fmt.Sprintf(`
		UPDATE users SET %s = %s - $2, updated_at = NOW()
		WHERE id = $1 AND %s >= $2
		RETURNING %s`, column, column, column, column)

	var after decimal.Decimal
	err := r.q.QueryRow(ctx, query, userID, amount).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, service.ErrInsufficientBalance
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to deduct balance for user %d: %w", userID, err)
	}
	return after, nil
}

// RecordWin bumps win counters, extends the streak and recomputes the rank.
func (r *UserRepository) RecordWin(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET total_wins = total_wins + 1,
		    win_streak = win_streak + 1,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING win_streak`

	var streak int64
	if err := r.q.QueryRow(ctx, query, userID).Scan(&streak); err != nil {
		return fmt.Errorf("failed to record win for user %d: %w", userID, err)
	}

	_, err := r.q.Exec(ctx, `UPDATE users SET rank = $2 WHERE id = $1`, userID, models.RankForStreak(streak))
	if err != nil {
		return fmt.Errorf("failed to update rank for user %d: %w", userID, err)
	}
	return nil
}

// RecordLoss bumps loss counters, resets the streak, and downranks to
// Bronze when losses exceed twice the wins.
func (r *UserRepository) RecordLoss(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET total_losses = total_losses + 1,
		    win_streak = 0,
		    rank = CASE WHEN total_losses + 1 > total_wins * 2 THEN 'Bronze' ELSE rank END,
		    updated_at = NOW()
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to record loss for user %d: %w", userID, err)
	}
	return nil
}

// IncrementTotalBets bumps the lifetime bet counter.
func (r *UserRepository) IncrementTotalBets(ctx context.Context, userID int64) error {
	_, err := r.q.Exec(ctx, `UPDATE users SET total_bets = total_bets + 1, updated_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to increment bets for user %d: %w", userID, err)
	}
	return nil
}

// SetReferrer records the referrer exactly once. The guard on referrer_id
// makes concurrent activations race safely: the second writer matches zero
// rows and loses.
func (r *UserRepository) SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error) {
	query := `
		UPDATE users SET referrer_id = $2, updated_at = NOW()
		WHERE id = $1 AND referrer_id IS NULL`
	tag, err := r.q.Exec(ctx, query, userID, referrerID)
	if err != nil {
		return false, fmt.Errorf("failed to set referrer for user %d: %w", userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountReferrals returns how many users name the given user as referrer.
func (r *UserRepository) CountReferrals(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE referrer_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals for user %d: %w", userID, err)
	}
	return count, nil
}

func balanceColumn(currency models.Currency) string {
	if currency == models.CurrencyTON {
		return "ton_balance"
	}
	return "pred_balance"
}
