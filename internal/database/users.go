// users.go handles user-related database operations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pagecraft-labs/file-converter-api/internal/models"
	"github.com/pagecraft-labs/file-converter-api/internal/plan"
)

// ErrNoQuota signals that an increment was refused because the user's
// counter already sits at their plan limit.
var ErrNoQuota = errors.New("conversion limit reached")

// CreateUser inserts a new user record. New accounts always start on the
// free plan; the plan columns are seeded from the tier table so the row
// is self-contained.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	limits := plan.LimitsFor(plan.TierFree)
	u.PlanType = plan.TierFree
	u.ConversionsUsed = 0
	u.ConversionsLimit = limits.Conversions
	u.MaxFileSize = limits.MaxFileSize

	query := `
		INSERT INTO users (name, email, password_hash, plan_type, conversions_used, conversions_limit, max_file_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return db.QueryRowContext(ctx, query,
		u.Name, u.Email, u.PasswordHash,
		u.PlanType, u.ConversionsUsed, u.ConversionsLimit, u.MaxFileSize,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// GetUserByEmail retrieves a user by email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return &u, nil
}

// IncrementConversionsUsed bumps a user's counter by exactly one and
// returns the updated row. The WHERE clause re-checks the limit so two
// racing requests can never push the counter past it — the losing
// request gets ErrNoQuota.
func (db *DB) IncrementConversionsUsed(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	query := `
		UPDATE users
		SET conversions_used = conversions_used + 1, updated_at = NOW()
		WHERE id = $1 AND (conversions_limit = -1 OR conversions_used < conversions_limit)
		RETURNING *`

	err := db.GetContext(ctx, &u, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoQuota
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment usage: %w", err)
	}
	return &u, nil
}

// UpgradePlan moves a user to a new tier and rewrites the limit columns
// from the tier table. The usage counter is preserved across upgrades.
func (db *DB) UpgradePlan(ctx context.Context, id int64, tier plan.Tier) (*models.User, error) {
	limits := plan.LimitsFor(tier)

	var u models.User
	query := `
		UPDATE users
		SET plan_type = $2, conversions_limit = $3, max_file_size = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING *`

	err := db.GetContext(ctx, &u, query, id, tier, limits.Conversions, limits.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade plan: %w", err)
	}
	return &u, nil
}
