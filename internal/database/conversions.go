// conversions.go handles the conversion audit log and usage statistics.
package database

import (
	"context"
	"fmt"

	"github.com/pagecraft-labs/file-converter-api/internal/models"
)

// InsertConversion records one completed conversion in the audit log.
func (db *DB) InsertConversion(ctx context.Context, c *models.Conversion) error {
	query := `
		INSERT INTO conversions (user_id, conversion_type, original_filename, file_size, pages_converted, output_format, quality_setting, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return db.QueryRowContext(ctx, query,
		c.UserID, c.ConversionType, c.Filename, c.FileSize,
		c.PagesConverted, c.OutputFormat, c.QualitySetting, c.IPAddress,
	).Scan(&c.ID, &c.CreatedAt)
}

// ListConversions returns a user's recent conversions, newest first.
func (db *DB) ListConversions(ctx context.Context, userID int64, limit int) ([]models.Conversion, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	var conversions []models.Conversion
	err := db.SelectContext(ctx, &conversions,
		`SELECT * FROM conversions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	return conversions, nil
}

// GetUsageStats aggregates a user's conversion activity: lifetime total,
// the last 30 days, and the current counter state from the user row.
func (db *DB) GetUsageStats(ctx context.Context, userID int64) (*models.UsageStats, error) {
	u, err := db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var total, monthly int
	err = db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM conversions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversions: %w", err)
	}
	err = db.GetContext(ctx, &monthly,
		`SELECT COUNT(*) FROM conversions WHERE user_id = $1 AND created_at >= NOW() - INTERVAL '30 days'`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly conversions: %w", err)
	}

	remaining := u.ConversionsLimit - u.ConversionsUsed
	if u.ConversionsLimit == -1 {
		remaining = -1
	} else if remaining < 0 {
		remaining = 0
	}

	return &models.UsageStats{
		TotalConversions:     total,
		MonthlyConversions:   monthly,
		ConversionsUsed:      u.ConversionsUsed,
		ConversionsLimit:     u.ConversionsLimit,
		RemainingConversions: remaining,
		PlanType:             u.PlanType,
		MaxFileSize:          u.MaxFileSize,
	}, nil
}
