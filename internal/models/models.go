// Package models defines the data structures used throughout the application.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// No ORM magic — the database package handles persistence with raw SQL.
// The `db` tags work with sqlx for database column mapping, and every
// server response has an explicit typed shape so clients can validate
// payloads at the boundary instead of poking at loose maps.
package models

import (
	"time"

	"github.com/pagecraft-labs/file-converter-api/internal/plan"
)

// ConversionType names a supported conversion direction.
type ConversionType string

const (
	ConversionPDFToImages ConversionType = "pdf-to-images"
	ConversionImagesToPDF ConversionType = "images-to-pdf"
)

// User represents an account row. Guests never have one — they exist
// only as a device-local counter.
type User struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Email            string    `json:"email" db:"email"`
	PasswordHash     string    `json:"-" db:"password_hash"` // "-" means never serialize to JSON
	PlanType         plan.Tier `json:"plan_type" db:"plan_type"`
	ConversionsUsed  int       `json:"conversions_used" db:"conversions_used"`
	ConversionsLimit int       `json:"conversions_limit" db:"conversions_limit"` // -1 = unlimited
	MaxFileSize      int64     `json:"max_file_size" db:"max_file_size"`         // bytes
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Limits returns the user's effective limits from their own row, not the
// tier table — upgrades write the columns, so the row is authoritative.
func (u *User) Limits() plan.Limits {
	return plan.Limits{Conversions: u.ConversionsLimit, MaxFileSize: u.MaxFileSize}
}

// Conversion is one audit-log entry for a completed conversion.
type Conversion struct {
	ID             string         `json:"id" db:"id"`
	UserID         int64          `json:"user_id" db:"user_id"`
	ConversionType ConversionType `json:"conversion_type" db:"conversion_type"`
	Filename       string         `json:"filename" db:"original_filename"`
	FileSize       int64          `json:"file_size" db:"file_size"`
	PagesConverted int            `json:"pages_converted" db:"pages_converted"`
	OutputFormat   string         `json:"output_format" db:"output_format"`
	QualitySetting string         `json:"quality_setting" db:"quality_setting"`
	IPAddress      string         `json:"-" db:"ip_address"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// ConversionRecord is the wire form of a tracked conversion — what the
// client reports after a successful batch. Timestamp is set by
// the reporter, not the server, so guest history works offline.
type ConversionRecord struct {
	ConversionType ConversionType `json:"conversion_type"`
	Filename       string         `json:"filename"`
	FileSize       int64          `json:"file_size"`
	PagesConverted int            `json:"pages_converted"`
	OutputFormat   string         `json:"output_format"`
	QualitySetting string         `json:"quality_setting"`
	Timestamp      time.Time      `json:"timestamp"`
}

// --- Request/Response DTOs ---
// Go Pattern: Separate structs for API input/output vs database models.
// This keeps the API contract clean and independent of the schema.

// RegisterRequest is the JSON body for POST /api/v1/auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest is the JSON body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// UserResponse wraps the current user for GET /api/v1/auth/me.
type UserResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

// UpgradeRequest is the JSON body for POST /api/v1/auth/upgrade.
type UpgradeRequest struct {
	Plan plan.Tier `json:"plan" binding:"required"`
}

// UpgradeResponse confirms a plan change and echoes the new limits.
type UpgradeResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

// CheckLimitsRequest is the JSON body for POST /api/v1/conversions/check-limits.
type CheckLimitsRequest struct {
	FileSize int64 `json:"file_size"`
}

// CheckLimitsResponse carries the server's limit decision. The shape
// mirrors plan.Decision plus the plan name for display; it is safe to
// retry because checking never consumes quota.
type CheckLimitsResponse struct {
	Success     bool        `json:"success"`
	Allowed     bool        `json:"allowed"`
	Remaining   int         `json:"remaining"`
	Unlimited   bool        `json:"unlimited"`
	Reason      plan.Reason `json:"reason"`
	MaxFileSize int64       `json:"max_file_size"`
	Plan        plan.Tier   `json:"plan"`
}

// TrackConversionResponse is returned by POST /api/v1/conversions/track.
// NOT idempotent — callers must send exactly one per successful batch.
type TrackConversionResponse struct {
	Success   bool `json:"success"`
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
}

// HistoryResponse lists recent conversions for an account.
type HistoryResponse struct {
	Success     bool         `json:"success"`
	Conversions []Conversion `json:"conversions"`
}

// UsageStats aggregates an account's conversion activity.
type UsageStats struct {
	TotalConversions     int       `json:"total_conversions"`
	MonthlyConversions   int       `json:"monthly_conversions"`
	ConversionsUsed      int       `json:"conversions_used"`
	ConversionsLimit     int       `json:"conversions_limit"`
	RemainingConversions int       `json:"remaining_conversions"`
	PlanType             plan.Tier `json:"plan_type"`
	MaxFileSize          int64     `json:"max_file_size"`
}

// StatsResponse wraps UsageStats for GET /api/v1/conversions/stats.
type StatsResponse struct {
	Success bool       `json:"success"`
	Stats   UsageStats `json:"stats"`
}

// ErrorResponse is a standard error format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}
