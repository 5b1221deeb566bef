// conversions.go handles limit checks, usage tracking, history, and stats.
//
// check-limits and track serve both guests and account holders from the
// same routes: a valid Bearer token selects the account path, no token
// selects the guest cookie path, and a BAD token is always a hard 401 —
// clients rely on that status to notice an expired session and fall
// back to guest mode.
package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pagecraft-labs/file-converter-api/internal/database"
	"github.com/pagecraft-labs/file-converter-api/internal/middleware"
	"github.com/pagecraft-labs/file-converter-api/internal/models"
	"github.com/pagecraft-labs/file-converter-api/internal/plan"
)

// optionalUser resolves the caller: (user, true) for a valid token,
// (nil, true) for no token at all, (nil, false) after writing a 401 for
// a token that failed validation.
func (h *Handler) optionalUser(c *gin.Context) (*models.User, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, true
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := middleware.ParseJWT(tokenString, h.JWTSecret)
	if err == nil {
		if user, uerr := h.DB.GetUserByID(c.Request.Context(), claims.UserID); uerr == nil {
			return user, true
		}
	}

	c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "Invalid or expired token",
		Code:    http.StatusUnauthorized,
	})
	return nil, false
}

// CheckLimits answers "may I convert a file of this size?" without
// consuming any quota. Safe to call any number of times — the counters
// only move on track.
// POST /api/v1/conversions/check-limits
func (h *Handler) CheckLimits(c *gin.Context) {
	var req models.CheckLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "file_size is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	user, ok := h.optionalUser(c)
	if !ok {
		return
	}

	var decision plan.Decision
	var tier plan.Tier
	if user != nil {
		tier = user.PlanType
		decision = plan.Evaluate(user.ConversionsUsed, user.Limits(), req.FileSize, false)
	} else {
		tier = plan.TierGuest
		count := h.Guest.Count(c)
		decision = plan.Evaluate(count, plan.LimitsFor(plan.TierGuest), req.FileSize, true)
	}

	c.JSON(http.StatusOK, models.CheckLimitsResponse{
		Success:     true,
		Allowed:     decision.Allowed,
		Remaining:   decision.Remaining,
		Unlimited:   decision.Unlimited,
		Reason:      decision.Reason,
		MaxFileSize: decision.MaxFileSize,
		Plan:        tier,
	})
}

// Track records one completed conversion and bumps the caller's counter
// by exactly one. NOT idempotent: a retry counts twice, so clients send
// exactly one track per successful conversion.
// POST /api/v1/conversions/track
func (h *Handler) Track(c *gin.Context) {
	var rec models.ConversionRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "A conversion record is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	user, ok := h.optionalUser(c)
	if !ok {
		return
	}

	if user == nil {
		// Guests: bump the signed cookie counter. No audit row — there
		// is no user to hang it on.
		used := h.Guest.Increment(c)
		remaining := plan.GuestConversionLimit - used
		if remaining < 0 {
			remaining = 0
		}
		c.JSON(http.StatusOK, models.TrackConversionResponse{
			Success:   true,
			Used:      used,
			Limit:     plan.GuestConversionLimit,
			Remaining: remaining,
		})
		return
	}

	updated, err := h.DB.IncrementConversionsUsed(c.Request.Context(), user.ID)
	if err == database.ErrNoQuota {
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "limit_reached",
			Message: "Conversion limit reached for your plan",
			Code:    http.StatusForbidden,
		})
		return
	}
	if err != nil {
		log.Printf("❌ Failed to track conversion for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to track conversion",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	// The audit row is best-effort: the counter is the enforcement
	// source, history just loses an entry if this insert fails.
	conv := &models.Conversion{
		UserID:         updated.ID,
		ConversionType: rec.ConversionType,
		Filename:       rec.Filename,
		FileSize:       rec.FileSize,
		PagesConverted: rec.PagesConverted,
		OutputFormat:   rec.OutputFormat,
		QualitySetting: rec.QualitySetting,
		IPAddress:      c.ClientIP(),
	}
	if err := h.DB.InsertConversion(c.Request.Context(), conv); err != nil {
		log.Printf("⚠️ Failed to record conversion history for user %d: %v", updated.ID, err)
	}

	remaining := updated.ConversionsLimit - updated.ConversionsUsed
	if updated.ConversionsLimit == plan.Unlimited {
		remaining = plan.Unlimited
	} else if remaining < 0 {
		remaining = 0
	}

	c.JSON(http.StatusOK, models.TrackConversionResponse{
		Success:   true,
		Used:      updated.ConversionsUsed,
		Limit:     updated.ConversionsLimit,
		Remaining: remaining,
	})
}

// History lists the authenticated user's recent conversions.
// GET /api/v1/conversions/history?limit=N
func (h *Handler) History(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "Not authenticated",
			Code:    http.StatusUnauthorized,
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	conversions, err := h.DB.ListConversions(c.Request.Context(), user.ID, limit)
	if err != nil {
		log.Printf("❌ Failed to list conversions for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to load conversion history",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if conversions == nil {
		conversions = []models.Conversion{}
	}

	c.JSON(http.StatusOK, models.HistoryResponse{
		Success:     true,
		Conversions: conversions,
	})
}

// Stats returns aggregate usage for the authenticated user.
// GET /api/v1/conversions/stats
func (h *Handler) Stats(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "Not authenticated",
			Code:    http.StatusUnauthorized,
		})
		return
	}

	stats, err := h.DB.GetUsageStats(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("❌ Failed to load stats for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to load usage stats",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, models.StatsResponse{
		Success: true,
		Stats:   *stats,
	})
}
