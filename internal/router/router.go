// Package router sets up all HTTP routes for the API.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/pagecraft-labs/file-converter-api/internal/database"
	"github.com/pagecraft-labs/file-converter-api/internal/handlers"
	"github.com/pagecraft-labs/file-converter-api/internal/middleware"
)

// Setup creates and configures the Gin router with all routes.
func Setup(db *database.DB, guest *middleware.GuestTracker, jwtSecret string, rateLimit int, allowedOrigins []string) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORS(allowedOrigins))

	h := handlers.NewHandler(db, guest, jwtSecret)
	rateLimiter := middleware.NewRateLimiter(rateLimit)

	// --- Public Routes (no auth required) ---
	r.GET("/api/v1/health", h.HealthCheck)

	// --- Auth Routes — public ---
	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/login", h.Login)
	r.POST("/api/v1/auth/logout", h.Logout)

	// --- Mixed Routes (guest cookie OR JWT — the handler resolves) ---
	// These carry the rate limiter keyed by IP for guests so anonymous
	// traffic cannot hammer the database.
	mixed := r.Group("/api/v1")
	mixed.Use(rateLimiter.RateLimit())
	{
		mixed.POST("/conversions/check-limits", h.CheckLimits)
		mixed.POST("/conversions/track", h.Track)
	}

	// --- JWT-protected routes ---
	jwtProtected := r.Group("/api/v1")
	jwtProtected.Use(middleware.JWTAuth(db, jwtSecret))
	jwtProtected.Use(rateLimiter.RateLimit())
	{
		jwtProtected.GET("/auth/me", h.GetMe)
		jwtProtected.POST("/auth/upgrade", h.Upgrade)
		jwtProtected.GET("/conversions/history", h.History)
		jwtProtected.GET("/conversions/stats", h.Stats)
	}

	return r
}
