package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/nmelker/bastion/internal/handlers"
	"github.com/nmelker/bastion/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	rateLimitConfig middleware.RateLimitConfig,
) {
	// Public routes - the login endpoint sits behind a per-IP rate limit in
	// addition to the per-account lockout tracker.
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
}
