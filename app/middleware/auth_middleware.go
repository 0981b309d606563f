// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/app/services"
	"github.com/treebio/treebio/repository"
)

// Locals keys set by the auth middleware
const (
	LocalIdentityClaims = "identity_claims"
	LocalUserID         = "user_id"
)

const userLookupTimeout = 5 * time.Second

// AuthMiddleware verifies identity provider tokens for protected endpoints
type AuthMiddleware struct {
	verifier services.IdentityVerifier
	userRepo repository.UserRepository
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier services.IdentityVerifier, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		userRepo: userRepo,
	}
}

// Authenticate validates the bearer token and stores its claims in Locals
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "MISSING_AUTHORIZATION_HEADER", "Authorization header is required")
		}

		// trailing whitespace is trimmed by the HTTP parser, so "Bearer   " arrives as a bare scheme
		scheme, token, _ := strings.Cut(authHeader, " ")
		if scheme != "Bearer" {
			return unauthorized(c, "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'")
		}

		token = strings.TrimSpace(token)
		if token == "" {
			return unauthorized(c, "MISSING_ACCESS_TOKEN", "Access token is required")
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "TOKEN_EXPIRED", "Access token has expired")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "TOKEN_INVALID", "Invalid access token")
			default:
				return unauthorized(c, "TOKEN_VALIDATION_FAILED", "Token validation failed")
			}
		}

		c.Locals(LocalIdentityClaims, claims)
		return c.Next()
	}
}

// RequireUser resolves the local user of the authenticated subject and stores its ID.
// Must run after Authenticate.
func (m *AuthMiddleware) RequireUser() fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := c.Locals(LocalIdentityClaims).(*dto.IdentityClaims)
		if !ok || claims == nil {
			return unauthorized(c, "MISSING_IDENTITY", "Authentication required")
		}

		ctx, cancel := context.WithTimeout(c.Context(), userLookupTimeout)
		defer cancel()

		user, err := m.userRepo.ByExternalID(ctx, claims.Subject)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
				Success: false,
				Message: "Failed to resolve user",
				Error:   dto.ErrorDetail{Code: "USER_LOOKUP_FAILED"},
			})
		}
		if user == nil {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "User is not onboarded",
				Error:   dto.ErrorDetail{Code: "USER_NOT_ONBOARDED"},
			})
		}

		c.Locals(LocalUserID, user.ID)
		return c.Next()
	}
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}
