package middleware

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/app/services"
	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/repository"
)

type stubVerifier struct {
	claims *dto.IdentityClaims
	err    error
}

func (s stubVerifier) Verify(token string) (*dto.IdentityClaims, error) {
	return s.claims, s.err
}

// stubUserRepo implements only ByExternalID; other methods panic via the nil embedded interface
type stubUserRepo struct {
	repository.UserRepository
	user *models.User
	err  error
}

func (s stubUserRepo) ByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.user, s.err
}

func newAuthApp(m *AuthMiddleware) *fiber.App {
	app := fiber.New()
	app.Get("/claims", m.Authenticate(), func(c fiber.Ctx) error {
		claims := c.Locals(LocalIdentityClaims).(*dto.IdentityClaims)
		return c.SendString(claims.Subject)
	})
	app.Get("/me", m.Authenticate(), m.RequireUser(), func(c fiber.Ctx) error {
		id, _ := c.Locals(LocalUserID).(uint)
		if id != 11 {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendString("ok")
	})
	return app
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		verifier   stubVerifier
		wantStatus int
		wantCode   string
	}{
		{name: "missing header", wantStatus: fiber.StatusUnauthorized, wantCode: "MISSING_AUTHORIZATION_HEADER"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: fiber.StatusUnauthorized, wantCode: "INVALID_AUTHORIZATION_FORMAT"},
		{name: "glued scheme", header: "Bearerabc", wantStatus: fiber.StatusUnauthorized, wantCode: "INVALID_AUTHORIZATION_FORMAT"},
		{name: "empty token", header: "Bearer   ", wantStatus: fiber.StatusUnauthorized, wantCode: "MISSING_ACCESS_TOKEN"},
		{name: "bare scheme", header: "Bearer", wantStatus: fiber.StatusUnauthorized, wantCode: "MISSING_ACCESS_TOKEN"},
		{name: "padded token", header: "Bearer   t", verifier: stubVerifier{claims: &dto.IdentityClaims{Subject: "sub_1"}}, wantStatus: fiber.StatusOK},
		{name: "expired", header: "Bearer t", verifier: stubVerifier{err: services.ErrTokenExpired}, wantStatus: fiber.StatusUnauthorized, wantCode: "TOKEN_EXPIRED"},
		{name: "invalid", header: "Bearer t", verifier: stubVerifier{err: services.ErrTokenInvalid}, wantStatus: fiber.StatusUnauthorized, wantCode: "TOKEN_INVALID"},
		{name: "other failure", header: "Bearer t", verifier: stubVerifier{err: errors.New("jwks")}, wantStatus: fiber.StatusUnauthorized, wantCode: "TOKEN_VALIDATION_FAILED"},
		{name: "valid", header: "Bearer t", verifier: stubVerifier{claims: &dto.IdentityClaims{Subject: "sub_1"}}, wantStatus: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthApp(NewAuthMiddleware(tt.verifier, stubUserRepo{}))
			req := httptest.NewRequest(fiber.MethodGet, "/claims", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			if tt.wantCode != "" {
				assert.Contains(t, string(body), tt.wantCode)
			} else {
				assert.Equal(t, "sub_1", string(body))
			}
		})
	}
}

func TestAuthMiddleware_RequireUser(t *testing.T) {
	verifier := stubVerifier{claims: &dto.IdentityClaims{Subject: "sub_1"}}

	tests := []struct {
		name       string
		repo       stubUserRepo
		wantStatus int
		wantCode   string
	}{
		{name: "onboarded", repo: stubUserRepo{user: &models.User{ID: 11}}, wantStatus: fiber.StatusOK},
		{name: "not onboarded", repo: stubUserRepo{}, wantStatus: fiber.StatusForbidden, wantCode: "USER_NOT_ONBOARDED"},
		{name: "lookup failure", repo: stubUserRepo{err: errors.New("db down")}, wantStatus: fiber.StatusInternalServerError, wantCode: "USER_LOOKUP_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthApp(NewAuthMiddleware(verifier, tt.repo))
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer t")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.True(t, tt.wantCode == "" || strings.Contains(string(body), tt.wantCode), string(body))
		})
	}
}
