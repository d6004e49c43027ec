package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

func newTestApp(tokens *TokenManager, roles ...domain.OperatorRole) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Get("/me", NewAuthMiddleware(tokens).Handle, RequireRole(roles...), func(c *fiber.Ctx) error {
		operator, _ := OperatorFromContext(c)
		return c.SendString(operator.ID + ":" + string(operator.Role))
	})
	return app
}

func get(t *testing.T, app *fiber.App, header string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expiresAt, err := tm.GenerateToken(domain.Operator{ID: "op-7", Role: domain.RoleSupervisor})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Operator{ID: "op-7", Role: domain.RoleSupervisor}, claims.Operator())
}

func TestParseTokenRejectsForeignSecretAndExpiry(t *testing.T) {
	token, _, err := NewTokenManager("other", 5).GenerateToken(domain.Operator{ID: "op", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = NewTokenManager("secret", 5).ParseToken(token)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "op",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewTokenManager("secret", 5).ParseToken(signed)
	assert.Error(t, err)
}

func TestMiddlewareAuthenticatesOperator(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm)
	token, _, err := tm.GenerateToken(domain.Operator{ID: "op-1", Role: domain.RoleDispatcher})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(t, app, "Bearer "+token).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "Token "+token).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "Bearer garbage").StatusCode)
}

func TestRequireRole(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm, domain.RoleSupervisor, domain.RoleAdmin)

	dispatcher, _, err := tm.GenerateToken(domain.Operator{ID: "op-1", Role: domain.RoleDispatcher})
	require.NoError(t, err)
	admin, _, err := tm.GenerateToken(domain.Operator{ID: "op-2", Role: domain.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(t, app, "Bearer "+dispatcher).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, app, "Bearer "+admin).StatusCode)
}

func TestMiddlewareRejectsUnknownRole(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken(domain.Operator{ID: "op-1", Role: "JANITOR"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(t, newTestApp(tm), "Bearer "+token).StatusCode)
}
