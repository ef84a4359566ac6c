package serverutils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestParsePrincipal(t *testing.T) {
	userId := uuid.New()
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": userId.String(),
		"role":    "teacher",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	p, err := ParsePrincipal(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, userId, p.UserId)
	assert.Equal(t, "teacher", p.Role)
	assert.False(t, p.IsSystemAdmin())
}

func TestParsePrincipalRejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"wrong secret": signToken(t, "other", jwt.MapClaims{"user_id": uuid.NewString()}),
		"expired": signToken(t, testSecret, jwt.MapClaims{
			"user_id": uuid.NewString(),
			"exp":     time.Now().Add(-time.Minute).Unix(),
		}),
		"missing user": signToken(t, testSecret, jwt.MapClaims{"role": "admin"}),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePrincipal(token, testSecret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJwtMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/me", JwtMiddleware(testSecret), func(ctx *fiber.Ctx) error {
		return ctx.SendString(PrincipalFrom(ctx).UserId.String())
	})

	req := httptest.NewRequest("GET", "/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	userId := uuid.New()
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{"user_id": userId.String()}))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
