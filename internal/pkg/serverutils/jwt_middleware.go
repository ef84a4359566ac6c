package serverutils

import (
	"errors"
	"fmt"

	"school-portal-be/internal/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const principalKey = "principal"

var ErrInvalidToken = errors.New("invalid token")

// ParsePrincipal verifies an HS256 token minted by the auth service and reads
// the caller identity from its user_id and role claims.
func ParsePrincipal(tokenStr, secret string) (entity.Principal, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return entity.Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return entity.Principal{}, ErrInvalidToken
	}

	rawId, _ := claims["user_id"].(string)
	userId, err := uuid.Parse(rawId)
	if err != nil {
		return entity.Principal{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)

	return entity.Principal{UserId: userId, Role: role}, nil
}

func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		principal, err := ParsePrincipal(authHeader[7:], secret)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		ctx.Locals("user_id", principal.UserId.String())
		ctx.Locals(principalKey, principal)
		return ctx.Next()
	}
}

// PrincipalFrom returns the caller stored by JwtMiddleware.
func PrincipalFrom(ctx *fiber.Ctx) entity.Principal {
	p, _ := ctx.Locals(principalKey).(entity.Principal)
	return p
}
