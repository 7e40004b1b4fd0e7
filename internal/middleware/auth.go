package middleware

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const operatorIssuer = "linkbridge"

// OperatorAuth guards the operator API with HS256 bearer tokens minted by
// MintOperatorToken. The token subject is stored in Locals("operator").
func OperatorAuth(jwtSecret string) fiber.Handler {
	secret := []byte(jwtSecret)
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(401).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		}, jwt.WithIssuer(operatorIssuer))
		if err != nil || !token.Valid {
			return c.Status(401).JSON(fiber.Map{"error": "invalid or expired token"})
		}
		if claims.Subject == "" {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token: missing subject"})
		}

		c.Locals("operator", claims.Subject)
		return c.Next()
	}
}

// MintOperatorToken signs an operator token for name valid for ttl.
func MintOperatorToken(jwtSecret, name string, ttl time.Duration) (string, error) {
	if name == "" {
		return "", fmt.Errorf("operator name is required")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    operatorIssuer,
		Subject:   name,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

// ServerKey guards the endpoints the game plugin calls.
func ServerKey(expectedKey string) fiber.Handler {
	want := []byte(expectedKey)
	return func(c *fiber.Ctx) error {
		key := c.Get("X-Server-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(key), want) != 1 {
			return c.Status(403).JSON(fiber.Map{"error": "invalid server key"})
		}
		return c.Next()
	}
}
