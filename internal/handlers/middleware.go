package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pricing-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDLocal holds the token subject after JWTAuth accepted a request.
const UserIDLocal = "user_id"

// RequestLogger logs one line per request once the handler has finished.
func RequestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
			"ip", c.IP(),
		}
		if err != nil {
			attrs = append(attrs, "error", err)
		}

		switch {
		case err != nil || status >= http.StatusInternalServerError:
			slog.Error("request completed", attrs...)
		case status >= http.StatusBadRequest:
			slog.Warn("request completed", attrs...)
		default:
			slog.Info("request completed", attrs...)
		}
		return err
	}
}

// JWTAuth accepts requests carrying an HS256 bearer token signed with secret.
func JWTAuth(secret string) fiber.Handler {
	key := []byte(secret)

	return func(c fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return c.Status(http.StatusUnauthorized).JSON(
				utils.CreateErrorResponse("UNAUTHORIZED", "Bearer token is required"))
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			slog.Warn("rejected bearer token", "path", c.Path(), "error", err)
			return c.Status(http.StatusUnauthorized).JSON(
				utils.CreateErrorResponse("UNAUTHORIZED", "Invalid or expired token"))
		}

		c.Locals(UserIDLocal, claims.Subject)
		return c.Next()
	}
}
