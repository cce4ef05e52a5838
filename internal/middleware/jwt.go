package middleware

import (
	"context"
	"net/http"

	"vendora/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// JWTCustomClaims are the claims issued by the storefront's identity service.
type JWTCustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// UserContext runs after the echo-jwt validator and copies the subject claim
// into the request context under common.UserIDKey, where the handlers and
// services look for it.
func UserContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}

			subject := ""
			switch claims := token.Claims.(type) {
			case *JWTCustomClaims:
				subject = claims.UserID
				if subject == "" {
					subject = claims.Subject
				}
			case jwt.MapClaims:
				if sub, err := claims.GetSubject(); err == nil {
					subject = sub
				}
			}
			if subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing user_id in token")
			}

			userID, err := uuid.Parse(subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid user_id format")
			}

			ctx := context.WithValue(c.Request().Context(), common.UserIDKey, userID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
