package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// userContextKey is where the authenticated user is stored on echo.Context
const userContextKey = "user"

// TokenParser verifies a bearer token and returns the user id it carries
type TokenParser interface {
	Parse(tokenString string) (string, error)
}

// UserLookup loads the authenticated user, without the password hash
type UserLookup interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// JWTAuthMiddleware checks the bearer token and loads its user. A missing
// token is 401, a token that does not verify is 403 and a token whose user
// no longer exists is 404.
func JWTAuthMiddleware(tokens TokenParser, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access denied")
			}

			// Expecting "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access denied")
			}

			userID, err := tokens.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusForbidden, "Invalid token")
			}
			id, err := primitive.ObjectIDFromHex(userID)
			if err != nil {
				return echo.NewHTTPError(http.StatusForbidden, "Invalid token")
			}

			user, err := users.GetUserByID(c.Request().Context(), id)
			if err != nil {
				if apperrors.IsNotFound(err) {
					return echo.NewHTTPError(http.StatusNotFound, "User not found")
				}
				return err
			}
			user.Password = ""

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the user stored by JWTAuthMiddleware, or nil
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}
