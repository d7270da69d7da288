package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// AuthService is the account side of the user service
type AuthService interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.User, string, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.User, string, error)
	FirebaseEnabled() bool
	FirebaseLogin(ctx context.Context, idToken string) (*models.User, string, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	auth AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterAuthRoutes registers the public account routes. Firebase login is
// only mounted when a Firebase project is configured.
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signup", h.Signup)
	g.POST("/login", h.Login)
	if h.auth.FirebaseEnabled() {
		g.POST("/firebase-login", h.FirebaseLogin)
	}
}

// Signup creates an account and returns it with a session token
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, token, err := h.auth.Signup(c.Request().Context(), req)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User created successfully",
		"user":    user,
		"token":   token,
	})
}

// Login exchanges email and password for a session token
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, token, err := h.auth.Login(c.Request().Context(), req)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"token": token, "user": user})
}

// FirebaseLogin exchanges a Firebase ID token for a session token, creating
// the account on first sign-in
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req models.FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, token, err := h.auth.FirebaseLogin(c.Request().Context(), req.IDToken)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"token": token, "user": user})
}
