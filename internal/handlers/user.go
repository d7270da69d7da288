package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/snapgram/backend/internal/media"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserService is what UserHandler needs from the user service
type UserService interface {
	UpdateProfile(ctx context.Context, actor *models.User, req models.UpdateUserRequest) (*models.User, error)
	Profile(ctx context.Context, id primitive.ObjectID) (*models.UserProfile, error)
	List(ctx context.Context) ([]models.User, error)
	ListAvailable(ctx context.Context, caller *models.User) ([]models.User, error)
	ChangeProfileImage(ctx context.Context, actor *models.User, userID primitive.ObjectID, up *media.Upload) (*models.User, error)
}

// FollowService is the follow graph side of the relationship service
type FollowService interface {
	Follow(ctx context.Context, actor *models.User, targetID primitive.ObjectID) (*models.User, error)
	Unfollow(ctx context.Context, actor *models.User, targetID primitive.ObjectID) (*models.User, error)
}

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	users          UserService
	follows        FollowService
	maxUploadBytes int64
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserService, follows FollowService, maxUploadBytes int64) *UserHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &UserHandler{users: users, follows: follows, maxUploadBytes: maxUploadBytes}
}

// RegisterUserRoutes registers the authenticated user routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.GET("/get-user", h.GetUser, requireAuth)
	g.PUT("/update-user", h.UpdateUser, requireAuth)
	g.GET("/get-profile/:userId", h.GetProfile, requireAuth)
	g.GET("/get-users", h.GetUsers, requireAuth)
	g.GET("/getAvailableUsers", h.GetAvailableUsers, requireAuth)
	g.PUT("/:userId/profile-image", h.ChangeProfileImage, requireAuth)
	g.POST("/follow", h.Follow, requireAuth)
	g.POST("/unfollow", h.Unfollow, requireAuth)
}

// GetUser returns the authenticated caller
func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// UpdateUser patches the caller's profile fields
func (h *UserHandler) UpdateUser(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.users.UpdateProfile(c.Request().Context(), caller, req)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User updated successfully", "user": user})
}

// GetProfile returns a user with their posts and saved posts
func (h *UserHandler) GetProfile(c echo.Context) error {
	id, err := objectIDParam(c, "userId")
	if err != nil {
		return err
	}

	profile, err := h.users.Profile(c.Request().Context(), id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": profile})
}

// GetUsers lists every user
func (h *UserHandler) GetUsers(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// GetAvailableUsers lists everyone but the caller
func (h *UserHandler) GetAvailableUsers(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	users, err := h.users.ListAvailable(c.Request().Context(), caller)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// ChangeProfileImage replaces the caller's profile image with the uploaded file
func (h *UserHandler) ChangeProfileImage(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "userId")
	if err != nil {
		return err
	}
	up, err := readUpload(c, h.maxUploadBytes)
	if err != nil {
		return err
	}

	user, err := h.users.ChangeProfileImage(c.Request().Context(), caller, id, up)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile image updated", "user": user})
}

// Follow adds the target to the caller's following list
func (h *UserHandler) Follow(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.FollowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	targetID, _ := primitive.ObjectIDFromHex(req.UserID)

	user, err := h.follows.Follow(c.Request().Context(), caller, targetID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User followed successfully", "currentUser": user})
}

// Unfollow removes the target from the caller's following list
func (h *UserHandler) Unfollow(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.UnfollowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	targetID, _ := primitive.ObjectIDFromHex(req.UserID)

	user, err := h.follows.Unfollow(c.Request().Context(), caller, targetID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User unfollowed successfully", "currentUser": user})
}
