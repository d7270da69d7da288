package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/snapgram/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationService serves a user's notifications back to them
type NotificationService interface {
	List(ctx context.Context, recipientID primitive.ObjectID, page, limit int) (*services.NotificationPage, error)
	UnreadCount(ctx context.Context, recipientID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, recipientID primitive.ObjectID, notificationID uint) error
	MarkAllRead(ctx context.Context, recipientID primitive.ObjectID) (int64, error)
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.GET("", h.GetNotifications, requireAuth)
	g.GET("/unread-count", h.GetUnreadCount, requireAuth)
	g.PATCH("/read-all", h.MarkAllAsRead, requireAuth)
	g.PATCH("/:id/read", h.MarkAsRead, requireAuth)
}

// GetNotifications returns paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	page, err := h.notifications.List(c.Request().Context(), caller.ID, intQuery(c, "page"), intQuery(c, "limit"))
	if err != nil {
		return httpError(c, err)
	}

	totalPages := int(math.Ceil(float64(page.Total) / float64(page.Limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": page.Notifications,
		},
		"meta": echo.Map{
			"currentPage":     page.Page,
			"totalPages":      totalPages,
			"totalItems":      page.Total,
			"itemsPerPage":    page.Limit,
			"hasNextPage":     page.Page < totalPages,
			"hasPreviousPage": page.Page > 1,
		},
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	count, err := h.notifications.UnreadCount(c.Request().Context(), caller.ID)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	notifID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}

	if err := h.notifications.MarkRead(c.Request().Context(), caller.ID, uint(notifID)); err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	updated, err := h.notifications.MarkAllRead(c.Request().Context(), caller.ID)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"updated": updated}})
}
