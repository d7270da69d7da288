package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// ChatService bootstraps direct conversations with the chat provider
type ChatService interface {
	OpenMessage(ctx context.Context, caller *models.User, req models.OpenMessageRequest) (string, bool, error)
	Token(caller *models.User, userID string) (string, error)
}

// ChatHandler serves the chat bootstrap routes
type ChatHandler struct {
	chat   ChatService
	apiKey string
}

// NewChatHandler creates a new ChatHandler. apiKey is handed to clients with
// their token so they can connect to the provider.
func NewChatHandler(chat ChatService, apiKey string) *ChatHandler {
	return &ChatHandler{chat: chat, apiKey: apiKey}
}

// RegisterChatRoutes registers the chat routes on the user group
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.POST("/open-message", h.OpenMessage, requireAuth)
	g.GET("/get-token/:userId", h.GetToken, requireAuth)
}

// OpenMessage returns the direct channel between the caller and a post
// creator, 201 when it was just created
func (h *ChatHandler) OpenMessage(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.OpenMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	channelID, created, err := h.chat.OpenMessage(c.Request().Context(), caller, req)
	if err != nil {
		return httpError(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"channelId": channelID})
}

// GetToken issues the caller's chat client token
func (h *ChatHandler) GetToken(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	token, err := h.chat.Token(caller, c.Param("userId"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token, "apiKey": h.apiKey})
}
