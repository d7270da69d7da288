package services

import (
	"context"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/chat"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/anonto42/snapgram/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatService bootstraps direct conversations with the chat provider
type ChatService struct {
	users    repositories.UserRepository
	provider chat.Provider
}

// NewChatService creates a new ChatService
func NewChatService(users repositories.UserRepository, provider chat.Provider) *ChatService {
	return &ChatService{users: users, provider: provider}
}

// OpenMessage makes sure caller and the post creator are known to the chat
// provider and returns their direct channel, creating it when needed.
func (s *ChatService) OpenMessage(ctx context.Context, caller *models.User, req models.OpenMessageRequest) (string, bool, error) {
	creatorID, err := primitive.ObjectIDFromHex(req.Creator.ID)
	if err != nil {
		return "", false, apperrors.NewValidationError("creator.id", "invalid user id")
	}
	if creatorID == caller.ID {
		return "", false, &apperrors.ConflictError{Message: "you can't message yourself"}
	}
	creator, err := s.users.GetUserByID(ctx, creatorID)
	if err != nil {
		return "", false, err
	}

	err = s.provider.EnsureMembers(ctx,
		chat.Member{ID: caller.ID.Hex(), Name: caller.Name, Image: caller.ImageURL},
		chat.Member{ID: creator.ID.Hex(), Name: creator.Name, Image: creator.ImageURL},
	)
	if err != nil {
		return "", false, err
	}
	return s.provider.OpenDirectChannel(ctx, caller.ID.Hex(), creator.ID.Hex())
}

// Token returns a chat client token for userID, which must be the caller
func (s *ChatService) Token(caller *models.User, userID string) (string, error) {
	if userID == "" {
		return "", apperrors.NewValidationError("userId", "user id is required")
	}
	if caller.ID.Hex() != userID {
		return "", &apperrors.ForbiddenError{Message: "you can only request your own chat token"}
	}
	return s.provider.CreateToken(userID)
}
