package services

import (
	"context"
	"log/slog"

	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/anonto42/snapgram/backend/internal/repositories"
	"github.com/anonto42/snapgram/backend/pkg/logging"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EnrichedNotification is a notification with its actor resolved. Actor is
// nil when the actor no longer resolves.
type EnrichedNotification struct {
	models.Notification
	Actor *models.User `json:"actor"`
}

// NotificationPage is one page of a user's notifications
type NotificationPage struct {
	Notifications []EnrichedNotification
	Total         int64
	Page          int
	Limit         int
}

// NotificationService records follow and like notifications and serves them
// back to their recipients. Recording is best-effort: a failed write is
// logged and never fails the action that triggered it.
type NotificationService struct {
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
	logger        *slog.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifications repositories.NotificationRepository, users repositories.UserRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		logger:        logging.WithComponent(logger, "notifications"),
	}
}

// NotifyFollow tells target that actor started following them
func (s *NotificationService) NotifyFollow(ctx context.Context, actor *models.User, targetID primitive.ObjectID) {
	s.record(ctx, &models.Notification{
		Type:            models.NotificationFollow,
		ActorID:         actor.ID.Hex(),
		RecipientID:     targetID.Hex(),
		TargetID:        actor.ID.Hex(),
		TargetType:      "user",
		PreviewImageURL: actor.ImageURL,
		Message:         actor.Name + " started following you",
	})
}

// NotifyLike tells the creator of post that actor liked it. Self-likes are
// not recorded.
func (s *NotificationService) NotifyLike(ctx context.Context, actor *models.User, post *models.Post) {
	if post.Creator == actor.ID {
		return
	}
	s.record(ctx, &models.Notification{
		Type:            models.NotificationLike,
		ActorID:         actor.ID.Hex(),
		RecipientID:     post.Creator.Hex(),
		TargetID:        post.ID.Hex(),
		TargetType:      "post",
		PreviewImageURL: post.ImageURL,
		Message:         actor.Name + " liked your post",
	})
}

func (s *NotificationService) record(ctx context.Context, n *models.Notification) {
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		logging.FromContext(ctx, s.logger).Warn("notification write failed",
			"type", n.Type, "recipient_id", n.RecipientID, "error", err)
	}
}

// List returns one page of the recipient's notifications, newest first
func (s *NotificationService) List(ctx context.Context, recipientID primitive.ObjectID, page, limit int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageLimit {
		limit = 20
	}

	items, total, err := s.notifications.GetByRecipientID(ctx, recipientID.Hex(), page, limit)
	if err != nil {
		return nil, err
	}
	enriched, err := s.enrich(ctx, items)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Notifications: enriched, Total: total, Page: page, Limit: limit}, nil
}

func (s *NotificationService) enrich(ctx context.Context, items []models.Notification) ([]EnrichedNotification, error) {
	seen := map[primitive.ObjectID]struct{}{}
	var actorIDs []primitive.ObjectID
	for _, n := range items {
		id, err := primitive.ObjectIDFromHex(n.ActorID)
		if err != nil {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			actorIDs = append(actorIDs, id)
		}
	}

	actors, err := s.users.GetUsersByIDs(ctx, actorIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(actors))
	for i := range actors {
		byID[actors[i].ID.Hex()] = &actors[i]
	}

	enriched := make([]EnrichedNotification, len(items))
	for i, n := range items {
		enriched[i] = EnrichedNotification{Notification: n, Actor: byID[n.ActorID]}
	}
	return enriched, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	return s.notifications.GetUnreadCount(ctx, recipientID.Hex())
}

func (s *NotificationService) MarkRead(ctx context.Context, recipientID primitive.ObjectID, notificationID uint) error {
	return s.notifications.MarkAsRead(ctx, recipientID.Hex(), notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	return s.notifications.MarkAllAsRead(ctx, recipientID.Hex())
}
