package services

import (
	"context"
	"log/slog"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/media"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/anonto42/snapgram/backend/internal/repositories"
	"github.com/anonto42/snapgram/backend/pkg/logging"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errSelfUnfollow = &apperrors.ConflictError{Message: "you can't unfollow yourself"}

// RelationshipService keeps the cross-document relationships consistent:
// follows, likes, saves and the cleanup after a post is deleted.
//
// A follow touches two user documents. The steps run in a fixed order and a
// step that fails after an earlier one changed state undoes that earlier
// step. Every step is idempotent, so repeating a failed operation converges.
type RelationshipService struct {
	users         repositories.UserRepository
	posts         repositories.PostRepository
	images        ImageResolver
	notifications *NotificationService
	logger        *slog.Logger
}

// NewRelationshipService creates a new RelationshipService
func NewRelationshipService(users repositories.UserRepository, posts repositories.PostRepository, images ImageResolver, notifications *NotificationService, logger *slog.Logger) *RelationshipService {
	return &RelationshipService{
		users:         users,
		posts:         posts,
		images:        images,
		notifications: notifications,
		logger:        logging.WithComponent(logger, "relationships"),
	}
}

// Follow makes actor follow target. Following someone already followed
// changes nothing. It returns the actor after the change.
func (s *RelationshipService) Follow(ctx context.Context, actor *models.User, targetID primitive.ObjectID) (*models.User, error) {
	if actor.ID == targetID {
		return nil, apperrors.ErrSelfFollow
	}
	if _, err := s.users.GetUserByID(ctx, targetID); err != nil {
		return nil, err
	}

	addedFollowing, err := s.users.AddRelation(ctx, actor.ID, repositories.FieldFollowing, targetID)
	if err != nil {
		return nil, err
	}
	addedFollower, err := s.users.AddRelation(ctx, targetID, repositories.FieldFollowers, actor.ID)
	if err != nil {
		if addedFollowing {
			s.compensate(ctx, "follow", actor.ID, targetID, func(ctx context.Context) error {
				_, err := s.users.RemoveRelation(ctx, actor.ID, repositories.FieldFollowing, targetID)
				return err
			})
		}
		return nil, err
	}

	if addedFollowing || addedFollower {
		s.notifications.NotifyFollow(ctx, actor, targetID)
	}
	return s.users.GetUserByID(ctx, actor.ID)
}

// Unfollow removes the follow between actor and target on both sides.
// Unfollowing someone not followed changes nothing.
func (s *RelationshipService) Unfollow(ctx context.Context, actor *models.User, targetID primitive.ObjectID) (*models.User, error) {
	if actor.ID == targetID {
		return nil, errSelfUnfollow
	}
	if _, err := s.users.GetUserByID(ctx, targetID); err != nil {
		return nil, err
	}

	removedFollowing, err := s.users.RemoveRelation(ctx, actor.ID, repositories.FieldFollowing, targetID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.RemoveRelation(ctx, targetID, repositories.FieldFollowers, actor.ID); err != nil {
		if removedFollowing {
			s.compensate(ctx, "unfollow", actor.ID, targetID, func(ctx context.Context) error {
				_, err := s.users.AddRelation(ctx, actor.ID, repositories.FieldFollowing, targetID)
				return err
			})
		}
		return nil, err
	}
	return s.users.GetUserByID(ctx, actor.ID)
}

// compensate undoes an earlier step of a failed operation. A compensation
// that fails itself leaves a one-sided relationship, which is logged; the
// next follow or unfollow of the pair repairs it.
func (s *RelationshipService) compensate(ctx context.Context, op string, actorID, targetID primitive.ObjectID, undo func(context.Context) error) {
	logger := logging.FromContext(ctx, s.logger).With("op", op, "actor_id", actorID.Hex(), "target_id", targetID.Hex())
	if err := undo(context.WithoutCancel(ctx)); err != nil {
		logger.Error("compensation failed, relationship is one-sided", "error", err)
		return
	}
	logger.Warn("operation rolled back")
}

// ToggleLike flips actor's like on the post and reports whether the post is
// now liked. Concurrent toggles serialize in the store.
func (s *RelationshipService) ToggleLike(ctx context.Context, actor *models.User, postID primitive.ObjectID) (*models.Post, bool, error) {
	post, liked, err := s.posts.ToggleLike(ctx, postID, actor.ID)
	if err != nil {
		return nil, false, err
	}
	if liked {
		s.notifications.NotifyLike(ctx, actor, post)
	}
	return post, liked, nil
}

// ToggleSave flips the post in actor's saves and reports whether it is now
// saved. Saves are kept only on the user. A deleted post can still be
// unsaved, which clears ids a failed cascade left behind.
func (s *RelationshipService) ToggleSave(ctx context.Context, actor *models.User, postID primitive.ObjectID) (*models.User, bool, error) {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		if !apperrors.IsNotFound(err) {
			return nil, false, err
		}
		removed, rerr := s.users.RemoveRelation(ctx, actor.ID, repositories.FieldSaves, postID)
		if rerr != nil {
			return nil, false, rerr
		}
		if !removed {
			return nil, false, err
		}
		user, gerr := s.users.GetUserByID(ctx, actor.ID)
		if gerr != nil {
			return nil, false, gerr
		}
		return user, false, nil
	}
	return s.users.ToggleRelation(ctx, actor.ID, repositories.FieldSaves, postID)
}

// DeletePost removes a post the actor created: its image first, then the
// post, then every reference to it from users' posts and saves. References
// left behind by a failure in the last step are dropped by every read.
func (s *RelationshipService) DeletePost(ctx context.Context, actor *models.User, postID primitive.ObjectID) error {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.Creator != actor.ID {
		return &apperrors.ForbiddenError{Message: "only the creator can delete this post"}
	}

	s.images.Release(ctx, media.Image{URL: post.ImageURL, Key: post.ImageKey})

	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return err
	}

	if _, err := s.users.PullPostEverywhere(ctx, postID); err != nil {
		logging.FromContext(ctx, s.logger).Error("post references left behind",
			"post_id", postID.Hex(), "error", err)
	}
	return nil
}
