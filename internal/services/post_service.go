package services

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/media"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/anonto42/snapgram/backend/internal/repositories"
	"github.com/anonto42/snapgram/backend/pkg/logging"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostResult is a created or updated post. ImageDropped is set when an image
// was sent but the media host refused it and the post was saved without it.
type PostResult struct {
	Post         *models.Post
	ImageDropped bool
}

// PostService creates, updates, lists and searches posts
type PostService struct {
	posts  repositories.PostRepository
	users  repositories.UserRepository
	images ImageResolver
	logger *slog.Logger
}

// NewPostService creates a new PostService
func NewPostService(posts repositories.PostRepository, users repositories.UserRepository, images ImageResolver, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		users:  users,
		images: images,
		logger: logging.WithComponent(logger, "posts"),
	}
}

// NormalizeTags trims tags, drops empty ones and splits comma-separated values
func NormalizeTags(raw []string) []string {
	tags := []string{}
	for _, value := range raw {
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// Create stores a new post for creator and appends it to creator's posts.
// When appending fails the post and its image are removed again.
func (s *PostService) Create(ctx context.Context, creator *models.User, req models.CreatePostRequest, up *media.Upload) (*PostResult, error) {
	logger := logging.FromContext(ctx, s.logger)
	result := &PostResult{}

	var img media.Image
	if up != nil {
		uploaded, err := s.images.Upload(ctx, media.FolderPosts, up)
		if err != nil {
			if !apperrors.IsExternalServiceError(err) {
				return nil, err
			}
			logger.Warn("post image dropped", "creator_id", creator.ID.Hex(), "error", err)
			result.ImageDropped = true
		} else {
			img = uploaded
		}
	}

	post := &models.Post{
		Caption:  strings.TrimSpace(req.Caption),
		Location: strings.TrimSpace(req.Location),
		Tags:     NormalizeTags(req.Tags),
		Creator:  creator.ID,
		ImageURL: img.URL,
		ImageKey: img.Key,
	}
	if post.Caption == "" {
		s.images.Release(ctx, img)
		return nil, apperrors.NewValidationError("caption", "caption is required")
	}

	if err := s.posts.CreatePost(ctx, post); err != nil {
		s.images.Release(ctx, img)
		return nil, err
	}

	if _, err := s.users.AddRelation(ctx, creator.ID, repositories.FieldPosts, post.ID); err != nil {
		undo := context.WithoutCancel(ctx)
		if delErr := s.posts.DeletePost(undo, post.ID); delErr != nil {
			logger.Error("compensation failed, post has no owner entry",
				"post_id", post.ID.Hex(), "creator_id", creator.ID.Hex(), "error", delErr)
		} else {
			s.images.Release(undo, img)
		}
		return nil, err
	}

	result.Post = post
	return result, nil
}

// Update changes the post's non-empty fields and, when up is set, its image.
// Only the creator may update a post.
func (s *PostService) Update(ctx context.Context, actor *models.User, postID primitive.ObjectID, req models.UpdatePostRequest, up *media.Upload) (*PostResult, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Creator != actor.ID {
		return nil, &apperrors.ForbiddenError{Message: "only the creator can update this post"}
	}

	var update models.PostUpdate
	if caption := strings.TrimSpace(req.Caption); caption != "" {
		update.Caption = &caption
	}
	if location := strings.TrimSpace(req.Location); location != "" {
		update.Location = &location
	}
	if tags := NormalizeTags(req.Tags); len(tags) > 0 {
		update.Tags = tags
	}

	updated, err := s.posts.UpdatePost(ctx, postID, update)
	if err != nil {
		return nil, err
	}
	result := &PostResult{Post: updated}

	current := media.Image{URL: updated.ImageURL, Key: updated.ImageKey}
	img, err := s.images.Replace(ctx, current, media.FolderPosts, up, func(img media.Image) error {
		return s.posts.SetImage(ctx, postID, img.URL, img.Key)
	})
	if err != nil {
		if !apperrors.IsExternalServiceError(err) {
			return nil, err
		}
		logging.FromContext(ctx, s.logger).Warn("post image dropped", "post_id", postID.Hex(), "error", err)
		result.ImageDropped = true
		return result, nil
	}
	updated.ImageURL, updated.ImageKey = img.URL, img.Key
	return result, nil
}

// List returns one page of posts in insertion order with creators and
// likers resolved. HasMore comes from a separate count and is approximate
// under concurrent writes.
func (s *PostService) List(ctx context.Context, page, limit int) (*models.PostPage, error) {
	page, limit = NormalizePage(page, limit)
	if int64(page-1) > (math.MaxInt64-int64(limit))/int64(limit) {
		// The window starts past anything the store can hold
		total, err := s.posts.CountPosts(ctx)
		if err != nil {
			return nil, err
		}
		return &models.PostPage{Posts: []models.PostView{}, Page: page, Limit: limit, Total: total}, nil
	}
	skip := int64(page-1) * int64(limit)

	posts, err := s.posts.ListPosts(ctx, skip, int64(limit))
	if err != nil {
		return nil, err
	}
	total, err := s.posts.CountPosts(ctx)
	if err != nil {
		return nil, err
	}
	views, err := s.populate(ctx, posts)
	if err != nil {
		return nil, err
	}

	return &models.PostPage{
		Posts:   views,
		HasMore: skip+int64(len(posts)) < total,
		Page:    page,
		Limit:   limit,
		Total:   total,
	}, nil
}

// Search returns up to ten posts whose caption, location or a tag contains
// term, ignoring case. An empty term matches every post.
func (s *PostService) Search(ctx context.Context, term string) ([]models.PostView, error) {
	posts, err := s.posts.SearchPosts(ctx, strings.TrimSpace(term), searchLimit)
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, posts)
}

// Details returns one post with its creator and likers resolved
func (s *PostService) Details(ctx context.Context, postID primitive.ObjectID) (*models.PostView, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	views, err := s.populate(ctx, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// populate resolves creators and likers with one user lookup. Users that no
// longer resolve are dropped from likes and leave Creator nil.
func (s *PostService) populate(ctx context.Context, posts []models.Post) ([]models.PostView, error) {
	seen := map[primitive.ObjectID]struct{}{}
	var ids []primitive.ObjectID
	add := func(id primitive.ObjectID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, p := range posts {
		add(p.Creator)
		for _, id := range p.Likes {
			add(id)
		}
	}

	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	views := make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		view := models.PostView{
			ID:        p.ID,
			Caption:   p.Caption,
			ImageURL:  p.ImageURL,
			Location:  p.Location,
			Tags:      p.Tags,
			Creator:   byID[p.Creator],
			Likes:     []models.User{},
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		}
		if view.Tags == nil {
			view.Tags = []string{}
		}
		for _, id := range p.Likes {
			if u, ok := byID[id]; ok {
				view.Likes = append(view.Likes, *u)
			}
		}
		views = append(views, view)
	}
	return views, nil
}
