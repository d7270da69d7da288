package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/snapgram/backend/internal/media"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/anonto42/snapgram/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostService is what PostHandler needs from the post service
type PostService interface {
	Create(ctx context.Context, creator *models.User, req models.CreatePostRequest, up *media.Upload) (*services.PostResult, error)
	Update(ctx context.Context, actor *models.User, postID primitive.ObjectID, req models.UpdatePostRequest, up *media.Upload) (*services.PostResult, error)
	List(ctx context.Context, page, limit int) (*models.PostPage, error)
	Search(ctx context.Context, term string) ([]models.PostView, error)
	Details(ctx context.Context, postID primitive.ObjectID) (*models.PostView, error)
}

// PostActions are the post operations that touch more than the post itself
type PostActions interface {
	ToggleLike(ctx context.Context, actor *models.User, postID primitive.ObjectID) (*models.Post, bool, error)
	ToggleSave(ctx context.Context, actor *models.User, postID primitive.ObjectID) (*models.User, bool, error)
	DeletePost(ctx context.Context, actor *models.User, postID primitive.ObjectID) error
}

// PostHandler handles post-related HTTP requests
type PostHandler struct {
	posts          PostService
	actions        PostActions
	maxUploadBytes int64
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts PostService, actions PostActions, maxUploadBytes int64) *PostHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &PostHandler{posts: posts, actions: actions, maxUploadBytes: maxUploadBytes}
}

// RegisterPostRoutes registers post-related routes, all behind requireAuth
func (h *PostHandler) RegisterPostRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.POST("/create", h.CreatePost, requireAuth)
	g.PUT("/update/:postId", h.UpdatePost, requireAuth)
	g.GET("/get-posts", h.GetPosts, requireAuth)
	g.GET("/details/:postId", h.GetPostDetails, requireAuth)
	g.DELETE("/delete/:postId", h.DeletePost, requireAuth)
	g.PATCH("/like/:postId", h.LikePost, requireAuth)
	g.PATCH("/save-post/:postId", h.SavePost, requireAuth)
	g.GET("/search", h.SearchPosts, requireAuth)
}

// CreatePost creates a post from a multipart form with an optional image
func (h *PostHandler) CreatePost(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	up, err := readUpload(c, h.maxUploadBytes)
	if err != nil {
		return err
	}

	res, err := h.posts.Create(c.Request().Context(), caller, req, up)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message":       "Post created successfully",
		"post":          res.Post,
		"image_dropped": res.ImageDropped,
	})
}

// UpdatePost applies the non-empty form fields and an optional new image
func (h *PostHandler) UpdatePost(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	up, err := readUpload(c, h.maxUploadBytes)
	if err != nil {
		return err
	}

	res, err := h.posts.Update(c.Request().Context(), caller, postID, req, up)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":       "Post updated successfully",
		"post":          res.Post,
		"image_dropped": res.ImageDropped,
	})
}

// GetPosts returns one page of posts with creators and likers resolved
func (h *PostHandler) GetPosts(c echo.Context) error {
	page, err := h.posts.List(c.Request().Context(), intQuery(c, "page"), intQuery(c, "limit"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GetPostDetails returns one post with creator and likers resolved
func (h *PostHandler) GetPostDetails(c echo.Context) error {
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}

	post, err := h.posts.Details(c.Request().Context(), postID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

// DeletePost deletes one of the caller's posts and every reference to it
func (h *PostHandler) DeletePost(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}

	if err := h.actions.DeletePost(c.Request().Context(), caller, postID); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Post deleted successfully"})
}

// LikePost toggles the caller's like on a post
func (h *PostHandler) LikePost(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}

	post, liked, err := h.actions.ToggleLike(c.Request().Context(), caller, postID)
	if err != nil {
		return httpError(c, err)
	}

	message := "Post unliked"
	if liked {
		message = "Post liked"
	}
	return c.JSON(http.StatusOK, echo.Map{"message": message, "post": post})
}

// SavePost toggles a post in the caller's saves
func (h *PostHandler) SavePost(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "postId")
	if err != nil {
		return err
	}

	user, saved, err := h.actions.ToggleSave(c.Request().Context(), caller, postID)
	if err != nil {
		return httpError(c, err)
	}

	message := "Post removed"
	if saved {
		message = "Post saved"
	}
	return c.JSON(http.StatusOK, echo.Map{"message": message, "user": user})
}

// SearchPosts matches the term against captions, locations and tags
func (h *PostHandler) SearchPosts(c echo.Context) error {
	posts, err := h.posts.Search(c.Request().Context(), c.QueryParam("term"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, posts)
}
