package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anonto42/snapgram/backend/internal/media"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/anonto42/snapgram/backend/internal/services"
	"github.com/anonto42/snapgram/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

// fakeAuth stands in for the JWT middleware and authenticates every request
// as caller.
func fakeAuth(caller *models.User) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user", caller)
			return next(c)
		}
	}
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validators.NewValidator()
	return e
}

func newCaller() *models.User {
	return &models.User{ID: primitive.NewObjectID(), Name: "Ada Lovelace", Email: "ada@example.com"}
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type formFile struct {
	name string
	data []byte
}

func doMultipart(t *testing.T, e *echo.Echo, method, path string, fields map[string]string, file *formFile) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile(uploadField, file.name)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	msg, _ := decode(t, rec)["message"].(string)
	return strings.ToLower(msg)
}

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.User, string, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*models.User)
	return user, args.String(1), args.Error(2)
}

func (m *mockAuthService) Login(ctx context.Context, req models.LoginRequest) (*models.User, string, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*models.User)
	return user, args.String(1), args.Error(2)
}

func (m *mockAuthService) FirebaseEnabled() bool {
	return m.Called().Bool(0)
}

func (m *mockAuthService) FirebaseLogin(ctx context.Context, idToken string) (*models.User, string, error) {
	args := m.Called(ctx, idToken)
	user, _ := args.Get(0).(*models.User)
	return user, args.String(1), args.Error(2)
}

type mockUserService struct{ mock.Mock }

func (m *mockUserService) UpdateProfile(ctx context.Context, actor *models.User, req models.UpdateUserRequest) (*models.User, error) {
	args := m.Called(ctx, actor, req)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserService) Profile(ctx context.Context, id primitive.ObjectID) (*models.UserProfile, error) {
	args := m.Called(ctx, id)
	profile, _ := args.Get(0).(*models.UserProfile)
	return profile, args.Error(1)
}

func (m *mockUserService) List(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUserService) ListAvailable(ctx context.Context, caller *models.User) ([]models.User, error) {
	args := m.Called(ctx, caller)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUserService) ChangeProfileImage(ctx context.Context, actor *models.User, userID primitive.ObjectID, up *media.Upload) (*models.User, error) {
	args := m.Called(ctx, actor, userID, up)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type mockFollowService struct{ mock.Mock }

func (m *mockFollowService) Follow(ctx context.Context, actor *models.User, targetID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, actor, targetID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockFollowService) Unfollow(ctx context.Context, actor *models.User, targetID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, actor, targetID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type mockPostService struct{ mock.Mock }

func (m *mockPostService) Create(ctx context.Context, creator *models.User, req models.CreatePostRequest, up *media.Upload) (*services.PostResult, error) {
	args := m.Called(ctx, creator, req, up)
	res, _ := args.Get(0).(*services.PostResult)
	return res, args.Error(1)
}

func (m *mockPostService) Update(ctx context.Context, actor *models.User, postID primitive.ObjectID, req models.UpdatePostRequest, up *media.Upload) (*services.PostResult, error) {
	args := m.Called(ctx, actor, postID, req, up)
	res, _ := args.Get(0).(*services.PostResult)
	return res, args.Error(1)
}

func (m *mockPostService) List(ctx context.Context, page, limit int) (*models.PostPage, error) {
	args := m.Called(ctx, page, limit)
	res, _ := args.Get(0).(*models.PostPage)
	return res, args.Error(1)
}

func (m *mockPostService) Search(ctx context.Context, term string) ([]models.PostView, error) {
	args := m.Called(ctx, term)
	res, _ := args.Get(0).([]models.PostView)
	return res, args.Error(1)
}

func (m *mockPostService) Details(ctx context.Context, postID primitive.ObjectID) (*models.PostView, error) {
	args := m.Called(ctx, postID)
	res, _ := args.Get(0).(*models.PostView)
	return res, args.Error(1)
}

type mockPostActions struct{ mock.Mock }

func (m *mockPostActions) ToggleLike(ctx context.Context, actor *models.User, postID primitive.ObjectID) (*models.Post, bool, error) {
	args := m.Called(ctx, actor, postID)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Bool(1), args.Error(2)
}

func (m *mockPostActions) ToggleSave(ctx context.Context, actor *models.User, postID primitive.ObjectID) (*models.User, bool, error) {
	args := m.Called(ctx, actor, postID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Bool(1), args.Error(2)
}

func (m *mockPostActions) DeletePost(ctx context.Context, actor *models.User, postID primitive.ObjectID) error {
	return m.Called(ctx, actor, postID).Error(0)
}

type mockChatService struct{ mock.Mock }

func (m *mockChatService) OpenMessage(ctx context.Context, caller *models.User, req models.OpenMessageRequest) (string, bool, error) {
	args := m.Called(ctx, caller, req)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockChatService) Token(caller *models.User, userID string) (string, error) {
	args := m.Called(caller, userID)
	return args.String(0), args.Error(1)
}

type mockNotificationService struct{ mock.Mock }

func (m *mockNotificationService) List(ctx context.Context, recipientID primitive.ObjectID, page, limit int) (*services.NotificationPage, error) {
	args := m.Called(ctx, recipientID, page, limit)
	res, _ := args.Get(0).(*services.NotificationPage)
	return res, args.Error(1)
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNotificationService) MarkRead(ctx context.Context, recipientID primitive.ObjectID, notificationID uint) error {
	return m.Called(ctx, recipientID, notificationID).Error(0)
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}
