package handlers

import (
	"net/http"
	"testing"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newAuthServer(svc *mockAuthService) *AuthHandler {
	return NewAuthHandler(svc)
}

func TestAuthHandler_Signup(t *testing.T) {
	user := newCaller()
	req := models.SignupRequest{Name: "Ada Lovelace", Email: "ada@example.com", Password: "secret1"}

	t.Run("created", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("FirebaseEnabled").Return(false)
		svc.On("Signup", mock.Anything, req).Return(user, "tok", nil)
		e := newTestEcho()
		newAuthServer(svc).RegisterAuthRoutes(e.Group("/api/user"))

		rec := doJSON(t, e, http.MethodPost, "/api/user/signup", req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "tok", body["token"])
		assert.Equal(t, "User created successfully", body["message"])
		assert.NotContains(t, rec.Body.String(), "password")
		svc.AssertExpectations(t)
	})

	t.Run("missing email", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("FirebaseEnabled").Return(false)
		e := newTestEcho()
		newAuthServer(svc).RegisterAuthRoutes(e.Group("/api/user"))

		rec := doJSON(t, e, http.MethodPost, "/api/user/signup", map[string]string{"name": "Ada", "password": "secret1"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, message(t, rec), "email is required")
		svc.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
	})

	t.Run("email taken", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("FirebaseEnabled").Return(false)
		svc.On("Signup", mock.Anything, req).Return(nil, "", apperrors.ErrEmailTaken)
		e := newTestEcho()
		newAuthServer(svc).RegisterAuthRoutes(e.Group("/api/user"))

		rec := doJSON(t, e, http.MethodPost, "/api/user/signup", req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	req := models.LoginRequest{Email: "ada@example.com", Password: "wrong"}

	svc := &mockAuthService{}
	svc.On("FirebaseEnabled").Return(false)
	svc.On("Login", mock.Anything, req).Return(nil, "", apperrors.ErrInvalidCredentials)
	e := newTestEcho()
	newAuthServer(svc).RegisterAuthRoutes(e.Group("/api/user"))

	rec := doJSON(t, e, http.MethodPost, "/api/user/login", req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "incorrect email or password", message(t, rec))
}

func TestAuthHandler_FirebaseLogin(t *testing.T) {
	t.Run("not mounted without firebase", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("FirebaseEnabled").Return(false)
		e := newTestEcho()
		newAuthServer(svc).RegisterAuthRoutes(e.Group("/api/user"))

		rec := doJSON(t, e, http.MethodPost, "/api/user/firebase-login", map[string]string{"idToken": "x"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("exchanges the token", func(t *testing.T) {
		user := newCaller()
		svc := &mockAuthService{}
		svc.On("FirebaseEnabled").Return(true)
		svc.On("FirebaseLogin", mock.Anything, "firebase-id-token").Return(user, "tok", nil)
		e := newTestEcho()
		newAuthServer(svc).RegisterAuthRoutes(e.Group("/api/user"))

		rec := doJSON(t, e, http.MethodPost, "/api/user/firebase-login", map[string]string{"idToken": "firebase-id-token"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "tok", decode(t, rec)["token"])
	})

	t.Run("rejected token", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("FirebaseEnabled").Return(true)
		svc.On("FirebaseLogin", mock.Anything, "forged").
			Return(nil, "", &apperrors.AuthError{Message: "invalid firebase ID token", Invalid: true})
		e := newTestEcho()
		newAuthServer(svc).RegisterAuthRoutes(e.Group("/api/user"))

		rec := doJSON(t, e, http.MethodPost, "/api/user/firebase-login", map[string]string{"idToken": "forged"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
