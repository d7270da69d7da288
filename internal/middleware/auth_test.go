package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/auth"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubUsers map[primitive.ObjectID]*models.User

func (s stubUsers) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user", id.Hex())
	}
	c := *u
	return &c, nil
}

func TestJWTAuthMiddleware(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	known := &models.User{ID: primitive.NewObjectID(), Name: "Ada", Password: "hash"}
	users := stubUsers{known.ID: known}

	validToken, err := issuer.Issue(known.ID.Hex())
	require.NoError(t, err)
	orphanToken, err := issuer.Issue(primitive.NewObjectID().Hex())
	require.NoError(t, err)
	badIDToken, err := issuer.Issue("not-an-object-id")
	require.NoError(t, err)
	foreignToken, err := auth.NewTokenIssuer("other", time.Hour).Issue(known.ID.Hex())
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusForbidden},
		{"wrong secret", "Bearer " + foreignToken, http.StatusForbidden},
		{"malformed user id", "Bearer " + badIDToken, http.StatusForbidden},
		{"unknown user", "Bearer " + orphanToken, http.StatusNotFound},
		{"valid", "Bearer " + validToken, http.StatusOK},
		{"lowercase scheme", "bearer " + validToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen *models.User
			h := JWTAuthMiddleware(issuer, users)(func(c echo.Context) error {
				seen = CurrentUser(c)
				return c.NoContent(http.StatusOK)
			})

			err := h(c)
			if tt.wantStatus == http.StatusOK {
				require.NoError(t, err)
				require.NotNil(t, seen)
				assert.Equal(t, known.ID, seen.ID)
				assert.Empty(t, seen.Password)
				return
			}

			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tt.wantStatus, he.Code)
			assert.Nil(t, seen)
		})
	}
}

func TestCurrentUserWithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Nil(t, CurrentUser(c))
}
