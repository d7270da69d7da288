package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/snapgram/backend/internal/media"
	"github.com/anonto42/snapgram/backend/internal/middleware"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultMaxUploadBytes bounds an uploaded image when no limit is configured
const DefaultMaxUploadBytes = 10 << 20

// uploadField is the multipart field images arrive in
const uploadField = "file"

func objectIDParam(c echo.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

func intQuery(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}

// currentUser returns the authenticated caller. Routes using it are always
// behind the auth middleware.
func currentUser(c echo.Context) (*models.User, error) {
	user := middleware.CurrentUser(c)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return user, nil
}

// readUpload reads the optional image in the "file" field. It returns nil
// when no file was sent.
func readUpload(c echo.Context, maxBytes int64) (*media.Upload, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid file upload")
	}
	if fh.Size > maxBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Image is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid file upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid file upload")
	}
	if int64(len(data)) > maxBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Image is too large")
	}
	if len(data) == 0 {
		return nil, nil
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "File must be an image")
	}
	return &media.Upload{Data: data, ContentType: contentType, Filename: fh.Filename}, nil
}
