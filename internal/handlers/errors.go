package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/pkg/logging"
	"github.com/labstack/echo/v4"
)

// httpError translates a service error into the HTTP error echo renders as
// {"message": ...}.
func httpError(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case apperrors.IsValidationError(err), apperrors.IsConflict(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperrors.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, apperrors.ErrToggleContended):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case apperrors.IsForbidden(err):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}

	var authErr *apperrors.AuthError
	if errors.As(err, &authErr) {
		if authErr.Invalid {
			return echo.NewHTTPError(http.StatusForbidden, authErr.Message)
		}
		return echo.NewHTTPError(http.StatusUnauthorized, authErr.Message)
	}

	logger := logging.FromContext(c.Request().Context(), slog.Default())
	var extErr *apperrors.ExternalServiceError
	if errors.As(err, &extErr) {
		logger.Error("external service failed", "service", extErr.Service, "path", c.Path(), "error", extErr.Err)
		return echo.NewHTTPError(http.StatusInternalServerError, extErr.Service+" service unavailable")
	}

	logger.Error("request failed", "path", c.Path(), "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
}
