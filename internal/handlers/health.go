package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthCheckFunc reports whether one dependency is reachable
type HealthCheckFunc func(ctx context.Context) error

// HealthHandler answers liveness probes and, when checks are given, pings
// the backing stores.
type HealthHandler struct {
	checks  map[string]HealthCheckFunc
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler running checks on every probe
func NewHealthHandler(checks map[string]HealthCheckFunc) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

func (h *HealthHandler) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "healthy", http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			deps[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	return c.JSON(code, echo.Map{
		"status":       status,
		"service":      "snapgram-api",
		"dependencies": deps,
	})
}
