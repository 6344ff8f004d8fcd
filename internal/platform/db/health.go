package db

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Check probes one backing dependency.
type Check func(ctx context.Context) error

// Health aggregates dependency checks (database, lock store, review queue)
// behind a single endpoint.
type Health struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

func NewHealth(timeout time.Duration) *Health {
	return &Health{checks: make(map[string]Check), timeout: timeout}
}

// Register adds or replaces a named check.
func (h *Health) Register(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// PoolCheck pings the connection pool.
func PoolCheck(pool *pgxpool.Pool) Check {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

// DependencyStatus is the outcome of a single check.
type DependencyStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Run executes every check with the configured timeout.
func (h *Health) Run(ctx context.Context) []DependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	statuses := make([]DependencyStatus, 0, len(names))
	for _, name := range names {
		h.mu.RLock()
		check := h.checks[name]
		h.mu.RUnlock()

		st := DependencyStatus{Name: name, Healthy: true}
		if err := check(ctx); err != nil {
			st.Healthy = false
			st.Error = err.Error()
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// Handler returns 200 when every dependency is healthy and 503 otherwise.
func (h *Health) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		statuses := h.Run(c.Request().Context())
		code, status := http.StatusOK, "healthy"
		for _, st := range statuses {
			if !st.Healthy {
				code, status = http.StatusServiceUnavailable, "unhealthy"
				break
			}
		}
		return c.JSON(code, map[string]interface{}{
			"status":       status,
			"dependencies": statuses,
		})
	}
}
