package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// HealthStatus is the aggregated result of all registered probes
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker aggregates dependency probes for the health endpoint
type HealthChecker struct {
	checks map[string]CheckFunc
}

// NewHealthChecker creates a health checker with a database probe when a pool
// is supplied
func NewHealthChecker(dbPool *pgxpool.Pool) *HealthChecker {
	h := &HealthChecker{checks: make(map[string]CheckFunc)}
	if dbPool != nil {
		h.Register("database", func(ctx context.Context) error {
			return dbPool.Ping(ctx)
		})
	}
	return h
}

// Register adds a named dependency probe
func (h *HealthChecker) Register(name string, check CheckFunc) {
	h.checks[name] = check
}

// Check runs every registered probe with a short per-probe timeout
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string, len(h.checks)),
	}

	for name, check := range h.checks {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(probeCtx)
		cancel()

		if err != nil {
			status.Checks[name] = "unhealthy: " + err.Error()
			status.Status = "unhealthy"
			continue
		}
		status.Checks[name] = "healthy"
	}

	return status
}

// HealthHandler serves the aggregated health status as JSON
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(status)
	}
}
