package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// Pinger is satisfied by *database.Database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck is an extra named probe, such as a writable backup directory.
type HealthCheck func(ctx context.Context) error

type HealthController struct {
	db      Pinger
	version string
	checks  map[string]HealthCheck
}

func NewHealthController(db Pinger, version string) *HealthController {
	return &HealthController{
		db:      db,
		version: version,
		checks:  make(map[string]HealthCheck),
	}
}

// AddCheck registers a probe reported under name.
func (h *HealthController) AddCheck(name string, check HealthCheck) *HealthController {
	h.checks[name] = check
	return h
}

func (h *HealthController) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
		status = "unhealthy"
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			checks[name] = "error: " + err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}
	if checks["database"] != "ok" {
		status = "unhealthy"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}

// Ping is the liveness probe.
func (h *HealthController) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
