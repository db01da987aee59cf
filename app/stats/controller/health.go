package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/canopy-network/validatorstats/app/stats/types"
)

// HealthCheck checks one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func defaultChecks(app *types.App) []HealthCheck {
	var checks []HealthCheck
	if app.Store != nil {
		checks = append(checks, HealthCheck{Name: "clickhouse", Check: app.Store.Ping})
	}
	if app.Temporal != nil {
		checks = append(checks, HealthCheck{Name: "temporal", Check: func(ctx context.Context) error {
			_, err := app.Temporal.Health(ctx)
			return err
		}})
	}
	if app.Redis != nil {
		checks = append(checks, HealthCheck{Name: "redis", Check: app.Redis.Health})
	}
	return checks
}

// HandleHealth runs every check with a short timeout and answers 503 if any failed.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(c.Checks)), CheckedAt: time.Now().UTC()}
	for _, hc := range c.Checks {
		if err := hc.Check(ctx); err != nil {
			resp.Checks[hc.Name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[hc.Name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
