package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/app/stats/types"
	"github.com/canopy-network/validatorstats/pkg/utils"
)

type Controller struct {
	App        *types.App
	AdminToken string
	AuthUser   string
	AuthHash   []byte
	JWTSecret  []byte
	Checks     []HealthCheck
}

// NewController returns a new controller. A plain ADMIN_PASSWORD is hashed once here.
func NewController(app *types.App) *Controller {
	cfg := app.Config
	phash, err := utils.HashOrRead(cfg.AdminPassword)
	if err != nil {
		app.Logger.Warn("Unable to hash admin password, session login disabled", zap.Error(err))
	}

	return &Controller{
		App:        app,
		AdminToken: cfg.AdminToken,
		AuthUser:   cfg.AdminUser,
		AuthHash:   phash,
		JWTSecret:  []byte(cfg.SessionSecret),
		Checks:     defaultChecks(app),
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Echo back the origin to allow credentials with any origin
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/login", c.HandleAdminLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleAdminLogout).Methods(http.MethodPost)

	// Triggers
	r.Handle("/api/aggregate/missed-blocks", c.RequireAuth(http.HandlerFunc(c.HandleMissedBlocks))).Methods(http.MethodPost)
	r.Handle("/api/aggregate/missed-blocks-stats", c.RequireAuth(http.HandlerFunc(c.HandleMissedBlocksStats))).Methods(http.MethodPost)
	r.Handle("/api/aggregate/rolling/{window}", c.RequireAuth(http.HandlerFunc(c.HandleRollingAverage))).Methods(http.MethodPost)
	r.Handle("/api/aggregate/validator-daily", c.RequireAuth(http.HandlerFunc(c.HandleValidatorDaily))).Methods(http.MethodPost)

	// Reads
	r.Handle("/api/checkpoint", c.RequireAuth(http.HandlerFunc(c.HandleCheckpoint))).Methods(http.MethodGet)
	r.Handle("/api/state", c.RequireAuth(http.HandlerFunc(c.HandleState))).Methods(http.MethodGet)
	r.Handle("/api/averages", c.RequireAuth(http.HandlerFunc(c.HandleAverages))).Methods(http.MethodGet)
	r.Handle("/api/heights/{height}", c.RequireAuth(http.HandlerFunc(c.HandleHeight))).Methods(http.MethodGet)

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if c.App.Registry != nil {
		gatherer = c.App.Registry
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
