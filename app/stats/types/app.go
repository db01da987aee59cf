package types

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/pkg/aggregator"
	"github.com/canopy-network/validatorstats/pkg/config"
	statsdb "github.com/canopy-network/validatorstats/pkg/db/stats"
	"github.com/canopy-network/validatorstats/pkg/redis"
	"github.com/canopy-network/validatorstats/pkg/temporal"
)

// Trigger is a local run source started next to the HTTP server.
type Trigger interface {
	Start(ctx context.Context)
	Stop()
}

type App struct {
	Config *config.Config

	// ClickHouse store of the chain
	Store *statsdb.DB

	// Aggregators shared by every caller
	Service *aggregator.Service

	// Prometheus registry served on /metrics
	Registry *prometheus.Registry

	// Temporal client and worker; nil unless the temporal scheduler is enabled
	Temporal *temporal.Client
	Worker   worker.Worker

	// Redis client of the head trigger; nil unless a head stream is configured
	Redis *redis.Client

	// Cron scheduler and head trigger
	Triggers []Trigger

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// Start starts the worker, the triggers and the HTTP server, then blocks until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.Worker != nil {
		if err := a.Worker.Start(); err != nil {
			a.Logger.Fatal("Unable to start worker", zap.Error(err))
		}
		a.Logger.Info("Worker started", zap.String("task_queue", a.Temporal.TaskQueue))
	}

	for _, t := range a.Triggers {
		t.Start(ctx)
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.Stop()
}

// Stop drains the server first so no request starts a run while the pools close.
func (a *App) Stop() {
	if a.Server != nil {
		a.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = a.Server.Shutdown(shutdownCtx)
		cancel()
	}

	for _, t := range a.Triggers {
		t.Stop()
	}

	if a.Worker != nil {
		a.Logger.Info("Stopping worker")
		a.Worker.Stop()
	}

	if a.Service != nil {
		a.Service.Close()
	}

	if a.Temporal != nil {
		a.Temporal.Close()
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}

	if a.Store != nil {
		a.Logger.Info("closing database connection")
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
