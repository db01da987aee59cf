package stats

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/app/stats/types"
	"github.com/canopy-network/validatorstats/pkg/aggregator"
	"github.com/canopy-network/validatorstats/pkg/config"
	statsdb "github.com/canopy-network/validatorstats/pkg/db/stats"
	"github.com/canopy-network/validatorstats/pkg/logging"
	"github.com/canopy-network/validatorstats/pkg/redis"
	"github.com/canopy-network/validatorstats/pkg/reporter/activity"
	reporterworkflow "github.com/canopy-network/validatorstats/pkg/reporter/workflow"
	"github.com/canopy-network/validatorstats/pkg/temporal"
	"github.com/canopy-network/validatorstats/pkg/utils"
)

// namespaceRetention matches the retention of the deployed Temporal namespace.
const namespaceRetention = 7 * 24 * time.Hour

// Initialize wires the stats process. Any failure is fatal.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("validatorstats", utils.Env("CHAIN_ID", ""))
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	store, err := statsdb.New(ctx, logger, cfg.ClickHouseAddr, cfg.ClickHouseCluster, cfg.ChainID)
	if err != nil {
		logger.Fatal("Unable to initialize stats database", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := aggregator.NewService(store, logger, aggregator.Options{
		ChainID:     cfg.ChainID,
		StartHeight: cfg.StartHeight,
		BatchSize:   cfg.BatchSize,
		Metrics:     aggregator.NewMetrics(registry),
	})

	app := &types.App{
		Config:   cfg,
		Store:    store,
		Service:  svc,
		Registry: registry,
		Logger:   logger,
	}

	switch cfg.Scheduler {
	case config.SchedulerTemporal:
		initTemporal(ctx, app)
	case config.SchedulerCron:
		sched, err := NewScheduler(cfg, svc, logger.Named("cron"))
		if err != nil {
			logger.Fatal("Unable to initialize cron scheduler", zap.Error(err))
		}
		app.Triggers = append(app.Triggers, sched)
	default:
		logger.Info("No scheduler enabled, runs are triggered over HTTP only")
	}

	if cfg.HeadStream != "" {
		initHeadTrigger(ctx, app)
	}

	if err := NewServer(app); err != nil {
		logger.Fatal("Unable to initialize server", zap.Error(err))
	}

	return app
}

func initTemporal(ctx context.Context, app *types.App) {
	cfg, logger := app.Config, app.Logger

	temporalClient, err := temporal.NewClient(ctx, logger, cfg.TemporalHostPort, cfg.TemporalNamespace, cfg.TaskQueue, cfg.ChainID)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}
	app.Temporal = temporalClient

	if err := temporalClient.EnsureNamespace(ctx, namespaceRetention); err != nil {
		logger.Fatal("Unable to ensure temporal namespace", zap.Error(err))
	}
	logger.Info("Temporal namespace ready", zap.String("namespace", temporalClient.Namespace))

	activityContext := &activity.Context{
		Logger:  logger,
		Service: app.Service,
	}
	workflowContext := &reporterworkflow.Context{
		TaskQueue:       temporalClient.TaskQueue,
		ActivityContext: activityContext,
	}

	wkr := worker.New(temporalClient.TClient, temporalClient.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     len(aggregator.Kinds),
		MaxConcurrentWorkflowTaskExecutionSize: 10,
		WorkerStopTimeout:                      30 * time.Second,
	})

	wkr.RegisterWorkflowWithOptions(workflowContext.MissedBlocksWorkflow, workflow.RegisterOptions{Name: temporal.MissedBlocksWorkflowName})
	wkr.RegisterWorkflowWithOptions(workflowContext.MissedBlocksStatsWorkflow, workflow.RegisterOptions{Name: temporal.MissedBlocksStatsWorkflowName})
	wkr.RegisterWorkflowWithOptions(workflowContext.RollingAverageWorkflow, workflow.RegisterOptions{Name: temporal.RollingAverageWorkflowName})
	wkr.RegisterWorkflowWithOptions(workflowContext.ValidatorDailyAverageWorkflow, workflow.RegisterOptions{Name: temporal.ValidatorDailyAverageWorkflowName})

	wkr.RegisterActivity(activityContext.MissedBlocks)
	wkr.RegisterActivity(activityContext.MissedBlocksStats)
	wkr.RegisterActivity(activityContext.RollingAverage)
	wkr.RegisterActivity(activityContext.ValidatorDailyAverage)
	app.Worker = wkr

	if err := EnsureSchedules(ctx, app); err != nil {
		logger.Fatal("Unable to ensure schedules", zap.Error(err))
	}
}

func initHeadTrigger(ctx context.Context, app *types.App) {
	cfg, logger := app.Config, app.Logger

	redisClient, err := redis.NewClient(ctx, logger, redis.OptionsFromEnv())
	if err != nil {
		logger.Fatal("Unable to connect to redis", zap.Error(err))
	}
	app.Redis = redisClient

	consumerName, _ := os.Hostname()
	if consumerName == "" {
		consumerName = "validatorstats"
	}

	consumer, err := redis.NewStreamConsumer(redisClient, redis.StreamConsumerConfig{
		Stream:   cfg.HeadStream,
		Group:    cfg.HeadGroup,
		Consumer: consumerName,
		Count:    10,
		Logger:   logger.Named("head"),
	})
	if err != nil {
		logger.Fatal("Unable to create head stream consumer", zap.Error(err))
	}

	app.Triggers = append(app.Triggers, &HeadTrigger{
		Consumer: consumer,
		Runner:   app.Service,
		ChainID:  cfg.ChainID,
		Logger:   logger.Named("head"),
	})
	logger.Info("Head trigger enabled",
		zap.String("stream", cfg.HeadStream),
		zap.String("group", cfg.HeadGroup))
}
