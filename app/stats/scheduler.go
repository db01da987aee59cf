package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/pkg/aggregator"
	"github.com/canopy-network/validatorstats/pkg/config"
)

// Runner is the aggregator entry point used by the local triggers.
type Runner interface {
	RunKind(ctx context.Context, kind aggregator.Kind) (aggregator.Result, error)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs every configured job in-process when Temporal is disabled.
type Scheduler struct {
	Cron    *cron.Cron
	Runner  Runner
	Logger  *zap.Logger
	Timeout time.Duration

	ctx context.Context
}

// NewScheduler registers one cron entry per job. Specs take an optional seconds field.
func NewScheduler(cfg *config.Config, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		Cron:    cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		Runner:  runner,
		Logger:  logger,
		Timeout: 10 * time.Minute,
		ctx:     context.Background(),
	}

	for _, name := range config.JobNames() {
		job, ok := cfg.Jobs[name]
		if !ok {
			continue
		}
		kind, err := aggregator.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", name, err)
		}
		if _, err := s.Cron.AddFunc(job.CronSpec(), func() { s.run(kind) }); err != nil {
			return nil, fmt.Errorf("job %s: invalid cron spec %q: %w", name, job.CronSpec(), err)
		}
		logger.Info("Scheduled job", zap.String("job", name), zap.String("spec", job.CronSpec()))
	}
	return s, nil
}

func (s *Scheduler) run(kind aggregator.Kind) {
	// keep each run bounded
	ctx, cancel := context.WithTimeout(s.ctx, s.Timeout)
	defer cancel()

	res, err := s.Runner.RunKind(ctx, kind)
	if err != nil {
		s.Logger.Error("Scheduled run failed", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	s.Logger.Debug("Scheduled run finished", zap.String("kind", string(kind)), zap.String("status", res.Status()))
}

// Start starts the cron loop. Runs are bound to ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.Cron.Start()
	s.Logger.Info("Cron scheduler started", zap.Int("entries", len(s.Cron.Entries())))
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
}
