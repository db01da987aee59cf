package aggregator

import (
	"context"
	"time"

	"go.uber.org/zap"

	statsdb "github.com/canopy-network/validatorstats/pkg/db/stats"
)

// Options configures a Service.
type Options struct {
	ChainID     string
	StartHeight uint64
	BatchSize   uint64
	Metrics     *Metrics
	Now         func() time.Time
}

// Service exposes one invokable operation per aggregator. Every caller in the process
// (HTTP, Temporal activities, cron, head trigger) shares one Service and thus one Coordinator.
type Service struct {
	Coordinator       *Coordinator
	Progress          *ProgressTracker
	MissedBlocks      *MissedBlocksAggregator
	MissedBlocksStats *MissedBlocksStatsAggregator
	Rolling           *RollingAggregator
	Store             statsdb.Store
	Logger            *zap.Logger
}

// NewService wires the aggregators around store.
func NewService(store statsdb.Store, logger *zap.Logger, opts Options) *Service {
	progress := &ProgressTracker{
		ChainID:     opts.ChainID,
		StartHeight: opts.StartHeight,
		Store:       store,
		Logger:      logger.Named("progress"),
		Metrics:     opts.Metrics,
		Now:         opts.Now,
	}
	return &Service{
		Coordinator: NewCoordinator(opts.Metrics),
		Progress:    progress,
		MissedBlocks: &MissedBlocksAggregator{
			Store:     store,
			Merger:    NewMerger(store, logger.Named("merger")),
			Progress:  progress,
			BatchSize: opts.BatchSize,
			Logger:    logger.Named("missed_blocks"),
			Metrics:   opts.Metrics,
			Now:       opts.Now,
		},
		MissedBlocksStats: &MissedBlocksStatsAggregator{
			Store:     store,
			Progress:  progress,
			BatchSize: opts.BatchSize,
			Logger:    logger.Named("missed_blocks_stats"),
			Now:       opts.Now,
		},
		Rolling: &RollingAggregator{
			ChainID: opts.ChainID,
			Store:   store,
			Logger:  logger.Named("rolling"),
			Now:     opts.Now,
		},
		Store:  store,
		Logger: logger,
	}
}

// RunMissedBlocks runs one missed-block batch unless one is in flight.
func (s *Service) RunMissedBlocks(ctx context.Context) (Result, error) {
	return s.Coordinator.Run(ctx, KindMissedBlocks, s.MissedBlocks.Run)
}

// RunMissedBlocksStats runs one legacy stats batch unless one is in flight.
func (s *Service) RunMissedBlocksStats(ctx context.Context) (Result, error) {
	return s.Coordinator.Run(ctx, KindMissedBlocksStats, s.MissedBlocksStats.Run)
}

// RunRollingAverage runs the window named by selector (m|minute, h|hour, d|day).
func (s *Service) RunRollingAverage(ctx context.Context, selector string) (Result, error) {
	w, err := ParseWindow(selector)
	if err != nil {
		return Result{}, err
	}
	return s.Coordinator.Run(ctx, w.Kind, func(ctx context.Context) (Result, error) {
		return s.Rolling.RunWindow(ctx, w)
	})
}

// RunValidatorDailyAverage writes the per-validator trailing-24h averages.
func (s *Service) RunValidatorDailyAverage(ctx context.Context) (Result, error) {
	return s.Coordinator.Run(ctx, KindValidatorDaily, s.Rolling.RunValidatorDaily)
}

// RunKind dispatches by kind name.
func (s *Service) RunKind(ctx context.Context, kind Kind) (Result, error) {
	switch kind {
	case KindMissedBlocks:
		return s.RunMissedBlocks(ctx)
	case KindMissedBlocksStats:
		return s.RunMissedBlocksStats(ctx)
	case KindRollingMinute:
		return s.RunRollingAverage(ctx, WindowMinute.Code)
	case KindRollingHour:
		return s.RunRollingAverage(ctx, WindowHour.Code)
	case KindRollingDay:
		return s.RunRollingAverage(ctx, WindowDay.Code)
	case KindValidatorDaily:
		return s.RunValidatorDailyAverage(ctx)
	default:
		return Result{}, ErrUnknownKind
	}
}

// Checkpoint returns the chain's decoded checkpoint.
func (s *Service) Checkpoint(ctx context.Context) (Progress, error) {
	return s.Progress.Read(ctx)
}

// Height returns the merged view of one height. It does not take a coordinator slot.
func (s *Service) Height(ctx context.Context, height uint64) (*HeightStats, error) {
	return s.MissedBlocks.Merger.MergeHeight(ctx, height)
}

// Close stops the merger's worker pool.
func (s *Service) Close() {
	if s.MissedBlocks != nil && s.MissedBlocks.Merger != nil && s.MissedBlocks.Merger.Pool != nil {
		s.MissedBlocks.Merger.Pool.StopAndWait()
	}
}
