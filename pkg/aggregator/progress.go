package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
	statsdb "github.com/canopy-network/validatorstats/pkg/db/stats"
)

// Metric names a checkpointed aggregator.
type Metric string

const (
	MetricMissedBlocks      Metric = "missed_blocks"
	MetricMissedBlocksStats Metric = "missed_blocks_stats"
)

// Progress is the decoded checkpoint of a chain. Unset heights are reported as the start height.
type Progress struct {
	ChainID                string    `json:"chain_id"`
	MissedBlockHeight      uint64    `json:"last_processed_missed_block_height"`
	MissedBlockTime        time.Time `json:"last_processed_missed_block_time"`
	MissedBlockStatsHeight uint64    `json:"last_processed_missed_block_stats_height"`
	MissedBlockStatsTime   time.Time `json:"last_processed_missed_block_stats_time"`
}

// ProgressTracker reads and advances the single checkpoint row of a chain.
type ProgressTracker struct {
	ChainID     string
	StartHeight uint64
	Store       statsdb.Store
	Logger      *zap.Logger
	Metrics     *Metrics
	Now         func() time.Time

	mu sync.Mutex
}

func (p *ProgressTracker) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Read returns both checkpoint heights.
func (p *ProgressTracker) Read(ctx context.Context) (Progress, error) {
	row, err := p.Store.GetCheckpoint(ctx, p.ChainID)
	if err != nil {
		return Progress{}, fmt.Errorf("read checkpoint: %w", err)
	}
	return p.decode(row), nil
}

func (p *ProgressTracker) decode(row *statsmodels.Checkpoint) Progress {
	prog := Progress{
		ChainID:                p.ChainID,
		MissedBlockHeight:      p.StartHeight,
		MissedBlockStatsHeight: p.StartHeight,
	}
	if row == nil {
		return prog
	}
	if row.LastProcessedMissedBlockHeight != 0 {
		prog.MissedBlockHeight = row.LastProcessedMissedBlockHeight
		prog.MissedBlockTime = row.LastProcessedMissedBlockTime
	}
	if row.LastProcessedMissedBlockStatsHeight != 0 {
		prog.MissedBlockStatsHeight = row.LastProcessedMissedBlockStatsHeight
		prog.MissedBlockStatsTime = row.LastProcessedMissedBlockStatsTime
	}
	return prog
}

// Advance sets metric's checkpoint to height. It must be the last write of a successful batch.
// Moving a checkpoint backwards fails with ErrCheckpointRegress.
func (p *ProgressTracker) Advance(ctx context.Context, metric Metric, height uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	row, err := p.Store.GetCheckpoint(ctx, p.ChainID)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	prog := p.decode(row)
	now := p.now()

	switch metric {
	case MetricMissedBlocks:
		if height < prog.MissedBlockHeight {
			return fmt.Errorf("%w: %s %d -> %d", ErrCheckpointRegress, metric, prog.MissedBlockHeight, height)
		}
		prog.MissedBlockHeight = height
		prog.MissedBlockTime = now
	case MetricMissedBlocksStats:
		if height < prog.MissedBlockStatsHeight {
			return fmt.Errorf("%w: %s %d -> %d", ErrCheckpointRegress, metric, prog.MissedBlockStatsHeight, height)
		}
		prog.MissedBlockStatsHeight = height
		prog.MissedBlockStatsTime = now
	default:
		return fmt.Errorf("unknown checkpoint metric %q", metric)
	}

	err = p.Store.UpsertCheckpoint(ctx, &statsmodels.Checkpoint{
		ChainID:                             p.ChainID,
		LastProcessedMissedBlockHeight:      prog.MissedBlockHeight,
		LastProcessedMissedBlockTime:        prog.MissedBlockTime,
		LastProcessedMissedBlockStatsHeight: prog.MissedBlockStatsHeight,
		LastProcessedMissedBlockStatsTime:   prog.MissedBlockStatsTime,
		UpdatedAt:                           now,
	})
	if err != nil {
		return fmt.Errorf("advance %s checkpoint to %d: %w", metric, height, err)
	}

	p.Metrics.setCheckpoint(metric, height)
	p.Logger.Debug("Checkpoint advanced", zap.String("metric", string(metric)), zap.Uint64("height", height))
	return nil
}
