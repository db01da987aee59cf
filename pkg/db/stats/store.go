package stats

import (
	"context"
	"time"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

// Store describes the per-chain operations used by the aggregators.
// Range queries are (start, end] and sorted ascending by height.
type Store interface {
	DatabaseName() string
	Close() error

	// --- Upstream (written by the chain watcher)

	GetLatestBlockHeight(ctx context.Context) (uint64, error)
	GetBlocksInRange(ctx context.Context, start, end uint64) ([]*statsmodels.Block, error)
	GetBlockByHeight(ctx context.Context, height uint64) (*statsmodels.Block, error)
	GetProposedHeightsSince(ctx context.Context, since time.Time) ([]*statsmodels.ProposedHeight, error)
	GetValidatorSetsInRange(ctx context.Context, start, end uint64) (map[uint64]*statsmodels.ValidatorSet, error)
	GetValidatorSetByHeight(ctx context.Context, height uint64) (*statsmodels.ValidatorSet, error)
	GetAnalyticsInRange(ctx context.Context, start, end uint64) ([]*statsmodels.Analytics, error)
	GetAnalyticsByHeight(ctx context.Context, height uint64) (*statsmodels.Analytics, error)
	GetAnalyticsByHeights(ctx context.Context, heights []uint64) ([]*statsmodels.Analytics, error)
	GetAnalyticsSince(ctx context.Context, since time.Time) ([]*statsmodels.Analytics, error)
	GetValidators(ctx context.Context) ([]*statsmodels.Validator, error)

	// --- Missed blocks

	// GetMissedBlockCumulatives returns, per pair of the given proposers, the cumulative row with the
	// greatest updated_at not above asOf.
	GetMissedBlockCumulatives(ctx context.Context, proposers []string, asOf uint64) (map[statsmodels.PairKey]*statsmodels.MissedBlockCumulative, error)
	// CommitMissedBlocks writes the events of a batch followed by its cumulative rows.
	CommitMissedBlocks(ctx context.Context, events []*statsmodels.MissedBlock, cumulatives []*statsmodels.MissedBlockCumulative) error
	CountMissedBlocksByPair(ctx context.Context, start, end uint64) ([]*statsmodels.MissedPairCount, error)
	GetMissedBlockStats(ctx context.Context, asOf uint64) (map[statsmodels.PairKey]*statsmodels.MissedBlockStats, error)
	InsertMissedBlockStats(ctx context.Context, rows []*statsmodels.MissedBlockStats) error

	// --- Checkpoints

	// GetCheckpoint returns nil without error when the chain has no checkpoint yet.
	GetCheckpoint(ctx context.Context, chainID string) (*statsmodels.Checkpoint, error)
	UpsertCheckpoint(ctx context.Context, cp *statsmodels.Checkpoint) error

	// --- Averages

	InsertRollingAverage(ctx context.Context, avg *statsmodels.RollingAverage) error
	UpsertChainAverage(ctx context.Context, avg *statsmodels.ChainAverage) error
	GetChainAverages(ctx context.Context, chainID string) ([]*statsmodels.ChainAverage, error)
	InsertValidatorDailyAverages(ctx context.Context, rows []*statsmodels.ValidatorDailyAverage) error
}

var _ Store = (*DB)(nil)
