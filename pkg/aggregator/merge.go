package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
	statsdb "github.com/canopy-network/validatorstats/pkg/db/stats"
)

// BlockStats is the merged per-height view of a block and its analytics.
// A height with analytics but no block is a placeholder with HasBlock false.
type BlockStats struct {
	Height       uint64 `json:"height"`
	HasBlock     bool   `json:"has_block"`
	HasAnalytics bool   `json:"has_analytics"`

	ProposerAddress string    `json:"proposer_address,omitempty"`
	Validators      []string  `json:"validators,omitempty"`
	PrecommitsCount uint32    `json:"precommits_count"`
	ValidatorsCount uint32    `json:"validators_count"`
	Time            time.Time `json:"time"`

	Precommits       uint32  `json:"precommits"`
	AverageBlockTime float64 `json:"average_block_time"`
	TimeDiff         float64 `json:"time_diff"`
	VotingPower      float64 `json:"voting_power"`
}

func blockStats(b *statsmodels.Block) *BlockStats {
	return &BlockStats{
		Height:          b.Height,
		HasBlock:        true,
		ProposerAddress: b.ProposerAddress,
		Validators:      b.Validators,
		PrecommitsCount: b.PrecommitsCount,
		ValidatorsCount: b.ValidatorsCount,
		Time:            b.Time,
	}
}

func (b *BlockStats) setAnalytics(a *statsmodels.Analytics) {
	b.HasAnalytics = true
	b.Precommits = a.Precommits
	b.AverageBlockTime = a.AverageBlockTime
	b.TimeDiff = a.TimeDiff
	b.VotingPower = a.VotingPower
}

// VotedSet returns the addresses that voted at this height.
func (b *BlockStats) VotedSet() map[string]struct{} {
	voted := make(map[string]struct{}, len(b.Validators))
	for _, addr := range b.Validators {
		voted[addr] = struct{}{}
	}
	return voted
}

// MergedBlocks is the merged view of a height range.
type MergedBlocks struct {
	ByHeight         map[uint64]*BlockStats
	MissingAnalytics []uint64
	MissingBlocks    []uint64
}

// Ascending returns the records in strictly increasing height order.
func (m *MergedBlocks) Ascending() []*BlockStats {
	out := make([]*BlockStats, 0, len(m.ByHeight))
	for _, b := range m.ByHeight {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out
}

// Merger joins blocks and analytics by height.
type Merger struct {
	Store  statsdb.Store
	Logger *zap.Logger
	Pool   pond.Pool
}

// NewMerger returns a merger with a two-worker pool for the parallel reads.
func NewMerger(store statsdb.Store, logger *zap.Logger) *Merger {
	return &Merger{Store: store, Logger: logger, Pool: pond.NewPool(2)}
}

// Merge builds the merged view of (start, end]. Missing analytics or missing blocks are
// reported on the result and logged, never returned as errors.
func (m *Merger) Merge(ctx context.Context, start, end uint64) (*MergedBlocks, error) {
	var (
		blocks       []*statsmodels.Block
		analytics    []*statsmodels.Analytics
		blocksErr    error
		analyticsErr error
	)

	group := m.Pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	group.Submit(func() {
		if err := groupCtx.Err(); err != nil {
			blocksErr = err
			return
		}
		blocks, blocksErr = m.Store.GetBlocksInRange(groupCtx, start, end)
	})
	group.Submit(func() {
		if err := groupCtx.Err(); err != nil {
			analyticsErr = err
			return
		}
		analytics, analyticsErr = m.Store.GetAnalyticsInRange(groupCtx, start, end)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		m.Logger.Warn("parallel range fetch encountered error",
			zap.Uint64("start", start),
			zap.Uint64("end", end),
			zap.Error(err),
		)
	}
	if blocksErr != nil {
		return nil, fmt.Errorf("fetch blocks (%d, %d]: %w", start, end, blocksErr)
	}
	if analyticsErr != nil {
		return nil, fmt.Errorf("fetch analytics (%d, %d]: %w", start, end, analyticsErr)
	}

	return m.join(blocks, analytics), nil
}

func (m *Merger) join(blocks []*statsmodels.Block, analytics []*statsmodels.Analytics) *MergedBlocks {
	merged := &MergedBlocks{ByHeight: make(map[uint64]*BlockStats, len(blocks))}

	for _, b := range blocks {
		merged.ByHeight[b.Height] = blockStats(b)
	}

	for _, a := range analytics {
		rec, ok := merged.ByHeight[a.Height]
		if !ok {
			rec = &BlockStats{Height: a.Height}
			merged.ByHeight[a.Height] = rec
			merged.MissingBlocks = append(merged.MissingBlocks, a.Height)
			m.Logger.Warn("analytics without block", zap.Uint64("height", a.Height))
		}
		rec.setAnalytics(a)
	}

	for _, rec := range merged.ByHeight {
		if rec.HasBlock && !rec.HasAnalytics {
			merged.MissingAnalytics = append(merged.MissingAnalytics, rec.Height)
		}
	}
	sort.Slice(merged.MissingAnalytics, func(i, j int) bool { return merged.MissingAnalytics[i] < merged.MissingAnalytics[j] })
	sort.Slice(merged.MissingBlocks, func(i, j int) bool { return merged.MissingBlocks[i] < merged.MissingBlocks[j] })
	if len(merged.MissingAnalytics) > 0 {
		m.Logger.Warn("blocks without analytics",
			zap.Int("count", len(merged.MissingAnalytics)),
			zap.Uint64("first", merged.MissingAnalytics[0]))
		m.Logger.Debug("blocks without analytics", zap.Uint64s("heights", merged.MissingAnalytics))
	}
	if len(merged.MissingBlocks) > 0 {
		m.Logger.Debug("analytics without blocks", zap.Uint64s("heights", merged.MissingBlocks))
	}
	return merged
}

// HeightStats is the merged view of one height with its validator-set snapshot.
// Missed lists the active validators that did not vote.
type HeightStats struct {
	Stats        *BlockStats               `json:"stats"`
	ValidatorSet *statsmodels.ValidatorSet `json:"validator_set,omitempty"`
	Missed       []string                  `json:"missed"`
}

// MergeHeight builds the view of a single height from point lookups. It returns ErrHeightNotFound
// when neither a block nor analytics are stored at height.
func (m *Merger) MergeHeight(ctx context.Context, height uint64) (*HeightStats, error) {
	block, err := m.Store.GetBlockByHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	analytics, err := m.Store.GetAnalyticsByHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	if block == nil && analytics == nil {
		return nil, fmt.Errorf("%w: %d", ErrHeightNotFound, height)
	}
	set, err := m.Store.GetValidatorSetByHeight(ctx, height)
	if err != nil {
		return nil, err
	}

	rec := &BlockStats{Height: height}
	if block != nil {
		rec = blockStats(block)
	}
	if analytics != nil {
		rec.setAnalytics(analytics)
	}

	out := &HeightStats{Stats: rec, ValidatorSet: set, Missed: make([]string, 0)}
	if block != nil && set != nil {
		voted := rec.VotedSet()
		for _, member := range set.Members {
			if _, ok := voted[member.Address]; !ok {
				out.Missed = append(out.Missed, member.Address)
			}
		}
		sort.Strings(out.Missed)
	}
	return out, nil
}
