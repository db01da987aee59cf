package aggregator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
	statsdb "github.com/canopy-network/validatorstats/pkg/db/stats"
	"github.com/canopy-network/validatorstats/pkg/utils"
)

// MissedBlocksAggregator computes per-(proposer, voter) miss/total counters over
// (checkpoint, min(checkpoint+BatchSize, latest)] and commits them before advancing the checkpoint.
type MissedBlocksAggregator struct {
	Store     statsdb.Store
	Merger    *Merger
	Progress  *ProgressTracker
	BatchSize uint64
	Logger    *zap.Logger
	Metrics   *Metrics
	Now       func() time.Time
}

func (a *MissedBlocksAggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// batchRange clamps (start, start+size] to latest.
func batchRange(start, size, latest uint64) (uint64, uint64) {
	end := start + size
	if latest < end {
		end = latest
	}
	return start, end
}

// Run processes one batch. When no new heights exist it returns without writing.
func (a *MissedBlocksAggregator) Run(ctx context.Context) (Result, error) {
	began := a.now()
	res := Result{Kind: KindMissedBlocks}

	prog, err := a.Progress.Read(ctx)
	if err != nil {
		return res, err
	}
	latest, err := a.Store.GetLatestBlockHeight(ctx)
	if err != nil {
		return res, fmt.Errorf("latest height: %w", err)
	}
	start, end := batchRange(prog.MissedBlockHeight, a.BatchSize, latest)
	res.Start, res.End = start, start
	if end <= start {
		a.Logger.Debug("No new heights for missed blocks",
			zap.Uint64("checkpoint", start),
			zap.Uint64("latest", latest))
		res.Duration = a.now().Sub(began)
		return res, nil
	}
	res.End = end

	validators, err := a.Store.GetValidators(ctx)
	if err != nil {
		return res, fmt.Errorf("load validators: %w", err)
	}
	roster := make(map[string]*statsmodels.Validator, len(validators))
	for _, v := range validators {
		roster[v.Address] = v
	}

	merged, err := a.Merger.Merge(ctx, start, end)
	if err != nil {
		return res, err
	}
	for range merged.MissingAnalytics {
		a.Metrics.skip("no_analytics")
	}

	sets, err := a.Store.GetValidatorSetsInRange(ctx, start, end)
	if err != nil {
		return res, fmt.Errorf("load validator sets: %w", err)
	}

	records := merged.Ascending()
	proposers := make([]string, 0, len(records))
	for _, rec := range records {
		if !rec.HasBlock {
			continue
		}
		if rec.ProposerAddress == "" {
			return res, fmt.Errorf("%w: height %d has no proposer", ErrInvalidBlock, rec.Height)
		}
		proposers = append(proposers, rec.ProposerAddress)
	}
	proposers = utils.Dedup(proposers)

	prior, err := a.Store.GetMissedBlockCumulatives(ctx, proposers, start)
	if err != nil {
		return res, fmt.Errorf("load prior cumulatives: %w", err)
	}

	committedAt := a.now()
	acc := NewAccumulator(prior)
	events := make([]*statsmodels.MissedBlock, 0)

	for _, rec := range records {
		if !rec.HasBlock {
			a.Logger.Warn("Skipping height without block record", zap.Uint64("height", rec.Height))
			a.Metrics.skip("no_block")
			res.Skipped++
			continue
		}
		set, ok := sets[rec.Height]
		if !ok || len(set.Members) == 0 {
			a.Logger.Warn("Skipping height without validator set", zap.Uint64("height", rec.Height))
			a.Metrics.skip("no_validator_set")
			res.Skipped++
			continue
		}
		if _, known := roster[rec.ProposerAddress]; !known {
			a.Logger.Debug("Proposer not in validator roster",
				zap.Uint64("height", rec.Height),
				zap.String("proposer", rec.ProposerAddress))
		}

		voted := rec.VotedSet()
		votedVotingPower := set.VotedVotingPower(voted)

		for _, member := range set.Members {
			key := statsmodels.PairKey{Proposer: rec.ProposerAddress, Voter: member.Address}
			_, didVote := voted[member.Address]
			counter := acc.Observe(key, !didVote)
			if didVote {
				continue
			}
			events = append(events, &statsmodels.MissedBlock{
				Voter:            member.Address,
				Proposer:         rec.ProposerAddress,
				Height:           rec.Height,
				PrecommitsCount:  rec.PrecommitsCount,
				ValidatorsCount:  rec.ValidatorsCount,
				Time:             rec.Time,
				Precommits:       rec.Precommits,
				AverageBlockTime: rec.AverageBlockTime,
				TimeDiff:         rec.TimeDiff,
				VotingPower:      rec.VotingPower,
				VotedVotingPower: votedVotingPower,
				UpdatedAt:        end,
				MissCount:        counter.MissCount,
				TotalCount:       counter.TotalCount,
				CommittedAt:      committedAt,
			})
		}
	}

	cumulatives, upserted, modified := acc.Cumulatives(end, committedAt)
	if err := a.Store.CommitMissedBlocks(ctx, events, cumulatives); err != nil {
		return res, fmt.Errorf("commit missed blocks (%d, %d]: %w", start, end, err)
	}
	if err := a.Progress.Advance(ctx, MetricMissedBlocks, end); err != nil {
		return res, err
	}

	res.Inserted = len(events)
	res.Upserted = upserted
	res.Modified = modified
	res.Duration = a.now().Sub(began)

	a.Logger.Info("Missed blocks batch committed",
		zap.Uint64("start", start),
		zap.Uint64("end", end),
		zap.Int("heights", len(records)),
		zap.Int("skipped", res.Skipped),
		zap.Int("pairs", acc.Len()),
		zap.String("status", res.Status()))
	return res, nil
}
