package aggregator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
	statsdb "github.com/canopy-network/validatorstats/pkg/db/stats"
)

// MissedBlocksStatsAggregator maintains the per-(voter, proposer) miss count table from committed
// missed-block events. It trails the missed-block checkpoint and never reads past it.
type MissedBlocksStatsAggregator struct {
	Store     statsdb.Store
	Progress  *ProgressTracker
	BatchSize uint64
	Logger    *zap.Logger
	Now       func() time.Time
}

func (a *MissedBlocksStatsAggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Run processes (statsCheckpoint, min(statsCheckpoint+BatchSize, missedBlockCheckpoint)].
func (a *MissedBlocksStatsAggregator) Run(ctx context.Context) (Result, error) {
	began := a.now()
	res := Result{Kind: KindMissedBlocksStats}

	prog, err := a.Progress.Read(ctx)
	if err != nil {
		return res, err
	}
	start, end := batchRange(prog.MissedBlockStatsHeight, a.BatchSize, prog.MissedBlockHeight)
	res.Start, res.End = start, start
	if end <= start {
		res.Duration = a.now().Sub(began)
		return res, nil
	}
	res.End = end

	counts, err := a.Store.CountMissedBlocksByPair(ctx, start, end)
	if err != nil {
		return res, err
	}
	prior, err := a.Store.GetMissedBlockStats(ctx, start)
	if err != nil {
		return res, err
	}

	committedAt := a.now()
	rows := make([]*statsmodels.MissedBlockStats, 0, len(counts))
	for _, c := range counts {
		row := &statsmodels.MissedBlockStats{
			Voter:       c.Voter,
			Proposer:    c.Proposer,
			Count:       c.Count,
			UpdatedAt:   end,
			CommittedAt: committedAt,
		}
		if p, ok := prior[c.Key()]; ok {
			row.Count += p.Count
			res.Modified++
		} else {
			res.Upserted++
		}
		rows = append(rows, row)
	}

	if err := a.Store.InsertMissedBlockStats(ctx, rows); err != nil {
		return res, fmt.Errorf("commit missed block stats (%d, %d]: %w", start, end, err)
	}
	if err := a.Progress.Advance(ctx, MetricMissedBlocksStats, end); err != nil {
		return res, err
	}

	res.Duration = a.now().Sub(began)
	a.Logger.Info("Missed blocks stats batch committed",
		zap.Uint64("start", start),
		zap.Uint64("end", end),
		zap.String("status", res.Status()))
	return res, nil
}
