package aggregator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
	statsdb "github.com/canopy-network/validatorstats/pkg/db/stats"
)

// Window is a trailing time window for chain-wide averages.
type Window struct {
	Code   string
	Name   string
	Length time.Duration
	Kind   Kind
}

var (
	WindowMinute = Window{Code: "m", Name: "minute", Length: time.Minute, Kind: KindRollingMinute}
	WindowHour   = Window{Code: "h", Name: "hour", Length: time.Hour, Kind: KindRollingHour}
	WindowDay    = Window{Code: "d", Name: "day", Length: 24 * time.Hour, Kind: KindRollingDay}
)

// Windows lists the supported windows, shortest first.
var Windows = []Window{WindowMinute, WindowHour, WindowDay}

// ParseWindow accepts the short code or the name of a window.
func ParseWindow(s string) (Window, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, w := range Windows {
		if s == w.Code || s == w.Name {
			return w, nil
		}
	}
	return Window{}, fmt.Errorf("%w: %q", ErrUnknownWindow, s)
}

// validatorDailyLength is the trailing window of the per-validator average.
const validatorDailyLength = 24 * time.Hour

// RollingAggregator recomputes chain-wide window averages and the per-validator daily average.
// Nothing is incremental; every run reads its whole window.
type RollingAggregator struct {
	ChainID string
	Store   statsdb.Store
	Logger  *zap.Logger
	Now     func() time.Time
}

func (a *RollingAggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// RunWindow averages time_diff and voting_power over analytics with time > now-window.
// An empty window writes nothing.
func (a *RollingAggregator) RunWindow(ctx context.Context, w Window) (Result, error) {
	now := a.now()
	res := Result{Kind: w.Kind}

	rows, err := a.Store.GetAnalyticsSince(ctx, now.Add(-w.Length))
	if err != nil {
		return res, fmt.Errorf("rolling %s: %w", w.Name, err)
	}
	if len(rows) == 0 {
		a.Logger.Debug("Empty rolling window, nothing written", zap.String("window", w.Name))
		res.Duration = a.now().Sub(now)
		return res, nil
	}

	var sumBlockTime, sumVotingPower float64
	for _, r := range rows {
		sumBlockTime += r.TimeDiff
		sumVotingPower += r.VotingPower
	}
	n := float64(len(rows))
	avgBlockTime := sumBlockTime / n
	avgVotingPower := sumVotingPower / n

	err = a.Store.UpsertChainAverage(ctx, &statsmodels.ChainAverage{
		ChainID:            a.ChainID,
		Window:             w.Code,
		AverageBlockTime:   avgBlockTime,
		AverageVotingPower: avgVotingPower,
		UpdatedAt:          now,
	})
	if err != nil {
		return res, err
	}
	err = a.Store.InsertRollingAverage(ctx, &statsmodels.RollingAverage{
		Window:             w.Code,
		AverageBlockTime:   avgBlockTime,
		AverageVotingPower: avgVotingPower,
		CreatedAt:          now,
	})
	if err != nil {
		return res, err
	}

	res.Inserted = 1
	res.Upserted = 1
	res.Duration = a.now().Sub(now)
	a.Logger.Info("Rolling average written",
		zap.String("window", w.Name),
		zap.Int("samples", len(rows)),
		zap.Float64("average_block_time", avgBlockTime),
		zap.Float64("average_voting_power", avgVotingPower))
	return res, nil
}

// RunValidatorDaily writes one trailing-24h average block time per roster validator.
// A validator that proposed nothing in the window gets an explicit 0, unlike RunWindow which
// writes nothing for an empty window.
func (a *RollingAggregator) RunValidatorDaily(ctx context.Context) (Result, error) {
	now := a.now()
	res := Result{Kind: KindValidatorDaily}

	validators, err := a.Store.GetValidators(ctx)
	if err != nil {
		return res, fmt.Errorf("load validators: %w", err)
	}
	proposed, err := a.Store.GetProposedHeightsSince(ctx, now.Add(-validatorDailyLength))
	if err != nil {
		return res, err
	}

	heightsByProposer := make(map[string][]uint64)
	heights := make([]uint64, 0, len(proposed))
	for _, p := range proposed {
		heightsByProposer[p.ProposerAddress] = append(heightsByProposer[p.ProposerAddress], p.Height)
		heights = append(heights, p.Height)
	}

	timeDiffs := make(map[uint64]float64, len(heights))
	if len(heights) > 0 {
		analytics, err := a.Store.GetAnalyticsByHeights(ctx, heights)
		if err != nil {
			return res, err
		}
		for _, an := range analytics {
			timeDiffs[an.Height] = an.TimeDiff
		}
	}

	rows := make([]*statsmodels.ValidatorDailyAverage, 0, len(validators))
	for _, v := range validators {
		rows = append(rows, &statsmodels.ValidatorDailyAverage{
			ProposerAddress:  v.Address,
			AverageBlockTime: a.validatorAverage(v.Address, heightsByProposer[v.Address], timeDiffs),
			Type:             statsmodels.ValidatorDailyAverageType,
			CreatedAt:        now,
		})
	}

	if err := a.Store.InsertValidatorDailyAverages(ctx, rows); err != nil {
		return res, err
	}
	res.Inserted = len(rows)
	res.Duration = a.now().Sub(now)
	a.Logger.Info("Validator daily averages written", zap.Int("validators", len(rows)))
	return res, nil
}

func (a *RollingAggregator) validatorAverage(address string, heights []uint64, timeDiffs map[uint64]float64) float64 {
	if len(heights) == 0 {
		return 0
	}
	var sum float64
	var found int
	for _, h := range heights {
		if d, ok := timeDiffs[h]; ok {
			sum += d
			found++
		}
	}
	if found == 0 {
		a.Logger.Warn("Proposed blocks have no analytics, writing zero average",
			zap.String("validator", address),
			zap.Int("blocks", len(heights)))
		return 0
	}
	return sum / float64(found)
}
