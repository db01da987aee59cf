package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/canopy-network/validatorstats/pkg/aggregator"
	"github.com/canopy-network/validatorstats/pkg/reporter/types"
)

// MissedBlocksWorkflow runs one missed-block batch.
func (c *Context) MissedBlocksWorkflow(ctx workflow.Context) (aggregator.Result, error) {
	ctx = c.activityOptions(ctx, 5*time.Minute)
	var res aggregator.Result
	if err := workflow.ExecuteActivity(ctx, c.ActivityContext.MissedBlocks).Get(ctx, &res); err != nil {
		return res, err
	}
	logResult(ctx, res)
	return res, nil
}

// MissedBlocksStatsWorkflow runs one missed-blocks stats batch.
func (c *Context) MissedBlocksStatsWorkflow(ctx workflow.Context) (aggregator.Result, error) {
	ctx = c.activityOptions(ctx, 5*time.Minute)
	var res aggregator.Result
	if err := workflow.ExecuteActivity(ctx, c.ActivityContext.MissedBlocksStats).Get(ctx, &res); err != nil {
		return res, err
	}
	logResult(ctx, res)
	return res, nil
}

// RollingAverageWorkflow recomputes the selected chain-wide window.
func (c *Context) RollingAverageWorkflow(ctx workflow.Context, in types.WindowInput) (aggregator.Result, error) {
	ctx = c.activityOptions(ctx, 2*time.Minute)
	var res aggregator.Result
	if err := workflow.ExecuteActivity(ctx, c.ActivityContext.RollingAverage, in).Get(ctx, &res); err != nil {
		return res, err
	}
	logResult(ctx, res)
	return res, nil
}

// ValidatorDailyAverageWorkflow writes the per-validator trailing-24h averages.
func (c *Context) ValidatorDailyAverageWorkflow(ctx workflow.Context) (aggregator.Result, error) {
	ctx = c.activityOptions(ctx, 5*time.Minute)
	var res aggregator.Result
	if err := workflow.ExecuteActivity(ctx, c.ActivityContext.ValidatorDailyAverage).Get(ctx, &res); err != nil {
		return res, err
	}
	logResult(ctx, res)
	return res, nil
}

func logResult(ctx workflow.Context, res aggregator.Result) {
	logger := workflow.GetLogger(ctx)
	if res.Busy {
		logger.Info("Aggregator busy, run skipped", "kind", string(res.Kind))
		return
	}
	logger.Info("Aggregator finished", "kind", string(res.Kind), "status", res.Status())
}
