package activity

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/pkg/aggregator"
	"github.com/canopy-network/validatorstats/pkg/reporter/types"
)

// MissedBlocks runs one missed-block batch.
func (c *Context) MissedBlocks(ctx context.Context) (aggregator.Result, error) {
	res, err := c.Service.RunMissedBlocks(ctx)
	return c.finish(res, err, "missed blocks aggregation failed", "missed_blocks_error")
}

// MissedBlocksStats runs one missed-blocks stats batch.
func (c *Context) MissedBlocksStats(ctx context.Context) (aggregator.Result, error) {
	res, err := c.Service.RunMissedBlocksStats(ctx)
	return c.finish(res, err, "missed blocks stats aggregation failed", "missed_blocks_stats_error")
}

// RollingAverage recomputes one chain-wide window.
func (c *Context) RollingAverage(ctx context.Context, in types.WindowInput) (aggregator.Result, error) {
	res, err := c.Service.RunRollingAverage(ctx, in.Window)
	return c.finish(res, err, "rolling average failed", "rolling_average_error")
}

// ValidatorDailyAverage writes the per-validator trailing-24h averages.
func (c *Context) ValidatorDailyAverage(ctx context.Context) (aggregator.Result, error) {
	res, err := c.Service.RunValidatorDailyAverage(ctx)
	return c.finish(res, err, "validator daily average failed", "validator_daily_error")
}

func (c *Context) finish(res aggregator.Result, err error, msg, errType string) (aggregator.Result, error) {
	if err == nil {
		c.Logger.Debug("Activity finished", zap.String("kind", string(res.Kind)), zap.String("status", res.Status()))
		return res, nil
	}
	c.Logger.Error(msg, zap.String("kind", string(res.Kind)), zap.Error(err))
	if nonRetryable(err) {
		return res, temporal.NewNonRetryableApplicationError(msg, errType, err)
	}
	return res, temporal.NewApplicationErrorWithCause(msg, errType, err)
}

// nonRetryable reports errors that a retry of the same input cannot fix.
func nonRetryable(err error) bool {
	return errors.Is(err, aggregator.ErrUnknownWindow) ||
		errors.Is(err, aggregator.ErrUnknownKind) ||
		errors.Is(err, aggregator.ErrInvalidBlock) ||
		errors.Is(err, aggregator.ErrCheckpointRegress)
}
