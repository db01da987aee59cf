package workflow

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/canopy-network/validatorstats/pkg/reporter/activity"
)

// Context holds dependencies for the stats workflows.
type Context struct {
	TaskQueue       string
	ActivityContext *activity.Context
}

// activityOptions bounds one aggregator batch. A retry replays the whole batch.
func (c *Context) activityOptions(ctx workflow.Context, timeout time.Duration) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
		TaskQueue: c.TaskQueue,
	})
}
