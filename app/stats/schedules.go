package stats

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/app/stats/types"
	"github.com/canopy-network/validatorstats/pkg/aggregator"
	"github.com/canopy-network/validatorstats/pkg/config"
	reportertypes "github.com/canopy-network/validatorstats/pkg/reporter/types"
	"github.com/canopy-network/validatorstats/pkg/temporal"
)

// jobSchedule maps a configured job to its Temporal schedule.
func jobSchedule(chainID string, job config.Job) (temporal.Schedule, error) {
	kind, err := aggregator.ParseKind(job.Name)
	if err != nil {
		return temporal.Schedule{}, fmt.Errorf("job %s: %w", job.Name, err)
	}
	s := temporal.Schedule{
		ID:    temporal.ScheduleID(chainID, job.Name),
		Every: job.Interval,
		Cron:  job.Cron,
	}
	switch kind {
	case aggregator.KindMissedBlocks:
		s.Workflow = temporal.MissedBlocksWorkflowName
	case aggregator.KindMissedBlocksStats:
		s.Workflow = temporal.MissedBlocksStatsWorkflowName
	case aggregator.KindValidatorDaily:
		s.Workflow = temporal.ValidatorDailyAverageWorkflowName
	default:
		for _, w := range aggregator.Windows {
			if w.Kind == kind {
				s.Workflow = temporal.RollingAverageWorkflowName
				s.Args = []interface{}{reportertypes.WindowInput{Window: w.Code}}
			}
		}
	}
	if s.Workflow == "" {
		return temporal.Schedule{}, fmt.Errorf("job %s: no workflow for kind %s", job.Name, kind)
	}
	return s, nil
}

// EnsureSchedules creates or updates the Temporal schedule of every configured job.
func EnsureSchedules(ctx context.Context, app *types.App) error {
	for _, name := range config.JobNames() {
		job, ok := app.Config.Jobs[name]
		if !ok {
			continue
		}
		s, err := jobSchedule(app.Config.ChainID, job)
		if err != nil {
			return err
		}
		if err := temporal.EnsureSchedule(ctx, app.Logger, app.Temporal.TSClient, app.Temporal.TaskQueue, s); err != nil {
			return err
		}
	}
	app.Logger.Info("Schedules ready", zap.String("namespace", app.Temporal.Namespace))
	return nil
}
