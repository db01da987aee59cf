package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
)

// Defaults for the stats namespace and queue.
const (
	DefaultNamespace = "validatorstats"
	DefaultTaskQueue = "stats"
)

// Workflow names as registered on the stats worker.
const (
	MissedBlocksWorkflowName          = "MissedBlocksWorkflow"
	MissedBlocksStatsWorkflowName     = "MissedBlocksStatsWorkflow"
	RollingAverageWorkflowName        = "RollingAverageWorkflow"
	ValidatorDailyAverageWorkflowName = "ValidatorDailyAverageWorkflow"
)

// ScheduleIDFormat is stats:<chainID>:<job>.
const ScheduleIDFormat = "stats:%s:%s"

// ScheduleID returns the schedule ID of job on chainID.
func ScheduleID(chainID, job string) string {
	return fmt.Sprintf(ScheduleIDFormat, chainID, job)
}

// GetScheduleSpec returns a schedule spec for the given interval.
func GetScheduleSpec(interval time.Duration) client.ScheduleSpec {
	return client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
}

// GetCronScheduleSpec returns a schedule spec for a cron expression.
func GetCronScheduleSpec(expr string) client.ScheduleSpec {
	return client.ScheduleSpec{CronExpressions: []string{expr}}
}
