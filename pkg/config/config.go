package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/canopy-network/validatorstats/pkg/utils"
)

// Scheduler modes.
const (
	SchedulerTemporal = "temporal"
	SchedulerCron     = "cron"
	SchedulerNone     = "none"
)

const DefaultBatchSize uint64 = 1000

// Job is a periodic aggregation run. Interval drives Temporal schedules; Cron overrides it for the local scheduler.
type Job struct {
	Name     string
	Interval time.Duration
	Cron     string
}

// CronSpec returns the robfig/cron spec for the job.
func (j Job) CronSpec() string {
	if j.Cron != "" {
		return j.Cron
	}
	return "@every " + j.Interval.String()
}

// Config is the full process configuration, read once at startup.
type Config struct {
	ChainID     string
	StartHeight uint64
	BatchSize   uint64

	Scheduler string
	Jobs      map[string]Job

	HeadStream string
	HeadGroup  string

	Addr          string
	AdminToken    string
	AdminUser     string
	AdminPassword string
	SessionSecret string

	ClickHouseAddr    string
	ClickHouseCluster string

	TemporalHostPort  string
	TemporalNamespace string
	TaskQueue         string
}

// Job names, shared with the coordinator kinds.
const (
	JobMissedBlocks      = "missed_blocks"
	JobMissedBlocksStats = "missed_blocks_stats"
	JobRollingMinute     = "rolling_minute"
	JobRollingHour       = "rolling_hour"
	JobRollingDay        = "rolling_day"
	JobValidatorDaily    = "validator_daily"
)

var jobDefaults = []Job{
	{Name: JobMissedBlocks, Interval: 20 * time.Second},
	{Name: JobMissedBlocksStats, Interval: time.Minute},
	{Name: JobRollingMinute, Interval: time.Minute},
	{Name: JobRollingHour, Interval: time.Hour},
	{Name: JobRollingDay, Interval: 24 * time.Hour},
	{Name: JobValidatorDaily, Interval: 24 * time.Hour},
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		ChainID:     strings.TrimSpace(utils.Env("CHAIN_ID", "")),
		StartHeight: utils.EnvUint64("STATS_START_HEIGHT", 0),
		BatchSize:   utils.EnvUint64("STATS_BATCH_SIZE", DefaultBatchSize),

		Scheduler: strings.ToLower(utils.Env("STATS_SCHEDULER", SchedulerTemporal)),
		Jobs:      make(map[string]Job, len(jobDefaults)),

		HeadStream: utils.Env("STATS_HEAD_STREAM", ""),
		HeadGroup:  utils.Env("STATS_HEAD_GROUP", "validatorstats"),

		Addr:          utils.Env("ADDR", ":3000"),
		AdminToken:    utils.Env("ADMIN_TOKEN", "devtoken"),
		AdminUser:     utils.Env("ADMIN_USER", "admin"),
		AdminPassword: utils.Env("ADMIN_PASSWORD", "admin"),
		SessionSecret: utils.Env("SESSION_SECRET", "change-me-please"),

		ClickHouseAddr:    utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable"),
		ClickHouseCluster: utils.Env("CLICKHOUSE_CLUSTER", ""),

		TemporalHostPort:  utils.Env("TEMPORAL_HOSTPORT", "localhost:7233"),
		TemporalNamespace: utils.Env("TEMPORAL_NAMESPACE", "validatorstats"),
		TaskQueue:         utils.Env("TEMPORAL_TASK_QUEUE", "stats"),
	}

	for _, def := range jobDefaults {
		key := strings.ToUpper(def.Name)
		cfg.Jobs[def.Name] = Job{
			Name:     def.Name,
			Interval: utils.EnvDuration("STATS_"+key+"_INTERVAL", def.Interval),
			Cron:     utils.Env("STATS_"+key+"_CRON", ""),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.ChainID == "" {
		errs = append(errs, errors.New("CHAIN_ID is required"))
	}
	if c.BatchSize == 0 {
		errs = append(errs, errors.New("STATS_BATCH_SIZE must be greater than zero"))
	}
	switch c.Scheduler {
	case SchedulerTemporal, SchedulerCron, SchedulerNone:
	default:
		errs = append(errs, fmt.Errorf("STATS_SCHEDULER %q is not one of temporal, cron, none", c.Scheduler))
	}
	for name, job := range c.Jobs {
		if job.Interval <= 0 {
			errs = append(errs, fmt.Errorf("job %s: interval must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// JobNames returns the job names in a stable order.
func JobNames() []string {
	names := make([]string, 0, len(jobDefaults))
	for _, j := range jobDefaults {
		names = append(names, j.Name)
	}
	return names
}
