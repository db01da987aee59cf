package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// Schedule is a recurring stats workflow.
type Schedule struct {
	ID       string
	Workflow string
	Args     []interface{}
	Every    time.Duration
	// Cron overrides Every when set.
	Cron string
}

// Spec returns the Temporal schedule spec.
func (s Schedule) Spec() client.ScheduleSpec {
	if s.Cron != "" {
		return GetCronScheduleSpec(s.Cron)
	}
	return GetScheduleSpec(s.Every)
}

// Note is stored on the schedule state and compared on startup to detect a changed cadence.
// The server normalizes specs, so comparing them directly is unreliable.
func (s Schedule) Note() string {
	if s.Cron != "" {
		return "cron " + s.Cron
	}
	return "every " + s.Every.String()
}

// EnsureSchedule creates the schedule if it does not exist and replaces its spec when the
// configured cadence changed. Overlapping runs are skipped by the server.
func EnsureSchedule(ctx context.Context, logger *zap.Logger, sc client.ScheduleClient, taskQueue string, s Schedule) error {
	h := sc.GetHandle(ctx, s.ID)
	desc, err := h.Describe(ctx)
	if err == nil {
		if desc != nil && desc.Schedule.State != nil && desc.Schedule.State.Note == s.Note() {
			logger.Info("Schedule already exists", zap.String("id", s.ID), zap.String("cadence", s.Note()))
			return nil
		}
		logger.Info("Updating schedule cadence", zap.String("id", s.ID), zap.String("cadence", s.Note()))
		return h.Update(ctx, client.ScheduleUpdateOptions{
			DoUpdate: func(in client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
				sched := in.Description.Schedule
				spec := s.Spec()
				sched.Spec = &spec
				if sched.State == nil {
					sched.State = &client.ScheduleState{}
				}
				sched.State.Note = s.Note()
				return &client.ScheduleUpdate{Schedule: &sched}, nil
			},
		})
	}

	var notFound *serviceerror.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe schedule %s: %w", s.ID, err)
	}

	logger.Info("Creating schedule",
		zap.String("id", s.ID),
		zap.String("workflow", s.Workflow),
		zap.String("cadence", s.Note()))
	_, err = sc.Create(ctx, client.ScheduleOptions{
		ID:      s.ID,
		Spec:    s.Spec(),
		Overlap: enums.SCHEDULE_OVERLAP_POLICY_SKIP,
		Note:    s.Note(),
		Action: &client.ScheduleWorkflowAction{
			ID:                       s.ID,
			Workflow:                 s.Workflow,
			Args:                     s.Args,
			TaskQueue:                taskQueue,
			WorkflowExecutionTimeout: 10 * time.Minute,
			WorkflowTaskTimeout:      2 * time.Minute,
		},
	})
	if err != nil {
		return fmt.Errorf("create schedule %s: %w", s.ID, err)
	}
	return nil
}
