package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.uber.org/zap/zaptest"
)

func TestScheduleSpecAndNote(t *testing.T) {
	s := Schedule{Every: 20 * time.Second}
	require.Equal(t, "every 20s", s.Note())
	require.Equal(t, GetScheduleSpec(20*time.Second), s.Spec())

	s.Cron = "0 */5 * * * *"
	require.Equal(t, "cron 0 */5 * * * *", s.Note())
	require.Equal(t, []string{"0 */5 * * * *"}, s.Spec().CronExpressions)
}

func TestScheduleID(t *testing.T) {
	require.Equal(t, "stats:1:missed_blocks", ScheduleID("1", "missed_blocks"))
	c := &Client{ChainID: "7"}
	require.Equal(t, "stats:7:rolling_hour", c.GetScheduleID("rolling_hour"))
}

func TestEnsureScheduleCreatesMissing(t *testing.T) {
	sc := &mocks.ScheduleClient{}
	h := &mocks.ScheduleHandle{}
	s := Schedule{ID: "stats:1:missed_blocks", Workflow: MissedBlocksWorkflowName, Every: 20 * time.Second}

	sc.On("GetHandle", mock.Anything, s.ID).Return(h)
	h.On("Describe", mock.Anything).Return(nil, serviceerror.NewNotFound("schedule not found"))
	sc.On("Create", mock.Anything, mock.MatchedBy(func(o client.ScheduleOptions) bool {
		action, ok := o.Action.(*client.ScheduleWorkflowAction)
		return ok &&
			o.ID == s.ID &&
			o.Overlap == enums.SCHEDULE_OVERLAP_POLICY_SKIP &&
			o.Note == "every 20s" &&
			action.Workflow == MissedBlocksWorkflowName &&
			action.TaskQueue == DefaultTaskQueue
	})).Return(h, nil)

	require.NoError(t, EnsureSchedule(context.Background(), zaptest.NewLogger(t), sc, DefaultTaskQueue, s))
	sc.AssertExpectations(t)
	h.AssertExpectations(t)
}

func TestEnsureScheduleKeepsUnchanged(t *testing.T) {
	sc := &mocks.ScheduleClient{}
	h := &mocks.ScheduleHandle{}
	s := Schedule{ID: "stats:1:rolling_day", Workflow: RollingAverageWorkflowName, Every: 24 * time.Hour}

	sc.On("GetHandle", mock.Anything, s.ID).Return(h)
	h.On("Describe", mock.Anything).Return(&client.ScheduleDescription{
		Schedule: client.Schedule{State: &client.ScheduleState{Note: s.Note()}},
	}, nil)

	require.NoError(t, EnsureSchedule(context.Background(), zaptest.NewLogger(t), sc, DefaultTaskQueue, s))
	h.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	sc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEnsureScheduleUpdatesChangedCadence(t *testing.T) {
	sc := &mocks.ScheduleClient{}
	h := &mocks.ScheduleHandle{}
	s := Schedule{ID: "stats:1:missed_blocks", Workflow: MissedBlocksWorkflowName, Every: 10 * time.Second}

	var updated *client.ScheduleUpdate
	sc.On("GetHandle", mock.Anything, s.ID).Return(h)
	h.On("Describe", mock.Anything).Return(&client.ScheduleDescription{
		Schedule: client.Schedule{State: &client.ScheduleState{Note: "every 20s"}},
	}, nil)
	h.On("Update", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		opts := args.Get(1).(client.ScheduleUpdateOptions)
		var err error
		updated, err = opts.DoUpdate(client.ScheduleUpdateInput{
			Description: client.ScheduleDescription{Schedule: client.Schedule{}},
		})
		require.NoError(t, err)
	}).Return(nil)

	require.NoError(t, EnsureSchedule(context.Background(), zaptest.NewLogger(t), sc, DefaultTaskQueue, s))
	require.NotNil(t, updated)
	require.Equal(t, "every 10s", updated.Schedule.State.Note)
	require.Equal(t, 10*time.Second, updated.Schedule.Spec.Intervals[0].Every)
}

func TestEnsureSchedulePropagatesDescribeError(t *testing.T) {
	sc := &mocks.ScheduleClient{}
	h := &mocks.ScheduleHandle{}
	s := Schedule{ID: "stats:1:validator_daily", Workflow: ValidatorDailyAverageWorkflowName, Every: 24 * time.Hour}
	boom := errors.New("unavailable")

	sc.On("GetHandle", mock.Anything, s.ID).Return(h)
	h.On("Describe", mock.Anything).Return(nil, boom)

	err := EnsureSchedule(context.Background(), zaptest.NewLogger(t), sc, DefaultTaskQueue, s)
	require.ErrorIs(t, err, boom)
	sc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
