package temporal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go.temporal.io/api/enums/v1"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	Namespace string
	HostPort  string
	ChainID   string

	// TaskQueue serves every stats workflow and activity of the chain.
	TaskQueue string

	logger *zap.Logger
}

type Health struct {
	ConnectionOK bool                      `json:"connection_ok"`
	Namespace    string                    `json:"namespace"`
	TaskQueue    string                    `json:"task_queue"`
	Pollers      []*taskqueuepb.PollerInfo `json:"pollers"`
}

// NewClient dials Temporal and verifies the connection with a health check.
func NewClient(ctx context.Context, logger *zap.Logger, hostPort, namespace, taskQueue, chainID string) (*Client, error) {
	logger.Info("Connecting to Temporal",
		zap.String("host", hostPort),
		zap.String("namespace", namespace),
		zap.String("task_queue", taskQueue))
	tClient, err := Dial(ctx, hostPort, namespace, NewZapAdapter(logger.Named("temporal")))
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", hostPort, err)
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		tClient.Close()
		return nil, fmt.Errorf("temporal health check: %w", err)
	}

	return &Client{
		logger:    logger,
		TClient:   tClient,
		TSClient:  tClient.ScheduleClient(),
		Namespace: namespace,
		HostPort:  hostPort,
		ChainID:   chainID,
		TaskQueue: taskQueue,
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// GetScheduleID returns the schedule ID of job for this client's chain.
func (c *Client) GetScheduleID(job string) string {
	return ScheduleID(c.ChainID, job)
}

// Health describes the stats task queue pollers.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h := Health{ConnectionOK: true, Namespace: c.Namespace, TaskQueue: c.TaskQueue}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if _, err := c.TClient.CheckHealth(ctx, nil); err != nil {
		h.ConnectionOK = false
		return h, err
	}
	svc := c.TClient.WorkflowService()
	if svc != nil {
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.TaskQueue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.Pollers = rep.GetPollers()
		}
	}
	return h, nil
}

// Close closes the underlying Temporal client.
func (c *Client) Close() {
	if c.TClient != nil {
		c.TClient.Close()
	}
}
