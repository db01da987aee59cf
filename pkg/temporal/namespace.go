package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/durationpb"
)

// namespaceReadyAttempts bounds the wait for a freshly registered namespace.
const namespaceReadyAttempts = 5

// EnsureNamespace registers the client's namespace with the given retention if it does not exist.
func (c *Client) EnsureNamespace(ctx context.Context, retention time.Duration) error {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	nsClient, err := client.NewNamespaceClient(client.Options{
		HostPort: c.HostPort,
		Logger:   NewZapAdapter(logger),
	})
	if err != nil {
		return fmt.Errorf("failed to create namespace client: %w", err)
	}
	defer nsClient.Close()

	_, err = nsClient.Describe(ctx, c.Namespace)
	if err == nil {
		return nil
	}
	var notFound *serviceerror.NamespaceNotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe namespace: %w", err)
	}

	logger.Info("Registering Temporal namespace",
		zap.String("namespace", c.Namespace),
		zap.Duration("retention", retention))
	err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        c.Namespace,
		WorkflowExecutionRetentionPeriod: durationpb.New(retention),
	})
	if err != nil {
		var exists *serviceerror.NamespaceAlreadyExists
		if !errors.As(err, &exists) {
			return fmt.Errorf("failed to register namespace: %w", err)
		}
	}

	// Registration propagates asynchronously.
	for i := 0; i < namespaceReadyAttempts; i++ {
		if _, err = nsClient.Describe(ctx, c.Namespace); err == nil {
			return nil
		}
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("namespace %s not ready: %w", c.Namespace, err)
}
