package stats

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/pkg/aggregator"
	"github.com/canopy-network/validatorstats/pkg/redis"
)

// HeadTrigger runs the missed-block aggregator when the chain watcher announces a new height.
type HeadTrigger struct {
	Consumer *redis.StreamConsumer
	Runner   Runner
	ChainID  string
	Logger   *zap.Logger

	// covered is the highest height a run has already reached.
	covered atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start consumes in the background until Stop or ctx cancellation.
func (h *HeadTrigger) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.Run(ctx); err != nil {
			h.Logger.Error("Head trigger stopped", zap.Error(err))
		}
	}()
	h.Logger.Info("Head trigger started")
}

// Stop cancels the consumer and waits for the handler in flight.
func (h *HeadTrigger) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
}

// Run consumes until ctx is cancelled.
func (h *HeadTrigger) Run(ctx context.Context) error {
	err := h.Consumer.Run(ctx, h.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle is the stream handler. Entries for other chains, or heights an earlier run already
// covered, are acknowledged without running.
func (h *HeadTrigger) Handle(ctx context.Context, msg redis.Message) error {
	if chainID := msg.GetChainID(); chainID != "" && chainID != h.ChainID {
		return nil
	}
	height := msg.GetHeight()
	if height != 0 && height <= h.covered.Load() {
		return nil
	}

	res, err := h.Runner.RunKind(ctx, aggregator.KindMissedBlocks)
	if err != nil {
		h.Logger.Warn("Head-triggered run failed", zap.Uint64("height", height), zap.Error(err))
		return err
	}
	if res.Busy {
		// the run in flight or the next tick picks the height up
		return nil
	}
	if res.End > h.covered.Load() {
		h.covered.Store(res.End)
	}
	h.Logger.Debug("Head-triggered run finished",
		zap.Uint64("height", height),
		zap.String("status", res.Status()))
	return nil
}
