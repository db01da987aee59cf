package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestProgress(t *testing.T, store *fakeStore, start uint64) *ProgressTracker {
	return &ProgressTracker{
		ChainID:     testChainID,
		StartHeight: start,
		Store:       store,
		Logger:      zaptest.NewLogger(t),
		Metrics:     NewMetrics(prometheus.NewRegistry()),
		Now:         func() time.Time { return testNow },
	}
}

func TestProgressDefaultsToStartHeight(t *testing.T) {
	p := newTestProgress(t, newFakeStore(), 42)
	prog, err := p.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, Progress{ChainID: testChainID, MissedBlockHeight: 42, MissedBlockStatsHeight: 42}, prog)
}

func TestProgressAdvancePreservesOtherMetric(t *testing.T) {
	store := newFakeStore()
	p := newTestProgress(t, store, 0)
	ctx := context.Background()

	require.NoError(t, p.Advance(ctx, MetricMissedBlocks, 100))
	require.NoError(t, p.Advance(ctx, MetricMissedBlocksStats, 60))
	require.NoError(t, p.Advance(ctx, MetricMissedBlocks, 150))

	prog, err := p.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(150), prog.MissedBlockHeight)
	require.Equal(t, uint64(60), prog.MissedBlockStatsHeight)
	require.Equal(t, testNow, prog.MissedBlockTime)
	require.Equal(t, testChainID, store.checkpoint.ChainID)
	require.Equal(t, 150.0, testutil.ToFloat64(p.Metrics.checkpoint.WithLabelValues(string(MetricMissedBlocks))))
}

func TestProgressRejectsRegress(t *testing.T) {
	store := newFakeStore()
	p := newTestProgress(t, store, 0)
	ctx := context.Background()

	require.NoError(t, p.Advance(ctx, MetricMissedBlocks, 100))
	err := p.Advance(ctx, MetricMissedBlocks, 99)
	require.ErrorIs(t, err, ErrCheckpointRegress)
	require.Equal(t, 1, store.checkpointWrites)

	// Same height is allowed.
	require.NoError(t, p.Advance(ctx, MetricMissedBlocks, 100))
	require.Error(t, p.Advance(ctx, Metric("unknown"), 1))
}

func TestProgressRegressBelowStartHeight(t *testing.T) {
	p := newTestProgress(t, newFakeStore(), 500)
	err := p.Advance(context.Background(), MetricMissedBlocksStats, 10)
	require.ErrorIs(t, err, ErrCheckpointRegress)
}
