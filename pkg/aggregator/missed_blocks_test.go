package aggregator

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

func pair(proposer, voter string) statsmodels.PairKey {
	return statsmodels.PairKey{Proposer: proposer, Voter: voter}
}

func TestMissedBlocksSingleHeight(t *testing.T) {
	store := newFakeStore()
	store.addValidators("v1", "v2", "v3")
	store.addSet(100, "v1", "v2", "v3")
	store.addBlock(100, "v1", "v2", "v3")
	store.addAnalytics(100, heightTime(100), 2.5, 60)

	svc := newTestService(t, store, 1000, 99)
	res, err := svc.RunMissedBlocks(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(99), res.Start)
	require.Equal(t, uint64(100), res.End)
	require.Equal(t, 1, res.Inserted)
	require.Equal(t, 3, res.Upserted)
	require.Equal(t, 0, res.Modified)
	require.Equal(t, "done in 0ms (1 inserted, 3 upserted, 0 modified)", res.Status())

	ev, ok := store.events[eventKey{Proposer: "v1", Voter: "v1", Height: 100}]
	require.True(t, ok)
	require.Equal(t, uint64(1), ev.MissCount)
	require.Equal(t, uint64(1), ev.TotalCount)
	require.Equal(t, int64(50), ev.VotedVotingPower)
	require.Equal(t, 2.5, ev.TimeDiff)
	require.Equal(t, uint64(100), ev.UpdatedAt)
	require.Equal(t, 1, store.eventCount())

	require.Equal(t, map[statsmodels.PairKey]Counter{
		pair("v1", "v1"): {MissCount: 1, TotalCount: 1},
		pair("v1", "v2"): {MissCount: 0, TotalCount: 1},
		pair("v1", "v3"): {MissCount: 0, TotalCount: 1},
	}, store.latestCumulatives())

	prog, err := svc.Checkpoint(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(100), prog.MissedBlockHeight)
	require.Equal(t, uint64(99), prog.MissedBlockStatsHeight)
}

func TestMissedBlocksUpdatesExistingPairs(t *testing.T) {
	store := newFakeStore()
	store.addValidators("v1", "v2", "v3")
	store.addSet(1, "v1", "v2", "v3")
	store.addBlock(1, "v1", "v2", "v3")

	svc := newTestService(t, store, 1000, 0)
	_, err := svc.RunMissedBlocks(context.Background())
	require.NoError(t, err)

	store.addSet(2, "v1", "v2", "v3")
	store.addBlock(2, "v1", "v3")
	res, err := svc.RunMissedBlocks(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Inserted)
	require.Equal(t, 0, res.Upserted)
	require.Equal(t, 3, res.Modified)

	got := store.latestCumulatives()
	require.Equal(t, Counter{MissCount: 2, TotalCount: 2}, got[pair("v1", "v1")])
	require.Equal(t, Counter{MissCount: 1, TotalCount: 2}, got[pair("v1", "v2")])
	require.Equal(t, Counter{MissCount: 0, TotalCount: 2}, got[pair("v1", "v3")])

	ev := store.events[eventKey{Proposer: "v1", Voter: "v1", Height: 2}]
	require.Equal(t, uint64(2), ev.MissCount)
	require.Equal(t, uint64(2), ev.TotalCount)
}

func TestMissedBlocksNoNewHeights(t *testing.T) {
	store := newFakeStore()
	store.addSet(5, "v1")
	store.addBlock(5, "v1", "v1")

	svc := newTestService(t, store, 1000, 5)
	res, err := svc.RunMissedBlocks(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.Written())
	require.Equal(t, res.Start, res.End)
	require.Zero(t, store.commits)
	require.Zero(t, store.checkpointWrites)
	require.Zero(t, store.cumulativeLookups)
}

func TestMissedBlocksMatchesDirectCount(t *testing.T) {
	store := newFakeStore()
	populateChain(store, 1, 60)

	svc := newTestService(t, store, 1000, 0)
	drain(t, svc.RunMissedBlocks)

	got := store.latestCumulatives()
	require.Equal(t, expectedCounters(1, 60), got)
	for k, c := range got {
		require.LessOrEqual(t, c.MissCount, c.TotalCount, "pair %v", k)
	}

	var misses uint64
	for _, c := range got {
		misses += c.MissCount
	}
	require.Equal(t, int(misses), store.eventCount())
}

func TestMissedBlocksBatchSplitsAgree(t *testing.T) {
	reference := newFakeStore()
	populateChain(reference, 1, 60)
	drain(t, newTestService(t, reference, 1000, 0).RunMissedBlocks)
	want := reference.latestCumulatives()

	for _, batch := range []uint64{1, 7, 30, 59} {
		store := newFakeStore()
		populateChain(store, 1, 60)
		batches := drain(t, newTestService(t, store, batch, 0).RunMissedBlocks)
		require.Equal(t, int((60+batch-1)/batch), batches, "batch %d", batch)
		require.Equal(t, want, store.latestCumulatives(), "batch %d", batch)
		require.Equal(t, reference.eventCount(), store.eventCount(), "batch %d", batch)
	}
}

func TestMissedBlocksRerunAfterCheckpointFailure(t *testing.T) {
	reference := newFakeStore()
	populateChain(reference, 1, 40)
	drain(t, newTestService(t, reference, 25, 0).RunMissedBlocks)

	store := newFakeStore()
	populateChain(store, 1, 40)
	svc := newTestService(t, store, 25, 0)

	store.checkpointErrOnce = errors.New("keeper unavailable")
	_, err := svc.RunMissedBlocks(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, store.commits)
	prog, err := svc.Checkpoint(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(0), prog.MissedBlockHeight)

	// The same range is recomputed from the state before it.
	res, err := svc.RunMissedBlocks(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(0), res.Start)
	require.Equal(t, uint64(25), res.End)
	require.Equal(t, uint64(0), store.lastCumulativeAsOf)

	drain(t, svc.RunMissedBlocks)
	require.Equal(t, reference.latestCumulatives(), store.latestCumulatives())
	require.Equal(t, reference.eventCount(), store.eventCount())
}

func TestMissedBlocksCommitFailureKeepsCheckpoint(t *testing.T) {
	store := newFakeStore()
	populateChain(store, 1, 10)
	svc := newTestService(t, store, 1000, 0)

	store.commitErr = errors.New("insert timeout")
	_, err := svc.RunMissedBlocks(context.Background())
	require.ErrorIs(t, err, store.commitErr)
	require.Zero(t, store.checkpointWrites)
	require.Empty(t, store.latestCumulatives())

	snaps := svc.Coordinator.Snapshot()
	require.Len(t, snaps, 1)
	require.Equal(t, "idle", snaps[0].State)
	require.Contains(t, snaps[0].LastError, "insert timeout")

	store.commitErr = nil
	res, err := svc.RunMissedBlocks(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(10), res.End)
	require.Equal(t, expectedCounters(1, 10), store.latestCumulatives())
}

func TestMissedBlocksSkipsIncompleteHeights(t *testing.T) {
	store := newFakeStore()
	store.addValidators("v1", "v2")
	store.addBlock(1, "v1", "v1")
	store.addSet(1, "v1", "v2")
	store.addAnalytics(1, heightTime(1), 1, 1)
	// Height 2 has analytics and a set but no block.
	store.addSet(2, "v1", "v2")
	store.addAnalytics(2, heightTime(2), 1, 1)
	// Height 3 has a block but no set.
	store.addBlock(3, "v2", "v2")
	store.addAnalytics(3, heightTime(3), 1, 1)
	// Height 4 has no analytics but is still counted.
	store.addBlock(4, "v2", "v2")
	store.addSet(4, "v1", "v2")

	svc := newTestService(t, store, 1000, 0)
	res, err := svc.RunMissedBlocks(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Skipped)
	require.Equal(t, uint64(4), res.End)

	require.Equal(t, map[statsmodels.PairKey]Counter{
		pair("v1", "v1"): {MissCount: 0, TotalCount: 1},
		pair("v1", "v2"): {MissCount: 1, TotalCount: 1},
		pair("v2", "v1"): {MissCount: 1, TotalCount: 1},
		pair("v2", "v2"): {MissCount: 0, TotalCount: 1},
	}, store.latestCumulatives())

	ev := store.events[eventKey{Proposer: "v2", Voter: "v1", Height: 4}]
	require.NotNil(t, ev)
	require.Zero(t, ev.TimeDiff)

	m := svc.MissedBlocks.Metrics
	require.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("no_block")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("no_validator_set")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("no_analytics")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.checkpoint.WithLabelValues(string(MetricMissedBlocks))))
}

func TestMissedBlocksRejectsBlockWithoutProposer(t *testing.T) {
	store := newFakeStore()
	store.addBlock(1, "", "v1")
	store.addSet(1, "v1")

	svc := newTestService(t, store, 1000, 0)
	_, err := svc.RunMissedBlocks(context.Background())
	require.ErrorIs(t, err, ErrInvalidBlock)
	require.Zero(t, store.commits)
	require.Zero(t, store.checkpointWrites)
}

func TestBatchRange(t *testing.T) {
	start, end := batchRange(10, 1000, 50)
	require.Equal(t, uint64(10), start)
	require.Equal(t, uint64(50), end)

	_, end = batchRange(10, 5, 50)
	require.Equal(t, uint64(15), end)

	_, end = batchRange(50, 5, 50)
	require.Equal(t, uint64(50), end)
}
