package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
	statsdb "github.com/canopy-network/validatorstats/pkg/db/stats"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type eventKey struct {
	Proposer string
	Voter    string
	Height   uint64
}

// fakeStore is an in-memory Store. Cumulative and stats rows are versioned by updated_at and
// events are keyed by (proposer, voter, height), like the ClickHouse tables.
type fakeStore struct {
	mu sync.Mutex

	blocks     map[uint64]*statsmodels.Block
	sets       map[uint64]*statsmodels.ValidatorSet
	analytics  map[uint64]*statsmodels.Analytics
	validators []*statsmodels.Validator

	events      map[eventKey]*statsmodels.MissedBlock
	cumulatives map[statsmodels.PairKey]map[uint64]*statsmodels.MissedBlockCumulative
	missedStats map[statsmodels.PairKey]map[uint64]*statsmodels.MissedBlockStats
	checkpoint  *statsmodels.Checkpoint
	rolling     []*statsmodels.RollingAverage
	chainAvg    map[string]*statsmodels.ChainAverage
	daily       []*statsmodels.ValidatorDailyAverage

	commitErr          error
	checkpointErrOnce  error
	blocksErr          error
	commits            int
	checkpointWrites   int
	cumulativeLookups  int
	lastCumulativeAsOf uint64

	gate    chan struct{}
	entered chan struct{}
}

var _ statsdb.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		blocks:      make(map[uint64]*statsmodels.Block),
		sets:        make(map[uint64]*statsmodels.ValidatorSet),
		analytics:   make(map[uint64]*statsmodels.Analytics),
		events:      make(map[eventKey]*statsmodels.MissedBlock),
		cumulatives: make(map[statsmodels.PairKey]map[uint64]*statsmodels.MissedBlockCumulative),
		missedStats: make(map[statsmodels.PairKey]map[uint64]*statsmodels.MissedBlockStats),
		chainAvg:    make(map[string]*statsmodels.ChainAverage),
	}
}

func heightTime(h uint64) time.Time {
	return baseTime.Add(time.Duration(h) * time.Second)
}

func (f *fakeStore) addBlock(h uint64, proposer string, voted ...string) {
	f.blocks[h] = &statsmodels.Block{
		Height:          h,
		ProposerAddress: proposer,
		Validators:      voted,
		PrecommitsCount: uint32(len(voted)),
		ValidatorsCount: uint32(len(voted)),
		Time:            heightTime(h),
	}
}

func (f *fakeStore) addSet(h uint64, addresses ...string) {
	set := &statsmodels.ValidatorSet{Height: h}
	for i, a := range addresses {
		set.Members = append(set.Members, statsmodels.ValidatorSetMember{Height: h, Address: a, VotingPower: int64(10 * (i + 1))})
	}
	f.sets[h] = set
}

func (f *fakeStore) addAnalytics(h uint64, at time.Time, timeDiff, votingPower float64) {
	f.analytics[h] = &statsmodels.Analytics{Height: h, Time: at, TimeDiff: timeDiff, VotingPower: votingPower, AverageBlockTime: timeDiff}
}

func (f *fakeStore) addValidators(addresses ...string) {
	for _, a := range addresses {
		f.validators = append(f.validators, &statsmodels.Validator{Address: a, Moniker: "m-" + a})
	}
}

// latestCumulatives returns the highest version of every pair.
func (f *fakeStore) latestCumulatives() map[statsmodels.PairKey]Counter {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[statsmodels.PairKey]Counter)
	for k, versions := range f.cumulatives {
		var best *statsmodels.MissedBlockCumulative
		for _, c := range versions {
			if best == nil || c.UpdatedAt > best.UpdatedAt {
				best = c
			}
		}
		out[k] = Counter{MissCount: best.MissCount, TotalCount: best.TotalCount}
	}
	return out
}

func (f *fakeStore) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeStore) waitGate() {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.gate = nil
	f.mu.Unlock()
	if gate == nil {
		return
	}
	entered <- struct{}{}
	<-gate
}

func (f *fakeStore) DatabaseName() string { return "stats_test" }
func (f *fakeStore) Close() error         { return nil }

func (f *fakeStore) GetLatestBlockHeight(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max uint64
	for h := range f.blocks {
		if h > max {
			max = h
		}
	}
	return max, nil
}

func (f *fakeStore) GetBlocksInRange(_ context.Context, start, end uint64) ([]*statsmodels.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocksErr != nil {
		return nil, f.blocksErr
	}
	out := make([]*statsmodels.Block, 0)
	for h, b := range f.blocks {
		if h > start && h <= end {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out, nil
}

func (f *fakeStore) GetBlockByHeight(_ context.Context, height uint64) (*statsmodels.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocks[height], nil
}

func (f *fakeStore) GetProposedHeightsSince(_ context.Context, since time.Time) ([]*statsmodels.ProposedHeight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*statsmodels.ProposedHeight, 0)
	for h, b := range f.blocks {
		if b.Time.After(since) {
			out = append(out, &statsmodels.ProposedHeight{Height: h, ProposerAddress: b.ProposerAddress})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out, nil
}

func (f *fakeStore) GetValidatorSetsInRange(_ context.Context, start, end uint64) (map[uint64]*statsmodels.ValidatorSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint64]*statsmodels.ValidatorSet)
	for h, s := range f.sets {
		if h > start && h <= end {
			out[h] = s
		}
	}
	return out, nil
}

func (f *fakeStore) GetValidatorSetByHeight(_ context.Context, height uint64) (*statsmodels.ValidatorSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets[height], nil
}

func (f *fakeStore) sortedAnalytics(keep func(*statsmodels.Analytics) bool) []*statsmodels.Analytics {
	out := make([]*statsmodels.Analytics, 0)
	for _, a := range f.analytics {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out
}

func (f *fakeStore) GetAnalyticsInRange(_ context.Context, start, end uint64) ([]*statsmodels.Analytics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedAnalytics(func(a *statsmodels.Analytics) bool { return a.Height > start && a.Height <= end }), nil
}

func (f *fakeStore) GetAnalyticsByHeight(_ context.Context, height uint64) (*statsmodels.Analytics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analytics[height], nil
}

func (f *fakeStore) GetAnalyticsByHeights(_ context.Context, heights []uint64) ([]*statsmodels.Analytics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[uint64]struct{}, len(heights))
	for _, h := range heights {
		want[h] = struct{}{}
	}
	return f.sortedAnalytics(func(a *statsmodels.Analytics) bool {
		_, ok := want[a.Height]
		return ok
	}), nil
}

func (f *fakeStore) GetAnalyticsSince(_ context.Context, since time.Time) ([]*statsmodels.Analytics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedAnalytics(func(a *statsmodels.Analytics) bool { return a.Time.After(since) }), nil
}

func (f *fakeStore) GetValidators(context.Context) ([]*statsmodels.Validator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*statsmodels.Validator(nil), f.validators...), nil
}

func (f *fakeStore) GetMissedBlockCumulatives(_ context.Context, proposers []string, asOf uint64) (map[statsmodels.PairKey]*statsmodels.MissedBlockCumulative, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cumulativeLookups++
	f.lastCumulativeAsOf = asOf
	wanted := make(map[string]struct{}, len(proposers))
	for _, p := range proposers {
		wanted[p] = struct{}{}
	}
	out := make(map[statsmodels.PairKey]*statsmodels.MissedBlockCumulative)
	for k, versions := range f.cumulatives {
		if _, ok := wanted[k.Proposer]; !ok {
			continue
		}
		var best *statsmodels.MissedBlockCumulative
		for v, c := range versions {
			if v <= asOf && (best == nil || v > best.UpdatedAt) {
				best = c
			}
		}
		if best != nil {
			cp := *best
			out[k] = &cp
		}
	}
	return out, nil
}

func (f *fakeStore) CommitMissedBlocks(_ context.Context, events []*statsmodels.MissedBlock, cumulatives []*statsmodels.MissedBlockCumulative) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits++
	for _, e := range events {
		cp := *e
		f.events[eventKey{Proposer: e.Proposer, Voter: e.Voter, Height: e.Height}] = &cp
	}
	for _, c := range cumulatives {
		versions, ok := f.cumulatives[c.Key()]
		if !ok {
			versions = make(map[uint64]*statsmodels.MissedBlockCumulative)
			f.cumulatives[c.Key()] = versions
		}
		cp := *c
		versions[c.UpdatedAt] = &cp
	}
	return nil
}

func (f *fakeStore) CountMissedBlocksByPair(_ context.Context, start, end uint64) ([]*statsmodels.MissedPairCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[statsmodels.PairKey]uint64)
	for k := range f.events {
		if k.Height > start && k.Height <= end {
			counts[statsmodels.PairKey{Proposer: k.Proposer, Voter: k.Voter}]++
		}
	}
	out := make([]*statsmodels.MissedPairCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, &statsmodels.MissedPairCount{Voter: k.Voter, Proposer: k.Proposer, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

func (f *fakeStore) GetMissedBlockStats(_ context.Context, asOf uint64) (map[statsmodels.PairKey]*statsmodels.MissedBlockStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[statsmodels.PairKey]*statsmodels.MissedBlockStats)
	for k, versions := range f.missedStats {
		var best *statsmodels.MissedBlockStats
		for v, s := range versions {
			if v <= asOf && (best == nil || v > best.UpdatedAt) {
				best = s
			}
		}
		if best != nil {
			cp := *best
			out[k] = &cp
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMissedBlockStats(_ context.Context, rows []*statsmodels.MissedBlockStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		k := statsmodels.PairKey{Proposer: r.Proposer, Voter: r.Voter}
		versions, ok := f.missedStats[k]
		if !ok {
			versions = make(map[uint64]*statsmodels.MissedBlockStats)
			f.missedStats[k] = versions
		}
		cp := *r
		versions[r.UpdatedAt] = &cp
	}
	return nil
}

func (f *fakeStore) latestMissedStats() map[statsmodels.PairKey]uint64 {
	stats, _ := f.GetMissedBlockStats(context.Background(), ^uint64(0))
	out := make(map[statsmodels.PairKey]uint64, len(stats))
	for k, s := range stats {
		out[k] = s.Count
	}
	return out
}

func (f *fakeStore) GetCheckpoint(_ context.Context, chainID string) (*statsmodels.Checkpoint, error) {
	f.waitGate()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkpoint == nil || f.checkpoint.ChainID != chainID {
		return nil, nil
	}
	cp := *f.checkpoint
	return &cp, nil
}

func (f *fakeStore) UpsertCheckpoint(_ context.Context, cp *statsmodels.Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkpointErrOnce; err != nil {
		f.checkpointErrOnce = nil
		return err
	}
	f.checkpointWrites++
	c := *cp
	f.checkpoint = &c
	return nil
}

func (f *fakeStore) InsertRollingAverage(_ context.Context, avg *statsmodels.RollingAverage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *avg
	f.rolling = append(f.rolling, &cp)
	return nil
}

func (f *fakeStore) UpsertChainAverage(_ context.Context, avg *statsmodels.ChainAverage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *avg
	f.chainAvg[avg.Window] = &cp
	return nil
}

func (f *fakeStore) GetChainAverages(_ context.Context, chainID string) ([]*statsmodels.ChainAverage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*statsmodels.ChainAverage, 0, len(f.chainAvg))
	for _, a := range f.chainAvg {
		if a.ChainID == chainID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Window < out[j].Window })
	return out, nil
}

func (f *fakeStore) InsertValidatorDailyAverages(_ context.Context, rows []*statsmodels.ValidatorDailyAverage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		cp := *r
		f.daily = append(f.daily, &cp)
	}
	return nil
}
