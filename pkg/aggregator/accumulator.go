package aggregator

import (
	"sort"
	"time"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

// Counter is the running total of a (proposer, voter) pair within a batch.
type Counter struct {
	MissCount  uint64
	TotalCount uint64
	// Seeded is true when the pair had a durable cumulative row before this batch.
	Seeded bool
}

// Accumulator keeps typed counters keyed by pair. Each pair is seeded from the prior
// cumulative state exactly once, on first touch.
type Accumulator struct {
	prior    map[statsmodels.PairKey]*statsmodels.MissedBlockCumulative
	counters map[statsmodels.PairKey]*Counter
}

func NewAccumulator(prior map[statsmodels.PairKey]*statsmodels.MissedBlockCumulative) *Accumulator {
	if prior == nil {
		prior = make(map[statsmodels.PairKey]*statsmodels.MissedBlockCumulative)
	}
	return &Accumulator{prior: prior, counters: make(map[statsmodels.PairKey]*Counter)}
}

func (a *Accumulator) seed(key statsmodels.PairKey) *Counter {
	if c, ok := a.counters[key]; ok {
		return c
	}
	c := &Counter{}
	if p, ok := a.prior[key]; ok {
		c.MissCount = p.MissCount
		c.TotalCount = p.TotalCount
		c.Seeded = true
	}
	a.counters[key] = c
	return c
}

// Observe records one height at which the voter was active under the proposer.
// It returns the updated counter.
func (a *Accumulator) Observe(key statsmodels.PairKey, missed bool) Counter {
	c := a.seed(key)
	c.TotalCount++
	if missed {
		c.MissCount++
	}
	return *c
}

// Get returns the current counter for key and whether it was touched in this batch.
func (a *Accumulator) Get(key statsmodels.PairKey) (Counter, bool) {
	c, ok := a.counters[key]
	if !ok {
		return Counter{}, false
	}
	return *c, true
}

// Len is the number of pairs touched.
func (a *Accumulator) Len() int { return len(a.counters) }

// Cumulatives returns one row per touched pair versioned at end, ordered by pair.
// upserted counts pairs without a prior row, modified those with one.
func (a *Accumulator) Cumulatives(end uint64, committedAt time.Time) (rows []*statsmodels.MissedBlockCumulative, upserted, modified int) {
	keys := make([]statsmodels.PairKey, 0, len(a.counters))
	for k := range a.counters {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	rows = make([]*statsmodels.MissedBlockCumulative, 0, len(keys))
	for _, k := range keys {
		c := a.counters[k]
		if c.Seeded {
			modified++
		} else {
			upserted++
		}
		rows = append(rows, &statsmodels.MissedBlockCumulative{
			Proposer:    k.Proposer,
			Voter:       k.Voter,
			MissCount:   c.MissCount,
			TotalCount:  c.TotalCount,
			UpdatedAt:   end,
			CommittedAt: committedAt,
		})
	}
	return rows, upserted, modified
}
