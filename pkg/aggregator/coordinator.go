package aggregator

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Kind names an aggregator. At most one run per kind is in flight per process.
type Kind string

const (
	KindMissedBlocks      Kind = "missed_blocks"
	KindMissedBlocksStats Kind = "missed_blocks_stats"
	KindRollingMinute     Kind = "rolling_minute"
	KindRollingHour       Kind = "rolling_hour"
	KindRollingDay        Kind = "rolling_day"
	KindValidatorDaily    Kind = "validator_daily"
)

// Kinds lists every aggregator kind.
var Kinds = []Kind{
	KindMissedBlocks,
	KindMissedBlocksStats,
	KindRollingMinute,
	KindRollingHour,
	KindRollingDay,
	KindValidatorDaily,
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrUnknownKind
}

// State is the in-flight state of a kind.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

type kindState struct {
	state     atomic.Int32
	startedAt atomic.Int64
	last      atomic.Pointer[KindSnapshot]
}

// KindSnapshot is the observable state of a kind.
type KindSnapshot struct {
	Kind       Kind      `json:"kind"`
	State      string    `json:"state"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Coordinator owns the per-kind Idle/Running records.
type Coordinator struct {
	states  *xsync.Map[Kind, *kindState]
	metrics *Metrics
}

func NewCoordinator(metrics *Metrics) *Coordinator {
	return &Coordinator{states: xsync.NewMap[Kind, *kindState](), metrics: metrics}
}

func (c *Coordinator) state(kind Kind) *kindState {
	st, _ := c.states.LoadOrStore(kind, &kindState{})
	return st
}

// TryAcquire moves kind from Idle to Running. It returns false if it was already Running.
func (c *Coordinator) TryAcquire(kind Kind) bool {
	st := c.state(kind)
	if !st.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return false
	}
	st.startedAt.Store(time.Now().UnixNano())
	return true
}

// Release moves kind back to Idle.
func (c *Coordinator) Release(kind Kind) {
	c.state(kind).state.Store(int32(Idle))
}

// Run executes fn unless a run of kind is already in flight, in which case it returns a busy
// Result immediately. The Running state is cleared whether fn succeeds or fails.
func (c *Coordinator) Run(ctx context.Context, kind Kind, fn func(ctx context.Context) (Result, error)) (Result, error) {
	if !c.TryAcquire(kind) {
		res := Result{Kind: kind, Busy: true}
		c.metrics.observeRun(res, nil)
		return res, nil
	}
	defer c.Release(kind)

	res, err := fn(ctx)
	res.Kind = kind
	c.metrics.observeRun(res, err)

	snap := &KindSnapshot{Kind: kind, FinishedAt: time.Now()}
	if err != nil {
		snap.LastError = err.Error()
	} else {
		snap.LastStatus = res.Status()
	}
	c.state(kind).last.Store(snap)
	return res, err
}

// Snapshot returns the state of every kind that has been touched, ordered by kind.
func (c *Coordinator) Snapshot() []KindSnapshot {
	out := make([]KindSnapshot, 0, c.states.Size())
	c.states.Range(func(kind Kind, st *kindState) bool {
		snap := KindSnapshot{Kind: kind, State: State(st.state.Load()).String()}
		if last := st.last.Load(); last != nil {
			snap.LastStatus = last.LastStatus
			snap.LastError = last.LastError
			snap.FinishedAt = last.FinishedAt
		}
		if State(st.state.Load()) == Running {
			snap.StartedAt = time.Unix(0, st.startedAt.Load())
		}
		out = append(out, snap)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
