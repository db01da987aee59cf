package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeStreams struct {
	mu      sync.Mutex
	pending []redis.XMessage
	batches [][]redis.XMessage
	errs    []error
	cursors []string
	acked   []string
	groups  []string
}

// next serves scripted reads. Pending entries are only delivered to a group read of "0".
func (f *fakeStreams) next(ctx context.Context, stream, cursor string, group bool) ([]redis.XStream, error) {
	f.mu.Lock()
	f.cursors = append(f.cursors, cursor)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return nil, err
	}
	if group && cursor == "0" {
		msgs := f.pending
		f.pending = nil
		f.mu.Unlock()
		return []redis.XStream{{Stream: stream, Messages: msgs}}, nil
	}
	if len(f.batches) > 0 {
		msgs := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return []redis.XStream{{Stream: stream, Messages: msgs}}, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeStreams) XRead(ctx context.Context, stream, lastID string, _ int64, _ time.Duration) ([]redis.XStream, error) {
	return f.next(ctx, stream, lastID, false)
}

func (f *fakeStreams) XReadGroup(ctx context.Context, _, _, stream, id string, _ int64, _ time.Duration) ([]redis.XStream, error) {
	return f.next(ctx, stream, id, true)
}

func (f *fakeStreams) XAck(_ context.Context, _, _ string, ids ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return int64(len(ids)), nil
}

func (f *fakeStreams) XGroupCreateMkStream(_ context.Context, stream, group, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, stream+"/"+group)
	return nil
}

func entry(id string, height interface{}) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]interface{}{"height": height, "chainId": "1"}}
}

func TestNewStreamConsumerValidation(t *testing.T) {
	_, err := NewStreamConsumer(nil, StreamConsumerConfig{Stream: "s"})
	require.Error(t, err)
	_, err = NewStreamConsumer(&fakeStreams{}, StreamConsumerConfig{})
	require.Error(t, err)
	_, err = NewStreamConsumer(&fakeStreams{}, StreamConsumerConfig{Stream: "s", Group: "g"})
	require.Error(t, err)

	sc, err := NewStreamConsumer(&fakeStreams{}, StreamConsumerConfig{Stream: "s"})
	require.NoError(t, err)
	require.Equal(t, "$", sc.config.LastID)
	require.Equal(t, int64(100), sc.config.Count)
	require.Equal(t, 5*time.Second, sc.config.Block)
}

func TestStreamConsumerGroupDrainsPendingFirst(t *testing.T) {
	fake := &fakeStreams{
		pending: []redis.XMessage{entry("1-0", "5")},
		batches: [][]redis.XMessage{{entry("2-0", "6"), entry("3-0", "bad")}},
	}
	sc, err := NewStreamConsumer(fake, StreamConsumerConfig{
		Stream:   "chain:block.indexed",
		Group:    "stats",
		Consumer: "stats-1",
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var heights []uint64
	err = sc.Run(ctx, func(_ context.Context, msg Message) error {
		h := msg.GetHeight()
		heights = append(heights, h)
		if msg.ID == "3-0" {
			cancel()
		}
		if h == 0 {
			return errors.New("no height")
		}
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []uint64{5, 6, 0}, heights)
	require.Equal(t, []string{"1-0", "2-0"}, fake.acked)
	require.Equal(t, []string{"chain:block.indexed/stats"}, fake.groups)
	require.Equal(t, []string{"0", ">"}, fake.cursors)
}

func TestStreamConsumerRetriesReadErrors(t *testing.T) {
	fake := &fakeStreams{
		errs:    []error{errors.New("connection refused"), errors.New("connection refused")},
		batches: [][]redis.XMessage{{entry("9-0", 9)}},
	}
	sc, err := NewStreamConsumer(fake, StreamConsumerConfig{
		Stream:        "s",
		LastID:        "0",
		RetryInterval: time.Millisecond,
		Logger:        zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []string
	err = sc.Run(ctx, func(_ context.Context, msg Message) error {
		got = append(got, msg.ID)
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"9-0"}, got)
	require.Equal(t, []string{"0", "0", "0"}, fake.cursors)
	require.Empty(t, fake.acked)
}

func TestStreamConsumerAdvancesCursorWithoutGroup(t *testing.T) {
	fake := &fakeStreams{
		batches: [][]redis.XMessage{{entry("1-0", 1)}, {entry("2-0", 2)}},
	}
	sc, err := NewStreamConsumer(fake, StreamConsumerConfig{Stream: "s", Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = sc.Run(ctx, func(_ context.Context, msg Message) error {
		if msg.ID == "2-0" {
			cancel()
		}
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"$", "1-0"}, fake.cursors)
}

func TestMessageFields(t *testing.T) {
	m := Message{Values: map[string]interface{}{"height": " 42 ", "chain_id": int64(3)}}
	require.Equal(t, uint64(42), m.GetHeight())
	require.Equal(t, "3", m.GetChainID())

	m = Message{Values: map[string]interface{}{"height": "-1", "chainId": "canopy-1"}}
	require.Zero(t, m.GetHeight())
	require.Equal(t, "canopy-1", m.GetChainID())

	require.Zero(t, (&Message{}).GetHeight())
	require.Empty(t, (&Message{}).GetChainID())
	require.Equal(t, uint64(7), parseUint64(float64(7)))
	require.Zero(t, parseUint64(int(-2)))
}
