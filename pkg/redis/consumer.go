package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Streams is the subset of the Redis stream API used by StreamConsumer.
type Streams interface {
	XRead(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]redis.XStream, error)
	XReadGroup(ctx context.Context, group, consumer, stream, id string, count int64, block time.Duration) ([]redis.XStream, error)
	XAck(ctx context.Context, stream, group string, ids ...string) (int64, error)
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) error
}

// StreamConsumerConfig configures a StreamConsumer.
type StreamConsumerConfig struct {
	// Stream is the Redis stream name to consume from (required).
	Stream string

	// Group is the consumer group name. Without a group entries are read with XREAD from LastID.
	Group string

	// Consumer is the consumer name within the group. Required if Group is set.
	Consumer string

	// LastID is the starting position without a group. Default: "$" (new entries only).
	LastID string

	// Count is the max number of entries to read per batch. Default: 100.
	Count int64

	// Block is how long to wait for new entries. Default: 5 seconds.
	Block time.Duration

	// RetryInterval is the first wait after a read error, doubled up to MaxRetryInterval.
	// Defaults: 1 second and 30 seconds.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration

	Logger *zap.Logger
}

// MessageHandler processes a stream message. A nil return acknowledges it when consuming
// through a group; an error leaves it pending for redelivery.
type MessageHandler func(ctx context.Context, msg Message) error

// Message is a single stream entry.
type Message struct {
	ID     string
	Stream string
	Values map[string]interface{}
}

// StreamConsumer consumes a Redis stream and retries read errors with backoff.
type StreamConsumer struct {
	streams Streams
	config  StreamConsumerConfig
	logger  *zap.Logger
}

// NewStreamConsumer validates config and applies defaults.
func NewStreamConsumer(streams Streams, config StreamConsumerConfig) (*StreamConsumer, error) {
	if streams == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Stream == "" {
		return nil, errors.New("stream name is required")
	}
	if config.Group != "" && config.Consumer == "" {
		return nil, errors.New("consumer name is required when using consumer groups")
	}

	if config.LastID == "" {
		config.LastID = "$"
	}
	if config.Count == 0 {
		config.Count = 100
	}
	if config.Block == 0 {
		config.Block = 5 * time.Second
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = 1 * time.Second
	}
	if config.MaxRetryInterval == 0 {
		config.MaxRetryInterval = 30 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamConsumer{streams: streams, config: config, logger: logger}, nil
}

// Run consumes until ctx is cancelled. With a group, entries left pending by a previous run are
// redelivered before new ones.
func (sc *StreamConsumer) Run(ctx context.Context, handler MessageHandler) error {
	if sc.config.Group != "" {
		if err := sc.streams.XGroupCreateMkStream(ctx, sc.config.Stream, sc.config.Group, "$"); err != nil {
			return err
		}
		sc.logger.Info("Consumer group ready",
			zap.String("stream", sc.config.Stream),
			zap.String("group", sc.config.Group),
			zap.String("consumer", sc.config.Consumer))
	}

	// "0" reads this consumer's pending entries; an empty pending read switches to ">".
	cursor := sc.config.LastID
	if sc.config.Group != "" {
		cursor = "0"
	}
	retryInterval := sc.config.RetryInterval

	for {
		if err := ctx.Err(); err != nil {
			sc.logger.Info("Stream consumer shutting down",
				zap.String("stream", sc.config.Stream),
				zap.String("group", sc.config.Group))
			return err
		}

		messages, err := sc.read(ctx, cursor)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, redis.Nil) {
				continue
			}

			sc.logger.Warn("Error reading from stream, will retry",
				zap.String("stream", sc.config.Stream),
				zap.Error(err),
				zap.Duration("retryIn", retryInterval))

			select {
			case <-time.After(retryInterval):
				retryInterval = min(retryInterval*2, sc.config.MaxRetryInterval)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		retryInterval = sc.config.RetryInterval

		if sc.config.Group != "" && cursor == "0" && len(messages) == 0 {
			cursor = ">"
			continue
		}

		for _, msg := range messages {
			if err := sc.process(ctx, handler, msg); err != nil {
				sc.logger.Error("Error processing message",
					zap.String("stream", sc.config.Stream),
					zap.String("id", msg.ID),
					zap.Error(err))
				continue
			}
			if sc.config.Group == "" {
				cursor = msg.ID
			}
		}
		if sc.config.Group != "" && cursor == "0" && len(messages) > 0 {
			// Pending entries that failed again stay pending; move on to new entries.
			cursor = ">"
		}
	}
}

func (sc *StreamConsumer) read(ctx context.Context, cursor string) ([]Message, error) {
	var (
		streams []redis.XStream
		err     error
	)
	if sc.config.Group != "" {
		streams, err = sc.streams.XReadGroup(ctx, sc.config.Group, sc.config.Consumer, sc.config.Stream, cursor, sc.config.Count, sc.config.Block)
	} else {
		streams, err = sc.streams.XRead(ctx, sc.config.Stream, cursor, sc.config.Count, sc.config.Block)
	}
	if err != nil {
		return nil, err
	}

	var messages []Message
	for _, stream := range streams {
		for _, xmsg := range stream.Messages {
			messages = append(messages, Message{ID: xmsg.ID, Stream: stream.Stream, Values: xmsg.Values})
		}
	}
	return messages, nil
}

func (sc *StreamConsumer) process(ctx context.Context, handler MessageHandler, msg Message) error {
	if err := handler(ctx, msg); err != nil {
		return err
	}
	if sc.config.Group != "" {
		if _, err := sc.streams.XAck(ctx, sc.config.Stream, sc.config.Group, msg.ID); err != nil {
			sc.logger.Warn("Failed to acknowledge message",
				zap.String("stream", sc.config.Stream),
				zap.String("id", msg.ID),
				zap.Error(err))
		}
	}
	return nil
}

// GetHeight returns the "height" field, or 0 if missing or malformed.
func (m *Message) GetHeight() uint64 {
	return parseUint64(m.Values["height"])
}

// GetChainID returns the "chainId" or "chain_id" field as a string.
func (m *Message) GetChainID() string {
	val, ok := m.Values["chainId"]
	if !ok {
		val, ok = m.Values["chain_id"]
	}
	if !ok {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	default:
		if n := parseUint64(v); n != 0 {
			return strconv.FormatUint(n, 10)
		}
	}
	return ""
}

func parseUint64(v interface{}) uint64 {
	switch val := v.(type) {
	case uint64:
		return val
	case int64:
		if val > 0 {
			return uint64(val)
		}
	case int:
		if val > 0 {
			return uint64(val)
		}
	case float64:
		if val > 0 {
			return uint64(val)
		}
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(val), 10, 64)
		if err == nil {
			return n
		}
	}
	return 0
}
