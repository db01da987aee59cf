package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/pkg/utils"
)

// Options configures the Redis connection.
type Options struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// OptionsFromEnv reads REDIS_HOST (localhost), REDIS_PORT (6379), REDIS_PASSWORD and REDIS_DB (0).
func OptionsFromEnv() Options {
	return Options{
		Host:     utils.Env("REDIS_HOST", "localhost"),
		Port:     utils.Env("REDIS_PORT", "6379"),
		Password: utils.Env("REDIS_PASSWORD", ""),
		DB:       int(utils.EnvUint64("REDIS_DB", 0)),
	}
}

// Addr is host:port.
func (o Options) Addr() string {
	return fmt.Sprintf("%s:%s", o.Host, o.Port)
}

// Client wraps the Redis client for consuming chain event streams.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

var _ Streams = (*Client)(nil)

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, logger *zap.Logger, opts Options) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr(),
		Password: opts.Password,
		DB:       opts.DB,

		PoolSize:     4,
		MinIdleConns: 1,

		DialTimeout: 5 * time.Second,
		// Blocking stream reads wait up to the consumer's Block; the read timeout must exceed it.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr(), err)
	}

	logger.Info("Connected to Redis", zap.String("addr", opts.Addr()), zap.Int("db", opts.DB))
	return &Client{client: rdb, logger: logger}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Health pings Redis.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// XRead reads entries after lastID.
func (c *Client) XRead(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]redis.XStream, error) {
	return c.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   count,
		Block:   block,
	}).Result()
}

// XReadGroup reads entries through a consumer group. Use ">" for undelivered entries and "0"
// for entries delivered to this consumer but not yet acknowledged.
func (c *Client) XReadGroup(ctx context.Context, group, consumer, stream, id string, count int64, block time.Duration) ([]redis.XStream, error) {
	return c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    count,
		Block:    block,
	}).Result()
}

// XAck acknowledges processed entries.
func (c *Client) XAck(ctx context.Context, stream, group string, ids ...string) (int64, error) {
	return c.client.XAck(ctx, stream, group, ids...).Result()
}

// XGroupCreateMkStream creates a consumer group and the stream if needed.
// An existing group is not an error.
func (c *Client) XGroupCreateMkStream(ctx context.Context, stream, group, start string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}
