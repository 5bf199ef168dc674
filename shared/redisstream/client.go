package redisstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
	"github.com/redis/go-redis/v9"
)

const (
	payloadField        = "payload"
	contentTypeField    = "content_type"
	defaultMinIdle      = 30 * time.Second
	defaultBlockTimeout = 5 * time.Second
)

// Config holds Redis Streams queue configuration
type Config struct {
	Addr              string
	Password          string
	DB                int
	Stream            string
	Group             string
	Consumer          string
	MaxLen            int64
	BlockTimeout      time.Duration // XREADGROUP block duration
	VisibilityTimeout time.Duration // pending entries idle this long are reclaimed
}

// Client consumes thumbnail jobs from a stream through a consumer group.
// A message stays pending until Delete acknowledges it; pending messages
// idle for longer than the visibility timeout are delivered again.
type Client struct {
	rdb          redis.UniversalClient
	stream       string
	group        string
	consumer     string
	maxLen       int64
	blockTimeout time.Duration
	minIdle      time.Duration
	logger       *slog.Logger
}

// NewClient connects to Redis and ensures the consumer group exists
func NewClient(ctx context.Context, cfg *Config, logger *slog.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c := newClient(rdb, cfg, logger)
	if err := c.ensureGroup(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("Redis stream client initialized",
		slog.String("stream", c.stream),
		slog.String("group", c.group),
		slog.String("consumer", c.consumer),
	)
	return c, nil
}

func newClient(rdb redis.UniversalClient, cfg *Config, logger *slog.Logger) *Client {
	block := cfg.BlockTimeout
	if block <= 0 {
		block = defaultBlockTimeout
	}

	minIdle := cfg.VisibilityTimeout
	if minIdle <= 0 {
		minIdle = defaultMinIdle
	}

	return &Client{
		rdb:          rdb,
		stream:       cfg.Stream,
		group:        cfg.Group,
		consumer:     cfg.Consumer,
		maxLen:       cfg.MaxLen,
		blockTimeout: block,
		minIdle:      minIdle,
		logger:       logger,
	}
}

func (c *Client) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}
	return nil
}

// Receive returns at most one message: an expired pending entry if any,
// otherwise a new entry. It returns nil, nil when the block timeout passes.
func (c *Client) Receive(ctx context.Context) (*domain.Message, error) {
	claimed, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.minIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to claim pending messages: %w", err)
	}
	if len(claimed) > 0 {
		c.logger.Debug("Reclaimed pending message",
			slog.String("id", claimed[0].ID),
		)
		return toMessage(claimed[0]), nil
	}

	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    1,
		Block:    c.blockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, s := range streams {
		if len(s.Messages) > 0 {
			return toMessage(s.Messages[0]), nil
		}
	}
	return nil, nil
}

// Delete acknowledges the entry and removes it from the stream
func (c *Client) Delete(ctx context.Context, handle string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, c.stream, c.group, handle)
		pipe.XDel(ctx, c.stream, handle)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", handle, err)
	}
	return nil
}

// Publish appends body to the stream
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		MaxLen: c.maxLen,
		Approx: c.maxLen > 0,
		Values: map[string]any{
			payloadField:     string(body),
			contentTypeField: contentType,
		},
	}).Result()
	if err != nil {
		c.logger.Error("Failed to publish message to Redis stream",
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("Message published to Redis stream",
		slog.String("id", id),
		slog.Int("body_size", len(body)),
	)
	return nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// toMessage maps a stream entry to a queue message; a missing payload
// yields an empty body that fails decoding downstream
func toMessage(m redis.XMessage) *domain.Message {
	var body string
	switch v := m.Values[payloadField].(type) {
	case string:
		body = v
	case []byte:
		body = string(v)
	}

	return &domain.Message{
		Handle: m.ID,
		Body:   []byte(body),
	}
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}
