package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/internal/metrics"
)

// Message is one parked delivery. Payload is kept verbatim since it may not be valid JSON.
type Message struct {
	At        time.Time `json:"at"`
	Error     string    `json:"error"`
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       string    `json:"key,omitempty"`
	Payload   string    `json:"payload"`
}

type Client struct {
	cli *redis.Client
	key string
}

func New(cfg config.RedisConfig) *Client {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr}), cfg.DeadLetterKey)
}

func NewWithClient(cli *redis.Client, key string) *Client {
	if key == "" {
		key = "dlq"
	}
	return &Client{cli: cli, key: key}
}

func (c *Client) Push(ctx context.Context, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode dlq message: %w", err)
	}
	if err := c.cli.LPush(ctx, c.key, b).Err(); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("key", c.key).Msg("redis DLQ push failed")
		return fmt.Errorf("push dlq message: %w", err)
	}
	metrics.DLQCount.Inc()
	return nil
}

// Peek returns up to n of the most recently parked messages.
func (c *Client) Peek(ctx context.Context, n int64) ([]Message, error) {
	raw, err := c.cli.LRange(ctx, c.key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dlq: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode dlq message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.cli.Close()
}
