// Package queue is the redis backed mail intake. Mail fetchers push raw
// messages, workers pop them in batches.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xaenox/mailsift/internal/models"
	"go.uber.org/zap"
)

const DefaultKey = "mailsift:messages"

type Queue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
	logger      *zap.Logger
}

func New(url, key string, pollTimeout time.Duration, logger *zap.Logger) (*Queue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	// BRPop honours the caller deadline instead of the read timeout
	opt.ContextTimeoutEnabled = true
	if key == "" {
		key = DefaultKey
	}
	return &Queue{
		client:      redis.NewClient(opt),
		key:         key,
		pollTimeout: pollTimeout,
		logger:      logger,
	}, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Push enqueues messages in order.
func (q *Queue) Push(ctx context.Context, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message %s: %w", m.ID, err)
		}
		values = append(values, data)
	}
	return q.client.LPush(ctx, q.key, values...).Err()
}

// Fetch blocks up to the poll timeout for the first message and then takes
// whatever else is queued, up to max messages.
func (q *Queue) Fetch(ctx context.Context, max int) ([]models.Message, error) {
	res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop message: %w", err)
	}
	if len(res) < 2 {
		return nil, nil
	}

	raw := []string{res[1]}
	if max > 1 {
		more, err := q.client.RPopCount(ctx, q.key, max-1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("pop messages: %w", err)
		}
		raw = append(raw, more...)
	}
	return q.decode(ctx, raw), nil
}

// decode drops undecodable entries into the dead letter list.
func (q *Queue) decode(ctx context.Context, raw []string) []models.Message {
	msgs := make([]models.Message, 0, len(raw))
	for _, r := range raw {
		m, err := decodeMessage(r)
		if err != nil {
			q.logger.Error("Dropping undecodable message", zap.Error(err))
			if err := q.client.LPush(ctx, q.key+":dead", r).Err(); err != nil {
				q.logger.Error("Failed to store dead letter", zap.Error(err))
			}
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func decodeMessage(raw string) (models.Message, error) {
	var m models.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("decode message: %w", err)
	}
	if m.ID == "" {
		return m, errors.New("decode message: missing id")
	}
	return m, nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}
