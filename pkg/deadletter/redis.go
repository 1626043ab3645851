package deadletter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
)

const (
	orderKey   = "deadletter:order"
	entriesKey = "deadletter:entries"
)

// RedisQueue keeps run ids in a list for ordering and the entries in a hash.
type RedisQueue struct {
	client redis.UniversalClient
}

func NewRedisQueue(client redis.UniversalClient) *RedisQueue {
	return &RedisQueue{client: client}
}

// Push re-pushing an existing run id moves it to the tail.
func (q *RedisQueue) Push(ctx context.Context, entry models.DeadLetterEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter entry: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, orderKey, 0, entry.RunID)
		pipe.RPush(ctx, orderKey, entry.RunID)
		pipe.HSet(ctx, entriesKey, entry.RunID, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push dead-letter entry: %w", err)
	}
	return nil
}

func (q *RedisQueue) Drain(ctx context.Context, max int) ([]models.DeadLetterEntry, error) {
	max = ClampMax(max)
	ids, err := q.client.LRange(ctx, orderKey, 0, int64(max-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead-letter entries: %w", err)
	}
	if len(ids) == 0 {
		return []models.DeadLetterEntry{}, nil
	}

	values, err := q.client.HMGet(ctx, entriesKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load dead-letter entries: %w", err)
	}

	entries := make([]models.DeadLetterEntry, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// order list and hash drifted; the id alone cannot be replayed
			continue
		}
		var entry models.DeadLetterEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode dead-letter entry %s: %w", ids[i], err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (q *RedisQueue) Get(ctx context.Context, runID string) (*models.DeadLetterEntry, error) {
	raw, err := q.client.HGet(ctx, entriesKey, runID).Bytes()
	if err == redis.Nil {
		return nil, apperr.NotFound("dead-letter entry", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dead-letter entry %s: %w", runID, err)
	}
	var entry models.DeadLetterEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode dead-letter entry %s: %w", runID, err)
	}
	return &entry, nil
}

func (q *RedisQueue) Ack(ctx context.Context, runID string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, orderKey, 0, runID)
		pipe.HDel(ctx, entriesKey, runID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ack dead-letter entry %s: %w", runID, err)
	}
	return nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, orderKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count dead-letter entries: %w", err)
	}
	return n, nil
}
