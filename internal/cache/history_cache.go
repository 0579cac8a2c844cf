package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/zain100000/ETutor/internal/models"
)

// HistoryCache keeps the first page of a session's message log in
// Redis. It is purely an accelerator: every mutation of the log
// (append, read-marking) must invalidate the session's entry, and the
// TTL bounds staleness if an invalidation is lost.
type HistoryCache struct {
	client     *redisv9.Client
	historyTTL time.Duration
}

type cachedHistory struct {
	Messages []models.Message `json:"messages"`
	Total    int              `json:"total"`
}

func NewHistoryCache(client *redisv9.Client, historyTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	return &HistoryCache{
		client:     client,
		historyTTL: historyTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, sessionID int64) ([]models.Message, int, bool, error) {
	raw, err := c.client.Get(ctx, c.historyKey(sessionID)).Result()
	if err == redisv9.Nil {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var entry cachedHistory
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, 0, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return entry.Messages, entry.Total, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, sessionID int64, messages []models.Message, total int) error {
	payload, err := json.Marshal(cachedHistory{Messages: messages, Total: total})
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.historyKey(sessionID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, sessionID int64) error {
	if err := c.client.Del(ctx, c.historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) historyKey(sessionID int64) string {
	return fmt.Sprintf("chat:history:%d", sessionID)
}
