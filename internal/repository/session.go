package repo

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionTTL = 11 * time.Hour

// RedisSessionStorage maps guest session ids to display names. The identity
// layer is deliberately thin: a stable name plus a cookie is all the game
// core needs.
type RedisSessionStorage struct {
	log    *zap.SugaredLogger
	client *redis.Client
}

func NewSessionRedisStorage(log *zap.SugaredLogger, client *redis.Client) *RedisSessionStorage {
	return &RedisSessionStorage{log: log, client: client}
}

func (r *RedisSessionStorage) GetNameBySession(ctx context.Context, sessionID string) (string, bool) {
	v, err := r.client.Get(ctx, "session:"+sessionID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Errorf("session lookup failed: %v", err)
		}
		return "", false
	}
	return v, true
}

func (r *RedisSessionStorage) StoreSession(ctx context.Context, sessionID, displayName string) {
	if err := r.client.Set(ctx, "session:"+sessionID, displayName, sessionTTL).Err(); err != nil {
		r.log.Errorf("failed to store session: %v", err)
	}
}

func (r *RedisSessionStorage) DeleteSession(ctx context.Context, sessionID string) bool {
	if err := r.client.Del(ctx, "session:"+sessionID).Err(); err != nil {
		r.log.Errorf("failed to delete session: %v", err)
		return false
	}
	return true
}
