package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/achievement-engine/internal/achievement"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// completeMarker is stored in every fully loaded set. A set without it is a cache miss.
const completeMarker = "~"

// UnlockCache caches the set of achievement IDs each account owns.
// Postgres stays the source of truth; the cache only saves a query per score.
type UnlockCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewUnlockCache creates an unlock cache whose entries expire after ttl
func NewUnlockCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *UnlockCache {
	return &UnlockCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// unlockKey returns the Redis key for an account's owned set
func unlockKey(accountID uuid.UUID) string {
	return fmt.Sprintf("server:accounts:%s:achievements", accountID)
}

// Owned returns the cached owned set. found is false when the account is not cached.
func (c *UnlockCache) Owned(ctx context.Context, accountID uuid.UUID) (achievement.Set, bool, error) {
	members, err := c.client.SMembers(ctx, unlockKey(accountID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("reading unlock cache: %w", err)
	}

	owned := achievement.NewSet()
	complete := false
	for _, member := range members {
		if member == completeMarker {
			complete = true
			continue
		}
		id, err := strconv.Atoi(member)
		if err != nil {
			c.logger.Warn("ignoring malformed unlock cache member",
				"account_id", accountID,
				"member", member,
			)
			continue
		}
		owned.Add(id)
	}

	if !complete {
		return nil, false, nil
	}
	return owned, true, nil
}

// Store replaces the cached set for an account with ids
func (c *UnlockCache) Store(ctx context.Context, accountID uuid.UUID, ids []int) error {
	key := unlockKey(accountID)
	members := make([]interface{}, 0, len(ids)+1)
	members = append(members, completeMarker)
	for _, id := range ids {
		members = append(members, strconv.Itoa(id))
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing unlock cache: %w", err)
	}
	return nil
}

// Add appends newly unlocked ids to an account's cached set.
// When the account is not cached the result lacks the marker and still reads as a miss.
func (c *UnlockCache) Add(ctx context.Context, accountID uuid.UUID, ids []int) error {
	if len(ids) == 0 {
		return nil
	}

	key := unlockKey(accountID)
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = strconv.Itoa(id)
	}

	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("adding to unlock cache: %w", err)
	}
	return nil
}

// Invalidate drops an account's cached set
func (c *UnlockCache) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	if err := c.client.Del(ctx, unlockKey(accountID)).Err(); err != nil {
		return fmt.Errorf("invalidating unlock cache: %w", err)
	}
	return nil
}
