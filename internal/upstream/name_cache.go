package upstream

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
)

// NameCache keeps usernames and lot display names in Redis so listing
// endpoints do not hit the upstream services once per row.  Only display
// names are cached; availability is always read live.  A nil *NameCache is
// valid and caches nothing.
type NameCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewNameCache returns a cache backed by rdb, or nil when rdb is nil.
func NewNameCache(rdb *redis.Client, ttl time.Duration) *NameCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &NameCache{rdb: rdb, ttl: ttl, prefix: "reservation:names"}
}

func (n *NameCache) userKey(userID int64) string {
	return n.prefix + ":user:" + strconv.FormatInt(userID, 10)
}

func (n *NameCache) lotKey(parkingLotID string) string {
	return n.prefix + ":lot:" + parkingLotID
}

func (n *NameCache) username(ctx context.Context, userID int64) (string, bool) {
	if n == nil {
		return "", false
	}
	return n.get(ctx, n.userKey(userID))
}

func (n *NameCache) lotName(ctx context.Context, parkingLotID string) (string, bool) {
	if n == nil {
		return "", false
	}
	return n.get(ctx, n.lotKey(parkingLotID))
}

func (n *NameCache) putUsername(ctx context.Context, userID int64, name string) {
	if n == nil || name == "" {
		return
	}
	n.set(ctx, n.userKey(userID), name)
}

func (n *NameCache) putLotName(ctx context.Context, parkingLotID, name string) {
	if n == nil || name == "" {
		return
	}
	n.set(ctx, n.lotKey(parkingLotID), name)
}

func (n *NameCache) get(ctx context.Context, key string) (string, bool) {
	v, err := n.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WarnContext(ctx, "name cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

func (n *NameCache) set(ctx context.Context, key, value string) {
	if err := n.rdb.Set(ctx, key, value, n.ttl).Err(); err != nil {
		logger.WarnContext(ctx, "name cache write failed", "key", key, "error", err)
	}
}
