package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"streamflow/model"

	"github.com/go-redis/redis/v8"
)

const (
	recentKeyPrefix = "sf_recently_played"

	// maxRecent caps the recently-played ring per user.
	maxRecent = 50
)

// RecentCache keeps a per-user recently-played list in Redis.
type RecentCache struct {
	rdb *redis.Client
}

// NewRecentCache creates a RecentCache on the given Redis client.
func NewRecentCache(rdb *redis.Client) *RecentCache {
	return &RecentCache{rdb: rdb}
}

func recentKey(userID int64) string {
	return fmt.Sprintf("%s:%d", recentKeyPrefix, userID)
}

// Push records a track at the head of the recently-played list. A track
// already present is moved to the head rather than duplicated.
func (c *RecentCache) Push(ctx context.Context, userID int64, track model.Track) error {
	data, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to marshal track: %w", err)
	}

	key := recentKey(userID)
	pipe := c.rdb.TxPipeline()
	pipe.LRem(ctx, key, 0, data)
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, maxRecent-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push recently played track: %w", err)
	}
	return nil
}

// List returns up to limit recently-played tracks, newest first.
func (c *RecentCache) List(ctx context.Context, userID int64, limit int) ([]model.Track, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}

	members, err := c.rdb.LRange(ctx, recentKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.Track{}, nil
		}
		return nil, fmt.Errorf("failed to list recently played: %w", err)
	}

	tracks := make([]model.Track, 0, len(members))
	for _, member := range members {
		var track model.Track
		if err := json.Unmarshal([]byte(member), &track); err != nil {
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}
