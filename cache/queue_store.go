package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"streamflow/logger"
	"streamflow/model"

	"github.com/go-redis/redis/v8"
)

// Storage key prefixes. The versioned names are part of the external
// interface; bump the version when the serialized shape changes.
const (
	queueKeyPrefix = "sf_queue_v1"
	stateKeyPrefix = "sf_player_state_v1"
)

// QueueStore persists the play queue and player state per user. Loads never
// fail upward: absent or corrupt data yields an empty queue and default
// state. Saves are best-effort; the caller decides what to do with a write
// error (the player keeps its in-memory state valid either way).
type QueueStore struct {
	rdb *redis.Client
}

// NewQueueStore creates a QueueStore on the given Redis client.
func NewQueueStore(rdb *redis.Client) *QueueStore {
	return &QueueStore{rdb: rdb}
}

func queueKey(userID int64) string {
	return fmt.Sprintf("%s:%d", queueKeyPrefix, userID)
}

func stateKey(userID int64) string {
	return fmt.Sprintf("%s:%d", stateKeyPrefix, userID)
}

// Load returns the stored queue and player state for a user. Corrupt entries
// are dropped with a warning; a corrupt state blob falls back to the zero
// state. AddedAt timestamps round-trip through their string serialization
// back into time.Time values.
func (s *QueueStore) Load(ctx context.Context, userID int64) ([]model.QueueEntry, model.PlayerState) {
	var queue []model.QueueEntry
	var state model.PlayerState

	members, err := s.rdb.ZRangeByScore(ctx, queueKey(userID), &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		logger.Warn("failed to load queue, starting empty",
			logger.Int64("userId", userID), logger.ErrorField(err))
		return []model.QueueEntry{}, state
	}

	for _, member := range members {
		entry, err := decodeEntry(member)
		if err != nil {
			logger.Warn("dropping corrupt queue entry",
				logger.Int64("userId", userID), logger.ErrorField(err))
			continue
		}
		queue = append(queue, entry)
	}

	raw, err := s.rdb.Get(ctx, stateKey(userID)).Result()
	if err == nil {
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			logger.Warn("corrupt player state, using defaults",
				logger.Int64("userId", userID), logger.ErrorField(err))
			state = model.PlayerState{}
		}
	} else if err != redis.Nil {
		logger.Warn("failed to load player state, using defaults",
			logger.Int64("userId", userID), logger.ErrorField(err))
	}

	if queue == nil {
		queue = []model.QueueEntry{}
	}
	return queue, state
}

// Save replaces the stored queue with the given entries. Positions are
// rewritten to match slice order.
func (s *QueueStore) Save(ctx context.Context, userID int64, queue []model.QueueEntry) error {
	key := queueKey(userID)

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	for i := range queue {
		queue[i].Position = i
		member, err := json.Marshal(queue[i])
		if err != nil {
			return fmt.Errorf("failed to marshal queue entry: %w", err)
		}
		pipe.ZAdd(ctx, key, &redis.Z{
			Score:  float64(i),
			Member: member,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}
	return nil
}

// SaveState writes the player state.
func (s *QueueStore) SaveState(ctx context.Context, userID int64, state model.PlayerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal player state: %w", err)
	}
	if err := s.rdb.Set(ctx, stateKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save player state: %w", err)
	}
	return nil
}

// Clear removes both the queue and state keys. Used on logout or explicit
// reset.
func (s *QueueStore) Clear(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, queueKey(userID), stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear queue storage: %w", err)
	}
	return nil
}

func decodeEntry(member string) (model.QueueEntry, error) {
	var entry model.QueueEntry
	if err := json.Unmarshal([]byte(member), &entry); err != nil {
		return model.QueueEntry{}, fmt.Errorf("failed to unmarshal queue entry: %w", err)
	}
	if entry.Track.ID == "" {
		return model.QueueEntry{}, fmt.Errorf("queue entry missing track id")
	}
	return entry, nil
}
