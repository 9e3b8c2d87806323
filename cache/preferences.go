package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"streamflow/model"

	"github.com/go-redis/redis/v8"
)

// PreferenceStore holds per-user UI preferences under the
// user_preferences_<uid> key.
type PreferenceStore struct {
	rdb *redis.Client
}

// NewPreferenceStore creates a PreferenceStore on the given Redis client.
func NewPreferenceStore(rdb *redis.Client) *PreferenceStore {
	return &PreferenceStore{rdb: rdb}
}

func preferencesKey(userID int64) string {
	return fmt.Sprintf("user_preferences_%d", userID)
}

// Get returns the stored preferences, or defaults when absent or corrupt.
func (s *PreferenceStore) Get(ctx context.Context, userID int64) model.UserPreferences {
	prefs := model.DefaultPreferences()

	raw, err := s.rdb.Get(ctx, preferencesKey(userID)).Result()
	if err != nil {
		return prefs
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return model.DefaultPreferences()
	}
	return prefs
}

// Set stores the preferences.
func (s *PreferenceStore) Set(ctx context.Context, userID int64, prefs model.UserPreferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := s.rdb.Set(ctx, preferencesKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
