package model

// UserPreferences are per-user playback and UI settings.
type UserPreferences struct {
	Volume       int    `json:"volume"` // 0-100
	AudioQuality string `json:"audioQuality"`
	Theme        string `json:"theme"`
}

// DefaultPreferences returns the defaults for a new user.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Volume:       80,
		AudioQuality: "standard",
		Theme:        "dark",
	}
}
