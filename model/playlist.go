package model

import "time"

// Playlist is a user-curated ordered sequence of tracks.
type Playlist struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	TrackCount  int       `json:"trackCount"`
	Tracks      []Track   `json:"tracks,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
