package model

import (
	"database/sql"
	"time"
)

// User represents a user in the system.
type User struct {
	ID               int64          `json:"id"`
	Username         string         `json:"username"`
	Email            string         `json:"email"`
	PasswordHash     string         `json:"-"` // Not exposed in API responses
	StripeCustomerID sql.NullString `json:"-"` // Reused across checkouts once set
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// FavoriteRecord is one liked track per (user, track) pair. The database
// enforces uniqueness on that pair.
type FavoriteRecord struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	TrackID   string    `json:"trackId"`
	Track     Track     `json:"track"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryEntry is one row of the append-only listening history.
type HistoryEntry struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"userId"`
	TrackID  string    `json:"trackId"`
	Track    Track     `json:"track"`
	PlayedAt time.Time `json:"playedAt"`
}
