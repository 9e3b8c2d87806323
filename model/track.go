package model

import "time"

// Track is a playable catalog item. Field names follow the catalog API's wire
// format; a track is immutable once fetched and is referenced, not copied,
// by queue and library entries.
type Track struct {
	ID            string   `json:"id"`
	Title         string   `json:"name"`
	ArtistID      string   `json:"artist_id"`
	ArtistName    string   `json:"artist_name"`
	AlbumID       string   `json:"album_id"`
	AlbumName     string   `json:"album_name"`
	Duration      string   `json:"duration"` // seconds, string-encoded by the catalog
	Image         string   `json:"image"`
	AlbumImage    string   `json:"album_image"`
	Audio         string   `json:"audio"`
	AudioDownload string   `json:"audiodownload"`
	LicenseURL    string   `json:"license_ccurl"`
	Genres        []string `json:"genres,omitempty"`
}

// Artist is a catalog artist search result.
type Artist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Website  string `json:"website,omitempty"`
	JoinDate string `json:"joindate,omitempty"`
	Image    string `json:"image,omitempty"`
}

// QueueEntry is a track in the play queue together with the time it was
// enqueued. Position keeps ordered-set members unique and the order explicit.
type QueueEntry struct {
	Track    Track     `json:"track"`
	AddedAt  time.Time `json:"addedAt"`
	Position int       `json:"position"`
}

// PlayerState is the persisted slice of the player controller. CurrentTrackID
// must match the queue entry at CurrentIndex whenever both are defined; it is
// used to validate state after a reload.
type PlayerState struct {
	CurrentIndex   int    `json:"currentIndex"`
	IsRepeatMode   bool   `json:"isRepeatMode"`
	IsShuffleMode  bool   `json:"isShuffleMode"`
	CurrentTrackID string `json:"currentTrackId,omitempty"`
}
