package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"streamflow/model"

	"github.com/google/uuid"
)

var (
	// ErrPlaylistNotFound is returned when a playlist id does not exist or
	// belongs to another user.
	ErrPlaylistNotFound = errors.New("playlist not found")
)

// PlaylistRepository manages user playlists and their ordered tracks.
type PlaylistRepository interface {
	Create(userID int64, name, description string, isPublic bool) (*model.Playlist, error)
	GetByID(userID int64, playlistID string) (*model.Playlist, error)
	ListByUser(userID int64) ([]model.Playlist, error)
	Update(userID int64, playlistID, name, description string, isPublic bool) error
	Delete(userID int64, playlistID string) error
	AddTrack(userID int64, playlistID string, track model.Track) error
	RemoveTrack(userID int64, playlistID, trackID string) error
	Tracks(playlistID string) ([]model.Track, error)
	CountByUser(userID int64) (int, error)
	CountTracks(playlistID string) (int, error)
}

type mysqlPlaylistRepository struct {
	db *sql.DB
}

// NewMySQLPlaylistRepository creates a new playlist repository.
func NewMySQLPlaylistRepository(db *sql.DB) PlaylistRepository {
	return &mysqlPlaylistRepository{db: db}
}

func (r *mysqlPlaylistRepository) Create(userID int64, name, description string, isPublic bool) (*model.Playlist, error) {
	id := uuid.NewString()
	query := "INSERT INTO playlists (id, user_id, name, description, is_public) VALUES (?, ?, ?, ?, ?)"
	if _, err := r.db.Exec(query, id, userID, name, description, isPublic); err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	return r.GetByID(userID, id)
}

func (r *mysqlPlaylistRepository) GetByID(userID int64, playlistID string) (*model.Playlist, error) {
	query := `SELECT id, user_id, name, COALESCE(description, ''), is_public, created_at, updated_at
		FROM playlists WHERE id = ? AND user_id = ?`
	row := r.db.QueryRow(query, playlistID, userID)

	pl := &model.Playlist{}
	err := row.Scan(&pl.ID, &pl.UserID, &pl.Name, &pl.Description, &pl.IsPublic, &pl.CreatedAt, &pl.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPlaylistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist %s: %w", playlistID, err)
	}

	tracks, err := r.Tracks(playlistID)
	if err != nil {
		return nil, err
	}
	pl.Tracks = tracks
	pl.TrackCount = len(tracks)
	return pl, nil
}

func (r *mysqlPlaylistRepository) ListByUser(userID int64) ([]model.Playlist, error) {
	query := `SELECT p.id, p.user_id, p.name, COALESCE(p.description, ''), p.is_public,
		p.created_at, p.updated_at, COUNT(pt.track_id)
		FROM playlists p
		LEFT JOIN playlist_tracks pt ON pt.playlist_id = p.id
		WHERE p.user_id = ?
		GROUP BY p.id
		ORDER BY p.created_at DESC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []model.Playlist
	for rows.Next() {
		var pl model.Playlist
		if err := rows.Scan(&pl.ID, &pl.UserID, &pl.Name, &pl.Description, &pl.IsPublic,
			&pl.CreatedAt, &pl.UpdatedAt, &pl.TrackCount); err != nil {
			return nil, fmt.Errorf("failed to scan playlist row: %w", err)
		}
		playlists = append(playlists, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlists: %w", err)
	}
	return playlists, nil
}

func (r *mysqlPlaylistRepository) Update(userID int64, playlistID, name, description string, isPublic bool) error {
	query := "UPDATE playlists SET name = ?, description = ?, is_public = ?, updated_at = NOW() WHERE id = ? AND user_id = ?"
	res, err := r.db.Exec(query, name, description, isPublic, playlistID, userID)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		// May also mean nothing changed; verify existence for a clean error.
		if _, err := r.GetByID(userID, playlistID); err != nil {
			return err
		}
	}
	return nil
}

func (r *mysqlPlaylistRepository) Delete(userID int64, playlistID string) error {
	res, err := r.db.Exec("DELETE FROM playlists WHERE id = ? AND user_id = ?", playlistID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrPlaylistNotFound
	}
	return nil
}

func (r *mysqlPlaylistRepository) AddTrack(userID int64, playlistID string, track model.Track) error {
	// Ownership check before touching membership.
	if _, err := r.GetByID(userID, playlistID); err != nil {
		return err
	}

	trackData, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to marshal track data: %w", err)
	}

	// Appends at the current tail; the composite primary key makes a
	// duplicate add a no-op.
	query := `INSERT IGNORE INTO playlist_tracks (playlist_id, track_id, track_data, position)
		SELECT ?, ?, ?, COALESCE(MAX(position) + 1, 0) FROM playlist_tracks WHERE playlist_id = ?`
	if _, err := r.db.Exec(query, playlistID, track.ID, trackData, playlistID); err != nil {
		return fmt.Errorf("failed to add track to playlist: %w", err)
	}
	return nil
}

func (r *mysqlPlaylistRepository) RemoveTrack(userID int64, playlistID, trackID string) error {
	if _, err := r.GetByID(userID, playlistID); err != nil {
		return err
	}
	if _, err := r.db.Exec("DELETE FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?", playlistID, trackID); err != nil {
		return fmt.Errorf("failed to remove track from playlist: %w", err)
	}
	return nil
}

func (r *mysqlPlaylistRepository) Tracks(playlistID string) ([]model.Track, error) {
	rows, err := r.db.Query(
		"SELECT track_data FROM playlist_tracks WHERE playlist_id = ? ORDER BY position ASC", playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	var tracks []model.Track
	for rows.Next() {
		var trackData []byte
		if err := rows.Scan(&trackData); err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		var track model.Track
		if err := json.Unmarshal(trackData, &track); err != nil {
			return nil, fmt.Errorf("failed to unmarshal playlist track: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlist tracks: %w", err)
	}
	return tracks, nil
}

func (r *mysqlPlaylistRepository) CountByUser(userID int64) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM playlists WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count playlists: %w", err)
	}
	return count, nil
}

func (r *mysqlPlaylistRepository) CountTracks(playlistID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ?", playlistID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count playlist tracks: %w", err)
	}
	return count, nil
}
