package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"streamflow/model"
)

// HistoryRepository records listening history. Rows are append-only.
type HistoryRepository interface {
	Record(userID int64, track model.Track) error
	Recent(userID int64, limit int) ([]model.HistoryEntry, error)
}

type mysqlHistoryRepository struct {
	db *sql.DB
}

// NewMySQLHistoryRepository creates a new history repository.
func NewMySQLHistoryRepository(db *sql.DB) HistoryRepository {
	return &mysqlHistoryRepository{db: db}
}

func (r *mysqlHistoryRepository) Record(userID int64, track model.Track) error {
	trackData, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to marshal track data: %w", err)
	}
	_, err = r.db.Exec(
		"INSERT INTO user_listening_history (user_id, track_id, track_data) VALUES (?, ?, ?)",
		userID, track.ID, trackData)
	if err != nil {
		return fmt.Errorf("failed to record listening history: %w", err)
	}
	return nil
}

func (r *mysqlHistoryRepository) Recent(userID int64, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.Query(
		"SELECT id, user_id, track_id, track_data, played_at FROM user_listening_history WHERE user_id = ? ORDER BY played_at DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query listening history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var entry model.HistoryEntry
		var trackData []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.TrackID, &trackData, &entry.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := json.Unmarshal(trackData, &entry.Track); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history track: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}
