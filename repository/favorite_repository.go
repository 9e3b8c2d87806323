package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"streamflow/model"
)

// FavoriteRepository manages a user's liked tracks. The remote database is
// the source of truth; the unique key on (user_id, track_id) makes inserts
// and re-run migrations atomic and idempotent, replacing any check-then-
// insert sequence in application code.
type FavoriteRepository interface {
	// Add inserts the favorite. Returns false when the row already existed
	// (duplicate add is a no-op, not an error).
	Add(userID int64, track model.Track) (bool, error)
	Remove(userID int64, trackID string) (bool, error)
	IsLiked(userID int64, trackID string) (bool, error)
	List(userID int64) ([]model.FavoriteRecord, error)
	Count(userID int64) (int, error)
	// BulkImport inserts many favorites in one transaction, ignoring rows
	// that already exist. Used by the one-time legacy migration.
	BulkImport(userID int64, tracks []model.Track) (int, error)
}

type mysqlFavoriteRepository struct {
	db *sql.DB
}

// NewMySQLFavoriteRepository creates a new favorite repository.
func NewMySQLFavoriteRepository(db *sql.DB) FavoriteRepository {
	return &mysqlFavoriteRepository{db: db}
}

func (r *mysqlFavoriteRepository) Add(userID int64, track model.Track) (bool, error) {
	trackData, err := json.Marshal(track)
	if err != nil {
		return false, fmt.Errorf("failed to marshal track data: %w", err)
	}

	// INSERT IGNORE makes concurrent duplicate adds collapse onto the
	// unique key instead of racing a separate existence check.
	query := "INSERT IGNORE INTO user_favorites (user_id, track_id, track_data) VALUES (?, ?, ?)"
	res, err := r.db.Exec(query, userID, track.ID, trackData)
	if err != nil {
		return false, fmt.Errorf("failed to insert favorite: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *mysqlFavoriteRepository) Remove(userID int64, trackID string) (bool, error) {
	res, err := r.db.Exec("DELETE FROM user_favorites WHERE user_id = ? AND track_id = ?", userID, trackID)
	if err != nil {
		return false, fmt.Errorf("failed to delete favorite: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *mysqlFavoriteRepository) IsLiked(userID int64, trackID string) (bool, error) {
	var one int
	err := r.db.QueryRow("SELECT 1 FROM user_favorites WHERE user_id = ? AND track_id = ?", userID, trackID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return true, nil
}

func (r *mysqlFavoriteRepository) List(userID int64) ([]model.FavoriteRecord, error) {
	rows, err := r.db.Query(
		"SELECT id, user_id, track_id, track_data, created_at FROM user_favorites WHERE user_id = ? ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var records []model.FavoriteRecord
	for rows.Next() {
		var rec model.FavoriteRecord
		var trackData []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TrackID, &trackData, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite row: %w", err)
		}
		if err := json.Unmarshal(trackData, &rec.Track); err != nil {
			return nil, fmt.Errorf("failed to unmarshal track data for %s: %w", rec.TrackID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate favorites: %w", err)
	}
	return records, nil
}

func (r *mysqlFavoriteRepository) Count(userID int64) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM user_favorites WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count favorites: %w", err)
	}
	return count, nil
}

func (r *mysqlFavoriteRepository) BulkImport(userID int64, tracks []model.Track) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT IGNORE INTO user_favorites (user_id, track_id, track_data) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare import statement: %w", err)
	}
	defer stmt.Close()

	imported := 0
	for _, track := range tracks {
		trackData, err := json.Marshal(track)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal track %s: %w", track.ID, err)
		}
		res, err := stmt.Exec(userID, track.ID, trackData)
		if err != nil {
			return 0, fmt.Errorf("failed to import track %s: %w", track.ID, err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			imported++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return imported, nil
}
