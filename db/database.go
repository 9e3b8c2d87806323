package db

import (
	"database/sql"
	"fmt"
	"log"

	"streamflow/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// Connect establishes a connection to the database and returns the handle.
func Connect(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	database, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return database, nil
}

// InitSchema creates the raw-SQL tables if they don't exist. Billing tables
// are migrated separately through GORM.
func InitSchema(database *sql.DB) error {
	if err := createUsersTable(database); err != nil {
		return err
	}
	if err := createFavoritesTable(database); err != nil {
		return err
	}
	if err := createPlaylistTables(database); err != nil {
		return err
	}
	if err := createListeningHistoryTable(database); err != nil {
		return err
	}

	log.Println("Database schema initialization completed.")
	return nil
}

func createUsersTable(database *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		stripe_customer_id VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := database.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

func createFavoritesTable(database *sql.DB) error {
	// The unique key on (user_id, track_id) is what makes favorite inserts
	// and the legacy migration safe to re-run.
	query := `
	CREATE TABLE IF NOT EXISTS user_favorites (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		track_id VARCHAR(64) NOT NULL,
		track_data JSON NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_user_favorites FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT uq_user_track UNIQUE (user_id, track_id)
	);
	`
	_, err := database.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create user_favorites table: %w", err)
	}
	return nil
}

func createPlaylistTables(database *sql.DB) error {
	playlistQuery := `
	CREATE TABLE IF NOT EXISTS playlists (
		id CHAR(36) PRIMARY KEY,
		user_id INT NOT NULL,
		name VARCHAR(255) NOT NULL,
		description VARCHAR(500),
		is_public TINYINT(1) NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_user_playlists FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	`
	if _, err := database.Exec(playlistQuery); err != nil {
		return fmt.Errorf("failed to create playlists table: %w", err)
	}

	tracksQuery := `
	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id CHAR(36) NOT NULL,
		track_id VARCHAR(64) NOT NULL,
		track_data JSON NOT NULL,
		position INT NOT NULL,
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (playlist_id, track_id),
		CONSTRAINT fk_playlist_tracks FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE
	);
	`
	if _, err := database.Exec(tracksQuery); err != nil {
		return fmt.Errorf("failed to create playlist_tracks table: %w", err)
	}
	return nil
}

func createListeningHistoryTable(database *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS user_listening_history (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		track_id VARCHAR(64) NOT NULL,
		track_data JSON NOT NULL,
		played_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_user_played (user_id, played_at),
		CONSTRAINT fk_user_history FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	`
	_, err := database.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create user_listening_history table: %w", err)
	}
	return nil
}
