package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"spacegrid/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var (
	ErrSpaceNotFound   = errors.New("space not found")
	ErrBookingNotFound = errors.New("booking not found")
)

// Счётчики версий данных, по ним инвалидируется кэш сеток
const (
	versionSpaces   = "spaces"
	versionBookings = "bookings"
)

type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "database").Logger()
	}

	inMemory := path == ":memory:" || strings.HasPrefix(path, "file:")
	if !inMemory {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite пишет в один поток; для :memory: каждое соединение это отдельная база
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	l.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: sqlDB, path: path, logger: l}, nil
}

// Path is the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS spaces (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            tz TEXT NOT NULL,
            capacity INTEGER NOT NULL DEFAULT 0,
            created_at INTEGER NOT NULL,
            updated_at INTEGER NOT NULL
        )`,
		// schedule_idx keeps the declaration order of weekday entries
		`CREATE TABLE IF NOT EXISTS space_windows (
            space_id TEXT NOT NULL,
            schedule_idx INTEGER NOT NULL,
            weekday INTEGER NOT NULL,
            position INTEGER NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS space_blackouts (
            space_id TEXT NOT NULL,
            position INTEGER NOT NULL,
            entry TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            space_id TEXT NOT NULL,
            title TEXT NOT NULL,
            created_by TEXT NOT NULL,
            start_ms INTEGER NOT NULL,
            end_ms INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'confirmed',
            created_at INTEGER NOT NULL,
            updated_at INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS data_versions (
            name TEXT PRIMARY KEY,
            version INTEGER NOT NULL DEFAULT 0
        )`,

		`CREATE INDEX IF NOT EXISTS idx_space_windows_space ON space_windows(space_id)`,
		`CREATE INDEX IF NOT EXISTS idx_space_blackouts_space ON space_blackouts(space_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_space_range ON bookings(space_id, start_ms, end_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,

		`INSERT OR IGNORE INTO data_versions (name, version) VALUES ('spaces', 0), ('bookings', 0)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) DataVersions(ctx context.Context) (models.DataVersions, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, version FROM data_versions`)
	if err != nil {
		return models.DataVersions{}, fmt.Errorf("failed to read data versions: %w", err)
	}
	defer rows.Close()

	var v models.DataVersions
	for rows.Next() {
		var name string
		var version int64
		if err := rows.Scan(&name, &version); err != nil {
			return models.DataVersions{}, err
		}
		switch name {
		case versionSpaces:
			v.Spaces = version
		case versionBookings:
			v.Bookings = version
		}
	}
	return v, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func bumpVersion(ctx context.Context, ex execer, name string) error {
	_, err := ex.ExecContext(ctx, `UPDATE data_versions SET version = version + 1 WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to bump %s version: %w", name, err)
	}
	return nil
}
