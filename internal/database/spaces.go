package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spacegrid/internal/models"
)

// UpsertSpace creates or replaces a space together with its schedule and blackouts.
func (db *DB) UpsertSpace(ctx context.Context, space *models.Space) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
        INSERT INTO spaces (id, name, description, tz, capacity, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            description = excluded.description,
            tz = excluded.tz,
            capacity = excluded.capacity,
            updated_at = excluded.updated_at`,
		space.ID, space.Name, space.Description, space.TimeZone, space.Capacity,
		now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert space %s: %w", space.ID, err)
	}

	for _, q := range []string{
		`DELETE FROM space_windows WHERE space_id = ?`,
		`DELETE FROM space_blackouts WHERE space_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, space.ID); err != nil {
			return fmt.Errorf("failed to reset schedule of %s: %w", space.ID, err)
		}
	}

	for idx, day := range space.Schedule {
		for pos, w := range day.Windows {
			_, err := tx.ExecContext(ctx, `
                INSERT INTO space_windows (space_id, schedule_idx, weekday, position, start_time, end_time)
                VALUES (?, ?, ?, ?, ?, ?)`,
				space.ID, idx, day.Weekday, pos, w.Start, w.End,
			)
			if err != nil {
				return fmt.Errorf("failed to store window of %s: %w", space.ID, err)
			}
		}
	}

	for pos, entry := range space.Blackouts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO space_blackouts (space_id, position, entry) VALUES (?, ?, ?)`,
			space.ID, pos, entry,
		)
		if err != nil {
			return fmt.Errorf("failed to store blackout of %s: %w", space.ID, err)
		}
	}

	if err := bumpVersion(ctx, tx, versionSpaces); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit space %s: %w", space.ID, err)
	}

	space.UpdatedAt = now
	if space.CreatedAt.IsZero() {
		space.CreatedAt = now
	}
	return nil
}

// ListSpaces returns spaces in insertion order; the first one defines the
// reference zone of the schedule view.
func (db *DB) ListSpaces(ctx context.Context) ([]models.Space, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, name, description, tz, capacity, created_at, updated_at
        FROM spaces ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}

	spaces := []models.Space{}
	for rows.Next() {
		sp, err := scanSpace(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		spaces = append(spaces, *sp)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// details are loaded after the cursor is closed: the pool has a single connection
	for i := range spaces {
		if err := db.loadDetails(ctx, &spaces[i]); err != nil {
			return nil, err
		}
	}
	return spaces, nil
}

func (db *DB) GetSpace(ctx context.Context, id string) (*models.Space, error) {
	row := db.QueryRowContext(ctx, `
        SELECT id, name, description, tz, capacity, created_at, updated_at
        FROM spaces WHERE id = ?`, id)

	sp, err := scanSpace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSpaceNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadDetails(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSpace(s scanner) (*models.Space, error) {
	var sp models.Space
	var created, updated int64
	if err := s.Scan(&sp.ID, &sp.Name, &sp.Description, &sp.TimeZone, &sp.Capacity, &created, &updated); err != nil {
		return nil, err
	}
	sp.CreatedAt = time.UnixMilli(created).UTC()
	sp.UpdatedAt = time.UnixMilli(updated).UTC()
	return &sp, nil
}

func (db *DB) loadDetails(ctx context.Context, sp *models.Space) error {
	rows, err := db.QueryContext(ctx, `
        SELECT schedule_idx, weekday, start_time, end_time
        FROM space_windows WHERE space_id = ?
        ORDER BY schedule_idx, position`, sp.ID)
	if err != nil {
		return fmt.Errorf("failed to load schedule of %s: %w", sp.ID, err)
	}

	lastIdx := -1
	for rows.Next() {
		var idx, weekday int
		var w models.Window
		if err := rows.Scan(&idx, &weekday, &w.Start, &w.End); err != nil {
			rows.Close()
			return err
		}
		if idx != lastIdx {
			sp.Schedule = append(sp.Schedule, models.DaySchedule{Weekday: weekday})
			lastIdx = idx
		}
		last := &sp.Schedule[len(sp.Schedule)-1]
		last.Windows = append(last.Windows, w)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return err
	}

	rows, err = db.QueryContext(ctx,
		`SELECT entry FROM space_blackouts WHERE space_id = ? ORDER BY position`, sp.ID)
	if err != nil {
		return fmt.Errorf("failed to load blackouts of %s: %w", sp.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return err
		}
		sp.Blackouts = append(sp.Blackouts, entry)
	}
	return rows.Err()
}
