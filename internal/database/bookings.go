package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spacegrid/internal/models"
)

const bookingColumns = `id, space_id, title, created_by, start_ms, end_ms, status, created_at, updated_at`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM spaces WHERE id = ?`, booking.SpaceID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check space in tx: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrSpaceNotFound, booking.SpaceID)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID,
		booking.SpaceID,
		booking.Title,
		booking.CreatedBy,
		booking.Start.UnixMilli(),
		booking.End.UnixMilli(),
		booking.Status,
		now.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	if err := bumpVersion(ctx, tx, versionBookings); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns one page ordered by start, newest bookings of the same
// start first, and the total number of bookings.
func (db *DB) ListBookings(ctx context.Context, offset, limit int) ([]models.Booking, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	bookings, err := db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings ORDER BY start_ms, created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// BookingsInRange returns non-cancelled bookings overlapping [from, to).
// An empty spaceID matches every space.
func (db *DB) BookingsInRange(ctx context.Context, spaceID string, from, to time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE start_ms < ? AND end_ms > ? AND status != ?`
	args := []any{to.UnixMilli(), from.UnixMilli(), models.StatusCancelled}
	if spaceID != "" {
		query += ` AND space_id = ?`
		args = append(args, spaceID)
	}
	query += ` ORDER BY start_ms, id`
	return db.queryBookings(ctx, query, args...)
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id, status string) error {
	return db.mutateBooking(ctx, id,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().UnixMilli(), id)
}

func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	return db.mutateBooking(ctx, id, `DELETE FROM bookings WHERE id = ?`, id)
}

func (db *DB) mutateBooking(ctx context.Context, id, query string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	if err := bumpVersion(ctx, tx, versionBookings); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func scanBooking(s scanner) (*models.Booking, error) {
	var b models.Booking
	var start, end, created, updated int64
	err := s.Scan(&b.ID, &b.SpaceID, &b.Title, &b.CreatedBy, &start, &end, &b.Status, &created, &updated)
	if err != nil {
		return nil, err
	}
	b.Start = time.UnixMilli(start).UTC()
	b.End = time.UnixMilli(end).UTC()
	b.CreatedAt = time.UnixMilli(created).UTC()
	b.UpdatedAt = time.UnixMilli(updated).UTC()
	return &b, nil
}
