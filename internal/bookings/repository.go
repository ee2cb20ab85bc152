// Package bookings persists extracted booking records and the portal
// credentials they were extracted with. Dedup against already-annotated
// records happens here on the (client_name, event_date, day) identity the
// extractor guarantees.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stretchops/studio-automation/internal/clubready/extract"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("bookings: not found")

// PgxPool is the pool subset the repository needs; pgxmock satisfies it in
// tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Credential is a stored portal credential pair; the password is the
// vault-obfuscated token, never plaintext.
type Credential struct {
	PortalUsername string
	PasswordToken  string
}

// Repository provides persistence for booking rows and portal credentials.
type Repository struct {
	pool PgxPool
}

// NewRepository creates a repository over a pgx pool.
func NewRepository(pool PgxPool) *Repository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &Repository{pool: pool}
}

// Credentials loads the portal credential pair for an account.
func (r *Repository) Credentials(ctx context.Context, accountID uuid.UUID) (*Credential, error) {
	var cred Credential
	err := r.pool.QueryRow(ctx, `
		SELECT portal_username, portal_password
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&cred.PortalUsername, &cred.PasswordToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: load credentials: %w", err)
	}
	return &cred, nil
}

// UpsertDay writes the day's extracted records, keyed on the identity the
// caller later uses to re-locate bookings for note submission. Re-running an
// extraction for the same day is idempotent.
func (r *Repository) UpsertDay(ctx context.Context, accountID uuid.UUID, day time.Time, records []extract.BookingRecord) (int, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	stored := 0
	for _, rec := range records {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO bookings (
				id, account_id, client_name, booking_id, workout_type,
				flexologist_name, phone, booking_time, event_date, past,
				first_timer, active, location, profile_image, group_booking,
				booking_day, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (account_id, client_name, event_date, booking_day)
			DO UPDATE SET
				booking_id = EXCLUDED.booking_id,
				workout_type = EXCLUDED.workout_type,
				flexologist_name = EXCLUDED.flexologist_name,
				phone = EXCLUDED.phone,
				profile_image = EXCLUDED.profile_image,
				past = EXCLUDED.past
		`, uuid.New(), accountID, rec.ClientName, rec.BookingID, rec.WorkoutType,
			rec.FlexologistName, rec.Phone, rec.BookingTime, rec.EventDate, rec.Past,
			rec.FirstTimer, rec.Active, rec.Location, rec.ProfileImage, rec.GroupBooking,
			day, time.Now().UTC())
		if err != nil {
			return stored, fmt.Errorf("bookings: upsert %q/%q: %w", rec.ClientName, rec.EventDate, err)
		}
		stored++
	}
	return stored, nil
}

// ListDay returns the records stored for an account and day, in insertion
// order. Callers use it to dedup re-extracted bookings against records that
// already received notes.
func (r *Repository) ListDay(ctx context.Context, accountID uuid.UUID, day time.Time) ([]extract.BookingRecord, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	rows, err := r.pool.Query(ctx, `
		SELECT client_name, booking_id, workout_type, flexologist_name,
		       phone, booking_time, event_date, past, first_timer, active,
		       location, profile_image, group_booking
		FROM bookings
		WHERE account_id = $1 AND booking_day = $2
		ORDER BY created_at
	`, accountID, day)
	if err != nil {
		return nil, fmt.Errorf("bookings: list day: %w", err)
	}
	defer rows.Close()

	var records []extract.BookingRecord
	for rows.Next() {
		var rec extract.BookingRecord
		if err := rows.Scan(
			&rec.ClientName, &rec.BookingID, &rec.WorkoutType, &rec.FlexologistName,
			&rec.Phone, &rec.BookingTime, &rec.EventDate, &rec.Past, &rec.FirstTimer,
			&rec.Active, &rec.Location, &rec.ProfileImage, &rec.GroupBooking,
		); err != nil {
			return nil, fmt.Errorf("bookings: scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate rows: %w", err)
	}
	return records, nil
}

// MarkAnnotated records that a booking (and, for carry-forward, its adjacent
// slot) received notes.
func (r *Repository) MarkAnnotated(ctx context.Context, accountID uuid.UUID, clientName, eventDate string, day time.Time) error {
	day = day.UTC().Truncate(24 * time.Hour)
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET notes_filed_at = $4
		WHERE account_id = $1 AND client_name = $2 AND event_date = $3
		  AND booking_day = $5
	`, accountID, clientName, eventDate, time.Now().UTC(), day)
	if err != nil {
		return fmt.Errorf("bookings: mark annotated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
