package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stretchops/studio-automation/internal/clubready/extract"
)

func TestCredentials(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	accountID := uuid.New()
	mock.ExpectQuery(`SELECT portal_username, portal_password`).
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"portal_username", "portal_password"}).
			AddRow("frontdesk@studio.com", "b2JmdXNjYXRlZA=="))

	repo := NewRepository(mock)
	cred, err := repo.Credentials(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, "frontdesk@studio.com", cred.PortalUsername)
	assert.Equal(t, "b2JmdXNjYXRlZA==", cred.PasswordToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	accountID := uuid.New()
	mock.ExpectQuery(`SELECT portal_username, portal_password`).
		WithArgs(accountID).
		WillReturnError(pgx.ErrNoRows)

	repo := NewRepository(mock)
	_, err = repo.Credentials(context.Background(), accountID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertDay(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	accountID := uuid.New()
	records := []extract.BookingRecord{
		{ClientName: "jane doe", BookingID: "88123", EventDate: "Fri, Aug 29, 9:00 AM"},
		{ClientName: "omar reyes", BookingID: "88124", EventDate: "Fri, Aug 29, 9:30 AM"},
	}
	for range records {
		mock.ExpectExec(`INSERT INTO bookings`).
			WithArgs(
				pgxmock.AnyArg(), accountID, pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	repo := NewRepository(mock)
	stored, err := repo.UpsertDay(context.Background(), accountID, time.Now(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDayStopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("connection reset"))

	repo := NewRepository(mock)
	stored, err := repo.UpsertDay(context.Background(), uuid.New(), time.Now(),
		[]extract.BookingRecord{{ClientName: "jane doe"}, {ClientName: "omar reyes"}})
	require.Error(t, err)
	assert.Equal(t, 0, stored)
}

func TestListDay(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	accountID := uuid.New()
	cols := []string{
		"client_name", "booking_id", "workout_type", "flexologist_name",
		"phone", "booking_time", "event_date", "past", "first_timer", "active",
		"location", "profile_image", "group_booking",
	}
	mock.ExpectQuery(`SELECT client_name, booking_id`).
		WithArgs(accountID, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("jane doe", "88123", "stretch 50 min", "alex p", "555-0101",
				"9:00 AM", "Fri, Aug 29, 9:00 AM", false, "NO", "YES",
				"plano", "https://cdn.clubready.com/img/1.jpg", false).
			AddRow("omar reyes", "88124", "stretch 25 min", "alex p", "555-0102",
				"9:30 AM", "Fri, Aug 29, 9:30 AM", false, "YES", "YES",
				"plano", "https://cdn.clubready.com/img/2.jpg", false))

	repo := NewRepository(mock)
	records, err := repo.ListDay(context.Background(), accountID, time.Now())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "jane doe", records[0].ClientName)
	assert.Equal(t, "Fri, Aug 29, 9:30 AM", records[1].EventDate)
}

func TestMarkAnnotated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	accountID := uuid.New()
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(accountID, "jane doe", "Fri, Aug 29, 9:00 AM", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewRepository(mock)
	err = repo.MarkAnnotated(context.Background(), accountID, "jane doe", "Fri, Aug 29, 9:00 AM", time.Now())
	assert.NoError(t, err)
}

func TestMarkAnnotatedMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewRepository(mock)
	err = repo.MarkAnnotated(context.Background(), uuid.New(), "ghost", "never", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}
