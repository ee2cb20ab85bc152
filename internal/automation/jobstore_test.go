package automation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stretchops/studio-automation/internal/clubready/extract"
)

func TestJobStorePutPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO automation_jobs`).
		WithArgs("job-1", JobStatusSubmitting, KindSyncBookings,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewJobStore(mock)
	job := &JobRecord{
		JobID: "job-1",
		Kind:  KindSyncBookings,
		Sync:  &SyncRequest{AccountID: uuid.New()},
	}
	require.NoError(t, store.PutPending(context.Background(), job))

	assert.Equal(t, JobStatusSubmitting, job.Status)
	assert.NotEmpty(t, job.CreatedAt)
	assert.NotZero(t, job.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreMarkCompleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE automation_jobs`).
		WithArgs("job-1", JobStatusSuccess, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewJobStore(mock)
	result := &JobResult{Sync: &SyncResult{Status: true, Stored: 3}}
	assert.NoError(t, store.MarkCompleted(context.Background(), "job-1", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreMarkCompletedMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE automation_jobs`).
		WithArgs("ghost", JobStatusSuccess, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewJobStore(mock)
	err = store.MarkCompleted(context.Background(), "ghost", &JobResult{})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobStoreMarkFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE automation_jobs`).
		WithArgs("job-1", JobStatusError, "portal: Invalid Username or Password", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewJobStore(mock)
	assert.NoError(t, store.MarkFailed(context.Background(), "job-1", "portal: Invalid Username or Password"))
}

func TestJobStoreGetJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	resultJSON := []byte(`{"sync":{"status":true,"bookings":[{"client_name":"jane doe"}],"stored":1}}`)
	mock.ExpectQuery(`SELECT job_id, status, kind`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"job_id", "status", "kind", "sync_request", "note_request",
			"result", "error_message", "created_at", "updated_at", "expires_at",
		}).AddRow("job-1", "success", "sync_bookings", []byte(nil), []byte(nil),
			resultJSON, "", now, now, now.Add(jobTTL)))

	store := NewJobStore(mock)
	job, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.Equal(t, KindSyncBookings, job.Kind)
	require.NotNil(t, job.Result)
	require.NotNil(t, job.Result.Sync)
	assert.Equal(t, 1, job.Result.Sync.Stored)
	assert.Equal(t, []extract.BookingRecord{{ClientName: "jane doe"}}, job.Result.Sync.Bookings)
}

func TestJobStoreGetJobNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT job_id, status, kind`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	store := NewJobStore(mock)
	_, err = store.GetJob(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
