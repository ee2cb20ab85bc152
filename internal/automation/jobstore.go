package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stretchops/studio-automation/internal/clubready/extract"
	"github.com/stretchops/studio-automation/internal/clubready/notes"
)

const jobTTL = 24 * time.Hour

// JobStatus represents the lifecycle of an automation job. The portal work
// runs for minutes, so callers poll this status instead of holding a
// request open.
type JobStatus string

const (
	JobStatusSubmitting JobStatus = "submitting"
	JobStatusSuccess    JobStatus = "success"
	JobStatusError      JobStatus = "error"
)

// ErrJobNotFound indicates the requested job ID does not exist.
var ErrJobNotFound = errors.New("automation: job not found")

// SyncResult is the outcome of a bookings extraction. Status is false when
// any location in a fan-out batch exhausted its retries.
type SyncResult struct {
	Status          bool                    `json:"status"`
	Bookings        []extract.BookingRecord `json:"bookings"`
	FailedLocations []string                `json:"failed_locations,omitempty"`
	Stored          int                     `json:"stored"`
}

// JobResult carries whichever result the job kind produced.
type JobResult struct {
	Sync       *SyncResult             `json:"sync,omitempty"`
	Submission *notes.SubmissionResult `json:"submission,omitempty"`
}

// JobRecord captures the persisted state of an automation request.
type JobRecord struct {
	JobID        string       `json:"job_id"`
	Status       JobStatus    `json:"status"`
	Kind         Kind         `json:"kind"`
	Sync         *SyncRequest `json:"sync,omitempty"`
	Note         *NoteRequest `json:"note,omitempty"`
	Result       *JobResult   `json:"result,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    string       `json:"created_at"`
	UpdatedAt    string       `json:"updated_at"`
	ExpiresAt    int64        `json:"-"`
}

// JobRecorder persists new jobs and serves status lookups.
type JobRecorder interface {
	PutPending(ctx context.Context, job *JobRecord) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
}

// JobUpdater records terminal job states.
type JobUpdater interface {
	MarkCompleted(ctx context.Context, jobID string, result *JobResult) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
}

// JobPool is the pgx pool subset the store needs; pgxmock satisfies it in
// tests.
type JobPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobStore persists job records to the automation_jobs table.
type JobStore struct {
	db JobPool
}

var _ JobRecorder = (*JobStore)(nil)
var _ JobUpdater = (*JobStore)(nil)

// NewJobStore builds a Postgres-backed JobStore.
func NewJobStore(db JobPool) *JobStore {
	if db == nil {
		panic("automation: pgx pool cannot be nil")
	}
	return &JobStore{db: db}
}

// PutPending inserts a new job in the submitting state.
func (s *JobStore) PutPending(ctx context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("automation: job cannot be nil")
	}

	now := time.Now().UTC()
	job.Status = JobStatusSubmitting
	job.CreatedAt = now.Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(jobTTL).Unix()
	}

	syncJSON, err := marshalJSON(job.Sync)
	if err != nil {
		return err
	}
	noteJSON, err := marshalJSON(job.Note)
	if err != nil {
		return err
	}

	expiresAt := time.Unix(job.ExpiresAt, 0).UTC()
	if _, execErr := s.db.Exec(ctx, `
		INSERT INTO automation_jobs (
			job_id, status, kind, sync_request, note_request,
			result, error_message, created_at, updated_at, expires_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, job.JobID, job.Status, job.Kind, syncJSON, noteJSON, nil, "", now, now, expiresAt); execErr != nil {
		return fmt.Errorf("automation: failed to persist job: %w", execErr)
	}
	return nil
}

// MarkCompleted stores the final result and flips the job to success.
func (s *JobStore) MarkCompleted(ctx context.Context, jobID string, result *JobResult) error {
	if jobID == "" {
		return errors.New("automation: jobID required")
	}
	resultJSON, err := marshalJSON(result)
	if err != nil {
		return err
	}

	tag, execErr := s.db.Exec(ctx, `
		UPDATE automation_jobs
		SET status = $2,
		    result = $3,
		    error_message = '',
		    updated_at = $4
		WHERE job_id = $1
	`, jobID, JobStatusSuccess, resultJSON, time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("automation: failed to update job: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkFailed flips the job to error with a message.
func (s *JobStore) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	if jobID == "" {
		return errors.New("automation: jobID required")
	}

	tag, execErr := s.db.Exec(ctx, `
		UPDATE automation_jobs
		SET status = $2,
		    result = NULL,
		    error_message = $3,
		    updated_at = $4
		WHERE job_id = $1
	`, jobID, JobStatusError, errMsg, time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("automation: failed to update job: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetJob loads a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, errors.New("automation: jobID required")
	}

	var (
		syncJSON   []byte
		noteJSON   []byte
		resultJSON []byte
		createdAt  time.Time
		updatedAt  time.Time
		expiresAt  time.Time
		status     string
		kind       string
		errMsg     string
	)

	row := s.db.QueryRow(ctx, `
		SELECT job_id, status, kind, sync_request, note_request,
		       result, error_message, created_at, updated_at, expires_at
		FROM automation_jobs
		WHERE job_id = $1
	`, jobID)

	if err := row.Scan(&jobID, &status, &kind, &syncJSON, &noteJSON,
		&resultJSON, &errMsg, &createdAt, &updatedAt, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("automation: failed to fetch job: %w", err)
	}

	job := &JobRecord{
		JobID:        jobID,
		Status:       JobStatus(status),
		Kind:         Kind(kind),
		ErrorMessage: errMsg,
		CreatedAt:    createdAt.Format(time.RFC3339Nano),
		UpdatedAt:    updatedAt.Format(time.RFC3339Nano),
		ExpiresAt:    expiresAt.Unix(),
	}

	if len(syncJSON) > 0 {
		var sr SyncRequest
		if err := json.Unmarshal(syncJSON, &sr); err != nil {
			return nil, fmt.Errorf("automation: failed to decode sync_request: %w", err)
		}
		job.Sync = &sr
	}
	if len(noteJSON) > 0 {
		var nr NoteRequest
		if err := json.Unmarshal(noteJSON, &nr); err != nil {
			return nil, fmt.Errorf("automation: failed to decode note_request: %w", err)
		}
		job.Note = &nr
	}
	if len(resultJSON) > 0 {
		var res JobResult
		if err := json.Unmarshal(resultJSON, &res); err != nil {
			return nil, fmt.Errorf("automation: failed to decode result: %w", err)
		}
		job.Result = &res
	}

	return job, nil
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("automation: failed to encode json: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}
