package automation

import (
	"context"
	"fmt"

	"github.com/stretchops/studio-automation/pkg/logging"
)

// Publisher enqueues automation jobs for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("automation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueSync publishes a bookings extraction job.
func (p *Publisher) EnqueueSync(ctx context.Context, jobID string, req SyncRequest) error {
	return p.enqueue(ctx, KindSyncBookings, jobID, &req, nil)
}

// EnqueueNotes publishes a note submission job.
func (p *Publisher) EnqueueNotes(ctx context.Context, jobID string, req NoteRequest) error {
	return p.enqueue(ctx, KindSubmitNotes, jobID, nil, &req)
}

// EnqueueLogOff publishes a log-off job; the submitter applies the default
// note when req.Notes is empty.
func (p *Publisher) EnqueueLogOff(ctx context.Context, jobID string, req NoteRequest) error {
	return p.enqueue(ctx, KindLogOff, jobID, nil, &req)
}

func (p *Publisher) enqueue(ctx context.Context, kind Kind, jobID string, sync *SyncRequest, note *NoteRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(kind, jobID, sync, note)
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("automation: failed to enqueue job: %w", err)
	}

	p.logger.Debug("automation job enqueued", "job_id", payload.ID, "kind", kind)
	return nil
}
