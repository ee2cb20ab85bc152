// Package automation runs portal extraction and note submission as
// background jobs. Handlers enqueue work and return a job id; the worker
// drives the portal session and records the terminal state.
package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Kind identifies the job variant carried in a queue payload.
type Kind string

const (
	KindSyncBookings Kind = "sync_bookings"
	KindSubmitNotes  Kind = "submit_notes"
	KindLogOff       Kind = "log_off"
)

// SyncRequest asks for today's bookings to be extracted and persisted for
// an account, fanning out across locations when the portal enumerates more
// than one.
type SyncRequest struct {
	AccountID uuid.UUID `json:"account_id"`
}

// NoteRequest asks for notes (or a log-off) to be filed against the booking
// whose period label matches exactly.
type NoteRequest struct {
	AccountID  uuid.UUID `json:"account_id"`
	Period     string    `json:"period"`
	ClientName string    `json:"client_name"`
	Notes      string    `json:"notes,omitempty"`
	Location   string    `json:"location,omitempty"`
}

type queuePayload struct {
	ID   string       `json:"id"`
	Kind Kind         `json:"kind"`
	Sync *SyncRequest `json:"sync,omitempty"`
	Note *NoteRequest `json:"note,omitempty"`
}

func encodePayload(kind Kind, jobID string, sync *SyncRequest, note *NoteRequest) (queuePayload, string, error) {
	payload := queuePayload{
		ID:   jobID,
		Kind: kind,
		Sync: sync,
		Note: note,
	}
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("automation: failed to encode payload: %w", err)
	}
	return payload, string(body), nil
}
