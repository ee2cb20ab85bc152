// Package handlers exposes the HTTP surface for the automation service.
// Portal work runs for minutes, so every mutating endpoint enqueues a job
// and answers 202 with an id the caller polls.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stretchops/studio-automation/internal/automation"
	"github.com/stretchops/studio-automation/pkg/logging"
)

// AutomationHandler accepts automation requests and serves job status.
type AutomationHandler struct {
	publisher *automation.Publisher
	jobs      automation.JobRecorder
	logger    *logging.Logger
}

// NewAutomationHandler wires the async job endpoints.
func NewAutomationHandler(publisher *automation.Publisher, jobs automation.JobRecorder, logger *logging.Logger) *AutomationHandler {
	if publisher == nil {
		panic("handlers: publisher cannot be nil")
	}
	if jobs == nil {
		panic("handlers: job recorder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AutomationHandler{
		publisher: publisher,
		jobs:      jobs,
		logger:    logger,
	}
}

type syncBookingsRequest struct {
	AccountID string `json:"account_id"`
}

type noteSubmissionRequest struct {
	AccountID  string `json:"account_id"`
	Period     string `json:"period"`
	ClientName string `json:"client_name"`
	Notes      string `json:"notes"`
	Location   string `json:"location"`
}

type jobAcceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// SyncBookings enqueues today's extraction for an account.
func (h *AutomationHandler) SyncBookings(w http.ResponseWriter, r *http.Request) {
	var req syncBookingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	accountID, err := uuid.Parse(strings.TrimSpace(req.AccountID))
	if err != nil {
		writeError(w, http.StatusBadRequest, "account_id must be a UUID")
		return
	}

	jobID := uuid.NewString()
	syncReq := automation.SyncRequest{AccountID: accountID}
	job := &automation.JobRecord{
		JobID: jobID,
		Kind:  automation.KindSyncBookings,
		Sync:  &syncReq,
	}
	if err := h.jobs.PutPending(r.Context(), job); err != nil {
		h.logger.Error("failed to persist sync job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept job")
		return
	}
	if err := h.publisher.EnqueueSync(r.Context(), jobID, syncReq); err != nil {
		h.logger.Error("failed to enqueue sync job", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "failed to accept job")
		return
	}

	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{
		JobID:  jobID,
		Status: string(automation.JobStatusSubmitting),
	})
}

// SubmitNotes enqueues a note submission for the booking whose period label
// matches exactly.
func (h *AutomationHandler) SubmitNotes(w http.ResponseWriter, r *http.Request) {
	h.enqueueNoteJob(w, r, automation.KindSubmitNotes, true)
}

// LogOff enqueues a log-off; the worker applies the default note when none
// is supplied.
func (h *AutomationHandler) LogOff(w http.ResponseWriter, r *http.Request) {
	h.enqueueNoteJob(w, r, automation.KindLogOff, false)
}

func (h *AutomationHandler) enqueueNoteJob(w http.ResponseWriter, r *http.Request, kind automation.Kind, notesRequired bool) {
	var req noteSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	accountID, err := uuid.Parse(strings.TrimSpace(req.AccountID))
	if err != nil {
		writeError(w, http.StatusBadRequest, "account_id must be a UUID")
		return
	}
	if strings.TrimSpace(req.Period) == "" {
		writeError(w, http.StatusBadRequest, "period is required")
		return
	}
	if strings.TrimSpace(req.ClientName) == "" {
		writeError(w, http.StatusBadRequest, "client_name is required")
		return
	}
	if notesRequired && strings.TrimSpace(req.Notes) == "" {
		writeError(w, http.StatusBadRequest, "notes is required")
		return
	}

	jobID := uuid.NewString()
	noteReq := automation.NoteRequest{
		AccountID:  accountID,
		Period:     req.Period,
		ClientName: req.ClientName,
		Notes:      req.Notes,
		Location:   req.Location,
	}
	job := &automation.JobRecord{
		JobID: jobID,
		Kind:  kind,
		Note:  &noteReq,
	}
	if err := h.jobs.PutPending(r.Context(), job); err != nil {
		h.logger.Error("failed to persist note job", "error", err, "kind", kind)
		writeError(w, http.StatusInternalServerError, "failed to accept job")
		return
	}

	if kind == automation.KindLogOff {
		err = h.publisher.EnqueueLogOff(r.Context(), jobID, noteReq)
	} else {
		err = h.publisher.EnqueueNotes(r.Context(), jobID, noteReq)
	}
	if err != nil {
		h.logger.Error("failed to enqueue note job", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "failed to accept job")
		return
	}

	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{
		JobID:  jobID,
		Status: string(automation.JobStatusSubmitting),
	})
}

// GetJob serves the current state of a job.
func (h *AutomationHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job id required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, automation.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load job", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// HealthCheck reports liveness.
func (h *AutomationHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
