package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/stretchops/studio-automation/internal/bookings"
	"github.com/stretchops/studio-automation/internal/clubready/portal"
	"github.com/stretchops/studio-automation/internal/clubready/probe"
	"github.com/stretchops/studio-automation/internal/vault"
	"github.com/stretchops/studio-automation/pkg/logging"
)

// CredentialSource looks up an account's stored portal credentials.
type CredentialSource interface {
	Credentials(ctx context.Context, accountID uuid.UUID) (*bookings.Credential, error)
}

// CredentialProber checks portal credentials without a browser.
type CredentialProber interface {
	Check(ctx context.Context, creds portal.Credentials) (*probe.Result, error)
}

// CredentialsHandler validates an account's stored portal login against the
// live portal. Unlike the automation endpoints this runs synchronously; the
// probe is a single form POST, not a browser session.
type CredentialsHandler struct {
	creds  CredentialSource
	prober CredentialProber
	logger *logging.Logger
}

// NewCredentialsHandler wires the credential validation endpoint.
func NewCredentialsHandler(creds CredentialSource, prober CredentialProber, logger *logging.Logger) *CredentialsHandler {
	if creds == nil {
		panic("handlers: credential source cannot be nil")
	}
	if prober == nil {
		panic("handlers: prober cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CredentialsHandler{creds: creds, prober: prober, logger: logger}
}

type validateCredentialsRequest struct {
	AccountID string `json:"account_id"`
}

type validateCredentialsResponse struct {
	Valid   bool   `json:"valid"`
	Outcome string `json:"outcome"`
}

// Validate handles POST /automation/credentials/validate.
func (h *CredentialsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "account_id must be a valid UUID")
		return
	}

	cred, err := h.creds.Credentials(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, bookings.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		h.logger.Error("credential lookup failed", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load credentials")
		return
	}

	password, err := vault.Reveal(cred.PortalUsername, cred.PasswordToken)
	if err != nil {
		h.logger.Error("stored credential is unreadable", "account_id", accountID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "stored credential is unreadable")
		return
	}

	result, err := h.prober.Check(r.Context(), portal.Credentials{
		Username: cred.PortalUsername,
		Password: password,
	})
	if err != nil {
		h.logger.Error("credential probe failed", "account_id", accountID, "error", err)
		writeError(w, http.StatusBadGateway, "portal unreachable")
		return
	}

	writeJSON(w, http.StatusOK, validateCredentialsResponse{
		Valid:   result.Valid(),
		Outcome: string(result.Outcome),
	})
}
