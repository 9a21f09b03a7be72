package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ableka/lumina/internal/domain"
	"github.com/ableka/lumina/internal/jurisdiction"
	"github.com/ableka/lumina/internal/metrics"
	"github.com/ableka/lumina/internal/repository"
)

// Checker runs one compliance check.
type Checker interface {
	Check(ctx context.Context, req *domain.CheckRequest) (*domain.CheckResult, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	checker  Checker
	repo     domain.Repository
	store    *jurisdiction.Store
	rulesDir string
	metrics  *metrics.Metrics
	validate *validator.Validate
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(checker Checker, repo domain.Repository, store *jurisdiction.Store, rulesDir string, m *metrics.Metrics, version string) *Handler {
	return &Handler{
		checker:  checker,
		repo:     repo,
		store:    store,
		rulesDir: rulesDir,
		metrics:  m,
		validate: validator.New(),
		version:  version,
	}
}

// CheckTransferRequest is the request body for POST /check-transfer.
type CheckTransferRequest struct {
	ID               string `json:"id" validate:"omitempty,max=64"`
	EntityID         string `json:"entityId" validate:"required,max=128"`
	JurisdictionCode string `json:"jurisdictionCode" validate:"required,uppercase,min=2,max=8"`
	Amount           string `json:"amount" validate:"required"`
	Currency         string `json:"currency" validate:"required,uppercase,len=3"`
	CounterpartyID   string `json:"counterpartyId" validate:"omitempty,max=128"`
	DocType          string `json:"docType" validate:"omitempty,max=64"`
	Timestamp        string `json:"timestamp" validate:"omitempty"`
}

// CheckTransfer handles POST /check-transfer.
func (h *Handler) CheckTransfer(w http.ResponseWriter, r *http.Request) {
	var body CheckTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if err := h.validate.Struct(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a decimal string")
		return
	}

	ts := time.Now().UTC()
	if body.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, body.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timestamp must be RFC 3339")
			return
		}
		ts = parsed.UTC()
	}

	id := body.ID
	if id == "" {
		id = uuid.New().String()
	}

	req := &domain.CheckRequest{
		ID:               id,
		EntityID:         body.EntityID,
		JurisdictionCode: body.JurisdictionCode,
		Amount:           amount,
		Currency:         body.Currency,
		CounterpartyID:   body.CounterpartyID,
		DocType:          domain.DocumentType(body.DocType),
		Timestamp:        ts,
	}

	result, err := h.checker.Check(r.Context(), req)
	if err != nil {
		writeCheckError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetCheck handles GET /checks/{id}.
func (h *Handler) GetCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.repo.GetCheckResult(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "check not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load check")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListEntityChecks handles GET /entities/{id}/checks.
func (h *Handler) ListEntityChecks(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")

	results, err := h.repo.ListCheckResultsByEntity(r.Context(), entityID, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load checks")
		return
	}
	if results == nil {
		results = []*domain.CheckResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entityId": entityID,
		"checks":   results,
	})
}

// ListJurisdictions handles GET /jurisdictions.
func (h *Handler) ListJurisdictions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":       h.store.Version(),
		"jurisdictions": h.store.List(),
	})
}

// GetJurisdiction handles GET /jurisdictions/{code}.
func (h *Handler) GetJurisdiction(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	compiled, err := h.store.Get(code)
	if errors.Is(err, domain.ErrJurisdictionNotFound) {
		writeError(w, http.StatusNotFound, "jurisdiction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load jurisdiction")
		return
	}

	writeJSON(w, http.StatusOK, compiled.Rules)
}

// ReloadJurisdictions handles POST /jurisdictions/reload.
func (h *Handler) ReloadJurisdictions(w http.ResponseWriter, r *http.Request) {
	rules, err := jurisdiction.LoadDir(h.rulesDir)
	if err == nil {
		err = h.store.Replace(rules)
	}
	if err != nil {
		h.metrics.IncrementReload("error")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.metrics.IncrementReload("ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "reloaded",
		"version":       h.store.Version(),
		"jurisdictions": h.store.Count(),
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /ready. Ready means the repository answers and at
// least one jurisdiction is loaded.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "repository unavailable",
		})
		return
	}
	if h.store.Count() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "no jurisdictions loaded",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeCheckError maps pipeline errors onto HTTP status codes.
func writeCheckError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrJurisdictionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "check failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
