package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/source"
	"github.com/opensource-finance/harrier/internal/worker"
)

// SubmitResponse is returned when a batch is queued for the worker.
type SubmitResponse struct {
	BatchID string `json:"batchId"`
	Status  string `json:"status"`
	Count   int    `json:"count"`
}

// SubmitBatch handles POST /batches with a JSON list of messages.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req MessagesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.submit(w, r, req.Messages)
}

// SubmitCSV handles POST /batches/csv. The body is a CSV file with a header
// row; rows without an id column get "<name>-<line>" where name defaults
// to "upload".
func (h *Handler) SubmitCSV(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("name")
	if prefix == "" {
		prefix = "upload"
	}

	msgs, err := source.Read(r.Context(), r.Body, prefix)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid CSV: "+err.Error())
		return
	}
	h.submit(w, r, msgs)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, msgs []domain.PaymentMessage) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if len(msgs) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	if h.async {
		if h.bus == nil {
			writeError(w, http.StatusServiceUnavailable, "event bus not available")
			return
		}
		if !h.asyncTenants[tenantID] {
			writeError(w, http.StatusServiceUnavailable, "no worker serves tenant "+tenantID)
			return
		}

		batchID := uuid.New().String()
		payload, err := json.Marshal(worker.BatchMessage{
			BatchID:  batchID,
			TenantID: tenantID,
			TraceID:  GetTraceID(ctx),
			Messages: msgs,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to encode batch")
			return
		}
		if err := h.bus.Publish(ctx, tenantID, domain.TopicBatchSubmitted, payload); err != nil {
			slog.Error("failed to publish batch", "batch_id", batchID, "tenant_id", tenantID, "error", err)
			writeError(w, http.StatusServiceUnavailable, "failed to queue batch")
			return
		}

		slog.Info("batch queued", "batch_id", batchID, "tenant_id", tenantID, "messages", len(msgs))
		writeJSON(w, http.StatusAccepted, SubmitResponse{BatchID: batchID, Status: "submitted", Count: len(msgs)})
		return
	}

	if h.orchestrator == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator not available")
		return
	}

	report, err := h.orchestrator.RunTenant(ctx, tenantID, source.NewSlice(msgs))
	if report == nil {
		slog.Error("batch failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "batch failed")
		return
	}
	if err != nil {
		slog.Error("batch results not persisted", "batch_id", report.ID, "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "failed to persist batch results",
			"batchId": report.ID,
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveBatchReport(ctx, tenantID, report); err != nil {
			slog.Error("failed to save batch report", "batch_id", report.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, report)
}

// GetBatch handles GET /batches/{id}.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.requireRepo(w) {
		return
	}

	report, err := h.repo.GetBatchReport(r.Context(), GetTenantID(r.Context()), id)
	if err != nil {
		writeLookupError(w, "batch", id, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListDecisions handles GET /decisions?status=HELD.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	status := domain.FinalStatus(strings.ToUpper(r.URL.Query().Get("status")))
	switch status {
	case domain.StatusClean, domain.StatusHeld, domain.StatusRejected, domain.StatusPending:
	default:
		writeError(w, http.StatusBadRequest, "status must be one of CLEAN, HELD, REJECTED, PENDING")
		return
	}
	if !h.requireRepo(w) {
		return
	}

	decisions, err := h.repo.ListDecisionsByStatus(r.Context(), GetTenantID(r.Context()), status)
	if err != nil {
		slog.Error("failed to list decisions", "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}
	if decisions == nil {
		decisions = []*domain.RoutingDecision{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// GetDecision handles GET /decisions/{id}.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.requireRepo(w) {
		return
	}

	decision, err := h.repo.GetDecision(r.Context(), GetTenantID(r.Context()), id)
	if err != nil {
		writeLookupError(w, "decision", id, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// GetScore handles GET /scores/{id}.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.requireRepo(w) {
		return
	}

	score, err := h.repo.GetFraudScore(r.Context(), GetTenantID(r.Context()), id)
	if err != nil {
		writeLookupError(w, "score", id, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// GetTransaction handles GET /transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.requireRepo(w) {
		return
	}

	tx, err := h.repo.GetProcessedTransaction(r.Context(), GetTenantID(r.Context()), id)
	if err != nil {
		writeLookupError(w, "transaction", id, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) requireRepo(w http.ResponseWriter) bool {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return false
	}
	return true
}
