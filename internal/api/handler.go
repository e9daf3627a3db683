package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/opensource-finance/harrier/internal/batch"
	"github.com/opensource-finance/harrier/internal/benford"
	"github.com/opensource-finance/harrier/internal/correction"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
	"github.com/opensource-finance/harrier/internal/validator"
)

// Dependencies is everything the handlers need. Repo, Cache, Bus and
// Correction may be nil; endpoints that need a missing one answer 503.
type Dependencies struct {
	Repo         domain.Repository
	Cache        domain.Cache
	Bus          domain.EventBus
	Validator    *validator.Validator
	Scorer       *scoring.Engine
	Benford      *benford.Analyzer
	Correction   *correction.Service
	Orchestrator *batch.Orchestrator
	Rules        *rules.Engine
	Version      string

	// Async publishes submitted batches to the bus instead of running them inline.
	Async bool

	// AsyncTenants are the tenants a worker consumes batches for. Async
	// submissions for any other tenant are refused.
	AsyncTenants []string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	bus          domain.EventBus
	validator    *validator.Validator
	scorer       *scoring.Engine
	benford      *benford.Analyzer
	correction   *correction.Service
	orchestrator *batch.Orchestrator
	rules        *rules.Engine
	version      string
	async        bool
	asyncTenants map[string]bool
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		repo:         deps.Repo,
		cache:        deps.Cache,
		bus:          deps.Bus,
		validator:    deps.Validator,
		scorer:       deps.Scorer,
		benford:      deps.Benford,
		correction:   deps.Correction,
		orchestrator: deps.Orchestrator,
		rules:        deps.Rules,
		version:      deps.Version,
		async:        deps.Async,
		asyncTenants: tenantSet(deps.AsyncTenants),
	}
}

func tenantSet(tenants []string) map[string]bool {
	set := make(map[string]bool, len(tenants))
	for _, t := range tenants {
		set[t] = true
	}
	return set
}

// Health reports component status. A failing dependency degrades the
// status but never fails the check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	components := map[string]string{}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			slog.Warn("health check failed", "component", name, "error", err)
			components[name] = "unavailable"
			status = "degraded"
			return
		}
		components[name] = "ok"
	}

	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("bus", func() error { return h.bus.Ping(ctx) })
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"version":    h.version,
		"components": components,
	})
}

// Ready reports whether batches can be accepted.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator not available")
		return
	}
	if h.async && h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "event bus not available")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ValidateResponse is the response for POST /messages/validate.
type ValidateResponse struct {
	Validation domain.ValidationResult `json:"validation"`
	Corrected  bool                    `json:"corrected"`
	Message    domain.PaymentMessage   `json:"message"`
	Correction string                  `json:"correction,omitempty"`
}

// ValidateMessage handles POST /messages/validate. With ?correct=true an
// invalid message is run through the correction service first.
func (h *Handler) ValidateMessage(w http.ResponseWriter, r *http.Request) {
	var msg domain.PaymentMessage
	if !decodeJSON(w, r, &msg) {
		return
	}

	result := h.validator.Validate(msg)
	resp := ValidateResponse{Validation: result, Message: msg}

	correct, _ := strconv.ParseBool(r.URL.Query().Get("correct"))
	if correct && !result.IsValid {
		if h.correction == nil {
			writeError(w, http.StatusServiceUnavailable, "correction not available")
			return
		}
		fixed, fixedResult, err := h.correction.Correct(r.Context(), msg, result)
		if err != nil {
			resp.Correction = err.Error()
		} else {
			resp.Message = fixed
			resp.Validation = fixedResult
			resp.Corrected = true
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// MessagesRequest wraps a list of payment messages.
type MessagesRequest struct {
	Messages []domain.PaymentMessage `json:"messages"`
}

// ValidateBatch handles POST /messages/validate/batch.
func (h *Handler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req MessagesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	results, summary := h.validator.ValidateBatch(req.Messages)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":      results,
		"summary":      summary,
		"commonIssues": validator.CommonIssues(results),
	})
}

// ScoreResponse carries both combination modes for one message.
type ScoreResponse struct {
	Weighted   domain.FraudScore `json:"weighted"`
	Unweighted domain.FraudScore `json:"unweighted"`
}

// ScoreMessage handles POST /messages/score. Scoring does not require a
// valid message; unparseable fields degrade the affected analyzers.
func (h *Handler) ScoreMessage(w http.ResponseWriter, r *http.Request) {
	var msg domain.PaymentMessage
	if !decodeJSON(w, r, &msg) {
		return
	}

	writeJSON(w, http.StatusOK, ScoreResponse{
		Weighted:   h.scorer.Score(r.Context(), msg),
		Unweighted: h.scorer.ScoreUnweighted(msg),
	})
}

// BenfordRequest is the request body for POST /benford.
type BenfordRequest struct {
	Amounts []string `json:"amounts"`
}

// Benford handles POST /benford.
func (h *Handler) Benford(w http.ResponseWriter, r *http.Request) {
	var req BenfordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.benford.AnalyzeAmounts(req.Amounts))
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// writeLookupError maps a repository error to 404 or 500.
func writeLookupError(w http.ResponseWriter, what, id string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	slog.Error("lookup failed", "kind", what, "id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to load "+what)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
