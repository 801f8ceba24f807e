// Package handlers implements the HTTP endpoints for the score service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/aimaneth/blitzproof/internal/application"
	"github.com/aimaneth/blitzproof/internal/persistence"
	"github.com/aimaneth/blitzproof/internal/score"
)

type contextKey string

// requestIDKey carries the per-request ID assigned by the server
// middleware.
const requestIDKey contextKey = "request_id"

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom extracts the request ID, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ScoreAPI is the slice of the application service the handlers need.
type ScoreAPI interface {
	GetScore(ctx context.Context, tokenID string) (score.BlitzProofScore, error)
	Recalculate(ctx context.Context, tokenID, contractAddress string) (score.BlitzProofScore, error)
	UpdateScore(ctx context.Context, in score.BlitzProofScore) (score.BlitzProofScore, error)
	GetCombined(ctx context.Context, tokenID string) (application.CombinedData, error)
	GetInfo(ctx context.Context, tokenID string) (persistence.TokenInfo, error)
	UpdateInfo(ctx context.Context, info persistence.TokenInfo) (persistence.TokenInfo, error)
	DeleteTokenData(ctx context.Context, tokenID string) error
}

// HealthChecker reports storage health for the /health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) persistence.HealthCheck
}

// CachePinger checks cache connectivity for the /health endpoint.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// Handlers carries the endpoint dependencies.
type Handlers struct {
	service ScoreAPI
	health  HealthChecker
	cache   CachePinger
}

// NewHandlers wires the endpoint set. health and cache may be nil.
func NewHandlers(service ScoreAPI, health HealthChecker, cache CachePinger) *Handlers {
	return &Handlers{service: service, health: health, cache: cache}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// GetScore serves GET /score/{tokenId}.
func (h *Handlers) GetScore(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["tokenId"]
	if tokenID == "" {
		h.writeError(w, r, http.StatusBadRequest, "token id is required")
		return
	}

	s, err := h.service.GetScore(r.Context(), tokenID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, s)
}

// adminScorePayload is the admin PUT body.
type adminScorePayload struct {
	OverallScore *int                        `json:"overall_score"`
	Rating       *score.Rating               `json:"rating"`
	Categories   *score.CategoryScores       `json:"categories"`
	Summary      *score.VulnerabilitySummary `json:"summary"`
	UpdatedBy    string                      `json:"updated_by"`
}

// UpdateScore serves PUT /score/{tokenId} (admin). All four score fields
// are required; a missing field is a 400, a pre-existing row is a 409.
func (h *Handlers) UpdateScore(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["tokenId"]

	var payload adminScorePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if payload.OverallScore == nil || payload.Rating == nil || payload.Categories == nil || payload.Summary == nil {
		h.writeError(w, r, http.StatusBadRequest,
			"overall_score, rating, categories, and summary are required")
		return
	}

	s, err := h.service.UpdateScore(r.Context(), score.BlitzProofScore{
		TokenID:      tokenID,
		OverallScore: *payload.OverallScore,
		Rating:       *payload.Rating,
		Categories:   *payload.Categories,
		Summary:      *payload.Summary,
		UpdatedBy:    payload.UpdatedBy,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, s)
}

// calculatePayload optionally supplies a contract address for the security
// collector.
type calculatePayload struct {
	ContractAddress string `json:"contract_address"`
}

// Calculate serves POST /calculate/{tokenId}.
func (h *Handlers) Calculate(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["tokenId"]

	var payload calculatePayload
	if r.Body != nil {
		// An empty or absent body is fine.
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	s, err := h.service.Recalculate(r.Context(), tokenID, payload.ContractAddress)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, s)
}

// GetCombined serves GET /combined/{tokenId}.
func (h *Handlers) GetCombined(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["tokenId"]

	combined, err := h.service.GetCombined(r.Context(), tokenID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, combined)
}

// GetInfo serves GET /info/{tokenId}.
func (h *Handlers) GetInfo(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["tokenId"]

	info, err := h.service.GetInfo(r.Context(), tokenID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// UpdateInfo serves PUT /info/{tokenId} (admin).
func (h *Handlers) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["tokenId"]

	var info persistence.TokenInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	info.TokenID = tokenID

	updated, err := h.service.UpdateInfo(r.Context(), info)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, updated)
}

// DeleteToken serves DELETE /admin/{tokenId}.
func (h *Handlers) DeleteToken(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["tokenId"]

	if err := h.service.DeleteTokenData(r.Context(), tokenID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   "deleted",
		"token_id": tokenID,
	})
}

// Health serves GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}

	status := http.StatusOK
	if h.health != nil {
		check := h.health.Health(r.Context())
		resp["database"] = check
		if !check.Healthy {
			resp["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	// A cache outage degrades performance, not availability, so it never
	// fails the health check.
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			resp["cache"] = "unavailable"
		} else {
			resp["cache"] = "ok"
		}
	}

	h.writeJSON(w, status, resp)
}

// NotFound is the router's fallback handler.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "route not found")
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *application.ValidationError

	switch {
	case errors.As(err, &verr):
		h.writeError(w, r, http.StatusBadRequest, verr.Error())
	case errors.Is(err, persistence.ErrDuplicate):
		h.writeError(w, r, http.StatusConflict, "a score already exists for this token")
	case errors.Is(err, persistence.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "token not found")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg, RequestID: RequestIDFrom(r.Context())})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Response encoding failed")
	}
}
