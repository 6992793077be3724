package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/engine"
)

// Handler exposes the engine's operations as a JSON request/response API.
type Handler struct {
	service *engine.Service
	log     zerolog.Logger
}

func NewHandler(service *engine.Service, logger *zerolog.Logger) *Handler {
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	return &Handler{service: service, log: log}
}

// Register mounts the session routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", h.createSession)
	mux.HandleFunc("GET /sessions/{id}", h.getSession)
	mux.HandleFunc("POST /sessions/{id}/answers", h.submitAnswer)
	mux.HandleFunc("POST /sessions/{id}/timeout", h.forceTimeout)
}

type createSessionRequest struct {
	LearnerID     string `json:"learnerId"`
	Topic         string `json:"topic"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"questionCount"`
	TimeLimitSec  int    `json:"timeLimitSeconds"`
}

type submitAnswerRequest struct {
	QuestionIndex int `json:"questionIndex"`
	// Option is nil when the client reports a timeout/no answer.
	Option *string `json:"option"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request body")
		return
	}
	tier, err := domain.ParseTier(req.Difficulty)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	view, err := h.service.CreateSession(r.Context(), req.LearnerID, domain.SessionConfig{
		Topic:         req.Topic,
		Difficulty:    tier,
		QuestionCount: req.QuestionCount,
		TimeLimitSec:  req.TimeLimitSec,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetSessionView(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request body")
		return
	}
	result, err := h.service.SubmitAnswer(r.Context(), r.PathValue("id"), req.QuestionIndex, req.Option)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) forceTimeout(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ForceTimeout(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrSessionCompleted):
		h.writeError(w, http.StatusConflict, "SESSION_COMPLETED", err.Error())
	case errors.Is(err, domain.ErrStaleQuestion):
		h.writeError(w, http.StatusConflict, "STALE_QUESTION", err.Error())
	case errors.Is(err, domain.ErrInsufficientContent):
		h.writeError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_CONTENT", err.Error())
	case errors.Is(err, domain.ErrBankUnavailable):
		h.log.Error().Err(err).Msg("question bank failure")
		h.writeError(w, http.StatusServiceUnavailable, "BANK_UNAVAILABLE", "question bank unavailable")
	default:
		h.log.Error().Err(err).Msg("unhandled engine error")
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]errorPayload{"error": {Code: code, Message: message}})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("write response failed")
	}
}
