package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/engine"
)

// WSHandler lets a client drive a session over one socket: create or
// attach, then submit answers and poll the view. The REST routes remain
// the contract of record; this is a convenience transport with identical
// engine semantics.
type WSHandler struct {
	service  *engine.Service
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *engine.Service, logger *zerolog.Logger) *WSHandler {
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type wsCreatePayload struct {
	Topic         string `json:"topic"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"questionCount"`
	TimeLimitSec  int    `json:"timeLimitSeconds"`
}

type wsAttachPayload struct {
	SessionID string `json:"sessionId"`
}

type wsAnswerPayload struct {
	QuestionIndex int     `json:"questionIndex"`
	Option        *string `json:"option"`
}

// ServeWS upgrades the request and runs a read-handle-reply loop. All
// writes happen from this goroutine, so no write lock is needed.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("learnerId")
	if learnerID == "" {
		http.Error(w, "missing learnerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := ""
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "create":
			var payload wsCreatePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(conn, "invalid create payload")
				continue
			}
			tier, err := domain.ParseTier(payload.Difficulty)
			if err != nil {
				h.sendError(conn, err.Error())
				continue
			}
			view, err := h.service.CreateSession(r.Context(), learnerID, domain.SessionConfig{
				Topic:         payload.Topic,
				Difficulty:    tier,
				QuestionCount: payload.QuestionCount,
				TimeLimitSec:  payload.TimeLimitSec,
			})
			if err != nil {
				h.sendError(conn, err.Error())
				continue
			}
			sessionID = view.SessionID
			h.send(conn, "session", view)

		case "attach":
			var payload wsAttachPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(conn, "invalid attach payload")
				continue
			}
			view, err := h.service.GetSessionView(r.Context(), payload.SessionID)
			if err != nil {
				h.sendError(conn, err.Error())
				continue
			}
			sessionID = payload.SessionID
			h.send(conn, "session", view)

		case "answer":
			if sessionID == "" {
				h.sendError(conn, "no session attached")
				continue
			}
			var payload wsAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(conn, "invalid answer payload")
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), sessionID, payload.QuestionIndex, payload.Option)
			if err != nil {
				h.sendError(conn, err.Error())
				continue
			}
			h.send(conn, "answerResult", result)

		case "timeout":
			if sessionID == "" {
				h.sendError(conn, "no session attached")
				continue
			}
			result, err := h.service.ForceTimeout(r.Context(), sessionID)
			if err != nil {
				h.sendError(conn, err.Error())
				continue
			}
			if result != nil {
				h.send(conn, "answerResult", result)
				continue
			}
			h.sendView(conn, r, sessionID)

		case "view":
			if sessionID == "" {
				h.sendError(conn, "no session attached")
				continue
			}
			h.sendView(conn, r, sessionID)

		default:
			h.sendError(conn, "unsupported message type")
		}
	}
}

func (h *WSHandler) sendView(conn *websocket.Conn, r *http.Request, sessionID string) {
	view, err := h.service.GetSessionView(r.Context(), sessionID)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.send(conn, "session", view)
}

func (h *WSHandler) send(conn *websocket.Conn, msgType string, payload any) {
	if err := conn.WriteJSON(outboundMessage[any]{Type: msgType, Payload: payload}); err != nil {
		var closeErr *websocket.CloseError
		if !errors.As(err, &closeErr) {
			h.log.Warn().Err(err).Msg("ws write failed")
		}
	}
}

func (h *WSHandler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, "error", errorPayload{Code: "ERROR", Message: message})
}
