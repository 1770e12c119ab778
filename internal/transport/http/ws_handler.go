package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/identity"
)

type WSHandler struct {
	engine   *app.Engine
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		engine: engine,
		logger: logger,
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

type selectPayload struct {
	Index  int    `json:"index"`
	Option string `json:"option"`
}

type nextPayload struct {
	Index int `json:"index"`
}

type helloPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	ShortID   string `json:"shortId"`
}

type ackPayload struct {
	Action   string `json:"action"`
	Accepted bool   `json:"accepted"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request, starts a quiz session for the requested
// configuration and relays session updates until either side goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	cfg, err := configFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var who app.IdentityProvider = identity.NewAnonymous()
	if userID := r.URL.Query().Get("userId"); userID != "" {
		who = identity.NewFixed(userID)
	}
	user, err := who.CurrentUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// The session lives exactly as long as the connection.
	session, err := h.engine.Start(r.Context(), who, cfg)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()), time.Now().Add(time.Second))
		return
	}
	defer session.Close()
	log := h.logger.With(zap.String("session_id", session.ID()), zap.String("user_id", user.ID))
	log.Info("player connected", zap.String("category", cfg.Category), zap.String("difficulty", cfg.Difficulty))

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "hello", Payload: helloPayload{
		SessionID: session.ID(),
		UserID:    user.ID,
		ShortID:   user.ShortID(),
	}}

	go func() {
		defer close(updatesDone)
		resultSent := false
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					// The session was closed under us, usually by engine shutdown.
					// Closing the connection unblocks the read loop.
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"), time.Now().Add(time.Second))
					_ = conn.Close()
					return
				}
				msgs := []outboundMessage[any]{{Type: "snapshot", Payload: snap}}
				if snap.Phase != domain.PhaseFinished {
					resultSent = false
				} else if snap.Result != nil && !resultSent {
					resultSent = true
					msgs = append(msgs, outboundMessage[any]{Type: "result", Payload: *snap.Result})
				}
				for _, msg := range msgs {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.dispatch(session, inbound); ok {
			send <- reply
		}
	}

	log.Info("player disconnected")
	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch applies one client message to session and returns the direct
// reply, if any. State changes reach the client through the subscription.
func (h *WSHandler) dispatch(session *app.Session, inbound inboundMessage) (outboundMessage[any], bool) {
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid select payload"), true
		}
		accepted, err := session.Select(payload.Index, payload.Option)
		if err != nil {
			return errorMessage(err.Error()), true
		}
		return ack("select", accepted), true
	case "next":
		var payload nextPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid next payload"), true
		}
		accepted, err := session.Next(payload.Index)
		if err != nil {
			return errorMessage(err.Error()), true
		}
		return ack("next", accepted), true
	case "retry":
		if err := session.Retry(); err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage[any]{}, false
	case "configure":
		var cfg domain.QuizConfig
		if err := json.Unmarshal(inbound.Payload, &cfg); err != nil {
			return errorMessage("invalid configure payload"), true
		}
		if err := cfg.Validate(); err != nil {
			return errorMessage(err.Error()), true
		}
		if err := session.Configure(cfg); err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage[any]{}, false
	default:
		return errorMessage("unsupported message type"), true
	}
}

func ack(action string, accepted bool) outboundMessage[any] {
	return outboundMessage[any]{Type: "ack", Payload: ackPayload{Action: action, Accepted: accepted}}
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

var errInvalidAmount = errors.New("invalid amount")

func configFromQuery(r *http.Request) (domain.QuizConfig, error) {
	q := r.URL.Query()
	cfg := domain.QuizConfig{
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
	}
	if raw := q.Get("amount"); raw != "" {
		amount, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, errInvalidAmount
		}
		cfg.Amount = amount
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
