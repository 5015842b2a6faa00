package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"skillscape/internal/app"
	"skillscape/internal/domain"
)

// WSHandler streams session-state transitions of one signed-in identity.
type WSHandler struct {
	sessions *app.SessionContext
	tokens   TokenVerifier
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions *app.SessionContext, tokens TokenVerifier) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		tokens:   tokens,
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

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades GET /v1/ws/session?token= and forwards the caller's
// session states until the client disconnects. Sending {"type":"refresh"}
// re-reads the caller's profile.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	identity, err := h.tokens.VerifyToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.sessions.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case state, ok := <-updates:
				if !ok {
					return
				}
				if state.UID != "" && state.UID != identity.UID {
					continue
				}
				state = h.personalize(identity, state)
				select {
				case send <- outboundMessage[any]{Type: "session", Payload: state}:
				case <-closeSignals:
					return
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
		switch inbound.Type {
		case "refresh":
			// the refreshed state reaches this socket through the subscription
			if _, err := h.sessions.Refresh(r.Context(), identity); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// personalize turns the anonymous initial snapshot into this identity's view.
func (h *WSHandler) personalize(identity domain.Identity, state domain.SessionState) domain.SessionState {
	if state.UID != "" {
		return state
	}
	state.UID = identity.UID
	if user, ok := h.sessions.CurrentUser(identity.UID); ok {
		state.SignedIn = true
		state.User = &user
	}
	return state
}
