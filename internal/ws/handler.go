package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/delivery"
	apperrors "github.com/quenty/webchannel-server-go/internal/errors"
	"github.com/quenty/webchannel-server-go/internal/httputil"
	"github.com/quenty/webchannel-server-go/internal/model"
	"github.com/quenty/webchannel-server-go/internal/registry"
	"github.com/quenty/webchannel-server-go/internal/token"
	"github.com/quenty/webchannel-server-go/internal/util"
)

type contentCommand struct {
	Kind model.ContentKind
	Tag  string
}

// parseContentCommand recognizes "/trends [tag]", "/topics [tag]" and
// "/summary [tag]" in a chat message. Anything else is a free-form query.
func parseContentCommand(text string) *contentCommand {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return nil
	}

	parts := strings.Fields(trimmed)
	kind := model.ContentKind(strings.TrimPrefix(parts[0], "/"))
	if !kind.Valid() {
		return nil
	}

	tag := "default"
	if len(parts) > 1 {
		tag = strings.ToLower(parts[1])
	}
	return &contentCommand{Kind: kind, Tag: tag}
}

// Handler owns the duplex connection endpoint: handoff token verification,
// upgrade, session registration, and the per-connection read loop.
type Handler struct {
	verifier    *token.Verifier
	registry    *registry.Registry
	coordinator *delivery.Coordinator
	upgrader    websocket.Upgrader
}

func NewHandler(verifier *token.Verifier, reg *registry.Registry, coordinator *delivery.Coordinator) *Handler {
	return &Handler{
		verifier:    verifier,
		registry:    reg,
		coordinator: coordinator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload := h.verifier.Verify(r.URL.Query().Get("token"))
	if payload == nil {
		log.Warn().Msg("websocket connect rejected: invalid handoff token")
		httputil.WriteError(w, apperrors.InvalidToken("Invalid or expired handoff token"))
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newConn(wsConn)
	now := time.Now()
	sess := &model.Session{
		ID:            uuid.NewString(),
		UserID:        util.UserKey(payload.Email),
		Email:         payload.Email,
		Conn:          conn,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}
	h.registry.Register(sess)

	go conn.writePump()

	conn.Send(model.ChatMessage{
		Type:      model.MessageTypeMessage,
		SessionID: sess.ID,
		Metadata:  map[string]any{"event": "connected"},
	})

	h.readLoop(r.Context(), sess, conn, wsConn)
}

func (h *Handler) readLoop(ctx context.Context, sess *model.Session, conn *Conn, wsConn *websocket.Conn) {
	defer func() {
		h.registry.Remove(sess.ID)
		conn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		h.registry.Touch(sess.ID)
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg model.ChatMessage
		if err := wsConn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("sessionId", sess.ID).Msg("websocket closed unexpectedly")
			}
			return
		}
		wsConn.SetReadDeadline(time.Now().Add(pongWait))

		h.handleMessage(ctx, sess, conn, msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, sess *model.Session, conn *Conn, msg model.ChatMessage) {
	switch msg.Type {
	case model.MessageTypePing:
		h.registry.Touch(sess.ID)
		conn.Send(model.ChatMessage{
			Type:          model.MessageTypePong,
			CorrelationID: msg.CorrelationID,
			SessionID:     sess.ID,
		})

	case model.MessageTypePong:
		h.registry.Touch(sess.ID)

	case model.MessageTypeTypingStart, model.MessageTypeTypingStop, model.MessageTypeReadReceipt:
		// Presence frames carry no routing work in this product.
		log.Debug().
			Str("sessionId", sess.ID).
			Str("type", string(msg.Type)).
			Msg("presence frame received")

	case model.MessageTypeMessage:
		var err error
		if cmd := parseContentCommand(msg.Content); cmd != nil {
			err = h.coordinator.RequestContent(ctx, sess, cmd.Kind, cmd.Tag, "", msg.CorrelationID)
		} else {
			err = h.coordinator.RequestContent(ctx, sess, "", "", msg.Content, msg.CorrelationID)
		}
		if err != nil {
			log.Error().Err(err).Str("sessionId", sess.ID).Msg("content request failed")
			conn.Send(model.ChatMessage{
				Type:          model.MessageTypeMessage,
				CorrelationID: msg.CorrelationID,
				SessionID:     sess.ID,
				Metadata:      map[string]any{"event": "error", "reason": "dispatch_failed"},
			})
		}

	default:
		log.Warn().
			Str("sessionId", sess.ID).
			Str("type", string(msg.Type)).
			Msg("unknown message type ignored")
	}
}
