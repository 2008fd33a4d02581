package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/cache"
	"github.com/quenty/webchannel-server-go/internal/correlation"
	"github.com/quenty/webchannel-server-go/internal/model"
	"github.com/quenty/webchannel-server-go/internal/registry"
)

// Pipeline dispatches content requests to the external automation pipeline.
type Pipeline interface {
	Dispatch(ctx context.Context, req model.DispatchRequest) error
}

// Archive persists delivered messages to the opaque data store. May be nil
// when no store is configured.
type Archive interface {
	Insert(ctx context.Context, msg model.ArchivedMessage) error
}

// Outcome is the terminal state of one callback routing attempt. No retries
// happen here; retry policy belongs to the pipeline.
type Outcome string

const (
	OutcomeDelivered   Outcome = "delivered"
	OutcomeSessionGone Outcome = "session_gone"
	OutcomeUnresolved  Outcome = "unresolved"
)

// Coordinator routes asynchronous pipeline callbacks back to the live
// connection that originated them, and dispatches outbound content requests
// with a correlation entry so the answer can find its way home.
type Coordinator struct {
	tracker  *correlation.Tracker
	registry *registry.Registry
	cache    *cache.Cache
	pipeline Pipeline
	archive  Archive
}

func NewCoordinator(
	tracker *correlation.Tracker,
	reg *registry.Registry,
	contentCache *cache.Cache,
	pipeline Pipeline,
	archive Archive,
) *Coordinator {
	return &Coordinator{
		tracker:  tracker,
		registry: reg,
		cache:    contentCache,
		pipeline: pipeline,
		archive:  archive,
	}
}

// RequestContent handles an outbound content request from a connected
// session. Fresh cached content short-circuits straight back onto the
// connection; otherwise the request is forwarded to the pipeline under a
// correlation ID. An empty correlationID is generated; a caller-supplied one
// is kept so the client can match the reply.
func (c *Coordinator) RequestContent(ctx context.Context, sess *model.Session, kind model.ContentKind, tag, query, correlationID string) error {
	if kind.Valid() {
		if payload, ok := c.cache.Get(model.CacheKey(kind, tag)); ok {
			content, _ := payload.(string)
			c.push(sess, model.ChatMessage{
				Type:          model.MessageTypeMessage,
				CorrelationID: correlationID,
				Content:       content,
				MessageID:     uuid.NewString(),
				SessionID:     sess.ID,
				Metadata:      map[string]any{"kind": string(kind), "tag": tag, "cached": true},
			})
			return nil
		}
	}

	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	c.tracker.Track(correlationID, sess.ID, sess.UserID, sess.Email)

	err := c.pipeline.Dispatch(ctx, model.DispatchRequest{
		CorrelationID: correlationID,
		SessionID:     sess.ID,
		UserID:        sess.UserID,
		Email:         sess.Email,
		Kind:          kind,
		Tag:           tag,
		Query:         query,
	})
	if err != nil {
		c.tracker.Clear(correlationID)
		return fmt.Errorf("dispatch content request: %w", err)
	}

	log.Debug().
		Str("correlationId", correlationID).
		Str("sessionId", sess.ID).
		Str("kind", string(kind)).
		Msg("content request dispatched")

	return nil
}

// HandleCallback routes one asynchronous pipeline callback. Every return is
// a terminal outcome: an unresolvable or expired correlation and a vanished
// session are expected, non-fatal drops, not errors.
func (c *Coordinator) HandleCallback(ctx context.Context, cb model.Callback) Outcome {
	sessionID := ""
	userID := ""

	if entry := c.tracker.Resolve(cb.CorrelationID); entry != nil {
		sessionID = entry.SessionID
		userID = entry.UserID
	} else if cb.CorrelationID == "" && cb.SessionID != "" {
		// Directly addressed callback, no correlation to honor.
		sessionID = cb.SessionID
	} else {
		// A correlation ID that does not resolve is terminal, even when the
		// callback also names a session; otherwise an echoed session ID would
		// sidestep the correlation window.
		log.Info().
			Str("correlationId", cb.CorrelationID).
			Str("event", cb.Event).
			Msg("callback dropped: correlation unknown or expired")
		return OutcomeUnresolved
	}

	sess := c.registry.Get(sessionID)
	if sess == nil {
		log.Info().
			Str("correlationId", cb.CorrelationID).
			Str("sessionId", sessionID).
			Msg("callback dropped: session no longer connected")
		return OutcomeSessionGone
	}
	if userID == "" {
		userID = sess.UserID
	}

	frame := model.ChatMessage{
		Type:          model.MessageTypeMessage,
		CorrelationID: cb.CorrelationID,
		Content:       cb.Message,
		MessageID:     uuid.NewString(),
		SessionID:     sess.ID,
		Metadata:      map[string]any{"event": cb.Event},
	}
	if !c.push(sess, frame) {
		return OutcomeSessionGone
	}

	if cb.Kind.Valid() && cb.Tag != "" {
		c.cache.Set(model.CacheKey(cb.Kind, cb.Tag), cb.Message)
	}

	if c.archive != nil {
		msg := model.ArchivedMessage{
			ID:            frame.MessageID,
			SessionID:     sess.ID,
			UserID:        userID,
			CorrelationID: cb.CorrelationID,
			Kind:          cb.Kind,
			Tag:           cb.Tag,
			Content:       cb.Message,
			DeliveredAt:   time.Now(),
		}
		if err := c.archive.Insert(ctx, msg); err != nil {
			log.Warn().Err(err).Str("messageId", frame.MessageID).Msg("failed to archive delivered message")
		}
	}

	log.Info().
		Str("correlationId", cb.CorrelationID).
		Str("sessionId", sess.ID).
		Str("event", cb.Event).
		Msg("callback delivered")

	return OutcomeDelivered
}

func (c *Coordinator) push(sess *model.Session, frame model.ChatMessage) bool {
	if err := sess.Conn.Send(frame); err != nil {
		log.Warn().
			Err(err).
			Str("sessionId", sess.ID).
			Msg("failed to push frame to connection")
		return false
	}
	return true
}
