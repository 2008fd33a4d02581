package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/quenty/webchannel-server-go/internal/model"
)

// MessageRepository is the boundary to the opaque data store: delivered
// digest messages go in, recent history comes out.
type MessageRepository interface {
	Insert(ctx context.Context, msg model.ArchivedMessage) error
	ListRecent(ctx context.Context, limit int) ([]model.ArchivedMessage, error)
	ListBySessionID(ctx context.Context, sessionID string, limit int) ([]model.ArchivedMessage, error)
	CountAll(ctx context.Context) (int, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Insert(ctx context.Context, msg model.ArchivedMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO archived_messages (id, session_id, user_id, correlation_id, kind, tag, content, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.SessionID, msg.UserID, msg.CorrelationID, string(msg.Kind), msg.Tag, msg.Content, msg.DeliveredAt)
	return err
}

func (r *messageRepo) ListRecent(ctx context.Context, limit int) ([]model.ArchivedMessage, error) {
	var msgs []model.ArchivedMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM archived_messages
		ORDER BY delivered_at DESC
		LIMIT $1
	`, limit)
	return msgs, err
}

func (r *messageRepo) ListBySessionID(ctx context.Context, sessionID string, limit int) ([]model.ArchivedMessage, error) {
	var msgs []model.ArchivedMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM archived_messages
		WHERE session_id = $1
		ORDER BY delivered_at DESC
		LIMIT $2
	`, sessionID, limit)
	return msgs, err
}

func (r *messageRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM archived_messages`)
	return count, err
}
