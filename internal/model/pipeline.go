package model

import "time"

// DispatchRequest is the payload forwarded to the external automation
// pipeline. The pipeline echoes the correlation ID back on its callback.
type DispatchRequest struct {
	CorrelationID string      `json:"correlation_id"`
	SessionID     string      `json:"session_id"`
	UserID        string      `json:"user_id"`
	Email         string      `json:"email,omitempty"`
	Kind          ContentKind `json:"kind,omitempty"`
	Tag           string      `json:"tag,omitempty"`
	Query         string      `json:"query,omitempty"`
}

// Callback is the asynchronous payload the pipeline posts back once content
// has been computed.
type Callback struct {
	Event         string      `json:"event"`
	Message       string      `json:"message"`
	SessionID     string      `json:"session_id,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Kind          ContentKind `json:"kind,omitempty"`
	Tag           string      `json:"tag,omitempty"`
}

// ArchivedMessage is a delivered digest message persisted to the opaque
// data store, when one is configured.
type ArchivedMessage struct {
	ID            string      `db:"id" json:"id"`
	SessionID     string      `db:"session_id" json:"sessionId"`
	UserID        string      `db:"user_id" json:"userId"`
	CorrelationID string      `db:"correlation_id" json:"correlationId"`
	Kind          ContentKind `db:"kind" json:"kind,omitempty"`
	Tag           string      `db:"tag" json:"tag,omitempty"`
	Content       string      `db:"content" json:"content"`
	DeliveredAt   time.Time   `db:"delivered_at" json:"deliveredAt"`
}
