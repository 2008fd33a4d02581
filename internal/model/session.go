package model

import "time"

// Conn is the write side of a live duplex connection. The websocket layer
// provides the concrete implementation; everything else only sees this.
type Conn interface {
	Send(msg ChatMessage) error
	Close() error
}

// Session is the server-side record of one authenticated, currently-connected
// duplex connection. Owned exclusively by the registry; other components
// reference it by ID only.
type Session struct {
	ID            string
	UserID        string
	Email         string
	Conn          Conn
	ConnectedAt   time.Time
	LastHeartbeat time.Time
	Metadata      map[string]any
}

// SessionInfo is the redacted view exposed on the admin surface. The raw
// connection handle and metadata never cross this boundary.
type SessionInfo struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Email         string    `json:"email"`
	ConnectedAt   time.Time `json:"connectedAt"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:            s.ID,
		UserID:        s.UserID,
		Email:         s.Email,
		ConnectedAt:   s.ConnectedAt,
		LastHeartbeat: s.LastHeartbeat,
	}
}
