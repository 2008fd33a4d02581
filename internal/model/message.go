package model

// MessageType enumerates the frame kinds exchanged over the duplex connection.
type MessageType string

const (
	MessageTypeMessage     MessageType = "message"
	MessageTypeTypingStart MessageType = "typing_start"
	MessageTypeTypingStop  MessageType = "typing_stop"
	MessageTypeReadReceipt MessageType = "read_receipt"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeMessage, MessageTypeTypingStart, MessageTypeTypingStop,
		MessageTypeReadReceipt, MessageTypePing, MessageTypePong:
		return true
	}
	return false
}

// ChatMessage is one typed frame on the duplex connection, in either
// direction. All fields beyond Type are optional.
type ChatMessage struct {
	Type          MessageType    `json:"type"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Content       string         `json:"content,omitempty"`
	MessageID     string         `json:"message_id,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
