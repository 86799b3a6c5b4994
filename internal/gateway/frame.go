package gateway

import (
	"github.com/zulandar/switchboard/internal/escalation"
)

// Client frame types.
const (
	TypeStart   = "start"
	TypeMessage = "message"
	TypeEnd     = "end"
	TypePing    = "ping"

	// Agent console only.
	TypePresence = "presence"
	TypeAccept   = "accept"
	TypeRelease  = "release"
)

// Server frame types.
const (
	TypeReply      = "reply"
	TypeEscalation = "escalation"
	TypeError      = "error"
	TypeEnded      = "ended"
	TypePong       = "pong"
	TypeAck        = "ack"
)

// Error codes carried in error frames.
const (
	CodeInvalidFrame   = "invalid_frame"
	CodeInvalidMessage = "invalid_message"
	CodeSessionExpired = "session_expired"
	CodeConflict       = "conflict"
	CodeInternal       = "internal"
)

// Frame is the JSON envelope exchanged on both websockets.
type Frame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text,omitempty"`
	State          string `json:"state,omitempty"`
	Code           string `json:"code,omitempty"`

	// start
	IdentityID string `json:"identity_id,omitempty"`
	Name       string `json:"name,omitempty"`

	// end
	Resolved bool `json:"resolved,omitempty"`

	// agent console
	AgentID   string `json:"agent_id,omitempty"`
	Available *bool  `json:"available,omitempty"`

	Escalation *escalation.Result `json:"escalation,omitempty"`
	Record     *escalation.Record `json:"record,omitempty"`
}

func errorFrame(conversationID, code, text string) Frame {
	return Frame{Type: TypeError, ConversationID: conversationID, Code: code, Text: text}
}
