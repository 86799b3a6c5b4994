package models

import "time"

// Conversation is the persisted record of one support session. It outlives
// the in-memory state held by the chat engine.
type Conversation struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	CustomerID    string    `gorm:"size:64;index" json:"customer_id"`
	CustomerName  string    `gorm:"size:128" json:"customer_name"`
	State         string    `gorm:"size:24;not null;index" json:"state"`
	IsBot         bool      `gorm:"not null" json:"is_bot"`
	StartedAt     time.Time `gorm:"not null;index" json:"started_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	EndedAt       *time.Time `gorm:"index" json:"ended_at"`
	EndReason     string     `gorm:"size:32" json:"end_reason"` // resolved, unresolved, timeout, agent

	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// End reasons recorded on Conversation.EndReason.
const (
	EndResolved   = "resolved"
	EndUnresolved = "unresolved"
	EndTimeout    = "timeout"
	EndAgent      = "agent"
)
