package models

import "time"

// Message senders.
const (
	SenderCustomer = "CUSTOMER"
	SenderBot      = "BOT"
	SenderSystem   = "SYSTEM"
	SenderAgent    = "AGENT"
)

// Message is one turn of a conversation, appended by the log sink.
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"size:64;not null;index" json:"conversation_id"`
	Sender         string    `gorm:"size:16;not null" json:"sender"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	Intent         string    `gorm:"size:48" json:"intent"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}
