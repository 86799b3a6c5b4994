package models

import "time"

// Agent tiers, in selection preference order.
const (
	TierSenior = "senior"
	TierJunior = "junior"
)

// Agent is a human support agent that can take escalated conversations.
type Agent struct {
	ID             string `gorm:"primaryKey;size:64"`
	Name           string `gorm:"size:128;not null"`
	Email          string `gorm:"size:128"`
	Tier           string `gorm:"size:16;default:junior"`
	Online         bool   `gorm:"not null;index"`
	Available      bool   `gorm:"not null"`
	Blocked        bool   `gorm:"not null"`
	MaxConcurrent  int    `gorm:"not null;default:3"`
	ActiveCount    int    `gorm:"not null;default:0"`
	LastAssignedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Assignment statuses.
const (
	AssignmentActive    = "active"
	AssignmentFinalized = "finalized"
)

// Assignment is the escalation record binding a conversation to an agent.
type Assignment struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"size:64;not null;index"`
	AgentID        string `gorm:"size:64;not null;index"`
	Reason         string `gorm:"size:64"`
	Priority       int
	Status         string    `gorm:"size:16;default:active;index"`
	AssignedAt     time.Time `gorm:"not null"`
	FinalizedAt    *time.Time
}
