// Package logsink persists conversation logs: one Conversation row per
// session and one Message row per turn.
package logsink

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm writes the conversation log through gorm.
type Gorm struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGorm returns a sink writing to db. now defaults to time.Now.
func NewGorm(db *gorm.DB, now func() time.Time) (*Gorm, error) {
	if db == nil {
		return nil, fmt.Errorf("logsink: db is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Gorm{db: db, now: now}, nil
}

// StartConversation inserts the conversation row. Restarting an id that
// already has a row leaves the existing row in place.
func (g *Gorm) StartConversation(ctx context.Context, conv chat.Conversation) error {
	row := models.Conversation{
		ID:            conv.ID,
		State:         string(conv.State),
		IsBot:         true,
		StartedAt:     conv.StartedAt,
		LastMessageAt: conv.StartedAt,
	}
	if conv.Customer != nil {
		row.CustomerID = conv.Customer.ID
		row.CustomerName = conv.Customer.Name
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("logsink: start %s: %w", conv.ID, err)
	}
	return nil
}

// AppendTurn inserts a message and bumps the conversation's last message time.
func (g *Gorm) AppendTurn(ctx context.Context, conversationID, speaker, text, intent string) error {
	now := g.now()
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg := models.Message{
			ConversationID: conversationID,
			Sender:         speaker,
			Body:           text,
			Intent:         intent,
			CreatedAt:      now,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("logsink: append turn %s: %w", conversationID, err)
		}
		if err := tx.Model(&models.Conversation{}).Where("id = ?", conversationID).
			Update("last_message_at", now).Error; err != nil {
			return fmt.Errorf("logsink: touch %s: %w", conversationID, err)
		}
		return nil
	})
}

// AppendStateChange records the new state on the conversation row.
func (g *Gorm) AppendStateChange(ctx context.Context, conversationID string, state chat.State) error {
	err := g.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", conversationID).
		Update("state", string(state)).Error
	if err != nil {
		return fmt.Errorf("logsink: state %s: %w", conversationID, err)
	}
	return nil
}

// RecordCustomer stores who the conversation was identified as.
func (g *Gorm) RecordCustomer(ctx context.Context, conversationID string, customer chat.Identity) error {
	err := g.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"customer_id":   customer.ID,
			"customer_name": customer.Name,
		}).Error
	if err != nil {
		return fmt.Errorf("logsink: customer %s: %w", conversationID, err)
	}
	return nil
}

// EndConversation stamps the end time and reason. A conversation handed to
// a human agent is no longer a bot conversation.
func (g *Gorm) EndConversation(ctx context.Context, conversationID, reason string, at time.Time) error {
	updates := map[string]interface{}{
		"ended_at":   at,
		"end_reason": reason,
	}
	if reason == models.EndAgent {
		updates["is_bot"] = false
	}
	err := g.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", conversationID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("logsink: end %s: %w", conversationID, err)
	}
	return nil
}

// Recent returns the last n messages of a conversation, oldest first.
func (g *Gorm) Recent(ctx context.Context, conversationID string, n int) ([]models.Message, error) {
	var msgs []models.Message
	err := g.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("id DESC").Limit(n).Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("logsink: recent %s: %w", conversationID, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Conversations returns a customer's logged conversations, newest first.
func (g *Gorm) Conversations(ctx context.Context, customerID string, limit int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := g.db.WithContext(ctx).Where("customer_id = ?", customerID).
		Order("started_at DESC").Limit(limit).Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("logsink: conversations of %s: %w", customerID, err)
	}
	return convs, nil
}

// Summary counts conversations for the staff digest.
type Summary struct {
	Since     time.Time
	Started   int64
	Escalated int64
	ByReason  map[string]int64
}

// Summarize counts conversations started since the given time, how many of
// them reached a human, and how the ended ones ended.
func (g *Gorm) Summarize(ctx context.Context, since time.Time) (Summary, error) {
	s := Summary{Since: since, ByReason: make(map[string]int64)}
	db := g.db.WithContext(ctx)

	if err := db.Model(&models.Conversation{}).Where("started_at >= ?", since).
		Count(&s.Started).Error; err != nil {
		return s, fmt.Errorf("logsink: summarize started: %w", err)
	}
	if err := db.Model(&models.Conversation{}).
		Where("started_at >= ? AND (state = ? OR end_reason = ?)", since, string(chat.Escalated), models.EndAgent).
		Count(&s.Escalated).Error; err != nil {
		return s, fmt.Errorf("logsink: summarize escalated: %w", err)
	}

	var rows []struct {
		EndReason string
		N         int64
	}
	if err := db.Model(&models.Conversation{}).
		Select("end_reason, COUNT(*) AS n").
		Where("started_at >= ? AND ended_at IS NOT NULL", since).
		Group("end_reason").Scan(&rows).Error; err != nil {
		return s, fmt.Errorf("logsink: summarize reasons: %w", err)
	}
	for _, r := range rows {
		s.ByReason[r.EndReason] = r.N
	}
	return s, nil
}
