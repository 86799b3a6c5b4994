package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrCapacityConflict means the chosen agent filled up between selection
	// and assignment.
	ErrCapacityConflict = errors.New("escalation: agent capacity conflict")

	// ErrAgentNotFound means no agent has the given id.
	ErrAgentNotFound = errors.New("escalation: agent not found")
)

// AgentDirectory is the external record of human agents and their load.
type AgentDirectory interface {
	// FindAvailable returns the best agent with spare capacity, or nil, nil.
	FindAvailable(ctx context.Context) (*models.Agent, error)
	// Assign records the assignment and takes one capacity slot. It fails
	// with ErrCapacityConflict when the agent no longer has a free slot.
	Assign(ctx context.Context, agentID, conversationID, reason string, priority int) error
	// Release finalizes the active assignment and frees its slot. It
	// reports false when there was no active assignment.
	Release(ctx context.Context, agentID, conversationID string) (bool, error)
	// CountUnderCapacity counts agents that could take a conversation now.
	CountUnderCapacity(ctx context.Context) (int, error)
}

// AssignmentLookup is implemented by agent directories that can report the
// agent already holding a conversation. The service uses it to answer a
// repeated request with the existing assignment.
type AssignmentLookup interface {
	ActiveAssignment(ctx context.Context, conversationID string) (*models.Assignment, error)
	Get(ctx context.Context, agentID string) (*models.Agent, error)
}

var _ AssignmentLookup = (*GormAgents)(nil)

// GormAgents is the AgentDirectory backed by the agents and assignments
// tables. Capacity is enforced by a conditional update, so concurrent
// assignments across processes never exceed max_concurrent.
type GormAgents struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormAgents returns a directory over db. now defaults to time.Now.
func NewGormAgents(db *gorm.DB, now func() time.Time) (*GormAgents, error) {
	if db == nil {
		return nil, fmt.Errorf("escalation: db is required")
	}
	if now == nil {
		now = time.Now
	}
	return &GormAgents{db: db, now: now}, nil
}

func availableScope(tx *gorm.DB) *gorm.DB {
	return tx.Where("online = ? AND available = ? AND blocked = ? AND active_count < max_concurrent", true, true, false)
}

// FindAvailable prefers senior agents, then the least loaded, then the one
// waiting longest since its last assignment (never assigned first).
func (g *GormAgents) FindAvailable(ctx context.Context) (*models.Agent, error) {
	order := clause.Expr{
		SQL: "CASE tier WHEN ? THEN 0 WHEN ? THEN 1 ELSE 2 END, active_count, " +
			"CASE WHEN last_assigned_at IS NULL THEN 0 ELSE 1 END, last_assigned_at, id",
		Vars: []interface{}{models.TierSenior, models.TierJunior},
	}

	var agent models.Agent
	result := availableScope(g.db.WithContext(ctx).Model(&models.Agent{})).
		Order(clause.OrderBy{Expression: order}).
		Limit(1).
		Find(&agent)
	if result.Error != nil {
		return nil, fmt.Errorf("escalation: find available agent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &agent, nil
}

// Assign takes a slot on the agent and inserts the assignment in one
// transaction.
func (g *GormAgents) Assign(ctx context.Context, agentID, conversationID, reason string, priority int) error {
	now := g.now()
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := availableScope(tx.Model(&models.Agent{}).Where("id = ?", agentID)).
			Updates(map[string]interface{}{
				"active_count":     gorm.Expr("active_count + 1"),
				"last_assigned_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("escalation: take slot on %s: %w", agentID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrCapacityConflict
		}

		a := models.Assignment{
			ConversationID: conversationID,
			AgentID:        agentID,
			Reason:         reason,
			Priority:       priority,
			Status:         models.AssignmentActive,
			AssignedAt:     now,
		}
		if err := tx.Create(&a).Error; err != nil {
			return fmt.Errorf("escalation: record assignment %s -> %s: %w", conversationID, agentID, err)
		}
		return nil
	})
}

// Release finalizes the active assignment and decrements the agent's load,
// never below zero. Releasing twice is a no-op.
func (g *GormAgents) Release(ctx context.Context, agentID, conversationID string) (bool, error) {
	now := g.now()
	released := false
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Assignment{}).
			Where("agent_id = ? AND conversation_id = ? AND status = ?", agentID, conversationID, models.AssignmentActive).
			Updates(map[string]interface{}{
				"status":       models.AssignmentFinalized,
				"finalized_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("escalation: finalize assignment %s/%s: %w", agentID, conversationID, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&models.Agent{}).Where("id = ?", agentID).
			Update("active_count", gorm.Expr("CASE WHEN active_count > 0 THEN active_count - 1 ELSE 0 END")).Error; err != nil {
			return fmt.Errorf("escalation: release slot on %s: %w", agentID, err)
		}
		released = true
		return nil
	})
	return released, err
}

// CountUnderCapacity counts online, available, unblocked agents with a free slot.
func (g *GormAgents) CountUnderCapacity(ctx context.Context) (int, error) {
	var n int64
	if err := availableScope(g.db.WithContext(ctx).Model(&models.Agent{})).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("escalation: count agents: %w", err)
	}
	return int(n), nil
}

// SetPresence updates an agent's online and available flags, as reported by
// the agent console.
func (g *GormAgents) SetPresence(ctx context.Context, agentID string, online, available bool) error {
	result := g.db.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", agentID).
		Updates(map[string]interface{}{"online": online, "available": available})
	if result.Error != nil {
		return fmt.Errorf("escalation: presence %s: %w", agentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return nil
}

// Get returns the agent with id.
func (g *GormAgents) Get(ctx context.Context, agentID string) (*models.Agent, error) {
	var agent models.Agent
	err := g.db.WithContext(ctx).Where("id = ?", agentID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("escalation: get agent %s: %w", agentID, err)
	}
	return &agent, nil
}

// List returns every agent ordered by id.
func (g *GormAgents) List(ctx context.Context) ([]models.Agent, error) {
	var agents []models.Agent
	if err := g.db.WithContext(ctx).Order("id").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("escalation: list agents: %w", err)
	}
	return agents, nil
}

// ActiveAssignment returns the active assignment for a conversation, or nil.
func (g *GormAgents) ActiveAssignment(ctx context.Context, conversationID string) (*models.Assignment, error) {
	var a models.Assignment
	result := g.db.WithContext(ctx).
		Where("conversation_id = ? AND status = ?", conversationID, models.AssignmentActive).
		Limit(1).Find(&a)
	if result.Error != nil {
		return nil, fmt.Errorf("escalation: assignment for %s: %w", conversationID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &a, nil
}
