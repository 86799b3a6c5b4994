package db

import (
	"fmt"

	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/identity"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Conversation{},
		&models.Message{},
		&models.Customer{},
		&models.Agent{},
		&models.Assignment{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedAgents upserts Agent rows from configuration. Presence and load
// columns are left alone on conflict so a reseed does not disturb live agents.
func SeedAgents(db *gorm.DB, agents []config.AgentSeed) error {
	for _, ac := range agents {
		agent := models.Agent{
			ID:            ac.ID,
			Name:          ac.Name,
			Email:         ac.Email,
			Tier:          ac.Tier,
			MaxConcurrent: ac.MaxConcurrent,
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "tier", "max_concurrent"}),
		}).Create(&agent)
		if result.Error != nil {
			return fmt.Errorf("db: seed agent %q: %w", ac.ID, result.Error)
		}
	}
	return nil
}

// SeedCustomers upserts Customer rows from configuration.
func SeedCustomers(db *gorm.DB, customers []config.CustomerSeed) error {
	for _, cc := range customers {
		customer := models.Customer{
			ID:        cc.ID,
			Name:      cc.Name,
			SearchKey: identity.Fold(cc.Name),
			Email:     cc.Email,
			Phone:     cc.Phone,
			Login:     cc.Login,
			VIP:       cc.VIP,
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "search_key", "email", "phone", "login", "vip"}),
		}).Create(&customer)
		if result.Error != nil {
			return fmt.Errorf("db: seed customer %q: %w", cc.ID, result.Error)
		}
	}
	return nil
}
