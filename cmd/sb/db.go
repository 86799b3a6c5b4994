package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBSeedCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Switchboard tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return runDBMigrate(cmd, cfg, gormDB)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB) error {
	out := cmd.OutOrStdout()
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables (%s)\n", len(db.AllModels()), cfg.Database.Driver)
	return nil
}

func newDBSeedCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert agents and customers listed in the config file",
		Long:  "Migrates the tables, then upserts seed.agents and seed.customers. Agent presence and load are left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return runDBSeed(cmd, cfg, gormDB)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runDBSeed(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB) error {
	out := cmd.OutOrStdout()
	if err := runDBMigrate(cmd, cfg, gormDB); err != nil {
		return err
	}

	if err := db.SeedAgents(gormDB, cfg.Seed.Agents); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d agents:", len(cfg.Seed.Agents))
	for _, a := range cfg.Seed.Agents {
		fmt.Fprintf(out, " %s", a.ID)
	}
	fmt.Fprintln(out)

	if err := db.SeedCustomers(gormDB, cfg.Seed.Customers); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d customers\n", len(cfg.Seed.Customers))
	return nil
}

// connectFromConfig loads the config and opens its database.
func connectFromConfig(cmd *cobra.Command, configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}
