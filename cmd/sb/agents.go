package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/escalation"
	"github.com/zulandar/switchboard/internal/models"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect and manage human agents",
	}

	cmd.AddCommand(newAgentsListCmd())
	cmd.AddCommand(newAgentsPresenceCmd())
	return cmd
}

func newAgentsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents with presence and load",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd, configPath)
			if err != nil {
				return err
			}
			agents, err := escalation.NewGormAgents(gormDB, nil)
			if err != nil {
				return err
			}
			list, err := agents.List(cmd.Context())
			if err != nil {
				return err
			}
			printAgents(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func printAgents(out io.Writer, list []models.Agent) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No agents. Add them under seed.agents and run 'sb db seed'.")
		return
	}
	fmt.Fprintf(out, "%-16s %-24s %-7s %-8s %s\n", "ID", "NAME", "TIER", "STATUS", "LOAD")
	for _, a := range list {
		fmt.Fprintf(out, "%-16s %-24s %-7s %-8s %d/%d\n", a.ID, a.Name, a.Tier, agentStatus(a), a.ActiveCount, a.MaxConcurrent)
	}
}

func agentStatus(a models.Agent) string {
	switch {
	case a.Blocked:
		return "blocked"
	case !a.Online:
		return "offline"
	case !a.Available:
		return "away"
	}
	return "online"
}

func newAgentsPresenceCmd() *cobra.Command {
	var (
		configPath string
		online     bool
		available  bool
	)

	cmd := &cobra.Command{
		Use:   "presence <agent-id>",
		Short: "Set an agent's online and available flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd, configPath)
			if err != nil {
				return err
			}
			agents, err := escalation.NewGormAgents(gormDB, nil)
			if err != nil {
				return err
			}
			if err := agents.SetPresence(cmd.Context(), args[0], online, available && online); err != nil {
				return err
			}
			a, err := agents.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent %s is now %s\n", a.ID, agentStatus(*a))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().BoolVar(&online, "online", true, "mark the agent online")
	cmd.Flags().BoolVar(&available, "available", true, "mark the agent available for new conversations")
	return cmd
}
