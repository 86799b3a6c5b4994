package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/escalation"
)

func newQueueCmd() *cobra.Command {
	var (
		configPath string
		redisAddr  string
		url        string
	)

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the escalation queue",
		Long: `Prints the conversations waiting for an agent.

The snapshot is read from the Redis mirror when one is configured (or given
with --redis); otherwise it is fetched from a running gateway at --url.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			if redisAddr != "" {
				cfg.Redis.Addr = redisAddr
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			var st *escalation.Status
			if cfg.Redis.Addr != "" {
				st, err = loadMirrored(ctx, cfg.Redis)
			} else {
				st, err = fetchQueue(ctx, url)
			}
			if err != nil {
				return err
			}
			if st == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No queue snapshot in Redis (is the gateway running?)")
				return nil
			}
			printQueue(cmd.OutOrStdout(), *st)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address of the queue mirror (overrides redis.addr)")
	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "gateway base URL, used when no Redis mirror is configured")
	return cmd
}

func loadMirrored(ctx context.Context, c config.RedisConfig) (*escalation.Status, error) {
	m, err := newMirror(c)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return m.Load(ctx)
}

func fetchQueue(ctx context.Context, base string) (*escalation.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/api/queue", nil)
	if err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("queue: %s returned %s", req.URL, resp.Status)
	}
	var st escalation.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("queue: decode: %w", err)
	}
	return &st, nil
}

func printQueue(out io.Writer, st escalation.Status) {
	fmt.Fprintf(out, "Queue at %s: %d waiting, %d agents with capacity, estimated wait %s\n",
		st.At.Local().Format("15:04:05"), st.Length, st.AgentsUnderCapacity, st.EstimatedWait)
	if st.Length == 0 {
		return
	}
	fmt.Fprintf(out, "\n%-4s %-38s %-24s %8s %s\n", "#", "CONVERSATION", "CUSTOMER", "PRIORITY", "WAITING")
	for i, q := range st.Queued {
		name := q.Context.CustomerName
		if q.Context.VIP {
			name += " (VIP)"
		}
		waiting := st.At.Sub(q.EnqueuedAt).Truncate(time.Second)
		fmt.Fprintf(out, "%-4d %-38s %-24s %8d %s\n", i+1, q.ConversationID, name, q.Priority, waiting)
	}
}
