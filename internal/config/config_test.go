package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: support
  user: switchboard

server:
  listen: ":9090"
  max_message_runes: 500
  allowed_origins: ["https://shop.example.com"]

session:
  idle_timeout: 45m
  sweep_interval: 30s
  warn_before: 10m

escalation:
  process_interval: 2s
  avg_conversation_minutes: 12

business_hours:
  start: 9
  end: 18
  weekdays: [1, 2, 3, 4, 5, 6]

log:
  level: debug
  format: json

notify:
  slack:
    bot_token: xoxb-test
    channel: C123
  nats:
    url: nats://127.0.0.1:4222

redis:
  addr: 127.0.0.1:6379

seed:
  agents:
    - id: ana
      name: Ana Souza
      tier: senior
      max_concurrent: 4
    - id: bruno
      name: Bruno Lima
  customers:
    - id: "1"
      name: Maria Silva
      email: maria@example.com
      vip: true
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "mysql")
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 3307)
	}
	if cfg.Database.Name != "support" {
		t.Errorf("Database.Name = %q, want %q", cfg.Database.Name, "support")
	}
	if cfg.Server.Listen != ":9090" {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, ":9090")
	}
	if cfg.Server.MaxMessageRunes != 500 {
		t.Errorf("Server.MaxMessageRunes = %d, want 500", cfg.Server.MaxMessageRunes)
	}
	if cfg.Session.IdleTimeout != 45*time.Minute {
		t.Errorf("Session.IdleTimeout = %v, want 45m", cfg.Session.IdleTimeout)
	}
	if cfg.Session.SweepInterval != 30*time.Second {
		t.Errorf("Session.SweepInterval = %v, want 30s", cfg.Session.SweepInterval)
	}
	if cfg.Session.WarnBefore != 10*time.Minute {
		t.Errorf("Session.WarnBefore = %v, want 10m", cfg.Session.WarnBefore)
	}
	if cfg.Escalation.ProcessInterval != 2*time.Second {
		t.Errorf("Escalation.ProcessInterval = %v, want 2s", cfg.Escalation.ProcessInterval)
	}
	if cfg.Escalation.AvgConversationMinutes != 12 {
		t.Errorf("Escalation.AvgConversationMinutes = %d, want 12", cfg.Escalation.AvgConversationMinutes)
	}
	if cfg.BusinessHours.Start != 9 || cfg.BusinessHours.End != 18 {
		t.Errorf("BusinessHours = %d-%d, want 9-18", cfg.BusinessHours.Start, cfg.BusinessHours.End)
	}
	if len(cfg.BusinessHours.Weekdays) != 6 {
		t.Errorf("len(BusinessHours.Weekdays) = %d, want 6", len(cfg.BusinessHours.Weekdays))
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if !cfg.Notify.Slack.Enabled() {
		t.Error("Notify.Slack.Enabled() = false, want true")
	}
	if cfg.Notify.Discord.Enabled() {
		t.Error("Notify.Discord.Enabled() = true, want false")
	}
	if cfg.Notify.NATS.Subject != "switchboard.escalations" {
		t.Errorf("Notify.NATS.Subject = %q, want default", cfg.Notify.NATS.Subject)
	}
	if len(cfg.Seed.Agents) != 2 {
		t.Fatalf("len(Seed.Agents) = %d, want 2", len(cfg.Seed.Agents))
	}
	if cfg.Seed.Agents[0].MaxConcurrent != 4 {
		t.Errorf("Seed.Agents[0].MaxConcurrent = %d, want 4", cfg.Seed.Agents[0].MaxConcurrent)
	}
	if cfg.Seed.Agents[1].MaxConcurrent != 3 {
		t.Errorf("Seed.Agents[1].MaxConcurrent = %d, want default 3", cfg.Seed.Agents[1].MaxConcurrent)
	}
	if cfg.Seed.Agents[1].Tier != "junior" {
		t.Errorf("Seed.Agents[1].Tier = %q, want default junior", cfg.Seed.Agents[1].Tier)
	}
	if !cfg.Seed.Customers[0].VIP {
		t.Error("Seed.Customers[0].VIP = false, want true")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "switchboard.db" {
		t.Errorf("Database.Path = %q, want switchboard.db", cfg.Database.Path)
	}
	if cfg.Server.Listen != ":8080" {
		t.Errorf("Server.Listen = %q, want :8080", cfg.Server.Listen)
	}
	if cfg.Server.MaxMessageRunes != 1000 {
		t.Errorf("Server.MaxMessageRunes = %d, want 1000", cfg.Server.MaxMessageRunes)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Errorf("Session.IdleTimeout = %v, want 30m", cfg.Session.IdleTimeout)
	}
	if cfg.Session.WarnBefore != 5*time.Minute {
		t.Errorf("Session.WarnBefore = %v, want 5m", cfg.Session.WarnBefore)
	}
	if cfg.Escalation.AvgConversationMinutes != 8 {
		t.Errorf("AvgConversationMinutes = %d, want 8", cfg.Escalation.AvgConversationMinutes)
	}
	if cfg.BusinessHours.Start != 8 || cfg.BusinessHours.End != 14 {
		t.Errorf("BusinessHours = %d-%d, want 8-14", cfg.BusinessHours.Start, cfg.BusinessHours.End)
	}
	if cfg.Digest.Cron != "0 18 * * *" {
		t.Errorf("Digest.Cron = %q, want default", cfg.Digest.Cron)
	}
	if cfg.Redis.Prefix != "switchboard" {
		t.Errorf("Redis.Prefix = %q, want switchboard", cfg.Redis.Prefix)
	}
}

func TestDefault_MatchesEmptyParse(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" {
		t.Errorf("Database.Host = %q, want 127.0.0.1", cfg.Database.Host)
	}
	if cfg.Database.Port != 3306 {
		t.Errorf("Database.Port = %d, want 3306", cfg.Database.Port)
	}
	if cfg.Database.User != "root" {
		t.Errorf("Database.User = %q, want root", cfg.Database.User)
	}
	if cfg.Database.Path != "" {
		t.Errorf("Database.Path = %q, want empty for mysql", cfg.Database.Path)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "bad driver",
			yaml: "database:\n  driver: postgres\n",
			want: []string{`database.driver "postgres" is not supported`},
		},
		{
			name: "bad log format",
			yaml: "log:\n  format: xml\n",
			want: []string{`log.format "xml" is not supported`},
		},
		{
			name: "inverted business hours",
			yaml: "business_hours:\n  start: 14\n  end: 8\n",
			want: []string{"business_hours 14-8 is not a valid range"},
		},
		{
			name: "bad weekday",
			yaml: "business_hours:\n  weekdays: [7]\n",
			want: []string{"business_hours.weekdays: 7 is not a weekday"},
		},
		{
			name: "half slack",
			yaml: "notify:\n  slack:\n    bot_token: xoxb\n",
			want: []string{"notify.slack requires both bot_token and channel"},
		},
		{
			name: "seed rows missing fields",
			yaml: "seed:\n  agents:\n    - tier: senior\n  customers:\n    - email: x@example.com\n",
			want: []string{
				"seed.agents[0].id is required",
				"seed.agents[0].name is required",
				"seed.customers[0].id is required",
				"seed.customers[0].name is required",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q does not contain %q", err.Error(), w)
				}
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want config: parse prefix", err.Error())
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "switchboard.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want 10.0.0.5", cfg.Database.Host)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want config: read prefix", err.Error())
	}
}
