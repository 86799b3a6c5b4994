// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Switchboard configuration, loaded from switchboard.yaml.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Server        ServerConfig        `yaml:"server"`
	Session       SessionConfig       `yaml:"session"`
	Escalation    EscalationConfig    `yaml:"escalation"`
	BusinessHours BusinessHoursConfig `yaml:"business_hours"`
	Log           LogConfig           `yaml:"log"`
	Notify        NotifyConfig        `yaml:"notify"`
	Digest        DigestConfig        `yaml:"digest"`
	Redis         RedisConfig         `yaml:"redis"`
	Seed          SeedConfig          `yaml:"seed"`
}

// DatabaseConfig selects and locates the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ServerConfig holds gateway listener settings.
type ServerConfig struct {
	Listen          string   `yaml:"listen"`
	MaxMessageRunes int      `yaml:"max_message_runes"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// SessionConfig controls idle expiry of conversations. WarnBefore is how
// long before expiry the customer is warned; negative turns the warning off,
// as does a value not shorter than IdleTimeout.
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	WarnBefore    time.Duration `yaml:"warn_before"`
}

// EscalationConfig controls the human hand-off queue.
type EscalationConfig struct {
	ProcessInterval        time.Duration `yaml:"process_interval"`
	AvgConversationMinutes int           `yaml:"avg_conversation_minutes"`
}

// BusinessHoursConfig describes when human agents are staffed.
// Hours are local-time integers in [0,24]; weekdays use time.Weekday numbering.
type BusinessHoursConfig struct {
	Start    int   `yaml:"start"`
	End      int   `yaml:"end"`
	Weekdays []int `yaml:"weekdays"`
}

// LogConfig selects logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// NotifyConfig holds optional staff notification channels.
type NotifyConfig struct {
	Slack   ChatNotifyConfig `yaml:"slack"`
	Discord ChatNotifyConfig `yaml:"discord"`
	NATS    NATSConfig       `yaml:"nats"`
}

// ChatNotifyConfig is shared by the Slack and Discord notifiers.
type ChatNotifyConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// Enabled reports whether the notifier has enough settings to start.
func (c ChatNotifyConfig) Enabled() bool {
	return c.BotToken != "" && c.Channel != ""
}

// NATSConfig configures the escalation event publisher.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// DigestConfig schedules the daily staff digest.
type DigestConfig struct {
	Cron string `yaml:"cron"`
}

// RedisConfig configures the queue status mirror.
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	Prefix         string        `yaml:"prefix"`
	MirrorInterval time.Duration `yaml:"mirror_interval"`
}

// SeedConfig lists rows upserted by "sb db seed".
type SeedConfig struct {
	Agents    []AgentSeed    `yaml:"agents"`
	Customers []CustomerSeed `yaml:"customers"`
}

// AgentSeed describes one human agent.
type AgentSeed struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Email         string `yaml:"email"`
	Tier          string `yaml:"tier"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// CustomerSeed describes one known customer identity.
type CustomerSeed struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
	Login string `yaml:"login"`
	VIP   bool   `yaml:"vip"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied,
// suitable for running without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "switchboard.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "switchboard"
		}
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.MaxMessageRunes == 0 {
		c.Server.MaxMessageRunes = 1000
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = 30 * time.Minute
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = time.Minute
	}
	if c.Session.WarnBefore == 0 {
		c.Session.WarnBefore = 5 * time.Minute
	}
	if c.Escalation.ProcessInterval == 0 {
		c.Escalation.ProcessInterval = 5 * time.Second
	}
	if c.Escalation.AvgConversationMinutes == 0 {
		c.Escalation.AvgConversationMinutes = 8
	}
	if c.BusinessHours.Start == 0 && c.BusinessHours.End == 0 {
		c.BusinessHours.Start = 8
		c.BusinessHours.End = 14
	}
	if len(c.BusinessHours.Weekdays) == 0 {
		c.BusinessHours.Weekdays = []int{1, 2, 3, 4, 5}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Notify.NATS.URL != "" && c.Notify.NATS.Subject == "" {
		c.Notify.NATS.Subject = "switchboard.escalations"
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 18 * * *"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "switchboard"
	}
	if c.Redis.MirrorInterval == 0 {
		c.Redis.MirrorInterval = 10 * time.Second
	}
	for i := range c.Seed.Agents {
		if c.Seed.Agents[i].MaxConcurrent == 0 {
			c.Seed.Agents[i].MaxConcurrent = 3
		}
		if c.Seed.Agents[i].Tier == "" {
			c.Seed.Agents[i].Tier = "junior"
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (use sqlite or mysql)", c.Database.Driver))
	}
	if c.Server.MaxMessageRunes < 0 {
		errs = append(errs, "server.max_message_runes must be positive")
	}
	if c.Session.IdleTimeout < 0 {
		errs = append(errs, "session.idle_timeout must be positive")
	}
	if c.Session.SweepInterval < 0 {
		errs = append(errs, "session.sweep_interval must be positive")
	}
	if c.Escalation.ProcessInterval < 0 {
		errs = append(errs, "escalation.process_interval must be positive")
	}
	if c.Escalation.AvgConversationMinutes < 0 {
		errs = append(errs, "escalation.avg_conversation_minutes must be positive")
	}
	if c.BusinessHours.Start < 0 || c.BusinessHours.End > 24 || c.BusinessHours.Start >= c.BusinessHours.End {
		errs = append(errs, fmt.Sprintf("business_hours %d-%d is not a valid range", c.BusinessHours.Start, c.BusinessHours.End))
	}
	for _, d := range c.BusinessHours.Weekdays {
		if d < 0 || d > 6 {
			errs = append(errs, fmt.Sprintf("business_hours.weekdays: %d is not a weekday (0-6)", d))
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not supported (use text or json)", c.Log.Format))
	}
	if (c.Notify.Slack.BotToken == "") != (c.Notify.Slack.Channel == "") {
		errs = append(errs, "notify.slack requires both bot_token and channel")
	}
	if (c.Notify.Discord.BotToken == "") != (c.Notify.Discord.Channel == "") {
		errs = append(errs, "notify.discord requires both bot_token and channel")
	}
	for i, a := range c.Seed.Agents {
		if a.ID == "" {
			errs = append(errs, fmt.Sprintf("seed.agents[%d].id is required", i))
		}
		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("seed.agents[%d].name is required", i))
		}
		if a.MaxConcurrent < 0 {
			errs = append(errs, fmt.Sprintf("seed.agents[%d].max_concurrent must be positive", i))
		}
	}
	for i, cu := range c.Seed.Customers {
		if cu.ID == "" {
			errs = append(errs, fmt.Sprintf("seed.customers[%d].id is required", i))
		}
		if cu.Name == "" {
			errs = append(errs, fmt.Sprintf("seed.customers[%d].name is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
