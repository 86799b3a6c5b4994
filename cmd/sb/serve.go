package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/escalation"
	"github.com/zulandar/switchboard/internal/gateway"
	"github.com/zulandar/switchboard/internal/identity"
	"github.com/zulandar/switchboard/internal/intent"
	"github.com/zulandar/switchboard/internal/logging"
	"github.com/zulandar/switchboard/internal/logsink"
	"github.com/zulandar/switchboard/internal/metrics"
	"github.com/zulandar/switchboard/internal/mirror"
	"github.com/zulandar/switchboard/internal/supervisor"
	"github.com/zulandar/switchboard/internal/telegraph"
	"github.com/zulandar/switchboard/internal/telegraph/discord"
	"github.com/zulandar/switchboard/internal/telegraph/natsbus"
	"github.com/zulandar/switchboard/internal/telegraph/slack"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		demo       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateway",
		Long: `Starts the websocket and REST gateway together with the background
jobs: idle sweep, escalation queue processing, staff digest and the Redis
queue mirror.

With --demo the database is an in-memory SQLite seeded from the config file,
customer identities come from the seed list and conversation logs are not
kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, listen, demo)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides server.listen)")
	cmd.Flags().BoolVar(&demo, "demo", false, "run against an in-memory database")
	return cmd
}

func runServe(cmd *cobra.Command, configPath, listen string, demo bool) error {
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, log, demo)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx, cmd.OutOrStdout())
}

// app is every long-lived component of a running gateway.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	db     *gorm.DB
	engine *chat.Engine
	esc    *escalation.Service
	srv    *gateway.Server
	sup    *supervisor.Supervisor

	closers []func() error
}

func buildApp(cfg *config.Config, log *logrus.Logger, demo bool) (*app, error) {
	a := &app{cfg: cfg, log: log}
	if err := a.build(demo); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(demo bool) error {
	cfg := a.cfg
	var err error

	dbCfg := cfg.Database
	if demo {
		dbCfg = config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
	}
	a.db, err = db.Open(dbCfg)
	if err != nil {
		return err
	}
	if sqlDB, err := a.db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := db.AutoMigrate(a.db); err != nil {
		return err
	}
	if demo {
		if err := db.SeedAgents(a.db, cfg.Seed.Agents); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		ids     chat.IdentityDirectory
		sink    chat.LogSink
		history gateway.History
		summary telegraph.Summarizer
	)
	if demo {
		ids = identity.NewMemory(seedIdentities(cfg.Seed.Customers))
		sink = logsink.Discard{}
	} else {
		gormIDs, err := identity.NewGorm(identity.GormOpts{DB: a.db})
		if err != nil {
			return err
		}
		gormSink, err := logsink.NewGorm(a.db, nil)
		if err != nil {
			return err
		}
		ids, sink, history, summary = gormIDs, gormSink, gormSink, gormSink
	}

	hours := businessHours(cfg.BusinessHours)
	a.engine, err = chat.NewEngine(chat.EngineOpts{
		Directory:   chat.NewDirectory(),
		Identities:  ids,
		Sink:        sink,
		Hours:       &hours,
		IdleTimeout: cfg.Session.IdleTimeout,
		WarnBefore:  cfg.Session.WarnBefore,
		Logger:      a.log,
		Metrics:     m,
	})
	if err != nil {
		return err
	}

	agents, err := escalation.NewGormAgents(a.db, nil)
	if err != nil {
		return err
	}
	a.esc, err = escalation.New(escalation.Opts{
		Agents:                 agents,
		AvgConversationMinutes: cfg.Escalation.AvgConversationMinutes,
		Logger:                 a.log,
		Metrics:                m,
	})
	if err != nil {
		return err
	}

	staff, err := a.staffNotifiers()
	if err != nil {
		return err
	}
	if staff.Len() > 0 {
		n, err := telegraph.NewEscalations(staff)
		if err != nil {
			return err
		}
		a.esc.AddNotifier(n)
	}
	if cfg.Notify.NATS.URL != "" {
		pub, err := natsbus.New(natsbus.Opts{URL: cfg.Notify.NATS.URL, Subject: cfg.Notify.NATS.Subject})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pub.Close)
		a.esc.AddNotifier(pub)
	}

	gwOpts := gateway.Opts{
		Engine:          a.engine,
		Escalation:      a.esc,
		Agents:          agents,
		History:         history,
		Gatherer:        reg,
		MaxMessageRunes: cfg.Server.MaxMessageRunes,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Logger:          a.log,
	}
	a.srv, err = gateway.New(gwOpts)
	if err != nil {
		return err
	}

	supOpts := supervisor.Opts{
		Engine:          a.engine,
		Escalation:      a.esc,
		Outbox:          a.srv.Hub(),
		SweepInterval:   cfg.Session.SweepInterval,
		ProcessInterval: cfg.Escalation.ProcessInterval,
		MirrorInterval:  cfg.Redis.MirrorInterval,
		Logger:          a.log,
	}
	if summary != nil && staff.Len() > 0 {
		digest, err := telegraph.NewDigest(telegraph.DigestOpts{Source: summary, Notifier: staff})
		if err != nil {
			return err
		}
		supOpts.Digest = digest
		supOpts.DigestCron = cfg.Digest.Cron
	}
	if cfg.Redis.Addr != "" {
		mir, err := newMirror(cfg.Redis)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, mir.Close)
		supOpts.Mirror = mir
	}
	a.sup, err = supervisor.New(supOpts)
	return err
}

// staffNotifiers builds the chat notifiers enabled in config.
func (a *app) staffNotifiers() (*telegraph.Multi, error) {
	multi := telegraph.NewMulti(a.log)
	if c := a.cfg.Notify.Slack; c.Enabled() {
		n, err := slack.New(slack.Opts{BotToken: c.BotToken, ChannelID: c.Channel})
		if err != nil {
			return nil, err
		}
		multi.Add(n)
	}
	if c := a.cfg.Notify.Discord; c.Enabled() {
		n, err := discord.New(discord.Opts{BotToken: c.BotToken, ChannelID: c.Channel, Logger: a.log})
		if err != nil {
			return nil, err
		}
		multi.Add(n)
	}
	return multi, nil
}

func newMirror(c config.RedisConfig) (*mirror.Mirror, error) {
	return mirror.New(mirror.Opts{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		Prefix:   c.Prefix,
		TTL:      3 * c.MirrorInterval,
	})
}

// Run serves until ctx is cancelled or a component fails.
func (a *app) Run(ctx context.Context, out io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.srv.Start(ctx, a.cfg.Server.Listen, out) })
	g.Go(func() error { return a.sup.Run(ctx) })
	err := g.Wait()
	a.log.Info("switchboard: stopped")
	return err
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("switchboard: close")
		}
	}
	a.closers = nil
}

func businessHours(c config.BusinessHoursConfig) intent.BusinessHours {
	h := intent.BusinessHours{Start: c.Start, End: c.End}
	for _, d := range c.Weekdays {
		h.Weekdays = append(h.Weekdays, time.Weekday(d))
	}
	return h
}

func seedIdentities(seeds []config.CustomerSeed) []chat.Identity {
	out := make([]chat.Identity, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, chat.Identity{
			ID:    s.ID,
			Name:  s.Name,
			Email: s.Email,
			Phone: s.Phone,
			Login: s.Login,
			VIP:   s.VIP,
		})
	}
	return out
}
