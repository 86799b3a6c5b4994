// Package supervisor runs the gateway's background jobs on a cron
// schedule: the idle sweep, the escalation queue head, the staff digest and
// the Redis queue mirror.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/switchboard/internal/catalog"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/escalation"
	"github.com/zulandar/switchboard/internal/logging"
)

// Defaults for unset intervals.
const (
	DefaultSweepInterval   = time.Minute
	DefaultProcessInterval = 5 * time.Second
	DefaultMirrorInterval  = 10 * time.Second
)

// Frame kinds pushed to customer connections.
const (
	KindEnded = "ended"
	KindReply = "reply"
)

// Outbox delivers unsolicited text to a customer's live connection. It
// reports false when the customer is not connected.
type Outbox interface {
	Deliver(conversationID, kind, text string) bool
}

// StatusWriter receives queue snapshots.
type StatusWriter interface {
	Write(ctx context.Context, st escalation.Status) error
}

// DigestRunner posts one staff digest.
type DigestRunner interface {
	Run(ctx context.Context) (bool, error)
}

// Opts holds parameters for creating a Supervisor.
type Opts struct {
	Engine     *chat.Engine
	Escalation *escalation.Service
	Outbox     Outbox       // optional
	Digest     DigestRunner // optional
	DigestCron string       // required when Digest is set
	Mirror     StatusWriter // optional

	SweepInterval   time.Duration
	ProcessInterval time.Duration
	MirrorInterval  time.Duration

	Logger logrus.FieldLogger
}

// Supervisor owns the cron scheduler.
type Supervisor struct {
	engine *chat.Engine
	esc    *escalation.Service
	outbox Outbox
	digest DigestRunner
	mirror StatusWriter
	log    logrus.FieldLogger

	cron *cron.Cron

	mu  sync.Mutex
	ctx context.Context
}

// New creates a Supervisor and registers its jobs. Nothing runs until Run.
func New(opts Opts) (*Supervisor, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("supervisor: engine is required")
	}
	if opts.Escalation == nil {
		return nil, fmt.Errorf("supervisor: escalation service is required")
	}
	s := &Supervisor{
		engine: opts.Engine,
		esc:    opts.Escalation,
		outbox: opts.Outbox,
		digest: opts.Digest,
		mirror: opts.Mirror,
		log:    logging.OrDiscard(opts.Logger).WithField("component", "supervisor"),
		ctx:    context.Background(),
	}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(s.log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(s.log)),
	))

	jobs := []job{
		{every(opts.SweepInterval, DefaultSweepInterval), func(ctx context.Context) { s.Sweep(ctx) }},
		{every(opts.ProcessInterval, DefaultProcessInterval), func(ctx context.Context) { s.ProcessQueue(ctx) }},
	}
	if s.digest != nil {
		if opts.DigestCron == "" {
			return nil, fmt.Errorf("supervisor: digest cron is required")
		}
		jobs = append(jobs, job{opts.DigestCron, s.SendDigest})
	}
	if s.mirror != nil {
		jobs = append(jobs, job{every(opts.MirrorInterval, DefaultMirrorInterval), s.MirrorQueue})
	}

	for _, j := range jobs {
		fn := j.fn
		if _, err := s.cron.AddFunc(j.spec, func() { fn(s.context()) }); err != nil {
			return nil, fmt.Errorf("supervisor: schedule %q: %w", j.spec, err)
		}
	}
	return s, nil
}

type job struct {
	spec string
	fn   func(context.Context)
}

func every(d, def time.Duration) string {
	if d <= 0 {
		d = def
	}
	return "@every " + d.String()
}

func (s *Supervisor) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Jobs returns the number of scheduled jobs.
func (s *Supervisor) Jobs() int { return len(s.cron.Entries()) }

// Run starts the scheduler and blocks until ctx is cancelled, then waits
// for running jobs to finish.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.log.WithField("jobs", s.Jobs()).Info("supervisor: started")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("supervisor: stopped")
	return nil
}

// Sweep expires idle conversations, tells connected customers, and drops
// expired conversations from the escalation queue. Conversations close to
// expiring get the inactivity warning instead.
func (s *Supervisor) Sweep(ctx context.Context) []chat.Expiry {
	expired := s.engine.SweepIdle(ctx)
	for _, exp := range expired {
		if s.esc.Cancel(ctx, exp.ConversationID) {
			logging.Op(s.log, exp.ConversationID, "sweep").Info("supervisor: queued conversation went idle, cancelled")
		}
		if exp.Notice != "" && s.outbox != nil {
			s.outbox.Deliver(exp.ConversationID, KindEnded, exp.Notice)
		}
	}
	for _, w := range s.engine.WarnIdle(ctx) {
		if s.outbox != nil {
			s.outbox.Deliver(w.ConversationID, KindReply, w.Notice)
		}
	}
	return expired
}

// ProcessQueue assigns queued conversations while agents have capacity.
func (s *Supervisor) ProcessQueue(ctx context.Context) []escalation.Result {
	var assigned []escalation.Result
	for n := s.esc.Queue().Len(); n > 0; n-- {
		res, err := s.esc.ProcessQueueHead(ctx)
		if err != nil {
			s.log.WithError(err).Warn("supervisor: process queue head")
			break
		}
		if res == nil {
			break
		}
		assigned = append(assigned, *res)
		if s.outbox != nil {
			text := s.engine.Catalog().MustRender(catalog.AgentAssigned, catalog.Params{"atendente": res.AgentName})
			s.outbox.Deliver(res.ConversationID, KindReply, text)
		}
	}
	return assigned
}

// SendDigest posts the staff digest.
func (s *Supervisor) SendDigest(ctx context.Context) {
	if s.digest == nil {
		return
	}
	sent, err := s.digest.Run(ctx)
	if err != nil {
		s.log.WithError(err).Warn("supervisor: digest")
		return
	}
	if sent {
		s.log.Info("supervisor: digest sent")
	}
}

// MirrorQueue writes the current queue snapshot.
func (s *Supervisor) MirrorQueue(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Write(ctx, s.esc.Status(ctx)); err != nil {
		s.log.WithError(err).Warn("supervisor: mirror queue")
	}
}
