package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/switchboard/internal/logging"
	"github.com/zulandar/switchboard/internal/metrics"
	"github.com/zulandar/switchboard/internal/models"
)

// DefaultAvgConversationMinutes is the assumed length of a human-handled
// conversation when estimating waits.
const DefaultAvgConversationMinutes = 8

// Lifecycle of an escalation request.
const (
	StatusRequested = "requested"
	StatusAssigned  = "assigned"
	StatusQueued    = "queued"
	StatusReleased  = "released"
	StatusCancelled = "cancelled"
)

// Record describes one lifecycle step of an escalation, as published to
// notifiers.
type Record struct {
	Status         string        `json:"status"`
	ConversationID string        `json:"conversation_id"`
	CustomerName   string        `json:"customer_name,omitempty"`
	VIP            bool          `json:"vip,omitempty"`
	Priority       int           `json:"priority"`
	AgentID        string        `json:"agent_id,omitempty"`
	AgentName      string        `json:"agent_name,omitempty"`
	QueuePosition  int           `json:"queue_position,omitempty"`
	EstimatedWait  EstimatedWait `json:"estimated_wait"`
	Context        *Context      `json:"context,omitempty"`
	At             time.Time     `json:"at"`
}

// Notifier receives escalation records. Failures are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, rec Record) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, rec Record) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, rec Record) error { return f(ctx, rec) }

// Result is the outcome of an escalation request or queue step.
type Result struct {
	ConversationID string        `json:"conversation_id"`
	Success        bool          `json:"success"`
	AgentID        string        `json:"agent_id,omitempty"`
	AgentName      string        `json:"agent_name,omitempty"`
	QueuePosition  int           `json:"queue_position,omitempty"`
	EstimatedWait  EstimatedWait `json:"estimated_wait"`
}

// Status is a point-in-time view of the queue.
type Status struct {
	Queued              []QueuedEscalation `json:"queued"`
	Length              int                `json:"length"`
	AgentsUnderCapacity int                `json:"agents_under_capacity"`
	EstimatedWait       EstimatedWait      `json:"estimated_wait"`
	At                  time.Time          `json:"at"`
}

// Opts holds parameters for creating a Service.
type Opts struct {
	Agents                 AgentDirectory
	Now                    func() time.Time
	AvgConversationMinutes int
	Notifiers              []Notifier
	Logger                 logrus.FieldLogger
	Metrics                *metrics.Metrics
}

// Service assigns escalated conversations to agents and owns the wait queue.
type Service struct {
	agents    AgentDirectory
	queue     *Queue
	now       func() time.Time
	avg       int
	notifiers []Notifier
	log       logrus.FieldLogger
	metrics   *metrics.Metrics

	headMu sync.Mutex // serializes ProcessQueueHead
	reqMu  sync.Mutex // serializes RequestEscalation
}

// New creates a Service.
func New(opts Opts) (*Service, error) {
	if opts.Agents == nil {
		return nil, fmt.Errorf("escalation: agent directory is required")
	}
	s := &Service{
		agents:    opts.Agents,
		queue:     NewQueue(),
		now:       opts.Now,
		avg:       opts.AvgConversationMinutes,
		notifiers: opts.Notifiers,
		log:       logging.OrDiscard(opts.Logger),
		metrics:   opts.Metrics,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.avg <= 0 {
		s.avg = DefaultAvgConversationMinutes
	}
	return s, nil
}

// AddNotifier registers n for subsequent records. It must be called before
// the service is shared.
func (s *Service) AddNotifier(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

// Queue exposes the wait queue.
func (s *Service) Queue() *Queue { return s.queue }

// RequestEscalation assigns an agent right away when one has capacity and
// queues the conversation otherwise. A conversation that is already queued
// keeps its place and one that already has an agent keeps that agent.
// Agent directory failures queue the conversation rather than lose it.
func (s *Service) RequestEscalation(ctx context.Context, c Context) (Result, error) {
	if c.ConversationID == "" {
		return Result{}, fmt.Errorf("escalation: conversation id is required")
	}
	log := logging.Op(s.log, c.ConversationID, "request_escalation")
	priority := Priority(c)

	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	if pos, ok := s.queue.Position(c.ConversationID); ok {
		return s.queuedResult(ctx, c.ConversationID, pos), nil
	}
	current, err := s.currentAgent(ctx, c.ConversationID)
	if err != nil {
		log.WithError(err).Warn("escalation: look up existing assignment")
	}
	if current != nil {
		return Result{ConversationID: c.ConversationID, Success: true, AgentID: current.ID, AgentName: current.Name}, nil
	}

	s.publish(ctx, Record{Status: StatusRequested, ConversationID: c.ConversationID,
		CustomerName: c.CustomerName, VIP: c.VIP, Priority: priority, Context: &c})

	agent, err := s.assign(ctx, c.ConversationID, "customer_request", priority)
	if err != nil {
		log.WithError(err).Warn("escalation: agent directory unavailable, queueing")
	}
	if agent != nil {
		s.metrics.Escalation(StatusAssigned)
		s.publish(ctx, Record{Status: StatusAssigned, ConversationID: c.ConversationID,
			CustomerName: c.CustomerName, VIP: c.VIP, Priority: priority,
			AgentID: agent.ID, AgentName: agent.Name, Context: &c})
		log.WithField("agent_id", agent.ID).Info("escalation: assigned")
		return Result{ConversationID: c.ConversationID, Success: true, AgentID: agent.ID, AgentName: agent.Name}, nil
	}

	pos, _ := s.queue.Push(QueuedEscalation{
		ConversationID: c.ConversationID,
		Context:        c,
		Priority:       priority,
		EnqueuedAt:     s.now(),
	})
	s.metrics.Escalation(StatusQueued)
	s.metrics.SetQueueLength(s.queue.Len())

	res := s.queuedResult(ctx, c.ConversationID, pos)
	s.publish(ctx, Record{Status: StatusQueued, ConversationID: c.ConversationID,
		CustomerName: c.CustomerName, VIP: c.VIP, Priority: priority,
		QueuePosition: res.QueuePosition, EstimatedWait: res.EstimatedWait, Context: &c})
	log.WithFields(logrus.Fields{"priority": priority, "position": pos}).Info("escalation: queued")
	return res, nil
}

// currentAgent returns the agent holding an active assignment for the
// conversation, or nil when there is none or the directory cannot tell.
func (s *Service) currentAgent(ctx context.Context, conversationID string) (*models.Agent, error) {
	lookup, ok := s.agents.(AssignmentLookup)
	if !ok {
		return nil, nil
	}
	asg, err := lookup.ActiveAssignment(ctx, conversationID)
	if err != nil || asg == nil {
		return nil, err
	}
	agent, err := lookup.Get(ctx, asg.AgentID)
	if err != nil {
		return &models.Agent{ID: asg.AgentID}, nil
	}
	return agent, nil
}

func (s *Service) queuedResult(ctx context.Context, conversationID string, pos int) Result {
	return Result{
		ConversationID: conversationID,
		QueuePosition:  pos,
		EstimatedWait:  s.estimate(ctx, s.queue.Len()),
	}
}

// assign picks an agent and takes a slot, retrying selection once when the
// slot is lost to a concurrent assignment. It returns nil when no agent
// could be assigned.
func (s *Service) assign(ctx context.Context, conversationID, reason string, priority int) (*models.Agent, error) {
	for attempt := 0; attempt < 2; attempt++ {
		start := time.Now()
		agent, err := s.agents.FindAvailable(ctx)
		s.metrics.ObserveCall("agents.find", start, err)
		if err != nil {
			return nil, err
		}
		if agent == nil {
			return nil, nil
		}

		start = time.Now()
		err = s.agents.Assign(ctx, agent.ID, conversationID, reason, priority)
		if errors.Is(err, ErrCapacityConflict) {
			s.metrics.ObserveCall("agents.assign", start, nil)
			s.metrics.Escalation("conflict")
			continue
		}
		s.metrics.ObserveCall("agents.assign", start, err)
		if err != nil {
			return nil, err
		}
		return agent, nil
	}
	return nil, nil
}

func (s *Service) estimate(ctx context.Context, queueLen int) EstimatedWait {
	start := time.Now()
	n, err := s.agents.CountUnderCapacity(ctx)
	s.metrics.ObserveCall("agents.count", start, err)
	if err != nil {
		s.log.WithError(err).Warn("escalation: count agents")
		return EstimatedWait{Indeterminate: true}
	}
	return EstimateWait(queueLen, s.avg, n)
}

// ProcessQueueHead tries to assign the highest-priority queued conversation.
// It returns nil when the queue is empty or no agent is free; the queue is
// left unchanged in that case.
func (s *Service) ProcessQueueHead(ctx context.Context) (*Result, error) {
	s.headMu.Lock()
	defer s.headMu.Unlock()

	head, ok := s.queue.Peek()
	if !ok {
		return nil, nil
	}
	agent, err := s.assign(ctx, head.ConversationID, "queue", head.Priority)
	if err != nil {
		return nil, fmt.Errorf("escalation: process queue head: %w", err)
	}
	if agent == nil {
		return nil, nil
	}

	if !s.queue.Remove(head.ConversationID) {
		// Cancelled while the slot was being taken.
		if _, err := s.agents.Release(ctx, agent.ID, head.ConversationID); err != nil {
			return nil, fmt.Errorf("escalation: undo assignment of cancelled %s: %w", head.ConversationID, err)
		}
		return nil, nil
	}
	s.metrics.Escalation(StatusAssigned)
	s.metrics.SetQueueLength(s.queue.Len())

	hc := head.Context
	s.publish(ctx, Record{Status: StatusAssigned, ConversationID: head.ConversationID,
		CustomerName: hc.CustomerName, VIP: hc.VIP, Priority: head.Priority,
		AgentID: agent.ID, AgentName: agent.Name, Context: &hc})
	logging.Op(s.log, head.ConversationID, "process_queue_head").
		WithField("agent_id", agent.ID).Info("escalation: assigned from queue")

	return &Result{ConversationID: head.ConversationID, Success: true, AgentID: agent.ID, AgentName: agent.Name}, nil
}

// ReleaseAgent finalizes the assignment and frees the agent's slot.
// Releasing an assignment that is not active is a no-op.
func (s *Service) ReleaseAgent(ctx context.Context, agentID, conversationID string) error {
	start := time.Now()
	released, err := s.agents.Release(ctx, agentID, conversationID)
	s.metrics.ObserveCall("agents.release", start, err)
	if err != nil {
		return fmt.Errorf("escalation: release %s/%s: %w", agentID, conversationID, err)
	}
	if released {
		s.metrics.Escalation(StatusReleased)
		s.publish(ctx, Record{Status: StatusReleased, ConversationID: conversationID, AgentID: agentID})
	}
	return nil
}

// Cancel removes a queued conversation, e.g. when the customer left.
func (s *Service) Cancel(ctx context.Context, conversationID string) bool {
	if !s.queue.Remove(conversationID) {
		return false
	}
	s.metrics.SetQueueLength(s.queue.Len())
	s.publish(ctx, Record{Status: StatusCancelled, ConversationID: conversationID})
	return true
}

// Status returns a copy of the queue with the current wait estimate.
func (s *Service) Status(ctx context.Context) Status {
	queued := s.queue.Sorted()
	st := Status{Queued: queued, Length: len(queued), At: s.now()}

	start := time.Now()
	n, err := s.agents.CountUnderCapacity(ctx)
	s.metrics.ObserveCall("agents.count", start, err)
	if err != nil {
		s.log.WithError(err).Warn("escalation: count agents")
		st.EstimatedWait = EstimatedWait{Indeterminate: true}
		return st
	}
	st.AgentsUnderCapacity = n
	st.EstimatedWait = EstimateWait(len(queued), s.avg, n)
	return st
}

func (s *Service) publish(ctx context.Context, rec Record) {
	if rec.At.IsZero() {
		rec.At = s.now()
	}
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, rec); err != nil {
			logging.Op(s.log, rec.ConversationID, "notify").WithError(err).
				WithField("status", rec.Status).Warn("escalation: notifier failed")
		}
	}
}
