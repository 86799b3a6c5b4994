// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ConversationsStarted prometheus.Counter
	ConversationsEnded   *prometheus.CounterVec
	ActiveConversations  prometheus.Gauge
	Turns                *prometheus.CounterVec
	Intents              *prometheus.CounterVec
	Escalations          *prometheus.CounterVec
	QueueLength          prometheus.Gauge
	CollaboratorDuration *prometheus.HistogramVec
	CollaboratorErrors   *prometheus.CounterVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConversationsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "switchboard_conversations_started_total",
			Help: "Total number of conversations started",
		}),
		ConversationsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_conversations_ended_total",
			Help: "Total number of conversations ended, by reason",
		}, []string{"reason"}),
		ActiveConversations: f.NewGauge(prometheus.GaugeOpts{
			Name: "switchboard_active_conversations",
			Help: "Conversations currently held in the directory",
		}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_turns_total",
			Help: "Inbound messages processed, by state before the turn",
		}, []string{"state"}),
		Intents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_intents_total",
			Help: "Classified inbound messages, by intent label",
		}, []string{"intent"}),
		Escalations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_escalations_total",
			Help: "Escalation outcomes (assigned, queued, released, conflict)",
		}, []string{"outcome"}),
		QueueLength: f.NewGauge(prometheus.GaugeOpts{
			Name: "switchboard_escalation_queue_length",
			Help: "Conversations waiting for a human agent",
		}),
		CollaboratorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "switchboard_collaborator_duration_seconds",
			Help:    "Time spent in identity, log sink and agent directory calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		CollaboratorErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_collaborator_errors_total",
			Help: "Failed collaborator calls, by operation",
		}, []string{"op"}),
	}
}

// ObserveCall records the latency of a collaborator call and counts it as
// failed when err is non-nil.
func (m *Metrics) ObserveCall(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.CollaboratorDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.CollaboratorErrors.WithLabelValues(op).Inc()
	}
}

// Started counts a new conversation.
func (m *Metrics) Started() {
	if m == nil {
		return
	}
	m.ConversationsStarted.Inc()
	m.ActiveConversations.Inc()
}

// Ended counts a conversation leaving the directory.
func (m *Metrics) Ended(reason string) {
	if m == nil {
		return
	}
	m.ConversationsEnded.WithLabelValues(reason).Inc()
	m.ActiveConversations.Dec()
}

// Turn counts one processed inbound message.
func (m *Metrics) Turn(state, intent string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(state).Inc()
	m.Intents.WithLabelValues(intent).Inc()
}

// Escalation counts an escalation outcome.
func (m *Metrics) Escalation(outcome string) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(outcome).Inc()
}

// SetQueueLength updates the queue gauge.
func (m *Metrics) SetQueueLength(n int) {
	if m == nil {
		return
	}
	m.QueueLength.Set(float64(n))
}
