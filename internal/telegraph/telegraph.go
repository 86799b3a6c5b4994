// Package telegraph posts escalation activity and digests to staff chat
// channels (Slack, Discord) and the event bus.
package telegraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/switchboard/internal/escalation"
	"github.com/zulandar/switchboard/internal/logging"
)

// Notifier delivers a formatted event to one destination.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Event is a staff-facing notification.
type Event struct {
	Title    string  // headline, e.g. "Maria Silva aguardando atendente"
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed with an event.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Multi fans an event out to every notifier. Failures are logged per
// notifier and the joined error is returned.
type Multi struct {
	notifiers []Notifier
	log       logrus.FieldLogger
}

// NewMulti creates a Multi. A nil logger discards.
func NewMulti(log logrus.FieldLogger, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, log: logging.OrDiscard(log)}
}

// Add registers another destination.
func (m *Multi) Add(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of destinations.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify implements Notifier.
func (m *Multi) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, evt); err != nil {
			m.log.WithError(err).WithField("title", evt.Title).Warn("telegraph: notify failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Escalations formats escalation records and forwards them to a Notifier.
// Records with no staff-facing format (requested, cancelled) are skipped.
type Escalations struct {
	n Notifier
}

// NewEscalations wraps n as an escalation.Notifier.
func NewEscalations(n Notifier) (*Escalations, error) {
	if n == nil {
		return nil, fmt.Errorf("telegraph: notifier is required")
	}
	return &Escalations{n: n}, nil
}

// Notify implements escalation.Notifier.
func (e *Escalations) Notify(ctx context.Context, rec escalation.Record) error {
	evt, ok := FormatRecord(rec)
	if !ok {
		return nil
	}
	if err := e.n.Notify(ctx, evt); err != nil {
		return fmt.Errorf("telegraph: %s %s: %w", rec.Status, rec.ConversationID, err)
	}
	return nil
}

var _ escalation.Notifier = (*Escalations)(nil)
