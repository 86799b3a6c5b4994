// Package natsbus publishes escalation records as JSON on NATS so other
// services (CRM sync, wallboards) can follow the queue.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/zulandar/switchboard/internal/escalation"
)

// DefaultSubject prefixes every published subject.
const DefaultSubject = "switchboard.escalations"

// conn abstracts the nats.Conn methods we use, enabling test mocks.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Publisher sends each record to "<subject>.<status>".
type Publisher struct {
	nc      conn
	subject string
}

// Opts holds parameters for creating a Publisher.
type Opts struct {
	URL     string // nats://host:4222
	Subject string // defaults to DefaultSubject
	// For testing: inject a mock connection instead of dialing URL.
	Conn conn
}

// New connects to NATS and returns a Publisher. The connection retries in
// the background when the server is not up yet.
func New(opts Opts) (*Publisher, error) {
	if opts.Conn == nil && opts.URL == "" {
		return nil, fmt.Errorf("natsbus: url is required")
	}
	subject := opts.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	nc := opts.Conn
	if nc == nil {
		c, err := nats.Connect(opts.URL,
			nats.Name("switchboard"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(10),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("natsbus: connect %s: %w", opts.URL, err)
		}
		nc = c
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

// Subject returns the subject a record with the given status goes to.
func (p *Publisher) Subject(status string) string {
	return p.subject + "." + status
}

// Notify implements escalation.Notifier.
func (p *Publisher) Notify(ctx context.Context, rec escalation.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("natsbus: marshal %s: %w", rec.ConversationID, err)
	}
	if err := p.nc.Publish(p.Subject(rec.Status), data); err != nil {
		return fmt.Errorf("natsbus: publish %s: %w", rec.ConversationID, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}

var _ escalation.Notifier = (*Publisher)(nil)
