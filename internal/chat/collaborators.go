package chat

import (
	"context"
	"time"
)

// IdentityDirectory looks up known customers.
type IdentityDirectory interface {
	// Search returns identities whose name, email or login match query,
	// best match first.
	Search(ctx context.Context, query string) ([]Identity, error)
	// GetByID returns nil, nil when no identity has the id.
	GetByID(ctx context.Context, id string) (*Identity, error)
}

// LogSink persists the conversation log. Failures are logged by the engine
// and never reach the customer.
type LogSink interface {
	StartConversation(ctx context.Context, conv Conversation) error
	AppendTurn(ctx context.Context, conversationID, speaker, text, intent string) error
	AppendStateChange(ctx context.Context, conversationID string, state State) error
	EndConversation(ctx context.Context, conversationID, reason string, at time.Time) error
}

// CustomerRecorder is implemented by sinks that also store who the
// conversation was identified as.
type CustomerRecorder interface {
	RecordCustomer(ctx context.Context, conversationID string, customer Identity) error
}

type discardSink struct{}

func (discardSink) StartConversation(context.Context, Conversation) error { return nil }
func (discardSink) AppendTurn(context.Context, string, string, string, string) error {
	return nil
}
func (discardSink) AppendStateChange(context.Context, string, State) error { return nil }
func (discardSink) EndConversation(context.Context, string, string, time.Time) error {
	return nil
}
