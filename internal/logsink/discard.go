package logsink

import (
	"context"
	"time"

	"github.com/zulandar/switchboard/internal/chat"
)

// Discard drops every write. It backs demo mode, where nothing is persisted.
type Discard struct{}

func (Discard) StartConversation(context.Context, chat.Conversation) error { return nil }

func (Discard) AppendTurn(context.Context, string, string, string, string) error { return nil }

func (Discard) AppendStateChange(context.Context, string, chat.State) error { return nil }

func (Discard) EndConversation(context.Context, string, string, time.Time) error { return nil }
