package discord

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/switchboard/internal/telegraph"
)

// --- Mock session ---

type sentMessage struct {
	channelID string
	data      *discordgo.MessageSend
}

type mockSession struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr func(call int) error
	calls   int
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.sendErr != nil {
		if err := m.sendErr(m.calls); err != nil {
			return nil, err
		}
	}
	m.sent = append(m.sent, sentMessage{channelID: channelID, data: data})
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", m.calls), ChannelID: channelID}, nil
}

func rateLimited() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: 429}}
}

func newTestNotifier(t *testing.T, sess *mockSession) *Notifier {
	t.Helper()
	n, err := New(Opts{ChannelID: "chan-support", Session: sess})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.baseBackoff = time.Millisecond
	n.maxBackoff = 5 * time.Millisecond
	return n
}

// --- New tests ---

func TestNew_RequiresBotToken(t *testing.T) {
	_, err := New(Opts{ChannelID: "c"})
	if err == nil || !strings.Contains(err.Error(), "bot token") {
		t.Errorf("err = %v, want bot token error", err)
	}
}

func TestNew_RequiresChannel(t *testing.T) {
	_, err := New(Opts{BotToken: "tok"})
	if err == nil || !strings.Contains(err.Error(), "channel") {
		t.Errorf("err = %v, want channel error", err)
	}
}

func TestNew_WithBotToken(t *testing.T) {
	n, err := New(Opts{BotToken: "test-token", ChannelID: "c"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n.sess == nil {
		t.Error("session should be created from the bot token")
	}
}

// --- Notify tests ---

func TestNotify_SendsEmbed(t *testing.T) {
	sess := &mockSession{}
	n := newTestNotifier(t, sess)

	evt := telegraph.Event{
		Title: "Maria aguardando atendente",
		Body:  "Última mensagem: boleto",
		Color: telegraph.ColorWarning,
		Fields: []telegraph.Field{
			{Name: "Prioridade", Value: "40", Short: true},
		},
	}
	if err := n.Notify(context.Background(), evt); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sess.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sess.sent))
	}
	got := sess.sent[0]
	if got.channelID != "chan-support" {
		t.Errorf("channel = %q", got.channelID)
	}
	if len(got.data.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(got.data.Embeds))
	}
	embed := got.data.Embeds[0]
	if embed.Title != evt.Title || embed.Description != evt.Body {
		t.Errorf("embed = %+v", embed)
	}
	if embed.Color != 0xff9800 {
		t.Errorf("color = %x, want ff9800", embed.Color)
	}
	if len(embed.Fields) != 1 || !embed.Fields[0].Inline {
		t.Errorf("fields = %+v", embed.Fields)
	}
}

func TestNotify_NonRateLimitError(t *testing.T) {
	sess := &mockSession{sendErr: func(int) error { return fmt.Errorf("missing access") }}
	n := newTestNotifier(t, sess)
	err := n.Notify(context.Background(), telegraph.Event{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing access") {
		t.Errorf("err = %v", err)
	}
	if sess.calls != 1 {
		t.Errorf("calls = %d, want 1", sess.calls)
	}
}

func TestNotify_RetriesOnRateLimit(t *testing.T) {
	sess := &mockSession{sendErr: func(call int) error {
		if call < 3 {
			return rateLimited()
		}
		return nil
	}}
	n := newTestNotifier(t, sess)
	if err := n.Notify(context.Background(), telegraph.Event{Title: "x"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sess.calls != 3 {
		t.Errorf("calls = %d, want 3", sess.calls)
	}
}

func TestNotify_ExhaustsRetries(t *testing.T) {
	sess := &mockSession{sendErr: func(int) error { return rateLimited() }}
	n := newTestNotifier(t, sess)
	if err := n.Notify(context.Background(), telegraph.Event{Title: "x"}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if sess.calls != maxRetries+1 {
		t.Errorf("calls = %d, want %d", sess.calls, maxRetries+1)
	}
}

func TestNotify_RespectsContext(t *testing.T) {
	sess := &mockSession{sendErr: func(int) error { return rateLimited() }}
	n := newTestNotifier(t, sess)
	n.baseBackoff = time.Second
	n.maxBackoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.Notify(ctx, telegraph.Event{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), context.Canceled.Error()) {
		t.Errorf("err = %v, want context canceled", err)
	}
}

// --- eventToEmbed / parseHexColor ---

func TestEventToEmbed_NoColor(t *testing.T) {
	embed := eventToEmbed(telegraph.Event{Title: "t"})
	if embed.Color != 0 {
		t.Errorf("color = %d, want 0", embed.Color)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"#36a64f", 0x36a64f},
		{"36a64f", 0x36a64f},
		{"#ffffff", 0xffffff},
		{"#000000", 0x000000},
		{"#FF0000", 0xff0000},
		{"#fff", 0xfff},
		{"", 0},
	}
	for _, tt := range tests {
		got := parseHexColor(tt.input)
		if got != tt.want {
			t.Errorf("parseHexColor(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
