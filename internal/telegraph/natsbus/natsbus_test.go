package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/switchboard/internal/escalation"
)

type published struct {
	subj string
	data []byte
}

type mockConn struct {
	msgs    []published
	err     error
	drained bool
}

func (m *mockConn) Publish(subj string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{subj: subj, data: data})
	return nil
}

func (m *mockConn) Drain() error {
	m.drained = true
	return nil
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Error("expected error for missing url")
	}
}

func TestNew_DefaultSubject(t *testing.T) {
	p, err := New(Opts{Conn: &mockConn{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Subject("queued"); got != "switchboard.escalations.queued" {
		t.Errorf("Subject = %q", got)
	}
}

func TestNotify_PublishesJSON(t *testing.T) {
	mc := &mockConn{}
	p, _ := New(Opts{Conn: mc, Subject: "sb.esc"})
	at := time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)

	rec := escalation.Record{
		Status:         escalation.StatusQueued,
		ConversationID: "c-1",
		CustomerName:   "Maria",
		Priority:       40,
		QueuePosition:  1,
		EstimatedWait:  escalation.EstimatedWait{Indeterminate: true},
		At:             at,
	}
	if err := p.Notify(context.Background(), rec); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(mc.msgs) != 1 {
		t.Fatalf("published = %d, want 1", len(mc.msgs))
	}
	if mc.msgs[0].subj != "sb.esc.queued" {
		t.Errorf("subject = %q", mc.msgs[0].subj)
	}

	var got map[string]any
	if err := json.Unmarshal(mc.msgs[0].data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["conversation_id"] != "c-1" || got["status"] != "queued" {
		t.Errorf("payload = %v", got)
	}
	wait, _ := got["estimated_wait"].(map[string]any)
	if wait["text"] != "Indeterminado" {
		t.Errorf("estimated_wait = %v", got["estimated_wait"])
	}
}

func TestNotify_PublishError(t *testing.T) {
	p, _ := New(Opts{Conn: &mockConn{err: errors.New("nats: connection closed")}})
	err := p.Notify(context.Background(), escalation.Record{Status: "assigned", ConversationID: "c-2"})
	if err == nil || !strings.Contains(err.Error(), "c-2") {
		t.Errorf("err = %v", err)
	}
}

func TestClose_Drains(t *testing.T) {
	mc := &mockConn{}
	p, _ := New(Opts{Conn: mc})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !mc.drained {
		t.Error("Close should drain the connection")
	}
}
