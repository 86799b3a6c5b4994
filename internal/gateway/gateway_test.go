package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/escalation"
	"github.com/zulandar/switchboard/internal/identity"
	"github.com/zulandar/switchboard/internal/logsink"
	"github.com/zulandar/switchboard/internal/metrics"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var t0 = time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type fixture struct {
	db     *gorm.DB
	engine *chat.Engine
	esc    *escalation.Service
	agents *escalation.GormAgents
	srv    *Server
	h      http.Handler
	reg    *prometheus.Registry
	ids    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clk := &clock{now: t0}
	f := &fixture{db: gdb, reg: prometheus.NewRegistry()}
	m := metrics.New(f.reg)
	sink, err := logsink.NewGorm(gdb, clk.Now)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	f.engine, err = chat.NewEngine(chat.EngineOpts{
		Directory:  chat.NewDirectory(),
		Identities: identity.NewMemory([]chat.Identity{{ID: "1", Name: "Maria Silva", Email: "maria@exemplo.com"}}),
		Sink:       sink,
		Now:        clk.Now,
		Metrics:    m,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	f.agents, err = escalation.NewGormAgents(gdb, clk.Now)
	if err != nil {
		t.Fatalf("new agents: %v", err)
	}
	f.esc, err = escalation.New(escalation.Opts{Agents: f.agents, Now: clk.Now, Metrics: m})
	if err != nil {
		t.Fatalf("new escalation: %v", err)
	}
	f.srv, err = New(Opts{
		Engine:            f.engine,
		Escalation:        f.esc,
		Agents:            f.agents,
		History:           sink,
		Gatherer:          f.reg,
		QueuePollInterval: 10 * time.Millisecond,
		NewID: func() string {
			f.ids++
			return fmt.Sprintf("conv-%d", f.ids)
		},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	f.h = f.srv.Handler()
	return f
}

func (f *fixture) addAgent(t *testing.T, id, name string, online bool) {
	t.Helper()
	a := models.Agent{ID: id, Name: name, Online: online, Available: online, MaxConcurrent: 2, Tier: models.TierSenior}
	if err := f.db.Create(&a).Error; err != nil {
		t.Fatalf("insert agent: %v", err)
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// --- New ---

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{}); err == nil || !strings.Contains(err.Error(), "engine is required") {
		t.Errorf("err = %v, want engine error", err)
	}
	f := newFixture(t)
	if _, err := New(Opts{Engine: f.engine}); err == nil || !strings.Contains(err.Error(), "escalation service is required") {
		t.Errorf("err = %v, want escalation error", err)
	}
}

func TestOriginChecker(t *testing.T) {
	open := originChecker(nil)
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://elsewhere.example")
	if !open(r) {
		t.Error("empty allow list should accept any origin")
	}

	only := originChecker([]string{"https://loja.example/"})
	if only(r) {
		t.Error("foreign origin accepted")
	}
	r.Header.Set("Origin", "https://loja.example")
	if !only(r) {
		t.Error("allowed origin rejected")
	}
}

// --- REST ---

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestStart_AsksForName(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/conversations", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	out := decode[Frame](t, w)
	if out.ConversationID != "conv-1" || out.State != string(chat.AwaitingName) || out.Text == "" {
		t.Errorf("frame = %+v", out)
	}
}

func TestStart_WithIdentityAndConflict(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1","identity_id":"1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	out := decode[Frame](t, w)
	if out.State != string(chat.MainMenu) || !strings.Contains(out.Text, "Maria Silva") {
		t.Errorf("frame = %+v", out)
	}

	w = f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate start status = %d, want 409", w.Code)
	}
}

func TestMessage_Validation(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1"}`)

	w := f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank status = %d, want 400", w.Code)
	}

	long := strings.Repeat("á", DefaultMaxMessageRunes+1)
	w = f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"`+long+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized status = %d, want 400", w.Code)
	}
	out := decode[Frame](t, w)
	if out.Code != CodeInvalidMessage || !strings.Contains(out.Text, "1000") {
		t.Errorf("frame = %+v", out)
	}

	exact := strings.Repeat("á", DefaultMaxMessageRunes)
	w = f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"`+exact+`"}`)
	if w.Code != http.StatusOK {
		t.Errorf("limit-sized status = %d, want 200", w.Code)
	}
}

func TestMessage_UnknownConversation(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/conversations/nope/messages", `{"text":"oi"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	out := decode[Frame](t, w)
	if out.Code != CodeSessionExpired || !strings.Contains(out.Text, "expirou") {
		t.Errorf("frame = %+v", out)
	}
}

func TestMessage_EscapesMarkup(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1","identity_id":"1"}`)
	w := f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"<b>oi</b>"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	conv, _ := f.engine.GetState("c1")
	if conv.LastMessage != "&lt;b&gt;oi&lt;/b&gt;" {
		t.Errorf("last message = %q", conv.LastMessage)
	}
}

func TestMessage_EscalationQueues(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1","identity_id":"1"}`)

	w := f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"5"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[messageResponse](t, w)
	if len(resp.Frames) != 2 {
		t.Fatalf("frames = %+v", resp.Frames)
	}
	esc := resp.Frames[1]
	if esc.Type != TypeEscalation || esc.Escalation == nil || esc.Escalation.Success {
		t.Fatalf("escalation frame = %+v", esc)
	}
	if esc.Escalation.QueuePosition != 1 || !strings.Contains(esc.Text, "#1") {
		t.Errorf("escalation frame = %+v", esc)
	}
	if f.esc.Queue().Len() != 1 {
		t.Errorf("queue len = %d, want 1", f.esc.Queue().Len())
	}

	// Further turns while waiting do not queue again.
	w = f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"alguém aí?"}`)
	resp = decode[messageResponse](t, w)
	if len(resp.Frames) != 1 {
		t.Errorf("frames while escalated = %+v", resp.Frames)
	}
}

func TestMessage_EscalationAssigns(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "a1", "Paula", true)
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1","identity_id":"1"}`)

	w := f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"5"}`)
	resp := decode[messageResponse](t, w)
	if len(resp.Frames) != 2 {
		t.Fatalf("frames = %+v", resp.Frames)
	}
	esc := resp.Frames[1]
	if !esc.Escalation.Success || esc.AgentID != "a1" || !strings.Contains(esc.Text, "Paula") {
		t.Errorf("escalation frame = %+v", esc)
	}
}

func TestEscalate(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1","identity_id":"1"}`)

	w := f.do(t, http.MethodPost, "/api/conversations/c1/escalate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[messageResponse](t, w)
	if len(resp.Frames) != 2 || resp.Frames[0].State != string(chat.Escalated) || resp.Frames[1].Type != TypeEscalation {
		t.Errorf("frames = %+v", resp.Frames)
	}

	if w := f.do(t, http.MethodPost, "/api/conversations/c1/escalate", ""); w.Code != http.StatusConflict {
		t.Errorf("second escalate status = %d, want 409", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/conversations/nope/escalate", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown escalate status = %d, want 404", w.Code)
	}
}

func TestGetAndEnd(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1","identity_id":"1"}`)
	f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"5"}`)

	w := f.do(t, http.MethodGet, "/api/conversations/c1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	conv := decode[chat.Conversation](t, w)
	if conv.State != chat.Escalated || conv.Customer == nil || conv.Customer.ID != "1" {
		t.Errorf("conversation = %+v", conv)
	}

	w = f.do(t, http.MethodDelete, "/api/conversations/c1?resolved=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("end status = %d", w.Code)
	}
	out := decode[Frame](t, w)
	if out.Type != TypeEnded || out.State != string(chat.Terminal) {
		t.Errorf("frame = %+v", out)
	}
	if f.esc.Queue().Len() != 0 {
		t.Errorf("queue len = %d, want 0 after end", f.esc.Queue().Len())
	}
	if w := f.do(t, http.MethodGet, "/api/conversations/c1", ""); w.Code != http.StatusNotFound {
		t.Errorf("get after end = %d, want 404", w.Code)
	}
	if w := f.do(t, http.MethodDelete, "/api/conversations/c1", ""); w.Code != http.StatusNotFound {
		t.Errorf("second end = %d, want 404", w.Code)
	}
}

func TestHistoryRoutes(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1","identity_id":"1"}`)
	f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"1"}`)

	w := f.do(t, http.MethodGet, "/api/conversations/c1/messages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("messages status = %d: %s", w.Code, w.Body.String())
	}
	var msgs struct {
		ConversationID string           `json:"conversation_id"`
		Messages       []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msgs.ConversationID != "c1" || len(msgs.Messages) < 3 {
		t.Fatalf("messages = %+v", msgs)
	}
	var sawCustomer bool
	for _, m := range msgs.Messages {
		if m.ConversationID != "c1" {
			t.Errorf("message from %q", m.ConversationID)
		}
		if m.Body == "1" {
			sawCustomer = true
		}
	}
	if !sawCustomer {
		t.Errorf("customer turn missing from %+v", msgs.Messages)
	}

	w = f.do(t, http.MethodGet, "/api/conversations/c1/messages?limit=1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil || len(msgs.Messages) != 1 {
		t.Errorf("limit=1 -> %d messages, %v", len(msgs.Messages), err)
	}
	if w := f.do(t, http.MethodGet, "/api/conversations/c1/messages?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/conversations/nope/messages", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"messages":[]`) {
		t.Errorf("unknown conversation = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/customers/1/conversations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("conversations status = %d", w.Code)
	}
	var convs struct {
		CustomerID    string                `json:"customer_id"`
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &convs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(convs.Conversations) != 1 || convs.Conversations[0].ID != "c1" || convs.Conversations[0].CustomerName != "Maria Silva" {
		t.Errorf("conversations = %+v", convs)
	}
	if w := f.do(t, http.MethodGet, "/api/customers/2/conversations", ""); !strings.Contains(w.Body.String(), `"conversations":[]`) {
		t.Errorf("other customer = %s", w.Body.String())
	}
}

func TestHistoryRoutes_Disabled(t *testing.T) {
	f := newFixture(t)
	srv, err := New(Opts{Engine: f.engine, Escalation: f.esc, Agents: f.agents, Gatherer: f.reg})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	for _, path := range []string{"/api/conversations/c1/messages", "/api/customers/1/conversations"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotImplemented {
			t.Errorf("GET %s = %d, want 501", path, w.Code)
		}
	}
}

func TestQueueAndRelease(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "a1", "Paula", true)
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1","identity_id":"1"}`)
	f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"5"}`)

	w := f.do(t, http.MethodGet, "/api/queue", "")
	if w.Code != http.StatusOK {
		t.Fatalf("queue status = %d", w.Code)
	}
	st := decode[escalation.Status](t, w)
	if st.Length != 0 || st.AgentsUnderCapacity != 1 {
		t.Errorf("status = %+v", st)
	}

	if w := f.do(t, http.MethodPost, "/api/agents/a1/release", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("release without conversation = %d, want 400", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/agents/a1/release", `{"conversation_id":"c1"}`); w.Code != http.StatusNoContent {
		t.Fatalf("release status = %d, body %s", w.Code, w.Body.String())
	}
	active, err := f.agents.ActiveAssignment(context.Background(), "c1")
	if err != nil || active != nil {
		t.Errorf("active assignment = %+v, %v", active, err)
	}
}

func TestQueueEvents(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1","identity_id":"1"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/queue/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	go func() {
		time.Sleep(50 * time.Millisecond)
		f.do(t, http.MethodPost, "/api/conversations/c1/messages", `{"text":"5"}`)
	}()
	f.h.ServeHTTP(w, req)

	body := w.Body.String()
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if n := strings.Count(body, "event: queue"); n != 2 {
		t.Errorf("queue events = %d, want 2; body:\n%s", n, body)
	}
	if !strings.Contains(body, `"conversation_id":"c1"`) {
		t.Errorf("body missing queued conversation:\n%s", body)
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1"}`)
	w := f.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "switchboard_conversations_started_total 1") {
		t.Errorf("metrics body missing started counter:\n%s", w.Body.String())
	}
}

// --- websockets ---

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func roundTrip(t *testing.T, ws *websocket.Conn, in Frame) Frame {
	t.Helper()
	if err := ws.WriteJSON(in); err != nil {
		t.Fatalf("write %+v: %v", in, err)
	}
	return read(t, ws)
}

func read(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var out Frame
	if err := ws.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCustomerWS(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.h)
	defer ts.Close()
	ws := dial(t, ts, "/ws")

	if out := roundTrip(t, ws, Frame{Type: TypePing}); out.Type != TypePong {
		t.Errorf("ping -> %+v", out)
	}

	out := roundTrip(t, ws, Frame{Type: TypeStart, IdentityID: "1"})
	if out.Type != TypeReply || out.ConversationID != "conv-1" || out.State != string(chat.MainMenu) {
		t.Fatalf("start -> %+v", out)
	}
	id := out.ConversationID

	out = roundTrip(t, ws, Frame{Type: TypeMessage, ConversationID: id, Text: ""})
	if out.Type != TypeError || out.Code != CodeInvalidMessage {
		t.Errorf("empty message -> %+v", out)
	}
	out = roundTrip(t, ws, Frame{Type: TypeMessage, ConversationID: "gone", Text: "oi"})
	if out.Code != CodeSessionExpired {
		t.Errorf("unknown conversation -> %+v", out)
	}
	out = roundTrip(t, ws, Frame{Type: "dance"})
	if out.Code != CodeInvalidFrame {
		t.Errorf("unknown type -> %+v", out)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out := read(t, ws); out.Code != CodeInvalidFrame {
		t.Errorf("malformed frame -> %+v", out)
	}

	out = roundTrip(t, ws, Frame{Type: TypeMessage, ConversationID: id, Text: "5"})
	if out.Type != TypeReply || out.State != string(chat.Escalated) {
		t.Fatalf("escalating message -> %+v", out)
	}
	if out := read(t, ws); out.Type != TypeEscalation || out.Escalation == nil {
		t.Errorf("expected escalation frame, got %+v", out)
	}

	// Async delivery reaches the bound socket.
	if !f.srv.Hub().Deliver(id, TypeEnded, "tchau") {
		t.Fatal("Deliver to connected customer returned false")
	}
	if out := read(t, ws); out.Type != TypeEnded || out.Text != "tchau" {
		t.Errorf("delivered -> %+v", out)
	}

	out = roundTrip(t, ws, Frame{Type: TypeEnd, ConversationID: id, Resolved: true})
	if out.Type != TypeEnded {
		t.Errorf("end -> %+v", out)
	}
	if f.esc.Queue().Len() != 0 {
		t.Errorf("queue len = %d after end", f.esc.Queue().Len())
	}
	if f.srv.Hub().Deliver(id, TypeReply, "x") {
		t.Error("ended conversation still bound")
	}
}

func TestCustomerWS_CloseKeepsConversation(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.h)
	defer ts.Close()
	ws := dial(t, ts, "/ws")

	out := roundTrip(t, ws, Frame{Type: TypeStart, ConversationID: "c9"})
	ws.Close()

	waitFor(t, "customer unbind", func() bool { return f.srv.Hub().Customers() == 0 })
	if _, ok := f.engine.GetState(out.ConversationID); !ok {
		t.Error("closing the socket removed the conversation")
	}
}

func TestAgentWS_Rejects(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/ws/agent", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing agent_id = %d, want 400", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/ws/agent?agent_id=ghost", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown agent = %d, want 404", w.Code)
	}
}

func TestAgentWS_AcceptBeforeEscalation(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "a1", "Paula", false)
	ts := httptest.NewServer(f.h)
	defer ts.Close()
	f.do(t, http.MethodPost, "/api/conversations", `{"conversation_id":"c1","identity_id":"1"}`)

	agent := dial(t, ts, "/ws/agent?agent_id=a1")
	if out := roundTrip(t, agent, Frame{Type: TypeAccept, ConversationID: "c1"}); out.Type != TypeError || out.Code != CodeConflict {
		t.Errorf("accept in MAIN_MENU -> %+v", out)
	}
	if conv, ok := f.engine.GetState("c1"); !ok || conv.State != chat.MainMenu {
		t.Errorf("conversation after rejected accept = %+v, %v", conv, ok)
	}
}

func TestAgentWS_Lifecycle(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "a1", "Paula", false)
	ts := httptest.NewServer(f.h)
	defer ts.Close()

	agent := dial(t, ts, "/ws/agent?agent_id=a1")
	waitFor(t, "agent registration", func() bool { return f.srv.Hub().Agents() == 1 })
	a, err := f.agents.Get(context.Background(), "a1")
	if err != nil || !a.Online || !a.Available {
		t.Fatalf("agent after connect = %+v, %v", a, err)
	}

	off := false
	if out := roundTrip(t, agent, Frame{Type: TypePresence, Available: &off}); out.Type != TypeAck {
		t.Errorf("presence -> %+v", out)
	}
	a, _ = f.agents.Get(context.Background(), "a1")
	if !a.Online || a.Available {
		t.Errorf("agent after presence = %+v", a)
	}
	on := true
	roundTrip(t, agent, Frame{Type: TypePresence, Available: &on})

	customer := dial(t, ts, "/ws")
	start := roundTrip(t, customer, Frame{Type: TypeStart, ConversationID: "c1", IdentityID: "1"})
	roundTrip(t, customer, Frame{Type: TypeMessage, ConversationID: start.ConversationID, Text: "5"})
	if out := read(t, customer); out.Type != TypeEscalation || !out.Escalation.Success {
		t.Fatalf("customer escalation -> %+v", out)
	}

	// requested, then assigned
	if out := read(t, agent); out.Type != TypeEscalation || out.Record.Status != escalation.StatusRequested {
		t.Errorf("agent first broadcast = %+v", out)
	}
	if out := read(t, agent); out.Record == nil || out.Record.Status != escalation.StatusAssigned || out.AgentID != "a1" {
		t.Errorf("agent second broadcast = %+v", out)
	}

	if out := roundTrip(t, agent, Frame{Type: TypeAccept, ConversationID: "c1"}); out.Type != TypeAck {
		t.Errorf("accept -> %+v", out)
	}
	if out := read(t, customer); out.Type != TypeReply || !strings.Contains(out.Text, "Paula") {
		t.Errorf("customer after accept -> %+v", out)
	}
	if _, ok := f.engine.GetState("c1"); ok {
		t.Error("accepted conversation still in the directory")
	}
	if out := roundTrip(t, agent, Frame{Type: TypeAccept, ConversationID: "c1"}); out.Code != CodeSessionExpired {
		t.Errorf("second accept -> %+v", out)
	}

	// The released broadcast is written before the ack.
	first := roundTrip(t, agent, Frame{Type: TypeRelease, ConversationID: "c1"})
	second := read(t, agent)
	if first.Record == nil || first.Record.Status != escalation.StatusReleased {
		t.Errorf("release broadcast = %+v", first)
	}
	if second.Type != TypeAck {
		t.Errorf("release -> %+v", second)
	}

	agent.Close()
	waitFor(t, "agent offline", func() bool {
		a, err := f.agents.Get(context.Background(), "a1")
		return err == nil && !a.Online
	})
}
