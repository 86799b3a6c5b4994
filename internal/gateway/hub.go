package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/switchboard/internal/escalation"
)

const writeWait = 10 * time.Second

// client is one websocket. gorilla/websocket allows a single concurrent
// writer, so every write goes through send.
type client struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *client) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(f)
}

// Hub tracks live connections: customers by conversation id and agent
// consoles by agent id.
type Hub struct {
	mu        sync.RWMutex
	customers map[string]*client
	agents    map[string]*client
	log       logrus.FieldLogger
}

func newHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		customers: make(map[string]*client),
		agents:    make(map[string]*client),
		log:       log,
	}
}

func (h *Hub) bindCustomer(conversationID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.customers[conversationID] = c
}

func (h *Hub) unbindCustomer(conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.customers, conversationID)
}

// dropCustomer forgets every conversation bound to c. The conversations
// themselves stay live until the idle sweep.
func (h *Hub) dropCustomer(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cc := range h.customers {
		if cc == c {
			delete(h.customers, id)
		}
	}
}

func (h *Hub) addAgent(agentID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.agents[agentID] = c
}

// removeAgent reports whether c was still the agent's current console.
func (h *Hub) removeAgent(agentID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.agents[agentID] != c {
		return false
	}
	delete(h.agents, agentID)
	return true
}

// Deliver sends an unsolicited frame to the customer of a conversation.
func (h *Hub) Deliver(conversationID, kind, text string) bool {
	h.mu.RLock()
	c, ok := h.customers[conversationID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if err := c.send(Frame{Type: kind, ConversationID: conversationID, Text: text}); err != nil {
		h.log.WithError(err).WithField("conversation_id", conversationID).Debug("gateway: deliver failed")
		return false
	}
	return true
}

// broadcastAgents sends f to every connected console and returns how many
// received it.
func (h *Hub) broadcastAgents(f Frame) int {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.agents))
	for _, c := range h.agents {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if err := c.send(f); err == nil {
			n++
		}
	}
	return n
}

// Notify implements escalation.Notifier by broadcasting the record to
// agent consoles.
func (h *Hub) Notify(ctx context.Context, rec escalation.Record) error {
	h.broadcastAgents(Frame{Type: TypeEscalation, ConversationID: rec.ConversationID, AgentID: rec.AgentID, Record: &rec})
	return nil
}

// Customers returns the number of conversations with a live connection.
func (h *Hub) Customers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.customers)
}

// Agents returns the number of connected agent consoles.
func (h *Hub) Agents() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents)
}

var _ escalation.Notifier = (*Hub)(nil)
