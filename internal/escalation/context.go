// Package escalation hands conversations to human agents: it assigns an
// available agent right away or queues the conversation by priority.
package escalation

import (
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/intent"
	"github.com/zulandar/switchboard/internal/models"
)

// RecentMessages is how many logged turns travel with an escalation.
const RecentMessages = 10

var urgencyKeywords = []string{"urgente", "emergência", "emergencia", "imediatamente", "agora"}

// Line is one logged turn shown to the agent.
type Line struct {
	Sender string    `json:"sender"`
	Body   string    `json:"body"`
	At     time.Time `json:"at"`
}

// Context is the agent-facing summary of a conversation at escalation time.
type Context struct {
	ConversationID string   `json:"conversation_id"`
	CustomerID     string   `json:"customer_id,omitempty"`
	CustomerName   string   `json:"customer_name"`
	VIP            bool     `json:"vip"`
	Attempts       int      `json:"attempts"`
	MinutesWaiting int      `json:"minutes_waiting"`
	Intents        []string `json:"intents,omitempty"`
	Technical      bool     `json:"technical"`
	LastMessage    string   `json:"last_message,omitempty"`
	Recent         []Line   `json:"recent,omitempty"`
}

// BuildContext summarizes a conversation snapshot and its recent log for
// the agent picking it up.
func BuildContext(conv chat.Conversation, recent []models.Message, now time.Time) Context {
	c := Context{
		ConversationID: conv.ID,
		CustomerName:   conv.DisplayName(),
		Attempts:       conv.AttemptCount,
		Intents:        append([]string(nil), conv.Intents...),
		LastMessage:    conv.LastMessage,
	}
	if conv.Customer != nil {
		c.CustomerID = conv.Customer.ID
		c.VIP = conv.Customer.VIP
	}
	if !conv.StartedAt.IsZero() && now.After(conv.StartedAt) {
		c.MinutesWaiting = int(now.Sub(conv.StartedAt) / time.Minute)
	}

	c.Technical = conv.Topic == chat.TopicTechnical || conv.SelectedOption == chat.OptionTechnical
	for _, in := range conv.Intents {
		if in == intent.TechnicalProblem {
			c.Technical = true
		}
	}

	if len(recent) > RecentMessages {
		recent = recent[len(recent)-RecentMessages:]
	}
	for _, m := range recent {
		c.Recent = append(c.Recent, Line{Sender: m.Sender, Body: m.Body, At: m.CreatedAt})
	}
	return c
}

// UrgencyCount counts the distinct urgency keywords in text.
func UrgencyCount(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// Priority scores a request; higher is served first.
func Priority(c Context) int {
	p := 2*c.MinutesWaiting + 10*c.Attempts + 30*UrgencyCount(c.LastMessage)
	if c.VIP {
		p += 100
	}
	if c.Technical {
		p += 50
	}
	return p
}
