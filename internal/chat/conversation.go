// Package chat implements the conversational intake flow: a per-conversation
// state machine and the directory holding live conversations.
package chat

import "time"

// State is a step of the intake flow.
type State string

const (
	AwaitingName     State = "AWAITING_NAME"
	Disambiguating   State = "DISAMBIGUATING"
	MainMenu         State = "MAIN_MENU"
	ProcessingOption State = "PROCESSING_OPTION"
	AwaitingDetails  State = "AWAITING_DETAILS"
	Escalated        State = "ESCALATED"
	Terminal         State = "TERMINAL"
	TimedOut         State = "TIMED_OUT"
)

// IsTerminal reports whether the bot no longer drives the conversation.
func (s State) IsTerminal() bool {
	switch s {
	case Escalated, Terminal, TimedOut:
		return true
	}
	return false
}

// Menu options.
const (
	OptionTechnical = 1
	OptionOrder     = 2
	OptionProduct   = 3
	OptionAccount   = 4
	OptionAgent     = 5
	OptionOther     = 6

	MenuSize = 6
)

// Topic is the subject being collected while AWAITING_DETAILS.
type Topic string

const (
	TopicTechnical Topic = "problema"
	TopicOrder     Topic = "pedido"
	TopicProduct   Topic = "produto"
	TopicOther     Topic = "outros"
)

// Identity is a customer record returned by the identity directory.
// Synthetic identities carry only the name typed by an unknown customer.
type Identity struct {
	ID           string     `json:"id,omitempty"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Login        string     `json:"login,omitempty"`
	VIP          bool       `json:"vip,omitempty"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	Synthetic    bool       `json:"synthetic,omitempty"`
}

// Conversation is the in-memory state of one support session.
type Conversation struct {
	ID                  string     `json:"id"`
	State               State      `json:"state"`
	Customer            *Identity  `json:"customer,omitempty"`
	Candidates          []Identity `json:"candidates,omitempty"`
	SelectedOption      int        `json:"selected_option,omitempty"`
	Topic               Topic      `json:"topic,omitempty"`
	AttemptCount        int        `json:"attempt_count"`
	StartedAt           time.Time  `json:"started_at"`
	LastActivityAt      time.Time  `json:"last_activity_at"`
	EscalationRequested bool       `json:"escalation_requested"`
	Intents             []string   `json:"intents,omitempty"`
	LastMessage         string     `json:"last_message,omitempty"`
	IdleWarned          bool       `json:"idle_warned,omitempty"`
}

// DisplayName returns the bound customer's name, or "" while unidentified.
func (c *Conversation) DisplayName() string {
	if c.Customer == nil {
		return ""
	}
	return c.Customer.Name
}

// touch records customer activity and re-arms the idle warning.
func (c *Conversation) touch(now time.Time) {
	c.LastActivityAt = now
	c.IdleWarned = false
}

// IdleFor reports whether the conversation has been silent longer than d.
func (c *Conversation) IdleFor(now time.Time, d time.Duration) bool {
	return now.Sub(c.LastActivityAt) > d
}

func (c *Conversation) clone() *Conversation {
	cp := *c
	if c.Customer != nil {
		cust := *c.Customer
		cp.Customer = &cust
	}
	if c.Candidates != nil {
		cp.Candidates = append([]Identity(nil), c.Candidates...)
	}
	if c.Intents != nil {
		cp.Intents = append([]string(nil), c.Intents...)
	}
	return &cp
}

func (c *Conversation) noteIntent(label string) {
	for _, seen := range c.Intents {
		if seen == label {
			return
		}
	}
	c.Intents = append(c.Intents, label)
}
