package intent

import (
	"strings"
	"time"
)

// explicitAgentPhrases are requests for a human that route straight to
// escalation, whatever else the message contains.
var explicitAgentPhrases = []string{
	"atendente", "humano", "pessoa", "falar com alguém",
	"operador", "assistente humano", "quero pessoa",
	"pessoa real", "contato humano", "falar com atendente",
	"preciso de um atendente", "quero falar com alguém",
	"pode me passar alguém", "transferir atendente",
	"alguém pode me ajudar", "preciso de ajuda humana",
	"atendimento humano", "não quero bot", "prefiro pessoa",
}

// Router decides whether a free-text message should bypass the bot.
type Router struct {
	classifier *Classifier
}

// NewRouter returns a router backed by c.
func NewRouter(c *Classifier) *Router {
	return &Router{classifier: c}
}

// WantsAgent reports whether text is an explicit request for a human agent.
func (r *Router) WantsAgent(text string) bool {
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return false
	}
	for _, p := range explicitAgentPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return r.classifier != nil && r.classifier.Classify(msg).Intent == AgentRequest
}

// BusinessHours is the window in which human agents are staffed. The bot
// itself answers around the clock.
type BusinessHours struct {
	Start    int // first open hour, inclusive
	End      int // closing hour, exclusive
	Weekdays []time.Weekday
}

// DefaultBusinessHours is 8h to 14h, Monday to Friday.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		Start:    8,
		End:      14,
		Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}
}

// Open reports whether t falls inside business hours.
func (b BusinessHours) Open(t time.Time) bool {
	day := false
	for _, d := range b.Weekdays {
		if t.Weekday() == d {
			day = true
			break
		}
	}
	h := t.Hour()
	return day && h >= b.Start && h < b.End
}
