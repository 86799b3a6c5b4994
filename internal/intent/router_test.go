package intent

import (
	"testing"
	"time"
)

func TestRouter_WantsAgent(t *testing.T) {
	r := NewRouter(NewClassifier())

	tests := []struct {
		text string
		want bool
	}{
		{"quero falar com atendente", true},
		{"Preciso de ajuda humana", true},
		{"não quero bot", true},
		{"me passa um OPERADOR", true},
		{"meu pedido atrasou", false},
		{"", false},
		{"obrigado", false},
	}
	for _, tt := range tests {
		if got := r.WantsAgent(tt.text); got != tt.want {
			t.Errorf("WantsAgent(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestRouter_WantsAgentFromLearnedPattern(t *testing.T) {
	c := NewClassifier()
	c.AddPattern("supervisor", []string{"supervisor"}, AgentRequest, 10)
	r := NewRouter(c)

	if !r.WantsAgent("chama o supervisor") {
		t.Error("WantsAgent = false for registered agent-request keyword")
	}
}

func TestBusinessHours_Open(t *testing.T) {
	b := DefaultBusinessHours()

	// 2026-10-12 is a Monday.
	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"monday 8h", time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC), true},
		{"monday 13:59", time.Date(2026, 10, 12, 13, 59, 0, 0, time.UTC), true},
		{"monday 14h", time.Date(2026, 10, 12, 14, 0, 0, 0, time.UTC), false},
		{"monday 7:59", time.Date(2026, 10, 12, 7, 59, 0, 0, time.UTC), false},
		{"friday 10h", time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC), true},
		{"saturday 10h", time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC), false},
		{"sunday 10h", time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Open(tt.t); got != tt.want {
				t.Errorf("Open(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}
