package telegraph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/escalation"
	"github.com/zulandar/switchboard/internal/logsink"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// highPriority marks queued requests that get the error color.
const highPriority = 100

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// FormatRecord picks the formatter for an escalation record's status.
func FormatRecord(rec escalation.Record) (Event, bool) {
	switch rec.Status {
	case escalation.StatusQueued:
		return FormatQueued(rec), true
	case escalation.StatusAssigned:
		return FormatAssigned(rec), true
	case escalation.StatusReleased:
		return FormatReleased(rec), true
	default:
		return Event{}, false
	}
}

func customerLabel(rec escalation.Record) string {
	name := rec.CustomerName
	if name == "" {
		name = rec.ConversationID
	}
	if rec.VIP {
		name += " (VIP)"
	}
	return name
}

// FormatQueued formats a conversation that is waiting for an agent.
func FormatQueued(rec escalation.Record) Event {
	severity := "warning"
	if rec.VIP || rec.Priority >= highPriority {
		severity = "error"
	}

	var body []string
	if rec.Context != nil {
		if rec.Context.LastMessage != "" {
			body = append(body, fmt.Sprintf("Última mensagem: %s", rec.Context.LastMessage))
		}
		if rec.Context.Technical {
			body = append(body, "Problema técnico")
		}
	}

	fields := []Field{
		{Name: "Conversa", Value: rec.ConversationID, Short: true},
		{Name: "Prioridade", Value: fmt.Sprintf("%d", rec.Priority), Short: true},
		{Name: "Posição", Value: fmt.Sprintf("%d", rec.QueuePosition), Short: true},
		{Name: "Espera estimada", Value: rec.EstimatedWait.String(), Short: true},
	}

	return Event{
		Title:    fmt.Sprintf("%s aguardando atendente", customerLabel(rec)),
		Body:     strings.Join(body, "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// FormatAssigned formats a conversation handed to an agent.
func FormatAssigned(rec escalation.Record) Event {
	agent := rec.AgentName
	if agent == "" {
		agent = rec.AgentID
	}
	return Event{
		Title:    fmt.Sprintf("%s atribuído a %s", customerLabel(rec), agent),
		Severity: "success",
		Color:    ColorSuccess,
		Fields: []Field{
			{Name: "Conversa", Value: rec.ConversationID, Short: true},
			{Name: "Atendente", Value: rec.AgentID, Short: true},
			{Name: "Prioridade", Value: fmt.Sprintf("%d", rec.Priority), Short: true},
		},
	}
}

// FormatReleased formats an agent finishing a conversation.
func FormatReleased(rec escalation.Record) Event {
	return Event{
		Title:    fmt.Sprintf("Atendente %s liberado", rec.AgentID),
		Body:     fmt.Sprintf("Conversa %s encerrada", rec.ConversationID),
		Severity: "info",
		Color:    ColorInfo,
		Fields: []Field{
			{Name: "Conversa", Value: rec.ConversationID, Short: true},
			{Name: "Atendente", Value: rec.AgentID, Short: true},
		},
	}
}

// FormatDigest formats a period summary of conversations.
func FormatDigest(s logsink.Summary, until time.Time) Event {
	var ended int64
	reasons := make([]string, 0, len(s.ByReason))
	for r, n := range s.ByReason {
		ended += n
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	var body []string
	body = append(body, fmt.Sprintf("**Período**: %s – %s",
		s.Since.Format("02/01 15:04"), until.Format("02/01 15:04")))
	body = append(body, fmt.Sprintf("**Conversas**: %d iniciadas, %d encerradas, %d com atendente",
		s.Started, ended, s.Escalated))
	for _, r := range reasons {
		label := r
		if label == "" {
			label = "sem motivo"
		}
		body = append(body, fmt.Sprintf("  %s: %d", label, s.ByReason[r]))
	}

	fields := []Field{
		{Name: "Iniciadas", Value: fmt.Sprintf("%d", s.Started), Short: true},
		{Name: "Encerradas", Value: fmt.Sprintf("%d", ended), Short: true},
		{Name: "Com atendente", Value: fmt.Sprintf("%d", s.Escalated), Short: true},
	}
	if s.Started > 0 {
		rate := float64(s.Escalated) / float64(s.Started) * 100
		fields = append(fields, Field{Name: "Taxa de escalonamento", Value: fmt.Sprintf("%.0f%%", rate), Short: true})
	}

	return Event{
		Title:    "Resumo do atendimento",
		Body:     strings.Join(body, "\n"),
		Severity: "info",
		Color:    ColorInfo,
		Fields:   fields,
	}
}
