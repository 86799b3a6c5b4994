package escalation

import (
	"encoding/json"
	"fmt"
)

// EstimatedWait is a queue wait estimate in whole minutes.
type EstimatedWait struct {
	Minutes       int  `json:"minutes"`
	Indeterminate bool `json:"indeterminate"`
}

// EstimateWait computes ceil(queueLen × avgMinutes / agents). With no agent
// under capacity the wait is indeterminate.
func EstimateWait(queueLen, avgMinutes, agents int) EstimatedWait {
	if agents <= 0 {
		return EstimatedWait{Indeterminate: true}
	}
	total := queueLen * avgMinutes
	return EstimatedWait{Minutes: (total + agents - 1) / agents}
}

// String renders the estimate the way customers see it.
func (w EstimatedWait) String() string {
	switch {
	case w.Indeterminate:
		return "Indeterminado"
	case w.Minutes <= 1:
		return "menos de 1 minuto"
	default:
		return fmt.Sprintf("%d minutos", w.Minutes)
	}
}

// MarshalJSON adds the rendered text next to the raw fields.
func (w EstimatedWait) MarshalJSON() ([]byte, error) {
	type raw EstimatedWait
	return json.Marshal(struct {
		raw
		Text string `json:"text"`
	}{raw(w), w.String()})
}
