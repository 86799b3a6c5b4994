package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/escalation"
)

// handleQueueEvents streams queue status over SSE. A "queue" event is sent
// on connect and whenever the queued conversations change.
func (s *Server) handleQueueEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	st := s.esc.Status(ctx)
	last := queueKey(st)
	writeSSE(c.Writer, "queue", st)
	c.Writer.Flush()

	ticker := time.NewTicker(s.poll)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case <-ticker.C:
			st := s.esc.Status(ctx)
			key := queueKey(st)
			if key == last {
				continue
			}
			last = key
			writeSSE(c.Writer, "queue", st)
			c.Writer.Flush()
		}
	}
}

// queueKey identifies the queue contents in order.
func queueKey(st escalation.Status) string {
	key := fmt.Sprintf("%d/%d", st.Length, st.AgentsUnderCapacity)
	for _, q := range st.Queued {
		key += "|" + q.ConversationID
	}
	return key
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
