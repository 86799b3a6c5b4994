package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/escalation"
)

// handleCustomerWS serves GET /ws. Closing the socket leaves the
// conversations alive; the idle sweep expires them.
func (s *Server) handleCustomerWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Debug("gateway: customer upgrade failed")
		return
	}
	cl := &client{ws: ws}
	defer func() {
		s.hub.dropCustomer(cl)
		ws.Close()
	}()

	ctx := c.Request.Context()
	s.readLoop(ws, func(f Frame) {
		for _, out := range s.customerFrame(ctx, cl, f) {
			if err := cl.send(out); err != nil {
				s.log.WithError(err).Debug("gateway: customer write failed")
			}
		}
	})
}

func (s *Server) customerFrame(ctx context.Context, cl *client, f Frame) []Frame {
	switch f.Type {
	case TypePing:
		return []Frame{{Type: TypePong}}

	case TypeStart:
		out, err := s.start(ctx, f.ConversationID, chat.StartHint{IdentityID: f.IdentityID, DisplayName: f.Name})
		switch {
		case errors.Is(err, chat.ErrConflict):
			return []Frame{errorFrame(f.ConversationID, CodeConflict, err.Error())}
		case err != nil:
			return []Frame{s.internalError(f.ConversationID)}
		}
		s.hub.bindCustomer(out.ConversationID, cl)
		return []Frame{out}

	case TypeMessage:
		if f.ConversationID == "" {
			return []Frame{errorFrame("", CodeInvalidFrame, "conversation_id is required")}
		}
		s.hub.bindCustomer(f.ConversationID, cl)
		return s.message(ctx, f.ConversationID, f.Text)

	case TypeEnd:
		out, err := s.end(ctx, f.ConversationID, f.Resolved)
		if err != nil {
			return []Frame{s.sessionExpired(f.ConversationID)}
		}
		s.hub.unbindCustomer(f.ConversationID)
		return []Frame{out}
	}
	return []Frame{errorFrame(f.ConversationID, CodeInvalidFrame, "unknown frame type "+f.Type)}
}

// handleAgentWS serves GET /ws/agent?agent_id=. The agent is marked online
// and available while the console is connected.
func (s *Server) handleAgentWS(c *gin.Context) {
	if s.agents == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "agent console disabled"})
		return
	}
	agentID := c.Query("agent_id")
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent_id is required"})
		return
	}
	ctx := c.Request.Context()
	if _, err := s.agents.Get(ctx, agentID); err != nil {
		if errors.Is(err, escalation.ErrAgentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Debug("gateway: agent upgrade failed")
		return
	}
	cl := &client{ws: ws}
	log := s.log.WithField("agent_id", agentID)

	s.presence(ctx, log, agentID, true, true)
	s.hub.addAgent(agentID, cl)
	log.Info("gateway: agent connected")
	defer func() {
		if s.hub.removeAgent(agentID, cl) {
			s.presence(context.Background(), log, agentID, false, false)
		}
		ws.Close()
		log.Info("gateway: agent disconnected")
	}()

	s.readLoop(ws, func(f Frame) {
		if err := cl.send(s.agentFrame(ctx, log, agentID, f)); err != nil {
			log.WithError(err).Debug("gateway: agent write failed")
		}
	})
}

func (s *Server) presence(ctx context.Context, log logrus.FieldLogger, agentID string, online, available bool) {
	if err := s.agents.SetPresence(ctx, agentID, online, available); err != nil {
		log.WithError(err).Warn("gateway: set presence")
	}
}

func (s *Server) agentFrame(ctx context.Context, log logrus.FieldLogger, agentID string, f Frame) Frame {
	switch f.Type {
	case TypePing:
		return Frame{Type: TypePong}

	case TypePresence:
		available := true
		if f.Available != nil {
			available = *f.Available
		}
		s.presence(ctx, log, agentID, true, available)
		return Frame{Type: TypeAck, AgentID: agentID, Available: &available}

	case TypeAccept:
		err := s.accept(ctx, agentID, f.ConversationID)
		if errors.Is(err, chat.ErrNotEscalated) {
			return errorFrame(f.ConversationID, CodeConflict, err.Error())
		}
		if err != nil {
			return s.sessionExpired(f.ConversationID)
		}
		return Frame{Type: TypeAck, ConversationID: f.ConversationID, AgentID: agentID}

	case TypeRelease:
		if err := s.esc.ReleaseAgent(ctx, agentID, f.ConversationID); err != nil {
			log.WithError(err).Warn("gateway: release")
			return s.internalError(f.ConversationID)
		}
		return Frame{Type: TypeAck, ConversationID: f.ConversationID, AgentID: agentID}
	}
	return errorFrame(f.ConversationID, CodeInvalidFrame, "unknown frame type "+f.Type)
}

// readLoop decodes frames until the socket closes. A panic while handling
// one frame is logged and the loop keeps going.
func (s *Server) readLoop(ws *websocket.Conn, handle func(Frame)) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).Debug("gateway: websocket read")
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			handle(Frame{Type: "invalid"})
			continue
		}
		s.safely(f, handle)
	}
}

func (s *Server) safely(f Frame, handle func(Frame)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{"panic": r, "type": f.Type, "conversation_id": f.ConversationID}).
				Error("gateway: frame handler panicked")
		}
	}()
	handle(f)
}
