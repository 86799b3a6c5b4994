package gateway

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zulandar/switchboard/internal/catalog"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/escalation"
	"github.com/zulandar/switchboard/internal/logging"
	"github.com/zulandar/switchboard/internal/models"
)

// The flows below are shared by the websocket and REST transports. Each
// returns the frames to send back in order.

// clean rejects empty and oversized text and escapes markup.
func (s *Server) clean(text string) (string, bool) {
	if strings.TrimSpace(text) == "" || utf8.RuneCountInString(text) > s.maxRunes {
		return "", false
	}
	return s.escaper.Replace(text), true
}

func (s *Server) invalidMessage(conversationID string) Frame {
	text := s.engine.Catalog().MustRender(catalog.InvalidMessage, catalog.Params{"limite": strconv.Itoa(s.maxRunes)})
	return errorFrame(conversationID, CodeInvalidMessage, text)
}

func (s *Server) sessionExpired(conversationID string) Frame {
	return errorFrame(conversationID, CodeSessionExpired, s.engine.Catalog().MustRender(catalog.SessionExpired, nil))
}

func (s *Server) internalError(conversationID string) Frame {
	return errorFrame(conversationID, CodeInternal, s.engine.Catalog().MustRender(catalog.GenericError, nil))
}

func (s *Server) state(conversationID string) string {
	conv, ok := s.engine.GetState(conversationID)
	if !ok {
		return ""
	}
	return string(conv.State)
}

// start opens a conversation. An empty id gets a fresh uuid.
func (s *Server) start(ctx context.Context, id string, hint chat.StartHint) (Frame, error) {
	if id == "" {
		id = s.newID()
	}
	reply, err := s.engine.Start(ctx, id, hint)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: TypeReply, ConversationID: id, Text: reply, State: s.state(id)}, nil
}

// message runs one customer turn. Only the turn that moved the conversation
// into ESCALATED requests an agent.
func (s *Server) message(ctx context.Context, id, raw string) []Frame {
	text, ok := s.clean(raw)
	if !ok {
		return []Frame{s.invalidMessage(id)}
	}

	turn, err := s.engine.ProcessTurn(ctx, id, text)
	if errors.Is(err, chat.ErrNotFound) {
		return []Frame{s.sessionExpired(id)}
	}
	if err != nil {
		logging.Op(s.log, id, "message").WithError(err).Error("gateway: process message")
		return []Frame{s.internalError(id)}
	}

	frames := []Frame{{Type: TypeReply, ConversationID: id, Text: turn.Reply, State: string(turn.To)}}
	if turn.Escalated() {
		frames = append(frames, s.requestAgent(ctx, turn.Conversation))
	}
	return frames
}

// escalate forces a hand-off from any non-terminal state.
func (s *Server) escalate(ctx context.Context, id string) ([]Frame, error) {
	reply, state, err := s.engine.Escalate(ctx, id)
	if err != nil {
		return nil, err
	}
	if reply == "" {
		return nil, &stateError{state: state}
	}
	conv, ok := s.engine.GetState(id)
	if !ok {
		return nil, chat.ErrNotFound
	}
	return []Frame{
		{Type: TypeReply, ConversationID: id, Text: reply, State: string(state)},
		s.requestAgent(ctx, conv),
	}, nil
}

type stateError struct {
	state chat.State
}

func (e *stateError) Error() string {
	return "gateway: conversation is " + string(e.state)
}

// requestAgent builds the hand-off context and asks the escalation service
// for an agent.
func (s *Server) requestAgent(ctx context.Context, conv chat.Conversation) Frame {
	log := logging.Op(s.log, conv.ID, "escalate")
	cat := s.engine.Catalog()

	var recent []models.Message
	if s.history != nil {
		msgs, err := s.history.Recent(ctx, conv.ID, escalation.RecentMessages)
		if err != nil {
			log.WithError(err).Warn("gateway: load recent messages")
		}
		recent = msgs
	}

	res, err := s.esc.RequestEscalation(ctx, escalation.BuildContext(conv, recent, s.engine.Now()))
	if err != nil {
		log.WithError(err).Error("gateway: request escalation")
		return s.internalError(conv.ID)
	}

	f := Frame{Type: TypeEscalation, ConversationID: conv.ID, Escalation: &res}
	if res.Success {
		f.AgentID = res.AgentID
		f.Text = cat.MustRender(catalog.AgentAssigned, catalog.Params{"atendente": res.AgentName})
	} else {
		f.Text = cat.MustRender(catalog.QueuePosition, catalog.Params{
			"posicao": strconv.Itoa(res.QueuePosition),
			"espera":  res.EstimatedWait.String(),
		})
	}
	return f
}

// end closes a conversation and drops it from the queue.
func (s *Server) end(ctx context.Context, id string, resolved bool) (Frame, error) {
	reply, err := s.engine.Terminate(ctx, id, resolved)
	if err != nil {
		return Frame{}, err
	}
	s.esc.Cancel(ctx, id)
	return Frame{Type: TypeEnded, ConversationID: id, Text: reply, State: string(chat.Terminal)}, nil
}

// accept hands a conversation to the agent and tells the customer.
func (s *Server) accept(ctx context.Context, agentID, conversationID string) error {
	if err := s.engine.Accept(ctx, conversationID, agentID); err != nil {
		return err
	}
	s.esc.Cancel(ctx, conversationID)

	name := agentID
	if s.agents != nil {
		if agent, err := s.agents.Get(ctx, agentID); err == nil && agent.Name != "" {
			name = agent.Name
		}
	}
	text := s.engine.Catalog().MustRender(catalog.AgentAssigned, catalog.Params{"atendente": name})
	s.hub.Deliver(conversationID, TypeReply, text)
	s.hub.unbindCustomer(conversationID)
	return nil
}
