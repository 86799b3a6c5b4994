package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/logging"
	"github.com/zulandar/switchboard/internal/models"
)

// registerRoutes sets up every gateway route on the gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	// Websockets.
	router.GET("/ws", s.handleCustomerWS)
	router.GET("/ws/agent", s.handleAgentWS)

	api := router.Group("/api")
	api.POST("/conversations", s.handleStart)
	api.GET("/conversations/:id", s.handleGet)
	api.POST("/conversations/:id/messages", s.handleMessage)
	api.GET("/conversations/:id/messages", s.handleMessages)
	api.POST("/conversations/:id/escalate", s.handleEscalate)
	api.DELETE("/conversations/:id", s.handleEnd)

	api.GET("/customers/:id/conversations", s.handleCustomerConversations)

	api.GET("/queue", s.handleQueue)
	api.GET("/queue/events", s.handleQueueEvents)
	api.POST("/agents/:id/release", s.handleRelease)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"conversations": s.engine.Directory().Len(),
		"queued":        s.esc.Queue().Len(),
		"customers":     s.hub.Customers(),
		"agents":        s.hub.Agents(),
	})
}

type startRequest struct {
	ConversationID string `json:"conversation_id"`
	IdentityID     string `json:"identity_id"`
	Name           string `json:"name"`
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorFrame("", CodeInvalidFrame, err.Error()))
			return
		}
	}
	out, err := s.start(c.Request.Context(), req.ConversationID, chat.StartHint{IdentityID: req.IdentityID, DisplayName: req.Name})
	switch {
	case errors.Is(err, chat.ErrConflict):
		c.JSON(http.StatusConflict, errorFrame(req.ConversationID, CodeConflict, err.Error()))
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, s.internalError(req.ConversationID))
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) handleGet(c *gin.Context) {
	conv, ok := s.engine.GetState(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, s.sessionExpired(c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, conv)
}

type messageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Frames []Frame `json:"frames"`
}

func (s *Server) handleMessage(c *gin.Context) {
	id := c.Param("id")
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorFrame(id, CodeInvalidFrame, err.Error()))
		return
	}
	frames := s.message(c.Request.Context(), id, req.Text)
	if f := frames[0]; f.Type == TypeError {
		c.JSON(errorStatus(f.Code), f)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Frames: frames})
}

func (s *Server) handleEscalate(c *gin.Context) {
	id := c.Param("id")
	frames, err := s.escalate(c.Request.Context(), id)
	var se *stateError
	switch {
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, s.sessionExpired(id))
		return
	case errors.As(err, &se):
		c.JSON(http.StatusConflict, errorFrame(id, CodeConflict, err.Error()))
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, s.internalError(id))
		return
	}
	for _, f := range frames {
		s.hub.Deliver(id, f.Type, f.Text)
	}
	c.JSON(http.StatusOK, messageResponse{Frames: frames})
}

func (s *Server) handleEnd(c *gin.Context) {
	id := c.Param("id")
	resolved, _ := strconv.ParseBool(c.Query("resolved"))
	out, err := s.end(c.Request.Context(), id, resolved)
	if err != nil {
		c.JSON(http.StatusNotFound, s.sessionExpired(id))
		return
	}
	s.hub.Deliver(id, out.Type, out.Text)
	s.hub.unbindCustomer(id)
	c.JSON(http.StatusOK, out)
}

// historyLimit reads ?limit=, falling back to DefaultHistoryLimit.
func historyLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return DefaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxHistoryLimit {
		return 0, false
	}
	return n, true
}

func (s *Server) handleMessages(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "conversation history disabled"})
		return
	}
	limit, ok := historyLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxHistoryLimit)})
		return
	}
	msgs, err := s.history.Recent(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		logging.Op(s.log, c.Param("id"), "messages").WithError(err).Error("gateway: load history")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": c.Param("id"), "messages": msgs})
}

func (s *Server) handleCustomerConversations(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "conversation history disabled"})
		return
	}
	limit, ok := historyLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxHistoryLimit)})
		return
	}
	convs, err := s.history.Conversations(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.log.WithError(err).WithField("customer_id", c.Param("id")).Error("gateway: load conversations")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"customer_id": c.Param("id"), "conversations": convs})
}

func (s *Server) handleQueue(c *gin.Context) {
	c.JSON(http.StatusOK, s.esc.Status(c.Request.Context()))
}

type releaseRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
}

func (s *Server) handleRelease(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := s.esc.ReleaseAgent(c.Request.Context(), c.Param("id"), req.ConversationID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func errorStatus(code string) int {
	switch code {
	case CodeInvalidMessage, CodeInvalidFrame:
		return http.StatusBadRequest
	case CodeSessionExpired:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
