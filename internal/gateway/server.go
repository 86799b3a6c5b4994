// Package gateway exposes the chat engine to web clients: a customer
// websocket, an agent console websocket, a REST surface, an SSE queue feed
// and the Prometheus endpoint.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/escalation"
	"github.com/zulandar/switchboard/internal/logging"
	"github.com/zulandar/switchboard/internal/models"
)

// Defaults for unset options.
const (
	DefaultMaxMessageRunes   = 1000
	DefaultQueuePollInterval = 3 * time.Second
	DefaultHistoryLimit      = 50
	maxHistoryLimit          = 500
	heartbeatInterval        = 15 * time.Second
)

// Agents is the slice of the agent directory the console needs.
type Agents interface {
	Get(ctx context.Context, agentID string) (*models.Agent, error)
	SetPresence(ctx context.Context, agentID string, online, available bool) error
}

// History reads the persisted conversation log.
type History interface {
	// Recent returns the latest logged turns of a conversation, oldest first.
	Recent(ctx context.Context, conversationID string, n int) ([]models.Message, error)
	// Conversations returns a customer's conversations, newest first.
	Conversations(ctx context.Context, customerID string, limit int) ([]models.Conversation, error)
}

// Opts holds parameters for creating a Server.
type Opts struct {
	Engine     *chat.Engine
	Escalation *escalation.Service
	Agents     Agents              // optional; the agent console is disabled without it
	History    History             // optional
	Gatherer   prometheus.Gatherer // defaults to prometheus.DefaultGatherer

	MaxMessageRunes   int
	AllowedOrigins    []string // empty allows any origin
	QueuePollInterval time.Duration
	NewID             func() string

	Logger logrus.FieldLogger
}

// Server routes HTTP and websocket traffic to the engine and the
// escalation service.
type Server struct {
	engine   *chat.Engine
	esc      *escalation.Service
	agents   Agents
	history  History
	gatherer prometheus.Gatherer

	maxRunes int
	poll     time.Duration
	newID    func() string
	escaper  *strings.Replacer
	upgrader websocket.Upgrader

	hub *Hub
	log logrus.FieldLogger
}

// New creates a Server and subscribes its hub to escalation records so
// agent consoles see the queue change.
func New(opts Opts) (*Server, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("gateway: engine is required")
	}
	if opts.Escalation == nil {
		return nil, fmt.Errorf("gateway: escalation service is required")
	}
	log := logging.OrDiscard(opts.Logger).WithField("component", "gateway")
	s := &Server{
		engine:   opts.Engine,
		esc:      opts.Escalation,
		agents:   opts.Agents,
		history:  opts.History,
		gatherer: opts.Gatherer,
		maxRunes: opts.MaxMessageRunes,
		poll:     opts.QueuePollInterval,
		newID:    opts.NewID,
		escaper:  strings.NewReplacer("<", "&lt;", ">", "&gt;"),
		hub:      newHub(log),
		log:      log,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.maxRunes <= 0 {
		s.maxRunes = DefaultMaxMessageRunes
	}
	if s.poll <= 0 {
		s.poll = DefaultQueuePollInterval
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	s.esc.AddNotifier(s.hub)
	return s, nil
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Hub returns the connection registry. It implements supervisor.Outbox.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))
	s.registerRoutes(router)
	return router
}

// Start serves on addr. It blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string, out io.Writer) error {
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if out != nil {
		fmt.Fprintf(out, "Switchboard listening on %s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

// requestLogger logs one line per request. Websocket upgrades log when the
// socket closes.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("gateway: request")
			return
		}
		entry.Debug("gateway: request")
	}
}
