package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/switchboard/internal/catalog"
	"github.com/zulandar/switchboard/internal/intent"
	"github.com/zulandar/switchboard/internal/logging"
	"github.com/zulandar/switchboard/internal/metrics"
	"github.com/zulandar/switchboard/internal/models"
)

// DefaultIdleTimeout is how long a conversation may stay silent before the
// sweeper expires it.
const DefaultIdleTimeout = 30 * time.Minute

// DefaultWarnBefore is how long before expiry the inactivity warning is sent.
const DefaultWarnBefore = 5 * time.Minute

// Log markers written to the sink as SYSTEM turns.
const (
	startMarker    = "[CONVERSA INICIADA]"
	startIntent    = "SAUDACAO_INICIAL"
	acceptedMarker = "[ATENDENTE ASSUMIU]"
	withAgentState = State("WITH_AGENT")
)

// menuKeywords ask for the full menu instead of the short fallback.
var menuKeywords = []string{"menu", "opções", "opcoes", "ajuda"}

// StartHint carries optional identity information known when a
// conversation starts.
type StartHint struct {
	IdentityID  string
	DisplayName string
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Directory   *Directory
	Identities  IdentityDirectory
	Sink        LogSink               // defaults to a no-op sink
	Classifier  *intent.Classifier    // defaults to intent.NewClassifier()
	Catalog     *catalog.Catalog      // defaults to catalog.New with a clock seed
	Hours       *intent.BusinessHours // defaults to intent.DefaultBusinessHours()
	IdleTimeout time.Duration         // defaults to DefaultIdleTimeout
	WarnBefore  time.Duration         // defaults to DefaultWarnBefore; negative disables
	Now         func() time.Time
	Logger      logrus.FieldLogger
	Metrics     *metrics.Metrics
}

// Engine drives the intake flow. Every mutation of a conversation goes
// through its transition methods under the directory's entry lock.
type Engine struct {
	dir         *Directory
	ids         IdentityDirectory
	sink        LogSink
	classifier  *intent.Classifier
	router      *intent.Router
	catalog     *catalog.Catalog
	hours       intent.BusinessHours
	idleTimeout time.Duration
	warnBefore  time.Duration
	now         func() time.Time
	log         logrus.FieldLogger
	metrics     *metrics.Metrics
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Directory == nil {
		return nil, fmt.Errorf("chat: engine: directory is required")
	}
	if opts.Identities == nil {
		return nil, fmt.Errorf("chat: engine: identity directory is required")
	}
	e := &Engine{
		dir:         opts.Directory,
		ids:         opts.Identities,
		sink:        opts.Sink,
		classifier:  opts.Classifier,
		catalog:     opts.Catalog,
		idleTimeout: opts.IdleTimeout,
		now:         opts.Now,
		log:         logging.OrDiscard(opts.Logger),
		metrics:     opts.Metrics,
	}
	if e.sink == nil {
		e.sink = discardSink{}
	}
	if e.classifier == nil {
		e.classifier = intent.NewClassifier()
	}
	e.router = intent.NewRouter(e.classifier)
	if e.catalog == nil {
		e.catalog = catalog.New(catalog.Opts{Logger: opts.Logger})
	}
	if opts.Hours != nil {
		e.hours = *opts.Hours
	} else {
		e.hours = intent.DefaultBusinessHours()
	}
	if e.idleTimeout <= 0 {
		e.idleTimeout = DefaultIdleTimeout
	}
	switch {
	case opts.WarnBefore < 0:
		e.warnBefore = 0
	case opts.WarnBefore == 0:
		e.warnBefore = DefaultWarnBefore
	default:
		e.warnBefore = opts.WarnBefore
	}
	if e.warnBefore >= e.idleTimeout {
		e.warnBefore = 0
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Directory returns the directory backing the engine.
func (e *Engine) Directory() *Directory { return e.dir }

// Classifier returns the engine's intent classifier.
func (e *Engine) Classifier() *intent.Classifier { return e.classifier }

// Catalog returns the engine's response catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// IdleTimeout returns the configured idle threshold.
func (e *Engine) IdleTimeout() time.Duration { return e.idleTimeout }

// Now returns the engine's clock reading.
func (e *Engine) Now() time.Time { return e.now() }

// Start creates a conversation and returns the first reply. A hint that
// resolves to exactly one identity skips the name prompt.
func (e *Engine) Start(ctx context.Context, id string, hint StartHint) (string, error) {
	if id == "" {
		return "", fmt.Errorf("chat: start: conversation id is required")
	}
	now := e.now()
	conv := &Conversation{
		ID:             id,
		State:          AwaitingName,
		StartedAt:      now,
		LastActivityAt: now,
	}

	var reply string
	err := e.dir.CreateWith(conv, func(c *Conversation) error {
		e.metrics.Started()
		e.sinkCall(ctx, id, "sink.start", func() error { return e.sink.StartConversation(ctx, *c) })
		e.sinkCall(ctx, id, "sink.turn", func() error {
			return e.sink.AppendTurn(ctx, id, models.SenderSystem, startMarker, startIntent)
		})

		next := c.clone()
		reply = e.resolveHint(ctx, next, hint)
		e.commit(ctx, c, next)
		e.sinkCall(ctx, id, "sink.turn", func() error {
			return e.sink.AppendTurn(ctx, id, models.SenderBot, reply, "")
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// resolveHint applies the start hint to c and returns the opening reply.
// Collaborator failures fall back to asking for the name.
func (e *Engine) resolveHint(ctx context.Context, c *Conversation, hint StartHint) string {
	if hint.IdentityID != "" {
		ident, err := e.getByID(ctx, hint.IdentityID)
		if err != nil {
			logging.Op(e.log, c.ID, "start").WithError(err).Warn("chat: identity hint lookup failed")
		} else if ident != nil {
			e.bind(c, ident)
			return e.identifiedReply(c)
		}
	}
	if name := strings.TrimSpace(hint.DisplayName); name != "" {
		next := c.clone()
		reply, err := e.resolveName(ctx, next, name)
		if err == nil {
			*c = *next
			return reply
		}
		logging.Op(e.log, c.ID, "start").WithError(err).Warn("chat: display name lookup failed")
	}
	return e.render(catalog.NamePrompt, nil)
}

// Turn is the outcome of one customer message. From and To are read under
// the conversation lock, so exactly one turn observes any given transition.
type Turn struct {
	Reply        string
	From         State
	To           State
	Conversation Conversation // committed state after the turn
}

// Escalated reports whether this turn handed the conversation off.
func (t Turn) Escalated() bool {
	return t.From != Escalated && t.To == Escalated
}

// ProcessMessage runs one customer turn and returns the reply. It fails only
// with ErrNotFound; malformed input re-prompts and collaborator failures
// produce the generic technical-difficulty reply with the state untouched.
func (e *Engine) ProcessMessage(ctx context.Context, id, text string) (string, error) {
	t, err := e.ProcessTurn(ctx, id, text)
	return t.Reply, err
}

// ProcessTurn is ProcessMessage reporting the state transition as well.
func (e *Engine) ProcessTurn(ctx context.Context, id, text string) (Turn, error) {
	var turn Turn
	err := e.dir.With(id, func(c *Conversation) error {
		turn.From = c.State
		var reply string
		now := e.now()
		cls := e.classifier.Classify(text)
		e.metrics.Turn(string(c.State), cls.Intent)

		e.sinkCall(ctx, id, "sink.turn", func() error {
			return e.sink.AppendTurn(ctx, id, models.SenderCustomer, text, cls.Intent)
		})

		if c.State.IsTerminal() {
			// Still counts as activity so a customer waiting for an agent is
			// not swept while they keep writing.
			c.touch(now)
			if c.State == Escalated {
				reply = e.render(catalog.AwaitingAgent, nil)
			} else {
				reply = e.render(catalog.ConversationEnded, nil)
			}
		} else {
			next := c.clone()
			next.AttemptCount++
			next.touch(now)
			next.LastMessage = text
			next.noteIntent(cls.Intent)

			r, err := e.transition(ctx, next, text, cls.Intent)
			if err != nil {
				logging.Op(e.log, id, "process_message").WithError(err).Error("chat: turn failed")
				c.touch(now)
				reply = e.render(catalog.GenericError, nil)
			} else {
				e.commit(ctx, c, next)
				reply = r
			}
		}

		e.sinkCall(ctx, id, "sink.turn", func() error {
			return e.sink.AppendTurn(ctx, id, models.SenderBot, reply, "")
		})
		turn.Reply = reply
		turn.To = c.State
		turn.Conversation = *c.clone()
		return nil
	})
	if err != nil {
		return Turn{}, err
	}
	return turn, nil
}

// commit replaces c with next and records a state change when there is one.
func (e *Engine) commit(ctx context.Context, c, next *Conversation) {
	prev, prevCustomer := c.State, c.Customer
	*c = *next
	if prev != c.State {
		e.sinkCall(ctx, c.ID, "sink.state", func() error {
			return e.sink.AppendStateChange(ctx, c.ID, c.State)
		})
	}
	if rec, ok := e.sink.(CustomerRecorder); ok && c.Customer != nil && prevCustomer == nil {
		e.sinkCall(ctx, c.ID, "sink.customer", func() error {
			return rec.RecordCustomer(ctx, c.ID, *c.Customer)
		})
	}
}

// transition is the state machine. It mutates c, which is a private copy;
// on error the caller discards it.
func (e *Engine) transition(ctx context.Context, c *Conversation, text, label string) (string, error) {
	switch c.State {
	case AwaitingName:
		name := strings.TrimSpace(text)
		if name == "" {
			return e.render(catalog.NamePrompt, nil), nil
		}
		return e.resolveName(ctx, c, name)
	case Disambiguating:
		return e.selectCandidate(c, text), nil
	case MainMenu:
		return e.menu(ctx, c, text, label)
	case ProcessingOption:
		return e.processOption(ctx, c)
	case AwaitingDetails:
		return e.details(c, text), nil
	default:
		return "", fmt.Errorf("chat: no transition from state %s", c.State)
	}
}

func (e *Engine) resolveName(ctx context.Context, c *Conversation, name string) (string, error) {
	start := time.Now()
	matches, err := e.ids.Search(ctx, name)
	e.metrics.ObserveCall("identity.search", start, err)
	if err != nil {
		return "", &CollaboratorError{Op: "identity search", Err: err}
	}

	switch len(matches) {
	case 0:
		c.Customer = &Identity{Name: name, Synthetic: true}
		c.State = MainMenu
		return e.render(catalog.Menu, catalog.Params{"nome": name}), nil
	case 1:
		e.bind(c, &matches[0])
		return e.identifiedReply(c), nil
	default:
		c.Candidates = matches
		c.State = Disambiguating
		return e.render(catalog.MultipleMatches, catalog.Params{"lista": candidateList(matches)}), nil
	}
}

func (e *Engine) selectCandidate(c *Conversation, text string) string {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(c.Candidates) {
		return e.render(catalog.InvalidSelection, catalog.Params{"lista": candidateList(c.Candidates)})
	}
	chosen := c.Candidates[n-1]
	e.bind(c, &chosen)
	return e.identifiedReply(c)
}

func (e *Engine) bind(c *Conversation, ident *Identity) {
	cp := *ident
	c.Customer = &cp
	c.Candidates = nil
	c.State = MainMenu
}

func (e *Engine) identifiedReply(c *Conversation) string {
	return e.render(catalog.IdentifiedGreeting, catalog.Params{"nome": c.DisplayName()}) +
		"\n\n" + e.render(catalog.MenuOptions, nil)
}

func candidateList(ids []Identity) string {
	lines := make([]string, len(ids))
	for i, ident := range ids {
		if ident.Email != "" {
			lines[i] = fmt.Sprintf("%d. %s (%s)", i+1, ident.Name, ident.Email)
		} else {
			lines[i] = fmt.Sprintf("%d. %s", i+1, ident.Name)
		}
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) menu(ctx context.Context, c *Conversation, text, label string) (string, error) {
	trimmed := strings.TrimSpace(text)
	n, err := strconv.Atoi(trimmed)
	if err == nil && n >= 1 && n <= MenuSize {
		c.SelectedOption = n
		c.State = ProcessingOption
		return e.processOption(ctx, c)
	}

	if err != nil && e.router.WantsAgent(trimmed) {
		c.SelectedOption = OptionAgent
		return e.escalate(c), nil
	}
	menu := e.render(catalog.Menu, catalog.Params{"nome": c.DisplayName()})
	lower := strings.ToLower(trimmed)
	for _, kw := range menuKeywords {
		if strings.Contains(lower, kw) {
			return menu, nil
		}
	}
	if err == nil {
		return e.render(catalog.InvalidOption, nil) + "\n\n" + menu, nil
	}
	if reply := e.intentReply(c, label); reply != "" {
		return reply, nil
	}
	return e.render(catalog.NotUnderstood, nil) + " " + e.render(catalog.MenuFallback, nil) + "\n\n" + menu, nil
}

// intentReply answers recognised free text in the main menu. It returns ""
// for intents the menu fallback should handle.
func (e *Engine) intentReply(c *Conversation, label string) string {
	options := e.render(catalog.MenuOptions, nil)
	switch label {
	case intent.Greeting:
		if name := c.DisplayName(); name != "" {
			return e.render(catalog.IdentifiedGreeting, catalog.Params{"nome": name}) + "\n\n" + options
		}
		return e.render(catalog.Greeting, nil) + "\n\n" + options
	case intent.Thanks:
		return e.render(catalog.Thanks, nil) + "\n\n" + options
	case intent.Farewell:
		return e.render(catalog.Farewell, nil)
	case intent.Product, intent.Price, intent.Stock:
		return e.render(catalog.ProductHint, nil) + "\n\n" + options
	case intent.TechnicalProblem:
		return e.render(catalog.TechnicalHint, nil) + "\n\n" + options
	}
	return ""
}

// processOption resolves the selected menu option within the same turn.
func (e *Engine) processOption(ctx context.Context, c *Conversation) (string, error) {
	name := catalog.Params{"nome": c.DisplayName()}
	switch c.SelectedOption {
	case OptionTechnical:
		return e.awaitDetails(c, TopicTechnical, catalog.OptionTechnical), nil
	case OptionOrder:
		return e.awaitDetails(c, TopicOrder, catalog.OptionOrder), nil
	case OptionProduct:
		return e.awaitDetails(c, TopicProduct, catalog.OptionProduct), nil
	case OptionOther:
		return e.awaitDetails(c, TopicOther, catalog.OptionOther), nil
	case OptionAccount:
		return e.accountData(ctx, c)
	case OptionAgent:
		return e.escalate(c), nil
	default:
		c.SelectedOption = 0
		c.State = MainMenu
		return e.render(catalog.InvalidOption, nil) + "\n\n" + e.render(catalog.Menu, name), nil
	}
}

func (e *Engine) awaitDetails(c *Conversation, topic Topic, key string) string {
	c.Topic = topic
	c.State = AwaitingDetails
	return e.render(key, catalog.Params{"nome": c.DisplayName()})
}

func (e *Engine) accountData(ctx context.Context, c *Conversation) (string, error) {
	name := c.DisplayName()
	menu := e.render(catalog.Menu, catalog.Params{"nome": name})

	var ident *Identity
	if c.Customer != nil && !c.Customer.Synthetic && c.Customer.ID != "" {
		var err error
		ident, err = e.getByID(ctx, c.Customer.ID)
		if err != nil {
			return "", err
		}
	}

	c.SelectedOption = 0
	c.State = MainMenu
	if ident == nil {
		return e.render(catalog.NotIdentified, catalog.Params{"nome": name}) + "\n\n" + menu, nil
	}
	return e.render(catalog.AccountData, catalog.Params{
		"nome":       name,
		"dados_nome": ident.Name,
		"email":      ident.Email,
		"telefone":   ident.Phone,
		"login":      ident.Login,
		"cadastro":   catalog.FormatDate(ident.RegisteredAt),
	}) + "\n\n" + menu, nil
}

// Escalate hands the conversation off regardless of its state, e.g. from a
// staff console. Terminal conversations are left as they are and their
// state is returned with no reply.
func (e *Engine) Escalate(ctx context.Context, id string) (string, State, error) {
	var reply string
	var state State
	err := e.dir.With(id, func(c *Conversation) error {
		if c.State.IsTerminal() {
			state = c.State
			return nil
		}
		next := c.clone()
		next.touch(e.now())
		reply = e.escalate(next)
		e.commit(ctx, c, next)
		state = c.State
		e.sinkCall(ctx, id, "sink.turn", func() error {
			return e.sink.AppendTurn(ctx, id, models.SenderBot, reply, "")
		})
		return nil
	})
	return reply, state, err
}

// escalate marks the conversation for hand-off. Queueing is left to the
// caller, which owns the escalation service.
func (e *Engine) escalate(c *Conversation) string {
	c.EscalationRequested = true
	c.State = Escalated
	reply := e.render(catalog.Handoff, catalog.Params{"nome": c.DisplayName()})
	if !e.hours.Open(e.now()) {
		reply += "\n\n" + e.render(catalog.OutsideHours, catalog.Params{
			"inicio": strconv.Itoa(e.hours.Start),
			"fim":    strconv.Itoa(e.hours.End),
		})
	}
	return reply
}

func (e *Engine) details(c *Conversation, text string) string {
	if e.router.WantsAgent(text) {
		// Topic stays so the agent sees what the customer was reporting.
		c.SelectedOption = OptionAgent
		return e.escalate(c)
	}

	var reply string
	switch c.Topic {
	case TopicTechnical:
		reply = e.render(catalog.Analysing, nil) + "\n\n" + e.render(catalog.TechnicalResolution, nil)
	case TopicOrder:
		reply = e.render(catalog.OrderInfo, catalog.Params{"numero": strings.TrimSpace(text)})
	case TopicProduct:
		reply = e.render(catalog.ProductInfo, nil)
	default:
		reply = e.render(catalog.Analysing, nil) + "\n\n" + e.render(catalog.OtherAck, nil)
	}

	c.SelectedOption = 0
	c.Topic = ""
	c.State = MainMenu
	return reply + "\n\n" + e.render(catalog.Menu, catalog.Params{"nome": c.DisplayName()})
}

// GetState returns a copy of the conversation.
func (e *Engine) GetState(id string) (Conversation, bool) {
	return e.dir.Get(id)
}

// CheckIdle reports whether the conversation has been silent longer than
// threshold; a non-positive threshold uses the engine default. Unknown
// conversations are never idle.
func (e *Engine) CheckIdle(id string, threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = e.idleTimeout
	}
	c, ok := e.dir.Get(id)
	if !ok {
		return false
	}
	return c.IdleFor(e.now(), threshold)
}

// ResetIdleTimeout records activity without running a turn.
func (e *Engine) ResetIdleTimeout(id string) error {
	return e.dir.With(id, func(c *Conversation) error {
		c.touch(e.now())
		return nil
	})
}

// ExpireIdle times the conversation out and returns the timeout notice.
// It reports false, with no reply, when the conversation is unknown or
// already terminal.
func (e *Engine) ExpireIdle(ctx context.Context, id string) (string, bool) {
	var reply string
	var expired bool
	_ = e.dir.With(id, func(c *Conversation) error {
		if c.State.IsTerminal() {
			return nil
		}
		reply, expired = e.expire(ctx, c), true
		return nil
	})
	return reply, expired
}

// expire must be called with the entry lock held.
func (e *Engine) expire(ctx context.Context, c *Conversation) string {
	c.State = TimedOut
	e.dir.Remove(c.ID)
	reply := e.render(catalog.TimeoutNotice, nil)
	e.sinkCall(ctx, c.ID, "sink.state", func() error { return e.sink.AppendStateChange(ctx, c.ID, TimedOut) })
	e.sinkCall(ctx, c.ID, "sink.turn", func() error {
		return e.sink.AppendTurn(ctx, c.ID, models.SenderBot, reply, "")
	})
	e.sinkCall(ctx, c.ID, "sink.end", func() error {
		return e.sink.EndConversation(ctx, c.ID, models.EndTimeout, e.now())
	})
	e.metrics.Ended(models.EndTimeout)
	return reply
}

// Expiry describes one conversation removed by SweepIdle.
type Expiry struct {
	ConversationID string
	PreviousState  State
	Notice         string // empty for conversations already handed off
}

// SweepIdle expires every conversation idle longer than the threshold.
// Escalated conversations that went silent are archived without a notice.
func (e *Engine) SweepIdle(ctx context.Context) []Expiry {
	var out []Expiry
	e.dir.Sweep(func(c *Conversation) bool {
		if !c.IdleFor(e.now(), e.idleTimeout) {
			return false
		}
		prev := c.State
		if prev.IsTerminal() {
			e.dir.Remove(c.ID)
			e.sinkCall(ctx, c.ID, "sink.end", func() error {
				return e.sink.EndConversation(ctx, c.ID, models.EndTimeout, e.now())
			})
			e.metrics.Ended(models.EndTimeout)
			out = append(out, Expiry{ConversationID: c.ID, PreviousState: prev})
			return true
		}
		out = append(out, Expiry{ConversationID: c.ID, PreviousState: prev, Notice: e.expire(ctx, c)})
		return true
	})
	if len(out) > 0 {
		e.log.WithField("expired", len(out)).Info("chat: idle sweep")
	}
	return out
}

// Warning is an inactivity notice sent ahead of expiry.
type Warning struct {
	ConversationID string
	Notice         string
}

// WarnIdle warns conversations that will expire within the warning window.
// Each silence is warned once; the next customer message re-arms it.
func (e *Engine) WarnIdle(ctx context.Context) []Warning {
	if e.warnBefore <= 0 {
		return nil
	}
	threshold := e.idleTimeout - e.warnBefore
	var out []Warning
	e.dir.Sweep(func(c *Conversation) bool {
		if c.State.IsTerminal() || c.IdleWarned || !c.IdleFor(e.now(), threshold) {
			return false
		}
		c.IdleWarned = true
		notice := e.render(catalog.TimeoutWarning, nil)
		e.sinkCall(ctx, c.ID, "sink.turn", func() error {
			return e.sink.AppendTurn(ctx, c.ID, models.SenderBot, notice, "")
		})
		out = append(out, Warning{ConversationID: c.ID, Notice: notice})
		return true
	})
	return out
}

// Terminate ends the conversation and returns the closing message chosen by
// resolved.
func (e *Engine) Terminate(ctx context.Context, id string, resolved bool) (string, error) {
	var reply string
	err := e.dir.With(id, func(c *Conversation) error {
		reason, key := models.EndUnresolved, catalog.ClosingUnresolved
		if resolved {
			reason, key = models.EndResolved, catalog.ClosingResolved
		}
		prev := c.State
		c.State = Terminal
		e.dir.Remove(id)
		reply = e.render(key, nil)

		if prev != Terminal {
			e.sinkCall(ctx, id, "sink.state", func() error { return e.sink.AppendStateChange(ctx, id, Terminal) })
		}
		e.sinkCall(ctx, id, "sink.turn", func() error {
			return e.sink.AppendTurn(ctx, id, models.SenderBot, reply, "")
		})
		e.sinkCall(ctx, id, "sink.end", func() error { return e.sink.EndConversation(ctx, id, reason, e.now()) })
		e.metrics.Ended(reason)
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Accept hands an escalated conversation to a human agent and drops it from
// the directory; the agent's own client takes over from here. Conversations
// the bot is still running fail with ErrNotEscalated.
func (e *Engine) Accept(ctx context.Context, id, agentID string) error {
	return e.dir.With(id, func(c *Conversation) error {
		if c.State != Escalated {
			return fmt.Errorf("%w (state %s)", ErrNotEscalated, c.State)
		}
		e.dir.Remove(id)
		e.sinkCall(ctx, id, "sink.turn", func() error {
			return e.sink.AppendTurn(ctx, id, models.SenderSystem, acceptedMarker+" "+agentID, "")
		})
		e.sinkCall(ctx, id, "sink.state", func() error { return e.sink.AppendStateChange(ctx, id, withAgentState) })
		e.sinkCall(ctx, id, "sink.end", func() error { return e.sink.EndConversation(ctx, id, models.EndAgent, e.now()) })
		e.metrics.Ended(models.EndAgent)
		return nil
	})
}

func (e *Engine) getByID(ctx context.Context, id string) (*Identity, error) {
	start := time.Now()
	ident, err := e.ids.GetByID(ctx, id)
	e.metrics.ObserveCall("identity.get", start, err)
	if err != nil {
		return nil, &CollaboratorError{Op: "identity lookup", Err: err}
	}
	return ident, nil
}

// sinkCall runs a log sink write. Failures are logged and dropped.
func (e *Engine) sinkCall(ctx context.Context, id, op string, fn func() error) {
	start := time.Now()
	err := fn()
	e.metrics.ObserveCall(op, start, err)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Op(e.log, id, op).WithError(err).Warn("chat: log sink write failed")
	}
}

func (e *Engine) render(key string, p catalog.Params) string {
	return e.catalog.MustRender(key, p)
}
