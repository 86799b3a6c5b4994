// Package catalog renders the customer-facing reply texts. Every rendered
// reply passes through Sanitize, so the bot never makes unconditional
// promises to a customer.
package catalog

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/switchboard/internal/logging"
)

// ErrTemplateNotFound is returned by Render for an unregistered key.
var ErrTemplateNotFound = errors.New("catalog: template not found")

// Params is the flat key-value input of a template. Missing keys render as
// neutral defaults.
type Params map[string]string

// get returns p[key], or def when the key is absent or blank.
func (p Params) get(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// template returns the equivalent phrasings for a key; Render picks one.
type template func(p Params) []string

// Opts configures a Catalog.
type Opts struct {
	Rand   *rand.Rand         // phrasing selection; seeded from the clock when nil
	Logger logrus.FieldLogger // nil discards
}

// Catalog maps template keys to reply texts.
type Catalog struct {
	mu        sync.Mutex // guards rnd
	rnd       *rand.Rand
	templates map[string]template
	log       logrus.FieldLogger
}

// New returns a catalog holding the built-in templates.
func New(opts Opts) *Catalog {
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Catalog{
		rnd:       rnd,
		templates: builtins(),
		log:       logging.OrDiscard(opts.Logger),
	}
}

// Render returns the sanitized text for key.
func (c *Catalog) Render(key string, p Params) (string, error) {
	tmpl, ok := c.templates[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}
	if p == nil {
		p = Params{}
	}
	variants := tmpl(p)
	text := variants[0]
	if len(variants) > 1 {
		c.mu.Lock()
		text = variants[c.rnd.Intn(len(variants))]
		c.mu.Unlock()
	}
	return Sanitize(text), nil
}

// MustRender renders key, substituting the generic error reply when the key
// is unknown. An unknown key is a programming error and is logged as such.
func (c *Catalog) MustRender(key string, p Params) string {
	text, err := c.Render(key, p)
	if err != nil {
		c.log.WithField("template", key).WithError(err).Error("catalog: render")
		text, _ = c.Render(GenericError, nil)
	}
	return text
}

// Variants returns every sanitized phrasing key can render to with p. Tests
// use it to assert against the set of allowed outputs.
func (c *Catalog) Variants(key string, p Params) ([]string, error) {
	tmpl, ok := c.templates[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}
	if p == nil {
		p = Params{}
	}
	raw := tmpl(p)
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = Sanitize(v)
	}
	return out, nil
}

// Keys returns the registered template keys.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	return keys
}

// FormatDate renders a registration date the way customers expect it
// (dd/mm/yyyy), or the not-provided default.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return NotProvided
	}
	return t.Format("02/01/2006")
}
