// Package intent classifies free-text customer messages by weighted keyword
// matching and decides when a message is an explicit request for a human.
package intent

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Intent labels produced by the default categories.
const (
	Greeting         = "GREETING"
	Identification   = "IDENTIFICATION"
	Product          = "PRODUCT"
	Price            = "PRICE"
	Stock            = "STOCK"
	TechnicalProblem = "TECHNICAL_PROBLEM"
	AgentRequest     = "AGENT_REQUEST"
	Thanks           = "THANKS"
	Farewell         = "FAREWELL"
	Unrecognized     = "UNRECOGNIZED"
)

// DefaultPriority is used when a category is registered without one.
const DefaultPriority = 3

// Category is a named keyword set mapping to an intent label.
type Category struct {
	Name     string
	Keywords []string
	Label    string
	Priority int
}

// Result is the outcome of Classify.
type Result struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Secondary  []string `json:"secondary_intents"`
}

// Classifier matches messages against registered categories. It is safe
// for concurrent use; AddPattern and LearnFromExample may run alongside
// Classify.
type Classifier struct {
	mu         sync.RWMutex
	categories []*Category
}

// DefaultCategories returns the built-in category set.
func DefaultCategories() []Category {
	return []Category{
		{Name: "saudacao", Label: Greeting, Priority: 1,
			Keywords: []string{"olá", "oi", "bom dia", "boa tarde", "boa noite", "ola", "eae", "iai", "hello"}},
		{Name: "identificacao", Label: Identification, Priority: 2,
			Keywords: []string{"meu nome é", "eu sou o", "eu sou a", "chamo-me", "sou o", "sou a"}},
		{Name: "produto", Label: Product, Priority: 3,
			Keywords: []string{"produto", "item", "mercadoria", "compra", "loja", "catálogo", "catalogo"}},
		{Name: "preco", Label: Price, Priority: 3,
			Keywords: []string{"preço", "valor", "quanto custa", "custa quanto", "preco"}},
		{Name: "estoque", Label: Stock, Priority: 3,
			Keywords: []string{"estoque", "disponível", "tem em estoque", "disponibilidade", "tem?", "tem ainda?"}},
		{Name: "problema_tecnico", Label: TechnicalProblem, Priority: 9,
			Keywords: []string{"problema", "erro", "defeito", "quebrou", "não funciona", "bug"}},
		{Name: "solicitacao_atendente", Label: AgentRequest, Priority: 10,
			Keywords: []string{"atendente", "humano", "pessoa", "falar com alguém", "alguém real"}},
		{Name: "agradecimento", Label: Thanks, Priority: 1,
			Keywords: []string{"obrigado", "obrigada", "valeu", "agradeço", "grato", "gratidao"}},
		{Name: "despedida", Label: Farewell, Priority: 1,
			Keywords: []string{"tchau", "adeus", "até mais", "flw", "falo depois", "encerrar"}},
	}
}

// NewClassifier returns a classifier loaded with DefaultCategories.
func NewClassifier() *Classifier {
	c := &Classifier{}
	for _, cat := range DefaultCategories() {
		c.AddPattern(cat.Name, cat.Keywords, cat.Label, cat.Priority)
	}
	return c
}

type match struct {
	label      string
	priority   int
	confidence float64
}

// Classify returns the best-ranked intent for text. Categories are ranked by
// priority, then by keyword confidence; the remaining matches are returned as
// secondary intents.
func (c *Classifier) Classify(text string) Result {
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return Result{Intent: Unrecognized, Secondary: []string{}}
	}

	c.mu.RLock()
	var matches []match
	for _, cat := range c.categories {
		for _, kw := range cat.Keywords {
			idx := strings.Index(msg, kw)
			if idx < 0 {
				continue
			}
			matches = append(matches, match{
				label:      cat.Label,
				priority:   cat.Priority,
				confidence: confidence(msg, kw, idx),
			})
			break
		}
	}
	c.mu.RUnlock()

	if len(matches) == 0 {
		return Result{Intent: Unrecognized, Secondary: []string{}}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].priority != matches[j].priority {
			return matches[i].priority > matches[j].priority
		}
		return matches[i].confidence > matches[j].confidence
	})

	secondary := make([]string, 0, len(matches)-1)
	for _, m := range matches[1:] {
		secondary = append(secondary, m.label)
	}
	return Result{
		Intent:     matches[0].label,
		Confidence: matches[0].confidence,
		Secondary:  secondary,
	}
}

// confidence scores a keyword hit at byte offset idx: hits near the start and
// longer keywords score higher. Positions and lengths are counted in runes.
func confidence(msg, keyword string, idx int) float64 {
	position := 1.0
	if idx > 0 {
		position = 1.0 - float64(utf8.RuneCountInString(msg[:idx]))/float64(utf8.RuneCountInString(msg))
	}
	length := float64(utf8.RuneCountInString(keyword)) / 10
	if position+length > 1.0 {
		return 1.0
	}
	return position + length
}

// AddPattern registers a category, replacing any existing category with the
// same name. A non-positive priority falls back to DefaultPriority.
func (c *Classifier) AddPattern(name string, keywords []string, label string, priority int) {
	if priority <= 0 {
		priority = DefaultPriority
	}
	kws := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			kws = append(kws, kw)
		}
	}
	cat := &Category{Name: name, Keywords: kws, Label: label, Priority: priority}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.categories {
		if existing.Name == name {
			c.categories[i] = cat
			return
		}
	}
	c.categories = append(c.categories, cat)
}

// LearnFromExample appends every whitespace-separated token of text longer
// than two characters to the keyword list of the category named or labelled
// intentLabel, skipping tokens already present. A new category is created
// when none matches. It returns the number of keywords added.
func (c *Classifier) LearnFromExample(text, intentLabel string) int {
	tokens := strings.Fields(strings.ToLower(text))

	c.mu.Lock()
	defer c.mu.Unlock()

	var cat *Category
	for _, existing := range c.categories {
		if existing.Name == intentLabel {
			cat = existing
			break
		}
	}
	if cat == nil {
		for _, existing := range c.categories {
			if existing.Label == intentLabel {
				cat = existing
				break
			}
		}
	}
	if cat == nil {
		cat = &Category{Name: intentLabel, Label: intentLabel, Priority: DefaultPriority}
		c.categories = append(c.categories, cat)
	}

	added := 0
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) <= 2 || contains(cat.Keywords, tok) {
			continue
		}
		cat.Keywords = append(cat.Keywords, tok)
		added++
	}
	return added
}

// Categories returns a copy of the registered categories.
func (c *Classifier) Categories() []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{
			Name:     cat.Name,
			Keywords: append([]string(nil), cat.Keywords...),
			Label:    cat.Label,
			Priority: cat.Priority,
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
