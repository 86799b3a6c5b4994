package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SearchLimit caps the number of identities returned by a search.
const SearchLimit = 10

// GormOpts holds parameters for creating a GormDirectory.
type GormOpts struct {
	DB        *gorm.DB
	CacheSize int           // defaults to 256
	CacheTTL  time.Duration // defaults to 5m
	Now       func() time.Time
}

type cachedIdentity struct {
	ident     chat.Identity
	expiresAt time.Time
}

// GormDirectory searches the customers table. GetByID results are cached
// for CacheTTL; misses are not cached.
type GormDirectory struct {
	db    *gorm.DB
	cache *lru.Cache[string, cachedIdentity]
	ttl   time.Duration
	now   func() time.Time
}

// NewGorm creates a GormDirectory.
func NewGorm(opts GormOpts) (*GormDirectory, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("identity: db is required")
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, cachedIdentity](size)
	if err != nil {
		return nil, fmt.Errorf("identity: cache: %w", err)
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &GormDirectory{db: opts.DB, cache: cache, ttl: ttl, now: now}, nil
}

// Search matches query against folded names, emails and logins. Results
// are ordered exact name, name prefix, name substring, email, login.
func (d *GormDirectory) Search(ctx context.Context, query string) ([]chat.Identity, error) {
	key := Fold(query)
	if key == "" {
		return nil, nil
	}
	esc := escapeLike(key)
	contains := "%" + esc + "%"
	prefix := esc + "%"

	rank := clause.Expr{
		SQL: "CASE WHEN search_key = ? THEN 0 " +
			"WHEN search_key LIKE ? ESCAPE '!' THEN 1 " +
			"WHEN search_key LIKE ? ESCAPE '!' THEN 2 " +
			"WHEN LOWER(email) LIKE ? ESCAPE '!' THEN 3 " +
			"ELSE 4 END, name",
		Vars:               []interface{}{key, prefix, contains, contains},
		WithoutParentheses: true,
	}

	var rows []models.Customer
	err := d.db.WithContext(ctx).
		Where("search_key LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!' OR LOWER(login) LIKE ? ESCAPE '!'",
			contains, contains, contains).
		Order(clause.OrderBy{Expression: rank}).
		Limit(SearchLimit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("identity: search %q: %w", query, err)
	}

	out := make([]chat.Identity, len(rows))
	for i, r := range rows {
		out[i] = fromCustomer(r)
	}
	return out, nil
}

// GetByID returns the customer with id, or nil, nil when there is none.
func (d *GormDirectory) GetByID(ctx context.Context, id string) (*chat.Identity, error) {
	if cached, ok := d.cache.Get(id); ok {
		if d.now().Before(cached.expiresAt) {
			ident := cached.ident
			return &ident, nil
		}
		d.cache.Remove(id)
	}

	var row models.Customer
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identity: get %q: %w", id, err)
	}

	ident := fromCustomer(row)
	d.cache.Add(id, cachedIdentity{ident: ident, expiresAt: d.now().Add(d.ttl)})
	return &ident, nil
}

// Invalidate drops id from the lookup cache.
func (d *GormDirectory) Invalidate(id string) {
	d.cache.Remove(id)
}

func fromCustomer(c models.Customer) chat.Identity {
	return chat.Identity{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Login:        c.Login,
		VIP:          c.VIP,
		RegisteredAt: c.RegisteredAt,
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
