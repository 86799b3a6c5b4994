// Package mirror copies the escalation queue snapshot to Redis so that
// other processes (the CLI, wallboards) can read it without the gateway.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zulandar/switchboard/internal/escalation"
)

const (
	// DefaultPrefix namespaces every key.
	DefaultPrefix = "switchboard"
	// DefaultTTL bounds how long a snapshot outlives its writer.
	DefaultTTL = time.Minute
)

// store is the subset of the go-redis client the mirror uses.
type store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Mirror writes and reads queue snapshots.
type Mirror struct {
	rdb    store
	prefix string
	ttl    time.Duration
}

// Opts holds parameters for creating a Mirror.
type Opts struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	// For testing: inject a client instead of dialing Addr.
	Client store
}

// New creates a Mirror. The connection is lazy; the first command dials.
func New(opts Opts) (*Mirror, error) {
	if opts.Client == nil && opts.Addr == "" {
		return nil, fmt.Errorf("mirror: redis addr is required")
	}
	m := &Mirror{rdb: opts.Client, prefix: opts.Prefix, ttl: opts.TTL}
	if m.rdb == nil {
		m.rdb = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
	}
	if m.prefix == "" {
		m.prefix = DefaultPrefix
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	return m, nil
}

// Key is where the latest snapshot lives.
func (m *Mirror) Key() string { return m.prefix + ":queue" }

// Channel receives every snapshot as it is written.
func (m *Mirror) Channel() string { return m.prefix + ":queue:events" }

// Write stores st under Key with the TTL and publishes it on Channel.
func (m *Mirror) Write(ctx context.Context, st escalation.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("mirror: marshal status: %w", err)
	}
	if err := m.rdb.Set(ctx, m.Key(), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("mirror: set %s: %w", m.Key(), err)
	}
	if err := m.rdb.Publish(ctx, m.Channel(), data).Err(); err != nil {
		return fmt.Errorf("mirror: publish %s: %w", m.Channel(), err)
	}
	return nil
}

// Load reads the latest snapshot. It returns nil, nil when none was written
// or the writer stopped long enough for the key to expire.
func (m *Mirror) Load(ctx context.Context) (*escalation.Status, error) {
	data, err := m.rdb.Get(ctx, m.Key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mirror: get %s: %w", m.Key(), err)
	}
	var st escalation.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("mirror: decode %s: %w", m.Key(), err)
	}
	return &st, nil
}

// Close releases the client.
func (m *Mirror) Close() error {
	return m.rdb.Close()
}
