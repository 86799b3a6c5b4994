package telegraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/switchboard/internal/logsink"
)

// DefaultDigestWindow is the period covered by the first digest.
const DefaultDigestWindow = 24 * time.Hour

// Summarizer counts conversations since a point in time.
type Summarizer interface {
	Summarize(ctx context.Context, since time.Time) (logsink.Summary, error)
}

// Digest posts a summary of conversations since the previous digest.
type Digest struct {
	src Summarizer
	n   Notifier
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

// DigestOpts holds parameters for creating a Digest.
type DigestOpts struct {
	Source   Summarizer
	Notifier Notifier
	Now      func() time.Time
}

// NewDigest creates a Digest whose first run covers DefaultDigestWindow.
func NewDigest(opts DigestOpts) (*Digest, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("telegraph: digest: source is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("telegraph: digest: notifier is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Digest{src: opts.Source, n: opts.Notifier, now: now, last: now().Add(-DefaultDigestWindow)}, nil
}

// Run builds and posts one digest. Periods with no conversations are not
// posted. It reports whether a digest was sent.
func (d *Digest) Run(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	until := d.now()
	s, err := d.src.Summarize(ctx, d.last)
	if err != nil {
		return false, fmt.Errorf("telegraph: digest: %w", err)
	}
	if s.Started == 0 && len(s.ByReason) == 0 {
		d.last = until
		return false, nil
	}
	if err := d.n.Notify(ctx, FormatDigest(s, until)); err != nil {
		// Keep the window so the next run covers it.
		return false, fmt.Errorf("telegraph: digest: %w", err)
	}
	d.last = until
	return true, nil
}
