package telegraph

import (
	"context"
	"sync"
)

// MockNotifier implements Notifier for testing. It records delivered events
// and can be made to fail.
type MockNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Notify records evt, or returns the configured error.
func (m *MockNotifier) Notify(ctx context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

// SetError makes subsequent Notify calls fail with err; nil clears it.
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Events returns a copy of the recorded events.
func (m *MockNotifier) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Reset clears recorded events.
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
