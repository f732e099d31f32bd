package mailer

import (
	"context"
	"sync"
)

// Mock records mail instead of sending it. Used by tests and by
// NOTIFY_MODE=inline when SMTP_HOST is empty.
type Mock struct {
	mu   sync.Mutex
	sent []Email
	Err  error
}

func (m *Mock) Send(_ context.Context, e Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return m.Err
}

func (m *Mock) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.sent...)
}
