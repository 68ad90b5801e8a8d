package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/stack-api/internal/email"
)

// MockEmailSender records sent messages.
type MockEmailSender struct {
	SendFn func(ctx context.Context, msg email.Message) error

	mu   sync.Mutex
	Sent []email.Message
}

// Send implements email.Sender
func (m *MockEmailSender) Send(ctx context.Context, msg email.Message) error {
	if m.SendFn != nil {
		if err := m.SendFn(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	return nil
}

// Messages returns a copy of the messages sent so far.
func (m *MockEmailSender) Messages() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Message(nil), m.Sent...)
}
