package notifications

import (
	"context"
	"sync"
)

// EmailMessage is one outbound notification.
type EmailMessage struct {
	To        []string
	Subject   string
	Body      string
	HTML      bool
	MessageID string
}

// EmailProvider dispatches outbound messages.
type EmailProvider interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// MemoryOutbox is an EmailProvider that records every dispatched message
// in order. Tests assert against its sequence; development profiles use it
// in place of a real transport.
type MemoryOutbox struct {
	mu       sync.Mutex
	messages []EmailMessage
}

// NewMemoryOutbox creates an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

// Send appends the message to the outbox.
func (o *MemoryOutbox) Send(_ context.Context, msg EmailMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of the dispatched sequence.
func (o *MemoryOutbox) Messages() []EmailMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]EmailMessage, len(o.messages))
	copy(out, o.messages)
	return out
}

// Len reports how many messages have been dispatched.
func (o *MemoryOutbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}

// Reset clears the outbox.
func (o *MemoryOutbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = nil
}
