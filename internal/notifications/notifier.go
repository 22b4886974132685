package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/flosch/pongo2/v6"
	"github.com/google/uuid"

	"github.com/queuedesk-io/queuedesk/internal/metrics"
	"github.com/queuedesk-io/queuedesk/internal/models"
)

// Dispatch is one resolved notification target: a role and the addresses
// it covers. A carbon-copy list is a single dispatch.
type Dispatch struct {
	Role Role
	To   []string
}

// TicketNote carries the context a notification renders from.
type TicketNote struct {
	Queue  *models.Queue
	Ticket *models.Ticket
	Body   string
}

// Notifier renders one templated email per dispatch and hands it to the
// provider. The provider's message sequence is the observable contract.
type Notifier struct {
	provider  EmailProvider
	templates *TemplateSet
	logger    *log.Logger
	newID     func() string
}

// NotifierOption customizes a Notifier.
type NotifierOption func(*Notifier)

// WithNotifierLogger overrides the logger used for diagnostics.
func WithNotifierLogger(logger *log.Logger) NotifierOption {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithNotifierTemplates overrides the rendered template set.
func WithNotifierTemplates(set *TemplateSet) NotifierOption {
	return func(n *Notifier) {
		if set != nil {
			n.templates = set
		}
	}
}

// WithNotifierMessageID overrides outbound Message-ID generation,
// primarily for tests.
func WithNotifierMessageID(fn func() string) NotifierOption {
	return func(n *Notifier) {
		if fn != nil {
			n.newID = fn
		}
	}
}

// NewNotifier builds a notifier around the given provider.
func NewNotifier(provider EmailProvider, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		provider:  provider,
		templates: DefaultTemplates(),
		logger:    log.Default(),
		newID: func() string {
			return uuid.NewString() + "@queuedesk"
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Send renders and dispatches one email per resolved dispatch, in order.
func (n *Notifier) Send(ctx context.Context, note TicketNote, dispatches []Dispatch) error {
	if n == nil || n.provider == nil {
		return errors.New("notifications: provider unavailable")
	}
	if note.Ticket == nil || note.Queue == nil {
		return errors.New("notifications: ticket and queue required")
	}

	tctx := pongo2.Context{
		"ticket_for_url": note.Ticket.TicketForURL(),
		"title":          note.Ticket.Title,
		"body":           note.Body,
		"submitter":      note.Ticket.SubmitterEmail,
		"queue_title":    note.Queue.Title,
		"queue_slug":     note.Queue.Slug,
	}

	for _, dispatch := range dispatches {
		if len(dispatch.To) == 0 {
			continue
		}
		subject, body, err := n.templates.Render(dispatch.Role, tctx)
		if err != nil {
			return err
		}
		msg := EmailMessage{
			To:        dispatch.To,
			Subject:   subject,
			Body:      body,
			MessageID: n.newID(),
		}
		if err := n.provider.Send(ctx, msg); err != nil {
			return fmt.Errorf("failed to notify %s: %w", dispatch.Role, err)
		}
		metrics.NotificationsSent.WithLabelValues(string(dispatch.Role)).Inc()
	}
	return nil
}
