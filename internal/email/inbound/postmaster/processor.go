package postmaster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/queuedesk-io/queuedesk/internal/email/inbound/connector"
	"github.com/queuedesk-io/queuedesk/internal/metrics"
	"github.com/queuedesk-io/queuedesk/internal/models"
	"github.com/queuedesk-io/queuedesk/internal/service"
)

// Result tracks what happened to a message.
type Result struct {
	TicketID   int
	FollowUpID int
	Action     string // new_ticket, follow_up, rejected
	Err        error
}

const (
	ActionNewTicket = "new_ticket"
	ActionFollowUp  = "follow_up"
	ActionRejected  = "rejected"
)

const defaultBodyLimit = 128 * 1024

type ticketIntake interface {
	Create(ctx context.Context, input service.CreateTicketInput) (*models.Ticket, error)
	AppendFollowUp(ctx context.Context, input service.FollowUpInput) (*models.FollowUp, error)
}

type ticketLookup interface {
	GetByID(ctx context.Context, id int) (*models.Ticket, error)
	FindByTitle(ctx context.Context, queueID int, title string) (*models.Ticket, error)
	TicketByFollowUpMessageID(ctx context.Context, messageID string) (*models.Ticket, error)
}

type queueLookup interface {
	GetByID(ctx context.Context, id int) (*models.Queue, error)
	GetBySlug(ctx context.Context, slug string) (*models.Queue, error)
}

// TicketProcessor turns fetched messages into tickets or follow-ups. A
// message joins an existing ticket when its In-Reply-To or References
// headers name a stored follow-up, when its subject carries a ticket
// identifier token, or when the reply-stripped subject exactly matches a
// ticket title in the same queue. Everything else opens a new ticket.
type TicketProcessor struct {
	intake          ticketIntake
	tickets         ticketLookup
	queues          queueLookup
	logger          *log.Logger
	fallbackQueueID int
	parser          *envelopeParser
}

// TicketProcessorOption customizes a TicketProcessor.
type TicketProcessorOption func(*TicketProcessor)

// WithTicketProcessorLogger overrides the logger used for diagnostics.
func WithTicketProcessorLogger(logger *log.Logger) TicketProcessorOption {
	return func(tp *TicketProcessor) {
		if logger != nil {
			tp.logger = logger
			tp.parser.logger = logger
		}
	}
}

// WithTicketProcessorFallbackQueue sets the queue used when an account
// carries no routing information.
func WithTicketProcessorFallbackQueue(queueID int) TicketProcessorOption {
	return func(tp *TicketProcessor) {
		if queueID > 0 {
			tp.fallbackQueueID = queueID
		}
	}
}

// WithTicketProcessorBodyLimit constrains how much of a body is stored.
func WithTicketProcessorBodyLimit(limit int64) TicketProcessorOption {
	return func(tp *TicketProcessor) {
		if limit > 0 {
			tp.parser.maxBodyBytes = limit
		}
	}
}

// NewTicketProcessor builds a processor around the intake service and
// the lookups used for correlation.
func NewTicketProcessor(intake ticketIntake, tickets ticketLookup, queues queueLookup, opts ...TicketProcessorOption) *TicketProcessor {
	tp := &TicketProcessor{
		intake:  intake,
		tickets: tickets,
		queues:  queues,
		logger:  log.Default(),
	}
	tp.parser = newEnvelopeParser(tp.logger, defaultBodyLimit)
	for _, opt := range opts {
		if opt != nil {
			opt(tp)
		}
	}
	return tp
}

// Handle implements connector.Handler.
func (tp *TicketProcessor) Handle(ctx context.Context, msg *connector.FetchedMessage) error {
	_, err := tp.Process(ctx, msg)
	return err
}

// Process parses the message, correlates it against existing tickets,
// and either appends a follow-up or opens a new ticket.
func (tp *TicketProcessor) Process(ctx context.Context, msg *connector.FetchedMessage) (Result, error) {
	if msg == nil {
		return Result{}, errors.New("intake: message required")
	}
	if tp == nil || tp.intake == nil {
		return Result{}, errors.New("intake: ticket service unavailable")
	}

	queue, err := tp.resolveQueue(ctx, msg)
	if err != nil {
		return Result{}, err
	}

	env := tp.parser.parse(msg.Raw)
	title := strings.TrimSpace(env.Subject)
	if title == "" {
		title = tp.defaultSubject(msg)
	}

	if ticket := tp.resolveFollowUpTicket(ctx, queue, &env); ticket != nil {
		followUp, err := tp.intake.AppendFollowUp(ctx, service.FollowUpInput{
			TicketID:  ticket.ID,
			Title:     title,
			Body:      env.Body,
			MessageID: env.MessageID,
			CC:        env.CC,
		})
		if err != nil {
			return tp.reject(msg, err)
		}
		tp.logf("intake: appended follow-up %d to ticket %s", followUp.ID, ticket.TicketForURL())
		metrics.MailMessagesProcessed.WithLabelValues(ActionFollowUp).Inc()
		return Result{TicketID: ticket.ID, FollowUpID: followUp.ID, Action: ActionFollowUp}, nil
	}

	ticket, err := tp.intake.Create(ctx, service.CreateTicketInput{
		QueueID:        queue.ID,
		Title:          title,
		Body:           env.Body,
		SubmitterEmail: env.From,
		MessageID:      env.MessageID,
		CC:             env.CC,
	})
	if err != nil {
		return tp.reject(msg, err)
	}
	tp.logf("intake: opened ticket %s", ticket.TicketForURL())
	metrics.MailMessagesProcessed.WithLabelValues(ActionNewTicket).Inc()
	return Result{TicketID: ticket.ID, Action: ActionNewTicket}, nil
}

func (tp *TicketProcessor) reject(msg *connector.FetchedMessage, err error) (Result, error) {
	tp.logf("intake: rejected message %s: %v", msg.UID, err)
	metrics.MailMessagesProcessed.WithLabelValues(ActionRejected).Inc()
	return Result{Action: ActionRejected, Err: err}, err
}

func (tp *TicketProcessor) resolveQueue(ctx context.Context, msg *connector.FetchedMessage) (*models.Queue, error) {
	acc := msg.AccountSnapshot()
	if acc.QueueID > 0 {
		queue, err := tp.queues.GetByID(ctx, acc.QueueID)
		if err != nil {
			return nil, fmt.Errorf("intake: queue lookup failed: %w", err)
		}
		if queue != nil {
			return queue, nil
		}
	}
	if acc.QueueSlug != "" {
		queue, err := tp.queues.GetBySlug(ctx, acc.QueueSlug)
		if err != nil {
			return nil, fmt.Errorf("intake: queue lookup failed: %w", err)
		}
		if queue != nil {
			return queue, nil
		}
	}
	if tp.fallbackQueueID > 0 {
		queue, err := tp.queues.GetByID(ctx, tp.fallbackQueueID)
		if err != nil {
			return nil, fmt.Errorf("intake: queue lookup failed: %w", err)
		}
		if queue != nil {
			return queue, nil
		}
	}
	return nil, errors.New("intake: queue routing unavailable")
}

// resolveFollowUpTicket tries the correlation strategies in precedence
// order: threading headers, subject identifier token, exact title match.
func (tp *TicketProcessor) resolveFollowUpTicket(ctx context.Context, queue *models.Queue, env *Envelope) *models.Ticket {
	if tp.tickets == nil || env == nil {
		return nil
	}
	for _, id := range env.ReferenceIDs {
		ticket, err := tp.tickets.TicketByFollowUpMessageID(ctx, id)
		if err != nil {
			tp.logf("intake: references lookup failed for %s: %v", id, err)
			return nil
		}
		if ticket != nil {
			tp.logf("intake: matched follow-up via message-id %s", id)
			return ticket
		}
	}

	subject := stripReplyPrefixes(env.Subject)
	if ticket := tp.resolveBySubjectToken(ctx, subject); ticket != nil {
		return ticket
	}
	if subject == "" {
		return nil
	}
	ticket, err := tp.tickets.FindByTitle(ctx, queue.ID, subject)
	if err != nil {
		tp.logf("intake: title lookup failed for %q: %v", subject, err)
		return nil
	}
	if ticket != nil {
		tp.logf("intake: matched follow-up via title %q", subject)
	}
	return ticket
}

var ticketTokenPattern = regexp.MustCompile(`\[?([A-Za-z][A-Za-z0-9_-]*)-(\d+)\]?`)

func (tp *TicketProcessor) resolveBySubjectToken(ctx context.Context, subject string) *models.Ticket {
	for _, match := range ticketTokenPattern.FindAllStringSubmatch(subject, -1) {
		slug := match[1]
		id, err := strconv.Atoi(match[2])
		if err != nil || id <= 0 {
			continue
		}
		ticket, lookupErr := tp.tickets.GetByID(ctx, id)
		if lookupErr != nil {
			tp.logf("intake: token lookup failed for %s-%d: %v", slug, id, lookupErr)
			return nil
		}
		// The token only counts when its slug half names the ticket's
		// queue, otherwise "v2-10" in a subject would hijack ticket 10.
		if ticket != nil && strings.EqualFold(ticket.QueueSlug, slug) {
			tp.logf("intake: matched follow-up via token %s-%d", slug, id)
			return ticket
		}
	}
	return nil
}

var replyPrefixPattern = regexp.MustCompile(`(?i)^(re|fwd?|aw|sv)\s*:\s*`)

func stripReplyPrefixes(subject string) string {
	subject = strings.TrimSpace(subject)
	for {
		stripped := replyPrefixPattern.ReplaceAllString(subject, "")
		if stripped == subject {
			return subject
		}
		subject = strings.TrimSpace(stripped)
	}
}

func (tp *TicketProcessor) defaultSubject(msg *connector.FetchedMessage) string {
	if msg.RemoteID != "" {
		return fmt.Sprintf("Inbound email %s", msg.RemoteID)
	}
	if msg.UID != "" {
		return fmt.Sprintf("Inbound email %s", msg.UID)
	}
	return "Inbound email"
}

func (tp *TicketProcessor) logf(format string, args ...any) {
	if tp == nil || tp.logger == nil {
		return
	}
	tp.logger.Printf(format, args...)
}
