package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/queuedesk-io/queuedesk/internal/metrics"
	"github.com/queuedesk-io/queuedesk/internal/models"
	"github.com/queuedesk-io/queuedesk/internal/notifications"
	"github.com/queuedesk-io/queuedesk/internal/repository"
)

// queueChoiceMessage matches the inline error shown when a form submits a
// queue that is not an available choice.
const queueChoiceMessage = "Select a valid choice. That choice is not one of the available choices."

type notifierClient interface {
	Send(ctx context.Context, note notifications.TicketNote, dispatches []notifications.Dispatch) error
}

// TicketService is the intake core: it validates input, persists tickets
// with their follow-ups / carbon copies / custom field values as one
// operation, and fans out notifications. Validation failures abort before
// any write, so a rejected message leaves no partial records and sends
// nothing.
type TicketService struct {
	queues   repository.QueueStore
	tickets  repository.TicketStore
	fields   repository.CustomFieldStore
	notifier notifierClient
	logger   *log.Logger
}

// TicketServiceOption customizes a TicketService.
type TicketServiceOption func(*TicketService)

// WithTicketServiceLogger overrides the logger used for diagnostics.
func WithTicketServiceLogger(logger *log.Logger) TicketServiceOption {
	return func(s *TicketService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewTicketService wires the intake core.
func NewTicketService(queues repository.QueueStore, tickets repository.TicketStore, fields repository.CustomFieldStore, notifier notifierClient, opts ...TicketServiceOption) *TicketService {
	s := &TicketService{
		queues:   queues,
		tickets:  tickets,
		fields:   fields,
		notifier: notifier,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTicketInput carries everything needed to open a ticket, whether
// it arrived by email or through the public form.
type CreateTicketInput struct {
	QueueID        int
	Title          string
	Body           string
	SubmitterEmail string
	Priority       int
	MessageID      string // inbound Message-ID header, empty when absent
	CC             []string
	CustomFields   map[string]string
	PublicForm     bool // enforce the queue's public-submission policy
}

// Create opens a new ticket with its initial follow-up, persists the
// carbon-copy subscriptions, and notifies the resolved recipients.
func (s *TicketService) Create(ctx context.Context, input CreateTicketInput) (*models.Ticket, error) {
	queue, err := s.queues.GetByID(ctx, input.QueueID)
	if err != nil {
		return nil, fmt.Errorf("queue lookup failed: %w", err)
	}
	if queue == nil {
		return nil, &ValidationError{Field: "queue", Message: queueChoiceMessage}
	}
	if input.PublicForm && !queue.AllowPublicSubmission {
		return nil, &ValidationError{Field: "queue", Message: queueChoiceMessage}
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "This field is required."}
	}
	submitter, err := ValidateAddress("submitter_email", input.SubmitterEmail)
	if err != nil {
		return nil, err
	}
	cc, err := ValidateAddressList("cc", input.CC)
	if err != nil {
		return nil, err
	}
	values, err := s.resolveCustomFields(ctx, queue.ID, input.CustomFields, input.PublicForm)
	if err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == 0 {
		priority = models.PriorityNormal
	}
	if priority < models.PriorityCritical || priority > models.PriorityVeryLow {
		return nil, &ValidationError{Field: "priority", Message: "Select a valid priority."}
	}

	ticket := &models.Ticket{
		QueueID:        queue.ID,
		QueueSlug:      queue.Slug,
		Title:          title,
		Description:    input.Body,
		SubmitterEmail: submitter,
		Priority:       priority,
		Status:         models.TicketStatusOpen,
	}
	followUp := &models.FollowUp{
		MessageID: strings.TrimSpace(input.MessageID),
		Title:     title,
		Body:      input.Body,
	}
	ccRecords := NewCCRecords(nil, cc)

	if err := s.tickets.CreateTicket(ctx, ticket, followUp, ccRecords, values); err != nil {
		return nil, fmt.Errorf("ticket creation failed: %w", err)
	}
	metrics.TicketsCreated.WithLabelValues(queue.Slug, channelLabel(input.PublicForm)).Inc()

	note := notifications.TicketNote{Queue: queue, Ticket: ticket, Body: input.Body}
	dispatches := ResolveRecipients(queue, ticket, cc, true)
	if err := s.notifier.Send(ctx, note, dispatches); err != nil {
		return nil, fmt.Errorf("notification dispatch failed for ticket %s: %w", ticket.TicketForURL(), err)
	}
	return ticket, nil
}

// FollowUpInput carries a threaded update for an existing ticket.
type FollowUpInput struct {
	TicketID  int
	Title     string
	Body      string
	MessageID string
	CC        []string
}

// AppendFollowUp records a follow-up on an existing ticket, persists any
// newly seen carbon-copy addresses, and notifies the update recipients.
// The submitter is not re-notified unless they appear on the Cc list.
func (s *TicketService) AppendFollowUp(ctx context.Context, input FollowUpInput) (*models.FollowUp, error) {
	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err != nil {
		return nil, fmt.Errorf("ticket lookup failed: %w", err)
	}
	if ticket == nil {
		return nil, fmt.Errorf("ticket not found: %d", input.TicketID)
	}
	queue, err := s.queues.GetByID(ctx, ticket.QueueID)
	if err != nil {
		return nil, fmt.Errorf("queue lookup failed: %w", err)
	}
	if queue == nil {
		return nil, fmt.Errorf("queue not found: %d", ticket.QueueID)
	}

	cc, err := ValidateAddressList("cc", input.CC)
	if err != nil {
		return nil, err
	}
	existing, err := s.tickets.ListCC(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("cc lookup failed: %w", err)
	}
	newRecords := NewCCRecords(existing, cc)

	followUp := &models.FollowUp{
		TicketID:  ticket.ID,
		MessageID: strings.TrimSpace(input.MessageID),
		Title:     strings.TrimSpace(input.Title),
		Body:      input.Body,
	}
	if err := s.tickets.AppendFollowUp(ctx, followUp, newRecords); err != nil {
		return nil, fmt.Errorf("follow-up creation failed: %w", err)
	}
	metrics.FollowUpsAppended.WithLabelValues(queue.Slug).Inc()

	note := notifications.TicketNote{Queue: queue, Ticket: ticket, Body: input.Body}
	dispatches := ResolveRecipients(queue, ticket, cc, false)
	if err := s.notifier.Send(ctx, note, dispatches); err != nil {
		return nil, fmt.Errorf("notification dispatch failed for ticket %s: %w", ticket.TicketForURL(), err)
	}
	return followUp, nil
}

// resolveCustomFields validates submitted custom field values against the
// queue's definitions. Required fields are only enforced for form
// submissions; email intake cannot carry them.
func (s *TicketService) resolveCustomFields(ctx context.Context, queueID int, submitted map[string]string, enforceRequired bool) ([]models.CustomFieldValue, error) {
	if s.fields == nil {
		return nil, nil
	}
	defs, err := s.fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("custom field lookup failed: %w", err)
	}

	var values []models.CustomFieldValue
	for _, def := range defs {
		if !def.AppliesTo(queueID) || def.StaffOnly {
			continue
		}
		value, ok := submitted[def.Name]
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			if def.Required && enforceRequired {
				return nil, &ValidationError{Field: def.FormKey(), Message: "This field is required."}
			}
			continue
		}
		if err := checkCustomFieldValue(def, value); err != nil {
			return nil, err
		}
		values = append(values, models.CustomFieldValue{FieldName: def.Name, Value: value})
	}
	return values, nil
}

func checkCustomFieldValue(def models.CustomField, value string) error {
	if def.MaxLength > 0 && len(value) > def.MaxLength {
		return &ValidationError{
			Field:   def.FormKey(),
			Message: fmt.Sprintf("Ensure this value has at most %d characters.", def.MaxLength),
		}
	}
	switch def.DataType {
	case models.CustomFieldInteger:
		if _, err := strconv.Atoi(value); err != nil {
			return &ValidationError{Field: def.FormKey(), Message: "Enter a whole number."}
		}
	case models.CustomFieldBoolean:
		if _, err := strconv.ParseBool(value); err != nil {
			return &ValidationError{Field: def.FormKey(), Message: "Enter a valid boolean value."}
		}
	case models.CustomFieldEmail:
		if _, err := ValidateAddress(def.FormKey(), value); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return ve
			}
			return err
		}
	}
	return nil
}

func channelLabel(publicForm bool) string {
	if publicForm {
		return "web"
	}
	return "email"
}
