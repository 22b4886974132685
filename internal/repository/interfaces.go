package repository

import (
	"context"

	"github.com/queuedesk-io/queuedesk/internal/models"
)

// Lookup methods return (nil, nil) when no matching record exists; a
// non-nil error always means the lookup itself failed.

// QueueStore manages queue records.
type QueueStore interface {
	Create(ctx context.Context, queue *models.Queue) error
	GetByID(ctx context.Context, id int) (*models.Queue, error)
	GetBySlug(ctx context.Context, slug string) (*models.Queue, error)
	List(ctx context.Context) ([]models.Queue, error)
}

// TicketStore persists tickets with their follow-ups, carbon-copy
// subscriptions, and custom field values. CreateTicket and AppendFollowUp
// commit all of their records as one atomic operation.
type TicketStore interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket, followUp *models.FollowUp, ccs []models.TicketCC, values []models.CustomFieldValue) error
	AppendFollowUp(ctx context.Context, followUp *models.FollowUp, newCCs []models.TicketCC) error
	GetByID(ctx context.Context, id int) (*models.Ticket, error)
	FindByTitle(ctx context.Context, queueID int, title string) (*models.Ticket, error)
	TicketByFollowUpMessageID(ctx context.Context, messageID string) (*models.Ticket, error)
	ListFollowUps(ctx context.Context, ticketID int) ([]models.FollowUp, error)
	ListCC(ctx context.Context, ticketID int) ([]models.TicketCC, error)
	ListCustomFieldValues(ctx context.Context, ticketID int) ([]models.CustomFieldValue, error)
}

// CustomFieldStore manages custom field definitions.
type CustomFieldStore interface {
	Create(ctx context.Context, field *models.CustomField) error
	List(ctx context.Context) ([]models.CustomField, error)
	Delete(ctx context.Context, name string) error
}
