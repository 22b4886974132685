package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/queuedesk-io/queuedesk/internal/models"
)

// TicketRepository handles database operations for tickets, follow-ups,
// carbon-copy subscriptions, and custom field values.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `t.id, t.queue_id, q.slug AS queue_slug, t.title, t.description,
		t.submitter_email, t.priority, t.status, t.create_time, t.change_time`

// CreateTicket inserts the ticket plus its initial follow-up, carbon-copy
// subscriptions, and custom field values in one transaction.
func (r *TicketRepository) CreateTicket(ctx context.Context, ticket *models.Ticket, followUp *models.FollowUp, ccs []models.TicketCC, values []models.CustomFieldValue) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	ticket.CreateTime = now
	ticket.ChangeTime = now
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusOpen
	}
	if ticket.Priority == 0 {
		ticket.Priority = models.PriorityNormal
	}

	insertTicket := r.db.Rebind(`
		INSERT INTO tickets (
			queue_id, title, description, submitter_email,
			priority, status, create_time, change_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	ticketID, err := insertReturningID(ctx, r.db, tx, insertTicket,
		ticket.QueueID, ticket.Title, ticket.Description, ticket.SubmitterEmail,
		ticket.Priority, ticket.Status, ticket.CreateTime, ticket.ChangeTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	ticket.ID = ticketID

	if followUp != nil {
		followUp.TicketID = ticketID
		if err := r.insertFollowUp(ctx, tx, followUp); err != nil {
			return err
		}
	}
	for i := range ccs {
		ccs[i].TicketID = ticketID
		if err := r.insertCC(ctx, tx, &ccs[i]); err != nil {
			return err
		}
	}
	for i := range values {
		values[i].TicketID = ticketID
		if err := r.insertValue(ctx, tx, &values[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticket: %w", err)
	}
	return nil
}

// AppendFollowUp inserts a follow-up and any not-yet-present carbon-copy
// subscriptions in one transaction.
func (r *TicketRepository) AppendFollowUp(ctx context.Context, followUp *models.FollowUp, newCCs []models.TicketCC) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := r.insertFollowUp(ctx, tx, followUp); err != nil {
		return err
	}
	touch := r.db.Rebind(`UPDATE tickets SET change_time = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, touch, followUp.CreateTime, followUp.TicketID); err != nil {
		return fmt.Errorf("failed to touch ticket %d: %w", followUp.TicketID, err)
	}
	for i := range newCCs {
		newCCs[i].TicketID = followUp.TicketID
		if err := r.insertCC(ctx, tx, &newCCs[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit follow-up: %w", err)
	}
	return nil
}

func (r *TicketRepository) insertFollowUp(ctx context.Context, tx *sqlx.Tx, followUp *models.FollowUp) error {
	if followUp.CreateTime.IsZero() {
		followUp.CreateTime = time.Now()
	}
	query := r.db.Rebind(`
		INSERT INTO follow_ups (ticket_id, message_id, title, body, create_time)
		VALUES (?, ?, ?, ?, ?)`)
	id, err := insertReturningID(ctx, r.db, tx, query,
		followUp.TicketID, followUp.MessageID, followUp.Title, followUp.Body, followUp.CreateTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create follow-up: %w", err)
	}
	followUp.ID = id
	return nil
}

func (r *TicketRepository) insertCC(ctx context.Context, tx *sqlx.Tx, cc *models.TicketCC) error {
	// Uniqueness invariant: at most one record per (ticket, email).
	var existingID int
	check := r.db.Rebind(`SELECT id FROM ticket_ccs WHERE ticket_id = ? AND LOWER(email) = LOWER(?)`)
	err := tx.GetContext(ctx, &existingID, check, cc.TicketID, cc.Email)
	if err == nil {
		cc.ID = existingID
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check ticket cc: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO ticket_ccs (ticket_id, email, can_view)
		VALUES (?, ?, ?)`)
	id, err := insertReturningID(ctx, r.db, tx, query, cc.TicketID, cc.Email, cc.CanView)
	if err != nil {
		return fmt.Errorf("failed to create ticket cc: %w", err)
	}
	cc.ID = id
	return nil
}

func (r *TicketRepository) insertValue(ctx context.Context, tx *sqlx.Tx, value *models.CustomFieldValue) error {
	query := r.db.Rebind(`
		INSERT INTO custom_field_values (ticket_id, field_name, value)
		VALUES (?, ?, ?)`)
	id, err := insertReturningID(ctx, r.db, tx, query, value.TicketID, value.FieldName, value.Value)
	if err != nil {
		return fmt.Errorf("failed to create custom field value: %w", err)
	}
	value.ID = id
	return nil
}

// GetByID retrieves a ticket by id, (nil, nil) when absent.
func (r *TicketRepository) GetByID(ctx context.Context, id int) (*models.Ticket, error) {
	var ticket models.Ticket
	query := r.db.Rebind(`
		SELECT ` + ticketColumns + `
		FROM tickets t JOIN queues q ON q.id = t.queue_id
		WHERE t.id = ?`)
	err := r.db.GetContext(ctx, &ticket, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket %d: %w", id, err)
	}
	return &ticket, nil
}

// FindByTitle returns the most recent ticket with the given title in a
// queue, (nil, nil) when none matches.
func (r *TicketRepository) FindByTitle(ctx context.Context, queueID int, title string) (*models.Ticket, error) {
	var ticket models.Ticket
	query := r.db.Rebind(`
		SELECT ` + ticketColumns + `
		FROM tickets t JOIN queues q ON q.id = t.queue_id
		WHERE t.queue_id = ? AND LOWER(t.title) = LOWER(?)
		ORDER BY t.id DESC LIMIT 1`)
	err := r.db.GetContext(ctx, &ticket, query, queueID, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket by title: %w", err)
	}
	return &ticket, nil
}

// TicketByFollowUpMessageID resolves the ticket owning a follow-up with
// the given message-id, (nil, nil) when no follow-up matches.
func (r *TicketRepository) TicketByFollowUpMessageID(ctx context.Context, messageID string) (*models.Ticket, error) {
	if messageID == "" {
		return nil, nil
	}
	var ticket models.Ticket
	query := r.db.Rebind(`
		SELECT ` + ticketColumns + `
		FROM tickets t
		JOIN queues q ON q.id = t.queue_id
		JOIN follow_ups f ON f.ticket_id = t.id
		WHERE f.message_id = ?
		ORDER BY f.id LIMIT 1`)
	err := r.db.GetContext(ctx, &ticket, query, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket by message-id: %w", err)
	}
	return &ticket, nil
}

// ListFollowUps returns a ticket's follow-ups in creation order.
func (r *TicketRepository) ListFollowUps(ctx context.Context, ticketID int) ([]models.FollowUp, error) {
	var followUps []models.FollowUp
	query := r.db.Rebind(`
		SELECT id, ticket_id, message_id, title, body, create_time
		FROM follow_ups WHERE ticket_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &followUps, query, ticketID); err != nil {
		return nil, fmt.Errorf("failed to list follow-ups: %w", err)
	}
	return followUps, nil
}

// ListCC returns a ticket's carbon-copy subscriptions in creation order.
func (r *TicketRepository) ListCC(ctx context.Context, ticketID int) ([]models.TicketCC, error) {
	var ccs []models.TicketCC
	query := r.db.Rebind(`
		SELECT id, ticket_id, email, can_view
		FROM ticket_ccs WHERE ticket_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &ccs, query, ticketID); err != nil {
		return nil, fmt.Errorf("failed to list ticket ccs: %w", err)
	}
	return ccs, nil
}

// ListCustomFieldValues returns a ticket's custom field values.
func (r *TicketRepository) ListCustomFieldValues(ctx context.Context, ticketID int) ([]models.CustomFieldValue, error) {
	var values []models.CustomFieldValue
	query := r.db.Rebind(`
		SELECT id, ticket_id, field_name, value
		FROM custom_field_values WHERE ticket_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &values, query, ticketID); err != nil {
		return nil, fmt.Errorf("failed to list custom field values: %w", err)
	}
	return values, nil
}
