package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/queuedesk-io/queuedesk/internal/models"
)

// MemoryTicketRepository implements TicketStore with in-memory storage.
// This is for development/testing. Production uses the SQL implementation.
type MemoryTicketRepository struct {
	mu         sync.RWMutex
	tickets    map[int]*models.Ticket
	followUps  map[int]*models.FollowUp
	ccs        map[int]*models.TicketCC
	values     map[int]*models.CustomFieldValue
	nextTicket int
	nextFollow int
	nextCC     int
	nextValue  int
}

// NewMemoryTicketRepository creates a new in-memory ticket repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets:    make(map[int]*models.Ticket),
		followUps:  make(map[int]*models.FollowUp),
		ccs:        make(map[int]*models.TicketCC),
		values:     make(map[int]*models.CustomFieldValue),
		nextTicket: 1,
		nextFollow: 1,
		nextCC:     1,
		nextValue:  1,
	}
}

// CreateTicket stores the ticket plus its initial follow-up, carbon-copy
// subscriptions, and custom field values as one operation.
func (r *MemoryTicketRepository) CreateTicket(_ context.Context, ticket *models.Ticket, followUp *models.FollowUp, ccs []models.TicketCC, values []models.CustomFieldValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket.ID = r.nextTicket
	r.nextTicket++
	now := time.Now()
	ticket.CreateTime = now
	ticket.ChangeTime = now
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusOpen
	}
	if ticket.Priority == 0 {
		ticket.Priority = models.PriorityNormal
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied

	if followUp != nil {
		followUp.TicketID = ticket.ID
		r.insertFollowUp(followUp)
	}
	for i := range ccs {
		ccs[i].TicketID = ticket.ID
		r.insertCC(&ccs[i])
	}
	for i := range values {
		values[i].TicketID = ticket.ID
		values[i].ID = r.nextValue
		r.nextValue++
		copiedValue := values[i]
		r.values[copiedValue.ID] = &copiedValue
	}
	return nil
}

// AppendFollowUp stores a follow-up and any not-yet-present carbon-copy
// subscriptions for an existing ticket.
func (r *MemoryTicketRepository) AppendFollowUp(_ context.Context, followUp *models.FollowUp, newCCs []models.TicketCC) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, exists := r.tickets[followUp.TicketID]
	if !exists {
		return errTicketMissing(followUp.TicketID)
	}
	r.insertFollowUp(followUp)
	ticket.ChangeTime = followUp.CreateTime
	for i := range newCCs {
		newCCs[i].TicketID = followUp.TicketID
		r.insertCC(&newCCs[i])
	}
	return nil
}

func (r *MemoryTicketRepository) insertFollowUp(followUp *models.FollowUp) {
	followUp.ID = r.nextFollow
	r.nextFollow++
	if followUp.CreateTime.IsZero() {
		followUp.CreateTime = time.Now()
	}
	copied := *followUp
	r.followUps[followUp.ID] = &copied
}

func (r *MemoryTicketRepository) insertCC(cc *models.TicketCC) {
	// Uniqueness invariant: at most one record per (ticket, email).
	for _, existing := range r.ccs {
		if existing.TicketID == cc.TicketID && strings.EqualFold(existing.Email, cc.Email) {
			cc.ID = existing.ID
			return
		}
	}
	cc.ID = r.nextCC
	r.nextCC++
	copied := *cc
	r.ccs[cc.ID] = &copied
}

// GetByID retrieves a ticket by id, (nil, nil) when absent.
func (r *MemoryTicketRepository) GetByID(_ context.Context, id int) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticket, exists := r.tickets[id]
	if !exists {
		return nil, nil
	}
	copied := *ticket
	return &copied, nil
}

// FindByTitle returns the most recent ticket with the given title in a
// queue, (nil, nil) when none matches.
func (r *MemoryTicketRepository) FindByTitle(_ context.Context, queueID int, title string) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.Ticket
	for _, ticket := range r.tickets {
		if ticket.QueueID != queueID || !strings.EqualFold(ticket.Title, title) {
			continue
		}
		if found == nil || ticket.ID > found.ID {
			found = ticket
		}
	}
	if found == nil {
		return nil, nil
	}
	copied := *found
	return &copied, nil
}

// TicketByFollowUpMessageID resolves the ticket owning a follow-up with
// the given message-id, (nil, nil) when no follow-up matches.
func (r *MemoryTicketRepository) TicketByFollowUpMessageID(_ context.Context, messageID string) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if messageID == "" {
		return nil, nil
	}
	for _, followUp := range r.followUps {
		if followUp.MessageID != messageID {
			continue
		}
		if ticket, ok := r.tickets[followUp.TicketID]; ok {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, nil
}

// ListFollowUps returns a ticket's follow-ups in creation order.
func (r *MemoryTicketRepository) ListFollowUps(_ context.Context, ticketID int) ([]models.FollowUp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var followUps []models.FollowUp
	for _, followUp := range r.followUps {
		if followUp.TicketID == ticketID {
			followUps = append(followUps, *followUp)
		}
	}
	sort.Slice(followUps, func(i, j int) bool { return followUps[i].ID < followUps[j].ID })
	return followUps, nil
}

// ListCC returns a ticket's carbon-copy subscriptions in creation order.
func (r *MemoryTicketRepository) ListCC(_ context.Context, ticketID int) ([]models.TicketCC, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ccs []models.TicketCC
	for _, cc := range r.ccs {
		if cc.TicketID == ticketID {
			ccs = append(ccs, *cc)
		}
	}
	sort.Slice(ccs, func(i, j int) bool { return ccs[i].ID < ccs[j].ID })
	return ccs, nil
}

// ListCustomFieldValues returns a ticket's custom field values.
func (r *MemoryTicketRepository) ListCustomFieldValues(_ context.Context, ticketID int) ([]models.CustomFieldValue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var values []models.CustomFieldValue
	for _, value := range r.values {
		if value.TicketID == ticketID {
			values = append(values, *value)
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i].ID < values[j].ID })
	return values, nil
}

func errTicketMissing(id int) error {
	return fmt.Errorf("ticket not found: %d", id)
}
