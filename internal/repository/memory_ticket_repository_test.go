package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuedesk-io/queuedesk/internal/models"
)

func TestMemoryTicketRepositoryCreateTicket(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	ticket := &models.Ticket{QueueID: 1, QueueSlug: "q1", Title: "Test Ticket", SubmitterEmail: "foo@bar.example"}
	followUp := &models.FollowUp{MessageID: "abc123", Title: "Test Ticket", Body: "Some Test Ticket"}
	ccs := []models.TicketCC{
		{Email: "bravo@example.net", CanView: true},
		{Email: "charlie@foobar.com", CanView: true},
	}

	require.NoError(t, repo.CreateTicket(ctx, ticket, followUp, ccs, nil))
	assert.Equal(t, 1, ticket.ID)
	assert.Equal(t, "q1-1", ticket.TicketForURL())
	assert.Equal(t, models.TicketStatusOpen, ticket.Status)
	assert.Equal(t, models.PriorityNormal, ticket.Priority)

	found, err := repo.TicketByFollowUpMessageID(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ticket.ID, found.ID)

	stored, err := repo.ListCC(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestMemoryTicketRepositoryCCDeduplication(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	ticket := &models.Ticket{QueueID: 1, QueueSlug: "q1", Title: "Dedup"}
	ccs := []models.TicketCC{{Email: "bravo@example.net", CanView: true}}
	require.NoError(t, repo.CreateTicket(ctx, ticket, &models.FollowUp{Body: "first"}, ccs, nil))

	reply := &models.FollowUp{TicketID: ticket.ID, Body: "second"}
	again := []models.TicketCC{
		{Email: "bravo@example.net", CanView: true},
		{Email: "Bravo@Example.net", CanView: true},
		{Email: "charlie@foobar.com", CanView: true},
	}
	require.NoError(t, repo.AppendFollowUp(ctx, reply, again))

	stored, err := repo.ListCC(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2, "repeated cc addresses must not create duplicates")

	followUps, err := repo.ListFollowUps(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, followUps, 2)
}

func TestMemoryTicketRepositoryLookupMisses(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	ticket, err := repo.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, ticket)

	ticket, err = repo.TicketByFollowUpMessageID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, ticket)

	ticket, err = repo.FindByTitle(ctx, 1, "missing")
	require.NoError(t, err)
	assert.Nil(t, ticket)
}

func TestMemoryTicketRepositoryFindByTitlePrefersNewest(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	first := &models.Ticket{QueueID: 1, QueueSlug: "q1", Title: "Same Title"}
	require.NoError(t, repo.CreateTicket(ctx, first, nil, nil, nil))
	second := &models.Ticket{QueueID: 1, QueueSlug: "q1", Title: "Same Title"}
	require.NoError(t, repo.CreateTicket(ctx, second, nil, nil, nil))

	found, err := repo.FindByTitle(ctx, 1, "same title")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, second.ID, found.ID)
}
