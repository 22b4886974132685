package repository

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuedesk-io/queuedesk/internal/models"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, EnsureSchema(db))
	return db
}

func seedQueue(t *testing.T, db *sqlx.DB, slug string) *models.Queue {
	t.Helper()
	queue := &models.Queue{
		Title:                 "Queue " + slug,
		Slug:                  slug,
		EmailAddress:          slug + "@helpdesk.example",
		AllowPublicSubmission: true,
	}
	require.NoError(t, NewQueueRepository(db).Create(context.Background(), queue))
	return queue
}

func TestTicketRepositoryCreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	queue := seedQueue(t, db, "q1")
	repo := NewTicketRepository(db)

	ticket := &models.Ticket{
		QueueID:        queue.ID,
		Title:          "Test Ticket",
		Description:    "Some Test Ticket",
		SubmitterEmail: "foo@bar.example",
	}
	followUp := &models.FollowUp{MessageID: "mid-1", Title: "Test Ticket", Body: "Some Test Ticket"}
	ccs := []models.TicketCC{
		{Email: "bravo@example.net", CanView: true},
		{Email: "charlie@foobar.com", CanView: true},
	}
	require.NoError(t, repo.CreateTicket(ctx, ticket, followUp, ccs, nil))
	require.NotZero(t, ticket.ID)
	require.NotZero(t, followUp.ID)

	loaded, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "q1", loaded.QueueSlug)
	assert.Equal(t, ticket.TicketForURL(), loaded.TicketForURL())
	assert.Equal(t, models.TicketStatusOpen, loaded.Status)

	byMessage, err := repo.TicketByFollowUpMessageID(ctx, "mid-1")
	require.NoError(t, err)
	require.NotNil(t, byMessage)
	assert.Equal(t, ticket.ID, byMessage.ID)

	byTitle, err := repo.FindByTitle(ctx, queue.ID, "test ticket")
	require.NoError(t, err)
	require.NotNil(t, byTitle)
	assert.Equal(t, ticket.ID, byTitle.ID)

	stored, err := repo.ListCC(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestTicketRepositoryAppendFollowUpDedupesCC(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	queue := seedQueue(t, db, "q1")
	repo := NewTicketRepository(db)

	ticket := &models.Ticket{QueueID: queue.ID, Title: "Thread"}
	require.NoError(t, repo.CreateTicket(ctx, ticket, &models.FollowUp{Body: "first", MessageID: "mid-1"},
		[]models.TicketCC{{Email: "bravo@example.net", CanView: true}}, nil))

	reply := &models.FollowUp{TicketID: ticket.ID, MessageID: "mid-2", Body: "second"}
	require.NoError(t, repo.AppendFollowUp(ctx, reply, []models.TicketCC{
		{Email: "Bravo@example.net", CanView: true},
		{Email: "charlie@foobar.com", CanView: true},
	}))

	stored, err := repo.ListCC(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	followUps, err := repo.ListFollowUps(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, followUps, 2)
	assert.Equal(t, "mid-2", followUps[1].MessageID)
}

func TestTicketRepositoryLookupMisses(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedQueue(t, db, "q1")
	repo := NewTicketRepository(db)

	ticket, err := repo.GetByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, ticket)

	ticket, err = repo.TicketByFollowUpMessageID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, ticket)
}

func TestCustomFieldRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewCustomFieldRepository(db)

	field := &models.CustomField{
		Name:      "textfield",
		Label:     "Text Field",
		DataType:  models.CustomFieldText,
		MaxLength: 100,
		Ordering:  10,
	}
	require.NoError(t, repo.Create(ctx, field))
	require.NotZero(t, field.ID)

	fields, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "textfield", fields[0].Name)

	require.NoError(t, repo.Delete(ctx, "textfield"))
	fields, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, fields)
}
