package service

import (
	"testing"

	"github.com/queuedesk-io/queuedesk/internal/models"
	"github.com/queuedesk-io/queuedesk/internal/notifications"
)

func recipientFixture() (*models.Queue, *models.Ticket) {
	queue := &models.Queue{
		ID:              1,
		Title:           "Queue 1",
		Slug:            "q1",
		NewTicketCC:     "new.public@example.com",
		UpdatedTicketCC: "update.public@example.com",
	}
	ticket := &models.Ticket{ID: 7, QueueID: 1, QueueSlug: "q1", SubmitterEmail: "foo@bar.example"}
	return queue, ticket
}

func TestResolveRecipientsNewTicket(t *testing.T) {
	queue, ticket := recipientFixture()
	dispatches := ResolveRecipients(queue, ticket, nil, true)
	if len(dispatches) != 3 {
		t.Fatalf("expected 3 dispatches, got %d", len(dispatches))
	}
	roles := []notifications.Role{notifications.RoleSubmitter, notifications.RoleQueueNew, notifications.RoleQueueUpdate}
	for i, role := range roles {
		if dispatches[i].Role != role {
			t.Fatalf("dispatch %d: expected role %s, got %s", i, role, dispatches[i].Role)
		}
	}
}

func TestResolveRecipientsFollowUp(t *testing.T) {
	queue, ticket := recipientFixture()
	dispatches := ResolveRecipients(queue, ticket, []string{"bravo@example.net"}, false)
	if len(dispatches) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(dispatches))
	}
	if dispatches[0].Role != notifications.RoleQueueUpdate {
		t.Fatalf("expected queue update first, got %s", dispatches[0].Role)
	}
	if dispatches[1].Role != notifications.RoleCC {
		t.Fatalf("expected cc dispatch second, got %s", dispatches[1].Role)
	}
}

func TestResolveRecipientsDropsEmptyQueueContacts(t *testing.T) {
	queue, ticket := recipientFixture()
	queue.NewTicketCC = ""
	dispatches := ResolveRecipients(queue, ticket, nil, true)
	if len(dispatches) != 2 {
		t.Fatalf("expected 2 dispatches without a new-ticket contact, got %d", len(dispatches))
	}
}

func TestResolveRecipientsDedupsAcrossRoles(t *testing.T) {
	queue, ticket := recipientFixture()
	// The submitter also appears on the Cc list and as the update contact;
	// the earliest role wins.
	queue.UpdatedTicketCC = "foo@bar.example"
	dispatches := ResolveRecipients(queue, ticket, []string{"Foo@Bar.example", "charlie@foobar.com"}, true)
	if len(dispatches) != 3 {
		t.Fatalf("expected 3 dispatches, got %d", len(dispatches))
	}
	last := dispatches[len(dispatches)-1]
	if last.Role != notifications.RoleCC || len(last.To) != 1 || last.To[0] != "charlie@foobar.com" {
		t.Fatalf("expected cc reduced to the unseen address, got %+v", last)
	}
}

func TestNewCCRecordsSkipsExisting(t *testing.T) {
	existing := []models.TicketCC{{TicketID: 7, Email: "bravo@example.net"}}
	records := NewCCRecords(existing, []string{"Bravo@Example.net", "charlie@foobar.com", "charlie@foobar.com"})
	if len(records) != 1 {
		t.Fatalf("expected 1 new record, got %d", len(records))
	}
	if records[0].Email != "charlie@foobar.com" || !records[0].CanView {
		t.Fatalf("unexpected record %+v", records[0])
	}
}
