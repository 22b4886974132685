package service

import (
	"context"
	"strings"
	"testing"

	"github.com/queuedesk-io/queuedesk/internal/models"
	"github.com/queuedesk-io/queuedesk/internal/notifications"
	"github.com/queuedesk-io/queuedesk/internal/repository"
)

type serviceFixture struct {
	queues  *repository.MemoryQueueRepository
	tickets *repository.MemoryTicketRepository
	fields  *repository.MemoryCustomFieldRepository
	outbox  *notifications.MemoryOutbox
	service *TicketService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		queues:  repository.NewMemoryQueueRepository(),
		tickets: repository.NewMemoryTicketRepository(),
		fields:  repository.NewMemoryCustomFieldRepository(),
		outbox:  notifications.NewMemoryOutbox(),
	}
	f.service = NewTicketService(f.queues, f.tickets, f.fields, notifications.NewNotifier(f.outbox))
	return f
}

func (f *serviceFixture) addQueue(t *testing.T, queue models.Queue) *models.Queue {
	t.Helper()
	if err := f.queues.Create(context.Background(), &queue); err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	return &queue
}

func publicQueue() models.Queue {
	return models.Queue{
		Title:                 "Queue 1",
		Slug:                  "q1",
		EmailAddress:          "queue-1@example.com",
		AllowPublicSubmission: true,
		NewTicketCC:           "new.public@example.com",
		UpdatedTicketCC:       "update.public@example.com",
	}
}

func TestCreateTicketNotifiesSubmitterAndQueueContacts(t *testing.T) {
	f := newServiceFixture(t)
	queue := f.addQueue(t, publicQueue())

	ticket, err := f.service.Create(context.Background(), CreateTicketInput{
		QueueID:        queue.ID,
		Title:          "Test Ticket",
		Body:           "Some Test Ticket",
		SubmitterEmail: "foo@bar.example",
		PublicForm:     true,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if ticket.ID == 0 {
		t.Fatalf("expected assigned ticket id")
	}
	if got := ticket.TicketForURL(); got != "q1-1" {
		t.Fatalf("unexpected ticket url %q", got)
	}
	// Submitter, queue new-ticket contact, queue update contact.
	if f.outbox.Len() != 3 {
		t.Fatalf("expected 3 notifications, got %d", f.outbox.Len())
	}
	msgs := f.outbox.Messages()
	if msgs[0].To[0] != "foo@bar.example" {
		t.Fatalf("expected submitter notified first, got %v", msgs[0].To)
	}
	if msgs[1].To[0] != "new.public@example.com" || msgs[2].To[0] != "update.public@example.com" {
		t.Fatalf("unexpected queue contact order: %v %v", msgs[1].To, msgs[2].To)
	}
}

func TestCreateTicketWithCCListSendsOneExtraMessage(t *testing.T) {
	f := newServiceFixture(t)
	queue := f.addQueue(t, publicQueue())

	ticket, err := f.service.Create(context.Background(), CreateTicketInput{
		QueueID:        queue.ID,
		Title:          "Test Ticket",
		Body:           "Some Test Ticket",
		SubmitterEmail: "foo@bar.example",
		CC:             []string{"bravo@example.net", "charlie@foobar.com"},
		PublicForm:     true,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// The whole Cc list goes out as one message on top of the base three.
	if f.outbox.Len() != 4 {
		t.Fatalf("expected 4 notifications, got %d", f.outbox.Len())
	}
	last := f.outbox.Messages()[3]
	if len(last.To) != 2 {
		t.Fatalf("expected cc list in one message, got %v", last.To)
	}

	ccs, err := f.tickets.ListCC(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("ListCC returned error: %v", err)
	}
	if len(ccs) != 2 {
		t.Fatalf("expected 2 cc records, got %d", len(ccs))
	}
	for _, cc := range ccs {
		if !cc.CanView {
			t.Fatalf("expected cc %s to be viewable", cc.Email)
		}
	}
}

func TestCreateTicketQueueWithoutNewContact(t *testing.T) {
	f := newServiceFixture(t)
	queue := publicQueue()
	queue.NewTicketCC = ""
	created := f.addQueue(t, queue)

	_, err := f.service.Create(context.Background(), CreateTicketInput{
		QueueID:        created.ID,
		Title:          "Test Ticket",
		Body:           "Some Test Ticket",
		SubmitterEmail: "foo@bar.example",
		PublicForm:     true,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if f.outbox.Len() != 2 {
		t.Fatalf("expected 2 notifications without a new-ticket contact, got %d", f.outbox.Len())
	}
}

func TestCreateTicketRejectsPrivateQueueFromForm(t *testing.T) {
	f := newServiceFixture(t)
	queue := publicQueue()
	queue.Slug = "private"
	queue.AllowPublicSubmission = false
	created := f.addQueue(t, queue)

	_, err := f.service.Create(context.Background(), CreateTicketInput{
		QueueID:        created.ID,
		Title:          "Private Ticket",
		Body:           "should not be created",
		SubmitterEmail: "foo@bar.example",
		PublicForm:     true,
	})
	if err == nil {
		t.Fatalf("expected validation error for private queue")
	}
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "Select a valid choice.") {
		t.Fatalf("unexpected error message: %v", err)
	}
	if f.outbox.Len() != 0 {
		t.Fatalf("expected no notifications, got %d", f.outbox.Len())
	}
}

func TestCreateTicketAllowsPrivateQueueFromEmail(t *testing.T) {
	f := newServiceFixture(t)
	queue := publicQueue()
	queue.Slug = "private"
	queue.AllowPublicSubmission = false
	created := f.addQueue(t, queue)

	// The public-submission policy only binds the web form channel.
	_, err := f.service.Create(context.Background(), CreateTicketInput{
		QueueID:        created.ID,
		Title:          "Mailed Ticket",
		Body:           "arrived by mail",
		SubmitterEmail: "foo@bar.example",
		PublicForm:     false,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
}

func TestCreateTicketInvalidCCAbortsEverything(t *testing.T) {
	f := newServiceFixture(t)
	queue := f.addQueue(t, publicQueue())

	_, err := f.service.Create(context.Background(), CreateTicketInput{
		QueueID:        queue.ID,
		Title:          "Test Ticket",
		Body:           "Some Test Ticket",
		SubmitterEmail: "foo@bar.example",
		CC:             []string{"bravo@example.net", "not-an-address"},
		PublicForm:     true,
	})
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	// One bad Cc entry must leave no ticket and send nothing.
	if ticket, _ := f.tickets.GetByID(context.Background(), 1); ticket != nil {
		t.Fatalf("expected no ticket persisted, found %d", ticket.ID)
	}
	if f.outbox.Len() != 0 {
		t.Fatalf("expected no notifications, got %d", f.outbox.Len())
	}
}

func TestCreateTicketStoresMessageID(t *testing.T) {
	f := newServiceFixture(t)
	queue := f.addQueue(t, publicQueue())

	ticket, err := f.service.Create(context.Background(), CreateTicketInput{
		QueueID:        queue.ID,
		Title:          "Mailed Ticket",
		Body:           "hello",
		SubmitterEmail: "foo@bar.example",
		MessageID:      "orig@example.com",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	found, err := f.tickets.TicketByFollowUpMessageID(context.Background(), "orig@example.com")
	if err != nil {
		t.Fatalf("lookup returned error: %v", err)
	}
	if found == nil || found.ID != ticket.ID {
		t.Fatalf("expected message-id lookup to resolve ticket %d, got %+v", ticket.ID, found)
	}
}

func TestCreateTicketValidatesCustomFields(t *testing.T) {
	f := newServiceFixture(t)
	queue := f.addQueue(t, publicQueue())
	mustCreateField := func(field models.CustomField) {
		t.Helper()
		if err := f.fields.Create(context.Background(), &field); err != nil {
			t.Fatalf("failed to create custom field: %v", err)
		}
	}
	mustCreateField(models.CustomField{Name: "dept", Label: "Department", DataType: models.CustomFieldText, Required: true})
	mustCreateField(models.CustomField{Name: "count", Label: "Count", DataType: models.CustomFieldInteger})

	base := CreateTicketInput{
		QueueID:        queue.ID,
		Title:          "Test Ticket",
		Body:           "Some Test Ticket",
		SubmitterEmail: "foo@bar.example",
		PublicForm:     true,
	}

	missing := base
	if _, err := f.service.Create(context.Background(), missing); !IsValidationError(err) {
		t.Fatalf("expected required field error, got %v", err)
	}

	badInt := base
	badInt.CustomFields = map[string]string{"dept": "support", "count": "many"}
	if _, err := f.service.Create(context.Background(), badInt); !IsValidationError(err) {
		t.Fatalf("expected integer validation error, got %v", err)
	}

	ok := base
	ok.CustomFields = map[string]string{"dept": "support", "count": "7"}
	ticket, err := f.service.Create(context.Background(), ok)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	values, err := f.tickets.ListCustomFieldValues(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("ListCustomFieldValues returned error: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected 2 stored values, got %d", len(values))
	}
}

func TestAppendFollowUpNotifiesUpdateContactAndCC(t *testing.T) {
	f := newServiceFixture(t)
	queue := f.addQueue(t, publicQueue())
	ticket, err := f.service.Create(context.Background(), CreateTicketInput{
		QueueID:        queue.ID,
		Title:          "Test Ticket",
		Body:           "Some Test Ticket",
		SubmitterEmail: "foo@bar.example",
		PublicForm:     true,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	f.outbox.Reset()

	_, err = f.service.AppendFollowUp(context.Background(), FollowUpInput{
		TicketID:  ticket.ID,
		Title:     "Re: Test Ticket",
		Body:      "Actually, thinking about it, I also need to know ...",
		MessageID: "followup@example.com",
		CC:        []string{"bravo@example.net"},
	})
	if err != nil {
		t.Fatalf("AppendFollowUp returned error: %v", err)
	}
	// Queue update contact plus the Cc list; the submitter is not
	// re-notified on updates they did not Cc themselves on.
	if f.outbox.Len() != 2 {
		t.Fatalf("expected 2 notifications, got %d", f.outbox.Len())
	}
	msgs := f.outbox.Messages()
	if msgs[0].To[0] != "update.public@example.com" {
		t.Fatalf("expected queue update contact, got %v", msgs[0].To)
	}
	if msgs[1].To[0] != "bravo@example.net" {
		t.Fatalf("expected cc recipient, got %v", msgs[1].To)
	}

	followUps, err := f.tickets.ListFollowUps(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("ListFollowUps returned error: %v", err)
	}
	if len(followUps) != 2 {
		t.Fatalf("expected initial plus threaded follow-up, got %d", len(followUps))
	}
}

func TestAppendFollowUpDoesNotDuplicateCCRecords(t *testing.T) {
	f := newServiceFixture(t)
	queue := f.addQueue(t, publicQueue())
	ticket, err := f.service.Create(context.Background(), CreateTicketInput{
		QueueID:        queue.ID,
		Title:          "Test Ticket",
		Body:           "Some Test Ticket",
		SubmitterEmail: "foo@bar.example",
		CC:             []string{"bravo@example.net"},
		PublicForm:     true,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err = f.service.AppendFollowUp(context.Background(), FollowUpInput{
			TicketID: ticket.ID,
			Title:    "Re: Test Ticket",
			Body:     "more details",
			CC:       []string{"Bravo@Example.net", "charlie@foobar.com"},
		})
		if err != nil {
			t.Fatalf("AppendFollowUp returned error: %v", err)
		}
	}

	ccs, err := f.tickets.ListCC(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("ListCC returned error: %v", err)
	}
	if len(ccs) != 2 {
		t.Fatalf("expected 2 unique cc records, got %d", len(ccs))
	}
}

func TestCreateTicketUnknownQueue(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.service.Create(context.Background(), CreateTicketInput{
		QueueID:        42,
		Title:          "Test Ticket",
		Body:           "Some Test Ticket",
		SubmitterEmail: "foo@bar.example",
		PublicForm:     true,
	})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error for unknown queue, got %v", err)
	}
}
