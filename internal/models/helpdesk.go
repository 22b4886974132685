package models

import (
	"fmt"
	"time"
)

// Ticket status values. A ticket is opened on creation and stays open
// across follow-ups; closing is an agent-side operation.
const (
	TicketStatusOpen   = "open"
	TicketStatusClosed = "closed"
)

// Priority levels, 1 (critical) through 5 (very low). 3 is the default
// for public submissions.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityNormal   = 3
	PriorityLow      = 4
	PriorityVeryLow  = 5
)

// Queue is a ticket routing destination with its own inbound mailbox
// address and public-submission policy.
type Queue struct {
	ID                    int       `json:"id" db:"id"`
	Title                 string    `json:"title" db:"title"`
	Slug                  string    `json:"slug" db:"slug"`
	EmailAddress          string    `json:"email_address" db:"email_address"`
	AllowPublicSubmission bool      `json:"allow_public_submission" db:"allow_public_submission"`
	NewTicketCC           string    `json:"new_ticket_cc" db:"new_ticket_cc"`
	UpdatedTicketCC       string    `json:"updated_ticket_cc" db:"updated_ticket_cc"`
	CreateTime            time.Time `json:"create_time" db:"create_time"`
	ChangeTime            time.Time `json:"change_time" db:"change_time"`
}

// Ticket is the primary trackable support request record.
type Ticket struct {
	ID             int       `json:"id" db:"id"`
	QueueID        int       `json:"queue_id" db:"queue_id"`
	QueueSlug      string    `json:"queue_slug" db:"queue_slug"` // joined from queues
	Title          string    `json:"title" db:"title"`
	Description    string    `json:"description" db:"description"`
	SubmitterEmail string    `json:"submitter_email" db:"submitter_email"`
	Priority       int       `json:"priority" db:"priority"`
	Status         string    `json:"status" db:"status"`
	CreateTime     time.Time `json:"create_time" db:"create_time"`
	ChangeTime     time.Time `json:"change_time" db:"change_time"`
}

// TicketForURL returns the public identifier "<queue.slug>-<id>". It is
// always derived from identity, never stored.
func (t *Ticket) TicketForURL() string {
	return fmt.Sprintf("%s-%d", t.QueueSlug, t.ID)
}

// FollowUp is a threaded update attached to exactly one ticket. MessageID
// is empty when the inbound mail carried no Message-ID header; such
// follow-ups are located through their ticket instead.
type FollowUp struct {
	ID         int       `json:"id" db:"id"`
	TicketID   int       `json:"ticket_id" db:"ticket_id"`
	MessageID  string    `json:"message_id" db:"message_id"`
	Title      string    `json:"title" db:"title"`
	Body       string    `json:"body" db:"body"`
	CreateTime time.Time `json:"create_time" db:"create_time"`
}

// TicketCC is a carbon-copy subscription. At most one record exists per
// (ticket, email) pair.
type TicketCC struct {
	ID       int    `json:"id" db:"id"`
	TicketID int    `json:"ticket_id" db:"ticket_id"`
	Email    string `json:"email" db:"email"`
	CanView  bool   `json:"can_view" db:"can_view"`
}

// CustomFieldType enumerates the supported custom field data types.
type CustomFieldType string

const (
	CustomFieldText    CustomFieldType = "text"
	CustomFieldInteger CustomFieldType = "integer"
	CustomFieldBoolean CustomFieldType = "boolean"
	CustomFieldEmail   CustomFieldType = "email"
)

// CustomField is an administrator-defined extra ticket attribute. QueueID
// scopes the field to a single queue; nil applies it to every queue.
type CustomField struct {
	ID        int             `json:"id" db:"id"`
	QueueID   *int            `json:"queue_id,omitempty" db:"queue_id"`
	Name      string          `json:"name" db:"name"`
	Label     string          `json:"label" db:"label"`
	DataType  CustomFieldType `json:"data_type" db:"data_type"`
	MaxLength int             `json:"max_length" db:"max_length"`
	Ordering  int             `json:"ordering" db:"ordering"`
	Required  bool            `json:"required" db:"required"`
	StaffOnly bool            `json:"staff_only" db:"staff_only"`
}

// FormKey is the form input name carrying this field's value.
func (f CustomField) FormKey() string {
	return "custom_" + f.Name
}

// AppliesTo reports whether the field is collected for the given queue.
func (f CustomField) AppliesTo(queueID int) bool {
	return f.QueueID == nil || *f.QueueID == queueID
}

// CustomFieldValue is a persisted value for one custom field on one ticket.
type CustomFieldValue struct {
	ID        int    `json:"id" db:"id"`
	TicketID  int    `json:"ticket_id" db:"ticket_id"`
	FieldName string `json:"field_name" db:"field_name"`
	Value     string `json:"value" db:"value"`
}
