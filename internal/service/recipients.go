package service

import (
	"strings"

	"github.com/queuedesk-io/queuedesk/internal/models"
	"github.com/queuedesk-io/queuedesk/internal/notifications"
)

// ResolveRecipients computes the deduplicated notification dispatch set
// for one intake operation. A new ticket notifies the submitter plus the
// queue's new and update contacts; a follow-up notifies only the update
// contact. The Cc list always goes out as one additional dispatch. An
// address already targeted by an earlier role is dropped from later
// dispatches, and empty dispatches are omitted.
func ResolveRecipients(queue *models.Queue, ticket *models.Ticket, ccList []string, newTicket bool) []notifications.Dispatch {
	targeted := make(map[string]struct{})
	claim := func(addr string) bool {
		key := strings.ToLower(strings.TrimSpace(addr))
		if key == "" {
			return false
		}
		if _, ok := targeted[key]; ok {
			return false
		}
		targeted[key] = struct{}{}
		return true
	}

	var dispatches []notifications.Dispatch
	single := func(role notifications.Role, addr string) {
		if claim(addr) {
			dispatches = append(dispatches, notifications.Dispatch{Role: role, To: []string{strings.TrimSpace(addr)}})
		}
	}

	if newTicket {
		single(notifications.RoleSubmitter, ticket.SubmitterEmail)
		single(notifications.RoleQueueNew, queue.NewTicketCC)
	}
	single(notifications.RoleQueueUpdate, queue.UpdatedTicketCC)

	var cc []string
	for _, addr := range ccList {
		if claim(addr) {
			cc = append(cc, addr)
		}
	}
	if len(cc) > 0 {
		dispatches = append(dispatches, notifications.Dispatch{Role: notifications.RoleCC, To: cc})
	}
	return dispatches
}

// NewCCRecords returns TicketCC records for addresses not yet subscribed
// to the ticket. Already-present addresses still receive the Cc dispatch
// but are not re-persisted.
func NewCCRecords(existing []models.TicketCC, ccList []string) []models.TicketCC {
	present := make(map[string]struct{}, len(existing))
	for _, cc := range existing {
		present[strings.ToLower(cc.Email)] = struct{}{}
	}

	var records []models.TicketCC
	for _, addr := range ccList {
		key := strings.ToLower(addr)
		if _, ok := present[key]; ok {
			continue
		}
		present[key] = struct{}{}
		records = append(records, models.TicketCC{Email: addr, CanView: true})
	}
	return records
}
