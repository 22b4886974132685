package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicketsCreated counts new tickets by queue slug and intake channel
	// (email or web).
	TicketsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queuedesk_tickets_created_total",
		Help: "Number of tickets created, by queue and intake channel.",
	}, []string{"queue", "channel"})

	// FollowUpsAppended counts follow-ups appended to existing tickets.
	FollowUpsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queuedesk_followups_appended_total",
		Help: "Number of follow-ups appended to existing tickets, by queue.",
	}, []string{"queue"})

	// NotificationsSent counts dispatched notification emails by role.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queuedesk_notifications_sent_total",
		Help: "Number of notification emails dispatched, by recipient role.",
	}, []string{"role"})

	// MailMessagesProcessed counts inbound email outcomes.
	MailMessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queuedesk_mail_messages_processed_total",
		Help: "Number of inbound mail messages processed, by action.",
	}, []string{"action"})
)
