package notifications

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// Role identifies why a recipient is being notified.
type Role string

const (
	// RoleSubmitter acknowledges the submitter of a newly opened ticket.
	RoleSubmitter Role = "submitter"
	// RoleQueueNew notifies the queue's new-ticket contact address.
	RoleQueueNew Role = "queue_new"
	// RoleQueueUpdate notifies the queue's update contact address.
	RoleQueueUpdate Role = "queue_update"
	// RoleCC notifies the ticket's carbon-copy list as one message.
	RoleCC Role = "cc"
)

type roleTemplate struct {
	subject *pongo2.Template
	body    *pongo2.Template
}

// TemplateSet renders per-role notification subjects and bodies.
type TemplateSet struct {
	templates map[Role]roleTemplate
}

var defaultTemplateSources = map[Role][2]string{
	RoleSubmitter: {
		`[{{ ticket_for_url }}] {{ title }} (Opened)`,
		"Hello,\n\n" +
			"Your request has been received and assigned ticket {{ ticket_for_url }}.\n" +
			"We will contact you as soon as possible.\n\n" +
			"Title: {{ title }}\n\n{{ body }}\n\n-- \n{{ queue_title }}",
	},
	RoleQueueNew: {
		`[{{ ticket_for_url }}] {{ title }} (Opened)`,
		"A new ticket has been opened in {{ queue_title }}.\n\n" +
			"Ticket: {{ ticket_for_url }}\nSubmitter: {{ submitter }}\n\n{{ body }}",
	},
	RoleQueueUpdate: {
		`[{{ ticket_for_url }}] {{ title }} (Updated)`,
		"Ticket {{ ticket_for_url }} in {{ queue_title }} has been updated.\n\n" +
			"Submitter: {{ submitter }}\n\n{{ body }}",
	},
	RoleCC: {
		`[{{ ticket_for_url }}] {{ title }}`,
		"You are receiving this message because you are listed on ticket {{ ticket_for_url }}.\n\n" +
			"{{ body }}\n\n-- \n{{ queue_title }}",
	},
}

// DefaultTemplates returns the built-in plain-text template set.
func DefaultTemplates() *TemplateSet {
	set := &TemplateSet{templates: make(map[Role]roleTemplate, len(defaultTemplateSources))}
	for role, sources := range defaultTemplateSources {
		set.templates[role] = roleTemplate{
			subject: pongo2.Must(pongo2.FromString(sources[0])),
			body:    pongo2.Must(pongo2.FromString(sources[1])),
		}
	}
	return set
}

// Render produces the subject and body for a role.
func (s *TemplateSet) Render(role Role, ctx pongo2.Context) (string, string, error) {
	tmpl, ok := s.templates[role]
	if !ok {
		return "", "", fmt.Errorf("no template registered for role %s", role)
	}
	subject, err := tmpl.subject.Execute(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to render %s subject: %w", role, err)
	}
	body, err := tmpl.body.Execute(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to render %s body: %w", role, err)
	}
	return strings.TrimSpace(subject), body, nil
}
