package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
	"github.com/xeonx/timeago"

	"github.com/queuedesk-io/queuedesk/internal/models"
	"github.com/queuedesk-io/queuedesk/internal/repository"
	"github.com/queuedesk-io/queuedesk/internal/service"
)

type priorityChoice struct {
	Value int
	Label string
}

var priorityChoices = []priorityChoice{
	{models.PriorityCritical, "1. Critical"},
	{models.PriorityHigh, "2. High"},
	{models.PriorityNormal, "3. Normal"},
	{models.PriorityLow, "4. Low"},
	{models.PriorityVeryLow, "5. Very Low"},
}

// PublicHandler serves the unauthenticated submission form and the
// read-only ticket view.
type PublicHandler struct {
	queues  repository.QueueStore
	tickets repository.TicketStore
	fields  repository.CustomFieldStore
	intake  *service.TicketService
	logger  *log.Logger
}

// NewPublicHandler wires the public pages.
func NewPublicHandler(queues repository.QueueStore, tickets repository.TicketStore, fields repository.CustomFieldStore, intake *service.TicketService, logger *log.Logger) *PublicHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &PublicHandler{queues: queues, tickets: tickets, fields: fields, intake: intake, logger: logger}
}

// ShowForm renders the submission form with the publicly listed queues.
func (h *PublicHandler) ShowForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, pongo2.Context{})
}

// Submit validates the form and opens a ticket. Validation failures
// re-render the form with the error inline; nothing is persisted and no
// notification leaves on that path.
func (h *PublicHandler) Submit(c *gin.Context) {
	queueID, err := strconv.Atoi(strings.TrimSpace(c.PostForm("queue")))
	if err != nil || queueID <= 0 {
		h.renderForm(c, http.StatusOK, h.formContext(c, "Select a valid choice. That choice is not one of the available choices."))
		return
	}
	priority := models.PriorityNormal
	if raw := strings.TrimSpace(c.PostForm("priority")); raw != "" {
		if parsed, perr := strconv.Atoi(raw); perr == nil {
			priority = parsed
		}
	}

	input := service.CreateTicketInput{
		QueueID:        queueID,
		Title:          c.PostForm("title"),
		Body:           c.PostForm("body"),
		SubmitterEmail: c.PostForm("submitter_email"),
		Priority:       priority,
		CC:             splitCommaList(c.PostForm("cc")),
		CustomFields:   h.collectCustomFields(c),
		PublicForm:     true,
	}

	ticket, err := h.intake.Create(c.Request.Context(), input)
	if err != nil {
		if service.IsValidationError(err) {
			h.renderForm(c, http.StatusOK, h.formContext(c, validationMessage(err)))
			return
		}
		h.logger.Printf("public submit failed: %v", err)
		c.String(http.StatusInternalServerError, "Unable to submit your ticket right now.")
		return
	}
	c.Redirect(http.StatusFound, "/view?ticket="+ticket.TicketForURL())
}

// View renders a ticket by its public "slug-id" identifier.
func (h *PublicHandler) View(c *gin.Context) {
	ref := strings.TrimSpace(c.Query("ticket"))
	slug, id, ok := splitTicketRef(ref)
	if !ok {
		h.renderNotFound(c)
		return
	}
	ticket, err := h.tickets.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Printf("ticket lookup failed for %s: %v", ref, err)
		h.renderNotFound(c)
		return
	}
	if ticket == nil || !strings.EqualFold(ticket.QueueSlug, slug) {
		h.renderNotFound(c)
		return
	}
	queue, err := h.queues.GetByID(c.Request.Context(), ticket.QueueID)
	if err != nil || queue == nil {
		h.renderNotFound(c)
		return
	}
	followUps, err := h.tickets.ListFollowUps(c.Request.Context(), ticket.ID)
	if err != nil {
		h.logger.Printf("follow-up listing failed for %s: %v", ref, err)
	}
	ccs, err := h.tickets.ListCC(c.Request.Context(), ticket.ID)
	if err != nil {
		h.logger.Printf("cc listing failed for %s: %v", ref, err)
	}

	type followUpView struct {
		Title string
		Body  string
		When  string
	}
	views := make([]followUpView, 0, len(followUps))
	for _, fu := range followUps {
		views = append(views, followUpView{
			Title: fu.Title,
			Body:  fu.Body,
			When:  timeago.English.Format(fu.CreateTime),
		})
	}
	ccAddrs := make([]string, 0, len(ccs))
	for _, cc := range ccs {
		if cc.CanView {
			ccAddrs = append(ccAddrs, cc.Email)
		}
	}

	h.render(c, http.StatusOK, viewPage, pongo2.Context{
		"ticket_for_url": ticket.TicketForURL(),
		"title":          ticket.Title,
		"queue_title":    queue.Title,
		"status":         ticket.Status,
		"submitter":      ticket.SubmitterEmail,
		"opened":         timeago.English.Format(ticket.CreateTime),
		"followups":      views,
		"ccs":            ccAddrs,
	})
}

func (h *PublicHandler) renderForm(c *gin.Context, status int, ctx pongo2.Context) {
	queues, err := h.queues.List(c.Request.Context())
	if err != nil {
		h.logger.Printf("queue listing failed: %v", err)
	}
	public := make([]models.Queue, 0, len(queues))
	for _, q := range queues {
		if q.AllowPublicSubmission {
			public = append(public, q)
		}
	}
	if ctx == nil {
		ctx = pongo2.Context{}
	}
	ctx["queues"] = public
	ctx["priorities"] = priorityChoices
	if _, ok := ctx["priority"]; !ok {
		ctx["priority"] = models.PriorityNormal
	}
	ctx["fields"] = h.formFields(c)
	h.render(c, status, formPage, ctx)
}

type formField struct {
	Key   string
	Label string
	Value string
}

func (h *PublicHandler) formFields(c *gin.Context) []formField {
	if h.fields == nil {
		return nil
	}
	defs, err := h.fields.List(c.Request.Context())
	if err != nil {
		h.logger.Printf("custom field listing failed: %v", err)
		return nil
	}
	out := make([]formField, 0, len(defs))
	for _, def := range defs {
		if def.StaffOnly {
			continue
		}
		out = append(out, formField{
			Key:   def.FormKey(),
			Label: def.Label,
			Value: c.PostForm(def.FormKey()),
		})
	}
	return out
}

func (h *PublicHandler) formContext(c *gin.Context, errMsg string) pongo2.Context {
	ctx := pongo2.Context{
		"error":           errMsg,
		"title":           c.PostForm("title"),
		"body":            c.PostForm("body"),
		"submitter_email": c.PostForm("submitter_email"),
		"cc":              c.PostForm("cc"),
	}
	if queueID, err := strconv.Atoi(c.PostForm("queue")); err == nil {
		ctx["selected_queue"] = queueID
	}
	if priority, err := strconv.Atoi(c.PostForm("priority")); err == nil {
		ctx["priority"] = priority
	}
	return ctx
}

func (h *PublicHandler) collectCustomFields(c *gin.Context) map[string]string {
	if h.fields == nil {
		return nil
	}
	defs, err := h.fields.List(c.Request.Context())
	if err != nil {
		h.logger.Printf("custom field listing failed: %v", err)
		return nil
	}
	values := make(map[string]string)
	for _, def := range defs {
		if def.StaffOnly {
			continue
		}
		if v := c.PostForm(def.FormKey()); v != "" {
			values[def.Name] = v
		}
	}
	return values
}

func (h *PublicHandler) renderNotFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, notFoundPage, pongo2.Context{})
}

func (h *PublicHandler) render(c *gin.Context, status int, tmpl *pongo2.Template, ctx pongo2.Context) {
	out, err := tmpl.Execute(ctx)
	if err != nil {
		h.logger.Printf("template render failed: %v", err)
		c.String(http.StatusInternalServerError, "template error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", []byte(out))
}

func validationMessage(err error) string {
	var ve *service.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	return ve.Message
}

func splitCommaList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitTicketRef parses "slug-id"; the id is everything after the last
// dash because slugs may themselves contain dashes.
func splitTicketRef(ref string) (string, int, bool) {
	dash := strings.LastIndex(ref, "-")
	if dash <= 0 || dash == len(ref)-1 {
		return "", 0, false
	}
	id, err := strconv.Atoi(ref[dash+1:])
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return ref[:dash], id, true
}
