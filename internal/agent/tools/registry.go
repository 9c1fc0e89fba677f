// Package tools holds the fixed catalog of operations the agent can invoke.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"advisor-backend/pkg/ai"
	"advisor-backend/pkg/errs"
	"advisor-backend/pkg/hubspot"
	"advisor-backend/pkg/workspace"
)

const (
	defaultEmailLimit   = 5
	defaultContactLimit = 3
	defaultDays         = 7
	defaultDealLimit    = 10
	maxLimit            = 50
)

type executor func(ctx context.Context, userID string, args Args) (any, error)

type entry struct {
	schema ai.ToolSchema
	run    executor
}

// Registry maps each Name to its schema and executor.
type Registry struct {
	backends Backends
	order    []Name
	entries  map[Name]entry
}

func NewRegistry(b Backends) *Registry {
	r := &Registry{backends: b, entries: make(map[Name]entry)}

	r.add(SearchEmails, "Semantic search over the user's synced emails. Returns the closest matches with similarity scores.",
		props{"query": str("What to look for"), "limit": integer("Maximum number of emails (default 5)")},
		[]string{"query"}, r.searchEmails)
	r.add(SearchContacts, "Semantic search over the user's synced CRM contacts and their notes.",
		props{"query": str("Name, company or topic to look for"), "limit": integer("Maximum number of contacts (default 3)")},
		[]string{"query"}, r.searchContacts)
	r.add(SendEmail, "Send an email from the user's Gmail account.",
		props{"to": str("Recipient email address"), "subject": str("Subject line"), "body": str("Plain text body")},
		[]string{"to", "subject", "body"}, r.sendEmail)
	r.add(CreateCalendarEvent, "Create an event on the user's primary Google Calendar and invite attendees.",
		props{
			"summary":     str("Event title"),
			"start_time":  str("Start time in RFC3339, e.g. 2025-03-05T14:00:00Z"),
			"end_time":    str("End time in RFC3339"),
			"description": str("Optional description"),
			"attendees":   list("Attendee email addresses"),
		},
		[]string{"summary", "start_time", "end_time"}, r.createEvent)
	r.add(ListCalendarEvents, "List upcoming events on the user's primary calendar.",
		props{"days": integer("How many days ahead to look (default 7)")},
		nil, r.listEvents)
	r.add(SearchCalendarEvents, "Search upcoming calendar events by title, description or attendee.",
		props{"query": str("Text to match"), "days": integer("How many days ahead to look (default 7)")},
		[]string{"query"}, r.searchEvents)
	r.add(GetHubspotContact, "Look up a HubSpot contact by email address.",
		props{"email": str("Contact email address")},
		[]string{"email"}, r.getContact)
	r.add(CreateHubspotContact, "Create a HubSpot contact.",
		props{
			"email":     str("Contact email address"),
			"firstname": str("First name"),
			"lastname":  str("Last name"),
			"phone":     str("Phone number"),
			"company":   str("Company name"),
		},
		[]string{"email"}, r.createContact)
	r.add(CreateHubspotNote, "Attach a note to a HubSpot contact.",
		props{"contact_id": str("HubSpot contact id"), "body": str("Note text")},
		[]string{"contact_id", "body"}, r.createNote)
	r.add(ListHubspotDeals, "List deals from HubSpot.",
		props{"limit": integer("Maximum number of deals (default 10)")},
		nil, r.listDeals)

	return r
}

type props map[string]ai.Property

func str(desc string) ai.Property     { return ai.Property{Type: "string", Description: desc} }
func integer(desc string) ai.Property { return ai.Property{Type: "integer", Description: desc} }
func list(desc string) ai.Property {
	return ai.Property{Type: "array", Description: desc, Items: &ai.Property{Type: "string"}}
}

func (r *Registry) add(name Name, desc string, p props, required []string, run executor) {
	r.order = append(r.order, name)
	r.entries[name] = entry{
		schema: ai.ToolSchema{
			Name:        string(name),
			Description: desc,
			Parameters:  ai.Parameters{Type: "object", Properties: p, Required: required},
		},
		run: run,
	}
}

// Schemas returns the catalog in its fixed order.
func (r *Registry) Schemas() []ai.ToolSchema {
	out := make([]ai.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].schema)
	}
	return out
}

func (r *Registry) Has(name string) bool {
	_, ok := r.entries[Name(name)]
	return ok
}

// Execute validates required arguments and dispatches one tool call.
func (r *Registry) Execute(ctx context.Context, name string, raw any, userID string) (any, error) {
	e, ok := r.entries[Name(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownTool, name)
	}
	args, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	if missing := args.missing(e.schema.Parameters.Required); len(missing) > 0 {
		return nil, errs.Validation("%s requires %s", name, strings.Join(missing, ", "))
	}
	return e.run(ctx, userID, args)
}

// ErrorPayload is the uniform shape of a failed tool result.
func ErrorPayload(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

// Encode renders a tool result for the model. Failures use ErrorPayload.
func Encode(value any, err error) string {
	var payload any = value
	if err != nil {
		payload = ErrorPayload(err)
	}
	data, mErr := json.Marshal(payload)
	if mErr != nil {
		data, _ = json.Marshal(ErrorPayload(mErr))
	}
	return string(data)
}

func (r *Registry) notConfigured(what string) error {
	return errs.Configuration("%s backend not configured", what)
}

func clamp(n int) int {
	return min(n, maxLimit)
}

func (r *Registry) searchEmails(ctx context.Context, userID string, args Args) (any, error) {
	if r.backends.Knowledge == nil {
		return nil, r.notConfigured("knowledge")
	}
	found, err := r.backends.Knowledge.SearchEmails(ctx, userID, args.String("query"), clamp(args.Int("limit", defaultEmailLimit)))
	if err != nil {
		return nil, err
	}
	out := make([]EmailHit, 0, len(found))
	for _, s := range found {
		out = append(out, EmailHit{
			ID:         s.Record.SourceID,
			Subject:    s.Record.Subject,
			From:       s.Record.Sender,
			To:         s.Record.Recipients,
			Date:       s.Record.ReceivedAt.Format(time.RFC3339),
			Excerpt:    excerpt(s.Record.Content),
			Similarity: round2(s.Similarity),
		})
	}
	return out, nil
}

func (r *Registry) searchContacts(ctx context.Context, userID string, args Args) (any, error) {
	if r.backends.Knowledge == nil {
		return nil, r.notConfigured("knowledge")
	}
	found, err := r.backends.Knowledge.SearchContacts(ctx, userID, args.String("query"), clamp(args.Int("limit", defaultContactLimit)))
	if err != nil {
		return nil, err
	}
	out := make([]ContactHit, 0, len(found))
	for _, s := range found {
		out = append(out, ContactHit{
			ID:         s.Record.SourceID,
			Name:       s.Record.Name,
			Email:      s.Record.Email,
			Notes:      excerpt(s.Record.Notes),
			Similarity: round2(s.Similarity),
		})
	}
	return out, nil
}

func (r *Registry) sendEmail(ctx context.Context, userID string, args Args) (any, error) {
	if r.backends.Mailer == nil {
		return nil, r.notConfigured("mail")
	}
	to, err := emailAddress("to", args.String("to"))
	if err != nil {
		return nil, err
	}
	id, err := r.backends.Mailer.SendEmail(ctx, userID, to, args.String("subject"), args.String("body"))
	if err != nil {
		return nil, err
	}
	return SentEmail{ID: id, To: to, Subject: args.String("subject")}, nil
}

// emailAddress accepts one bare or named address and returns the bare form.
func emailAddress(field, value string) (string, error) {
	if strings.ContainsAny(value, "\r\n") {
		return "", errs.Validation("%s must be a single email address", field)
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", errs.Validation("%s must be an email address", field)
	}
	return addr.Address, nil
}

func (r *Registry) createEvent(ctx context.Context, userID string, args Args) (any, error) {
	if r.backends.Calendar == nil {
		return nil, r.notConfigured("calendar")
	}
	start, err := time.Parse(time.RFC3339, args.String("start_time"))
	if err != nil {
		return nil, errs.Validation("start_time must be RFC3339")
	}
	end, err := time.Parse(time.RFC3339, args.String("end_time"))
	if err != nil {
		return nil, errs.Validation("end_time must be RFC3339")
	}
	if !end.After(start) {
		return nil, errs.Validation("end_time must be after start_time")
	}
	return r.backends.Calendar.CreateEvent(ctx, userID, workspace.EventInput{
		Summary:     args.String("summary"),
		Description: args.String("description"),
		Start:       start,
		End:         end,
		Attendees:   args.Strings("attendees"),
	})
}

func (r *Registry) listEvents(ctx context.Context, userID string, args Args) (any, error) {
	if r.backends.Calendar == nil {
		return nil, r.notConfigured("calendar")
	}
	return r.backends.Calendar.ListEvents(ctx, userID, clamp(args.Int("days", defaultDays)))
}

func (r *Registry) searchEvents(ctx context.Context, userID string, args Args) (any, error) {
	if r.backends.Calendar == nil {
		return nil, r.notConfigured("calendar")
	}
	return r.backends.Calendar.SearchEvents(ctx, userID, args.String("query"), clamp(args.Int("days", defaultDays)))
}

func (r *Registry) getContact(ctx context.Context, userID string, args Args) (any, error) {
	if r.backends.CRM == nil {
		return nil, r.notConfigured("crm")
	}
	contact, err := r.backends.CRM.GetContact(ctx, userID, args.String("email"))
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, errs.NotFound("contact")
	}
	return contact, nil
}

func (r *Registry) createContact(ctx context.Context, userID string, args Args) (any, error) {
	if r.backends.CRM == nil {
		return nil, r.notConfigured("crm")
	}
	email, err := emailAddress("email", args.String("email"))
	if err != nil {
		return nil, err
	}
	return r.backends.CRM.CreateContact(ctx, userID, hubspot.ContactInput{
		Email:     email,
		FirstName: args.String("firstname"),
		LastName:  args.String("lastname"),
		Phone:     args.String("phone"),
		Company:   args.String("company"),
	})
}

func (r *Registry) createNote(ctx context.Context, userID string, args Args) (any, error) {
	if r.backends.CRM == nil {
		return nil, r.notConfigured("crm")
	}
	return r.backends.CRM.CreateNote(ctx, userID, args.String("contact_id"), args.String("body"))
}

func (r *Registry) listDeals(ctx context.Context, userID string, args Args) (any, error) {
	if r.backends.CRM == nil {
		return nil, r.notConfigured("crm")
	}
	return r.backends.CRM.ListDeals(ctx, userID, clamp(args.Int("limit", defaultDealLimit)))
}
