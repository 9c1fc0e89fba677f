package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"advisor-backend/internal/knowledge/domain"
	"advisor-backend/pkg/errs"
	"advisor-backend/pkg/hubspot"
	"advisor-backend/pkg/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	userID, to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendEmail(_ context.Context, userID, to, subject, body string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, sentMail{userID, to, subject, body})
	return "msg-1", nil
}

type fakeCalendar struct {
	created []workspace.EventInput
	days    int
}

func (c *fakeCalendar) CreateEvent(_ context.Context, _ string, in workspace.EventInput) (*workspace.Event, error) {
	c.created = append(c.created, in)
	return &workspace.Event{ID: "ev-1", Summary: in.Summary, Start: in.Start, End: in.End, Attendees: in.Attendees}, nil
}

func (c *fakeCalendar) ListEvents(_ context.Context, _ string, days int) ([]*workspace.Event, error) {
	c.days = days
	return nil, nil
}

func (c *fakeCalendar) SearchEvents(_ context.Context, _ string, _ string, days int) ([]*workspace.Event, error) {
	c.days = days
	return nil, nil
}

type fakeKnowledge struct {
	limit int
}

func (k *fakeKnowledge) SearchEmails(_ context.Context, _ string, _ string, limit int) ([]domain.ScoredEmail, error) {
	k.limit = limit
	return []domain.ScoredEmail{{
		Record:     domain.EmailEmbedding{SourceID: "m1", Subject: "Baseball", Sender: "coach@x.com", Content: "Game on   Saturday"},
		Similarity: 0.9123,
	}}, nil
}

func (k *fakeKnowledge) SearchContacts(_ context.Context, _ string, _ string, limit int) ([]domain.ScoredContact, error) {
	k.limit = limit
	return nil, nil
}

type fakeCRM struct {
	contact *hubspot.Contact
}

func (c *fakeCRM) GetContact(_ context.Context, _ string, _ string) (*hubspot.Contact, error) {
	return c.contact, nil
}

func (c *fakeCRM) CreateContact(_ context.Context, _ string, in hubspot.ContactInput) (*hubspot.Contact, error) {
	return &hubspot.Contact{ID: "c1", Email: in.Email, FirstName: in.FirstName}, nil
}

func (c *fakeCRM) CreateNote(_ context.Context, _ string, contactID, body string) (*hubspot.Note, error) {
	return &hubspot.Note{ID: "n1", ContactID: contactID, Body: body}, nil
}

func (c *fakeCRM) ListDeals(_ context.Context, _ string, _ int) ([]*hubspot.Deal, error) {
	return []*hubspot.Deal{{ID: "d1", Name: "Renewal"}}, nil
}

func TestSchemasKeepCatalogOrder(t *testing.T) {
	r := NewRegistry(Backends{})
	schemas := r.Schemas()
	require.Len(t, schemas, 10)

	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		names = append(names, s.Name)
		assert.Equal(t, "object", s.Parameters.Type)
	}
	assert.Equal(t, []string{
		"search_emails", "search_contacts", "send_email", "create_calendar_event",
		"list_calendar_events", "search_calendar_events", "get_hubspot_contact",
		"create_hubspot_contact", "create_hubspot_note", "list_hubspot_deals",
	}, names)
	assert.Equal(t, []string{"summary", "start_time", "end_time"}, schemas[3].Parameters.Required)
	assert.Equal(t, "array", schemas[3].Parameters.Properties["attendees"].Type)
}

func TestExecuteAcceptsStringAndSymbolKeys(t *testing.T) {
	forms := map[string]any{
		"string keys": map[string]any{"to": "bob@x.com", "subject": "Hi", "body": "Hello"},
		"colon keys":  map[string]any{":to": "bob@x.com", ":subject": "Hi", ":body": "Hello"},
		"symbol keys": map[Symbol]any{"to": "bob@x.com", "subject": "Hi", "body": "Hello"},
		"mixed keys":  map[any]any{Symbol("to"): "bob@x.com", "subject": "Hi", ":body": "Hello"},
		"json":        `{"to":"bob@x.com","subject":"Hi","body":"Hello"}`,
	}

	for name, args := range forms {
		t.Run(name, func(t *testing.T) {
			mailer := &fakeMailer{}
			r := NewRegistry(Backends{Mailer: mailer})

			got, err := r.Execute(context.Background(), "send_email", args, "u1")
			require.NoError(t, err)
			assert.Equal(t, SentEmail{ID: "msg-1", To: "bob@x.com", Subject: "Hi"}, got)
			assert.Equal(t, []sentMail{{"u1", "bob@x.com", "Hi", "Hello"}}, mailer.sent)
		})
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(Backends{})
	_, err := r.Execute(context.Background(), "delete_everything", nil, "u1")
	assert.ErrorIs(t, err, errs.ErrUnknownTool)
	assert.False(t, r.Has("delete_everything"))
	assert.True(t, r.Has("send_email"))
}

func TestExecuteValidatesBeforeDispatch(t *testing.T) {
	mailer := &fakeMailer{}
	r := NewRegistry(Backends{Mailer: mailer})

	_, err := r.Execute(context.Background(), "send_email", map[string]any{"to": "bob@x.com", "subject": "  "}, "u1")
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, err.Error(), "subject, body")
	assert.Empty(t, mailer.sent)
}

func TestSendEmailRejectsMalformedRecipient(t *testing.T) {
	mailer := &fakeMailer{}
	r := NewRegistry(Backends{Mailer: mailer, CRM: &fakeCRM{}})

	for _, to := range []string{"bob@x.com\r\nBcc: thief@evil.test", "bob@x.com\nX-Evil: 1", "bob at x.com"} {
		_, err := r.Execute(context.Background(), "send_email", map[string]any{"to": to, "subject": "Hi", "body": "Hello"}, "u1")
		assert.ErrorIs(t, err, errs.ErrValidation, to)
	}
	assert.Empty(t, mailer.sent)

	_, err := r.Execute(context.Background(), "create_hubspot_contact", map[string]any{"email": "a@x.com\r\nb@y.com"}, "u1")
	assert.ErrorIs(t, err, errs.ErrValidation)

	got, err := r.Execute(context.Background(), "send_email", map[string]any{"to": "Bob <bob@x.com>", "subject": "Hi", "body": "Hello"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", got.(SentEmail).To)
}

func TestCreateEventParsesTimes(t *testing.T) {
	cal := &fakeCalendar{}
	r := NewRegistry(Backends{Calendar: cal})

	_, err := r.Execute(context.Background(), "create_calendar_event", map[string]any{
		"summary":    "Sync",
		"start_time": "2025-03-05T14:00:00Z",
		"end_time":   "2025-03-05T15:00:00Z",
		"attendees":  []any{"a@x.com", " b@x.com "},
	}, "u1")
	require.NoError(t, err)
	require.Len(t, cal.created, 1)
	assert.Equal(t, time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC), cal.created[0].Start.UTC())
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, cal.created[0].Attendees)

	_, err = r.Execute(context.Background(), "create_calendar_event", map[string]any{
		"summary": "Sync", "start_time": "tomorrow", "end_time": "2025-03-05T15:00:00Z",
	}, "u1")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = r.Execute(context.Background(), "create_calendar_event", map[string]any{
		"summary": "Sync", "start_time": "2025-03-05T15:00:00Z", "end_time": "2025-03-05T14:00:00Z",
	}, "u1")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestNumericArguments(t *testing.T) {
	cal := &fakeCalendar{}
	k := &fakeKnowledge{}
	r := NewRegistry(Backends{Calendar: cal, Knowledge: k})

	_, err := r.Execute(context.Background(), "list_calendar_events", map[string]any{"days": float64(3)}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, cal.days)

	_, err = r.Execute(context.Background(), "list_calendar_events", map[string]any{"days": "oops"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, defaultDays, cal.days)

	_, err = r.Execute(context.Background(), "search_emails", map[string]any{"query": "x", "limit": "500"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, maxLimit, k.limit)
}

func TestSearchEmailsShapesHits(t *testing.T) {
	r := NewRegistry(Backends{Knowledge: &fakeKnowledge{}})
	got, err := r.Execute(context.Background(), "search_emails", map[string]any{"query": "baseball"}, "u1")
	require.NoError(t, err)

	hits, ok := got.([]EmailHit)
	require.True(t, ok)
	require.Len(t, hits, 1)
	assert.Equal(t, 0.91, hits[0].Similarity)
	assert.Equal(t, "Game on Saturday", hits[0].Excerpt)
}

func TestGetContactMissingIsNotFound(t *testing.T) {
	r := NewRegistry(Backends{CRM: &fakeCRM{}})
	_, err := r.Execute(context.Background(), "get_hubspot_contact", map[string]any{"email": "nobody@x.com"}, "u1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMissingBackendIsConfigurationError(t *testing.T) {
	r := NewRegistry(Backends{})
	_, err := r.Execute(context.Background(), "list_hubspot_deals", nil, "u1")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestEncode(t *testing.T) {
	assert.JSONEq(t, `{"error":"boom"}`, Encode(nil, errors.New("boom")))
	assert.JSONEq(t, `{"id":"m","to":"a@x.com","subject":"s"}`, Encode(SentEmail{ID: "m", To: "a@x.com", Subject: "s"}, nil))
}

func TestSummarize(t *testing.T) {
	start := time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC)
	event := &workspace.Event{Summary: "Meeting with bob@x.com", Start: start, Attendees: []string{"bob@x.com"}}

	assert.Equal(t, `Created "Meeting with bob@x.com" on Wed Mar 5 at 2:00pm. Invited bob@x.com.`, Summarize(CreateCalendarEvent, event, nil))
	assert.Equal(t, `Email sent to a@x.com with subject "Hi".`, Summarize(SendEmail, SentEmail{To: "a@x.com", Subject: "Hi"}, nil))
	assert.Equal(t, "You have no upcoming events in that range.", Summarize(ListCalendarEvents, []*workspace.Event{}, nil))
	assert.Equal(t, "Sorry, I couldn't complete send email: boom", Summarize(SendEmail, nil, errors.New("boom")))
	assert.Equal(t, "Done: create hubspot note completed successfully.", Summarize(CreateHubspotNote, &hubspot.Note{}, nil))
}
