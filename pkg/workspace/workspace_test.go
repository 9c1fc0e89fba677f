package workspace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"advisor-backend/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func validToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "access", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
}

func TestConvertMessagePrefersPlainText(t *testing.T) {
	msg := &gmail.Message{
		Id:           "m1",
		InternalDate: 1700000000000,
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Baseball tickets"},
				{Name: "From", Value: "Sara <sara@example.com>"},
				{Name: "To", Value: "me@example.com"},
			},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>html body</p>")}},
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("plain body")}},
			},
		},
	}

	email := convertMessage(msg)
	assert.Equal(t, "Baseball tickets", email.Subject)
	assert.Equal(t, "Sara <sara@example.com>", email.From)
	assert.Equal(t, "plain body", email.Body)
	assert.Equal(t, int64(1700000000), email.ReceivedAt.Unix())
}

func TestConvertMessageStripsHTML(t *testing.T) {
	msg := &gmail.Message{
		Id: "m2",
		Payload: &gmail.MessagePart{
			MimeType: "text/html",
			Body:     &gmail.MessagePartBody{Data: encode("<div>Hello&nbsp;<b>there</b> &amp; welcome</div>")},
		},
	}
	assert.Equal(t, "Hello there & welcome", convertMessage(msg).Body)
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	msg, err := buildMessage("bob@x.com", "Hi", "body text")
	require.NoError(t, err)
	raw := string(msg)
	assert.True(t, strings.HasPrefix(raw, "To: <bob@x.com>\r\n"))
	assert.Contains(t, raw, "Subject: =?utf-8?B?SGk=?=")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nbody text"))
}

func TestBuildMessageRejectsHeaderInjection(t *testing.T) {
	for _, to := range []string{
		"bob@x.com\r\nBcc: thief@evil.test",
		"bob@x.com\nBcc: thief@evil.test",
		"not an address",
	} {
		_, err := buildMessage(to, "Hi", "body")
		assert.ErrorIs(t, err, errs.ErrValidation, to)
	}
}

func TestListRecentEmails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/gmail/v1/users/me/messages":
			_ = json.NewEncoder(w).Encode(gmail.ListMessagesResponse{Messages: []*gmail.Message{{Id: "old"}, {Id: "new"}}})
		case "/gmail/v1/users/me/messages/old":
			_ = json.NewEncoder(w).Encode(gmail.Message{Id: "old", InternalDate: 1000, Snippet: "old one"})
		case "/gmail/v1/users/me/messages/new":
			_ = json.NewEncoder(w).Encode(gmail.Message{Id: "new", InternalDate: 2000, Snippet: "new one"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewService("id", "secret", "").WithEndpoint(srv.URL + "/")
	emails, err := s.ListRecentEmails(context.Background(), validToken(), 10, "", nil)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "new", emails[0].ID)
	assert.Equal(t, "new one", emails[0].Body)
}

func TestCreateEventSendsAttendees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))
		var ev calendar.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		require.Len(t, ev.Attendees, 1)
		assert.Equal(t, "bob@x.com", ev.Attendees[0].Email)
		ev.Id = "evt1"
		_ = json.NewEncoder(w).Encode(ev)
	}))
	defer srv.Close()

	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	s := NewService("id", "secret", "").WithEndpoint(srv.URL + "/")
	ev, err := s.CreateEvent(context.Background(), validToken(), EventInput{
		Summary:   "Meeting with bob@x.com",
		Start:     start,
		End:       start.Add(time.Hour),
		Attendees: []string{"bob@x.com"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "evt1", ev.ID)
	assert.True(t, ev.Start.Equal(start))
	assert.Equal(t, []string{"bob@x.com"}, ev.Attendees)
}

func TestFilterEvents(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	events := []*Event{
		{ID: "1", Summary: "Portfolio review", Start: base.Add(2 * time.Hour)},
		{ID: "2", Summary: "Lunch", Attendees: []string{"sara@example.com"}, Start: base},
		{ID: "3", Summary: "Portfolio review prep", Start: base},
	}

	got := FilterEvents(events, "portfolio review")
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, "1", got[1].ID)

	got = FilterEvents(events, "sara")
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestParseEventTimeAllDay(t *testing.T) {
	got := parseEventTime(&calendar.EventDateTime{Date: "2026-03-10"})
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got)
	assert.True(t, parseEventTime(nil).IsZero())
}
