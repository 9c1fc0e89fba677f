package intent

import (
	"testing"
	"time"
	"unicode/utf8"

	"advisor-backend/internal/agent/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	now := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	return NewParser(func() time.Time { return now }, time.UTC)
}

func TestScheduleMeetingTomorrow(t *testing.T) {
	res := newTestParser().Classify("schedule a meeting with bob@x.com tomorrow at 2pm")

	require.Equal(t, DirectToolCall, res.Outcome)
	assert.Equal(t, tools.CreateCalendarEvent, res.Tool)
	assert.Equal(t, "2025-03-05T14:00:00Z", res.Args["start_time"])
	assert.Equal(t, "2025-03-05T15:00:00Z", res.Args["end_time"])
	assert.Equal(t, []string{"bob@x.com"}, res.Args["attendees"])
	assert.Equal(t, "Meeting with bob@x.com", res.Args["summary"])
}

func TestScheduleWithoutTimeNeedsClarification(t *testing.T) {
	res := newTestParser().Classify("schedule a meeting with bob@x.com")

	require.Equal(t, NeedsClarification, res.Outcome)
	assert.Empty(t, res.Tool)
	assert.Contains(t, res.Prompt, "date and time")
}

func TestScheduleMissingOnlyTime(t *testing.T) {
	res := newTestParser().Classify("Schedule a call with ann@x.com today")
	require.Equal(t, NeedsClarification, res.Outcome)
	assert.Contains(t, res.Prompt, "need the time")
}

func TestScheduleDateForms(t *testing.T) {
	p := newTestParser()
	cases := map[string]string{
		"book a meeting on 12 april at 9:30am":            "2025-04-12T09:30:00Z",
		"schedule a call on march 20th at 12pm":           "2025-03-20T12:00:00Z",
		"schedule lunch today at 12am":                    "2025-03-04T00:00:00Z",
		"set up a meeting on Jun 1 at 11 pm":              "2025-06-01T23:00:00Z",
		"schedule a review about the budget today at 4pm": "2025-03-04T16:00:00Z",
	}
	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			res := p.Classify(input)
			require.Equal(t, DirectToolCall, res.Outcome)
			assert.Equal(t, want, res.Args["start_time"])
			_, hasAttendees := res.Args["attendees"]
			assert.False(t, hasAttendees)
		})
	}
	assert.Equal(t, "The budget", p.Classify("schedule a review about the budget today at 4pm").Args["summary"])

	summary := p.Classify("schedule a meeting about école budget tomorrow at 2pm").Args["summary"]
	assert.Equal(t, "École budget", summary)
	assert.True(t, utf8.ValidString(summary.(string)))
}

func TestScheduleRejectsImpossibleDate(t *testing.T) {
	res := newTestParser().Classify("schedule a meeting on 31 february at 2pm")
	require.Equal(t, NeedsClarification, res.Outcome)
	assert.Contains(t, res.Prompt, "date")
}

func TestScheduleUsesLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC) // still March 3 in EST
	p := NewParser(func() time.Time { return now }, loc)

	res := p.Classify("schedule a meeting tomorrow at 2pm")
	require.Equal(t, DirectToolCall, res.Outcome)
	assert.Equal(t, "2025-03-04T14:00:00-05:00", res.Args["start_time"])
}

func TestListEvents(t *testing.T) {
	p := newTestParser()
	cases := map[string]int{
		"What's on my calendar today?":        1,
		"show me my meetings tomorrow":        2,
		"list my events for the next 14 days": 14,
		"what do i have on my schedule":       7,
	}
	for input, days := range cases {
		res := p.Classify(input)
		require.Equal(t, DirectToolCall, res.Outcome, input)
		assert.Equal(t, tools.ListCalendarEvents, res.Tool)
		assert.Equal(t, days, res.Args["days"], input)
	}
}

// Any calendar question phrased as "what is ... meetings" is answered from the
// calendar listing without a model turn, even when it asks about something else.
func TestListEventsCatchesBroadCalendarQuestions(t *testing.T) {
	res := newTestParser().Classify("What is the status of my meetings with Bob?")
	require.Equal(t, DirectToolCall, res.Outcome)
	assert.Equal(t, tools.ListCalendarEvents, res.Tool)
	assert.Equal(t, 7, res.Args["days"])
}

func TestSendEmail(t *testing.T) {
	res := newTestParser().Classify("Send an email to bob@x.com subject: Lunch saying See you at noon")

	require.Equal(t, DirectToolCall, res.Outcome)
	assert.Equal(t, tools.SendEmail, res.Tool)
	assert.Equal(t, map[string]any{"to": "bob@x.com", "subject": "Lunch", "body": "See you at noon"}, res.Args)
}

func TestSendEmailAboutMarker(t *testing.T) {
	res := newTestParser().Classify("email ann@x.com about the Q3 report that says numbers are attached")

	require.Equal(t, DirectToolCall, res.Outcome)
	assert.Equal(t, "the Q3 report", res.Args["subject"])
	assert.Equal(t, "numbers are attached", res.Args["body"])
}

func TestSendEmailMissingFields(t *testing.T) {
	res := newTestParser().Classify("send an email to bob@x.com")
	require.Equal(t, NeedsClarification, res.Outcome)
	assert.Contains(t, res.Prompt, "subject and message")

	res = newTestParser().Classify("write an email saying hello")
	require.Equal(t, NeedsClarification, res.Outcome)
	assert.Contains(t, res.Prompt, "recipient's email address and subject")
}

func TestLookupContact(t *testing.T) {
	p := newTestParser()

	res := p.Classify("look up jane@acme.com")
	require.Equal(t, DirectToolCall, res.Outcome)
	assert.Equal(t, tools.GetHubspotContact, res.Tool)
	assert.Equal(t, "jane@acme.com", res.Args["email"])

	res = p.Classify("Find contact named Jane Doe")
	require.Equal(t, DirectToolCall, res.Outcome)
	assert.Equal(t, tools.SearchContacts, res.Tool)
	assert.Equal(t, "Jane Doe", res.Args["query"])

	res = p.Classify("find contact")
	require.Equal(t, NeedsClarification, res.Outcome)
	assert.Equal(t, ContactPrompt, res.Prompt)
}

func TestFreeChatFallthrough(t *testing.T) {
	p := newTestParser()
	for _, input := range []string{
		"Find emails about baseball",
		"who mentioned their kid plays baseball?",
		"hello",
		"",
	} {
		assert.Equal(t, FreeChat, p.Classify(input).Outcome, input)
	}
}
