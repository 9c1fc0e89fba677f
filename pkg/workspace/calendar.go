package workspace

import (
	"context"
	"fmt"
	"sort"
	"time"

	"advisor-backend/pkg/fuzzy"
	"advisor-backend/pkg/oauthutil"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

const primaryCalendar = "primary"

type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
	Link        string    `json:"link,omitempty"`
}

type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// CreateEvent inserts an event on the primary calendar and emails invitations to attendees.
func (s *Service) CreateEvent(ctx context.Context, token *oauth2.Token, in EventInput, onRefresh oauthutil.TokenUpdateFunc) (*Event, error) {
	srv, err := s.GetCalendarService(ctx, token, onRefresh)
	if err != nil {
		return nil, err
	}

	ev := &calendar.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start:       &calendar.EventDateTime{DateTime: in.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: in.End.Format(time.RFC3339)},
	}
	for _, a := range in.Attendees {
		ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{Email: a})
	}

	created, err := srv.Events.Insert(primaryCalendar, ev).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create event: %w", err)
	}
	return convertEvent(created), nil
}

// ListEvents returns events starting between now and now+days, in start order.
func (s *Service) ListEvents(ctx context.Context, token *oauth2.Token, now time.Time, days int, onRefresh oauthutil.TokenUpdateFunc) ([]*Event, error) {
	srv, err := s.GetCalendarService(ctx, token, onRefresh)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}

	resp, err := srv.Events.List(primaryCalendar).
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.AddDate(0, 0, days).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list events: %w", err)
	}

	events := make([]*Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, convertEvent(item))
	}
	return events, nil
}

// SearchEvents lists the window and keeps events whose summary, description or
// attendees fuzzily match query, best match first.
func (s *Service) SearchEvents(ctx context.Context, token *oauth2.Token, query string, now time.Time, days int, onRefresh oauthutil.TokenUpdateFunc) ([]*Event, error) {
	events, err := s.ListEvents(ctx, token, now, days, onRefresh)
	if err != nil {
		return nil, err
	}
	return FilterEvents(events, query), nil
}

// FilterEvents keeps events that match query, ordered by score then start time.
func FilterEvents(events []*Event, query string) []*Event {
	type scored struct {
		event *Event
		score float64
	}
	var matches []scored
	for _, ev := range events {
		fields := append([]string{ev.Summary, ev.Description}, ev.Attendees...)
		if score := fuzzy.Score(query, fields...); score > 0 {
			matches = append(matches, scored{event: ev, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].event.Start.Before(matches[j].event.Start)
	})

	out := make([]*Event, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.event)
	}
	return out
}

func convertEvent(item *calendar.Event) *Event {
	ev := &Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Link:        item.HtmlLink,
	}
	ev.Start = parseEventTime(item.Start)
	ev.End = parseEventTime(item.End)
	for _, a := range item.Attendees {
		ev.Attendees = append(ev.Attendees, a.Email)
	}
	return ev
}

// parseEventTime handles both timed events and all-day events.
func parseEventTime(t *calendar.EventDateTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed
		}
	}
	if t.Date != "" {
		if parsed, err := time.Parse("2006-01-02", t.Date); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
