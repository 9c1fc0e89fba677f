// Package intent recognizes a few literal phrasings and maps them straight to a tool call.
// It never calls a model; anything it does not recognize is left to the agent loop.
package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"advisor-backend/internal/agent/tools"
)

type Outcome int

const (
	FreeChat Outcome = iota
	DirectToolCall
	NeedsClarification
)

func (o Outcome) String() string {
	switch o {
	case DirectToolCall:
		return "direct_tool_call"
	case NeedsClarification:
		return "needs_clarification"
	default:
		return "free_chat"
	}
}

type Result struct {
	Outcome Outcome
	Tool    tools.Name
	Args    map[string]any
	Prompt  string
}

const defaultMeetingLength = 60 * time.Minute

const (
	SchedulePrompt = "I can schedule that, but I need the %s. For example: \"schedule a meeting with bob@example.com tomorrow at 2pm\"."
	EmailPrompt    = "I can send that email, but I need the %s. For example: \"send an email to bob@example.com subject: Lunch saying See you at noon\"."
	ContactPrompt  = "Who should I look up? Give me a name or an email address."
)

// Parser classifies messages against a fixed clock and location.
type Parser struct {
	now func() time.Time
	loc *time.Location
}

func NewParser(now func() time.Time, loc *time.Location) *Parser {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{now: now, loc: loc}
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	listEventsPattern = regexp.MustCompile(`^(?:what(?:'s| is| do i have)|show(?: me)?|list|check)\b.*\b(?:calendar|schedule|events|meetings|agenda)\b`)
	schedulePattern   = regexp.MustCompile(`^(?:please\s+)?(?:schedule|book|set up|arrange)\b`)
	sendEmailPattern  = regexp.MustCompile(`^(?:please\s+)?(?:send|write|compose|draft)\b.*\b(?:email|mail|message)\b|^email\s+\S+@`)
	lookupPattern     = regexp.MustCompile(`(?i)^(?:find|look\s*up|search for|show(?: me)?)\s+(?:the\s+)?contacts?\b\s*(.*)$`)
	whoIsPattern      = regexp.MustCompile(`(?i)^(?:look\s*up|who\s+is)\s+(\S+@\S+)`)

	nextDaysPattern = regexp.MustCompile(`\bnext\s+(\d{1,2})\s+days?\b`)
	dayMonthPattern = regexp.MustCompile(`\bon\s+(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]+)\b`)
	monthDayPattern = regexp.MustCompile(`\bon\s+([a-z]+)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	clockPattern    = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	aboutPattern    = regexp.MustCompile(`\b(?:about|regarding|re:)\s+(.+?)(?:\s+(?:with|on|at|tomorrow|today)\b|$)`)

	subjectPattern = regexp.MustCompile(`(?i)\bsubject:\s*(.+?)(?:\s+(?:body:|saying|that says)|$)`)
	bodyPattern    = regexp.MustCompile(`(?i)\b(?:body:|saying|that says)\s*(.+)$`)
	emailAbout     = regexp.MustCompile(`(?i)\babout\s+(.+?)(?:\s+(?:body:|saying|that says)|$)`)
)

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// Classify checks the intents in order and returns the first match.
func (p *Parser) Classify(text string) Result {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	switch {
	case listEventsPattern.MatchString(lower):
		return p.listEvents(lower)
	case schedulePattern.MatchString(lower):
		return p.scheduleEvent(trimmed, lower)
	case sendEmailPattern.MatchString(lower):
		return p.sendEmail(trimmed)
	case lookupPattern.MatchString(trimmed) || whoIsPattern.MatchString(trimmed):
		return p.lookupContact(trimmed)
	}
	return Result{Outcome: FreeChat}
}

func (p *Parser) listEvents(lower string) Result {
	days := 7
	switch {
	case strings.Contains(lower, "today"):
		days = 1
	case strings.Contains(lower, "tomorrow"):
		days = 2
	default:
		if m := nextDaysPattern.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				days = n
			}
		}
	}
	return Result{Outcome: DirectToolCall, Tool: tools.ListCalendarEvents, Args: map[string]any{"days": days}}
}

func (p *Parser) scheduleEvent(text, lower string) Result {
	var missing []string

	day, ok := p.parseDate(lower)
	if !ok {
		missing = append(missing, "date")
	}
	hour, minute, ok := parseClock(lower)
	if !ok {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return Result{Outcome: NeedsClarification, Prompt: fmt.Sprintf(SchedulePrompt, strings.Join(missing, " and "))}
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, p.loc)
	end := start.Add(defaultMeetingLength)
	attendees := emailPattern.FindAllString(text, -1)

	args := map[string]any{
		"summary":    meetingSummary(lower, attendees),
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	}
	if len(attendees) > 0 {
		args["attendees"] = attendees
	}
	return Result{Outcome: DirectToolCall, Tool: tools.CreateCalendarEvent, Args: args}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func meetingSummary(lower string, attendees []string) string {
	if m := aboutPattern.FindStringSubmatch(lower); m != nil {
		topic := strings.TrimSpace(m[1])
		if topic != "" && !emailPattern.MatchString(topic) {
			return capitalize(topic)
		}
	}

	kind := "Meeting"
	for _, word := range []string{"call", "appointment", "event"} {
		if strings.Contains(lower, word) {
			kind = capitalize(word)
			break
		}
	}
	if len(attendees) > 0 {
		return kind + " with " + strings.Join(attendees, ", ")
	}
	return kind
}

// parseDate understands "today", "tomorrow", "on 5 march" and "on march 5" in the current year.
func (p *Parser) parseDate(lower string) (time.Time, bool) {
	now := p.now().In(p.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.loc)

	switch {
	case strings.Contains(lower, "tomorrow"):
		return today.AddDate(0, 0, 1), true
	case strings.Contains(lower, "today"):
		return today, true
	}

	if m := dayMonthPattern.FindStringSubmatch(lower); m != nil {
		if d, ok := buildDate(now.Year(), m[2], m[1], p.loc); ok {
			return d, true
		}
	}
	if m := monthDayPattern.FindStringSubmatch(lower); m != nil {
		if d, ok := buildDate(now.Year(), m[1], m[2], p.loc); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func buildDate(year int, monthName, dayText string, loc *time.Location) (time.Time, bool) {
	month, ok := months[monthName]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}

// parseClock extracts a 12-hour clock time such as "2pm" or "10:30 am".
func parseClock(lower string) (int, int, bool) {
	m := clockPattern.FindStringSubmatch(lower)
	if m == nil {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}
	if hour == 12 {
		hour = 0
	}
	if m[3] == "pm" {
		hour += 12
	}
	return hour, minute, true
}

func (p *Parser) sendEmail(text string) Result {
	to := emailPattern.FindString(text)

	var subject, body string
	if m := bodyPattern.FindStringSubmatch(text); m != nil {
		body = strings.TrimSpace(m[1])
	}
	if m := subjectPattern.FindStringSubmatch(text); m != nil {
		subject = strings.TrimSpace(m[1])
	} else if m := emailAbout.FindStringSubmatch(text); m != nil {
		subject = strings.TrimSpace(m[1])
	}

	var missing []string
	if to == "" {
		missing = append(missing, "recipient's email address")
	}
	if subject == "" {
		missing = append(missing, "subject")
	}
	if body == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return Result{Outcome: NeedsClarification, Prompt: fmt.Sprintf(EmailPrompt, strings.Join(missing, " and "))}
	}

	return Result{Outcome: DirectToolCall, Tool: tools.SendEmail, Args: map[string]any{
		"to":      to,
		"subject": subject,
		"body":    body,
	}}
}

func (p *Parser) lookupContact(text string) Result {
	if email := emailPattern.FindString(text); email != "" {
		return Result{Outcome: DirectToolCall, Tool: tools.GetHubspotContact, Args: map[string]any{"email": email}}
	}

	var name string
	if m := lookupPattern.FindStringSubmatch(text); m != nil {
		name = strings.TrimSpace(m[1])
		for _, prefix := range []string{"for ", "named ", "called "} {
			if len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
				name = strings.TrimSpace(name[len(prefix):])
			}
		}
	}
	if name == "" {
		return Result{Outcome: NeedsClarification, Prompt: ContactPrompt}
	}
	return Result{Outcome: DirectToolCall, Tool: tools.SearchContacts, Args: map[string]any{"query": name}}
}
