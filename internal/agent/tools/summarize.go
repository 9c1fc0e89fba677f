package tools

import (
	"fmt"
	"strings"

	"advisor-backend/pkg/hubspot"
	"advisor-backend/pkg/workspace"
)

const eventTimeLayout = "Mon Jan 2 at 3:04pm"

// Summarize renders a human-readable reply for a tool run without the model.
func Summarize(name Name, value any, err error) string {
	if err != nil {
		return fmt.Sprintf("Sorry, I couldn't complete %s: %v", strings.ReplaceAll(string(name), "_", " "), err)
	}

	switch v := value.(type) {
	case SentEmail:
		return fmt.Sprintf("Email sent to %s with subject %q.", v.To, v.Subject)
	case *workspace.Event:
		msg := fmt.Sprintf("Created %q on %s.", v.Summary, v.Start.Format(eventTimeLayout))
		if len(v.Attendees) > 0 {
			msg += " Invited " + strings.Join(v.Attendees, ", ") + "."
		}
		return msg
	case []*workspace.Event:
		if len(v) == 0 {
			return "You have no upcoming events in that range."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "You have %d upcoming event(s):\n", len(v))
		for _, e := range v {
			fmt.Fprintf(&b, "- %s: %s\n", e.Start.Format(eventTimeLayout), e.Summary)
		}
		return strings.TrimRight(b.String(), "\n")
	case *hubspot.Contact:
		msg := fmt.Sprintf("%s <%s>", v.Name(), v.Email)
		if v.Company != "" {
			msg += " at " + v.Company
		}
		if v.Phone != "" {
			msg += ", phone " + v.Phone
		}
		return "Found contact " + msg + " (id " + v.ID + ")."
	case []ContactHit:
		if len(v) == 0 {
			return "I couldn't find any matching contacts."
		}
		var b strings.Builder
		b.WriteString("Matching contacts:\n")
		for _, c := range v {
			fmt.Fprintf(&b, "- %s <%s>\n", c.Name, c.Email)
		}
		return strings.TrimRight(b.String(), "\n")
	case []EmailHit:
		if len(v) == 0 {
			return "I couldn't find any matching emails."
		}
		var b strings.Builder
		b.WriteString("Matching emails:\n")
		for _, e := range v {
			fmt.Fprintf(&b, "- %s from %s\n", e.Subject, e.From)
		}
		return strings.TrimRight(b.String(), "\n")
	}
	return fmt.Sprintf("Done: %s completed successfully.", strings.ReplaceAll(string(name), "_", " "))
}
