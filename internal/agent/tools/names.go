package tools

// Name identifies one tool of the fixed catalog.
type Name string

const (
	SearchEmails         Name = "search_emails"
	SearchContacts       Name = "search_contacts"
	SendEmail            Name = "send_email"
	CreateCalendarEvent  Name = "create_calendar_event"
	ListCalendarEvents   Name = "list_calendar_events"
	SearchCalendarEvents Name = "search_calendar_events"
	GetHubspotContact    Name = "get_hubspot_contact"
	CreateHubspotContact Name = "create_hubspot_contact"
	CreateHubspotNote    Name = "create_hubspot_note"
	ListHubspotDeals     Name = "list_hubspot_deals"
)
