package tools

import (
	"context"

	"advisor-backend/internal/knowledge/domain"
	"advisor-backend/pkg/hubspot"
	"advisor-backend/pkg/workspace"
)

// Knowledge answers the two semantic search tools.
type Knowledge interface {
	SearchEmails(ctx context.Context, userID, query string, limit int) ([]domain.ScoredEmail, error)
	SearchContacts(ctx context.Context, userID, query string, limit int) ([]domain.ScoredContact, error)
}

type Mailer interface {
	SendEmail(ctx context.Context, userID, to, subject, body string) (string, error)
}

type Calendar interface {
	CreateEvent(ctx context.Context, userID string, in workspace.EventInput) (*workspace.Event, error)
	ListEvents(ctx context.Context, userID string, days int) ([]*workspace.Event, error)
	SearchEvents(ctx context.Context, userID, query string, days int) ([]*workspace.Event, error)
}

type CRM interface {
	GetContact(ctx context.Context, userID, email string) (*hubspot.Contact, error)
	CreateContact(ctx context.Context, userID string, in hubspot.ContactInput) (*hubspot.Contact, error)
	CreateNote(ctx context.Context, userID, contactID, body string) (*hubspot.Note, error)
	ListDeals(ctx context.Context, userID string, limit int) ([]*hubspot.Deal, error)
}

// Backends groups the adapters the catalog dispatches to.
type Backends struct {
	Knowledge Knowledge
	Mailer    Mailer
	Calendar  Calendar
	CRM       CRM
}
