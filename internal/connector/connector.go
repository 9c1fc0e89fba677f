// Package connector resolves a user's stored OAuth tokens and calls the provider adapters with them.
package connector

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	authdomain "advisor-backend/internal/auth/domain"
	knowledge "advisor-backend/internal/knowledge/usecase"
	"advisor-backend/pkg/errs"
	"advisor-backend/pkg/hubspot"
	"advisor-backend/pkg/oauthutil"
	"advisor-backend/pkg/workspace"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	contactPageSize   = 100
	maxSyncedContacts = 1000
	noteFetchLimit    = 4
)

type UserFinder interface {
	FindByID(id string) (*authdomain.User, error)
}

// TokenPersister returns the callback that stores refreshed tokens.
type TokenPersister interface {
	PersistToken(userID string, p authdomain.Provider) oauthutil.TokenUpdateFunc
}

type Connector struct {
	users   UserFinder
	tokens  TokenPersister
	google  *workspace.Service
	hubspot *hubspot.Client
	now     func() time.Time
}

func New(users UserFinder, tokens TokenPersister, google *workspace.Service, hs *hubspot.Client) *Connector {
	return &Connector{users: users, tokens: tokens, google: google, hubspot: hs, now: time.Now}
}

// SetClock overrides time.Now for calendar ranges and note timestamps.
func (c *Connector) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Connector) token(userID string, p authdomain.Provider) (*oauth2.Token, oauthutil.TokenUpdateFunc, error) {
	user, err := c.users.FindByID(userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, errs.NotFound("user")
	}
	if !user.Connected(p) {
		return nil, nil, fmt.Errorf("%w: %s", errs.ErrNotConnected, p)
	}

	var onRefresh oauthutil.TokenUpdateFunc
	if c.tokens != nil {
		onRefresh = c.tokens.PersistToken(userID, p)
	}
	return user.OAuthToken(p), onRefresh, nil
}

func (c *Connector) googleToken(userID string) (*oauth2.Token, oauthutil.TokenUpdateFunc, error) {
	if c.google == nil {
		return nil, nil, errs.Configuration("google client not configured")
	}
	return c.token(userID, authdomain.ProviderGoogle)
}

func (c *Connector) hubspotSession(ctx context.Context, userID string) (*hubspot.Session, error) {
	if c.hubspot == nil {
		return nil, errs.Configuration("hubspot client not configured")
	}
	token, onRefresh, err := c.token(userID, authdomain.ProviderHubspot)
	if err != nil {
		return nil, err
	}
	return c.hubspot.Session(ctx, token, onRefresh), nil
}

func (c *Connector) SendEmail(ctx context.Context, userID, to, subject, body string) (string, error) {
	token, onRefresh, err := c.googleToken(userID)
	if err != nil {
		return "", err
	}
	return c.google.SendEmail(ctx, token, to, subject, body, onRefresh)
}

func (c *Connector) CreateEvent(ctx context.Context, userID string, in workspace.EventInput) (*workspace.Event, error) {
	token, onRefresh, err := c.googleToken(userID)
	if err != nil {
		return nil, err
	}
	return c.google.CreateEvent(ctx, token, in, onRefresh)
}

func (c *Connector) ListEvents(ctx context.Context, userID string, days int) ([]*workspace.Event, error) {
	token, onRefresh, err := c.googleToken(userID)
	if err != nil {
		return nil, err
	}
	return c.google.ListEvents(ctx, token, c.now(), days, onRefresh)
}

func (c *Connector) SearchEvents(ctx context.Context, userID, query string, days int) ([]*workspace.Event, error) {
	token, onRefresh, err := c.googleToken(userID)
	if err != nil {
		return nil, err
	}
	return c.google.SearchEvents(ctx, token, query, c.now(), days, onRefresh)
}

// RecentEmails feeds email sync.
func (c *Connector) RecentEmails(ctx context.Context, userID string, max int) ([]*workspace.Email, error) {
	token, onRefresh, err := c.googleToken(userID)
	if err != nil {
		return nil, err
	}
	return c.google.ListRecentEmails(ctx, token, max, "-in:spam -in:trash", onRefresh)
}

// Watch registers Gmail push notifications for the user on topic.
func (c *Connector) Watch(ctx context.Context, userID, topic string) error {
	token, onRefresh, err := c.googleToken(userID)
	if err != nil {
		return err
	}
	return c.google.Watch(ctx, token, topic, onRefresh)
}

// GetContact returns nil when no contact has that email.
func (c *Connector) GetContact(ctx context.Context, userID, email string) (*hubspot.Contact, error) {
	session, err := c.hubspotSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return session.GetContactByEmail(ctx, email)
}

func (c *Connector) CreateContact(ctx context.Context, userID string, in hubspot.ContactInput) (*hubspot.Contact, error) {
	session, err := c.hubspotSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return session.CreateContact(ctx, in)
}

func (c *Connector) CreateNote(ctx context.Context, userID, contactID, body string) (*hubspot.Note, error) {
	session, err := c.hubspotSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return session.CreateNote(ctx, contactID, body, c.now())
}

func (c *Connector) ListDeals(ctx context.Context, userID string, limit int) ([]*hubspot.Deal, error) {
	session, err := c.hubspotSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return session.ListDeals(ctx, limit)
}

// AllContacts pages through the CRM and attaches each contact's notes.
// A contact whose notes fail to load is kept without them.
func (c *Connector) AllContacts(ctx context.Context, userID string) ([]knowledge.SourceContact, error) {
	session, err := c.hubspotSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	var contacts []*hubspot.Contact
	after := ""
	for len(contacts) < maxSyncedContacts {
		page, next, err := session.ListContacts(ctx, after, contactPageSize)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, page...)
		if next == "" || len(page) == 0 {
			break
		}
		after = next
	}
	if len(contacts) > maxSyncedContacts {
		contacts = contacts[:maxSyncedContacts]
	}

	out := make([]knowledge.SourceContact, len(contacts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(noteFetchLimit)
	for i, contact := range contacts {
		g.Go(func() error {
			notes, err := session.ListContactNotes(gctx, contact.ID)
			if err != nil {
				log.Printf("[HubSpot] Failed to load notes for contact %s: %v", contact.ID, err)
			}
			bodies := make([]string, 0, len(notes))
			for _, n := range notes {
				if b := strings.TrimSpace(n.Body); b != "" {
					bodies = append(bodies, b)
				}
			}

			out[i] = knowledge.SourceContact{
				ID:         contact.ID,
				Name:       contact.Name(),
				Email:      contact.Email,
				Notes:      strings.Join(bodies, "\n"),
				Properties: contact.Properties,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
