package hubspot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var contactProperties = []string{"email", "firstname", "lastname", "phone", "company", "jobtitle", "lifecyclestage"}

var dealProperties = []string{"dealname", "amount", "dealstage", "closedate", "pipeline"}

type Contact struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	FirstName  string            `json:"firstname,omitempty"`
	LastName   string            `json:"lastname,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Company    string            `json:"company,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Name joins first and last name, falling back to the email address.
func (c *Contact) Name() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.Email
	}
	return name
}

type ContactInput struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Company   string
}

type Note struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type Deal struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Amount    string `json:"amount,omitempty"`
	Stage     string `json:"stage,omitempty"`
	CloseDate string `json:"close_date,omitempty"`
}

type crmObject struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type crmPage struct {
	Results []crmObject `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

func (p crmPage) nextAfter() string {
	if p.Paging == nil || p.Paging.Next == nil {
		return ""
	}
	return p.Paging.Next.After
}

func toContact(obj crmObject) *Contact {
	return &Contact{
		ID:         obj.ID,
		Email:      obj.Properties["email"],
		FirstName:  obj.Properties["firstname"],
		LastName:   obj.Properties["lastname"],
		Phone:      obj.Properties["phone"],
		Company:    obj.Properties["company"],
		Properties: obj.Properties,
	}
}

// GetContactByEmail looks a contact up by its email property.
func (s *Session) GetContactByEmail(ctx context.Context, email string) (*Contact, error) {
	q := url.Values{}
	q.Set("idProperty", "email")
	q.Set("properties", strings.Join(contactProperties, ","))
	path := "/crm/v3/objects/contacts/" + url.PathEscape(email) + "?" + q.Encode()

	var obj crmObject
	if err := s.do(ctx, http.MethodGet, path, nil, &obj); err != nil {
		return nil, err
	}
	return toContact(obj), nil
}

func (s *Session) CreateContact(ctx context.Context, in ContactInput) (*Contact, error) {
	props := map[string]string{"email": in.Email}
	for key, value := range map[string]string{
		"firstname": in.FirstName,
		"lastname":  in.LastName,
		"phone":     in.Phone,
		"company":   in.Company,
	} {
		if value != "" {
			props[key] = value
		}
	}

	var obj crmObject
	body := map[string]any{"properties": props}
	if err := s.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", body, &obj); err != nil {
		return nil, err
	}
	return toContact(obj), nil
}

// ListContacts returns one page of contacts and the cursor for the next page ("" when done).
func (s *Session) ListContacts(ctx context.Context, after string, limit int) ([]*Contact, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("properties", strings.Join(contactProperties, ","))
	if after != "" {
		q.Set("after", after)
	}

	var page crmPage
	if err := s.do(ctx, http.MethodGet, "/crm/v3/objects/contacts?"+q.Encode(), nil, &page); err != nil {
		return nil, "", err
	}
	contacts := make([]*Contact, 0, len(page.Results))
	for _, obj := range page.Results {
		contacts = append(contacts, toContact(obj))
	}
	return contacts, page.nextAfter(), nil
}

// CreateNote creates a note associated with a contact.
func (s *Session) CreateNote(ctx context.Context, contactID, body string, now time.Time) (*Note, error) {
	payload := map[string]any{
		"properties": map[string]string{
			"hs_note_body": body,
			"hs_timestamp": now.UTC().Format(time.RFC3339),
		},
		"associations": []map[string]any{{
			"to": map[string]string{"id": contactID},
			"types": []map[string]any{{
				"associationCategory": "HUBSPOT_DEFINED",
				"associationTypeId":   202, // note to contact
			}},
		}},
	}

	var obj crmObject
	if err := s.do(ctx, http.MethodPost, "/crm/v3/objects/notes", payload, &obj); err != nil {
		return nil, err
	}
	return &Note{ID: obj.ID, ContactID: contactID, Body: obj.Properties["hs_note_body"], CreatedAt: obj.CreatedAt}, nil
}

// ListContactNotes returns the bodies of notes associated with a contact.
func (s *Session) ListContactNotes(ctx context.Context, contactID string) ([]*Note, error) {
	var assoc struct {
		Results []struct {
			ToObjectID json.Number `json:"toObjectId"`
		} `json:"results"`
	}
	path := fmt.Sprintf("/crm/v4/objects/contacts/%s/associations/notes", url.PathEscape(contactID))
	if err := s.do(ctx, http.MethodGet, path, nil, &assoc); err != nil {
		return nil, err
	}
	if len(assoc.Results) == 0 {
		return nil, nil
	}

	inputs := make([]map[string]string, 0, len(assoc.Results))
	for _, r := range assoc.Results {
		inputs = append(inputs, map[string]string{"id": r.ToObjectID.String()})
	}
	var batch crmPage
	body := map[string]any{"inputs": inputs, "properties": []string{"hs_note_body"}}
	if err := s.do(ctx, http.MethodPost, "/crm/v3/objects/notes/batch/read", body, &batch); err != nil {
		return nil, err
	}

	notes := make([]*Note, 0, len(batch.Results))
	for _, obj := range batch.Results {
		notes = append(notes, &Note{ID: obj.ID, ContactID: contactID, Body: obj.Properties["hs_note_body"], CreatedAt: obj.CreatedAt})
	}
	return notes, nil
}

func (s *Session) ListDeals(ctx context.Context, limit int) ([]*Deal, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("properties", strings.Join(dealProperties, ","))

	var page crmPage
	if err := s.do(ctx, http.MethodGet, "/crm/v3/objects/deals?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	deals := make([]*Deal, 0, len(page.Results))
	for _, obj := range page.Results {
		deals = append(deals, &Deal{
			ID:        obj.ID,
			Name:      obj.Properties["dealname"],
			Amount:    obj.Properties["amount"],
			Stage:     obj.Properties["dealstage"],
			CloseDate: obj.Properties["closedate"],
		})
	}
	return deals, nil
}
