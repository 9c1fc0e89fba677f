package hubspot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"advisor-backend/pkg/errs"
	"advisor-backend/pkg/httpx"
	"advisor-backend/pkg/oauthutil"

	"golang.org/x/oauth2"
)

const DefaultBaseURL = "https://api.hubapi.com"

var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://app.hubspot.com/oauth/authorize",
	TokenURL:  "https://api.hubapi.com/oauth/v1/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var Scopes = []string{
	"oauth",
	"crm.objects.contacts.read",
	"crm.objects.contacts.write",
	"crm.objects.deals.read",
}

// Client wraps the HubSpot CRM v3 REST API for a connected user.
type Client struct {
	config  *oauth2.Config
	baseURL string
}

func NewClient(clientID, clientSecret, redirectURL string) *Client {
	return &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     Endpoint,
			Scopes:       Scopes,
		},
		baseURL: DefaultBaseURL,
	}
}

// WithBaseURL overrides the API host.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) OAuthConfig() *oauth2.Config {
	return c.config
}

// Session issues calls for one connected user. All calls share one
// refreshing token source, so an expired token is refreshed once per session.
type Session struct {
	baseURL    string
	httpClient *http.Client
}

func (c *Client) Session(ctx context.Context, token *oauth2.Token, onRefresh oauthutil.TokenUpdateFunc) *Session {
	return &Session{
		baseURL:    c.baseURL,
		httpClient: oauthutil.NewClient(ctx, c.config, token, onRefresh),
	}
}

func (s *Session) do(ctx context.Context, method, path string, in, out any) error {
	err := httpx.DoJSON(ctx, s.httpClient, "hubspot", method, s.baseURL+path, nil, in, out)
	var pe *errs.ProviderError
	if errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound {
		return fmt.Errorf("hubspot %s: %w", path, errs.ErrNotFound)
	}
	return err
}
