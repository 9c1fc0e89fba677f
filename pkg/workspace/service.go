package workspace

import (
	"context"
	"fmt"
	"time"

	"advisor-backend/pkg/oauthutil"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes requested when a user connects their Google account.
var Scopes = []string{
	"openid",
	"email",
	"profile",
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	calendar.CalendarEventsScope,
}

// Service talks to Gmail and Google Calendar on behalf of a connected user.
type Service struct {
	config   *oauth2.Config
	endpoint string
}

func NewService(clientID, clientSecret, redirectURL string) *Service {
	return &Service{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       Scopes,
		},
	}
}

// WithEndpoint points both API clients at a different base URL.
func (s *Service) WithEndpoint(endpoint string) *Service {
	s.endpoint = endpoint
	return s
}

func (s *Service) clientOptions(ctx context.Context, token *oauth2.Token, onRefresh oauthutil.TokenUpdateFunc) []option.ClientOption {
	client := oauthutil.NewClient(ctx, s.config, prepareToken(token), onRefresh)
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	return opts
}

// OAuthConfig is used by the connect flow to build consent URLs and exchange codes.
func (s *Service) OAuthConfig() *oauth2.Config {
	return s.config
}

func prepareToken(token *oauth2.Token) *oauth2.Token {
	t := *token
	// Force a refresh when the stored expiry is unknown but a refresh token exists
	if t.Expiry.IsZero() && t.RefreshToken != "" {
		t.Expiry = time.Now()
	}
	return &t
}

// GetGmailService creates a Gmail client with the user's token
func (s *Service) GetGmailService(ctx context.Context, token *oauth2.Token, onRefresh oauthutil.TokenUpdateFunc) (*gmail.Service, error) {
	srv, err := gmail.NewService(ctx, s.clientOptions(ctx, token, onRefresh)...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// GetCalendarService creates a Calendar client with the user's token
func (s *Service) GetCalendarService(ctx context.Context, token *oauth2.Token, onRefresh oauthutil.TokenUpdateFunc) (*calendar.Service, error) {
	srv, err := calendar.NewService(ctx, s.clientOptions(ctx, token, onRefresh)...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return srv, nil
}
