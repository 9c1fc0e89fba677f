package oauthutil

import (
	"context"
	"log"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc persists a refreshed token.
type TokenUpdateFunc func(*oauth2.Token) error

type notifyTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

// NewNotifyTokenSource wraps the config's refreshing source and calls onRefresh
// whenever the access token changes.
func NewNotifyTokenSource(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, onRefresh TokenUpdateFunc) oauth2.TokenSource {
	return &notifyTokenSource{
		src:      cfg.TokenSource(ctx, token),
		current:  token,
		callback: onRefresh,
	}
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[OAuth] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

// NewClient returns an HTTP client that authorizes with token and refreshes it through cfg.
func NewClient(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, onRefresh TokenUpdateFunc) *http.Client {
	return oauth2.NewClient(ctx, NewNotifyTokenSource(ctx, cfg, token, onRefresh))
}
