package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// Provider identifies a connectable third-party account.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderHubspot Provider = "hubspot"
)

func ParseProvider(s string) (Provider, bool) {
	switch Provider(s) {
	case ProviderGoogle, ProviderHubspot:
		return Provider(s), true
	}
	return "", false
}

type User struct {
	ID        string `json:"id" gorm:"primaryKey"`
	Email     string `json:"email" gorm:"uniqueIndex;not null"`
	Password  string `json:"-"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	// SignInMethod is "email" or "google"
	SignInMethod string `json:"sign_in_method"`

	// Connection tokens; a disconnected provider has all three set to NULL.
	GoogleAccessToken   *string    `json:"-"`
	GoogleRefreshToken  *string    `json:"-"`
	GoogleTokenExpiry   *time.Time `json:"-"`
	HubspotAccessToken  *string    `json:"-"`
	HubspotRefreshToken *string    `json:"-"`
	HubspotTokenExpiry  *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RefreshToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (u *User) tokenFields(p Provider) (access, refresh **string, expiry **time.Time) {
	if p == ProviderHubspot {
		return &u.HubspotAccessToken, &u.HubspotRefreshToken, &u.HubspotTokenExpiry
	}
	return &u.GoogleAccessToken, &u.GoogleRefreshToken, &u.GoogleTokenExpiry
}

// Connected reports whether an access token is stored for p.
func (u *User) Connected(p Provider) bool {
	access, _, _ := u.tokenFields(p)
	return *access != nil && **access != ""
}

// TokenExpired is true when the expiry is absent or in the past.
func (u *User) TokenExpired(p Provider, now time.Time) bool {
	_, _, expiry := u.tokenFields(p)
	return *expiry == nil || (*expiry).Before(now)
}

// OAuthToken rebuilds the stored token, or nil when p is not connected.
func (u *User) OAuthToken(p Provider) *oauth2.Token {
	if !u.Connected(p) {
		return nil
	}
	access, refresh, expiry := u.tokenFields(p)
	token := &oauth2.Token{AccessToken: **access, TokenType: "Bearer"}
	if *refresh != nil {
		token.RefreshToken = **refresh
	}
	if *expiry != nil {
		token.Expiry = **expiry
	}
	return token
}

// SetOAuthToken stores token for p. An empty refresh token keeps the previous one.
func (u *User) SetOAuthToken(p Provider, token *oauth2.Token) {
	access, refresh, expiry := u.tokenFields(p)
	accessValue := token.AccessToken
	*access = &accessValue
	if token.RefreshToken != "" {
		refreshValue := token.RefreshToken
		*refresh = &refreshValue
	}
	if token.Expiry.IsZero() {
		*expiry = nil
	} else {
		expiryValue := token.Expiry
		*expiry = &expiryValue
	}
}

func (u *User) ClearOAuthToken(p Provider) {
	access, refresh, expiry := u.tokenFields(p)
	*access, *refresh, *expiry = nil, nil, nil
}

// TokenColumns names the columns holding p's tokens.
func TokenColumns(p Provider) []string {
	if p == ProviderHubspot {
		return []string{"hubspot_access_token", "hubspot_refresh_token", "hubspot_token_expiry"}
	}
	return []string{"google_access_token", "google_refresh_token", "google_token_expiry"}
}

func (u *User) TokenExpiry(p Provider) *time.Time {
	_, _, expiry := u.tokenFields(p)
	return *expiry
}
