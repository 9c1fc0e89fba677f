package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	authdomain "advisor-backend/internal/auth/domain"
	authdto "advisor-backend/internal/auth/dto"
	"advisor-backend/pkg/errs"
	"advisor-backend/pkg/oauthutil"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

func (u *authUsecase) oauthConfig(p authdomain.Provider) (*oauth2.Config, error) {
	cfg, ok := u.oauthConfigs[p]
	if !ok || cfg == nil || cfg.ClientID == "" {
		return nil, errs.Configuration("%s OAuth client is not configured", p)
	}
	return cfg, nil
}

// ConnectURL returns the provider consent URL. The state is a short-lived JWT naming the user.
func (u *authUsecase) ConnectURL(p authdomain.Provider, userID string) (string, error) {
	cfg, err := u.oauthConfig(p)
	if err != nil {
		return "", err
	}

	state, err := u.signClaims(jwt.MapClaims{
		"user_id":  userID,
		"provider": string(p),
		"exp":      time.Now().Add(connectStateExpiry).Unix(),
	})
	if err != nil {
		return "", err
	}

	if p == authdomain.ProviderGoogle {
		return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
	}
	return cfg.AuthCodeURL(state), nil
}

func (u *authUsecase) CompleteConnect(ctx context.Context, p authdomain.Provider, code, state string) (*authdomain.User, error) {
	cfg, err := u.oauthConfig(p)
	if err != nil {
		return nil, err
	}

	claims, err := u.parseClaims(state)
	if err != nil || claims["provider"] != string(p) {
		return nil, errs.Validation("invalid connect state")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, errs.Validation("invalid connect state")
	}
	if code == "" {
		return nil, errs.Validation("missing authorization code")
	}

	user, err := u.GetUser(userID)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, errs.NewTransportError(string(p), fmt.Errorf("code exchange failed: %w", err))
	}

	user.SetOAuthToken(p, token)
	if err := u.userRepo.SaveProviderTokens(user, p); err != nil {
		return nil, err
	}
	log.Printf("[Auth] Connected %s for user %s", p, user.ID)
	if u.onConnect != nil {
		go u.onConnect(user.ID, p)
	}
	return user, nil
}

func (u *authUsecase) Disconnect(userID string, p authdomain.Provider) error {
	user, err := u.GetUser(userID)
	if err != nil {
		return err
	}
	user.ClearOAuthToken(p)
	if err := u.userRepo.SaveProviderTokens(user, p); err != nil {
		return err
	}
	log.Printf("[Auth] Disconnected %s for user %s", p, userID)
	return nil
}

func (u *authUsecase) Connections(userID string, now time.Time) ([]authdto.ConnectionStatus, error) {
	user, err := u.GetUser(userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]authdto.ConnectionStatus, 0, 2)
	for _, p := range []authdomain.Provider{authdomain.ProviderGoogle, authdomain.ProviderHubspot} {
		statuses = append(statuses, authdto.ConnectionStatus{
			Provider:  p,
			Connected: user.Connected(p),
			Expired:   user.TokenExpired(p, now),
			ExpiresAt: user.TokenExpiry(p),
		})
	}
	return statuses, nil
}

func (u *authUsecase) PersistToken(userID string, p authdomain.Provider) oauthutil.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		user, err := u.GetUser(userID)
		if err != nil {
			return err
		}
		user.SetOAuthToken(p, token)
		return u.userRepo.SaveProviderTokens(user, p)
	}
}

func (u *authUsecase) RegisterFCMToken(userID, token, deviceInfo string) error {
	return u.fcmRepo.SaveToken(userID, token, deviceInfo)
}

func (u *authUsecase) UnregisterFCMToken(token string) error {
	return u.fcmRepo.DeleteToken(token)
}
