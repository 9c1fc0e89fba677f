package usecase

import (
	"context"
	"time"

	authdomain "advisor-backend/internal/auth/domain"
	authdto "advisor-backend/internal/auth/dto"
	"advisor-backend/pkg/oauthutil"
)

type AuthUsecase interface {
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	GoogleSignIn(ctx context.Context, idToken string) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	ValidateToken(tokenString string) (*authdomain.User, error)
	GetUser(userID string) (*authdomain.User, error)
	DeleteAccount(ctx context.Context, userID string) error
	// AddAccountCleaner registers data owned by a user that must go when the account is deleted.
	AddAccountCleaner(name string, fn AccountCleaner)
	// SetConnectCallback runs after a provider connection completes.
	SetConnectCallback(fn ConnectCallback)

	ConnectURL(p authdomain.Provider, userID string) (string, error)
	CompleteConnect(ctx context.Context, p authdomain.Provider, code, state string) (*authdomain.User, error)
	Disconnect(userID string, p authdomain.Provider) error
	Connections(userID string, now time.Time) ([]authdto.ConnectionStatus, error)
	// PersistToken returns the refresh callback that stores rotated tokens for the user.
	PersistToken(userID string, p authdomain.Provider) oauthutil.TokenUpdateFunc

	RegisterFCMToken(userID, token, deviceInfo string) error
	UnregisterFCMToken(token string) error
}

// AccountCleaner deletes everything a user owns in one store.
type AccountCleaner func(ctx context.Context, userID string) error

// ConnectCallback is told which provider a user just connected.
type ConnectCallback func(userID string, p authdomain.Provider)
