package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	authdomain "advisor-backend/internal/auth/domain"
	authdto "advisor-backend/internal/auth/dto"
	"advisor-backend/internal/auth/repository"
	"advisor-backend/pkg/config"
	"advisor-backend/pkg/errs"
	"advisor-backend/pkg/httpx"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	connectStateExpiry  = 10 * time.Minute
)

type namedCleaner struct {
	name string
	fn   AccountCleaner
}

type authUsecase struct {
	userRepo     repository.UserRepository
	fcmRepo      repository.FCMTokenRepository
	config       *config.Config
	oauthConfigs map[authdomain.Provider]*oauth2.Config
	cleaners     []namedCleaner
	onConnect    ConnectCallback
	tokenInfoURL string
}

func NewAuthUsecase(userRepo repository.UserRepository, fcmRepo repository.FCMTokenRepository, cfg *config.Config, oauthConfigs map[authdomain.Provider]*oauth2.Config) AuthUsecase {
	return &authUsecase{
		userRepo:     userRepo,
		fcmRepo:      fcmRepo,
		config:       cfg,
		oauthConfigs: oauthConfigs,
		tokenInfoURL: defaultTokenInfoURL,
	}
}

func (u *authUsecase) Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	user, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, fmt.Errorf("%w: invalid email or password", errs.ErrUnauthorized)
	}

	if user.SignInMethod != "email" {
		return nil, errs.Validation("please use Google Sign-In for this account")
	}

	if !repository.CheckPasswordHash(req.Password, user.Password) {
		return nil, fmt.Errorf("%w: invalid email or password", errs.ErrUnauthorized)
	}

	return u.generateTokens(user)
}

func (u *authUsecase) Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	existing, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return nil, errs.Validation("email already registered")
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &authdomain.User{
		Email:        req.Email,
		Password:     hashedPassword,
		Name:         req.Name,
		SignInMethod: "email",
	}

	if err := u.userRepo.Create(user); err != nil {
		return nil, err
	}

	return u.generateTokens(user)
}

// GoogleTokenInfo is the response of Google's tokeninfo endpoint.
type GoogleTokenInfo struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	EmailVerified string `json:"email_verified"`
	Sub           string `json:"sub"`
}

func (u *authUsecase) GoogleSignIn(ctx context.Context, idToken string) (*authdto.TokenResponse, error) {
	var tokenInfo GoogleTokenInfo
	endpoint := u.tokenInfoURL + "?id_token=" + url.QueryEscape(idToken)
	if err := httpx.DoJSON(ctx, nil, "google", http.MethodGet, endpoint, nil, nil, &tokenInfo); err != nil {
		return nil, fmt.Errorf("failed to verify Google token: %w", err)
	}

	if tokenInfo.EmailVerified != "true" {
		return nil, fmt.Errorf("%w: google email is not verified", errs.ErrUnauthorized)
	}

	user, err := u.userRepo.FindByEmail(tokenInfo.Email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user = &authdomain.User{
			Email:        tokenInfo.Email,
			Name:         tokenInfo.Name,
			AvatarURL:    tokenInfo.Picture,
			SignInMethod: "google",
		}
		if err := u.userRepo.Create(user); err != nil {
			return nil, err
		}
	} else {
		user.Name = tokenInfo.Name
		user.AvatarURL = tokenInfo.Picture
		if err := u.userRepo.Update(user); err != nil {
			return nil, err
		}
	}

	return u.generateTokens(user)
}

func (u *authUsecase) RefreshToken(refreshToken string) (*authdto.TokenResponse, error) {
	claims, err := u.parseClaims(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", errs.ErrUnauthorized)
	}

	storedToken, err := u.userRepo.FindRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if storedToken == nil || storedToken.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: refresh token expired", errs.ErrUnauthorized)
	}

	userID, _ := claims["user_id"].(string)
	user, err := u.GetUser(userID)
	if err != nil {
		return nil, err
	}

	// Rotate: the presented token is single use.
	if err := u.userRepo.DeleteRefreshToken(refreshToken); err != nil {
		return nil, err
	}
	return u.generateTokens(user)
}

func (u *authUsecase) Logout(refreshToken string) error {
	return u.userRepo.DeleteRefreshToken(refreshToken)
}

func (u *authUsecase) generateTokens(user *authdomain.User) (*authdto.TokenResponse, error) {
	accessToken, err := u.signClaims(jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(u.config.JWTAccessExpiry).Unix(),
		"iat":     time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.signClaims(jwt.MapClaims{
		"user_id":  user.ID,
		"token_id": uuid.New().String(),
		"exp":      time.Now().Add(u.config.JWTRefreshExpiry).Unix(),
		"iat":      time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	refreshTokenEntity := &authdomain.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(u.config.JWTRefreshExpiry),
	}
	if err := u.userRepo.SaveRefreshToken(refreshTokenEntity); err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (u *authUsecase) signClaims(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) parseClaims(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if _, ok := claims["user_id"].(string); !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	claims, err := u.parseClaims(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	if _, isConnectState := claims["provider"]; isConnectState {
		return nil, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	return u.GetUser(claims["user_id"].(string))
}

func (u *authUsecase) GetUser(userID string) (*authdomain.User, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errs.NotFound("user")
	}
	return user, nil
}

func (u *authUsecase) SetConnectCallback(fn ConnectCallback) {
	u.onConnect = fn
}

func (u *authUsecase) AddAccountCleaner(name string, fn AccountCleaner) {
	u.cleaners = append(u.cleaners, namedCleaner{name: name, fn: fn})
}

// DeleteAccount runs every registered cleaner before removing the user row.
func (u *authUsecase) DeleteAccount(ctx context.Context, userID string) error {
	if _, err := u.GetUser(userID); err != nil {
		return err
	}
	for _, c := range u.cleaners {
		if err := c.fn(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", c.name, err)
		}
	}
	if err := u.userRepo.Delete(userID); err != nil {
		return err
	}
	log.Printf("[Auth] Deleted account %s", userID)
	return nil
}
