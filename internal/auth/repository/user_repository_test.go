package repository

import (
	"path/filepath"
	"testing"
	"time"

	authdomain "advisor-backend/internal/auth/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}, &authdomain.RefreshToken{}, &authdomain.FCMToken{}))
	return db
}

func TestSaveProviderTokensWritesNulls(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	user := &authdomain.User{Email: "advisor@example.com", SignInMethod: "email"}
	require.NoError(t, repo.Create(user))

	user.SetOAuthToken(authdomain.ProviderHubspot, &oauth2.Token{
		AccessToken:  "hs-access",
		RefreshToken: "hs-refresh",
		Expiry:       time.Now().Add(time.Hour),
	})
	require.NoError(t, repo.SaveProviderTokens(user, authdomain.ProviderHubspot))

	connected, err := repo.ListConnected(authdomain.ProviderHubspot)
	require.NoError(t, err)
	require.Len(t, connected, 1)
	assert.Equal(t, "hs-refresh", connected[0].OAuthToken(authdomain.ProviderHubspot).RefreshToken)

	none, err := repo.ListConnected(authdomain.ProviderGoogle)
	require.NoError(t, err)
	assert.Empty(t, none)

	user.ClearOAuthToken(authdomain.ProviderHubspot)
	require.NoError(t, repo.SaveProviderTokens(user, authdomain.ProviderHubspot))

	stored, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.HubspotAccessToken)
	assert.Nil(t, stored.HubspotRefreshToken)
	assert.Nil(t, stored.HubspotTokenExpiry)
	assert.False(t, stored.Connected(authdomain.ProviderHubspot))
}

func TestDeleteRemovesTokens(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	fcmRepo := NewFCMTokenRepository(db)

	user := &authdomain.User{Email: "gone@example.com", SignInMethod: "email"}
	require.NoError(t, repo.Create(user))
	require.NoError(t, repo.SaveRefreshToken(&authdomain.RefreshToken{Token: "r1", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, fcmRepo.SaveToken(user.ID, "device-1", "chrome"))

	require.NoError(t, repo.Delete(user.ID))

	found, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
	rt, err := repo.FindRefreshToken("r1")
	require.NoError(t, err)
	assert.Nil(t, rt)
	tokens, err := fcmRepo.GetTokensByUserID(user.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestFCMSaveTokenMovesDevice(t *testing.T) {
	repo := NewFCMTokenRepository(newTestDB(t))
	require.NoError(t, repo.SaveToken("u1", "device", "firefox"))
	require.NoError(t, repo.SaveToken("u2", "device", "firefox"))

	u1, err := repo.GetTokensByUserID("u1")
	require.NoError(t, err)
	assert.Empty(t, u1)
	u2, err := repo.GetTokensByUserID("u2")
	require.NoError(t, err)
	assert.Len(t, u2, 1)

	require.NoError(t, repo.DeleteTokens([]string{"device"}))
	u2, err = repo.GetTokensByUserID("u2")
	require.NoError(t, err)
	assert.Empty(t, u2)
}
