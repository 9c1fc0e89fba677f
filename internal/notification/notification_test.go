package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	authdomain "advisor-backend/internal/auth/domain"
	"advisor-backend/internal/knowledge/domain"
	knowledge "advisor-backend/internal/knowledge/usecase"
	"advisor-backend/pkg/fcm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeUsers map[string]*authdomain.User

func (f fakeUsers) FindByEmail(email string) (*authdomain.User, error) {
	return f[email], nil
}

type fakeQueue struct {
	jobs []knowledge.SyncJob
	full bool
}

func (q *fakeQueue) Enqueue(job knowledge.SyncJob) bool {
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

type fakeTokens struct {
	tokens  []authdomain.FCMToken
	deleted []string
}

func (f *fakeTokens) GetTokensByUserID(string) ([]authdomain.FCMToken, error) {
	return f.tokens, nil
}

func (f *fakeTokens) DeleteTokens(tokens []string) error {
	f.deleted = append(f.deleted, tokens...)
	return nil
}

type fakeSender struct {
	sent   []fcm.Notification
	failed []string
	err    error
}

func (f *fakeSender) Send(_ context.Context, _ []string, n fcm.Notification) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, n)
	return f.failed, nil
}

func googleUser() *authdomain.User {
	u := &authdomain.User{ID: "u1", Email: "advisor@example.com"}
	u.SetOAuthToken(authdomain.ProviderGoogle, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)})
	return u
}

func TestHandleNotificationDeduplicatesByHistoryID(t *testing.T) {
	queue := &fakeQueue{}
	svc := newService(fakeUsers{"advisor@example.com": googleUser()}, queue)

	assert.True(t, svc.HandleNotification([]byte(`{"emailAddress":"advisor@example.com","historyId":10}`)))
	assert.False(t, svc.HandleNotification([]byte(`{"emailAddress":"advisor@example.com","historyId":10}`)))
	assert.False(t, svc.HandleNotification([]byte(`{"emailAddress":"advisor@example.com","historyId":9}`)))
	assert.True(t, svc.HandleNotification([]byte(`{"emailAddress":"advisor@example.com","historyId":11}`)))

	require.Len(t, queue.jobs, 2)
	assert.Equal(t, knowledge.SyncJob{UserID: "u1", Kind: domain.KindEmails}, queue.jobs[0])
}

func TestHandleNotificationIgnoresUnknownOrDisconnected(t *testing.T) {
	queue := &fakeQueue{}
	svc := newService(fakeUsers{"plain@example.com": {ID: "u2", Email: "plain@example.com"}}, queue)

	assert.False(t, svc.HandleNotification([]byte(`not json`)))
	assert.False(t, svc.HandleNotification([]byte(`{"emailAddress":"nobody@example.com","historyId":1}`)))
	assert.False(t, svc.HandleNotification([]byte(`{"emailAddress":"plain@example.com","historyId":1}`)))
	assert.Empty(t, queue.jobs)
}

func TestHandleNotificationQueueFull(t *testing.T) {
	svc := newService(fakeUsers{"advisor@example.com": googleUser()}, &fakeQueue{full: true})
	assert.False(t, svc.HandleNotification([]byte(`{"emailAddress":"advisor@example.com","historyId":1}`)))
}

func TestPusherPrunesFailedTokens(t *testing.T) {
	tokens := &fakeTokens{tokens: []authdomain.FCMToken{{Token: "good"}, {Token: "stale"}}}
	sender := &fakeSender{failed: []string{"stale"}}
	p := NewPusher(tokens, sender)

	n, err := p.NotifyUser(context.Background(), "u1", fcm.Notification{Title: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"stale"}, tokens.deleted)
}

func TestPusherWithoutDevices(t *testing.T) {
	sender := &fakeSender{}
	n, err := NewPusher(&fakeTokens{}, sender).NotifyUser(context.Background(), "u1", fcm.Notification{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sender.sent)

	_, err = NewPusher(&fakeTokens{tokens: []authdomain.FCMToken{{Token: "t"}}}, &fakeSender{err: errors.New("down")}).
		NotifyUser(context.Background(), "u1", fcm.Notification{})
	assert.Error(t, err)
}

func TestSyncFinishedMessage(t *testing.T) {
	sender := &fakeSender{}
	p := NewPusher(&fakeTokens{tokens: []authdomain.FCMToken{{Token: "t"}}}, sender)

	p.SyncFinished(context.Background(), "u1", domain.KindContacts, knowledge.SyncResult{Stored: 4})
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "4 new contacts are ready to search", sender.sent[0].Body)
	assert.Equal(t, "sync_finished", sender.sent[0].Data["type"])
}
