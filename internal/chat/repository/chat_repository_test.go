package repository

import (
	"path/filepath"
	"testing"
	"time"

	"advisor-backend/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "chat.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Conversation{}, &domain.Message{}))
	return db
}

func TestAppendMessageTouchesConversation(t *testing.T) {
	repo := NewChatRepository(newTestDB(t))
	conv := &domain.Conversation{UserID: "u1", Title: "Hello"}
	require.NoError(t, repo.CreateConversation(conv))
	require.NotEmpty(t, conv.ID)

	later := conv.UpdatedAt.Add(time.Minute)
	require.NoError(t, repo.AppendMessage(&domain.Message{ConversationID: conv.ID, Role: domain.RoleUser, Content: "hi", CreatedAt: later}))

	stored, err := repo.FindConversation(conv.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, later, stored.UpdatedAt, time.Millisecond)
}

func TestListMessagesBreaksTiesByInsertion(t *testing.T) {
	repo := NewChatRepository(newTestDB(t))
	conv := &domain.Conversation{UserID: "u1"}
	require.NoError(t, repo.CreateConversation(conv))

	at := time.Now()
	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, repo.AppendMessage(&domain.Message{ConversationID: conv.ID, Role: domain.RoleUser, Content: text, CreatedAt: at}))
	}
	require.NoError(t, repo.AppendMessage(&domain.Message{ConversationID: conv.ID, Role: domain.RoleAssistant, Content: "zeroth", CreatedAt: at.Add(-time.Second)}))

	msgs, err := repo.ListMessages(conv.ID)
	require.NoError(t, err)
	var got []string
	for _, m := range msgs {
		got = append(got, m.Content)
	}
	assert.Equal(t, []string{"zeroth", "first", "second", "third"}, got)
}

func TestListConversationsArchiveFilter(t *testing.T) {
	repo := NewChatRepository(newTestDB(t))
	active := &domain.Conversation{UserID: "u1", Title: "active"}
	archived := &domain.Conversation{UserID: "u1", Title: "old"}
	other := &domain.Conversation{UserID: "u2", Title: "theirs"}
	for _, c := range []*domain.Conversation{active, archived, other} {
		require.NoError(t, repo.CreateConversation(c))
	}
	require.NoError(t, repo.SetArchived(archived.ID, true))
	require.NoError(t, repo.Rename(active.ID, "renamed"))

	visible, err := repo.ListConversations("u1", false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "renamed", visible[0].Title)

	all, err := repo.ListConversations("u1", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteByUserRemovesMessages(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository(db)
	mine := &domain.Conversation{UserID: "u1"}
	theirs := &domain.Conversation{UserID: "u2"}
	require.NoError(t, repo.CreateConversation(mine))
	require.NoError(t, repo.CreateConversation(theirs))
	require.NoError(t, repo.AppendMessage(&domain.Message{ConversationID: mine.ID, Role: domain.RoleUser, Content: "a"}))
	require.NoError(t, repo.AppendMessage(&domain.Message{ConversationID: theirs.ID, Role: domain.RoleUser, Content: "b"}))

	require.NoError(t, repo.DeleteByUser("u1"))

	var count int64
	require.NoError(t, db.Model(&domain.Message{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	gone, err := repo.FindConversation(mine.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.NoError(t, repo.DeleteConversation(theirs.ID))
	msgs, err := repo.ListMessages(theirs.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
