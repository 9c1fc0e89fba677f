package cli

import (
	"testing"

	knowledgedomain "advisor-backend/internal/knowledge/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncKinds(t *testing.T) {
	kinds, err := syncKinds("all")
	require.NoError(t, err)
	assert.Equal(t, []knowledgedomain.Kind{knowledgedomain.KindEmails, knowledgedomain.KindContacts}, kinds)

	kinds, err = syncKinds("contacts")
	require.NoError(t, err)
	assert.Equal(t, []knowledgedomain.Kind{knowledgedomain.KindContacts}, kinds)

	_, err = syncKinds("calendar")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "sync", "mcp"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, syncCmd.Flags().Lookup("kind"))
	assert.NotNil(t, mcpCmd.Flags().Lookup("user"))
}
