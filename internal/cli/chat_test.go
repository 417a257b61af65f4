package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCommand(t *testing.T) {
	t.Run("command exists", func(t *testing.T) {
		cmd := GetRootCmd()
		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == "chat" {
				found = true
				break
			}
		}
		assert.True(t, found, "chat command should exist")
	})

	t.Run("help text", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"chat", "--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		helpText := output.String()
		assert.Contains(t, helpText, "conversation turn")
		assert.Contains(t, helpText, "--session-key")
	})

	t.Run("flags", func(t *testing.T) {
		for _, name := range []string{"session-key", "user", "persona-id", "persona-text", "stream"} {
			assert.NotNil(t, chatCmd.Flags().Lookup(name), "flag %s should exist", name)
		}
		assert.Equal(t, "false", chatCmd.Flags().Lookup("stream").DefValue)
	})
}
