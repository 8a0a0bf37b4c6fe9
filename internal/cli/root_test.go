package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "syncctl", cmd.Use)
	assert.Contains(t, cmd.Long, "delta set")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"push", "pull", "sync", "count", "purge", "clear", "status", "watch", "upload", "download"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"address", "dsn", "delta-set", "auto-paginate", "ttl", "push-failure-policy", "sync-interval", "log-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s", name)
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	queryFlag := cmd.PersistentFlags().Lookup("query")
	require.NotNil(t, queryFlag)
	assert.Equal(t, "q", queryFlag.Shorthand)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestPullCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	pullCmd, _, err := cmd.Find([]string{"pull"})
	require.NoError(t, err)

	assert.NotNil(t, pullCmd.Flags().Lookup("skip"))
	assert.NotNil(t, pullCmd.Flags().Lookup("limit"))
}

func TestCountCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	countCmd, _, err := cmd.Find([]string{"count"})
	require.NoError(t, err)

	networkFlag := countCmd.Flags().Lookup("network")
	require.NotNil(t, networkFlag)
	assert.Equal(t, "false", networkFlag.DefValue)
}
