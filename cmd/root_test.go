package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"bridge", "backfill", "reconcile", "migrate", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "lilysync", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestBridgeCommand_Flags(t *testing.T) {
	flag := bridgeCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "bridge command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestBackfillCommand_Flags(t *testing.T) {
	flag := backfillCmd.Flags().Lookup("collections")
	require.NotNil(t, flag, "backfill command should have --collections flag")
}

func TestReconcileCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"month", "branch", "apply", "export"} {
		flag := reconcileCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "reconcile should have --%s flag", flagName)
	}
}

func TestStatusCommand_Flags(t *testing.T) {
	flag := statusCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "status command should have --limit flag")
	assert.Equal(t, "20", flag.DefValue)
}
