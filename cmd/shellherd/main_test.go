package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandSurface(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	require.Subset(t, names, []string{"exec", "script", "resolve", "cleanup", "count"})
}

func TestExecCommandsHaveSessionFlag(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"exec", "script"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)

		require.NotNil(t, cmd.Flags().Lookup("session"), "%s needs --session", name)
		require.NotNil(t, cmd.Flags().Lookup("timeout"), "%s needs --timeout", name)
		require.NotNil(t, cmd.Flags().Lookup("bootstrap"), "%s needs --bootstrap", name)
		require.NotNil(t, cmd.Flags().Lookup("bypass"), "%s needs --bypass", name)
	}
}

func TestCountCommand(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"count"})

	require.NoError(t, root.Execute())
}

func TestCleanupCommand(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"cleanup"})

	require.NoError(t, root.Execute())
}
