package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, name := range []string{"run", "plan", "check"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	run, _, err := rootCmd.Find([]string{"run"})
	require.NoError(t, err)
	for _, flag := range []string{"record", "status-addr", "fund", "lease-ttl"} {
		assert.NotNil(t, run.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("plan"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))
}

func TestBasisPointFormatting(t *testing.T) {
	assert.Equal(t, "75%", bps(7500))
	assert.Equal(t, "82.5%", bps(8250))
	assert.Equal(t, "0%", bps(0))
}
