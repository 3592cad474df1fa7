package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGamelinkCommand(t *testing.T) {
	cmd := NewGamelinkCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "gamelink", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"gateway", "verify", "console", "auth", "version"}, names)
}

func TestVersionCommand(t *testing.T) {
	cmd := NewGamelinkCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "gamelink dev")
}
