package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/Meander-Cloud/go-holdem/message"
)

func Test_parseCommand(t *testing.T) {
	cmd, err := parseCommand("  RAISE 40 ")
	require.NoError(t, err)
	assert.Equal(t, m.ActionRaise, cmd.action)
	assert.Equal(t, int64(40), cmd.amount)

	cmd, err = parseCommand("allin")
	require.NoError(t, err)
	assert.Equal(t, m.ActionAllIn, cmd.action)

	cmd, err = parseCommand("status")
	require.NoError(t, err)
	assert.Equal(t, m.ActionInvalid, cmd.action)

	for _, line := range []string{"", "bet", "bet x", "bet -5", "shove"} {
		_, err = parseCommand(line)
		assert.Error(t, err, line)
	}
}
