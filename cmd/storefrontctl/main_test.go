package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()

	up, _, err := root.Find([]string{"migrate", "up"})
	require.NoError(t, err)
	assert.Equal(t, "up", up.Name())

	quote, _, err := root.Find([]string{"quote"})
	require.NoError(t, err)
	assert.Error(t, quote.Args(quote, []string{"0xshop", "1", "2"}))
	assert.NoError(t, quote.Args(quote, []string{"0xshop", "1", "2", "0xbuyer"}))

	strategies, _, err := root.Find([]string{"strategies"})
	require.NoError(t, err)
	assert.Error(t, strategies.Args(strategies, []string{"0xshop"}))
}
