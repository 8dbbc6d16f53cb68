package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(2)
	require.NoError(t, err)
	b, err := RandomHex(2)
	require.NoError(t, err)

	assert.Len(t, a, 4)
	assert.Regexp(t, `^[0-9a-f]{4}$`, a)
	assert.Len(t, b, 4)
}

func TestRandomString(t *testing.T) {
	s, err := RandomString(32)
	require.NoError(t, err)
	assert.Len(t, s, 43)
	assert.NotContains(t, s, "=")
}
