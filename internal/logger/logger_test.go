package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyvalsSortedByKey(t *testing.T) {
	kv := keyvals(map[string]any{"b": 2, "a": 1, "c": "x"})
	assert.Equal(t, []any{"a", 1, "b", 2, "c", "x"}, kv)
	assert.Nil(t, keyvals(nil))
}

func TestJSONOutputInProduction(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		Init(false)
	})

	Init(true)
	buf.Reset()
	Warn("failed login", map[string]any{"login": "foo@bar.com"})

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)
	assert.True(t, strings.HasPrefix(line, "{"), "expected JSON, got %q", line)
	assert.Contains(t, line, `"msg":"failed login"`)
	assert.Contains(t, line, `"login":"foo@bar.com"`)
}
