package utils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TRACE, ParseLevel("trace"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, CRITICAL, ParseLevel(" Critical "))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}

func TestLoggerFiltersAndFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewLogger(&buf, INFO)

	log.Debug("hidden %d", 1)
	log.Info("gate %s", "active")
	log.Critical("startup failed: %v", "boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "gate active", first["message"])
	assert.Contains(t, first, "time")

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "fatal", second["level"])

	assert.False(t, log.Enabled(DEBUG))
	log.SetMinLevel(TRACE)
	assert.True(t, log.Enabled(TRACE))
}
