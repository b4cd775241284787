package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := WithComponent(New(Config{Format: "json", Output: &buf}), "loop")

	log.Debug().Msg("hidden")
	log.Info().Str("path", "/x/clip.mov").Msg("encoding")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "loop", entry["component"])
	assert.Equal(t, "/x/clip.mov", entry["path"])
	assert.Equal(t, "encoding", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewConsoleDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Output: &buf})

	log.Debug().Msg("scan finished")
	out := buf.String()
	assert.Contains(t, out, "scan finished")
	assert.Contains(t, out, "DBG")
	assert.NotContains(t, out, "\x1b[", "no colour for non-terminal output")
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "loud", Format: "json", Output: &buf})
	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	log.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}
