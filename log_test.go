package oracli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", LogFormatJSON)
	log.Info().Msg("hidden")
	log.Warn().Str("stmt", "1").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "shown", entry["message"])
	require.Equal(t, "oracli", entry["component"])
	require.Contains(t, entry, "time")

	buf.Reset()
	log = NewLogger(&buf, "bogus", LogFormatConsole)
	log.Debug().Msg("hidden")
	log.Info().Msg("console line")
	require.Contains(t, buf.String(), "console line")
	require.NotContains(t, buf.String(), "{")
}
