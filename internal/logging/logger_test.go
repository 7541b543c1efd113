package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, "warn", "PROD")

	log.Info().Msg("dropped")
	log.Warn().Str("op", "logout").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "kept", line["message"])
	require.Equal(t, "logout", line["op"])
	require.Equal(t, "warn", line["level"])
}

func TestNewWithWriter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, "chatty", "PROD")

	log.Debug().Msg("dropped")
	require.Zero(t, buf.Len())

	log.Info().Msg("kept")
	require.NotZero(t, buf.Len())
}
