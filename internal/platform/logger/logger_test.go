package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donations/internal/platform/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, config.Log{Level: "warn", Format: "json"})

	log.Info("dropped")
	log.Warn("kept", "donor_id", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.EqualValues(t, 7, line["donor_id"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, config.Log{Level: "debug", Format: "text"})

	log.Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
