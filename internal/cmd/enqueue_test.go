package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetEnqueueFlags(t *testing.T) {
	t.Helper()
	enqueuePriority = 0
	enqueueTimeout = 0
	enqueueDelay = 0
	enqueueMaxRetries = -1
	enqueueID = ""
	enqueueJobPath = ""
}

func TestParseEnqueueArgRawCommand(t *testing.T) {
	resetEnqueueFlags(t)

	params, err := parseEnqueueArg(enqueueCmd, "tar czf backup.tgz /data")
	require.NoError(t, err)

	assert.Equal(t, "tar czf backup.tgz /data", params.Command)
	assert.Equal(t, 0, params.Priority)
	assert.Nil(t, params.MaxRetries)
	assert.Nil(t, params.RunAt)
}

func TestParseEnqueueArgJSON(t *testing.T) {
	resetEnqueueFlags(t)

	params, err := parseEnqueueArg(enqueueCmd,
		`{"command":"make test","priority":4,"timeout_seconds":60,"max_retries":1}`)
	require.NoError(t, err)

	assert.Equal(t, "make test", params.Command)
	assert.Equal(t, 4, params.Priority)
	assert.Equal(t, 60, params.TimeoutSeconds)
	require.NotNil(t, params.MaxRetries)
	assert.Equal(t, 1, *params.MaxRetries)
}

func TestParseEnqueueArgJSONDelay(t *testing.T) {
	resetEnqueueFlags(t)

	before := time.Now().UTC()
	params, err := parseEnqueueArg(enqueueCmd,
		`{"command":"echo later","delay_seconds":30}`)
	require.NoError(t, err)

	require.NotNil(t, params.RunAt)
	delay := params.RunAt.Sub(before)
	assert.GreaterOrEqual(t, delay, 29*time.Second)
	assert.LessOrEqual(t, delay, 31*time.Second)
}

func TestParseEnqueueArgInvalidJSON(t *testing.T) {
	resetEnqueueFlags(t)

	_, err := parseEnqueueArg(enqueueCmd, `{"command":`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid job JSON")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "123456789012", shortID("1234567890123456"))
}
