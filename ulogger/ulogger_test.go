package ulogger_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/halocoin/halominer/ulogger"
	"github.com/ordishs/gocore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var out []map[string]interface{}

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		m := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}

	return out
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.New("miner", ulogger.WithWriter(&buf), ulogger.WithLevel("INFO"))

	logger.Debugf("hidden %d", 1)
	logger.Infof("mined block %d", 7)
	logger.Warnf("stale candidate")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "mined block 7", lines[0]["message"])
	assert.Equal(t, "miner", lines[0]["service"])
	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, int(gocore.INFO), logger.LogLevel())
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.New("miner", ulogger.WithWriter(&buf), ulogger.WithLevel("ERROR"))
	logger.Infof("dropped")
	assert.Empty(t, buf.String())

	logger.SetLogLevel("DEBUG")
	logger.Debugf("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["message"])
	assert.Equal(t, int(gocore.DEBUG), logger.LogLevel())
}

func TestNewInheritsWriterAndLevel(t *testing.T) {
	var buf bytes.Buffer

	parent := ulogger.New("parent", ulogger.WithWriter(&buf), ulogger.WithLevel("WARN"))
	child := parent.New("child")

	child.Infof("dropped")
	child.Warnf("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "child", lines[0]["service"])
}

func TestDuplicateWithLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.New("miner", ulogger.WithWriter(&buf), ulogger.WithLevel("WARN"))
	dup := logger.Duplicate(ulogger.WithLevel("DEBUG"))

	dup.Debugf("from duplicate")
	logger.Debugf("from original")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "from duplicate", lines[0]["message"])
}

func TestTestLoggerType(t *testing.T) {
	logger := ulogger.New("miner", ulogger.WithLoggerType("test"))

	_, ok := logger.(ulogger.TestLogger)
	assert.True(t, ok)
}
