package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type logEntry map[string]any

func decodeLines(t *testing.T, buf *bytes.Buffer) []logEntry {
	t.Helper()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry logEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestDefaultLevelIsWarn(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Writer: buf})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("schema include skipped")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	require.Equal(t, "warn", entries[0]["level"])
	require.Equal(t, "schema include skipped", entries[0]["message"])
}

func TestWithAddsFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "debug", Writer: buf})
	require.NoError(t, err)

	log.With("stage", "precheck").WithFields(map[string]any{"file": "a.xml"}).Debug("stage started")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	require.Equal(t, "precheck", entries[0]["stage"])
	require.Equal(t, "a.xml", entries[0]["file"])
	require.Equal(t, "debug", entries[0]["level"])
}

func TestTimedWritesElapsed(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "debug", Writer: buf})
	require.NoError(t, err)

	log.Timed(time.Now().Add(-time.Millisecond), "done")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0], "elapsed")
}

func TestErrorIncludesCause(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "error", Writer: buf})
	require.NoError(t, err)

	log.Error(errors.New("boom"), "failed")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	require.Equal(t, "boom", entries[0]["error"])
}

func TestInvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
}

func TestNilAndNopAreSafe(t *testing.T) {
	t.Parallel()

	var nilLogger *Logger
	require.NotPanics(t, func() {
		nilLogger.Warn("x")
		nilLogger.Error(nil, "x")
		require.Nil(t, nilLogger.With("k", "v"))
		Nop().Warn("x")
	})
}
