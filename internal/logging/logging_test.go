package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/lifedeck/internal/config"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)
	defer l.Close()

	l.Info("hidden")
	l.Component("sync").Warn("shown", "n", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "component=sync")
	assert.Contains(t, out, "n=3")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Debug("hello", "identity", "bob")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "bob", rec["identity"])
}

func TestLevelChangesAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "error"}, &buf)
	require.NoError(t, err)

	l.Info("first")
	require.NoError(t, SetLevel(l.Level, "info"))
	l.Info("second")

	assert.NotContains(t, buf.String(), "first")
	assert.Contains(t, buf.String(), "second")
	assert.Equal(t, slog.LevelInfo, l.Level.Level())
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lifedeck.log")
	var stderr bytes.Buffer
	l, err := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, &stderr)
	require.NoError(t, err)

	l.Info("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to file"))
	assert.Zero(t, stderr.Len())
}

func TestNewErrors(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New(config.LogConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
