package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ircord/pkg/config"
)

func decodeEntry(t *testing.T, out *bytes.Buffer) LogEntry {
	t.Helper()

	line := strings.TrimSpace(out.String())
	require.NotEmpty(t, line, "expected log output")

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestLoggerJSONEntryShape(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "info"}, &out)
	require.NoError(t, err)

	log.With("component", "relay.engine").Info("Dropping message", "source", "#etl", "filtered", true)

	entry := decodeEntry(t, &out)
	require.Equal(t, "info", entry.Level)
	require.Equal(t, "Dropping message", entry.Message)
	require.Equal(t, "relay.engine", entry.Component)
	require.NotEmpty(t, entry.Timestamp)
	require.Equal(t, "#etl", entry.Fields["source"])
	require.Equal(t, true, entry.Fields["filtered"])
}

func TestLoggerJSONErrorValues(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json"}, &out)
	require.NoError(t, err)

	log.Error("Failed to send message", "error", errors.New("HTTP 403"))

	entry := decodeEntry(t, &out)
	require.Equal(t, "HTTP 403", entry.Fields["error"])
}

func TestLoggerRedactsSecrets(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json"}, &out)
	require.NoError(t, err)

	log.With("token", "discord-secret").Info("Connecting", slog.Group("irc", "password", "hunter2", "server", "irc.example.org"))

	require.NotContains(t, out.String(), "discord-secret")
	require.NotContains(t, out.String(), "hunter2")

	entry := decodeEntry(t, &out)
	require.Equal(t, redacted, entry.Fields["token"])
	require.Equal(t, map[string]any{"password": redacted, "server": "irc.example.org"}, entry.Fields["irc"])
}

func TestTextLoggerRedactsSecrets(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "text"}, &out)
	require.NoError(t, err)

	log.Info("Connecting", "password", "hunter2")
	require.NotContains(t, out.String(), "hunter2")
	require.Contains(t, out.String(), redacted)
}

func TestLoggerLevelFiltering(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "error"}, &out)
	require.NoError(t, err)

	log.Info("Ignored")
	require.Empty(t, strings.TrimSpace(out.String()))

	log.Error("Kept")
	require.NotEmpty(t, strings.TrimSpace(out.String()))
}

func TestLoggerEnvironmentOverrides(t *testing.T) {
	unsetLoggingEnv(t)
	t.Setenv(envLevel, "debug")
	t.Setenv(envFormat, "text")

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "error"}, &out)
	require.NoError(t, err)

	log.Debug("Debug enabled", "component", "test")
	line := strings.TrimSpace(out.String())
	require.NotEmpty(t, line, "expected debug output with env override")
	require.False(t, strings.HasPrefix(line, "{"), "expected text format override, got %q", line)
}

func TestLoggerDefaultsToTextFormat(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{}, &out)
	require.NoError(t, err)

	log.Info("Default format")
	line := strings.TrimSpace(out.String())
	require.NotEmpty(t, line)
	require.False(t, strings.HasPrefix(line, "{"), "expected text format by default, got %q", line)
}

func TestLoggerRejectsUnknownSettings(t *testing.T) {
	unsetLoggingEnv(t)

	_, err := newWithWriter(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{})
	require.Error(t, err)

	_, err = newWithWriter(config.LoggingConfig{Level: "verbose"}, &bytes.Buffer{})
	require.Error(t, err)
}

func unsetLoggingEnv(t *testing.T) {
	t.Helper()
	t.Setenv(envLevel, "")
	t.Setenv(envFormat, "")
	t.Setenv(envAddSource, "")
}
