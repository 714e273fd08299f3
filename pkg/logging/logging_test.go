package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.String())
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.SlogLevel())
	}
}

func TestInit_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("text", LevelInfo, &buf)

	Info("test-subsystem", "test message")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "test-subsystem")
}

func TestInit_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", LevelInfo, &buf)

	Error("test-subsystem", assertErr, "failed to do thing")

	output := buf.String()
	assert.Contains(t, output, `"msg":"failed to do thing"`)
	assert.Contains(t, output, `"subsystem":"test-subsystem"`)
	assert.Contains(t, output, `"error":"boom"`)
}

var assertErr = errBoom{}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init("text", LevelInfo, &buf)

	Debug("test", "debug message")
	Info("test", "info message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("debug message should be filtered out at INFO level")
	}
	assert.Contains(t, output, "info message")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", TruncateID("short"))
	assert.Equal(t, "abc12345...", TruncateID("abc12345-full-uuid-here"))
}

func TestAudit(t *testing.T) {
	var buf bytes.Buffer
	Init("text", LevelInfo, &buf)

	Audit(AuditEvent{
		Action:     "workflow_cancel",
		Outcome:    "success",
		WorkflowID: "abc12345-full-uuid-here",
		Tenant:     "acme",
	})

	output := buf.String()
	assert.Contains(t, output, "[AUDIT]")
	assert.Contains(t, output, "action=workflow_cancel")
	assert.Contains(t, output, "outcome=success")
	assert.Contains(t, output, "tenant=acme")
}
