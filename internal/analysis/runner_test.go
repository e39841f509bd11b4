package analysis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeScript materializes a shell script standing in for the analyzer.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analyze.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestRunnerAnalyzeSuccess(t *testing.T) {
	skipWithoutShell(t)

	script := writeScript(t, `
echo "INFO fetching $1" >&2
echo "{\"symbol\": \"$1\", \"score\": 4}"
`)
	r := NewRunner("/bin/sh", script, testLogger(), nil)

	result, err := r.Analyze(context.Background(), "VNM")
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, "VNM", result.Symbol)
	assert.Equal(t, "VNM", result.Payload["symbol"])
	assert.Equal(t, 4.0, result.Payload["score"])
}

func TestRunnerAnalyzeLogNoiseBeforeResult(t *testing.T) {
	skipWithoutShell(t)

	script := writeScript(t, `
echo "progress step 1"
echo "progress step 2"
echo "{\"symbol\": \"$1\"}"
`)
	r := NewRunner("/bin/sh", script, testLogger(), nil)

	result, err := r.Analyze(context.Background(), "FPT")
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, "FPT", result.Payload["symbol"])
}

func TestRunnerAnalyzeScriptErrorJSON(t *testing.T) {
	skipWithoutShell(t)

	script := writeScript(t, `
echo "{\"error\": \"no data for symbol\", \"symbol\": \"$1\"}"
exit 2
`)
	r := NewRunner("/bin/sh", script, testLogger(), nil)

	result, err := r.Analyze(context.Background(), "XXX")
	require.NoError(t, err, "non-zero exit is a soft failure, not an error")
	assert.False(t, result.OK())
	assert.Equal(t, "no data for symbol", result.Error)
	assert.Equal(t, "XXX", result.Symbol)
}

func TestRunnerAnalyzeScriptErrorWithoutJSON(t *testing.T) {
	skipWithoutShell(t)

	script := writeScript(t, `
echo "Traceback (most recent call last):" >&2
echo "ValueError: boom" >&2
exit 3
`)
	r := NewRunner("/bin/sh", script, testLogger(), nil)

	result, err := r.Analyze(context.Background(), "XXX")
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Contains(t, result.Error, "exited with code 3")
	assert.Contains(t, result.Error, "ValueError: boom")
}

func TestRunnerAnalyzeGarbageOutput(t *testing.T) {
	skipWithoutShell(t)

	script := writeScript(t, `echo "not json at all"`)
	r := NewRunner("/bin/sh", script, testLogger(), nil)

	result, err := r.Analyze(context.Background(), "VNM")
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Contains(t, result.Error, "no valid JSON output")
}

func TestRunnerAnalyzeSurvivesContextCancel(t *testing.T) {
	skipWithoutShell(t)

	script := writeScript(t, `
sleep 0.5
echo "{\"symbol\": \"$1\", \"score\": 7}"
`)
	r := NewRunner("/bin/sh", script, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result, err := r.Analyze(ctx, "VNM")
	require.NoError(t, err)
	assert.True(t, result.OK(), "a started analyzer runs to completion: %s", result.Error)
	assert.Equal(t, 7.0, result.Payload["score"])
}

func TestRunnerAnalyzeInterpreterMissing(t *testing.T) {
	r := NewRunner("/nonexistent/python3", "analyze.py", testLogger(), nil)

	_, err := r.Analyze(context.Background(), "VNM")
	require.Error(t, err, "failing to start the process is the one hard error")
	assert.Contains(t, err.Error(), "failed to start analyzer")
}
