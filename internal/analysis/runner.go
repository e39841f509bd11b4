// Package analysis drives the external per-symbol analyzer process and
// the batched, rate-limited execution over many symbols.
package analysis

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/hungkhanh0709/trading-filter/internal/infrastructure"
)

// Result is the outcome of one analyzer invocation: an opaque success
// payload, or a typed soft failure carrying the symbol and error message.
type Result struct {
	Symbol  string                 `json:"symbol"`
	Payload map[string]interface{} `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// OK reports whether the result is a success payload.
func (r Result) OK() bool {
	return r.Error == ""
}

// Runner invokes the external analyzer, one OS process per call. No
// de-duplication of in-flight calls is performed: a concurrent duplicate
// request starts a second process.
type Runner struct {
	pythonBin  string
	scriptPath string
	strategies []ParseStrategy
	logger     *slog.Logger
	metrics    *infrastructure.BusinessMetrics
}

// NewRunner creates an analyzer runner.
func NewRunner(pythonBin, scriptPath string, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Runner {
	return &Runner{
		pythonBin:  pythonBin,
		scriptPath: scriptPath,
		strategies: DefaultStrategies,
		logger:     logger.With(slog.String("component", "analysis_runner")),
		metrics:    metrics,
	}
}

// Analyze runs one analyzer process for the symbol and normalizes its
// outcome. Every process-level failure becomes a soft Result; the only
// hard error is failing to start the process at all (e.g. interpreter
// not found). The context scopes logging and metrics only: a started
// process always runs to completion, callers stop between symbols
// rather than killing mid-flight work.
func (r *Runner) Analyze(ctx context.Context, symbol string) (Result, error) {
	start := time.Now()

	cmd := exec.Command(r.pythonBin, r.scriptPath, symbol)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.InfoContext(ctx, "starting analyzer",
		slog.String("symbol", symbol),
		slog.String("script", r.scriptPath))

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("failed to start analyzer for %s: %w", symbol, err)
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	result := r.interpret(symbol, stdout.String(), stderr.String(), waitErr)

	r.logger.InfoContext(ctx, "analyzer finished",
		slog.String("symbol", symbol),
		slog.Duration("elapsed", elapsed),
		slog.Bool("ok", result.OK()))
	r.metrics.RecordAnalysis(ctx, symbol, elapsed.Seconds(), result.OK())

	return result, nil
}

// interpret maps process output and exit status to a Result.
func (r *Runner) interpret(symbol, stdout, stderr string, waitErr error) Result {
	if waitErr != nil {
		exitCode := -1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}

		// The analyzer prints a JSON error object to stdout before a
		// non-zero exit. Prefer its message when present.
		if payload, err := ExtractJSON(stdout, r.strategies); err == nil {
			if msg, ok := payload["error"].(string); ok && msg != "" {
				return Result{Symbol: symbol, Error: msg}
			}
		}

		msg := fmt.Sprintf("analyzer exited with code %d", exitCode)
		if tail := lastLine(stderr); tail != "" {
			msg = fmt.Sprintf("%s: %s", msg, tail)
		}
		return Result{Symbol: symbol, Error: msg}
	}

	payload, err := ExtractJSON(stdout, r.strategies)
	if err != nil {
		return Result{Symbol: symbol, Error: err.Error()}
	}

	return Result{Symbol: symbol, Payload: payload}
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	var last string
	for _, line := range bytes.Split([]byte(s), []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			last = string(trimmed)
		}
	}
	return last
}
