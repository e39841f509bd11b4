package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hungkhanh0709/trading-filter/internal/infrastructure"
)

// Batch event types.
const (
	EventTypeProgress = "progress"
	EventTypeError    = "error"
	EventTypeComplete = "complete"
)

// Event is one entry in a batch's progress stream.
type Event struct {
	Type    string   `json:"type"`
	BatchID string   `json:"batchId,omitempty"`
	Current int      `json:"current,omitempty"`
	Total   int      `json:"total,omitempty"`
	Symbol  string   `json:"symbol,omitempty"`
	Result  *Result  `json:"result,omitempty"`
	Error   string   `json:"error,omitempty"`
	Summary *Summary `json:"summary,omitempty"`
}

// Summary aggregates a finished batch.
type Summary struct {
	Total   int      `json:"total"`
	Success int      `json:"success"`
	Errors  int      `json:"errors"`
	Results []Result `json:"results"`
}

// Sink consumes batch events. The transport layer adapts it onto an
// NDJSON response or a WebSocket broadcast; the orchestrator does not
// depend on any particular transport's write semantics.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Analyzer is the per-symbol computation the orchestrator drives.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (Result, error)
}

// SleepFunc waits for the duration or until the context is done.
// Injected so tests can run with a zero-delay clock.
type SleepFunc func(ctx context.Context, d time.Duration) error

// DefaultSleep sleeps on a timer, honoring cancellation.
func DefaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Orchestrator drains an ordered symbol queue through a single worker,
// one analyzer call at a time, with a fixed delay between calls to keep
// under the data source's own throttling.
type Orchestrator struct {
	analyzer Analyzer
	delay    time.Duration
	sleep    SleepFunc
	logger   *slog.Logger
	metrics  *infrastructure.BusinessMetrics
}

// NewOrchestrator creates a batch orchestrator. A nil sleep defaults to
// DefaultSleep.
func NewOrchestrator(analyzer Analyzer, delay time.Duration, sleep SleepFunc, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Orchestrator {
	if sleep == nil {
		sleep = DefaultSleep
	}
	return &Orchestrator{
		analyzer: analyzer,
		delay:    delay,
		sleep:    sleep,
		logger:   logger.With(slog.String("component", "batch_orchestrator")),
		metrics:  metrics,
	}
}

// Run processes the symbols strictly sequentially in input order. One
// progress (or error) event is emitted per completed symbol and exactly
// one complete event afterwards. A symbol's failure never aborts the
// rest of the queue; the batch only stops early when the sink or context
// signals that the consumer is gone.
func (o *Orchestrator) Run(ctx context.Context, symbols []string, sink Sink) (*Summary, error) {
	batchID := uuid.New().String()
	total := len(symbols)

	summary := &Summary{
		Total:   total,
		Results: make([]Result, 0, total),
	}

	o.logger.InfoContext(ctx, "batch started",
		slog.String("batch_id", batchID),
		slog.Int("total", total))
	if o.metrics != nil {
		o.metrics.BatchesTotal.Add(ctx, 1)
	}

	for i, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			o.logger.WarnContext(ctx, "batch cancelled",
				slog.String("batch_id", batchID),
				slog.Int("completed", i))
			return summary, err
		}

		result, err := o.analyzer.Analyze(ctx, symbol)

		event := Event{
			BatchID: batchID,
			Current: i + 1,
			Total:   total,
			Symbol:  symbol,
		}
		if err != nil {
			// The runner itself failed (process could not start).
			// Recorded and streamed, but the queue keeps draining.
			result = Result{Symbol: symbol, Error: err.Error()}
			event.Type = EventTypeError
			event.Error = err.Error()
		} else {
			event.Type = EventTypeProgress
			event.Result = &result
		}

		summary.Results = append(summary.Results, result)
		if result.OK() {
			summary.Success++
		} else {
			summary.Errors++
		}

		if o.metrics != nil {
			o.metrics.BatchSymbolsTotal.Add(ctx, 1)
		}

		if emitErr := sink.Emit(ctx, event); emitErr != nil {
			o.logger.WarnContext(ctx, "batch consumer gone, stopping",
				slog.String("batch_id", batchID),
				slog.Int("completed", i+1),
				slog.String("error", emitErr.Error()))
			return summary, emitErr
		}

		if i < total-1 {
			if err := o.sleep(ctx, o.delay); err != nil {
				return summary, err
			}
		}
	}

	complete := Event{
		Type:    EventTypeComplete,
		BatchID: batchID,
		Total:   total,
		Summary: summary,
	}
	if err := sink.Emit(ctx, complete); err != nil {
		return summary, err
	}

	o.logger.InfoContext(ctx, "batch completed",
		slog.String("batch_id", batchID),
		slog.Int("success", summary.Success),
		slog.Int("errors", summary.Errors))

	return summary, nil
}
