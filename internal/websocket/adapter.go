package websocket

import (
	"context"

	"github.com/hungkhanh0709/trading-filter/internal/analysis"
)

// envelope wraps a batch event with the hub's message type so that UI
// clients can demultiplex hub traffic.
type envelope struct {
	Type  string         `json:"type"`
	Event analysis.Event `json:"event"`
}

// BatchSink adapts the hub to the analysis.Sink interface so a running
// batch can mirror its progress to connected WebSocket clients.
type BatchSink struct {
	hub *Hub
}

// NewBatchSink wraps a hub as a batch event sink.
func NewBatchSink(hub *Hub) *BatchSink {
	return &BatchSink{hub: hub}
}

// Emit broadcasts the event. It never reports failure: WebSocket fan-out
// is best-effort and must not stop a batch the way a closed HTTP stream
// does.
func (s *BatchSink) Emit(_ context.Context, event analysis.Event) error {
	s.hub.BroadcastJSON(envelope{Type: TypeBatchEvent, Event: event})
	return nil
}
