package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/hungkhanh0709/trading-filter/internal/errors"
	"github.com/hungkhanh0709/trading-filter/internal/infrastructure"
	"github.com/hungkhanh0709/trading-filter/internal/snapshot"
)

// SnapshotHandler exposes the daily snapshot store: reading the raw
// snapshot history and ingesting today's watch-list state.
type SnapshotHandler struct {
	store        *snapshot.Store
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	metrics      *infrastructure.BusinessMetrics
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(store *snapshot.Store, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, metrics *infrastructure.BusinessMetrics) *SnapshotHandler {
	return &SnapshotHandler{
		store:        store,
		logger:       logger.With(slog.String("component", "snapshot_handler")),
		errorHandler: errorHandler,
		metrics:      metrics,
	}
}

// Routes returns the snapshot routes.
func (h *SnapshotHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetSnapshots)
	r.Get("/records", h.GetRecords)
	r.Post("/ingest", h.Ingest)

	return r
}

// GetSnapshots handles GET /api/snapshots
func (h *SnapshotHandler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots := h.store.Snapshots()
	if len(snapshots) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrSnapshotsNotFound)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// GetRecords handles GET /api/snapshots/records, the flat per-symbol view.
func (h *SnapshotHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	records := h.store.Records()

	render.JSON(w, r, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// Ingest handles POST /api/snapshots/ingest: fold the current watch-list
// file into today's snapshot. Per-exchange outcomes are reported in the
// summary; a missing or empty source is a summary-level soft failure,
// not a transport error.
func (h *SnapshotHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	summary := h.store.Ingest()
	h.metrics.RecordIngest(r.Context(), summary.Error == "")

	h.logger.InfoContext(r.Context(), "snapshot ingest requested",
		slog.String("date", summary.Date),
		slog.String("request_id", infrastructure.GetTraceID(r.Context())))

	render.JSON(w, r, summary)
}
