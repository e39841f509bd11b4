package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/hungkhanh0709/trading-filter/internal/errors"
	"github.com/hungkhanh0709/trading-filter/internal/exporter"
	"github.com/hungkhanh0709/trading-filter/internal/infrastructure"
	"github.com/hungkhanh0709/trading-filter/internal/services"
)

// MatrixHandler serves the symbol-by-date presence matrix.
type MatrixHandler struct {
	service      *services.MatrixService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewMatrixHandler creates a new matrix handler.
func NewMatrixHandler(service *services.MatrixService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *MatrixHandler {
	return &MatrixHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "matrix_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the matrix routes.
func (h *MatrixHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/export", h.ExportMatrix)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/", h.GetMatrix)
		r.Get("/watchlist", h.GetWatchlistMatrix)
	})

	return r
}

// GetMatrix handles GET /api/matrix?list=&exchange=&days=
func (h *MatrixHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("days", "days must be a non-negative integer"))
		return
	}

	req := services.MatrixRequest{
		List:     r.URL.Query().Get("list"),
		Exchange: r.URL.Query().Get("exchange"),
		Days:     days,
	}

	m, err := h.service.Matrix(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build matrix",
			slog.String("error", err.Error()),
			slog.String("request_id", infrastructure.GetTraceID(r.Context())))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, m)
}

// GetWatchlistMatrix handles GET /api/matrix/watchlist?days=
func (h *MatrixHandler) GetWatchlistMatrix(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("days", "days must be a non-negative integer"))
		return
	}

	m, err := h.service.Watchlist(r.Context(), days)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, m)
}

// ExportMatrix handles GET /api/matrix/export?list=&exchange=&days=,
// streaming the matrix as a CSV download.
func (h *MatrixHandler) ExportMatrix(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("days", "days must be a non-negative integer"))
		return
	}

	req := services.MatrixRequest{
		List:     r.URL.Query().Get("list"),
		Exchange: r.URL.Query().Get("exchange"),
		Days:     days,
	}

	m, err := h.service.Matrix(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="matrix.csv"`)

	if err := exporter.WriteMatrix(w, m, exporter.WriteOptions{BOMPrefix: true}); err != nil {
		h.logger.ErrorContext(r.Context(), "matrix export failed",
			slog.String("error", err.Error()),
			slog.String("request_id", infrastructure.GetTraceID(r.Context())))
	}
}

// parseDays parses the days query parameter. Empty means "use default".
func parseDays(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return 0, apierrors.ErrInvalidParameter
	}
	return days, nil
}
