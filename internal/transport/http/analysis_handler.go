package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/hungkhanh0709/trading-filter/internal/analysis"
	apierrors "github.com/hungkhanh0709/trading-filter/internal/errors"
	"github.com/hungkhanh0709/trading-filter/internal/infrastructure"
	"github.com/hungkhanh0709/trading-filter/internal/services"
)

// symbolPattern matches HOSE/HNX tickers: short, alphanumeric, no spaces.
var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)

type symbolCtxKey struct{}

// AnalysisHandler serves single-symbol analyses and NDJSON batch streams.
type AnalysisHandler struct {
	service      *services.AnalysisService
	broadcast    analysis.Sink
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalysisHandler creates a new analysis handler. broadcast, when
// non-nil, mirrors batch events to out-of-band observers (the WebSocket
// hub); the NDJSON response remains the authoritative stream.
func NewAnalysisHandler(service *services.AnalysisService, broadcast analysis.Sink, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		broadcast:    broadcast,
		validate:     validator.New(),
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the analysis routes.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/batch", h.RunBatch)

	r.Route("/{symbol}", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(h.SymbolCtx)
		r.Get("/", h.GetAnalysis)
		r.Delete("/cache", h.InvalidateCache)
	})

	return r
}

// SymbolCtx validates the symbol URL parameter.
func (h *AnalysisHandler) SymbolCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := chi.URLParam(r, "symbol")
		if !symbolPattern.MatchString(symbol) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("symbol", "Invalid ticker symbol format"))
			return
		}

		ctx := context.WithValue(r.Context(), symbolCtxKey{}, services.NormalizeSymbol(symbol))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAnalysis handles GET /api/analysis/{symbol}?refresh=true
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	symbol := r.Context().Value(symbolCtxKey{}).(string)
	refresh := r.URL.Query().Get("refresh") == "true"

	resp, err := h.service.Analyze(r.Context(), symbol, refresh)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "analyzer invocation failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
			slog.String("request_id", infrastructure.GetTraceID(r.Context())))
		h.errorHandler.HandleError(w, r, apierrors.ErrAnalyzerFailed)
		return
	}

	// Soft analyzer failures are well-formed payloads, not transport
	// errors: the client distinguishes them by the error field.
	render.JSON(w, r, resp)
}

// InvalidateCache handles DELETE /api/analysis/{symbol}/cache
func (h *AnalysisHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	symbol := r.Context().Value(symbolCtxKey{}).(string)
	h.service.InvalidateSymbol(symbol)
	render.Status(r, http.StatusNoContent)
	render.NoContent(w, r)
}

// BatchRequest is the POST /api/analysis/batch body.
type BatchRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=200,dive,alphanum,min=1,max=10"`
}

// RunBatch handles POST /api/analysis/batch, streaming NDJSON progress
// events as each symbol completes.
func (h *AnalysisHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("symbols", "symbols must be 1-200 alphanumeric tickers"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrInternalServer)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	encoder := json.NewEncoder(w)
	stream := analysis.SinkFunc(func(ctx context.Context, event analysis.Event) error {
		if err := encoder.Encode(event); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	var sink analysis.Sink = stream
	if h.broadcast != nil {
		sink = teeSink{primary: stream, secondary: h.broadcast}
	}

	summary, err := h.service.RunBatch(r.Context(), req.Symbols, sink)
	if err != nil {
		// The stream already carries whatever was emitted before the
		// consumer went away; nothing more can be written.
		h.logger.WarnContext(r.Context(), "batch stream interrupted",
			slog.Int("completed", len(summary.Results)),
			slog.String("error", err.Error()),
			slog.String("request_id", infrastructure.GetTraceID(r.Context())))
		return
	}

	h.logger.InfoContext(r.Context(), "batch finished",
		slog.Int("total", summary.Total),
		slog.Int("success", summary.Success),
		slog.Int("errors", summary.Errors))
}

// teeSink mirrors events to a secondary sink; only the primary sink's
// error can stop a batch.
type teeSink struct {
	primary   analysis.Sink
	secondary analysis.Sink
}

func (t teeSink) Emit(ctx context.Context, event analysis.Event) error {
	_ = t.secondary.Emit(ctx, event)
	return t.primary.Emit(ctx, event)
}
