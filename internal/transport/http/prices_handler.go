package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/hungkhanh0709/trading-filter/internal/errors"
	"github.com/hungkhanh0709/trading-filter/internal/infrastructure"
	"github.com/hungkhanh0709/trading-filter/internal/services"
)

// PricesHandler serves batch price quotes.
type PricesHandler struct {
	service      *services.PriceService
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewPricesHandler creates a new prices handler.
func NewPricesHandler(service *services.PriceService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PricesHandler {
	return &PricesHandler{
		service:      service,
		validate:     validator.New(),
		logger:       logger.With(slog.String("component", "prices_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the prices routes.
func (h *PricesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.GetPrices)
	r.Delete("/cache", h.InvalidateCache)

	return r
}

// PricesRequest is the POST /api/prices body.
type PricesRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=200,dive,alphanum,min=1,max=10"`
	Refresh bool     `json:"refresh"`
}

// GetPrices handles POST /api/prices
func (h *PricesHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	var req PricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("symbols", "symbols must be 1-200 alphanumeric tickers"))
		return
	}

	resp, err := h.service.Prices(r.Context(), req.Symbols, req.Refresh)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "price fetch failed",
			slog.String("error", err.Error()),
			slog.String("request_id", infrastructure.GetTraceID(r.Context())))
		h.errorHandler.HandleError(w, r, apierrors.ErrAnalyzerFailed)
		return
	}

	render.JSON(w, r, resp)
}

// InvalidateCache handles DELETE /api/prices/cache
func (h *PricesHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.Invalidate()
	render.Status(r, http.StatusNoContent)
	render.NoContent(w, r)
}
