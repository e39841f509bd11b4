package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hungkhanh0709/trading-filter/internal/analysis"
	"github.com/hungkhanh0709/trading-filter/internal/cache"
	"github.com/hungkhanh0709/trading-filter/internal/services"
)

func newPricesHandler(t *testing.T, scriptBody string) *PricesHandler {
	t.Helper()
	logger := testLogger()
	fetcher := analysis.NewPriceFetcher("/bin/sh", writeScript(t, scriptBody), logger)
	priceCache := cache.NewShared[analysis.Price](5*time.Minute, nil)
	service := services.NewPriceService(fetcher, priceCache, logger, nil)
	return NewPricesHandler(service, logger, testErrorHandler())
}

func TestGetPrices(t *testing.T) {
	skipWithoutShell(t)

	h := newPricesHandler(t, `echo '{"VNM": {"price": 65.4, "changePercent": 0.5}}'`)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"symbols": ["vnm"]}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp services.PricesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
	require.Contains(t, resp.Prices, "VNM")
	require.NotNil(t, resp.Prices["VNM"].Price)
	assert.Equal(t, 65.4, *resp.Prices["VNM"].Price)

	// Second identical request is served from the shared cache.
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"symbols": ["VNM"]}`)))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
}

func TestGetPricesValidation(t *testing.T) {
	h := newPricesHandler(t, `echo '{}'`)

	for _, body := range []string{`{`, `{}`, `{"symbols": []}`, `{"symbols": ["NOT A SYMBOL"]}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestGetPricesScriptFailure(t *testing.T) {
	skipWithoutShell(t)

	h := newPricesHandler(t, `exit 1`)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"symbols": ["VNM"]}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestInvalidatePricesCache(t *testing.T) {
	skipWithoutShell(t)

	h := newPricesHandler(t, `echo '{"VNM": {"price": 1.0, "changePercent": 0}}'`)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"symbols": ["VNM"]}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cache", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var resp services.PricesResponse
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"symbols": ["VNM"]}`)))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
}
