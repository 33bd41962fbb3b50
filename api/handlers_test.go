package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintry/cellar-engine/api"
	"github.com/vintry/cellar-engine/logger"
	"github.com/vintry/cellar-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return api.NewRouter(api.NewHandler(store, log))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func createProduct(t *testing.T, router http.Handler) api.ProductDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/products", map[string]string{
		"producer":   "Keller",
		"varietal":   "Riesling",
		"country":    "Germany",
		"vintage":    "2021",
		"location":   "rack-a",
		"unit_price": "10.00",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var dto api.ProductDTO
	decode(t, rec, &dto)
	return dto
}

func recordBooking(t *testing.T, router http.Handler, productID int64, direction string, qty int) api.BookingDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/bookings", map[string]any{
		"product_id": productID,
		"direction":  direction,
		"category":   "purchase",
		"date":       "2025-03-10",
		"quantity":   qty,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var dto api.BookingDTO
	decode(t, rec, &dto)
	return dto
}

// =============================================================================
// PRODUCT ENDPOINTS
// =============================================================================

func TestAPI_CreateProduct(t *testing.T) {
	router := newTestRouter(t)

	dto := createProduct(t, router)

	assert.Greater(t, dto.ID, int64(0))
	assert.Equal(t, "10.00", dto.UnitPrice)
	assert.Equal(t, 0, dto.Quantity)
	assert.Equal(t, "0.00", dto.TotalValue)
}

func TestAPI_CreateProduct_Duplicate_Conflict(t *testing.T) {
	router := newTestRouter(t)
	createProduct(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/products", map[string]string{
		"producer": "Keller",
		"varietal": "Riesling",
		"country":  "Germany",
		"vintage":  "2021",
		"location": "rack-a",
	}, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_CreateProduct_BadPrice_BadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/products", map[string]string{
		"producer":   "Keller",
		"unit_price": "ten euros",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetProduct_Unknown_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/products/999", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_UpdateProduct_PriceRecomputesValue(t *testing.T) {
	router := newTestRouter(t)
	p := createProduct(t, router)
	recordBooking(t, router, p.ID, "inbound", 12)

	rec := doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/products/%d", p.ID), map[string]string{
		"unit_price": "12.50",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated api.ProductDTO
	decode(t, rec, &updated)
	assert.Equal(t, "12.50", updated.UnitPrice)
	assert.Equal(t, 12, updated.Quantity)
	assert.Equal(t, "150.00", updated.TotalValue)
}

func TestAPI_DeleteProduct_RemovesBookings(t *testing.T) {
	router := newTestRouter(t)
	p := createProduct(t, router)
	recordBooking(t, router, p.ID, "inbound", 3)

	rec := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/products/%d", p.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/bookings", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bookings []api.BookingDTO
	decode(t, rec, &bookings)
	assert.Empty(t, bookings)
}

// =============================================================================
// BOOKING ENDPOINTS
// =============================================================================

func TestAPI_RecordBooking_AdjustsStock(t *testing.T) {
	router := newTestRouter(t)
	p := createProduct(t, router)

	b := recordBooking(t, router, p.ID, "inbound", 12)
	assert.Equal(t, "2025-03-10", b.Date)

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/products/%d", p.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got api.ProductDTO
	decode(t, rec, &got)
	assert.Equal(t, 12, got.Quantity)
	assert.Equal(t, "120.00", got.TotalValue)
}

func TestAPI_RecordBooking_InsufficientStock_Conflict(t *testing.T) {
	router := newTestRouter(t)
	p := createProduct(t, router)
	recordBooking(t, router, p.ID, "inbound", 5)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", map[string]any{
		"product_id": p.ID,
		"direction":  "outbound",
		"quantity":   20,
	}, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_RecordBooking_UnknownProduct_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", map[string]any{
		"product_id": 999,
		"direction":  "inbound",
		"quantity":   1,
	}, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_RecordBooking_StampsActorHeader(t *testing.T) {
	router := newTestRouter(t)
	p := createProduct(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", map[string]any{
		"product_id": p.ID,
		"direction":  "inbound",
		"quantity":   2,
	}, map[string]string{"X-Actor": "marta"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var dto api.BookingDTO
	decode(t, rec, &dto)
	assert.Equal(t, "marta", dto.CreatedBy)
}

func TestAPI_GetBooking(t *testing.T) {
	router := newTestRouter(t)
	p := createProduct(t, router)
	b := recordBooking(t, router, p.ID, "inbound", 12)

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/bookings/%d", b.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got api.BookingDTO
	decode(t, rec, &got)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "inbound", got.Direction)
	assert.Equal(t, 12, got.Quantity)

	rec = doJSON(t, router, http.MethodGet, "/api/bookings/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListBookings_FilterByProduct(t *testing.T) {
	router := newTestRouter(t)
	first := createProduct(t, router)
	recordBooking(t, router, first.ID, "inbound", 3)

	rec := doJSON(t, router, http.MethodPost, "/api/products", map[string]string{
		"producer": "Conterno",
		"varietal": "Nebbiolo",
		"location": "rack-b",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var second api.ProductDTO
	decode(t, rec, &second)
	recordBooking(t, router, second.ID, "inbound", 5)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/bookings?product_id=%d", first.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bookings []api.BookingDTO
	decode(t, rec, &bookings)
	require.Len(t, bookings, 1)
	assert.Equal(t, first.ID, bookings[0].ProductID)
	assert.Equal(t, "Keller", bookings[0].Producer)
}

func TestAPI_AmendBooking_NegativeStock_Conflict(t *testing.T) {
	router := newTestRouter(t)
	p := createProduct(t, router)
	in := recordBooking(t, router, p.ID, "inbound", 12)
	recordBooking(t, router, p.ID, "outbound", 5)

	rec := doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/bookings/%d", in.ID), map[string]any{
		"quantity": 3,
	}, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_DeleteBooking_RevertsStock(t *testing.T) {
	router := newTestRouter(t)
	p := createProduct(t, router)
	recordBooking(t, router, p.ID, "inbound", 12)
	out := recordBooking(t, router, p.ID, "outbound", 5)

	rec := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/bookings/%d", out.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/products/%d", p.ID), nil, nil)
	var got api.ProductDTO
	decode(t, rec, &got)
	assert.Equal(t, 12, got.Quantity)
	assert.Equal(t, "120.00", got.TotalValue)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestAPI_Reports(t *testing.T) {
	router := newTestRouter(t)
	p := createProduct(t, router)
	recordBooking(t, router, p.ID, "inbound", 12)

	rec := doJSON(t, router, http.MethodGet, "/api/reports/locations", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report api.LocationReportDTO
	decode(t, rec, &report)
	require.Len(t, report.Locations, 1)
	assert.Equal(t, "rack-a", report.Locations[0].Location)
	assert.Equal(t, 12, report.Locations[0].Quantity)
	assert.Equal(t, "120.00", report.Locations[0].Value)
	assert.Equal(t, 12, report.TotalQuantity)
	assert.Equal(t, "120.00", report.TotalValue)

	rec = doJSON(t, router, http.MethodGet, "/api/reports/monthly", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var monthly []api.MonthlyActivityDTO
	decode(t, rec, &monthly)
	require.Len(t, monthly, 1)
	assert.Equal(t, "2025-03", monthly[0].Month)
	assert.Equal(t, 12, monthly[0].Inbound)
}
