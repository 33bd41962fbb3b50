/*
handlers.go - HTTP API handlers for the cellar inventory engine

PURPOSE:
  Exposes the product registry and booking ledger via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic.

ENDPOINTS:
  Products:
    GET    /api/products               List catalog (q=, in_stock= filters)
    POST   /api/products               Register catalog entry
    GET    /api/products/{id}          Get one entry
    PATCH  /api/products/{id}          Sparse edit
    DELETE /api/products/{id}          Delete entry and its bookings
    GET    /api/products/{id}/bookings Booking history of one entry

  Bookings:
    GET    /api/bookings               List movements (product_id= filter)
    POST   /api/bookings               Record a movement
    GET    /api/bookings/{id}          Get one movement
    PATCH  /api/bookings/{id}          Amend a movement
    DELETE /api/bookings/{id}          Delete a movement (reverses effect)

  Reports:
    GET    /api/reports/locations      Stock and value per location
    GET    /api/reports/monthly        Inbound/outbound per month+category

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the error kind:
  - 400: Malformed body, invalid movement
  - 404: Product or booking not found
  - 409: Duplicate product, insufficient stock, negative-stock amendment
  - 500: Ledger inconsistency, storage failures

SECURITY NOTE:
  All calls are assumed pre-authorized. The X-Actor header identifies who
  is acting and is stamped onto recorded bookings; it is not verified.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vintry/cellar-engine/cellar"
	"github.com/vintry/cellar-engine/logger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    cellar.Store
	Registry *cellar.Registry
	Ledger   *cellar.Ledger
	Log      *logger.Logger
}

// NewHandler creates a new handler with the given store and logger.
func NewHandler(store cellar.Store, log *logger.Logger) *Handler {
	return &Handler{
		Store:    store,
		Registry: cellar.NewRegistry(store),
		Ledger:   cellar.NewLedger(store),
		Log:      log,
	}
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns catalog entries matching the optional filters.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := cellar.ProductFilter{
		Query:       r.URL.Query().Get("q"),
		InStockOnly: r.URL.Query().Get("in_stock") == "true",
	}

	products, err := h.Store.ListProducts(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns a single catalog entry.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

// CreateProduct registers a new catalog entry with zero stock.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Producer == "" && req.Varietal == "" {
		writeError(w, http.StatusBadRequest, "Producer or varietal is required", nil)
		return
	}

	price := decimal.Zero
	if req.UnitPrice != "" {
		var err error
		if price, err = decimal.NewFromString(req.UnitPrice); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unit_price (use a decimal string)", err)
			return
		}
	}

	p := cellar.Product{
		Producer:  req.Producer,
		Varietal:  req.Varietal,
		Vineyard:  req.Vineyard,
		Country:   req.Country,
		Vintage:   req.Vintage,
		Location:  req.Location,
		Alcohol:   req.Alcohol,
		Sugar:     req.Sugar,
		Acidity:   req.Acidity,
		Info:      req.Info,
		OrderLink: req.OrderLink,
		Notes:     req.Notes,
		UnitPrice: price,
	}

	id, err := h.Registry.Register(r.Context(), p)
	if err != nil {
		h.writeError(w, r, "Failed to register product", err)
		return
	}

	created, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to load registered product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(*created))
}

// UpdateProduct applies a sparse edit to a catalog entry.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	changes := cellar.ProductChanges{
		Producer:  req.Producer,
		Varietal:  req.Varietal,
		Vineyard:  req.Vineyard,
		Country:   req.Country,
		Vintage:   req.Vintage,
		Location:  req.Location,
		Alcohol:   req.Alcohol,
		Sugar:     req.Sugar,
		Acidity:   req.Acidity,
		Info:      req.Info,
		OrderLink: req.OrderLink,
		Notes:     req.Notes,
	}
	if req.UnitPrice != nil {
		price, err := decimal.NewFromString(*req.UnitPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unit_price (use a decimal string)", err)
			return
		}
		changes.UnitPrice = &price
	}

	if _, err := h.Registry.Edit(r.Context(), id, changes); err != nil {
		h.writeError(w, r, "Failed to update product", err)
		return
	}

	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to load updated product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

// DeleteProduct removes a catalog entry and its booking history.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	if err := h.Registry.Remove(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to delete product", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListProductBookings returns the booking history of one catalog entry.
func (h *Handler) ListProductBookings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	// 404 for unknown products rather than an empty list.
	if _, err := h.Store.GetProduct(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to get product", err)
		return
	}

	bookings, err := h.Store.ListBookings(r.Context(), &id)
	if err != nil {
		h.writeError(w, r, "Failed to list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTOs(bookings))
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// ListBookings returns movements joined with product descriptors, for one
// product (?product_id=) or for all.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	var productID *int64
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid product_id", err)
			return
		}
		productID = &id
	}

	bookings, err := h.Store.ListBookings(r.Context(), productID)
	if err != nil {
		h.writeError(w, r, "Failed to list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTOs(bookings))
}

// GetBooking returns a single movement.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	b, err := h.Store.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get booking", err)
		return
	}
	writeJSON(w, http.StatusOK, BookingDTO{
		ID:        b.ID,
		ProductID: b.ProductID,
		Direction: string(b.Direction),
		Category:  b.Category,
		Date:      b.Date.Format("2006-01-02"),
		Quantity:  b.Quantity,
		Notes:     b.Notes,
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	})
}

// CreateBooking records a stock movement and adjusts the product.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		var err error
		if date, err = time.Parse("2006-01-02", req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	b := cellar.Booking{
		ProductID: req.ProductID,
		Direction: cellar.Direction(req.Direction),
		Category:  req.Category,
		Date:      date,
		Quantity:  req.Quantity,
		Notes:     req.Notes,
	}

	id, err := h.Ledger.Record(r.Context(), b)
	if err != nil {
		h.writeError(w, r, "Failed to record booking", err)
		return
	}

	created, err := h.Store.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to load recorded booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, BookingDTO{
		ID:        created.ID,
		ProductID: created.ProductID,
		Direction: string(created.Direction),
		Category:  created.Category,
		Date:      created.Date.Format("2006-01-02"),
		Quantity:  created.Quantity,
		Notes:     created.Notes,
		CreatedBy: created.CreatedBy,
		CreatedAt: created.CreatedAt.Format(time.RFC3339),
	})
}

// UpdateBooking amends a movement; stock is reconciled from full history.
func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	var req UpdateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	changes := cellar.BookingChanges{
		Category: req.Category,
		Quantity: req.Quantity,
		Notes:    req.Notes,
	}
	if req.Direction != nil {
		d := cellar.Direction(*req.Direction)
		changes.Direction = &d
	}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		changes.Date = &date
	}

	if err := h.Ledger.Amend(r.Context(), id, changes); err != nil {
		h.writeError(w, r, "Failed to amend booking", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "amended"})
}

// DeleteBooking removes a movement, reversing its effect on stock.
func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	if err := h.Ledger.Remove(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to delete booking", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// StockByLocation returns quantity and value per storage location.
func (h *Handler) StockByLocation(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Store.StockByLocation(r.Context())
	if err != nil {
		h.writeError(w, r, "Failed to aggregate stock by location", err)
		return
	}

	dtos := make([]LocationSummaryDTO, 0, len(summaries))
	totalQty := 0
	totalValue := decimal.Zero
	for _, s := range summaries {
		dtos = append(dtos, LocationSummaryDTO{
			Location: s.Location,
			Quantity: s.Quantity,
			Value:    s.Value.StringFixed(2),
		})
		totalQty += s.Quantity
		totalValue = totalValue.Add(s.Value)
	}
	writeJSON(w, http.StatusOK, LocationReportDTO{
		Locations:     dtos,
		TotalQuantity: totalQty,
		TotalValue:    totalValue.StringFixed(2),
	})
}

// MonthlyActivity returns inbound/outbound totals per month and category.
func (h *Handler) MonthlyActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.Store.MonthlyActivity(r.Context())
	if err != nil {
		h.writeError(w, r, "Failed to aggregate monthly activity", err)
		return
	}

	dtos := make([]MonthlyActivityDTO, 0, len(activity))
	for _, a := range activity {
		dtos = append(dtos, MonthlyActivityDTO{
			Month:    a.Month,
			Category: a.Category,
			Inbound:  a.Inbound,
			Outbound: a.Outbound,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func toBookingDTOs(bookings []cellar.BookingWithProduct) []BookingDTO {
	dtos := make([]BookingDTO, 0, len(bookings))
	for _, b := range bookings {
		dtos = append(dtos, toBookingDTO(b))
	}
	return dtos
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeError maps domain errors onto HTTP statuses and logs server faults.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && h.Log != nil {
		h.Log.Error(r.Context(), message, err)
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case cellar.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, cellar.ErrDuplicateProduct),
		errors.Is(err, cellar.ErrInsufficientStock),
		errors.Is(err, cellar.ErrWouldGoNegative):
		return http.StatusConflict
	case errors.Is(err, cellar.ErrInvalidBooking):
		return http.StatusBadRequest
	case err != nil && cellar.IsClientError(err):
		return http.StatusBadRequest
	default:
		// Includes ErrInconsistentState: a reversal that no longer sums up
		// is corruption, not a client mistake.
		return http.StatusInternalServerError
	}
}
