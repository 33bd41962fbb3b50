/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY FIELDS:
  unit_price and total_value travel as decimal strings ("12.50"), never as
  floats. Clients that send floats lose cents.

SEE ALSO:
  - handlers.go: Uses these types
  - cellar/types.go: The domain model these wrap
*/
package api

import (
	"time"

	"github.com/vintry/cellar-engine/cellar"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ProductDTO represents a catalog entry in API responses.
type ProductDTO struct {
	ID         int64  `json:"id"`
	Producer   string `json:"producer"`
	Varietal   string `json:"varietal"`
	Vineyard   string `json:"vineyard,omitempty"`
	Country    string `json:"country,omitempty"`
	Vintage    string `json:"vintage,omitempty"`
	Location   string `json:"location,omitempty"`
	Alcohol    string `json:"alcohol,omitempty"`
	Sugar      string `json:"sugar,omitempty"`
	Acidity    string `json:"acidity,omitempty"`
	Info       string `json:"info,omitempty"`
	OrderLink  string `json:"order_link,omitempty"`
	Notes      string `json:"notes,omitempty"`
	UnitPrice  string `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	TotalValue string `json:"total_value"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateProductRequest is the request to register a catalog entry.
type CreateProductRequest struct {
	Producer  string `json:"producer"`
	Varietal  string `json:"varietal"`
	Vineyard  string `json:"vineyard"`
	Country   string `json:"country"`
	Vintage   string `json:"vintage"`
	Location  string `json:"location"`
	Alcohol   string `json:"alcohol"`
	Sugar     string `json:"sugar"`
	Acidity   string `json:"acidity"`
	Info      string `json:"info"`
	OrderLink string `json:"order_link"`
	Notes     string `json:"notes"`
	UnitPrice string `json:"unit_price"`
}

// UpdateProductRequest is a sparse edit: absent fields stay untouched.
type UpdateProductRequest struct {
	Producer  *string `json:"producer,omitempty"`
	Varietal  *string `json:"varietal,omitempty"`
	Vineyard  *string `json:"vineyard,omitempty"`
	Country   *string `json:"country,omitempty"`
	Vintage   *string `json:"vintage,omitempty"`
	Location  *string `json:"location,omitempty"`
	Alcohol   *string `json:"alcohol,omitempty"`
	Sugar     *string `json:"sugar,omitempty"`
	Acidity   *string `json:"acidity,omitempty"`
	Info      *string `json:"info,omitempty"`
	OrderLink *string `json:"order_link,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	UnitPrice *string `json:"unit_price,omitempty"`
}

// BookingDTO represents a stock movement in API responses, joined with the
// owning product's identifying fields.
type BookingDTO struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Direction string `json:"direction"`
	Category  string `json:"category"`
	Date      string `json:"date"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`

	Producer string `json:"producer,omitempty"`
	Varietal string `json:"varietal,omitempty"`
	Vineyard string `json:"vineyard,omitempty"`
	Country  string `json:"country,omitempty"`
	Vintage  string `json:"vintage,omitempty"`
	Location string `json:"location,omitempty"`
}

// CreateBookingRequest is the request to record a stock movement.
type CreateBookingRequest struct {
	ProductID int64  `json:"product_id"`
	Direction string `json:"direction"`
	Category  string `json:"category"`
	Date      string `json:"date"` // YYYY-MM-DD, defaults to today
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes"`
}

// UpdateBookingRequest is a sparse amendment: absent fields stay untouched.
type UpdateBookingRequest struct {
	Direction *string `json:"direction,omitempty"`
	Category  *string `json:"category,omitempty"`
	Date      *string `json:"date,omitempty"`
	Quantity  *int    `json:"quantity,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// LocationSummaryDTO aggregates stock per storage location.
type LocationSummaryDTO struct {
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
	Value    string `json:"value"`
}

// LocationReportDTO is the per-location breakdown plus the cellar-wide total.
type LocationReportDTO struct {
	Locations     []LocationSummaryDTO `json:"locations"`
	TotalQuantity int                  `json:"total_quantity"`
	TotalValue    string               `json:"total_value"`
}

// MonthlyActivityDTO aggregates movements per month and category.
type MonthlyActivityDTO struct {
	Month    string `json:"month"` // YYYY-MM
	Category string `json:"category"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toProductDTO(p cellar.Product) ProductDTO {
	return ProductDTO{
		ID:         p.ID,
		Producer:   p.Producer,
		Varietal:   p.Varietal,
		Vineyard:   p.Vineyard,
		Country:    p.Country,
		Vintage:    p.Vintage,
		Location:   p.Location,
		Alcohol:    p.Alcohol,
		Sugar:      p.Sugar,
		Acidity:    p.Acidity,
		Info:       p.Info,
		OrderLink:  p.OrderLink,
		Notes:      p.Notes,
		UnitPrice:  p.UnitPrice.StringFixed(2),
		Quantity:   p.Quantity,
		TotalValue: p.TotalValue.StringFixed(2),
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

func toBookingDTO(b cellar.BookingWithProduct) BookingDTO {
	return BookingDTO{
		ID:        b.ID,
		ProductID: b.ProductID,
		Direction: string(b.Booking.Direction),
		Category:  b.Category,
		Date:      b.Date.Format("2006-01-02"),
		Quantity:  b.Booking.Quantity,
		Notes:     b.Booking.Notes,
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
		Producer:  b.Producer,
		Varietal:  b.Varietal,
		Vineyard:  b.Vineyard,
		Country:   b.Country,
		Vintage:   b.Vintage,
		Location:  b.Location,
	}
}
