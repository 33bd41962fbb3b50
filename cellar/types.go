/*
Package cellar provides the inventory ledger for a wine cellar.

PURPOSE:
  This package contains the data model and the bookkeeping rules that keep
  a product's on-hand quantity and monetary value consistent with the full
  history of stock movements (bookings) against it, including correction
  and deletion of past bookings.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: A catalog entry with a unit price and derived stock/value
  - Booking: A dated, typed movement of quantity against one product
  - Direction: Inbound increases stock, Outbound decreases it
  - ProductChanges/BookingChanges: Sparse updates (nil = leave unchanged)

DESIGN PRINCIPLES:
  1. Derived state: Quantity and TotalValue are owned by the ledger and
     only ever change inside a store transaction with the booking rows
  2. Precision: Uses decimal.Decimal for money to avoid floating-point errors
  3. Reconciliation over deltas: quantity-affecting edits recompute stock
     from the full booking history, never by applying a signed difference

USAGE:
  reg := cellar.NewRegistry(store)
  led := cellar.NewLedger(store)
  id, err := reg.Register(ctx, product)
  _, err = led.Record(ctx, cellar.Booking{ProductID: id, ...})

SEE ALSO:
  - ledger.go: Booking mutations and reconciliation
  - registry.go: Product catalog operations
  - store.go: Persistence interfaces
*/
package cellar

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTION - The two ways a booking can move stock
// =============================================================================

type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Sign returns +1 for Inbound and -1 for Outbound.
func (d Direction) Sign() int {
	if d == Outbound {
		return -1
	}
	return 1
}

func (d Direction) Valid() bool {
	return d == Inbound || d == Outbound
}

// Conventional booking categories. Category is free-form; these are the
// values the UI offers.
const (
	CategoryPurchase    = "purchase"
	CategoryConsumption = "consumption"
	CategoryGift        = "gift"
	CategoryDisposal    = "disposal"
	CategoryRelocation  = "relocation"
	CategoryStockCount  = "stock-count"
	CategoryOther       = "other"
)

// =============================================================================
// PRODUCT - Catalog entry with derived stock and value
// =============================================================================

// Product is one distinct wine in the catalog. Quantity and TotalValue are
// derived: Quantity is the signed sum of all bookings against the product
// and TotalValue is always Quantity * UnitPrice. Only the Ledger mutates
// them.
type Product struct {
	ID       int64
	Producer string
	Varietal string
	Vineyard string
	Country  string
	Vintage  string
	Location string

	// Extra descriptive fields, opaque to the ledger.
	Alcohol   string
	Sugar     string
	Acidity   string
	Info      string
	OrderLink string
	Notes     string

	UnitPrice  decimal.Decimal
	Quantity   int
	TotalValue decimal.Decimal

	CreatedAt time.Time
}

// Identity is the tuple that makes a catalog entry unique. Two products
// with the same identity are duplicates.
type Identity struct {
	Producer string
	Varietal string
	Vineyard string
	Country  string
	Vintage  string
	Location string
}

func (p Product) Identity() Identity {
	return Identity{
		Producer: p.Producer,
		Varietal: p.Varietal,
		Vineyard: p.Vineyard,
		Country:  p.Country,
		Vintage:  p.Vintage,
		Location: p.Location,
	}
}

// Value computes quantity * unit price for an arbitrary quantity.
func Value(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// ProductChanges is a sparse update: nil fields are left unchanged.
// A present field equal to the current value is applied but observable as
// "nothing changed".
type ProductChanges struct {
	Producer  *string
	Varietal  *string
	Vineyard  *string
	Country   *string
	Vintage   *string
	Location  *string
	Alcohol   *string
	Sugar     *string
	Acidity   *string
	Info      *string
	OrderLink *string
	Notes     *string
	UnitPrice *decimal.Decimal
}

// =============================================================================
// BOOKING - A single recorded movement of stock
// =============================================================================

// Booking records one movement of quantity into or out of a product's
// stock. Bookings exist only in relation to exactly one product.
type Booking struct {
	ID        int64
	ProductID int64
	Direction Direction
	Category  string
	Date      time.Time // calendar date, time component ignored
	Quantity  int       // always positive; Direction carries the sign
	Notes     string

	CreatedBy string
	CreatedAt time.Time
}

// SignedQuantity is the booking's contribution to the product's stock.
func (b Booking) SignedQuantity() int {
	return b.Direction.Sign() * b.Quantity
}

// BookingChanges is a sparse update for Amend. nil = leave unchanged.
type BookingChanges struct {
	Quantity  *int
	Direction *Direction
	Category  *string
	Date      *time.Time
	Notes     *string
}

// =============================================================================
// QUERY RESULT TYPES
// =============================================================================

// ProductFilter narrows ListProducts. Query is matched case-insensitively
// against the six identity fields. InStockOnly hides zero-quantity rows.
type ProductFilter struct {
	Query       string
	InStockOnly bool
}

// BookingWithProduct joins a booking with its product's descriptors for
// listing views.
type BookingWithProduct struct {
	Booking
	Producer string
	Varietal string
	Vineyard string
	Country  string
	Vintage  string
	Location string
}

// LocationSummary aggregates on-hand quantity and value for one storage
// location.
type LocationSummary struct {
	Location string
	Quantity int
	Value    decimal.Decimal
}

// MonthlyActivity sums inbound and outbound quantity for one calendar
// month and category bucket.
type MonthlyActivity struct {
	Month    string // "2006-01"
	Category string
	Inbound  int
	Outbound int
}

// DateOnly normalizes a time to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
