/*
store.go - Persistence interfaces for products and bookings

PURPOSE:
  Defines the interface between the ledger/registry and the database.
  Reads go through Store directly; every mutation runs inside WithTx so
  that booking rows and the owning product's quantity/value commit or
  roll back together.

TRANSACTION CONTRACT:
  WithTx(ctx, fn) opens a store transaction, runs fn against it, commits
  when fn returns nil and rolls back otherwise. Conflicting writers on
  the same product are serialized by the implementation; the ledger's
  stock-sufficiency check and the quantity update never interleave with
  another writer.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store (also used in-memory for tests)

SEE ALSO:
  - ledger.go, registry.go: the only callers of the Tx mutation methods
*/
package cellar

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Read side plus transaction entry point
// =============================================================================

// Store provides read access and the transactional mutation entry point.
type Store interface {
	// GetProduct returns the product or ErrProductNotFound.
	GetProduct(ctx context.Context, id int64) (*Product, error)

	// ListProducts returns catalog entries matching the filter, ordered by
	// producer, varietal, vineyard, country, vintage.
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)

	// GetBooking returns the booking or ErrBookingNotFound.
	GetBooking(ctx context.Context, id int64) (*Booking, error)

	// ListBookings returns bookings joined with product descriptors,
	// for one product (productID != nil) or for all, ordered by date then id.
	ListBookings(ctx context.Context, productID *int64) ([]BookingWithProduct, error)

	// StockByLocation aggregates on-hand quantity and value per storage
	// location across all products.
	StockByLocation(ctx context.Context) ([]LocationSummary, error)

	// MonthlyActivity aggregates inbound/outbound quantity per calendar
	// month and category bucket, newest month first.
	MonthlyActivity(ctx context.Context) ([]MonthlyActivity, error)

	// WithTx executes fn within a store transaction.
	// If fn returns an error, every write made through tx is rolled back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// =============================================================================
// TX - Row-level operations available inside a transaction
// =============================================================================

// Tx is the mutation surface handed to WithTx callbacks. Only the Ledger
// and Registry use it; nothing else may touch a product's quantity/value.
type Tx interface {
	// GetProduct returns the product or ErrProductNotFound.
	GetProduct(ctx context.Context, id int64) (*Product, error)

	// FindProductByIdentity returns the id of the product with this identity
	// tuple, or 0 when none exists.
	FindProductByIdentity(ctx context.Context, identity Identity) (int64, error)

	// InsertProduct inserts the product and returns its assigned id.
	InsertProduct(ctx context.Context, p *Product) (int64, error)

	// UpdateProduct overwrites the product's descriptive fields, unit price
	// and derived value.
	UpdateProduct(ctx context.Context, p *Product) error

	// SetProductStock sets the product's derived quantity and value.
	SetProductStock(ctx context.Context, id int64, quantity int, value decimal.Decimal) error

	// DeleteProduct removes the product row.
	DeleteProduct(ctx context.Context, id int64) error

	// GetBooking returns the booking or ErrBookingNotFound.
	GetBooking(ctx context.Context, id int64) (*Booking, error)

	// InsertBooking inserts the booking and returns its assigned id.
	InsertBooking(ctx context.Context, b *Booking) (int64, error)

	// UpdateBooking overwrites the booking's mutable fields.
	UpdateBooking(ctx context.Context, b *Booking) error

	// DeleteBooking removes the booking row.
	DeleteBooking(ctx context.Context, id int64) error

	// DeleteBookingsForProduct removes all bookings of a product
	// (cascading product delete).
	DeleteBookingsForProduct(ctx context.Context, productID int64) error

	// SumSignedQuantity recomputes on-hand stock from scratch: the sum of
	// inbound minus outbound quantity over all bookings of the product.
	SumSignedQuantity(ctx context.Context, productID int64) (int, error)
}
