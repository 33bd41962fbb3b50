/*
errors.go - Centralized error types for the cellar ledger

PURPOSE:
  All error kinds the ledger and registry can raise, in one place.
  Callers branch with errors.Is / errors.As; the structured types carry
  the numbers needed for user-facing messages.

ERROR CATEGORIES:
  1. Not-found errors - referenced product or booking id does not exist
  2. Validation errors - a mutation would violate a stock invariant
  3. Corruption - committed state implies an impossible quantity

Every error is local to the operation that raised it: the operation's
store transaction is rolled back in full, so no partial update is ever
observable.

SEE ALSO:
  - ledger.go: raises the stock errors
  - registry.go: raises DuplicateProductError
*/
package cellar

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrProductNotFound is returned when a referenced product id does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrBookingNotFound is returned when a referenced booking id does not exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrDuplicateProduct is returned when a registration collides with an
	// existing catalog entry on the identity tuple.
	ErrDuplicateProduct = errors.New("duplicate product")

	// ErrInsufficientStock is returned when an outbound booking exceeds the
	// product's on-hand quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrWouldGoNegative is returned when an amendment's recomputed quantity
	// is negative. The amendment is rolled back in full.
	ErrWouldGoNegative = errors.New("amendment would make stock negative")

	// ErrInconsistentState is returned when deleting a booking would drive
	// quantity below zero. A committed booking whose reversal goes negative
	// signals ledger corruption, not user error.
	ErrInconsistentState = errors.New("inconsistent ledger state")

	// ErrInvalidBooking is returned for malformed booking input (non-positive
	// quantity, unknown direction).
	ErrInvalidBooking = errors.New("invalid booking")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateProductError reports the existing entry a registration collided with.
type DuplicateProductError struct {
	ExistingID int64
	Identity   Identity
}

func (e *DuplicateProductError) Error() string {
	return fmt.Sprintf("product already registered as #%d (%s %s %s)",
		e.ExistingID, e.Identity.Producer, e.Identity.Varietal, e.Identity.Vintage)
}

func (e *DuplicateProductError) Unwrap() error { return ErrDuplicateProduct }

// InsufficientStockError details an outbound booking rejected against the
// pre-operation quantity.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product #%d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// NegativeStockError details an amendment whose reconciled quantity went
// below zero.
type NegativeStockError struct {
	ProductID  int64
	BookingID  int64
	Recomputed int
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("amending booking #%d would leave product #%d at quantity %d",
		e.BookingID, e.ProductID, e.Recomputed)
}

func (e *NegativeStockError) Unwrap() error { return ErrWouldGoNegative }

// InconsistentStateError details a booking deletion whose reversal implies a
// negative quantity. Fatal to the operation, not to the process.
type InconsistentStateError struct {
	ProductID int64
	BookingID int64
	Resulting int
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("removing booking #%d would leave product #%d at quantity %d; ledger is corrupt",
		e.BookingID, e.ProductID, e.Resulting)
}

func (e *InconsistentStateError) Unwrap() error { return ErrInconsistentState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing product or booking.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrBookingNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateProduct) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrWouldGoNegative) ||
		errors.Is(err, ErrInvalidBooking)
}
