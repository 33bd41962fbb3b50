/*
ledger.go - Booking mutations and stock reconciliation

PURPOSE:
  The Ledger is the only component allowed to mutate a product's quantity
  and value, and it does so exclusively in reaction to booking creation,
  amendment or deletion. Each operation runs as one store transaction:
  booking row, product quantity and product value commit or roll back
  together.

RECONCILIATION:
  A quantity-affecting amendment recomputes stock from scratch as the
  signed sum of ALL bookings currently attached to the product, never as
  an incremental delta. Deltas compound error across repeated edits; the
  full-history sum is idempotent and depends only on current ledger
  contents.

ERROR SEMANTICS:
  Record   -> InsufficientStockError, checked against the pre-operation
              quantity before anything is written
  Amend    -> NegativeStockError when the reconciled quantity is negative;
              the transaction abort restores booking and product in full
  Remove   -> InconsistentStateError when reversing a committed booking
              would go negative; that is corruption, not user error

BOOKING LIFECYCLE:
  NonExistent -> Recorded -> {Amended}* -> Deleted

SEE ALSO:
  - registry.go: product catalog operations
  - errors.go: error kinds raised here
*/
package cellar

import (
	"context"
	"fmt"
)

// Ledger enforces that stock and value track booking history exactly.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Record inserts a booking and atomically adjusts the owning product's
// quantity and value. Outbound movements are rejected with
// InsufficientStockError when they exceed the on-hand quantity; the check
// runs against the pre-operation quantity and nothing is written on
// failure.
func (l *Ledger) Record(ctx context.Context, b Booking) (int64, error) {
	if err := validateMovement(b.Quantity, b.Direction); err != nil {
		return 0, err
	}

	var id int64
	err := l.store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.GetProduct(ctx, b.ProductID)
		if err != nil {
			return err
		}

		if b.Direction == Outbound && b.Quantity > p.Quantity {
			return &InsufficientStockError{
				ProductID: p.ID,
				Available: p.Quantity,
				Requested: b.Quantity,
			}
		}

		b.Date = DateOnly(b.Date)
		b.CreatedBy = ActorFrom(ctx)
		id, err = tx.InsertBooking(ctx, &b)
		if err != nil {
			return err
		}

		after := p.Quantity + b.SignedQuantity()
		return tx.SetProductStock(ctx, p.ID, after, Value(after, p.UnitPrice))
	})
	return id, err
}

// Amend updates a booking's mutable fields. When no present field differs
// from its current value the call succeeds without touching the store.
// When quantity or direction changed, the product's stock is recomputed
// from the full booking history; a negative result rejects the amendment
// with NegativeStockError and rolls everything back.
func (l *Ledger) Amend(ctx context.Context, id int64, changes BookingChanges) error {
	return l.store.WithTx(ctx, func(tx Tx) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}

		stockAffected := false
		changed := false
		if changes.Quantity != nil && *changes.Quantity != b.Quantity {
			b.Quantity = *changes.Quantity
			stockAffected = true
			changed = true
		}
		if changes.Direction != nil && *changes.Direction != b.Direction {
			b.Direction = *changes.Direction
			stockAffected = true
			changed = true
		}
		if changes.Category != nil && *changes.Category != b.Category {
			b.Category = *changes.Category
			changed = true
		}
		if changes.Date != nil && !DateOnly(*changes.Date).Equal(b.Date) {
			b.Date = DateOnly(*changes.Date)
			changed = true
		}
		if changes.Notes != nil && *changes.Notes != b.Notes {
			b.Notes = *changes.Notes
			changed = true
		}

		if !changed {
			return nil
		}
		if err := validateMovement(b.Quantity, b.Direction); err != nil {
			return err
		}

		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}

		if !stockAffected {
			return nil
		}

		// Authoritative reconciliation: the signed sum of all bookings,
		// including the amended one just written in this transaction.
		recomputed, err := tx.SumSignedQuantity(ctx, b.ProductID)
		if err != nil {
			return err
		}
		if recomputed < 0 {
			return &NegativeStockError{
				ProductID:  b.ProductID,
				BookingID:  b.ID,
				Recomputed: recomputed,
			}
		}

		p, err := tx.GetProduct(ctx, b.ProductID)
		if err != nil {
			return err
		}
		return tx.SetProductStock(ctx, p.ID, recomputed, Value(recomputed, p.UnitPrice))
	})
}

// Remove deletes a booking, reversing its original effect on the product:
// subtract if it was inbound, add if it was outbound. A reversal that
// would drive quantity negative means the ledger no longer sums to the
// stored stock and is reported as InconsistentStateError.
func (l *Ledger) Remove(ctx context.Context, id int64) error {
	return l.store.WithTx(ctx, func(tx Tx) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		p, err := tx.GetProduct(ctx, b.ProductID)
		if err != nil {
			return err
		}

		resulting := p.Quantity - b.SignedQuantity()
		if resulting < 0 {
			return &InconsistentStateError{
				ProductID: p.ID,
				BookingID: b.ID,
				Resulting: resulting,
			}
		}

		if err := tx.SetProductStock(ctx, p.ID, resulting, Value(resulting, p.UnitPrice)); err != nil {
			return err
		}
		return tx.DeleteBooking(ctx, b.ID)
	})
}

func validateMovement(quantity int, direction Direction) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidBooking, quantity)
	}
	if !direction.Valid() {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidBooking, direction)
	}
	return nil
}
