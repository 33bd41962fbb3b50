/*
registry.go - Product catalog operations

PURPOSE:
  Create, edit and delete catalog entries. The registry never performs
  quantity arithmetic except at creation (stock initialized to zero) and
  at delete (cascade removes the product's bookings with it).

DUPLICATE DETECTION:
  A product is identified by the tuple (producer, varietal, vineyard,
  country, vintage, location). Registering the same tuple twice fails with
  DuplicateProductError carrying the existing id.

SPARSE EDITS:
  Edit applies only the fields present in ProductChanges. An edit where
  every present field equals its current value reports changed=false and
  writes nothing. When the unit price changes, the derived total value is
  recomputed in the same transaction so the value invariant holds after
  every committed mutation.

SEE ALSO:
  - ledger.go: booking mutations
  - store.go: Tx interface used here
*/
package cellar

import "context"

// Registry owns the product catalog.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Register creates a new catalog entry with quantity 0 and value 0.
// Fails with DuplicateProductError if the identity tuple already exists.
func (r *Registry) Register(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.FindProductByIdentity(ctx, p.Identity())
		if err != nil {
			return err
		}
		if existing != 0 {
			return &DuplicateProductError{ExistingID: existing, Identity: p.Identity()}
		}

		p.Quantity = 0
		p.TotalValue = Value(0, p.UnitPrice)
		id, err = tx.InsertProduct(ctx, &p)
		return err
	})
	return id, err
}

// Edit applies the fields present in changes. Returns changed=false when
// every present field equals its current value; the store is untouched in
// that case. Fails with ErrProductNotFound if the id does not exist.
func (r *Registry) Edit(ctx context.Context, id int64, changes ProductChanges) (bool, error) {
	changed := false
	err := r.store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}

		priceChanged := false
		apply := func(dst *string, src *string) {
			if src != nil && *src != *dst {
				*dst = *src
				changed = true
			}
		}
		apply(&p.Producer, changes.Producer)
		apply(&p.Varietal, changes.Varietal)
		apply(&p.Vineyard, changes.Vineyard)
		apply(&p.Country, changes.Country)
		apply(&p.Vintage, changes.Vintage)
		apply(&p.Location, changes.Location)
		apply(&p.Alcohol, changes.Alcohol)
		apply(&p.Sugar, changes.Sugar)
		apply(&p.Acidity, changes.Acidity)
		apply(&p.Info, changes.Info)
		apply(&p.OrderLink, changes.OrderLink)
		apply(&p.Notes, changes.Notes)
		if changes.UnitPrice != nil && !changes.UnitPrice.Equal(p.UnitPrice) {
			p.UnitPrice = *changes.UnitPrice
			priceChanged = true
			changed = true
		}

		if !changed {
			return nil
		}

		// The value invariant must hold after every committed mutation, so a
		// price edit recomputes value against the current quantity.
		if priceChanged {
			p.TotalValue = Value(p.Quantity, p.UnitPrice)
		}
		return tx.UpdateProduct(ctx, p)
	})
	return changed, err
}

// Remove deletes the product and every booking referencing it. No orphaned
// bookings remain. Fails with ErrProductNotFound if the id does not exist.
func (r *Registry) Remove(ctx context.Context, id int64) error {
	return r.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.GetProduct(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteBookingsForProduct(ctx, id); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, id)
	})
}
