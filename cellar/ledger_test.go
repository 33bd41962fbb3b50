package cellar_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintry/cellar-engine/cellar"
	"github.com/vintry/cellar-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestCellar(t *testing.T) (*cellar.Registry, *cellar.Ledger, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return cellar.NewRegistry(store), cellar.NewLedger(store), store
}

func riesling() cellar.Product {
	return cellar.Product{
		Producer:  "Keller",
		Varietal:  "Riesling",
		Vineyard:  "Hubacker",
		Country:   "Germany",
		Vintage:   "2021",
		Location:  "rack-a",
		UnitPrice: decimal.RequireFromString("10.00"),
	}
}

func inbound(productID int64, quantity int) cellar.Booking {
	return cellar.Booking{
		ProductID: productID,
		Direction: cellar.Inbound,
		Category:  cellar.CategoryPurchase,
		Date:      time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Quantity:  quantity,
	}
}

func outbound(productID int64, quantity int) cellar.Booking {
	return cellar.Booking{
		ProductID: productID,
		Direction: cellar.Outbound,
		Category:  cellar.CategoryConsumption,
		Date:      time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC),
		Quantity:  quantity,
	}
}

func requireStock(t *testing.T, store *sqlite.Store, productID int64, quantity int, value string) {
	t.Helper()
	p, err := store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, quantity, p.Quantity)
	assert.True(t, p.TotalValue.Equal(decimal.RequireFromString(value)),
		"expected value %s, got %s", value, p.TotalValue)
}

// =============================================================================
// RECORDING
// =============================================================================

func TestLedger_Record_Inbound_IncreasesStockAndValue(t *testing.T) {
	// GIVEN: A registered product at 10.00 per unit with zero stock
	// WHEN: Recording an inbound booking of 12
	// THEN: Quantity is 12 and value is 120.00

	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)

	_, err = led.Record(ctx, inbound(id, 12))
	require.NoError(t, err)

	requireStock(t, store, id, 12, "120.00")
}

func TestLedger_Record_Outbound_DecreasesStockAndValue(t *testing.T) {
	// GIVEN: 12 bottles on hand
	// WHEN: Recording an outbound booking of 5
	// THEN: Quantity is 7 and value is 70.00

	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)
	_, err = led.Record(ctx, inbound(id, 12))
	require.NoError(t, err)

	_, err = led.Record(ctx, outbound(id, 5))
	require.NoError(t, err)

	requireStock(t, store, id, 7, "70.00")
}

func TestLedger_Record_Outbound_ExceedingStock_Rejected(t *testing.T) {
	// GIVEN: 12 bottles on hand
	// WHEN: Recording an outbound booking of 20
	// THEN: Rejected with InsufficientStockError, nothing written

	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)
	_, err = led.Record(ctx, inbound(id, 12))
	require.NoError(t, err)

	_, err = led.Record(ctx, outbound(id, 20))

	require.Error(t, err)
	var stockErr *cellar.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 12, stockErr.Available)
	assert.Equal(t, 20, stockErr.Requested)

	// State unchanged: stock intact and no booking row left behind.
	requireStock(t, store, id, 12, "120.00")
	bookings, err := store.ListBookings(ctx, &id)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestLedger_Record_UnknownProduct_NotFound(t *testing.T) {
	_, led, _ := newTestCellar(t)

	_, err := led.Record(context.Background(), inbound(999, 1))

	assert.ErrorIs(t, err, cellar.ErrProductNotFound)
	assert.True(t, cellar.IsNotFound(err))
}

func TestLedger_Record_InvalidMovement_Rejected(t *testing.T) {
	reg, led, _ := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)

	b := inbound(id, 0)
	_, err = led.Record(ctx, b)
	assert.ErrorIs(t, err, cellar.ErrInvalidBooking, "zero quantity")

	b = inbound(id, 3)
	b.Direction = cellar.Direction("sideways")
	_, err = led.Record(ctx, b)
	assert.ErrorIs(t, err, cellar.ErrInvalidBooking, "unknown direction")
}

func TestLedger_Record_StampsActorFromContext(t *testing.T) {
	// GIVEN: A context carrying the caller identity
	// WHEN: Recording a booking
	// THEN: The stored booking carries that identity

	reg, led, store := newTestCellar(t)
	ctx := cellar.WithActor(context.Background(), "marta")

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)

	bookingID, err := led.Record(ctx, inbound(id, 2))
	require.NoError(t, err)

	b, err := store.GetBooking(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, "marta", b.CreatedBy)
}

// =============================================================================
// AMENDMENT
// =============================================================================

func TestLedger_Amend_Quantity_ReconcilesFromFullHistory(t *testing.T) {
	// GIVEN: Inbound 12, outbound 5 (stock 7)
	// WHEN: Amending the inbound booking to 20
	// THEN: Stock is 15 (20 - 5), value 150.00

	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)
	inID, err := led.Record(ctx, inbound(id, 12))
	require.NoError(t, err)
	_, err = led.Record(ctx, outbound(id, 5))
	require.NoError(t, err)

	newQty := 20
	err = led.Amend(ctx, inID, cellar.BookingChanges{Quantity: &newQty})
	require.NoError(t, err)

	requireStock(t, store, id, 15, "150.00")
}

func TestLedger_Amend_WouldGoNegative_RolledBack(t *testing.T) {
	// GIVEN: Inbound 12, outbound 5 (stock 7)
	// WHEN: Amending the inbound booking down to 3
	// THEN: Rejected with ErrWouldGoNegative; booking and product untouched

	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)
	inID, err := led.Record(ctx, inbound(id, 12))
	require.NoError(t, err)
	_, err = led.Record(ctx, outbound(id, 5))
	require.NoError(t, err)

	newQty := 3
	err = led.Amend(ctx, inID, cellar.BookingChanges{Quantity: &newQty})

	require.Error(t, err)
	var negErr *cellar.NegativeStockError
	require.ErrorAs(t, err, &negErr)
	assert.Equal(t, -2, negErr.Recomputed)

	// Rollback restored the original booking quantity too.
	b, err := store.GetBooking(ctx, inID)
	require.NoError(t, err)
	assert.Equal(t, 12, b.Quantity)
	requireStock(t, store, id, 7, "70.00")
}

func TestLedger_Amend_DirectionFlip_Reconciles(t *testing.T) {
	// GIVEN: Inbound 10 and inbound 4 (stock 14)
	// WHEN: Flipping the second booking to outbound
	// THEN: Stock reconciles to 6 (10 - 4)

	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)
	_, err = led.Record(ctx, inbound(id, 10))
	require.NoError(t, err)
	secondID, err := led.Record(ctx, inbound(id, 4))
	require.NoError(t, err)

	out := cellar.Outbound
	err = led.Amend(ctx, secondID, cellar.BookingChanges{Direction: &out})
	require.NoError(t, err)

	requireStock(t, store, id, 6, "60.00")
}

func TestLedger_Amend_NoOp_LeavesEverythingUntouched(t *testing.T) {
	// GIVEN: A recorded booking
	// WHEN: Amending with the values it already has
	// THEN: Succeeds, and nothing changes

	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)
	bID, err := led.Record(ctx, inbound(id, 12))
	require.NoError(t, err)

	qty := 12
	dir := cellar.Inbound
	err = led.Amend(ctx, bID, cellar.BookingChanges{Quantity: &qty, Direction: &dir})
	require.NoError(t, err)

	requireStock(t, store, id, 12, "120.00")
}

func TestLedger_Amend_NotesOnly_DoesNotTouchStock(t *testing.T) {
	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)
	bID, err := led.Record(ctx, inbound(id, 12))
	require.NoError(t, err)

	notes := "case arrived damaged, two bottles replaced"
	err = led.Amend(ctx, bID, cellar.BookingChanges{Notes: &notes})
	require.NoError(t, err)

	b, err := store.GetBooking(ctx, bID)
	require.NoError(t, err)
	assert.Equal(t, notes, b.Notes)
	requireStock(t, store, id, 12, "120.00")
}

func TestLedger_Amend_UnknownBooking_NotFound(t *testing.T) {
	_, led, _ := newTestCellar(t)

	qty := 1
	err := led.Amend(context.Background(), 999, cellar.BookingChanges{Quantity: &qty})

	assert.ErrorIs(t, err, cellar.ErrBookingNotFound)
}

// =============================================================================
// DELETION
// =============================================================================

func TestLedger_Remove_ReversesBookingEffect(t *testing.T) {
	// GIVEN: Inbound 12, outbound 5 (stock 7)
	// WHEN: Deleting the outbound booking
	// THEN: Stock reverts to 12 / 120.00 and the booking is gone

	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)
	_, err = led.Record(ctx, inbound(id, 12))
	require.NoError(t, err)
	outID, err := led.Record(ctx, outbound(id, 5))
	require.NoError(t, err)

	err = led.Remove(ctx, outID)
	require.NoError(t, err)

	requireStock(t, store, id, 12, "120.00")
	_, err = store.GetBooking(ctx, outID)
	assert.ErrorIs(t, err, cellar.ErrBookingNotFound)
}

func TestLedger_Remove_InboundAlreadyConsumed_Inconsistent(t *testing.T) {
	// GIVEN: Inbound 10, outbound 8 (stock 2)
	// WHEN: Deleting the inbound booking (reversal implies -8)
	// THEN: Rejected with InconsistentStateError; booking stays

	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)
	inID, err := led.Record(ctx, inbound(id, 10))
	require.NoError(t, err)
	_, err = led.Record(ctx, outbound(id, 8))
	require.NoError(t, err)

	err = led.Remove(ctx, inID)

	require.Error(t, err)
	var incErr *cellar.InconsistentStateError
	require.ErrorAs(t, err, &incErr)
	assert.Equal(t, -8, incErr.Resulting)
	assert.False(t, cellar.IsClientError(err))

	_, err = store.GetBooking(ctx, inID)
	assert.NoError(t, err)
	requireStock(t, store, id, 2, "20.00")
}

// =============================================================================
// INVARIANT
// =============================================================================

func TestLedger_StockAlwaysEqualsSignedBookingSum(t *testing.T) {
	// A longer mixed sequence of records, amendments and deletions must
	// leave quantity equal to the signed sum of the surviving bookings and
	// value equal to quantity times unit price.

	reg, led, store := newTestCellar(t)
	ctx := context.Background()

	id, err := reg.Register(ctx, riesling())
	require.NoError(t, err)

	firstID, err := led.Record(ctx, inbound(id, 24))
	require.NoError(t, err)
	_, err = led.Record(ctx, outbound(id, 6))
	require.NoError(t, err)
	thirdID, err := led.Record(ctx, outbound(id, 3))
	require.NoError(t, err)

	newQty := 30
	require.NoError(t, led.Amend(ctx, firstID, cellar.BookingChanges{Quantity: &newQty}))
	require.NoError(t, led.Remove(ctx, thirdID))

	bookings, err := store.ListBookings(ctx, &id)
	require.NoError(t, err)
	sum := 0
	for _, b := range bookings {
		sum += b.SignedQuantity()
	}

	p, err := store.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sum, p.Quantity)
	assert.True(t, p.TotalValue.Equal(cellar.Value(p.Quantity, p.UnitPrice)))
	requireStock(t, store, id, 24, "240.00")
}
