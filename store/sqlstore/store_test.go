package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sim-inventory/inventory"
	"github.com/warp/sim-inventory/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlstore.Store {
	store, err := sqlstore.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func insertCard(t *testing.T, store *sqlstore.Store, serial string) int64 {
	t.Helper()
	id, err := store.InsertCard(context.Background(), inventory.SimCard{
		SerialNumber: serial,
		Status:       inventory.StatusInStock,
	})
	require.NoError(t, err)
	return id
}

func insertTx(t *testing.T, store *sqlstore.Store, cardID int64, typ inventory.TxType, at time.Time, customerID *int64) int64 {
	t.Helper()
	id, err := store.InsertTransaction(context.Background(), inventory.Transaction{
		SimCardID:  cardID,
		CustomerID: customerID,
		Type:       typ,
		CreatedAt:  at,
	})
	require.NoError(t, err)
	return id
}

func insertCustomer(t *testing.T, store *sqlstore.Store, name string) int64 {
	t.Helper()
	id, err := store.InsertCustomer(context.Background(), inventory.Customer{Name: name})
	require.NoError(t, err)
	return id
}

// =============================================================================
// CARDS
// =============================================================================

func TestStore_GetCard_MissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	card, err := store.GetCard(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, card)
}

func TestStore_InsertCard_RoundTripsNullableFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	typeID, err := store.InsertSimType(ctx, inventory.SimType{Name: "M2M", PurchaseProduct: "Data 1GB"})
	require.NoError(t, err)
	imsi := "001010000000001"

	id, err := store.InsertCard(ctx, inventory.SimCard{
		SerialNumber: "SN1",
		IMSI:         &imsi,
		Status:       inventory.StatusInStock,
		SimTypeID:    &typeID,
	})
	require.NoError(t, err)

	view, err := store.GetCardView(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "SN1", view.SerialNumber)
	require.NotNil(t, view.IMSI)
	assert.Equal(t, imsi, *view.IMSI)
	require.NotNil(t, view.SimType)
	assert.Equal(t, "M2M", view.SimType.Name)

	byIMSI, err := store.GetCardByIMSI(ctx, imsi)
	require.NoError(t, err)
	require.NotNil(t, byIMSI)
	assert.Equal(t, id, byIMSI.ID)

	bare := insertCard(t, store, "SN2")
	bareView, err := store.GetCardView(ctx, bare)
	require.NoError(t, err)
	assert.Nil(t, bareView.IMSI)
	assert.Nil(t, bareView.SimType)
}

func TestStore_DuplicateSerial_IsConflict(t *testing.T) {
	store := newTestStore(t)
	insertCard(t, store, "SN1")

	_, err := store.InsertCard(context.Background(), inventory.SimCard{
		SerialNumber: "SN1",
		Status:       inventory.StatusInStock,
	})
	require.Error(t, err)
	assert.True(t, inventory.IsConflict(err))
}

func TestStore_DeleteReferencedSimType_IsConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	typeID, err := store.InsertSimType(ctx, inventory.SimType{Name: "IoT"})
	require.NoError(t, err)
	_, err = store.InsertCard(ctx, inventory.SimCard{SerialNumber: "SN1", Status: inventory.StatusInStock, SimTypeID: &typeID})
	require.NoError(t, err)

	err = store.DeleteSimType(ctx, typeID)
	require.Error(t, err)
	assert.True(t, inventory.IsConflict(err))
}

func TestStore_ListCardViews_Paging(t *testing.T) {
	store := newTestStore(t)
	for _, serial := range []string{"A", "B", "C", "D", "E"} {
		insertCard(t, store, serial)
	}

	page, err := store.ListCardViews(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "C", page[0].SerialNumber)
	assert.Equal(t, "D", page[1].SerialNumber)

	all, err := store.ListCardViews(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestStore_CountCardsByType_UntypedIsUnknown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	typeID, err := store.InsertSimType(ctx, inventory.SimType{Name: "M2M"})
	require.NoError(t, err)
	for _, serial := range []string{"A", "B"} {
		_, err := store.InsertCard(ctx, inventory.SimCard{SerialNumber: serial, Status: inventory.StatusInStock, SimTypeID: &typeID})
		require.NoError(t, err)
	}
	insertCard(t, store, "C")

	counts, err := store.CountCardsByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, []inventory.TypeCount{{Name: "M2M", Count: 2}, {Name: "unknown", Count: 1}}, counts)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestStore_TransactionsByCard_OrderedByCreatedAtThenID(t *testing.T) {
	store := newTestStore(t)
	card := insertCard(t, store, "SN1")

	// GIVEN: Two events in the same instant and one earlier
	late1 := insertTx(t, store, card, inventory.TxStockIn, t0.Add(time.Hour), nil)
	late2 := insertTx(t, store, card, inventory.TxStockOut, t0.Add(time.Hour), nil)
	early := insertTx(t, store, card, inventory.TxStockIn, t0, nil)

	// WHEN: Loading the history
	txs, err := store.TransactionsByCard(context.Background(), card)
	require.NoError(t, err)

	// THEN: Ordered by time, ties broken by id
	require.Len(t, txs, 3)
	assert.Equal(t, []int64{early, late1, late2}, []int64{txs[0].ID, txs[1].ID, txs[2].ID})
	assert.True(t, txs[0].CreatedAt.Equal(t0))
	assert.Equal(t, time.UTC, txs[0].CreatedAt.Location())
}

func TestStore_CreatedAt_KeepsSubSecondPrecision(t *testing.T) {
	store := newTestStore(t)
	card := insertCard(t, store, "SN1")
	at := t0.Add(123456789 * time.Nanosecond)

	id := insertTx(t, store, card, inventory.TxStockIn, at, nil)

	rec, err := store.GetTransaction(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.CreatedAt.Equal(at))
}

func TestStore_SearchTransactions_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cust := insertCustomer(t, store, "Acme")

	a := insertCard(t, store, "SN-100")
	b := insertCard(t, store, "SN-200")
	c := insertCard(t, store, "X_1")
	insertTx(t, store, a, inventory.TxStockIn, t0, nil)
	insertTx(t, store, a, inventory.TxStockOut, t0.Add(time.Minute), &cust)
	insertTx(t, store, b, inventory.TxStockIn, t0.Add(2*time.Minute), nil)
	insertTx(t, store, c, inventory.TxStockIn, t0.Add(3*time.Minute), nil)
	require.NoError(t, store.SetCardStatus(ctx, a, inventory.StatusOutStock))

	t.Run("serial substring", func(t *testing.T) {
		recs, total, err := store.SearchTransactions(ctx, inventory.TransactionFilter{SerialNumber: "SN-1"}, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, recs, 2)
	})

	t.Run("underscore is literal", func(t *testing.T) {
		_, total, err := store.SearchTransactions(ctx, inventory.TransactionFilter{SerialNumber: "_"}, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("type and card status", func(t *testing.T) {
		recs, total, err := store.SearchTransactions(ctx, inventory.TransactionFilter{
			Type:       inventory.TxStockOut,
			CardStatus: inventory.StatusOutStock,
		}, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, recs, 1)
		require.NotNil(t, recs[0].CustomerName)
		assert.Equal(t, "Acme", *recs[0].CustomerName)
		assert.Equal(t, "SN-100", recs[0].SerialNumber)
	})

	t.Run("page window keeps total", func(t *testing.T) {
		recs, total, err := store.SearchTransactions(ctx, inventory.TransactionFilter{}, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, recs, 1)
		assert.Equal(t, "X_1", recs[0].SerialNumber)
	})
}

func TestStore_DeleteTransactionsByCard_ReturnsCount(t *testing.T) {
	store := newTestStore(t)
	card := insertCard(t, store, "SN1")
	other := insertCard(t, store, "SN2")
	insertTx(t, store, card, inventory.TxStockIn, t0, nil)
	insertTx(t, store, card, inventory.TxStockOut, t0.Add(time.Minute), nil)
	insertTx(t, store, other, inventory.TxStockIn, t0, nil)

	n, err := store.DeleteTransactionsByCard(context.Background(), card)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := store.TransactionsByCard(context.Background(), other)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestStore_StockOutsByCards(t *testing.T) {
	store := newTestStore(t)
	cust := insertCustomer(t, store, "Acme")
	a := insertCard(t, store, "A")
	b := insertCard(t, store, "B")
	insertTx(t, store, a, inventory.TxStockIn, t0, nil)
	insertTx(t, store, a, inventory.TxStockOut, t0.Add(time.Minute), &cust)
	insertTx(t, store, b, inventory.TxStockOut, t0, nil)

	recs, err := store.StockOutsByCards(context.Background(), []int64{a, b})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, inventory.TxStockOut, r.Type)
	}
}

func TestStore_DailyCounts(t *testing.T) {
	store := newTestStore(t)
	card := insertCard(t, store, "SN1")
	day1 := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)
	insertTx(t, store, card, inventory.TxStockIn, day1.AddDate(0, 0, -10), nil)
	insertTx(t, store, card, inventory.TxStockIn, day1, nil)
	insertTx(t, store, card, inventory.TxStockOut, day2, nil)
	insertTx(t, store, card, inventory.TxStockOut, day2.Add(time.Hour), nil)

	counts, err := store.DailyCounts(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []inventory.DailyCount{
		{Day: "2025-03-01", Type: inventory.TxStockIn, Count: 1},
		{Day: "2025-03-02", Type: inventory.TxStockOut, Count: 2},
	}, counts)
}

func TestStore_HoldingsByCustomer_UsesLatestEvent(t *testing.T) {
	store := newTestStore(t)
	acme := insertCustomer(t, store, "Acme")
	globex := insertCustomer(t, store, "Globex")

	// GIVEN: a and b issued to Acme, c issued to Globex then returned
	a := insertCard(t, store, "A")
	b := insertCard(t, store, "B")
	c := insertCard(t, store, "C")
	insertTx(t, store, a, inventory.TxStockOut, t0, &acme)
	insertTx(t, store, b, inventory.TxStockOut, t0, &globex)
	insertTx(t, store, b, inventory.TxStockOut, t0, &acme) // same instant, higher id wins
	insertTx(t, store, c, inventory.TxStockOut, t0, &globex)
	insertTx(t, store, c, inventory.TxStockIn, t0.Add(time.Minute), nil)

	holdings, err := store.HoldingsByCustomer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []inventory.CustomerCount{{ID: acme, Name: "Acme", Count: 2}}, holdings)
}

func TestStore_DeleteReferencedCustomer_IsConflict(t *testing.T) {
	store := newTestStore(t)
	cust := insertCustomer(t, store, "Acme")
	card := insertCard(t, store, "SN1")
	insertTx(t, store, card, inventory.TxStockOut, t0, &cust)

	err := store.DeleteCustomer(context.Background(), cust)
	require.Error(t, err)
	assert.True(t, inventory.IsConflict(err))
}

// =============================================================================
// TRANSACTIONS & SAVEPOINTS
// =============================================================================

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx inventory.Tx) error {
		if _, err := tx.InsertCard(ctx, inventory.SimCard{SerialNumber: "SN1", Status: inventory.StatusInStock}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := store.CountCards(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_Savepoint_RollsBackOnlyTheFailedUnit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("row failed")

	// GIVEN: One transaction with a good row and a failing row
	err := store.WithTx(ctx, func(tx inventory.Tx) error {
		if err := tx.Savepoint(ctx, "row 1", func(sp inventory.Tx) error {
			_, err := sp.InsertCard(ctx, inventory.SimCard{SerialNumber: "OK", Status: inventory.StatusInStock})
			return err
		}); err != nil {
			return err
		}

		err := tx.Savepoint(ctx, "row 2", func(sp inventory.Tx) error {
			if _, err := sp.InsertCard(ctx, inventory.SimCard{SerialNumber: "BAD", Status: inventory.StatusInStock}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		return nil
	})
	require.NoError(t, err)

	// THEN: Only the good row survived the commit
	good, err := store.GetCardBySerial(ctx, "OK")
	require.NoError(t, err)
	assert.NotNil(t, good)

	bad, err := store.GetCardBySerial(ctx, "BAD")
	require.NoError(t, err)
	assert.Nil(t, bad)
}

func TestStore_New_RejectsUnknownDriver(t *testing.T) {
	_, err := sqlstore.New("oracle", "whatever")
	assert.Error(t, err)
}
