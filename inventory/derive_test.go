package inventory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/sim-inventory/inventory"
)

func tx(id int64, typ inventory.TxType, at time.Time) inventory.Transaction {
	return inventory.Transaction{ID: id, SimCardID: 1, Type: typ, CreatedAt: at}
}

func TestDeriveStatus_EmptyIsInStock(t *testing.T) {
	assert.Equal(t, inventory.StatusInStock, inventory.DeriveStatus(nil))
}

func TestDeriveStatus_LatestByTimeWins(t *testing.T) {
	history := []inventory.Transaction{
		tx(3, inventory.TxStockIn, t0),
		tx(1, inventory.TxStockOut, t0.Add(time.Hour)),
		tx(2, inventory.TxStockIn, t0.Add(-time.Hour)),
	}
	assert.Equal(t, inventory.StatusOutStock, inventory.DeriveStatus(history))
}

func TestDeriveStatus_TieBrokenByID(t *testing.T) {
	// GIVEN: Two events in the same instant (bulk import)
	history := []inventory.Transaction{
		tx(8, inventory.TxStockIn, t0),
		tx(7, inventory.TxStockOut, t0),
	}

	// THEN: The higher id is the latest, regardless of slice order
	latest, ok := inventory.Latest(history)
	assert.True(t, ok)
	assert.Equal(t, int64(8), latest.ID)
	assert.Equal(t, inventory.StatusInStock, inventory.DeriveStatus(history))
}

func TestLatestOfType(t *testing.T) {
	history := []inventory.Transaction{
		tx(1, inventory.TxStockOut, t0),
		tx(2, inventory.TxStockOut, t0.Add(time.Minute)),
		tx(3, inventory.TxStockIn, t0.Add(time.Hour)),
	}

	out, ok := inventory.LatestOfType(history, inventory.TxStockOut)
	assert.True(t, ok)
	assert.Equal(t, int64(2), out.ID)

	_, ok = inventory.LatestOfType(history[:0], inventory.TxStockOut)
	assert.False(t, ok)
}

func TestLatestStockOutCustomer_SkipsRowsWithoutCustomer(t *testing.T) {
	acme, globex := "Acme", "Globex"
	records := []inventory.TransactionRecord{
		{Transaction: inventory.Transaction{ID: 1, Type: inventory.TxStockOut, CreatedAt: t0, CustomerID: int64Ptr(1)}, CustomerName: &acme},
		{Transaction: inventory.Transaction{ID: 2, Type: inventory.TxStockOut, CreatedAt: t0.Add(time.Minute), CustomerID: int64Ptr(2)}, CustomerName: &globex},
		{Transaction: inventory.Transaction{ID: 3, Type: inventory.TxStockOut, CreatedAt: t0.Add(time.Hour)}},
		{Transaction: inventory.Transaction{ID: 4, Type: inventory.TxStockIn, CreatedAt: t0.Add(2 * time.Hour), CustomerID: int64Ptr(1)}, CustomerName: &acme},
	}

	name := inventory.LatestStockOutCustomer(records)
	if assert.NotNil(t, name) {
		assert.Equal(t, "Globex", *name)
	}
	assert.Nil(t, inventory.LatestStockOutCustomer(records[2:]))
}

func TestParseEnums_CaseInsensitive(t *testing.T) {
	s, err := inventory.ParseStatus(" in_stock ")
	assert.NoError(t, err)
	assert.Equal(t, inventory.StatusInStock, s)

	typ, err := inventory.ParseTxType("Stock_Out")
	assert.NoError(t, err)
	assert.Equal(t, inventory.TxStockOut, typ)

	_, err = inventory.ParseStatus("LOST")
	assert.True(t, inventory.IsInvalidInput(err))
}
