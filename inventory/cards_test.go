package inventory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sim-inventory/inventory"
)

// =============================================================================
// CREATE / UPDATE / REMOVE
// =============================================================================

func TestCreateCard_RecordsInitialStockIn(t *testing.T) {
	svc, store := newTestService(t)

	card := mustCreateCard(t, svc, "  SN1  ", " IMSI1 ")

	assert.Equal(t, "SN1", card.SerialNumber)
	require.NotNil(t, card.IMSI)
	assert.Equal(t, "IMSI1", *card.IMSI)
	assert.Equal(t, inventory.StatusInStock, card.Status)

	history, err := store.TransactionsByCard(context.Background(), card.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, inventory.TxStockIn, history[0].Type)
}

func TestCreateCard_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	mustCreateCard(t, svc, "SN1", "IMSI1")

	tests := []struct {
		name  string
		input inventory.CardInput
		check func(error) bool
	}{
		{"blank serial", inventory.CardInput{SerialNumber: "  "}, inventory.IsInvalidInput},
		{"duplicate serial", inventory.CardInput{SerialNumber: "SN1"}, inventory.IsConflict},
		{"imsi owned elsewhere", inventory.CardInput{SerialNumber: "SN2", IMSI: strPtr("IMSI1")}, inventory.IsInvalidInput},
		{"unknown sim type", inventory.CardInput{SerialNumber: "SN3", SimTypeID: int64Ptr(999)}, inventory.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCard(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
		})
	}
}

func TestCreateCard_BlankIMSIStoredAsNull(t *testing.T) {
	svc, _ := newTestService(t)

	// Two blank IMSIs must not collide on the unique index
	a := mustCreateCard(t, svc, "A", "   ")
	b := mustCreateCard(t, svc, "B", "")
	assert.Nil(t, a.IMSI)
	assert.Nil(t, b.IMSI)
}

func TestUpdateCard_NeverTouchesStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	acme := mustCreateCustomer(t, svc, "Acme")
	card := mustCreateCard(t, svc, "SN1", "IMSI1")
	_, err := svc.ChangeCustomer(ctx, card.ID, &acme.ID)
	require.NoError(t, err)

	view, err := svc.UpdateCard(ctx, card.ID, inventory.CardPatch{
		SerialNumber: strPtr("SN1-B"),
		IMSI:         strPtr(" "),
	})
	require.NoError(t, err)
	assert.Equal(t, "SN1-B", view.SerialNumber)
	assert.Nil(t, view.IMSI)
	assert.Equal(t, inventory.StatusOutStock, view.Status)
	require.NotNil(t, view.CustomerName)
	assert.Equal(t, "Acme", *view.CustomerName)
}

func TestUpdateCard_IMSIOwnedElsewhere(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateCard(t, svc, "A", "IMSI-A")
	b := mustCreateCard(t, svc, "B", "IMSI-B")

	_, err := svc.UpdateCard(adminCtx(), b.ID, inventory.CardPatch{IMSI: strPtr("IMSI-A")})
	require.Error(t, err)
	assert.True(t, inventory.IsInvalidInput(err))
	assert.Equal(t, "IMSI already assigned to another sim", err.Error())

	// Re-asserting its own IMSI is fine
	_, err = svc.UpdateCard(adminCtx(), b.ID, inventory.CardPatch{IMSI: strPtr("IMSI-B")})
	assert.NoError(t, err)
}

func TestRemoveCard_DeletesLedgerExplicitly(t *testing.T) {
	svc, store := newTestService(t)
	ctx := adminCtx()
	card := mustCreateCard(t, svc, "SN1")
	_, err := svc.ChangeCustomer(ctx, card.ID, &mustCreateCustomer(t, svc, "Acme").ID)
	require.NoError(t, err)

	removed, err := svc.RemoveCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	got, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, ledgerSize(t, store, card.ID))

	_, err = svc.RemoveCard(ctx, card.ID)
	assert.True(t, inventory.IsNotFound(err))
}

// =============================================================================
// READS
// =============================================================================

func TestGetCard_CustomerNameOnlyWhenOutStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	acme := mustCreateCustomer(t, svc, "Acme")
	card := mustCreateCard(t, svc, "SN1")

	view, err := svc.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Nil(t, view.CustomerName)
	assert.Len(t, view.Transactions, 1)

	_, err = svc.ChangeCustomer(ctx, card.ID, &acme.ID)
	require.NoError(t, err)

	view, err = svc.GetCard(ctx, card.ID)
	require.NoError(t, err)
	require.NotNil(t, view.CustomerName)
	assert.Equal(t, "Acme", *view.CustomerName)

	_, err = svc.GetCard(ctx, 999)
	assert.True(t, inventory.IsNotFound(err))
}

func TestListCards_AttachesCustomerNames(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	acme := mustCreateCustomer(t, svc, "Acme")
	a := mustCreateCard(t, svc, "A")
	mustCreateCard(t, svc, "B")
	_, err := svc.ChangeCustomer(ctx, a.ID, &acme.ID)
	require.NoError(t, err)

	cards, err := svc.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	require.NotNil(t, cards[0].CustomerName)
	assert.Equal(t, "Acme", *cards[0].CustomerName)
	assert.Nil(t, cards[1].CustomerName)
	assert.Nil(t, cards[0].Transactions, "list views carry no history")
}

func TestPaginateCards_ClampsAndOrders(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	for i := 1; i <= 12; i++ {
		mustCreateCard(t, svc, fmt.Sprintf("SN%02d", i))
	}

	page, err := svc.PaginateCards(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, inventory.DefaultCardLimit, page.Limit)
	assert.Equal(t, 12, page.Total)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, "SN01", page.Items[0].SerialNumber)

	page, err = svc.PaginateCards(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, "SN11", page.Items[0].SerialNumber)

	page, err = svc.PaginateCards(ctx, -1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, inventory.MaxCardLimit, page.Limit)
	assert.Len(t, page.Items, 12)
}

// =============================================================================
// SUMMARY
// =============================================================================

type memoryCache struct {
	value       *inventory.Summary
	gen         int64
	invalidated int
	afterGet    func()
}

func (c *memoryCache) Get(context.Context) (*inventory.Summary, int64, bool, error) {
	value, gen := c.value, c.gen
	if c.afterGet != nil {
		c.afterGet()
	}
	return value, gen, value != nil, nil
}

func (c *memoryCache) Set(_ context.Context, gen int64, s inventory.Summary) error {
	if gen == c.gen {
		c.value = &s
	}
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.value = nil
	c.gen++
	c.invalidated++
	return nil
}

func TestCardSummary_CountsAndRatio(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	acme := mustCreateCustomer(t, svc, "Acme")
	m2m, err := svc.CreateSimType(ctx, inventory.SimTypeInput{Name: "M2M"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		card, err := svc.CreateCard(ctx, inventory.CardInput{SerialNumber: fmt.Sprintf("T%d", i), SimTypeID: &m2m.ID})
		require.NoError(t, err)
		if i == 0 {
			_, err = svc.ChangeCustomer(ctx, card.ID, &acme.ID)
			require.NoError(t, err)
		}
	}

	sum, err := svc.CardSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.InStock)
	assert.Equal(t, 1, sum.OutStock)
	assert.Equal(t, "33.33", sum.OutStockRatio.StringFixed(2))
	assert.Equal(t, []inventory.TypeCount{{Name: "M2M", Count: 3}}, sum.ByType)
}

func TestCardSummary_CacheInvalidatedOnCommit(t *testing.T) {
	cache := &memoryCache{}
	svc, _ := newTestService(t, inventory.WithSummaryCache(cache))
	ctx := adminCtx()

	mustCreateCard(t, svc, "A")
	first, err := svc.CardSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, cache.value)
	assert.Equal(t, 1, first.Total)

	// A committed mutation drops the cached value
	mustCreateCard(t, svc, "B")
	assert.Nil(t, cache.value)

	second, err := svc.CardSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Total)

	// A failed mutation does not
	invalidated := cache.invalidated
	_, err = svc.CreateCard(ctx, inventory.CardInput{SerialNumber: "A"})
	require.Error(t, err)
	assert.Equal(t, invalidated, cache.invalidated)
	assert.NotNil(t, cache.value)
}

func TestCardSummary_MutationDuringComputeIsNotCached(t *testing.T) {
	cache := &memoryCache{}
	svc, _ := newTestService(t, inventory.WithSummaryCache(cache))
	ctx := adminCtx()
	mustCreateCard(t, svc, "A")

	// GIVEN: A mutation commits right after the cache miss is observed
	cache.afterGet = func() {
		cache.afterGet = nil
		mustCreateCard(t, svc, "B")
	}

	// WHEN: Computing the summary
	_, err := svc.CardSummary(ctx)
	require.NoError(t, err)

	// THEN: The result is not stored under the old generation
	assert.Nil(t, cache.value)

	// AND: The next read computes and caches the current state
	sum, err := svc.CardSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	require.NotNil(t, cache.value)
	assert.Equal(t, 2, cache.value.Total)
}

// =============================================================================
// CONCRETE SCENARIO (ledger half; the import half lives in importer tests)
// =============================================================================

func TestScenario_CreateThenAssignCustomer(t *testing.T) {
	svc, store := newTestService(t)
	ctx := adminCtx()
	customer42 := mustCreateCustomer(t, svc, "Customer 42")

	// GIVEN: SN1/IMSI1 created
	card := mustCreateCard(t, svc, "SN1", "IMSI1")
	assert.Equal(t, 1, ledgerSize(t, store, card.ID))
	assert.Equal(t, inventory.StatusInStock, card.Status)

	// WHEN: Assigned to customer 42
	view, err := svc.ChangeCustomer(ctx, card.ID, &customer42.ID)
	require.NoError(t, err)

	// THEN: New STOCK_OUT, OUT_STOCK, name visible on read
	assert.Equal(t, 2, ledgerSize(t, store, card.ID))
	assert.Equal(t, inventory.StatusOutStock, view.Status)

	read, err := svc.GetCard(ctx, card.ID)
	require.NoError(t, err)
	require.NotNil(t, read.CustomerName)
	assert.Equal(t, "Customer 42", *read.CustomerName)
}

func strPtr(s string) *string { return &s }
