package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/warp/sim-inventory/access"
	"github.com/warp/sim-inventory/inventory"
	"github.com/warp/sim-inventory/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// stepClock advances one second per call so every new event is strictly
// later than the previous one.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T, opts ...inventory.Option) (*inventory.Service, *sqlstore.Store) {
	store, err := sqlstore.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger, _ := logtest.NewNullLogger()
	clock := &stepClock{now: t0}
	base := []inventory.Option{inventory.WithClock(clock.Now), inventory.WithLogger(logger)}
	return inventory.NewService(store, append(base, opts...)...), store
}

func adminCtx() context.Context {
	return access.WithGrants(context.Background(), access.All()...)
}

func viewerCtx() context.Context {
	return access.WithGrants(context.Background(), access.RolePermissions(access.RoleViewer)...)
}

func mustCreateCard(t *testing.T, svc *inventory.Service, serial string, imsi ...string) *inventory.CardView {
	t.Helper()
	in := inventory.CardInput{SerialNumber: serial}
	if len(imsi) > 0 {
		in.IMSI = &imsi[0]
	}
	card, err := svc.CreateCard(adminCtx(), in)
	require.NoError(t, err)
	return card
}

func mustCreateCustomer(t *testing.T, svc *inventory.Service, name string) *inventory.Customer {
	t.Helper()
	c, err := svc.CreateCustomer(adminCtx(), inventory.CustomerInput{Name: name})
	require.NoError(t, err)
	return c
}

// requireStatusInvariant checks the stored status against a fresh
// derivation from the stored ledger.
func requireStatusInvariant(t *testing.T, store inventory.Store, cardID int64) {
	t.Helper()
	ctx := context.Background()
	card, err := store.GetCard(ctx, cardID)
	require.NoError(t, err)
	require.NotNil(t, card)
	history, err := store.TransactionsByCard(ctx, cardID)
	require.NoError(t, err)
	require.Equal(t, inventory.DeriveStatus(history), card.Status, "card %d status drifted from its ledger", cardID)
}

func ledgerSize(t *testing.T, store inventory.Store, cardID int64) int {
	t.Helper()
	history, err := store.TransactionsByCard(context.Background(), cardID)
	require.NoError(t, err)
	return len(history)
}

func int64Ptr(v int64) *int64 { return &v }
