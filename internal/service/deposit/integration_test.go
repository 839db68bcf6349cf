package deposit_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/carmart-wallet/internal/config"
	"github.com/josh-kwaku/carmart-wallet/internal/domain"
	"github.com/josh-kwaku/carmart-wallet/internal/gateway"
	"github.com/josh-kwaku/carmart-wallet/internal/repository"
	"github.com/josh-kwaku/carmart-wallet/internal/service/deposit"
	"github.com/josh-kwaku/carmart-wallet/internal/testutil"
)

const checksumKey = "integration-checksum"

func setupDepositService(t *testing.T, db *sql.DB, lockTimeout time.Duration) *deposit.Service {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"00","desc":"success","data":{"checkoutUrl":"https://pay.example/checkout"}}`))
	}))
	t.Cleanup(srv.Close)

	gw := gateway.NewClient(gateway.Config{
		BaseURL:     srv.URL,
		ClientID:    "client",
		APIKey:      "key",
		ChecksumKey: checksumKey,
	})

	return deposit.NewService(
		repository.NewDB(db, lockTimeout),
		repository.NewDepositRepository(db),
		repository.NewAccountRepository(db),
		gw,
		config.DepositLimits{
			Min: domain.MustParseAmount("10000"),
			Max: domain.MustParseAmount("500000000"),
			Fee: domain.MustParseAmount("2000"),
		},
		deposit.URLs{Return: "https://app.example/return", Cancel: "https://app.example/cancel"},
	)
}

func paidWebhook(t *testing.T, orderCode int64, gross string) []byte {
	t.Helper()
	raw, err := gateway.BuildWebhook(checksumKey, orderCode, domain.MustParseAmount(gross), true, "FT-"+gross)
	require.NoError(t, err)
	return raw
}

func TestDeposit_DuplicateWebhookCreditsOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupDepositService(t, db, 5*time.Second)
	ctx := context.Background()
	owner := testutil.SeedAccount(t, db, "0")

	checkout, err := svc.CreateDeposit(ctx, owner, domain.MustParseAmount("500000"))
	require.NoError(t, err)
	assert.Equal(t, "502000", checkout.Total.String())
	assert.Equal(t, domain.DepositStatusPending, testutil.GetDepositStatus(t, db, checkout.OrderCode))

	raw := paidWebhook(t, checkout.OrderCode, "502000")

	require.NoError(t, svc.HandleWebhook(ctx, raw))
	assert.Equal(t, "500000", testutil.GetBalance(t, db, owner))
	assert.Equal(t, domain.DepositStatusSuccess, testutil.GetDepositStatus(t, db, checkout.OrderCode))

	require.NoError(t, svc.HandleWebhook(ctx, raw))
	assert.Equal(t, "500000", testutil.GetBalance(t, db, owner))
}

func TestDeposit_ConcurrentWebhooksCreditOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupDepositService(t, db, 5*time.Second)
	ctx := context.Background()
	owner := testutil.SeedAccount(t, db, "1000")

	checkout, err := svc.CreateDeposit(ctx, owner, domain.MustParseAmount("500000"))
	require.NoError(t, err)
	raw := paidWebhook(t, checkout.OrderCode, "502000")

	const deliveries = 10
	var wg sync.WaitGroup
	errs := make(chan error, deliveries)
	for range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.HandleWebhook(ctx, raw)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, "501000", testutil.GetBalance(t, db, owner))
}

func TestDeposit_CreatesAccountOnFirstDeposit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupDepositService(t, db, 5*time.Second)
	ctx := context.Background()
	owner := testutil.SeedAccount(t, db, "0")

	_, err := db.Exec(`DELETE FROM accounts WHERE owner_id = $1`, owner)
	require.NoError(t, err)
	require.Equal(t, "", testutil.GetBalance(t, db, owner))

	checkout, err := svc.CreateDeposit(ctx, owner, domain.MustParseAmount("10000"))
	require.NoError(t, err)
	assert.Equal(t, "0", testutil.GetBalance(t, db, owner))
	assert.Equal(t, 1, testutil.CountDeposits(t, db, owner))

	require.NoError(t, svc.HandleWebhook(ctx, paidWebhook(t, checkout.OrderCode, "12000")))
	assert.Equal(t, "10000", testutil.GetBalance(t, db, owner))
}

func TestDeposit_UnknownOrderIsNoop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupDepositService(t, db, 5*time.Second)
	before := testutil.SumBalances(t, db)

	require.NoError(t, svc.HandleWebhook(context.Background(), paidWebhook(t, 1234567, "502000")))
	assert.True(t, before.Equal(testutil.SumBalances(t, db)))
}

func TestDeposit_TamperedWebhookRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupDepositService(t, db, 5*time.Second)
	ctx := context.Background()
	owner := testutil.SeedAccount(t, db, "0")

	checkout, err := svc.CreateDeposit(ctx, owner, domain.MustParseAmount("500000"))
	require.NoError(t, err)

	forged, err := gateway.BuildWebhook("attacker-key", checkout.OrderCode, domain.MustParseAmount("502000"), true, "")
	require.NoError(t, err)

	err = svc.HandleWebhook(ctx, forged)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Equal(t, "0", testutil.GetBalance(t, db, owner))
	assert.Equal(t, domain.DepositStatusPending, testutil.GetDepositStatus(t, db, checkout.OrderCode))
}

func TestDeposit_LockTimeoutIsBusy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupDepositService(t, db, 200*time.Millisecond)
	ctx := context.Background()
	owner := testutil.SeedAccount(t, db, "0")

	checkout, err := svc.CreateDeposit(ctx, owner, domain.MustParseAmount("500000"))
	require.NoError(t, err)

	holder, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = holder.Exec(`SELECT 1 FROM deposits WHERE order_code = $1 FOR UPDATE`, checkout.OrderCode)
	require.NoError(t, err)

	err = svc.HandleWebhook(ctx, paidWebhook(t, checkout.OrderCode, "502000"))
	assert.ErrorIs(t, err, domain.ErrBusy)

	require.NoError(t, holder.Rollback())
	assert.Equal(t, "0", testutil.GetBalance(t, db, owner))

	require.NoError(t, svc.HandleWebhook(ctx, paidWebhook(t, checkout.OrderCode, "502000")))
	assert.Equal(t, "500000", testutil.GetBalance(t, db, owner))
}
