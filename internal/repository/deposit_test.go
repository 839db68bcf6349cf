package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
)

const insertDepositSQL = `INSERT INTO deposits \(order_code, owner_id, amount, status, created_at, updated_at\) VALUES .* ON CONFLICT \(order_code\) DO NOTHING`

func fixedDepositRepo(t *testing.T, suffixes ...int64) (*DepositRepository, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock := newMock(t)
	repo := NewDepositRepository(db)
	now := time.UnixMilli(1_760_000_000_000)
	repo.now = func() time.Time { return now }
	i := 0
	repo.suffix = func() int64 {
		s := suffixes[i%len(suffixes)]
		i++
		return s
	}
	return repo, mock, now
}

func TestDepositRepository_NewOrderCode(t *testing.T) {
	repo, _, now := fixedDepositRepo(t, 7)

	code := repo.NewOrderCode()
	assert.Equal(t, now.UnixMilli()*1000+7, code)
	assert.Less(t, code, int64(1)<<53)
}

func TestDepositRepository_Create(t *testing.T) {
	repo, mock, now := fixedDepositRepo(t, 1)
	ownerID := uuid.New()
	tx := beginMockTx(t, repo.db, mock)

	mock.ExpectExec(insertDepositSQL).
		WithArgs(now.UnixMilli()*1000+1, ownerID, "502000", "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry, err := repo.Create(context.Background(), tx, ownerID, domain.MustParseAmount("502000"))
	require.NoError(t, err)
	assert.Equal(t, domain.DepositStatusPending, entry.Status)
	assert.Equal(t, "502000", entry.Amount.String())
	assert.Nil(t, entry.SettledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepositRepository_Create_RetriesTakenOrderCode(t *testing.T) {
	repo, mock, now := fixedDepositRepo(t, 1, 2)
	ownerID := uuid.New()
	tx := beginMockTx(t, repo.db, mock)

	mock.ExpectExec(insertDepositSQL).
		WithArgs(now.UnixMilli()*1000+1, ownerID, "100", "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insertDepositSQL).
		WithArgs(now.UnixMilli()*1000+2, ownerID, "100", "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry, err := repo.Create(context.Background(), tx, ownerID, domain.MustParseAmount("100"))
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli()*1000+2, entry.OrderCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepositRepository_Create_GivesUpAfterAttempts(t *testing.T) {
	repo, mock, _ := fixedDepositRepo(t, 1)
	tx := beginMockTx(t, repo.db, mock)

	for range orderCodeAttempts {
		mock.ExpectExec(insertDepositSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	_, err := repo.Create(context.Background(), tx, uuid.New(), domain.MustParseAmount("100"))
	assert.ErrorIs(t, err, domain.ErrOrderCodeCollision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepositRepository_GetForUpdate(t *testing.T) {
	repo, mock, now := fixedDepositRepo(t, 0)
	ownerID := uuid.New()
	tx := beginMockTx(t, repo.db, mock)

	mock.ExpectQuery(`SELECT order_code, owner_id, amount, status, created_at, updated_at, settled_at FROM deposits WHERE order_code = \$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"order_code", "owner_id", "amount", "status", "created_at", "updated_at", "settled_at"}).
			AddRow(int64(42), ownerID.String(), "500000", "PENDING", now, now, nil))

	entry, err := repo.GetForUpdate(context.Background(), tx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), entry.OrderCode)
	assert.False(t, entry.IsSettled())
	assert.Nil(t, entry.SettledAt)
}

func TestDepositRepository_MarkSuccess(t *testing.T) {
	repo, mock, _ := fixedDepositRepo(t, 0)
	tx := beginMockTx(t, repo.db, mock)
	entry := &domain.LedgerEntry{OrderCode: 42, Status: domain.DepositStatusPending}

	mock.ExpectExec(`UPDATE deposits SET status = \$1, settled_at = \$2, updated_at = \$2 WHERE order_code = \$3 AND status = \$4`).
		WithArgs("SUCCESS", sqlmock.AnyArg(), int64(42), "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSuccess(context.Background(), tx, entry))
	assert.True(t, entry.IsSettled())
	assert.NotNil(t, entry.SettledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepositRepository_MarkSuccess_AlreadySettled(t *testing.T) {
	t.Run("entry already settled", func(t *testing.T) {
		repo, mock, _ := fixedDepositRepo(t, 0)
		tx := beginMockTx(t, repo.db, mock)
		entry := &domain.LedgerEntry{OrderCode: 42, Status: domain.DepositStatusSuccess}

		err := repo.MarkSuccess(context.Background(), tx, entry)
		assert.ErrorIs(t, err, domain.ErrDepositSettled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row no longer pending", func(t *testing.T) {
		repo, mock, _ := fixedDepositRepo(t, 0)
		tx := beginMockTx(t, repo.db, mock)
		entry := &domain.LedgerEntry{OrderCode: 42, Status: domain.DepositStatusPending}

		mock.ExpectExec(`UPDATE deposits SET status`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkSuccess(context.Background(), tx, entry)
		assert.ErrorIs(t, err, domain.ErrDepositSettled)
		assert.Equal(t, domain.DepositStatusPending, entry.Status)
	})
}

func TestDepositRepository_CountStalePending(t *testing.T) {
	repo, mock, now := fixedDepositRepo(t, 0)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM deposits WHERE status = \$1 AND created_at < \$2`).
		WithArgs("PENDING", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountStalePending(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
