package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
)

func SeedAccount(t *testing.T, db *sql.DB, balance string) uuid.UUID {
	t.Helper()

	ownerID := uuid.New()
	_, err := db.Exec(
		`INSERT INTO accounts (owner_id, balance) VALUES ($1, $2)`,
		ownerID, balance,
	)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return ownerID
}

func SeedListing(t *testing.T, db *sql.DB, sellerID uuid.UUID, price string, status domain.ListingStatus) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO listings (id, seller_id, price, status) VALUES ($1, $2, $3, $4)`,
		id, sellerID, price, string(status),
	)
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return id
}

// GetBalance returns the stored balance string, or "" if the account is missing.
func GetBalance(t *testing.T, db *sql.DB, ownerID uuid.UUID) string {
	t.Helper()

	var balance string
	err := db.QueryRow(`SELECT balance FROM accounts WHERE owner_id = $1`, ownerID).Scan(&balance)
	if err == sql.ErrNoRows {
		return ""
	}
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return balance
}

// SumBalances adds every account balance exactly.
func SumBalances(t *testing.T, db *sql.DB) domain.Amount {
	t.Helper()

	rows, err := db.Query(`SELECT balance FROM accounts`)
	if err != nil {
		t.Fatalf("sum balances: %v", err)
	}
	defer rows.Close()

	total := domain.ZeroAmount
	for rows.Next() {
		var a domain.Amount
		if err := rows.Scan(&a); err != nil {
			t.Fatalf("scan balance: %v", err)
		}
		total = total.Add(a)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate balances: %v", err)
	}
	return total
}

func GetListingStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.ListingStatus {
	t.Helper()

	var status string
	if err := db.QueryRow(`SELECT status FROM listings WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("get listing status: %v", err)
	}
	return domain.ListingStatus(status)
}

func GetDepositStatus(t *testing.T, db *sql.DB, orderCode int64) domain.DepositStatus {
	t.Helper()

	var status string
	if err := db.QueryRow(`SELECT status FROM deposits WHERE order_code = $1`, orderCode).Scan(&status); err != nil {
		t.Fatalf("get deposit status: %v", err)
	}
	return domain.DepositStatus(status)
}

func CountDeposits(t *testing.T, db *sql.DB, ownerID uuid.UUID) int {
	t.Helper()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM deposits WHERE owner_id = $1`, ownerID).Scan(&n); err != nil {
		t.Fatalf("count deposits: %v", err)
	}
	return n
}
