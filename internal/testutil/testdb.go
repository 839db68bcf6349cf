package testutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresImage = "postgres:16-alpine"

// SetupTestDB starts a throwaway Postgres, applies every *.up.sql migration
// in order and returns an open pool. Skipped under -short.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: needs docker")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("carmart_test"),
		postgres.WithUsername("carmart"),
		postgres.WithPassword("carmart"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(45*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("SetupTestDB: start container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pg); err != nil {
			t.Logf("SetupTestDB: terminate container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("SetupTestDB: dsn: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("SetupTestDB: open: %v", err)
	}
	// Concurrency tests hold several row locks at once.
	db.SetMaxOpenConns(32)
	t.Cleanup(func() { _ = db.Close() })

	if err := migrate(ctx, db); err != nil {
		t.Fatalf("SetupTestDB: %v", err)
	}
	return db
}

func migrate(ctx context.Context, db *sql.DB) error {
	root, err := moduleRoot()
	if err != nil {
		return err
	}
	files, err := filepath.Glob(filepath.Join(root, "migrations", "*.up.sql"))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(files) == 0 {
		return errors.New("migrate: no *.up.sql files found")
	}
	sort.Strings(files)

	for _, f := range files {
		stmt, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", filepath.Base(f), err)
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

// moduleRoot walks up from the package directory to the one holding go.mod.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("moduleRoot: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("moduleRoot: go.mod not found")
		}
		dir = parent
	}
}
