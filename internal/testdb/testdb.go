// Package testdb opens a migrated Postgres database for repository tests.
// Tests skip unless TOPUP_TEST_DATABASE_URL holds a postgres:// URL to a
// disposable database.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"topup-ledger/internal/migrations"
	"topup-ledger/pkg/utils"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const EnvURL = "TOPUP_TEST_DATABASE_URL"

// Open migrates the database to the latest version and returns a pool that is
// closed when the test ends.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	url := strings.TrimSpace(os.Getenv(EnvURL))
	if url == "" {
		t.Skipf("%s not set", EnvURL)
	}
	if err := migrations.Up(MigrateURL(url)); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := utils.OpenPostgres(ctx, "pgx", url, utils.PostgresPoolConfig{MaxOpenConns: 8})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// MigrateURL rewrites a postgres:// URL to the pgx5:// scheme the migrator expects.
func MigrateURL(url string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(url, prefix) {
			return "pgx5://" + strings.TrimPrefix(url, prefix)
		}
	}
	return url
}

// SeedUser inserts a user with the given balance and returns its id.
func SeedUser(t *testing.T, db *sql.DB, balance string) string {
	t.Helper()
	id := uuid.NewString()
	if _, err := db.Exec(`INSERT INTO users (id, balance_usd) VALUES ($1, $2)`, id, balance); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}
