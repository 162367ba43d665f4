package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestSQLStateClassification(t *testing.T) {
	unique := fmt.Errorf("insert settlement: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(unique) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if IsSerializationFailure(unique) {
		t.Fatalf("unique violation must not be treated as serialization failure")
	}

	if !IsSerializationFailure(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("expected 40001 to be retryable")
	}
	if !IsSerializationFailure(&pgconn.PgError{Code: "40P01"}) {
		t.Fatalf("expected deadlock to be retryable")
	}
	if IsUniqueViolation(errors.New("connection reset")) {
		t.Fatalf("plain errors carry no sqlstate")
	}
}

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 8}.withDefaults()
	if c.MaxIdleConns != 8 {
		t.Fatalf("expected idle conns to follow open conns, got %d", c.MaxIdleConns)
	}
	if c.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected ping timeout %v", c.PingTimeout)
	}
}
