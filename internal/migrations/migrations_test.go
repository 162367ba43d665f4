package migrations

import (
	"io"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		t.Fatalf("iofs: %v", err)
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	for {
		up, _, err := src.ReadUp(v)
		if err != nil {
			t.Fatalf("version %d has no up migration: %v", v, err)
		}
		up.Close()
		down, _, err := src.ReadDown(v)
		if err != nil {
			t.Fatalf("version %d has no down migration: %v", v, err)
		}
		down.Close()

		next, err := src.Next(v)
		if err != nil {
			break
		}
		v = next
	}
}

func TestInitCreatesLedgerTables(t *testing.T) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	r, _, err := src.ReadUp(1)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	sql := string(b)
	for _, want := range []string{"users", "invoices", "transactions", "deposits", "webhook_audit_events", "UNIQUE (invoice_id, user_id)", "CHECK (balance_usd >= 0)", "user_id    uuid NOT NULL REFERENCES users (id),\n  amount_usd"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("expected %q in init migration", want)
		}
	}
}

func TestNew_RejectsUnknownScheme(t *testing.T) {
	if _, err := New("nosuchdriver://localhost/db"); err == nil {
		t.Fatalf("expected error for unknown database driver")
	}
}
