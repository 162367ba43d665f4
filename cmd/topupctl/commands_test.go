package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"topup-ledger/internal/auth"
	"topup-ledger/internal/btcpay"
	"topup-ledger/internal/config"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSign_MatchesVerifier(t *testing.T) {
	body := `{"type":"InvoiceSettled","invoiceId":"INV-001"}`
	path := filepath.Join(t.TempDir(), "body.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "sign", "--secret", "whsec", path)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	v, _ := btcpay.NewVerifier("whsec")
	if err := v.Verify([]byte(body), strings.TrimSpace(out)); err != nil {
		t.Fatalf("signature from CLI did not verify: %v (%q)", err, out)
	}

	stdinOut, err := run(t, body, "sign", "--secret", "whsec", "-")
	if err != nil || stdinOut != out {
		t.Fatalf("expected stdin signing to match file signing, got %q err=%v", stdinOut, err)
	}
}

func setAPIEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV":               "local",
		"APP_PORT":              "8080",
		"DB_HOST":               "localhost",
		"DB_PORT":               "5432",
		"DB_USER":               "postgres",
		"DB_NAME":               "topup",
		"REDIS_HOST":            "localhost",
		"REDIS_PORT":            "6379",
		"JWT_SECRET":            "jwt-secret",
		"BTCPAY_WEBHOOK_SECRET": "whsec",
	} {
		t.Setenv(k, v)
	}
}

func TestTokenIssue(t *testing.T) {
	setAPIEnv(t)

	out, err := run(t, "", "token", "issue", "--operator", "op-9", "--role", "finance", "--ttl", "5m")
	if err != nil {
		t.Fatalf("token issue: %v", err)
	}
	m, _ := auth.NewManager(config.AuthConfig{JWTSecret: "jwt-secret"})
	claims, err := m.Verify(strings.TrimSpace(out), time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.OperatorID != "op-9" || claims.Role != "finance" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenIssue_RejectsUnknownRole(t *testing.T) {
	setAPIEnv(t)
	if _, err := run(t, "", "token", "issue", "--operator", "op", "--role", "owner"); err == nil {
		t.Fatalf("expected unknown role error")
	}
}

func TestMigrate_RejectsUnknownDirection(t *testing.T) {
	if _, err := run(t, "", "migrate", "sideways", "--database-url", "pgx5://localhost/topup"); err == nil {
		t.Fatalf("expected error")
	}
}
