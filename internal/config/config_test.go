package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DB_URL", "user:pass@tcp(localhost:3306)/pay?parseTime=true")
	t.Setenv("INVOICE_CALLBACK_SECRET", "secret")
	t.Setenv("JWT_SIGNING_KEY", "key")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)
	for _, name := range []string{"PORT", "PUBLIC_BASE_URL", "DB_DRIVER", "CHECKOUT_BASE_URL", "INVOICE_TTL_MINUTES", "INVOICE_SWEEP_SECONDS", "PAY_LOCK_TTL_SECONDS", "EVENT_BUFFER", "REDIS_ADDR"} {
		t.Setenv(name, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":4001" || cfg.Database.Driver != "mysql" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Invoices.CheckoutBaseURL != cfg.Server.PublicBaseURL {
		t.Fatalf("checkout base should default to public base, got %s", cfg.Invoices.CheckoutBaseURL)
	}
	if cfg.InvoiceTTL() != 15*time.Minute || cfg.SweepInterval() != 30*time.Second || cfg.PayLockTTL() != 10*time.Second {
		t.Fatalf("unexpected durations %v %v %v", cfg.InvoiceTTL(), cfg.SweepInterval(), cfg.PayLockTTL())
	}
}

func TestLoadConfigFileAndEnvOverrides(t *testing.T) {
	setRequired(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  address: ":9000"
  public_base_url: "https://shop.example/"
database:
  driver: pgx
  url: postgres://file
invoices:
  ttl_minutes: 30
event_buffer: 16
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DB_URL", "")
	t.Setenv("PORT", "8080")
	t.Setenv("INVOICE_TTL_MINUTES", "")
	t.Setenv("EVENT_BUFFER", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("PUBLIC_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("expected PORT to win, got %s", cfg.Server.Address)
	}
	if cfg.Server.PublicBaseURL != "https://shop.example" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.Server.PublicBaseURL)
	}
	if cfg.Database.Driver != "pgx" || cfg.Database.URL != "postgres://file" {
		t.Fatalf("unexpected database %+v", cfg.Database)
	}
	if cfg.InvoiceTTL() != 30*time.Minute || cfg.EventBuffer != 16 {
		t.Fatalf("unexpected file values %+v", cfg)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	setRequired(t)
	t.Setenv("INVOICE_TTL_MINUTES", "abc")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}

	t.Setenv("INVOICE_TTL_MINUTES", "-5")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected validation error for negative ttl")
	}

	t.Setenv("INVOICE_TTL_MINUTES", "")
	t.Setenv("JWT_SIGNING_KEY", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected missing signing key error")
	}
}
