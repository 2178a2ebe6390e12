package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DEFAULT_LOCATION_ID", "")
	t.Setenv("STOCK_CACHE_TTL_SECONDS", "not-a-number")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("default port = %q", cfg.Port)
	}
	if cfg.DefaultLocationID != "gudang-utama" {
		t.Fatalf("default location = %q", cfg.DefaultLocationID)
	}
	if cfg.StockCacheTTLSeconds != 30 {
		t.Fatalf("cache ttl fallback = %d", cfg.StockCacheTTLSeconds)
	}
}
