package config

import (
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg := LoadServer()

	if cfg.Port != "3000" {
		t.Fatalf("expected default port 3000, got %q", cfg.Port)
	}
	if cfg.Driver != "file" || cfg.DeferredQueueDriver != "store" {
		t.Fatalf("unexpected store defaults: %+v", cfg.StoreConfig)
	}
	if cfg.QuietHoursStart != 20 || cfg.QuietHoursEnd != 8 || cfg.MaxPerHour != 3 {
		t.Fatalf("unexpected sms policy defaults: %+v", cfg.SMSPolicyConfig)
	}
	if cfg.DedupTTL != 24*time.Hour {
		t.Fatalf("expected 24h dedup ttl, got %v", cfg.DedupTTL)
	}
	if len(cfg.ReplaySchedule) != 2 {
		t.Fatalf("expected two replay schedules, got %v", cfg.ReplaySchedule)
	}
	if cfg.Scopes() == "" {
		t.Fatalf("expected default oauth scope")
	}
}

func TestLoadServerFromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("CLIENT_ID", "cid")
	t.Setenv("SERVICEM8_API_KEY", "key")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("SMS_MAX_PER_HOUR", "5")
	t.Setenv("BITLY_CUSTOM_DOMAIN", "asaprwc.com")

	cfg := LoadServer()

	if cfg.Port != "8081" || cfg.ClientID != "cid" || cfg.APIKey != "key" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Driver != "postgres" || cfg.MaxPerHour != 5 {
		t.Fatalf("embedded env not applied: %+v", cfg)
	}
	if cfg.BitlyCustomDomain != "asaprwc.com" {
		t.Fatalf("expected custom domain, got %q", cfg.BitlyCustomDomain)
	}
}
