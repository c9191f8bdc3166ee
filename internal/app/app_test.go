package app

import (
	"context"
	"testing"

	"jobnotify/internal/config"
	"jobnotify/internal/oauth"
	"jobnotify/internal/providers/servicem8"
	"jobnotify/internal/ratelimit"
)

func TestOpenBackendsFileDefaults(t *testing.T) {
	b, err := OpenBackends(context.Background(), config.StoreConfig{Driver: "file", DataDir: t.TempDir()}, 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	if _, ok := b.Limiter.(*ratelimit.Memory); !ok {
		t.Fatalf("expected in-memory limiter without redis, got %T", b.Limiter)
	}
	if b.Redis != nil {
		t.Fatalf("redis must stay nil without REDIS_URL")
	}
	for _, check := range b.Checks {
		if err := check(context.Background()); err != nil {
			t.Fatalf("ready check: %v", err)
		}
	}
}

func TestOpenBackendsRejectsUnknownDrivers(t *testing.T) {
	if _, err := OpenBackends(context.Background(), config.StoreConfig{Driver: "mongo"}, 3); err == nil {
		t.Fatalf("expected error for unknown store driver")
	}
	if _, err := OpenBackends(context.Background(), config.StoreConfig{DataDir: t.TempDir(), DeferredQueueDriver: "sqs"}, 3); err == nil {
		t.Fatalf("expected error for sqs queue without url")
	}
}

func TestUpstreamPrefersAPIKey(t *testing.T) {
	client, mgr := Upstream(config.ServiceM8Config{BaseURL: "http://x", APIKey: "k"}, nil)
	if _, ok := client.Auth.(servicem8.APIKey); !ok {
		t.Fatalf("expected api key auth, got %T", client.Auth)
	}
	if mgr == nil {
		t.Fatalf("oauth manager must still be built")
	}

	client, mgr = Upstream(config.ServiceM8Config{BaseURL: "http://x"}, nil)
	if client.Auth != mgr {
		t.Fatalf("expected oauth manager auth, got %T", client.Auth)
	}
	if mgr.State() != oauth.StateNoToken {
		t.Fatalf("unexpected initial state %s", mgr.State())
	}
}

func TestQuietHoursZone(t *testing.T) {
	g, err := QuietHours(config.SMSPolicyConfig{QuietHoursTZ: "Australia/Brisbane", QuietHoursStart: 20, QuietHoursEnd: 8})
	if err != nil {
		t.Fatalf("quiet hours: %v", err)
	}
	if g.Location.String() != "Australia/Brisbane" {
		t.Fatalf("unexpected zone %s", g.Location)
	}
	if _, err := QuietHours(config.SMSPolicyConfig{QuietHoursTZ: "Nowhere/Atlantis"}); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}
