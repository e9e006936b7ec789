package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Addr != "127.0.0.1:8080" {
		t.Fatalf("addr = %s", cfg.Addr)
	}
	if cfg.TickInterval != 60*time.Second {
		t.Fatalf("tick = %s", cfg.TickInterval)
	}
	if cfg.FailbackWindow != 5*time.Minute {
		t.Fatalf("failback window = %s", cfg.FailbackWindow)
	}
	if cfg.DegradedAfter != 3 || cfg.Concurrency != 16 {
		t.Fatalf("degraded=%d concurrency=%d", cfg.DegradedAfter, cfg.Concurrency)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("API_ADDR", "0.0.0.0:9999")
	t.Setenv("TICK_INTERVAL_MS", "30000")
	t.Setenv("MAX_CONCURRENT_PROBES", "4")
	t.Setenv("ADMIN_API_KEYS", "k1, k2 ,")

	cfg := FromEnv()
	if cfg.Addr != "0.0.0.0:9999" {
		t.Fatalf("addr = %s", cfg.Addr)
	}
	if cfg.TickInterval != 30*time.Second {
		t.Fatalf("tick = %s", cfg.TickInterval)
	}
	if cfg.Concurrency != 4 {
		t.Fatalf("concurrency = %d", cfg.Concurrency)
	}
	if len(cfg.AdminAPIKeys) != 2 || cfg.AdminAPIKeys[0] != "k1" || cfg.AdminAPIKeys[1] != "k2" {
		t.Fatalf("admin keys = %v", cfg.AdminAPIKeys)
	}
}

func TestFromEnv_IgnoresGarbage(t *testing.T) {
	t.Setenv("TICK_INTERVAL_MS", "not-a-number")
	t.Setenv("MAX_CONCURRENT_PROBES", "-5")

	cfg := FromEnv()
	if cfg.TickInterval != 60*time.Second || cfg.Concurrency != 16 {
		t.Fatalf("garbage accepted: tick=%s concurrency=%d", cfg.TickInterval, cfg.Concurrency)
	}
}
