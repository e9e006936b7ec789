package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr       string // API bind address
	LogDir     string // logs directory; empty logs to stderr
	PolicyFile string // YAML policy definitions
	EventDB    string // bbolt event log path; empty keeps events in memory

	TickInterval time.Duration // probe round interval
	ProbeTimeout time.Duration // per-origin sub-probe timeout
	RoundMargin  time.Duration // deadline safety margin inside a tick
	Concurrency  int           // max in-flight target probes

	FailbackWindow  time.Duration // default primary stability window
	DegradedAfter   int           // missed rounds before "monitoring degraded"
	ConvergeRetries int           // mutation attempts before giving up
	ConvergeBackoff time.Duration // first retry delay, doubled per attempt

	CloudflareToken string
	TelegramToken   string
	SlackWebhook    string
	AdminAPIKeys    []string
	VerifyResolver  string // e.g. "1.1.1.1:53"; empty disables propagation checks
}

func FromEnv() Config {
	cfg := Config{
		Addr:            getenv("API_ADDR", "127.0.0.1:8080"),
		LogDir:          getenv("LOG_DIR", "logs"),
		PolicyFile:      getenv("POLICY_FILE", "policies.yaml"),
		EventDB:         os.Getenv("EVENT_DB"),
		TickInterval:    durEnv("TICK_INTERVAL_MS", 60*time.Second),
		ProbeTimeout:    durEnv("PROBE_TIMEOUT_MS", 5*time.Second),
		RoundMargin:     durEnv("ROUND_MARGIN_MS", 5*time.Second),
		Concurrency:     intEnv("MAX_CONCURRENT_PROBES", 16),
		FailbackWindow:  durEnv("FAILBACK_WINDOW_MS", 5*time.Minute),
		DegradedAfter:   intEnv("DEGRADED_AFTER_ROUNDS", 3),
		ConvergeRetries: intEnv("CONVERGE_RETRIES", 4),
		ConvergeBackoff: durEnv("CONVERGE_BACKOFF_MS", 500*time.Millisecond),
		CloudflareToken: os.Getenv("CF_API_TOKEN"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		SlackWebhook:    os.Getenv("SLACK_WEBHOOK"),
		VerifyResolver:  os.Getenv("VERIFY_RESOLVER"),
	}
	if v := os.Getenv("ADMIN_API_KEYS"); v != "" {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.AdminAPIKeys = append(cfg.AdminAPIKeys, k)
			}
		}
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func durEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
