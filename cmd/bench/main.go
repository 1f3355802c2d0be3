// README: Smoke and load runner against a running mechanico-api; executes HTTP/DB/Redis checks and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case statusPass:
			pass++
		case statusFail:
			fail++
		case statusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL        string
	DSN            string
	RedisAddr      string
	ApplyMigration bool
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
	// Seeded identities used by the booking cases.
	CustomerToken string
	ProviderToken string
	OfferingID    string
	VehicleID     string
	ProviderID    string
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("MECH_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", envOrDefault("MECH_DB_DSN", ""), "Postgres DSN; empty skips DB checks")
	flag.StringVar(&cfg.RedisAddr, "redis", envOrDefault("MECH_REDIS_ADDR", ""), "Redis address; empty skips Redis checks")
	flag.BoolVar(&cfg.ApplyMigration, "apply-migration", envOrDefaultBool("MECH_BENCH_APPLY_MIGRATION", false), "Apply migrations before tests")
	flag.BoolVar(&cfg.Strict, "strict", envOrDefaultBool("MECH_BENCH_STRICT", false), "Fail on skipped tests")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("MECH_BENCH_TIMEOUT", 60*time.Second), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", envOrDefaultInt("MECH_BENCH_CONCURRENCY", 20), "Concurrency for race and perf tests")
	flag.DurationVar(&cfg.Duration, "duration", envOrDefaultDuration("MECH_BENCH_DURATION", 10*time.Second), "Duration for perf tests")
	flag.StringVar(&cfg.CustomerToken, "customer-token", envOrDefault("MECH_BENCH_CUSTOMER_TOKEN", "customer:C1"), "Bearer token of a customer owning -vehicle")
	flag.StringVar(&cfg.ProviderToken, "provider-token", envOrDefault("MECH_BENCH_PROVIDER_TOKEN", "provider:P1"), "Bearer token of -provider")
	flag.StringVar(&cfg.OfferingID, "offering", envOrDefault("MECH_BENCH_OFFERING", "O1"), "Offering used for bookings")
	flag.StringVar(&cfg.VehicleID, "vehicle", envOrDefault("MECH_BENCH_VEHICLE", "V1"), "Vehicle used for bookings")
	flag.StringVar(&cfg.ProviderID, "provider", envOrDefault("MECH_BENCH_PROVIDER", "P1"), "Provider used for bookings")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes"
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
