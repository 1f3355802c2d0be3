// README: Bench cases covering connectivity, schema, the booking lifecycle, races and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"mechanico/internal/infra"
	"mechanico/migrations"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	cust, prov := r.cfg.CustomerToken, r.cfg.ProviderToken
	nearby := fmt.Sprintf("/api/nearby?offeringId=%s&lat=35.6900&lng=51.3400&radiusKm=10", r.cfg.OfferingID)

	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusSkip, Note: "dsn not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusSkip, Note: "redis not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Migration: apply (optional)", Run: func(ctx context.Context, r *Runner) Result {
			if !r.cfg.ApplyMigration {
				return Result{Status: statusSkip, Note: "apply-migration=false"}
			}
			if r.cfg.DSN == "" {
				return Result{Status: statusFail, Note: "dsn not configured"}
			}
			if err := infra.Migrate(r.cfg.DSN); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Migration: tables exist", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusSkip, Note: "dsn not configured"}
			}
			tables, err := extractTables()
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			for _, t := range tables {
				var exists bool
				err := r.db.QueryRow(ctx,
					"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
					t,
				).Scan(&exists)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if !exists {
					return Result{Status: statusFail, Note: "missing table: " + t}
				}
			}
			return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
		}},

		httpCase("API: health", http.MethodGet, "/health", nil, "", http.StatusOK),
		httpCase("API: ready", http.MethodGet, "/ready", nil, "", http.StatusOK),
		httpCase("API: unauthenticated -> 401", http.MethodGet, "/api/offerings", nil, "", http.StatusUnauthorized),
		httpCase("Catalog: list active offerings", http.MethodGet, "/api/offerings?active=true", nil, cust, http.StatusOK),

		httpCase("Nearby: ranked providers", http.MethodGet, nearby, nil, cust, http.StatusOK),
		httpCase("Nearby: bad latitude -> 400", http.MethodGet, "/api/nearby?offeringId=O1&lat=95&lng=51.34", nil, cust, http.StatusBadRequest),

		httpCase("Booking: foreign vehicle -> 404", http.MethodPost, "/api/bookings", map[string]any{
			"providerId": r.cfg.ProviderID, "offeringId": r.cfg.OfferingID, "vehicleId": "not-mine", "lat": 35.69, "lng": 51.34,
		}, cust, http.StatusNotFound),
		{Name: "Booking: full lifecycle", Run: lifecycle},
		{Name: "Booking: completed cannot cancel", Run: completedIsTerminal},

		{Name: "Concurrency: many providers confirm one booking", Run: concurrentConfirm},
		{Name: "Concurrency: confirm vs cancel", Run: confirmVsCancel},

		{Name: "Perf: provider position throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, http.MethodPost, "/api/provider/position", func() any {
				return map[string]any{"lat": 35.6892, "lng": 51.3890, "isAvailable": true}
			}, prov)
		}},
		{Name: "Perf: nearby throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, http.MethodGet, nearby, nil, cust)
		}},
	}
}

func httpCase(name, method, path string, body any, token string, want int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			start := time.Now()
			code, _, err := r.do(ctx, method, path, body, token)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			latency := time.Since(start)
			if code == want {
				return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
			}
			return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d", code, want)}
		},
	}
}

// do sends one request and decodes a JSON object body when present.
func (r *Runner) do(ctx context.Context, method, path string, body any, token string) (int, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out, nil
}

func (r *Runner) createBooking(ctx context.Context) (string, error) {
	code, out, err := r.do(ctx, http.MethodPost, "/api/bookings", map[string]any{
		"providerId": r.cfg.ProviderID,
		"offeringId": r.cfg.OfferingID,
		"vehicleId":  r.cfg.VehicleID,
		"lat":        35.6900,
		"lng":        51.3400,
	}, r.cfg.CustomerToken)
	if err != nil {
		return "", err
	}
	if code != http.StatusCreated {
		return "", fmt.Errorf("create booking: status=%d", code)
	}
	b, _ := out["booking"].(map[string]any)
	id, _ := b["id"].(string)
	if id == "" {
		return "", fmt.Errorf("create booking: no id in response")
	}
	return id, nil
}

func (r *Runner) transition(ctx context.Context, id, target, token string) (int, error) {
	code, _, err := r.do(ctx, http.MethodPost, "/api/bookings/"+id+"/transition", map[string]any{"targetState": target}, token)
	return code, err
}

func lifecycle(ctx context.Context, r *Runner) Result {
	start := time.Now()
	id, err := r.createBooking(ctx)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, target := range []string{"CONFIRMED", "IN_PROGRESS", "COMPLETED"} {
		code, err := r.transition(ctx, id, target, r.cfg.ProviderToken)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if code != http.StatusOK {
			return Result{Status: statusFail, Note: fmt.Sprintf("%s: status=%d", target, code)}
		}
	}
	return Result{Status: statusPass, Latency: time.Since(start), Note: "booking=" + id}
}

func completedIsTerminal(ctx context.Context, r *Runner) Result {
	id, err := r.createBooking(ctx)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, target := range []string{"CONFIRMED", "IN_PROGRESS", "COMPLETED"} {
		if code, err := r.transition(ctx, id, target, r.cfg.ProviderToken); err != nil || code != http.StatusOK {
			return Result{Status: statusFail, Note: fmt.Sprintf("setup %s failed", target)}
		}
	}
	code, err := r.transition(ctx, id, "CANCELLED", r.cfg.CustomerToken)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != http.StatusConflict {
		return Result{Status: statusFail, Note: fmt.Sprintf("status=%d want=409", code)}
	}
	return Result{Status: statusPass}
}

// concurrentConfirm expects exactly one winner; every loser sees 409.
func concurrentConfirm(ctx context.Context, r *Runner) Result {
	id, err := r.createBooking(ctx)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	codes := r.race(ctx, r.cfg.Concurrency, func(int) (int, error) {
		return r.transition(ctx, id, "CONFIRMED", r.cfg.ProviderToken)
	})
	return exactlyOneWinner(codes)
}

func confirmVsCancel(ctx context.Context, r *Runner) Result {
	id, err := r.createBooking(ctx)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	codes := r.race(ctx, 2, func(i int) (int, error) {
		if i == 0 {
			return r.transition(ctx, id, "CONFIRMED", r.cfg.ProviderToken)
		}
		return r.transition(ctx, id, "CANCELLED", r.cfg.CustomerToken)
	})
	return exactlyOneWinner(codes)
}

func (r *Runner) race(ctx context.Context, n int, fn func(i int) (int, error)) []int {
	codes := make([]int, n)
	var wg sync.WaitGroup
	startGate := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-startGate
			code, err := fn(i)
			if err == nil {
				codes[i] = code
			}
		}(i)
	}
	close(startGate)
	wg.Wait()
	return codes
}

func exactlyOneWinner(codes []int) Result {
	ok, conflict := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	note := fmt.Sprintf("ok=%d conflict=%d", ok, conflict)
	if ok == 1 && ok+conflict == len(codes) {
		return Result{Status: statusPass, Note: note}
	}
	return Result{Status: statusFail, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, method, path string, body func() any, token string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				var payload any
				if body != nil {
					payload = body()
				}
				code, _, err := r.do(ctx, method, path, payload, token)
				mu.Lock()
				if err != nil || code >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

// extractTables lists the tables created by the embedded up migrations.
func extractTables() ([]string, error) {
	files, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, f := range files {
		b, err := fs.ReadFile(migrations.FS, f)
		if err != nil {
			return nil, err
		}
		for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	return tables, nil
}
