package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alienxp03/tradedebate/provider"
)

type countingProvider struct {
	name      string
	available bool
	delay     time.Duration
	checks    int32
}

func (p *countingProvider) Name() string {
	return p.name
}

func (p *countingProvider) Available() bool {
	return true
}

func (p *countingProvider) Execute(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return &provider.Response{Content: "2"}, nil
}

func (p *countingProvider) HealthCheck(ctx context.Context) provider.HealthStatus {
	atomic.AddInt32(&p.checks, 1)
	time.Sleep(p.delay)
	status := provider.HealthStatus{
		Available:    p.available,
		ResponseTime: 50 * time.Millisecond,
		CheckedAt:    time.Now(),
	}
	if !p.available {
		status.Error = "backend down"
	}
	return status
}

func TestHandleAPIProviderHealth_UsesCache(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	cachePath := filepath.Join(t.TempDir(), "provider-health.json")
	handler.healthCache = newHealthCache(cachePath, defaultHealthTTL)

	prov := &countingProvider{name: "counting", available: true}
	handler.registry.Register(prov)

	w := doRequest(t, handler, "GET", "/api/providers/health/counting", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["name"] != "counting" {
		t.Fatalf("expected name counting, got %v", payload["name"])
	}

	w2 := doRequest(t, handler, "GET", "/api/providers/health/counting", "")
	if w2.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w2.Code)
	}

	if got := atomic.LoadInt32(&prov.checks); got != 1 {
		t.Fatalf("expected 1 health check call, got %d", got)
	}

	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("expected cache file to be created, got error: %v", err)
	}
}

func TestHandleAPIProviderHealth_UnknownProvider(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	w := doRequest(t, handler, "GET", "/api/providers/health/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestHandleAPIProvidersHealth(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	up := &countingProvider{name: "up", available: true}
	down := &countingProvider{name: "down"}
	handler.registry.Register(up)
	handler.registry.Register(down)

	w := doRequest(t, handler, "GET", "/api/providers/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var payload struct {
		Providers map[string]provider.HealthStatus `json:"providers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if _, ok := payload.Providers["mock"]; ok {
		t.Error("mock provider should be hidden")
	}
	if !payload.Providers["up"].Available {
		t.Error("expected up to be available")
	}
	if payload.Providers["down"].Available || payload.Providers["down"].Error != "backend down" {
		t.Errorf("unexpected status for down: %+v", payload.Providers["down"])
	}
}

func TestHealthCacheFailureTTL(t *testing.T) {
	cache := newHealthCache(filepath.Join(t.TempDir(), "cache.json"), healthTTL{ok: 30 * time.Minute, failed: time.Minute})
	now := time.Now()

	cache.put("recent", provider.HealthStatus{Available: false, CheckedAt: now})
	if _, ok := cache.fresh("recent", now); !ok {
		t.Error("recent failure should be cached")
	}

	cache.put("stale", provider.HealthStatus{Available: false, CheckedAt: now.Add(-2 * time.Minute)})
	if _, ok := cache.fresh("stale", now); ok {
		t.Error("old failure should be re-checked")
	}

	cache.put("ok", provider.HealthStatus{Available: true, CheckedAt: now.Add(-10 * time.Minute)})
	if _, ok := cache.fresh("ok", now); !ok {
		t.Error("success within TTL should be cached")
	}
	if _, ok := cache.fresh("ok", now.Add(25*time.Minute)); ok {
		t.Error("success past TTL should be re-checked")
	}
}

func TestHealthCacheFailureTTLNeverExceedsSuccessTTL(t *testing.T) {
	ttl := healthTTL{ok: 10 * time.Second, failed: time.Minute}
	if got := ttl.of(provider.HealthStatus{}); got != 10*time.Second {
		t.Errorf("expected failure TTL capped at 10s, got %v", got)
	}
}

func TestHealthCacheProbesOnceForConcurrentCallers(t *testing.T) {
	cache := newHealthCache(filepath.Join(t.TempDir(), "cache.json"), defaultHealthTTL)
	prov := &countingProvider{name: "slow", available: true, delay: 50 * time.Millisecond}

	var wg sync.WaitGroup
	results := make([]provider.HealthStatus, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = cache.Check(context.Background(), prov)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&prov.checks); got != 1 {
		t.Errorf("expected a single probe, got %d", got)
	}
	for i, r := range results {
		if !r.Available {
			t.Errorf("caller %d got %+v", i, r)
		}
	}
}

func TestHealthCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	prov := &countingProvider{name: "p", available: true}

	first := newHealthCache(path, defaultHealthTTL)
	first.Check(context.Background(), prov)

	second := newHealthCache(path, defaultHealthTTL)
	status := second.Check(context.Background(), prov)
	if !status.Available {
		t.Errorf("expected cached status, got %+v", status)
	}
	if got := atomic.LoadInt32(&prov.checks); got != 1 {
		t.Errorf("expected status to be loaded from disk, got %d probes", got)
	}

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".health-*"))
	if err != nil || len(matches) != 0 {
		t.Errorf("expected no leftover temp files, got %v", matches)
	}
}
