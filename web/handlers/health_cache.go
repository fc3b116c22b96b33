package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alienxp03/tradedebate/provider"
)

const healthCacheFilename = "tradedebate-provider-health.json"

// healthTTL is how long a probe result is trusted. Failures expire sooner
// so a backend that comes back is noticed quickly.
type healthTTL struct {
	ok     time.Duration
	failed time.Duration
}

var defaultHealthTTL = healthTTL{ok: 30 * time.Minute, failed: time.Minute}

func (t healthTTL) of(status provider.HealthStatus) time.Duration {
	if status.Available {
		return t.ok
	}
	return min(t.failed, t.ok)
}

type healthEntry struct {
	Status    provider.HealthStatus `json:"status"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// healthProbe is a check in flight; callers asking for the same backend
// wait on done instead of probing again.
type healthProbe struct {
	done   chan struct{}
	status provider.HealthStatus
}

// healthCache remembers backend health across requests and restarts.
type healthCache struct {
	path string
	ttl  healthTTL

	mu       sync.Mutex
	entries  map[string]healthEntry
	inflight map[string]*healthProbe
}

func newHealthCache(path string, ttl healthTTL) *healthCache {
	c := &healthCache{
		path:     path,
		ttl:      ttl,
		entries:  make(map[string]healthEntry),
		inflight: make(map[string]*healthProbe),
	}
	c.load()
	return c
}

func defaultHealthCachePath() string {
	return filepath.Join(os.TempDir(), healthCacheFilename)
}

// Check returns the cached status for p while it is fresh, and otherwise
// probes the backend once no matter how many callers are waiting.
func (c *healthCache) Check(ctx context.Context, p provider.Provider) provider.HealthStatus {
	name := p.Name()

	c.mu.Lock()
	if status, ok := c.fresh(name, time.Now()); ok {
		c.mu.Unlock()
		return status
	}
	if probe, ok := c.inflight[name]; ok {
		c.mu.Unlock()
		select {
		case <-probe.done:
			return probe.status
		case <-ctx.Done():
			return provider.HealthStatus{Error: ctx.Err().Error(), CheckedAt: time.Now()}
		}
	}
	probe := &healthProbe{done: make(chan struct{})}
	c.inflight[name] = probe
	c.mu.Unlock()

	probe.status = provider.CheckHealth(ctx, p)

	c.mu.Lock()
	delete(c.inflight, name)
	c.put(name, probe.status)
	c.mu.Unlock()
	close(probe.done)

	return probe.status
}

func (c *healthCache) fresh(name string, now time.Time) (provider.HealthStatus, bool) {
	entry, ok := c.entries[name]
	if !ok || !now.Before(entry.ExpiresAt) {
		return provider.HealthStatus{}, false
	}
	return entry.Status, true
}

// put records status and writes the cache file. Callers hold mu.
func (c *healthCache) put(name string, status provider.HealthStatus) {
	checked := status.CheckedAt
	if checked.IsZero() {
		checked = time.Now()
	}
	c.entries[name] = healthEntry{Status: status, ExpiresAt: checked.Add(c.ttl.of(status))}
	c.save()
}

func (c *healthCache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to read provider health cache", "path", c.path, "error", err)
		}
		return
	}
	var entries map[string]healthEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("Ignoring unreadable provider health cache", "path", c.path, "error", err)
		return
	}
	for name, e := range entries {
		c.entries[name] = e
	}
}

// save replaces the cache file atomically.
func (c *healthCache) save() {
	payload, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		slog.Warn("Failed to encode provider health cache", "error", err)
		return
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("Failed to create provider health cache directory", "path", dir, "error", err)
		return
	}
	tmp, err := os.CreateTemp(dir, ".health-*.json")
	if err != nil {
		slog.Warn("Failed to write provider health cache", "path", c.path, "error", err)
		return
	}
	_, werr := tmp.Write(payload)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp.Name())
		slog.Warn("Failed to write provider health cache", "path", c.path, "error", err)
		return
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		slog.Warn("Failed to replace provider health cache", "path", c.path, "error", err)
	}
}
