package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// HealthCheckPrompt is the prompt sent to providers for health checks.
	HealthCheckPrompt = "1+1? One digit answer only"

	healthCheckTimeout = 30 * time.Second
)

// HealthStatus is the outcome of a single provider probe.
type HealthStatus struct {
	Available    bool          `json:"available"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}

// HealthChecker is implemented by providers that can probe their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) HealthStatus
}

// CheckHealth probes p, using its own HealthCheck when it has one.
func CheckHealth(ctx context.Context, p Provider) HealthStatus {
	if hc, ok := p.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	if !p.Available() {
		return HealthStatus{Error: "provider not available", CheckedAt: time.Now()}
	}
	return HealthCheckWithExecute(ctx, "", p.Execute)
}

// HealthCheckWithExecute runs a provider health check using the provided execute function.
func HealthCheckWithExecute(ctx context.Context, model string, exec func(context.Context, *Request) (*Response, error)) HealthStatus {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req := &Request{
		Prompt:      HealthCheckPrompt,
		Model:       model,
		Temperature: 0,
		MaxTokens:   8,
	}

	resp, err := exec(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		return HealthStatus{
			Available:    false,
			ResponseTime: elapsed,
			Error:        err.Error(),
			CheckedAt:    time.Now(),
		}
	}
	if resp == nil {
		return HealthStatus{
			Available:    false,
			ResponseTime: elapsed,
			Error:        "empty response",
			CheckedAt:    time.Now(),
		}
	}

	if err := validateHealthResponse(resp.Content); err != nil {
		return HealthStatus{
			Available:    false,
			ResponseTime: elapsed,
			Error:        err.Error(),
			CheckedAt:    time.Now(),
		}
	}

	return HealthStatus{
		Available:    true,
		ResponseTime: elapsed,
		CheckedAt:    time.Now(),
	}
}

func validateHealthResponse(content string) error {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimSuffix(trimmed, ".")
	if trimmed == "2" {
		return nil
	}
	if trimmed == "" {
		return fmt.Errorf("unexpected response: empty")
	}
	if len(trimmed) > 120 {
		trimmed = trimmed[:120] + "..."
	}
	return fmt.Errorf("unexpected response: %q", trimmed)
}
