package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// LoadEnv reads a .env file and returns a map of key-value pairs.
// It ignores comments (starting with #) and empty lines.
func LoadEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove inline comments
		if idx := strings.Index(value, " #"); idx != -1 {
			value = strings.TrimSpace(value[:idx])
		}

		// Remove quotes if present
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		vars[key] = value
	}

	return vars, scanner.Err()
}

// MergeEnv overlays process environment entries ("KEY=value") on the
// values read from a .env file.
func MergeEnv(dotenv map[string]string, environ []string) map[string]string {
	merged := make(map[string]string, len(dotenv)+len(environ))
	for k, v := range dotenv {
		merged[k] = v
	}
	for k, v := range env.ToMap(environ) {
		merged[k] = v
	}
	return merged
}

// ApplyEnvOverrides updates the configuration from environment variables.
func ApplyEnvOverrides(cfg *Config, vars map[string]string) error {
	e, err := ParseEnvironment(vars)
	if err != nil {
		return err
	}
	e.Apply(cfg)

	// Provider enablement
	for name, p := range cfg.Providers {
		envKey := fmt.Sprintf("PROVIDER_%s_ENABLED", strings.ToUpper(name))
		if val, ok := vars[envKey]; ok {
			if boolVal, err := strconv.ParseBool(val); err == nil {
				p.Enabled = boolVal
				cfg.Providers[name] = p
			}
		}
	}

	return nil
}

// parseTimeout accepts whole seconds ("60") or a Go duration ("90s").
func parseTimeout(val string) (time.Duration, bool) {
	if seconds, err := strconv.Atoi(val); err == nil {
		return time.Duration(seconds) * time.Second, true
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d, true
	}
	return 0, false
}
