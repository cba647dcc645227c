package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.ToolTimeout != 5*time.Minute || cfg.CleanupInterval != 5*time.Minute || cfg.MaxAge != 10*time.Minute {
		t.Fatalf("unexpected default timings: %+v", cfg)
	}
	if cfg.RateLimit.Requests != 5 || cfg.RateLimit.Window != time.Minute {
		t.Fatalf("unexpected default rate limit: %+v", cfg.RateLimit)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("not_exists.yml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Port != defaultPort || cfg.Workers != defaultWorkers {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadReadsAndNormalizes(t *testing.T) {
	path := writeConfig(t, "port: 9090\ndata_dir: ' out '\nworkers: 2\ntool_timeout: 30s\nmax_age: 1h\nrate_limit:\n  requests: 10\n  window: 30s\nlog_level: DEBUG\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 || cfg.DataDir != "out" || cfg.Workers != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.ToolTimeout != 30*time.Second || cfg.MaxAge != time.Hour {
		t.Fatalf("durations not parsed: %+v", cfg)
	}
	if cfg.CleanupInterval != defaultCleanupInterval {
		t.Fatalf("expected default cleanup interval to survive partial file, got %s", cfg.CleanupInterval)
	}
	if cfg.RateLimit.Requests != 10 || cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("rate limit not parsed: %+v", cfg.RateLimit)
	}
	if cfg.Level() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", cfg.Level())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero workers":      "workers: 0\n",
		"negative timeout":  "tool_timeout: -1s\n",
		"zero max age":      "max_age: 0s\n",
		"bad log level":     "log_level: loud\n",
		"negative requests": "rate_limit:\n  requests: -1\n",
		"malformed yaml":    "port: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatalf("expected error for %q", content)
			}
		})
	}
}
