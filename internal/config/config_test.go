package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://root@localhost:26257/defaultdb")
	t.Setenv("GEOTOURIST_CONFIG", "")
	t.Setenv("USE_GEOHASH", "")
	t.Setenv("QUERY_STRATEGY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRetries != 3 || cfg.BatchSize != 2048 {
		t.Fatalf("unexpected retry/batch defaults: %+v", cfg)
	}
	if cfg.Strategy != StrategyBucket {
		t.Fatalf("expected bucket strategy, got %q", cfg.Strategy)
	}
	if cfg.ConnectTimeout != time.Second || cfg.StatementTimeout != 3*time.Second {
		t.Fatalf("unexpected timeouts: %v %v", cfg.ConnectTimeout, cfg.StatementTimeout)
	}
	if cfg.Workers != 10 || cfg.ResultLimit != 10 || cfg.RadiusMeters != 5000 {
		t.Fatalf("unexpected serving defaults: %+v", cfg)
	}
}

func TestLoad_LegacyGeohashSwitch(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("GEOTOURIST_CONFIG", "")
	t.Setenv("QUERY_STRATEGY", "")
	t.Setenv("USE_GEOHASH", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Strategy != StrategyRadius {
		t.Fatalf("expected radius strategy, got %q", cfg.Strategy)
	}
}

func TestLoad_YAMLOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geotourist.yaml")
	body := "max_retries: 5\nstrategy: Radius\nbatch_size: 100\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("MAX_RETRIES", "2")
	t.Setenv("QUERY_STRATEGY", "")
	t.Setenv("GEOTOURIST_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRetries != 5 || cfg.BatchSize != 100 || cfg.Strategy != StrategyRadius {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
}

func TestValidate_Rejects(t *testing.T) {
	base := Config{
		DatabaseURL: "postgres://x", MaxRetries: 3, BatchSize: 1, Strategy: StrategyBucket,
		RadiusMeters: 1, ResultLimit: 1, ReadPoolSize: 1, WritePoolSize: 1, Workers: 1,
		ConnectTimeout: time.Second, StatementTimeout: time.Second,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}

	noURL := base
	noURL.DatabaseURL = ""
	badStrategy := base
	badStrategy.Strategy = "grid"
	noRetries := base
	noRetries.MaxRetries = 0
	for name, cfg := range map[string]Config{"url": noURL, "strategy": badStrategy, "retries": noRetries} {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
