package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
environment: sandbox
postgres:
  host: localhost
clickhouse:
  host: localhost
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.MinFavorableConditions != 2 {
		t.Fatalf("expected default min favorable 2, got %d", cfg.Engine.MinFavorableConditions)
	}
	if cfg.Engine.MaxConcurrency != 16 {
		t.Fatalf("expected default concurrency 16, got %d", cfg.Engine.MaxConcurrency)
	}
	if cfg.Engine.OverallDeadline != 45*time.Second {
		t.Fatalf("expected default deadline 45s, got %v", cfg.Engine.OverallDeadline)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: staging
postgres:
  host: localhost
clickhouse:
  host: localhost
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRequiresEncryptionKeyInLive(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: live
postgres:
  host: localhost
clickhouse:
  host: localhost
`))
	if err == nil {
		t.Fatal("expected missing encryption key to fail in live")
	}
}

func TestLoadRejectsOutOfRangeMinimum(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
engine:
  min_favorable_conditions: 5
`))
	if err == nil {
		t.Fatal("expected validation error for minimum above condition count")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("VAULT_ENCRYPTION_KEY", "env-key")
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vault.EncryptionKey != "env-key" {
		t.Fatalf("vault key not overridden: %q", cfg.Vault.EncryptionKey)
	}
	if cfg.Server.Port != 9191 {
		t.Fatalf("server port not overridden: %d", cfg.Server.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "k1:9092" {
		t.Fatalf("brokers not overridden: %v", cfg.Kafka.Brokers)
	}
}
