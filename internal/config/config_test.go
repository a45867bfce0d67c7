package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("expected 2 brokers, got %v", cfg.KafkaBrokers)
	}
	if !cfg.RollbackOnFailure {
		t.Fatal("expected rollback on failure by default")
	}
	if cfg.StrictTransitions {
		t.Fatal("expected permissive transitions by default")
	}
	if len(cfg.Markets) != 2 {
		t.Fatalf("expected two markets, got %v", cfg.Markets)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := Config{AnalyticsTZ: "Nowhere/Invalid"}
	if cfg.Location() != time.UTC {
		t.Fatal("expected UTC fallback")
	}
}
