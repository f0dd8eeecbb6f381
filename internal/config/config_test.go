package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/tickets")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 8080 || cfg.Upload.MaxBytes != 10<<20 || cfg.Upload.MaxPixels != 40_000_000 || cfg.Upload.JPEGQuality != 85 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Analytics.RefreshInterval != 60*time.Second {
		t.Fatalf("unexpected refresh interval %s", cfg.Analytics.RefreshInterval)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development environment by default")
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_ACCESS_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidateQualityRange(t *testing.T) {
	cfg := &Config{
		DB:        DBConfig{DSN: "x"},
		Auth:      AuthConfig{AccessSecret: "x"},
		Upload:    UploadConfig{MaxBytes: 1, MaxPixels: 1, JPEGQuality: 101},
		Analytics: AnalyticsConfig{RefreshInterval: time.Second},
	}
	if err := validate(cfg); err == nil {
		t.Fatalf("expected quality error")
	}
}
