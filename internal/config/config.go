package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
	AccessTTL    time.Duration
}

type StorageConfig struct {
	Root      string
	URLPrefix string
}

type UploadConfig struct {
	MaxBytes    int64
	MaxPixels   int64
	JPEGQuality int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AnalyticsConfig struct {
	RefreshInterval time.Duration
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Storage     StorageConfig
	Upload      UploadConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Analytics   AnalyticsConfig
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	setDefaults(v)

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
			AccessTTL:    v.GetDuration("JWT_ACCESS_TTL"),
		},
		Storage: StorageConfig{
			Root:      v.GetString("STORAGE_ROOT"),
			URLPrefix: v.GetString("STORAGE_URL_PREFIX"),
		},
		Upload: UploadConfig{
			MaxBytes:    v.GetInt64("UPLOAD_MAX_BYTES"),
			MaxPixels:   v.GetInt64("UPLOAD_MAX_PIXELS"),
			JPEGQuality: v.GetInt("UPLOAD_JPEG_QUALITY"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Analytics: AnalyticsConfig{
			RefreshInterval: v.GetDuration("ANALYTICS_REFRESH_INTERVAL"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	v.SetDefault("JWT_ACCESS_TTL", 24*time.Hour)
	v.SetDefault("STORAGE_ROOT", "./storage")
	v.SetDefault("STORAGE_URL_PREFIX", "/storage")
	v.SetDefault("UPLOAD_MAX_BYTES", 10<<20)
	v.SetDefault("UPLOAD_MAX_PIXELS", 40_000_000)
	v.SetDefault("UPLOAD_JPEG_QUALITY", 85)
	v.SetDefault("KAFKA_TOPIC", "ticket-events")
	v.SetDefault("ANALYTICS_REFRESH_INTERVAL", 60*time.Second)
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if cfg.Upload.MaxPixels <= 0 {
		return fmt.Errorf("UPLOAD_MAX_PIXELS must be positive")
	}
	if cfg.Upload.JPEGQuality < 1 || cfg.Upload.JPEGQuality > 100 {
		return fmt.Errorf("UPLOAD_JPEG_QUALITY must be between 1 and 100")
	}
	if cfg.Analytics.RefreshInterval <= 0 {
		return fmt.Errorf("ANALYTICS_REFRESH_INTERVAL must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
