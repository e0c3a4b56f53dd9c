package config

import (
	"errors"
	"fmt"
	"os"

	"spacegrid/internal/models"
	"spacegrid/internal/timeutil"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Cache      CacheConfig      `yaml:"cache"`
	Engine     EngineConfig     `yaml:"engine"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Exports    ExportConfig     `yaml:"exports"`
	Warmer     WarmerConfig     `yaml:"warmer"`
	SpacesFile string           `yaml:"spaces_file"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey описывает клиента API. Пустой список permissions разрешает всё.
type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CacheConfig управляет кэшем рассчитанных сеток.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	TTLSeconds int  `yaml:"ttl_seconds"`
}

// EngineConfig задаёт параметры расчёта слотов и оси времени.
type EngineConfig struct {
	FallbackZone             string `yaml:"fallback_zone"`
	DefaultRangeStart        string `yaml:"default_range_start"`
	DefaultRangeEnd          string `yaml:"default_range_end"`
	DefaultSlotMinutes       int    `yaml:"default_slot_minutes"`
	BookingOverridesBlackout bool   `yaml:"booking_overrides_blackout"`
}

type WarmerConfig struct {
	Enabled        bool    `yaml:"enabled"`
	QueueSize      int     `yaml:"queue_size"`
	MaxRetries     int     `yaml:"max_retries"`
	InitialDelayMs int     `yaml:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms"`
	BackoffFactor  float64 `yaml:"backoff_factor"`
	DaysAhead      int     `yaml:"days_ahead"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if err := c.Engine.Validate(); err != nil {
		return err
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

func (e EngineConfig) Validate() error {
	if _, err := timeutil.LoadZone(e.FallbackZone); err != nil {
		return fmt.Errorf("engine.fallback_zone: %w", err)
	}
	start, err := timeutil.ParseClock(e.DefaultRangeStart)
	if err != nil {
		return fmt.Errorf("engine.default_range_start: %w", err)
	}
	end, err := timeutil.ParseClock(e.DefaultRangeEnd)
	if err != nil {
		return fmt.Errorf("engine.default_range_end: %w", err)
	}
	if end.Hour*60+end.Minute <= start.Hour*60+start.Minute {
		return errors.New("engine default range must end after it starts")
	}
	if !models.SlotMinutes(e.DefaultSlotMinutes).Valid() {
		return fmt.Errorf("engine.default_slot_minutes: %w", models.ErrInvalidSlotMinutes)
	}
	return nil
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api client '%s' has empty key", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Engine defaults
	if c.Engine.FallbackZone == "" {
		c.Engine.FallbackZone = models.DefaultFallbackZone
	}
	if c.Engine.DefaultRangeStart == "" {
		c.Engine.DefaultRangeStart = models.DefaultRangeStart
	}
	if c.Engine.DefaultRangeEnd == "" {
		c.Engine.DefaultRangeEnd = models.DefaultRangeEnd
	}
	if c.Engine.DefaultSlotMinutes == 0 {
		c.Engine.DefaultSlotMinutes = models.DefaultSlotMinutes
	}

	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = models.GridCacheTTL
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}

	if c.Warmer.QueueSize == 0 {
		c.Warmer.QueueSize = models.WarmerQueueSize
	}
	if c.Warmer.MaxRetries == 0 {
		c.Warmer.MaxRetries = 3
	}
	if c.Warmer.InitialDelayMs == 0 {
		c.Warmer.InitialDelayMs = 200
	}
	if c.Warmer.MaxDelayMs == 0 {
		c.Warmer.MaxDelayMs = 5000
	}
	if c.Warmer.BackoffFactor == 0 {
		c.Warmer.BackoffFactor = 2
	}

	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "./backups"
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "./exports"
	}
}
