// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Event handler names used as keys of Config.Workers.
var knownWorkers = []string{
	"install",
	"activate",
	"fetch",
	"push",
	"notificationclick",
	"pushsubscriptionchange",
	"message",
}

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// PUSH_VAPID_PUBLIC_KEY overrides push.vapid_public_key, and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	// Booleans cannot be defaulted after unmarshal.
	v.SetDefault("push.display.require_interaction", true)
	v.SetDefault("push.display.renotify", true)
	v.SetDefault("kafka.enabled", false)

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Push.VAPIDPublicKey == "" {
		if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
			cfg.Push.VAPIDPublicKey = val
		}
	}
	if cfg.Push.VAPIDPrivateKey == "" {
		if val := os.Getenv("VAPID_PRIVATE_KEY"); val != "" {
			cfg.Push.VAPIDPrivateKey = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Push defaults
	if cfg.Push.Subscriber == "" {
		cfg.Push.Subscriber = "admin@example.com"
	}
	if cfg.Push.TTL == 0 {
		cfg.Push.TTL = 24 * 60 * 60
	}
	if cfg.Push.DefaultTitle == "" {
		cfg.Push.DefaultTitle = cfg.App.Name
	}
	if cfg.Push.DefaultBody == "" {
		cfg.Push.DefaultBody = "New notification"
	}
	if cfg.Push.DefaultURL == "" {
		cfg.Push.DefaultURL = "/admin"
	}
	if cfg.Push.Display.Icon == "" {
		cfg.Push.Display.Icon = "/icons/icon-192x192.png"
	}
	if cfg.Push.Display.Badge == "" {
		cfg.Push.Display.Badge = "/icons/badge-72x72.png"
	}
	if len(cfg.Push.Display.Vibrate) == 0 {
		cfg.Push.Display.Vibrate = []int{200, 100, 200}
	}
	if cfg.Push.Display.OpenActionTitle == "" {
		cfg.Push.Display.OpenActionTitle = "Open"
	}
	if cfg.Push.Display.CloseActionTitle == "" {
		cfg.Push.Display.CloseActionTitle = "Close"
	}

	// Cache defaults
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = cfg.App.Name
	}
	if cfg.Cache.Version == 0 {
		cfg.Cache.Version = 1
	}
	if cfg.Cache.AdminPrefix == "" {
		cfg.Cache.AdminPrefix = "/admin"
	}
	if cfg.Cache.APIPrefix == "" {
		cfg.Cache.APIPrefix = "/api/"
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}

	// Agent defaults
	if cfg.Agent.ListenAddress == "" {
		cfg.Agent.ListenAddress = ":8090"
	}
	if cfg.Agent.MetricsAddress == "" {
		cfg.Agent.MetricsAddress = ":9090"
	}
	if cfg.Agent.PublicURL == "" {
		cfg.Agent.PublicURL = "http://localhost" + cfg.Agent.ListenAddress
	}
	if cfg.Agent.OwnerID == "" {
		cfg.Agent.OwnerID = "admin"
	}
	if cfg.Agent.Permission == "" {
		cfg.Agent.Permission = "default"
	}
	if cfg.Agent.RequestTimeout == 0 {
		cfg.Agent.RequestTimeout = 10000
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}
	if cfg.Server.MaxParallel == 0 {
		cfg.Server.MaxParallel = 8
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 10000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Kafka defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "storefront.events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "push-server"
	}

	// Diagnostics defaults
	if cfg.Diagnostics.StepDelay == 0 {
		cfg.Diagnostics.StepDelay = 1000
	}
	if cfg.Diagnostics.LocalTestDelay == 0 {
		cfg.Diagnostics.LocalTestDelay = 2000
	}
	if cfg.Diagnostics.PingTimeout == 0 {
		cfg.Diagnostics.PingTimeout = 3000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name + "-push"
	}

	// Every handler is present and enabled unless configured otherwise.
	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig, len(knownWorkers))
	}
	for _, name := range knownWorkers {
		if _, exists := cfg.Workers[name]; !exists {
			cfg.Workers[name] = WorkerConfig{Enabled: true}
		}
	}
	for key, worker := range cfg.Workers {
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields. A missing VAPID public key
// is deliberately not rejected here: it is reported at subscribe time.
func validateConfig(cfg *Config) error {
	if cfg.Cache.Version < 1 {
		return fmt.Errorf("cache.version must be >= 1")
	}
	if !strings.HasPrefix(cfg.Cache.AdminPrefix, "/") {
		return fmt.Errorf("cache.admin_prefix must start with /")
	}
	if !strings.HasPrefix(cfg.Cache.APIPrefix, "/") {
		return fmt.Errorf("cache.api_prefix must start with /")
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", cfg.Cache.Backend)
	}

	switch cfg.Agent.Permission {
	case "granted", "denied", "default":
	default:
		return fmt.Errorf("agent.permission must be granted, denied or default, got %q", cfg.Agent.Permission)
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}

	if cfg.Observability.TracingEnabled && cfg.Observability.JaegerEndpoint == "" {
		return fmt.Errorf("observability.jaeger_endpoint is required when tracing is enabled")
	}

	return nil
}

// ValidateServer checks the fields only the push server needs.
func ValidateServer(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Push.VAPIDPublicKey == "" || cfg.Push.VAPIDPrivateKey == "" {
		return fmt.Errorf("push.vapid_public_key and push.vapid_private_key are required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves handler-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled: true,
		Timeout: 30000,
	}
}

// IsWorkerEnabled checks if a specific handler is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
