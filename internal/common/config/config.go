// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Push          PushConfig              `mapstructure:"push"`
	Cache         CacheConfig             `mapstructure:"cache"`
	Agent         AgentConfig             `mapstructure:"agent"`
	Server        ServerConfig            `mapstructure:"server"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Kafka         KafkaConfig             `mapstructure:"kafka"`
	Diagnostics   DiagnosticsConfig       `mapstructure:"diagnostics"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// PushConfig holds VAPID material and the notification defaults used by the worker.
type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber"`
	TTL             int    `mapstructure:"ttl"` // seconds

	DefaultTitle string `mapstructure:"default_title"`
	DefaultBody  string `mapstructure:"default_body"`
	DefaultURL   string `mapstructure:"default_url"`

	Display DisplayConfig `mapstructure:"display"`
}

// DisplayConfig controls how a notification is rendered.
type DisplayConfig struct {
	Icon               string `mapstructure:"icon"`
	Badge              string `mapstructure:"badge"`
	Vibrate            []int  `mapstructure:"vibrate"`
	RequireInteraction bool   `mapstructure:"require_interaction"`
	Renotify           bool   `mapstructure:"renotify"`
	OpenActionTitle    string `mapstructure:"open_action_title"`
	CloseActionTitle   string `mapstructure:"close_action_title"`
}

// CacheConfig describes the single versioned asset cache.
type CacheConfig struct {
	Prefix       string   `mapstructure:"prefix"`
	Version      int      `mapstructure:"version"`
	ManifestPath string   `mapstructure:"manifest_path"`
	Assets       []string `mapstructure:"assets"`
	AdminPrefix  string   `mapstructure:"admin_prefix"`
	APIPrefix    string   `mapstructure:"api_prefix"`
	Backend      string   `mapstructure:"backend"` // "memory" or "redis"
}

// Name returns the active cache generation name, "<app>-v<N>".
func (c CacheConfig) Name() string {
	return fmt.Sprintf("%s-v%d", c.Prefix, c.Version)
}

// AgentConfig configures the process hosting the worker runtime.
type AgentConfig struct {
	ListenAddress  string `mapstructure:"listen_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	Origin         string `mapstructure:"origin"`
	PublicURL      string `mapstructure:"public_url"` // base of minted push endpoints
	OwnerID        string `mapstructure:"owner_id"`
	Permission     string `mapstructure:"permission"`      // prompt policy: granted, denied, default
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// ServerConfig configures the push collaborator server and clients of it.
type ServerConfig struct {
	ListenAddress  string   `mapstructure:"listen_address"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxParallel    int      `mapstructure:"max_parallel"`
	RequestTimeout int      `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig configures the storefront business-event consumer.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// DiagnosticsConfig holds the fixed delays of the run-all sequence.
type DiagnosticsConfig struct {
	StepDelay      int `mapstructure:"step_delay"`       // milliseconds
	LocalTestDelay int `mapstructure:"local_test_delay"` // milliseconds
	PingTimeout    int `mapstructure:"ping_timeout"`     // milliseconds
}

// WorkerConfig holds the settings applicable to every event handler.
type WorkerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Timeout int  `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ObservabilityConfig holds tracing settings; metrics are always exported.
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}
