package domain

import (
	"os"
	"strconv"
	"time"
)

// Config holds the complete Lumina configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Repository    RepositoryConfig    `json:"repository"`
	Cache         CacheConfig         `json:"cache"`
	EventBus      EventBusConfig      `json:"eventBus"`
	Providers     ProvidersConfig     `json:"providers"`
	Jurisdictions JurisdictionsConfig `json:"jurisdictions"`
	Orchestrator  OrchestratorConfig  `json:"orchestrator"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ProviderConfig holds the connection settings for one external provider.
type ProviderConfig struct {
	BaseURL    string        `json:"baseUrl"`
	APIKey     string        `json:"-"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"maxRetries"`
	RetryBase  time.Duration `json:"retryBase"`
}

// ProvidersConfig groups the external compliance providers.
type ProvidersConfig struct {
	KYC ProviderConfig `json:"kyc"`
	AML ProviderConfig `json:"aml"`
}

// JurisdictionsConfig holds jurisdiction rule loading settings.
type JurisdictionsConfig struct {
	// Dir is the directory of per-jurisdiction YAML files.
	Dir string `json:"dir"`

	// Watch enables fsnotify-driven hot reload on file changes.
	Watch bool `json:"watch"`
}

// OrchestratorConfig holds check orchestration settings.
type OrchestratorConfig struct {
	// OverallTimeout bounds one complete check, both provider calls
	// included. A check that overruns it fails closed, never hangs.
	OverallTimeout time.Duration `json:"overallTimeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DefaultConfig returns a configuration suitable for local development:
// SQLite, in-memory cache, in-process channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./lumina.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Providers: ProvidersConfig{
			KYC: ProviderConfig{
				Timeout:    5 * time.Second,
				MaxRetries: 2,
				RetryBase:  200 * time.Millisecond,
			},
			AML: ProviderConfig{
				Timeout:    5 * time.Second,
				MaxRetries: 2,
				RetryBase:  200 * time.Millisecond,
			},
		},
		Jurisdictions: JurisdictionsConfig{
			Dir:   "./configs/jurisdictions",
			Watch: true,
		},
		Orchestrator: OrchestratorConfig{
			OverallTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "lumina",
		},
	}
}

// LoadFromEnv overlays LUMINA_* environment variables on the defaults.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("LUMINA_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := envInt("LUMINA_PORT"); v > 0 {
		cfg.Server.Port = v
	}

	if v := os.Getenv("LUMINA_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("LUMINA_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("LUMINA_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := envInt("LUMINA_POSTGRES_PORT"); v > 0 {
		cfg.Repository.PostgresPort = v
	}
	if v := os.Getenv("LUMINA_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("LUMINA_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("LUMINA_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}

	if v := os.Getenv("LUMINA_CACHE_TYPE"); v != "" {
		cfg.Cache.Type = v
	}
	if v := os.Getenv("LUMINA_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
		cfg.Cache.EnableTwoPhase = true
	}

	if v := os.Getenv("LUMINA_BUS_TYPE"); v != "" {
		cfg.EventBus.Type = v
	}
	if v := os.Getenv("LUMINA_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}

	if v := os.Getenv("LUMINA_KYC_URL"); v != "" {
		cfg.Providers.KYC.BaseURL = v
	}
	if v := os.Getenv("LUMINA_KYC_API_KEY"); v != "" {
		cfg.Providers.KYC.APIKey = v
	}
	if v := os.Getenv("LUMINA_AML_URL"); v != "" {
		cfg.Providers.AML.BaseURL = v
	}
	if v := os.Getenv("LUMINA_AML_API_KEY"); v != "" {
		cfg.Providers.AML.APIKey = v
	}
	if v := envDuration("LUMINA_PROVIDER_TIMEOUT"); v > 0 {
		cfg.Providers.KYC.Timeout = v
		cfg.Providers.AML.Timeout = v
	}

	if v := os.Getenv("LUMINA_JURISDICTIONS_DIR"); v != "" {
		cfg.Jurisdictions.Dir = v
	}
	if v := os.Getenv("LUMINA_JURISDICTIONS_WATCH"); v != "" {
		cfg.Jurisdictions.Watch = v == "true"
	}

	if v := envDuration("LUMINA_CHECK_TIMEOUT"); v > 0 {
		cfg.Orchestrator.OverallTimeout = v
	}

	if v := os.Getenv("LUMINA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if os.Getenv("LUMINA_TRACING") == "true" {
		cfg.Tracing.Enabled = true
	}

	return cfg
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

func envDuration(key string) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}
