package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/dlpstream/collector/internal/domain"
)

// Config holds all collector configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Static defaults for the upstream DLP manager connection. These seed
	// the runtime config store and remain in effect until the central
	// authority delivers a newer value.
	ManagerHost           string  `env:"MANAGER_HOST,required"`
	ManagerPort           int     `env:"MANAGER_PORT" envDefault:"8443"`
	ManagerUseHTTPS       bool    `env:"MANAGER_USE_HTTPS" envDefault:"true"`
	ManagerTimeoutSeconds int     `env:"MANAGER_TIMEOUT_SECONDS" envDefault:"30"`
	ManagerUsername       string  `env:"MANAGER_USERNAME,required"`
	ManagerPassword       string  `env:"MANAGER_PASSWORD,required"`
	ManagerRateLimit      float64 `env:"MANAGER_RATE_LIMIT" envDefault:"5"`
	ManagerRateBurst      int     `env:"MANAGER_RATE_BURST" envDefault:"10"`

	RedisAddr            string `env:"REDIS_ADDR,required"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	IncidentStream       string `env:"INCIDENT_STREAM" envDefault:"dlp:incidents"`
	IncidentStreamMaxLen int64  `env:"INCIDENT_STREAM_MAXLEN" envDefault:"100000"`
	ConfigChannel        string `env:"CONFIG_CHANNEL" envDefault:"dlp:config-updates"`

	// An empty AuthoritySecret disables remote config and log forwarding.
	AuthorityURL       string        `env:"AUTHORITY_URL"`
	AuthoritySecret    string        `env:"AUTHORITY_SECRET"`
	ConfigPollInterval time.Duration `env:"CONFIG_POLL_INTERVAL" envDefault:"5m"`

	CollectInterval  time.Duration `env:"COLLECT_INTERVAL" envDefault:"1h"`
	CollectCooldown  time.Duration `env:"COLLECT_COOLDOWN" envDefault:"5m"`
	LookbackWindow   time.Duration `env:"LOOKBACK_WINDOW" envDefault:"24h"`
	IncidentPageSize int           `env:"INCIDENT_PAGE_SIZE" envDefault:"100"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9091"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ManagerDefaults builds the static default connection config used until a
// remote value arrives.
func (c *Config) ManagerDefaults() domain.ConnectionConfig {
	return domain.ConnectionConfig{
		ManagerIP:      c.ManagerHost,
		ManagerPort:    c.ManagerPort,
		UseHTTPS:       c.ManagerUseHTTPS,
		TimeoutSeconds: c.ManagerTimeoutSeconds,
		Username:       c.ManagerUsername,
		Password:       c.ManagerPassword,
	}
}
