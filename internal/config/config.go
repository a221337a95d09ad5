package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the environment overlay, e.g. WARDEN_SERVICE_ROLE_KEY.
const EnvPrefix = "WARDEN"

const (
	ProviderGoTrue   = "gotrue"
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

const (
	DefaultSimulationDelay = 800 * time.Millisecond
	DefaultNotificationTTL = 4 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultListPageSize    = 1000
	DefaultPort            = "8080"
	DefaultRateLimit       = 60
	DefaultRateWindow      = time.Minute
)

type Config struct {
	Provider        string `yaml:"provider" envconfig:"PROVIDER"`
	SupabaseURL     string `yaml:"supabase_url" envconfig:"SUPABASE_URL"`
	ServiceRoleKey  string `yaml:"service_role_key" envconfig:"SERVICE_ROLE_KEY"`
	DatabaseURL     string `yaml:"database_url" envconfig:"DATABASE_URL"`
	PrincipalEmail  string `yaml:"principal_email" envconfig:"PRINCIPAL_EMAIL"`
	DemoEmail       string `yaml:"demo_email" envconfig:"DEMO_EMAIL"`
	SimulationDelay string `yaml:"simulation_delay" envconfig:"SIMULATION_DELAY"`
	NotificationTTL string `yaml:"notification_ttl" envconfig:"NOTIFICATION_TTL"`
	RequestTimeout  string `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	ListPageSize    int    `yaml:"list_page_size" envconfig:"LIST_PAGE_SIZE"`
	LogLevel        string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat       string `yaml:"log_format" envconfig:"LOG_FORMAT"`

	// API server
	Port           string `yaml:"port" envconfig:"PORT"`
	AllowedOrigins string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit      int    `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	RateWindow     string `yaml:"rate_window" envconfig:"RATE_WINDOW"`
}

type Flags struct {
	Provider       string
	SupabaseURL    string
	ServiceRoleKey string
	DatabaseURL    string
	PrincipalEmail string
	LogLevel       string
	LogFormat      string
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Provider = expandEnv(cfg.Provider)
	cfg.SupabaseURL = expandEnv(cfg.SupabaseURL)
	cfg.ServiceRoleKey = expandEnv(cfg.ServiceRoleKey)
	cfg.DatabaseURL = expandEnv(cfg.DatabaseURL)
	cfg.PrincipalEmail = expandEnv(cfg.PrincipalEmail)
	cfg.DemoEmail = expandEnv(cfg.DemoEmail)
	cfg.SimulationDelay = expandEnv(cfg.SimulationDelay)
	cfg.NotificationTTL = expandEnv(cfg.NotificationTTL)
	cfg.RequestTimeout = expandEnv(cfg.RequestTimeout)
	cfg.LogLevel = expandEnv(cfg.LogLevel)
	cfg.LogFormat = expandEnv(cfg.LogFormat)
	cfg.Port = expandEnv(cfg.Port)
	cfg.AllowedOrigins = expandEnv(cfg.AllowedOrigins)
	cfg.RateWindow = expandEnv(cfg.RateWindow)

	return &cfg, nil
}

// Resolve loads path when it exists and overlays WARDEN_* environment
// variables. A missing file is only an error when required is set.
func Resolve(path string, required bool) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if cfg, err = Load(path); err != nil {
				return nil, err
			}
		} else if required || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields with any WARDEN_* variables that are set.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

func (c *Config) GetProvider(flags *Flags) string {
	if flags != nil && flags.Provider != "" {
		return strings.ToLower(flags.Provider)
	}
	if c.Provider != "" {
		return strings.ToLower(c.Provider)
	}
	return ProviderGoTrue
}

func (c *Config) GetSupabaseURL(flags *Flags) (string, error) {
	if flags != nil && flags.SupabaseURL != "" {
		return flags.SupabaseURL, nil
	}
	if c.SupabaseURL != "" {
		return c.SupabaseURL, nil
	}
	return "", fmt.Errorf("supabase_url is required (set in config or pass --supabase-url flag)")
}

func (c *Config) GetServiceRoleKey(flags *Flags) (string, error) {
	if flags != nil && flags.ServiceRoleKey != "" {
		return flags.ServiceRoleKey, nil
	}
	if c.ServiceRoleKey != "" {
		return c.ServiceRoleKey, nil
	}
	return "", fmt.Errorf("service_role_key is required (set in config or %s_SERVICE_ROLE_KEY)", EnvPrefix)
}

func (c *Config) GetDatabaseURL(flags *Flags) (string, error) {
	if flags != nil && flags.DatabaseURL != "" {
		return flags.DatabaseURL, nil
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	return "", fmt.Errorf("database_url is required (set in config or pass --database-url flag)")
}

func (c *Config) GetPrincipalEmail(flags *Flags) string {
	if flags != nil && flags.PrincipalEmail != "" {
		return flags.PrincipalEmail
	}
	return c.PrincipalEmail
}

func (c *Config) GetLogLevel(flags *Flags) string {
	if flags != nil && flags.LogLevel != "" {
		return flags.LogLevel
	}
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return "info"
}

func (c *Config) GetLogFormat(flags *Flags) string {
	if flags != nil && flags.LogFormat != "" {
		return flags.LogFormat
	}
	if c.LogFormat != "" {
		return c.LogFormat
	}
	return "json"
}

func (c *Config) GetSimulationDelay() (time.Duration, error) {
	return parseDuration("simulation_delay", c.SimulationDelay, DefaultSimulationDelay)
}

func (c *Config) GetNotificationTTL() (time.Duration, error) {
	return parseDuration("notification_ttl", c.NotificationTTL, DefaultNotificationTTL)
}

func (c *Config) GetRequestTimeout() (time.Duration, error) {
	return parseDuration("request_timeout", c.RequestTimeout, DefaultRequestTimeout)
}

func (c *Config) GetRateWindow() (time.Duration, error) {
	return parseDuration("rate_window", c.RateWindow, DefaultRateWindow)
}

func (c *Config) GetListPageSize() int {
	if c.ListPageSize > 0 {
		return c.ListPageSize
	}
	return DefaultListPageSize
}

func (c *Config) GetPort() string {
	if c.Port != "" {
		return c.Port
	}
	return DefaultPort
}

func (c *Config) GetAllowedOrigins() string {
	if c.AllowedOrigins != "" {
		return c.AllowedOrigins
	}
	return "*"
}

func (c *Config) GetRateLimit() int {
	if c.RateLimit > 0 {
		return c.RateLimit
	}
	return DefaultRateLimit
}

// Validate checks that the selected provider has what it needs to start.
func (c *Config) Validate(flags *Flags) error {
	switch p := c.GetProvider(flags); p {
	case ProviderGoTrue:
		if _, err := c.GetSupabaseURL(flags); err != nil {
			return err
		}
		if _, err := c.GetServiceRoleKey(flags); err != nil {
			return err
		}
	case ProviderPostgres:
		if _, err := c.GetDatabaseURL(flags); err != nil {
			return err
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("unknown provider %q (expected %s, %s or %s)", p, ProviderGoTrue, ProviderPostgres, ProviderMemory)
	}

	for _, get := range []func() (time.Duration, error){
		c.GetSimulationDelay, c.GetNotificationTTL, c.GetRequestTimeout, c.GetRateWindow,
	} {
		if _, err := get(); err != nil {
			return err
		}
	}
	return nil
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, value)
	}
	return d, nil
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return os.ExpandEnv(s)
}
