package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigFileEnv names an optional TOML file applied before environment overrides.
const ConfigFileEnv = "TODO_CONFIG_FILE"

type Config struct {
	Server       ServerConfig       `toml:"server"`
	Database     DatabaseConfig     `toml:"database"`
	TLS          TLSConfig          `toml:"tls"`
	Telemetry    TelemetryConfig    `toml:"telemetry"`
	Log          LogConfig          `toml:"log"`
	Invalidation InvalidationConfig `toml:"invalidation"`
	Client       ClientConfig       `toml:"client"`
}

type ServerConfig struct {
	Port            string        `toml:"port"`
	Host            string        `toml:"host"`
	AllowedHosts    []string      `toml:"allowed_hosts"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `toml:"driver"` // postgres or sqlite
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	User            string        `toml:"user"`
	Password        string        `toml:"password"`
	DBName          string        `toml:"dbname"`
	SSLMode         string        `toml:"sslmode"`
	SQLitePath      string        `toml:"sqlite_path"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type TLSConfig struct {
	Enabled      bool   `toml:"enabled"`
	CertPath     string `toml:"cert_path"`
	KeyPath      string `toml:"key_path"`
	RedirectHTTP bool   `toml:"redirect_http"`
}

type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled"`
	ServiceName  string `toml:"service_name"`
	Environment  string `toml:"environment"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	MetricsPort  string `toml:"metrics_port"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// InvalidationConfig controls the cross-instance staleness signal. It only
// applies to the postgres driver.
type InvalidationConfig struct {
	Channel string `toml:"channel"`
	Listen  bool   `toml:"listen"`
}

// ClientConfig is read by the terminal client.
type ClientConfig struct {
	ServerURL string `toml:"server_url"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			Host:            "localhost",
			Port:            5432,
			User:            "todo",
			DBName:          "todoapp",
			SSLMode:         "disable",
			SQLitePath:      "todo.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "todoapp-api",
			Environment:  "development",
			OTLPEndpoint: "localhost:4317",
			MetricsPort:  "9464",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Invalidation: InvalidationConfig{
			Channel: "todo_invalidated",
			Listen:  true,
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
		},
	}
}

func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var err error

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	if hosts := getEnv("ALLOWED_HOSTS", ""); hosts != "" {
		cfg.Server.AllowedHosts = splitList(hosts)
	}
	if cfg.Server.ShutdownTimeout, err = getDurationEnv("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout); err != nil {
		return err
	}

	cfg.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", cfg.Database.Driver))
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	if cfg.Database.Port, err = getIntEnv("DB_PORT", cfg.Database.Port); err != nil {
		return err
	}
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", cfg.Database.SQLitePath)
	if cfg.Database.MaxOpenConns, err = getIntEnv("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns); err != nil {
		return err
	}
	if cfg.Database.MaxIdleConns, err = getIntEnv("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns); err != nil {
		return err
	}
	if cfg.Database.ConnMaxLifetime, err = getDurationEnv("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime); err != nil {
		return err
	}

	cfg.TLS.Enabled = getBoolEnv("TLS_ENABLED", cfg.TLS.Enabled)
	cfg.TLS.CertPath = getEnv("TLS_CERT_PATH", cfg.TLS.CertPath)
	cfg.TLS.KeyPath = getEnv("TLS_KEY_PATH", cfg.TLS.KeyPath)
	cfg.TLS.RedirectHTTP = getBoolEnv("TLS_REDIRECT_HTTP", cfg.TLS.RedirectHTTP)

	cfg.Telemetry.Enabled = getBoolEnv("OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.Environment = getEnv("ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.OTLPEndpoint = getEnv("OTEL_EXPORTER_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.MetricsPort = getEnv("METRICS_PORT", cfg.Telemetry.MetricsPort)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Invalidation.Channel = getEnv("INVALIDATION_CHANNEL", cfg.Invalidation.Channel)
	cfg.Invalidation.Listen = getBoolEnv("INVALIDATION_LISTEN", cfg.Invalidation.Listen)

	cfg.Client.ServerURL = getEnv("TODO_SERVER_URL", cfg.Client.ServerURL)

	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: want %s or %s", c.Database.Driver, DriverPostgres, DriverSQLite)
	}

	if c.TLS.Enabled {
		if c.TLS.CertPath == "" {
			return fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if c.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	if c.Invalidation.Channel == "" {
		return fmt.Errorf("INVALIDATION_CHANNEL must not be empty")
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
