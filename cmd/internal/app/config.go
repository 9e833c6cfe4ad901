package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Endpoint store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config contains all runtime configuration.
//
// Values come from MEZON_* environment variables (a .env file is loaded first
// when present). When MEZON_CONFIG_FILE names a YAML file, keys set there
// override the environment; ${VAR} references inside the file are expanded.
type Config struct {
	ConfigFile string `env:"MEZON_CONFIG_FILE" yaml:"-"`

	// Environment defaults for the gateway address.
	Host   string `env:"MEZON_HOST" envDefault:"gw.mezon.ai" yaml:"host"`
	Port   string `env:"MEZON_PORT" envDefault:"443" yaml:"port"`
	Key    string `env:"MEZON_SERVER_KEY" envDefault:"defaultkey" yaml:"server_key"`
	UseSSL bool   `env:"MEZON_SSL" envDefault:"true" yaml:"ssl"`

	Platform string `env:"MEZON_PLATFORM" envDefault:"desktop" yaml:"platform"`

	EndpointStore string `env:"MEZON_ENDPOINT_STORE" envDefault:"file" yaml:"endpoint_store"`
	EndpointFile  string `env:"MEZON_ENDPOINT_FILE" yaml:"endpoint_file"`
	SQLitePath    string `env:"MEZON_SQLITE_PATH" yaml:"sqlite_path"`
	RedisURL      string `env:"MEZON_REDIS_URL" yaml:"redis_url"`
	DatabaseURL   string `env:"MEZON_DATABASE_URL" yaml:"database_url"`
	DBSchema      string `env:"MEZON_DB_SCHEMA" envDefault:"mezon" yaml:"db_schema"`
	DBMaxConns    int32  `env:"MEZON_DB_MAX_CONNS" envDefault:"4" yaml:"db_max_conns"`
	DBMinConns    int32  `env:"MEZON_DB_MIN_CONNS" envDefault:"0" yaml:"db_min_conns"`

	SessionFile        string `env:"MEZON_SESSION_FILE" yaml:"session_file"`
	RequireSealedVault bool   `env:"MEZON_REQUIRE_SEALED_VAULT" envDefault:"false" yaml:"require_sealed_vault"`

	ZKEndpoint      string        `env:"MEZON_ZK_URL" yaml:"zk_url"`
	ZKTimeout       time.Duration `env:"MEZON_ZK_TIMEOUT" envDefault:"30s" yaml:"zk_timeout"`
	LedgerEndpoint  string        `env:"MEZON_LEDGER_URL" yaml:"ledger_url"`
	LedgerTimeout   time.Duration `env:"MEZON_LEDGER_TIMEOUT" envDefault:"30s" yaml:"ledger_timeout"`
	IndexerEndpoint string        `env:"MEZON_INDEXER_URL" yaml:"indexer_url"`
	IndexerTimeout  time.Duration `env:"MEZON_INDEXER_TIMEOUT" envDefault:"10s" yaml:"indexer_timeout"`
	APITimeout      time.Duration `env:"MEZON_API_TIMEOUT" envDefault:"20s" yaml:"api_timeout"`

	HeartbeatInterval time.Duration `env:"MEZON_HEARTBEAT_INTERVAL" envDefault:"25s" yaml:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `env:"MEZON_HEARTBEAT_TIMEOUT" envDefault:"5s" yaml:"heartbeat_timeout"`
	HandshakeTimeout  time.Duration `env:"MEZON_HANDSHAKE_TIMEOUT" envDefault:"10s" yaml:"handshake_timeout"`

	AutoReconnect bool          `env:"MEZON_AUTO_RECONNECT" envDefault:"true" yaml:"auto_reconnect"`
	MaxAttempts   int           `env:"MEZON_RECONNECT_MAX_ATTEMPTS" envDefault:"15" yaml:"reconnect_max_attempts"`
	// ProbeAddr is the host:port dialed to decide whether the device is online.
	// It must not be the gateway address. Empty leaves the device always online.
	ProbeAddr     string        `env:"MEZON_NETWORK_PROBE_ADDR" yaml:"network_probe_addr"`
	ProbeInterval time.Duration `env:"MEZON_NETWORK_PROBE_INTERVAL" envDefault:"5s" yaml:"network_probe_interval"`

	// OpsAddr serves /healthz, /readyz and /metrics. Empty disables it.
	OpsAddr string `env:"MEZON_OPS_ADDR" envDefault:"127.0.0.1:9464" yaml:"ops_addr"`

	LogLevel  string `env:"MEZON_LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	LogFormat string `env:"MEZON_LOG_FORMAT" envDefault:"json" yaml:"log_format"`

	OTelEndpoint string `env:"MEZON_OTEL_ENDPOINT" yaml:"otel_endpoint"`
}

// LoadConfig loads .env, the environment and the optional YAML overlay, then
// fills derived paths and validates the result.
func LoadConfig() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ConfigFile != "" {
		if err := cfg.overlayFile(cfg.ConfigFile); err != nil {
			return Config{}, err
		}
	}

	cfg.fillPaths(defaultDataDir())
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c *Config) fillPaths(dataDir string) {
	if c.EndpointFile == "" {
		c.EndpointFile = filepath.Join(dataDir, "endpoint.json")
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(dataDir, "mezon.db")
	}
	if c.SessionFile == "" {
		c.SessionFile = filepath.Join(dataDir, "session.json")
	}
}

// Validate checks the settings that have no usable fallback.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("host is required")
	}
	if strings.TrimSpace(c.Key) == "" {
		return errors.New("server_key is required")
	}

	switch c.EndpointStore {
	case StoreMemory, StoreFile, StoreSQLite:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("redis_url is required for the redis endpoint store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required for the postgres endpoint store")
		}
	default:
		return fmt.Errorf("unknown endpoint_store %q", c.EndpointStore)
	}

	switch c.LogFormat {
	case "json", "pretty":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	if c.MaxAttempts <= 0 {
		return errors.New("reconnect_max_attempts must be positive")
	}
	if c.ProbeAddr != "" {
		host, port, err := net.SplitHostPort(c.ProbeAddr)
		if err != nil || host == "" || port == "" {
			return fmt.Errorf("network_probe_addr %q must be host:port", c.ProbeAddr)
		}
		if strings.EqualFold(host, c.Host) && port == c.Port {
			return errors.New("network_probe_addr must not be the gateway address")
		}
	}
	if c.HeartbeatTimeout >= c.HeartbeatInterval {
		return errors.New("heartbeat_timeout must be shorter than heartbeat_interval")
	}
	return nil
}

// defaultDataDir is $XDG_DATA_HOME/mezon, falling back to ~/.local/share/mezon.
func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "mezon")
}

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }
