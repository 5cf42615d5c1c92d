// Package config loads and validates the daemon's on-disk configuration
// into an immutable snapshot.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SSL holds the daemon's optional TLS material for the HTTP surface.
type SSL struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Cert    string `mapstructure:"cert" json:"cert"`
	Key     string `mapstructure:"key" json:"key"`
}

// API holds the bind address and TLS configuration for the HTTP surface.
type API struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
	SSL  SSL    `mapstructure:"ssl" json:"ssl"`
}

// Auth holds the shared secret used both to authenticate against the
// panel (Bearer token_id.token) and to validate websocket JWTs.
type Auth struct {
	TokenID string `mapstructure:"token_id" json:"token_id"`
	Token   string `mapstructure:"token" json:"token"`
}

// Config is the immutable, process-wide configuration snapshot.
// It is constructed once at startup and shared read-only.
type Config struct {
	Debug     bool   `mapstructure:"debug" json:"debug"`
	UUID      string `mapstructure:"uuid" json:"uuid"`
	DataDir   string `mapstructure:"data_dir" json:"data_dir"`
	API       API    `mapstructure:"api" json:"api"`
	Auth      Auth   `mapstructure:"auth" json:"auth"`
	RemoteURL string `mapstructure:"remote" json:"remote"`
	LogFile   string `mapstructure:"log_file" json:"log_file"`
}

// Flags registers the daemon's command-line flags onto fs, returning the
// path to a config file if one was supplied. Mirrors the pflag+viper
// binding idiom used throughout the example corpus.
func Flags(fs *pflag.FlagSet) *string {
	cfgFile := fs.String("config", "", "path to the daemon config file")
	fs.Bool("debug", false, "enable debug logging")
	fs.String("data-dir", "/var/lib/alerion", "root of the local data directory")
	fs.String("api-host", "0.0.0.0", "HTTP surface bind host")
	fs.Int("api-port", 8080, "HTTP surface bind port")
	return cfgFile
}

// Load builds a Config from an optional config file, environment
// variables (prefix ALERION_), and a best-effort local .env file,
// following the original codebase's viper+pflag+godotenv idiom.
func Load(fs *pflag.FlagSet, cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ALERION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("debug", false)
	v.SetDefault("data_dir", "/var/lib/alerion")
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.ssl.enabled", false)

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if debug := v.GetBool("debug"); debug {
		cfg.Debug = true
	}
	if dataDir := v.GetString("data-dir"); dataDir != "" && cfg.DataDir == "/var/lib/alerion" {
		cfg.DataDir = dataDir
	}
	if fs.Changed("api-host") {
		cfg.API.Host = v.GetString("api-host")
	}
	if fs.Changed("api-port") {
		cfg.API.Port = v.GetInt("api-port")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the fields that are load-bearing for bootstrap: the
// daemon refuses to start rather than run with an ambiguous identity.
func (c *Config) Validate() error {
	if c.UUID == "" {
		return fmt.Errorf("config: uuid is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.RemoteURL == "" {
		return fmt.Errorf("config: remote is required")
	}
	if c.Auth.TokenID == "" || c.Auth.Token == "" {
		return fmt.Errorf("config: auth.token_id and auth.token are required")
	}
	if c.API.SSL.Enabled && (c.API.SSL.Cert == "" || c.API.SSL.Key == "") {
		return fmt.Errorf("config: api.ssl.cert and api.ssl.key are required when ssl is enabled")
	}
	return nil
}
