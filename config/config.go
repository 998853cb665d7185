// ABOUTME: Service configuration loaded from config.yaml, .env and KOMMO_* environment variables
// ABOUTME: Applies defaults for data paths, pacing interval and session lifetime
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName names the XDG data and config directories.
	AppName = "kommo"

	EnvPrefix = "KOMMO"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the configuration for the service.
type Config struct {
	Server struct {
		Addr        string `mapstructure:"addr"`
		FrontendURL string `mapstructure:"frontend_url"`
	} `mapstructure:"server"`
	Database struct {
		Driver string `mapstructure:"driver"`
		Path   string `mapstructure:"path"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Google struct {
		ClientID     string        `mapstructure:"client_id"`
		ClientSecret string        `mapstructure:"client_secret"`
		RedirectURL  string        `mapstructure:"redirect_url"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"google"`
	Sync struct {
		// Interval spaces consecutive CRM-bound contacts. Zero disables pacing.
		Interval        time.Duration `mapstructure:"interval"`
		ContactCacheDir string        `mapstructure:"contact_cache_dir"`
		// Denylist replaces the built-in emergency numbers when non-empty.
		Denylist    []string `mapstructure:"denylist"`
		CountryCode string   `mapstructure:"country_code"`
	} `mapstructure:"sync"`
	Session struct {
		// TTL bounds how long a principal's live clients are cached.
		TTL time.Duration `mapstructure:"ttl"`
		// TokenTTL is the lifetime of a bearer token issued at login.
		TokenTTL time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"session"`
	CRM struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"crm"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// DataDir returns the XDG data directory for the service.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.frontend_url", "http://localhost:5173")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", filepath.Join(DataDir(), "kommo.db"))
	v.SetDefault("database.dsn", "")
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_url", "http://localhost:3000/api/contact-source/callback")
	v.SetDefault("google.timeout", 15*time.Second)
	v.SetDefault("sync.interval", 2*time.Minute)
	v.SetDefault("sync.contact_cache_dir", filepath.Join(DataDir(), "contacts"))
	v.SetDefault("sync.denylist", []string{})
	v.SetDefault("sync.country_code", "54")
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.token_ttl", 7*24*time.Hour)
	v.SetDefault("crm.timeout", 15*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration. envFile, when non-empty, is loaded into the
// process environment first; a missing default .env is not an error.
// configFile, when non-empty, replaces the config.yaml search.
func Load(envFile, configFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// The Google client is conventionally configured with the plain
	// GOOGLE_* variables used by Google's own tooling.
	if cfg.Google.ClientID == "" {
		cfg.Google.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if cfg.Google.ClientSecret == "" {
		cfg.Google.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}

	cfg.Server.FrontendURL = strings.TrimRight(strings.TrimSpace(cfg.Server.FrontendURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Sync.Interval < 0 {
		return errors.New("sync.interval must not be negative")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if c.Session.TokenTTL <= 0 {
		return errors.New("session.token_ttl must be positive")
	}
	return nil
}
