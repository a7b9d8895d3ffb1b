// Package config loads treemirror settings with viper. Values come from, in
// increasing precedence: built-in defaults, an optional YAML file, TREEMIRROR_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TREEMIRROR_REDIS_ADDR.
const EnvPrefix = "TREEMIRROR"

// Store backend names accepted in Config.Stores.
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreS3       = "s3"
)

var knownStores = []string{StoreFile, StoreRedis, StorePostgres, StoreS3}

// Config is the complete runtime configuration. It is not modified after Load.
type Config struct {
	Owner           string `mapstructure:"owner"`
	Repo            string `mapstructure:"repo"`
	Ref             string `mapstructure:"ref"`
	StartPath       string `mapstructure:"start_path"`
	Target          string `mapstructure:"target"`
	ContainerSuffix string `mapstructure:"container_suffix"`
	APIURL          string `mapstructure:"api_url"`

	Auth AuthConfig `mapstructure:"auth"`

	Output string `mapstructure:"output"`
	Format string `mapstructure:"format"`

	Retries        int           `mapstructure:"retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	IncludeContent bool          `mapstructure:"include_content"`
	Concurrency    int           `mapstructure:"concurrency"`
	// Timeout bounds a whole run; zero means no deadline.
	Timeout time.Duration `mapstructure:"timeout"`
	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	Index IndexConfig `mapstructure:"index"`

	Stores   []string       `mapstructure:"stores"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	S3       S3Config       `mapstructure:"s3"`

	Server    ServerConfig    `mapstructure:"server"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AuthConfig selects GitHub authentication. See platform/github.Auth.
type AuthConfig struct {
	Token          string `mapstructure:"token"`
	Header         string `mapstructure:"header"`
	AppID          int64  `mapstructure:"app_id"`
	InstallationID int64  `mapstructure:"installation_id"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
}

// IndexConfig enables the bundle index when Output is set.
type IndexConfig struct {
	Suffix string `mapstructure:"suffix"`
	Output string `mapstructure:"output"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// TemporalConfig routes runs through Temporal when HostPort is set.
type TemporalConfig struct {
	HostPort  string `mapstructure:"hostport"`
	Namespace string `mapstructure:"namespace"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// New returns a viper instance carrying the defaults and the environment
// bindings. Callers bind their flags to it and then call Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The usual GitHub variable works as well.
	_ = v.BindEnv("auth.token", EnvPrefix+"_AUTH_TOKEN", "GITHUB_TOKEN")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("owner", "pyrevitlabs")
	v.SetDefault("repo", "pyRevit")
	v.SetDefault("ref", "develop")
	v.SetDefault("start_path", "extensions")
	v.SetDefault("target", "pyRevit.tab")
	v.SetDefault("container_suffix", ".extension")
	v.SetDefault("api_url", "https://api.github.com")

	v.SetDefault("auth.token", "")
	v.SetDefault("auth.header", "")
	v.SetDefault("auth.app_id", 0)
	v.SetDefault("auth.installation_id", 0)
	v.SetDefault("auth.private_key_path", "")

	v.SetDefault("output", "pyrevit_tab_explorer.json")
	v.SetDefault("format", "json")

	v.SetDefault("retries", 3)
	v.SetDefault("retry_delay", 2*time.Second)
	v.SetDefault("include_content", true)
	v.SetDefault("concurrency", 1)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("request_timeout", 30*time.Second)

	v.SetDefault("index.suffix", ".pushbutton")
	v.SetDefault("index.output", "")

	v.SetDefault("stores", []string{StoreFile})
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Duration(0))
	v.SetDefault("postgres.url", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.prefix", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("temporal.hostport", "")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("telemetry.enabled", false)
}

// Load reads configFile when non-empty, decodes v and validates the result.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	for _, f := range []struct{ name, val string }{
		{"owner", c.Owner}, {"repo", c.Repo}, {"target", c.Target},
	} {
		if strings.TrimSpace(f.val) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", f.name))
		}
	}
	if c.Retries < 1 {
		errs = append(errs, fmt.Errorf("retries must be at least 1, got %d", c.Retries))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.Timeout < 0 || c.RequestTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Format != "json" && c.Format != "yaml" {
		errs = append(errs, fmt.Errorf("format must be json or yaml, got %q", c.Format))
	}
	if len(c.Stores) == 0 {
		errs = append(errs, errors.New("at least one store is required"))
	}
	for _, s := range c.Stores {
		if !slices.Contains(knownStores, s) {
			errs = append(errs, fmt.Errorf("unknown store %q (want one of %s)", s, strings.Join(knownStores, ", ")))
		}
	}
	if c.Uses(StoreFile) && c.Output == "" {
		errs = append(errs, errors.New("output is required for the file store"))
	}
	if c.Uses(StoreRedis) && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for the redis store"))
	}
	if c.Uses(StorePostgres) && c.Postgres.URL == "" {
		errs = append(errs, errors.New("postgres.url is required for the postgres store"))
	}
	if c.Uses(StoreS3) && c.S3.Bucket == "" {
		errs = append(errs, errors.New("s3.bucket is required for the s3 store"))
	}
	if c.Auth.AppID != 0 && (c.Auth.InstallationID == 0 || c.Auth.PrivateKeyPath == "") {
		errs = append(errs, errors.New("auth.app_id requires auth.installation_id and auth.private_key_path"))
	}
	return errors.Join(errs...)
}

// Uses reports whether the named store backend is enabled.
func (c *Config) Uses(store string) bool {
	return slices.Contains(c.Stores, store)
}
