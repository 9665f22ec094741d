// Package config loads scraper settings from defaults, an optional YAML
// file and QUOTEFANCY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GeorgiosLymperis/quotefancy/internal/scraper"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. QUOTEFANCY_PAGE_CAP.
const EnvPrefix = "QUOTEFANCY"

// Config holds every tunable of a scrape run.
type Config struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language"`

	PageCap        int           `mapstructure:"page_cap"`
	InterPageDelay time.Duration `mapstructure:"inter_page_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Workers        int           `mapstructure:"workers"`

	Retry struct {
		Attempts int           `mapstructure:"attempts"`
		Wait     time.Duration `mapstructure:"wait"`
		MaxWait  time.Duration `mapstructure:"max_wait"`
	} `mapstructure:"retry"`

	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	CloudflareBypass  bool    `mapstructure:"cloudflare_bypass"`

	// Database, when set, is the SQLite file finished runs are saved to.
	Database string `mapstructure:"database"`
}

func setDefaults(v *viper.Viper) {
	client := scraper.DefaultClientOptions()
	opts := scraper.DefaultOptions()

	v.SetDefault("base_url", scraper.DefaultBaseURL)
	v.SetDefault("user_agent", client.UserAgent)
	v.SetDefault("accept_language", client.AcceptLanguage)
	v.SetDefault("page_cap", opts.PageCap)
	v.SetDefault("inter_page_delay", opts.InterPageDelay)
	v.SetDefault("request_timeout", client.Timeout)
	v.SetDefault("workers", opts.Workers)
	v.SetDefault("retry.attempts", client.Attempts)
	v.SetDefault("retry.wait", client.RetryWait)
	v.SetDefault("retry.max_wait", client.RetryMaxWait)
	v.SetDefault("requests_per_second", 0.0)
	v.SetDefault("cloudflare_bypass", false)
	v.SetDefault("database", "")
}

// New returns a viper instance with defaults and environment bindings but
// no file loaded.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, or quotefancy.yaml from the working directory when path
// is empty. A missing default file is not an error; a missing explicit one is.
func Load(path string) (Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("quotefancy")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		slog.Debug("Config file not found, using defaults")
	} else {
		slog.Debug("Loaded config file", "path", v.ConfigFileUsed())
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects malformed settings before a run starts.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, errors.New("base_url must not be empty"))
	}
	if c.PageCap < 1 {
		errs = append(errs, fmt.Errorf("page_cap must be positive, got %d", c.PageCap))
	}
	if c.InterPageDelay < 0 {
		errs = append(errs, fmt.Errorf("inter_page_delay must not be negative, got %s", c.InterPageDelay))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry.attempts must be positive, got %d", c.Retry.Attempts))
	}
	if c.Retry.Wait < 0 {
		errs = append(errs, fmt.Errorf("retry.wait must not be negative, got %s", c.Retry.Wait))
	}
	if c.Retry.MaxWait < 0 {
		errs = append(errs, fmt.Errorf("retry.max_wait must not be negative, got %s", c.Retry.MaxWait))
	}
	if c.Retry.Wait > c.Retry.MaxWait {
		errs = append(errs, fmt.Errorf("retry.wait %s exceeds retry.max_wait %s", c.Retry.Wait, c.Retry.MaxWait))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must not be negative, got %g", c.RequestsPerSecond))
	}
	return errors.Join(errs...)
}

// ClientOptions maps the config onto the transport session.
func (c Config) ClientOptions() scraper.ClientOptions {
	return scraper.ClientOptions{
		UserAgent:         c.UserAgent,
		AcceptLanguage:    c.AcceptLanguage,
		Timeout:           c.RequestTimeout,
		Attempts:          c.Retry.Attempts,
		RetryWait:         c.Retry.Wait,
		RetryMaxWait:      c.Retry.MaxWait,
		RequestsPerSecond: c.RequestsPerSecond,
		CloudflareBypass:  c.CloudflareBypass,
	}
}

// ControllerOptions maps the config onto the pagination controller.
func (c Config) ControllerOptions() scraper.Options {
	return scraper.Options{
		PageCap:        c.PageCap,
		InterPageDelay: c.InterPageDelay,
		Workers:        c.Workers,
	}
}

// NewController wires a client, fetcher and controller from the config.
func (c Config) NewController() (*scraper.Controller, error) {
	fetcher := scraper.NewPageFetcher(scraper.NewClient(c.ClientOptions()))
	fetcher.BaseURL = c.BaseURL
	return scraper.NewController(fetcher, c.ControllerOptions())
}
