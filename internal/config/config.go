package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MarketLens/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Backend struct {
		BaseURL        string        `yaml:"base_url"`
		WSURL          string        `yaml:"ws_url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		RateLimit      float64       `yaml:"rate_limit"`
		Proxy          string        `yaml:"proxy"`
	} `yaml:"backend"`
	QuoteCurrency  string `yaml:"quote_currency"`
	BucketTimezone string `yaml:"bucket_timezone"`
	Charts         struct {
		DefaultSymbol   string         `yaml:"default_symbol"`
		DefaultInterval model.Interval `yaml:"default_interval"`
		NewSymbol       string         `yaml:"new_symbol"`
		NewInterval     model.Interval `yaml:"new_interval"`
		BarCount        int            `yaml:"bar_count"`
	} `yaml:"charts"`
	Schedule struct {
		BarRefresh      string `yaml:"bar_refresh"`
		HoldingsRefresh string `yaml:"holdings_refresh"`
	} `yaml:"schedule"`
	Account struct {
		MockTrade bool   `yaml:"mock_trade"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"account"`
	Aggregator struct {
		OpenNewBuckets  bool `yaml:"open_new_buckets"`
		RejectLateTicks bool `yaml:"reject_late_ticks"`
	} `yaml:"aggregator"`
	Report struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"report"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, loads .env if present, then applies
// environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("BACKEND_WS_URL"); v != "" {
		c.Backend.WSURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Backend.Proxy = v
	}
	if v := os.Getenv("UPBIT_ACCESS_KEY"); v != "" {
		c.Account.AccessKey = v
	}
	if v := os.Getenv("UPBIT_SECRET_KEY"); v != "" {
		c.Account.SecretKey = v
	}
	if v := os.Getenv("MOCK_TRADE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse MOCK_TRADE: %w", err)
		}
		c.Account.MockTrade = b
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://127.0.0.1:8000"
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.WSURL == "" {
		c.Backend.WSURL = deriveWSURL(c.Backend.BaseURL)
	}
	if c.Backend.RequestTimeout == 0 {
		c.Backend.RequestTimeout = 5 * time.Second
	}
	if c.Backend.RateLimit == 0 {
		c.Backend.RateLimit = 8
	}
	if c.QuoteCurrency == "" {
		c.QuoteCurrency = "KRW"
	}
	c.QuoteCurrency = strings.ToUpper(c.QuoteCurrency)
	if c.BucketTimezone == "" {
		c.BucketTimezone = "UTC"
	}
	if c.Charts.DefaultSymbol == "" {
		c.Charts.DefaultSymbol = c.QuoteCurrency + "-BTC"
	}
	if c.Charts.DefaultInterval == "" {
		c.Charts.DefaultInterval = model.Minute60
	}
	if c.Charts.NewSymbol == "" {
		c.Charts.NewSymbol = c.QuoteCurrency + "-ETH"
	}
	if c.Charts.NewInterval == "" {
		c.Charts.NewInterval = model.Minute60
	}
	if c.Charts.BarCount == 0 {
		c.Charts.BarCount = 200
	}
	if c.Schedule.BarRefresh == "" {
		c.Schedule.BarRefresh = "@every 1m"
	}
	if c.Schedule.HoldingsRefresh == "" {
		c.Schedule.HoldingsRefresh = "@every 10s"
	}
	if c.Report.Interval == 0 {
		c.Report.Interval = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// deriveWSURL maps http(s)://host to ws(s)://host/ws.
func deriveWSURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// Location returns the bucket time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BucketTimezone)
	if err != nil {
		return nil, fmt.Errorf("bucket_timezone %q: %w", c.BucketTimezone, err)
	}
	return loc, nil
}

// HasAccount reports whether the config carries enough to configure the account at start.
func (c *Config) HasAccount() bool {
	return c.Account.MockTrade || (c.Account.AccessKey != "" && c.Account.SecretKey != "")
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	var errs []error
	if _, err := url.ParseRequestURI(c.Backend.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("backend.base_url: %w", err))
	}
	if c.Backend.WSURL == "" {
		errs = append(errs, errors.New("backend.ws_url is required"))
	}
	if c.Backend.RequestTimeout <= 0 {
		errs = append(errs, errors.New("backend.request_timeout must be positive"))
	}
	if c.Backend.RateLimit < 0 {
		errs = append(errs, errors.New("backend.rate_limit must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	for name, iv := range map[string]model.Interval{
		"charts.default_interval": c.Charts.DefaultInterval,
		"charts.new_interval":     c.Charts.NewInterval,
	} {
		if !iv.Valid() {
			errs = append(errs, fmt.Errorf("%s %q is not one of %v", name, iv, model.Intervals))
		}
	}
	if c.Charts.BarCount < 1 || c.Charts.BarCount > 200 {
		errs = append(errs, errors.New("charts.bar_count must be between 1 and 200"))
	}
	if c.Report.Interval < 0 {
		errs = append(errs, errors.New("report.interval must not be negative"))
	}
	if !c.Account.MockTrade && (c.Account.AccessKey == "") != (c.Account.SecretKey == "") {
		errs = append(errs, errors.New("account.access_key and account.secret_key must be set together"))
	}
	return errors.Join(errs...)
}
