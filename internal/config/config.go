package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultAddress        = ":4001"
	defaultDriver         = "mysql"
	defaultPublicBaseURL  = "http://localhost:4001"
	defaultInvoiceTTL     = 15
	defaultSweepSeconds   = 30
	defaultPayLockSeconds = 10
	defaultEventBuffer    = 64
)

type Config struct {
	Server struct {
		Address       string `yaml:"address"`
		PublicBaseURL string `yaml:"public_base_url"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	Invoices struct {
		CheckoutBaseURL string `yaml:"checkout_base_url"`
		TTLMinutes      int    `yaml:"ttl_minutes"`
		CallbackSecret  string `yaml:"callback_secret"`
		SweepSeconds    int    `yaml:"sweep_seconds"`
	} `yaml:"invoices"`
	Auth struct {
		JWTSigningKey string `yaml:"jwt_signing_key"`
	} `yaml:"auth"`
	PayLockTTLSeconds int `yaml:"pay_lock_ttl_seconds"`
	EventBuffer       int `yaml:"event_buffer"`
}

// LoadConfig reads the optional YAML file named by CONFIG_PATH, applies
// environment overrides and defaults, then validates the result.
func LoadConfig() (Config, error) {
	var cfg Config

	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config data: %w", err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Address = ":" + strings.TrimPrefix(v, ":")
	}
	overrideString(&cfg.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	overrideString(&cfg.Database.Driver, "DB_DRIVER")
	overrideString(&cfg.Database.URL, "DB_URL")
	overrideString(&cfg.Redis.Addr, "REDIS_ADDR")
	overrideString(&cfg.Redis.Password, "REDIS_PASSWORD")
	overrideString(&cfg.Invoices.CheckoutBaseURL, "CHECKOUT_BASE_URL")
	overrideString(&cfg.Invoices.CallbackSecret, "INVOICE_CALLBACK_SECRET")
	overrideString(&cfg.Auth.JWTSigningKey, "JWT_SIGNING_KEY")

	ints := []struct {
		name string
		dst  *int
	}{
		{"INVOICE_TTL_MINUTES", &cfg.Invoices.TTLMinutes},
		{"INVOICE_SWEEP_SECONDS", &cfg.Invoices.SweepSeconds},
		{"PAY_LOCK_TTL_SECONDS", &cfg.PayLockTTLSeconds},
		{"EVENT_BUFFER", &cfg.EventBuffer},
	}
	for _, item := range ints {
		v, err := readIntEnv(item.name)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", item.name, err)
		}
		if v != nil {
			*item.dst = *v
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = defaultPublicBaseURL
	}
	c.Server.PublicBaseURL = strings.TrimRight(c.Server.PublicBaseURL, "/")
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDriver
	}
	if c.Invoices.CheckoutBaseURL == "" {
		c.Invoices.CheckoutBaseURL = c.Server.PublicBaseURL
	}
	if c.Invoices.TTLMinutes == 0 {
		c.Invoices.TTLMinutes = defaultInvoiceTTL
	}
	if c.Invoices.SweepSeconds == 0 {
		c.Invoices.SweepSeconds = defaultSweepSeconds
	}
	if c.PayLockTTLSeconds == 0 {
		c.PayLockTTLSeconds = defaultPayLockSeconds
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = defaultEventBuffer
	}
}

func (c Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.Invoices.CallbackSecret == "" {
		return fmt.Errorf("INVOICE_CALLBACK_SECRET is required")
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	if c.Invoices.TTLMinutes <= 0 {
		return fmt.Errorf("INVOICE_TTL_MINUTES must be positive")
	}
	if c.Invoices.SweepSeconds <= 0 {
		return fmt.Errorf("INVOICE_SWEEP_SECONDS must be positive")
	}
	if c.PayLockTTLSeconds <= 0 {
		return fmt.Errorf("PAY_LOCK_TTL_SECONDS must be positive")
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("EVENT_BUFFER must be positive")
	}
	return nil
}

func (c Config) InvoiceTTL() time.Duration {
	return time.Duration(c.Invoices.TTLMinutes) * time.Minute
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Invoices.SweepSeconds) * time.Second
}

func (c Config) PayLockTTL() time.Duration {
	return time.Duration(c.PayLockTTLSeconds) * time.Second
}

func overrideString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
