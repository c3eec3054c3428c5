package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// MetaConfig holds WhatsApp Cloud API credentials.
type MetaConfig struct {
	AccessToken   string `yaml:"access_token" envconfig:"META_ACCESS_TOKEN"`
	PhoneNumberID string `yaml:"phone_number_id" envconfig:"META_PHONE_NUMBER_ID"`
	VerifyToken   string `yaml:"verify_token" envconfig:"WHATSAPP_VERIFY_TOKEN"`
}

// TwilioConfig holds Twilio credentials for the form-encoded variant.
type TwilioConfig struct {
	AccountSID   string `yaml:"account_sid" envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken    string `yaml:"auth_token" envconfig:"TWILIO_AUTH_TOKEN"`
	WhatsAppFrom string `yaml:"whatsapp_from" envconfig:"TWILIO_WHATSAPP_FROM"`
}

// ChargersConfig holds charger lookup settings.
type ChargersConfig struct {
	OpenChargeMapKey string `yaml:"openchargemap_key" envconfig:"OPENCHARGEMAP_API_KEY"`
	CountryCode      string `yaml:"country_code" envconfig:"CHARGERS_COUNTRY_CODE"`
	MaxResults       int    `yaml:"max_results" envconfig:"CHARGERS_MAX_RESULTS"`
}

// DatabaseConfig holds PostgreSQL connection settings. When
// InstanceConnectionName is set the connection goes through the Cloud SQL
// Unix socket; otherwise it targets local TCP.
type DatabaseConfig struct {
	User                   string `yaml:"user" envconfig:"DB_USER"`
	Password               string `yaml:"password" envconfig:"DB_PASS"`
	Name                   string `yaml:"name" envconfig:"DB_NAME"`
	InstanceConnectionName string `yaml:"instance_connection_name" envconfig:"INSTANCE_CONNECTION_NAME"`
}

// DSN builds the postgres connection string for the configured target.
func (d DatabaseConfig) DSN() string {
	if d.InstanceConnectionName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			d.InstanceConnectionName, d.User, d.Password, d.Name)
	}
	return fmt.Sprintf("host=localhost user=%s password=%s dbname=%s port=5432 sslmode=disable",
		d.User, d.Password, d.Name)
}

// SessionConfig holds conversation session settings.
type SessionConfig struct {
	TimeoutMinutes  int `yaml:"timeout_minutes" envconfig:"SESSION_TIMEOUT_MINUTES"`
	EvictAfterHours int `yaml:"evict_after_hours" envconfig:"SESSION_EVICT_AFTER_HOURS"`
}

// Config aggregates all runtime configuration.
type Config struct {
	Port               string         `yaml:"port" envconfig:"PORT"`
	Environment        string         `yaml:"environment" envconfig:"ENVIRONMENT"`
	UseMemoryStore     bool           `yaml:"use_memory_store" envconfig:"USE_MEMORY_STORE"`
	DisableWebhookAuth bool           `yaml:"disable_webhook_auth" envconfig:"DISABLE_WEBHOOK_VALIDATION"`
	HTTPTimeoutSeconds int            `yaml:"http_timeout_seconds" envconfig:"HTTP_TIMEOUT_SECONDS"`
	Meta               MetaConfig     `yaml:"meta"`
	Twilio             TwilioConfig   `yaml:"twilio"`
	Chargers           ChargersConfig `yaml:"chargers"`
	Database           DatabaseConfig `yaml:"database"`
	Session            SessionConfig  `yaml:"session"`
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables always win over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	Normalize(&cfg)
	return &cfg, nil
}

// Normalize applies defaults for unset fields.
func Normalize(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "9000"
	}
	if cfg.Chargers.CountryCode == "" {
		cfg.Chargers.CountryCode = "GB"
	}
	if cfg.Chargers.MaxResults <= 0 {
		cfg.Chargers.MaxResults = 5
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "evassistant"
	}
	if cfg.Session.TimeoutMinutes <= 0 {
		cfg.Session.TimeoutMinutes = 10
	}
	if cfg.Session.EvictAfterHours <= 0 {
		cfg.Session.EvictAfterHours = 24
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		cfg.HTTPTimeoutSeconds = 10
	}
}

// SessionTimeout returns the inactivity window after which a session resets.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

// EvictAfter returns the idle horizon after which sessions are dropped entirely.
func (c *Config) EvictAfter() time.Duration {
	return time.Duration(c.Session.EvictAfterHours) * time.Hour
}

// HTTPTimeout returns the timeout applied to outbound provider calls.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
