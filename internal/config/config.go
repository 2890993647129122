package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "INTERVIEW_NOTIFIER_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	mailerKeyEnv    = "MAILER_API_KEY"
	mailerURLEnv    = "MAILER_ENDPOINT"
	mailerFromEnv   = "MAILER_FROM"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Mailer   MailerConfig   `yaml:"mailer"`
	Parsing  ParsingConfig  `yaml:"parsing"`
	Links    LinksConfig    `yaml:"links"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// MailerConfig wires the outbound email API.
type MailerConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	APIKey       string  `yaml:"apiKey"`
	From         string  `yaml:"from"`
	RateLimitRPS float64 `yaml:"rateLimitRps"`
}

// ParsingConfig controls added-on timestamp interpretation.
type ParsingConfig struct {
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the parsing timezone string to a time.Location.
func (p ParsingConfig) Location() *time.Location {
	if p.location != nil {
		return p.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LinksConfig carries the scheduling-link domain allow-list.
type LinksConfig struct {
	AllowedDomains []string `yaml:"allowedDomains"`
}

// LoggingConfig selects console verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. A .env file next to the binary is honored for secrets.
func Load(path string) Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate reports the first missing required setting. Startup must abort
// on a non-nil result before any row is processed.
func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required (set DATABASE_DSN)")
	}
	if c.Mailer.APIKey == "" {
		return fmt.Errorf("mailer api key is required (set MAILER_API_KEY)")
	}
	if c.Mailer.Endpoint == "" {
		return fmt.Errorf("mailer endpoint is required")
	}
	if c.Mailer.From == "" {
		return fmt.Errorf("mailer from address is required (set MAILER_FROM)")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(mailerKeyEnv); v != "" {
		c.Mailer.APIKey = v
	}

	if v := os.Getenv(mailerURLEnv); v != "" {
		c.Mailer.Endpoint = v
	}

	if v := os.Getenv(mailerFromEnv); v != "" {
		c.Mailer.From = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Parsing.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Parsing.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Mailer.Endpoint != "" {
		base.Mailer.Endpoint = override.Mailer.Endpoint
	}
	if override.Mailer.APIKey != "" {
		base.Mailer.APIKey = override.Mailer.APIKey
	}
	if override.Mailer.From != "" {
		base.Mailer.From = override.Mailer.From
	}
	if override.Mailer.RateLimitRPS > 0 {
		base.Mailer.RateLimitRPS = override.Mailer.RateLimitRPS
	}

	if override.Parsing.Timezone != "" {
		base.Parsing.Timezone = override.Parsing.Timezone
	}

	if len(override.Links.AllowedDomains) > 0 {
		base.Links.AllowedDomains = override.Links.AllowedDomains
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{DSN: ""},
		Mailer: MailerConfig{
			Endpoint:     "https://api.resend.com/emails",
			From:         "",
			RateLimitRPS: 2,
		},
		Parsing: ParsingConfig{Timezone: defaultTimezone, location: tz},
		Links: LinksConfig{
			AllowedDomains: []string{"calendly.com", "cal.com", "forms.gle"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
