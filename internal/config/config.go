// Package config loads the application configuration from YAML with
// environment overrides for secrets. Credentials are carried in explicit
// structs handed to constructors; business logic never reads the
// environment directly.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Evolution EvolutionConfig `yaml:"evolution"`
	SerpAPI   SerpAPIConfig   `yaml:"serpapi"`
	Campaign  CampaignConfig  `yaml:"campaign"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
}

// ServerConfig holds dashboard API server settings.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// EvolutionConfig holds Evolution API (WhatsApp gateway) settings.
type EvolutionConfig struct {
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	Instance            string `yaml:"instance"`
	TextTimeoutSeconds  int    `yaml:"text_timeout_seconds"`
	MediaTimeoutSeconds int    `yaml:"media_timeout_seconds"`
}

// TextTimeout returns the sendText timeout as a duration.
func (c EvolutionConfig) TextTimeout() time.Duration {
	return time.Duration(c.TextTimeoutSeconds) * time.Second
}

// MediaTimeout returns the sendMedia timeout as a duration.
func (c EvolutionConfig) MediaTimeout() time.Duration {
	return time.Duration(c.MediaTimeoutSeconds) * time.Second
}

// SerpAPIConfig holds the prospect discovery search settings.
type SerpAPIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Engine         string `yaml:"engine"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c SerpAPIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CampaignConfig holds the eligibility and pacing policy plus the
// discovery target.
type CampaignConfig struct {
	AllowedWeekdays  []string       `yaml:"allowed_weekdays"`
	HourStart        int            `yaml:"hour_start"`
	HourEnd          int            `yaml:"hour_end"`
	CooldownHours    int            `yaml:"cooldown_hours"`
	MaxSequenceStep  int            `yaml:"max_sequence_step"`
	MaxPerCycle      int            `yaml:"max_per_cycle"`
	DelayMinSeconds  int            `yaml:"delay_min_seconds"`
	DelayMaxSeconds  int            `yaml:"delay_max_seconds"`
	Timezone         string         `yaml:"timezone"`
	CountryPrefix    string         `yaml:"country_prefix"`
	LocalPhoneLength int            `yaml:"local_phone_length"`
	DedupeDigits     int            `yaml:"dedupe_digits"`
	TargetCategory   string         `yaml:"target_category"`
	TargetRegion     string         `yaml:"target_region"`
	AttachmentPath   string         `yaml:"attachment_path"`
	AttachmentName   string         `yaml:"attachment_name"`
	Messages         map[int]string `yaml:"messages"`
}

// Cooldown returns the minimum wait between sequence steps.
func (c CampaignConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours) * time.Hour
}

// DelayMin returns the lower bound of the inter-message pause.
func (c CampaignConfig) DelayMin() time.Duration {
	return time.Duration(c.DelayMinSeconds) * time.Second
}

// DelayMax returns the upper bound of the inter-message pause.
func (c CampaignConfig) DelayMax() time.Duration {
	return time.Duration(c.DelayMaxSeconds) * time.Second
}

// StorageConfig holds lead file and S3 mirror settings.
type StorageConfig struct {
	LeadFile     string `yaml:"lead_file"`
	S3Enabled    bool   `yaml:"s3_enabled"`
	S3Bucket     string `yaml:"s3_bucket"`
	S3Prefix     string `yaml:"s3_prefix"`
	S3Region     string `yaml:"s3_region"`
	AWSAccessKey string `yaml:"aws_access_key"`
	AWSSecretKey string `yaml:"aws_secret_key"`
}

// RedisConfig holds the optional cycle-lock backend.
type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	Enabled        bool   `yaml:"enabled"`
	LockTTLMinutes int    `yaml:"lock_ttl_minutes"`
}

// LockTTL returns how long a cycle lock survives a crashed holder.
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// Load reads and parses the configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Evolution.Instance == "" {
		cfg.Evolution.Instance = "Main"
	}
	if cfg.Evolution.TextTimeoutSeconds == 0 {
		cfg.Evolution.TextTimeoutSeconds = 15
	}
	if cfg.Evolution.MediaTimeoutSeconds == 0 {
		cfg.Evolution.MediaTimeoutSeconds = 20
	}
	if cfg.SerpAPI.BaseURL == "" {
		cfg.SerpAPI.BaseURL = "https://serpapi.com"
	}
	if cfg.SerpAPI.Engine == "" {
		cfg.SerpAPI.Engine = "google_maps"
	}
	if cfg.SerpAPI.TimeoutSeconds == 0 {
		cfg.SerpAPI.TimeoutSeconds = 20
	}
	if len(cfg.Campaign.AllowedWeekdays) == 0 {
		cfg.Campaign.AllowedWeekdays = []string{
			"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
		}
	}
	if cfg.Campaign.HourStart == 0 && cfg.Campaign.HourEnd == 0 {
		cfg.Campaign.HourStart = 9
		cfg.Campaign.HourEnd = 19
	}
	if cfg.Campaign.CooldownHours == 0 {
		cfg.Campaign.CooldownHours = 24
	}
	if cfg.Campaign.MaxSequenceStep == 0 {
		cfg.Campaign.MaxSequenceStep = 3
	}
	if cfg.Campaign.MaxPerCycle == 0 {
		cfg.Campaign.MaxPerCycle = 20
	}
	if cfg.Campaign.DelayMinSeconds == 0 {
		cfg.Campaign.DelayMinSeconds = 120
	}
	if cfg.Campaign.DelayMaxSeconds == 0 {
		cfg.Campaign.DelayMaxSeconds = 300
	}
	if cfg.Campaign.Timezone == "" {
		cfg.Campaign.Timezone = "America/Santiago"
	}
	if cfg.Campaign.CountryPrefix == "" {
		cfg.Campaign.CountryPrefix = "56"
	}
	if cfg.Campaign.LocalPhoneLength == 0 {
		cfg.Campaign.LocalPhoneLength = 9
	}
	if cfg.Campaign.DedupeDigits == 0 {
		cfg.Campaign.DedupeDigits = 8
	}
	if cfg.Storage.LeadFile == "" {
		cfg.Storage.LeadFile = "data/leads.csv"
	}
	if cfg.Redis.LockTTLMinutes == 0 {
		cfg.Redis.LockTTLMinutes = 30
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file is read first (if present) so secrets can live there locally
// and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("EVOLUTION_BASE_URL"); v != "" {
		cfg.Evolution.BaseURL = v
	}
	if v := os.Getenv("EVOLUTION_API_KEY"); v != "" {
		cfg.Evolution.APIKey = v
	}
	if v := os.Getenv("EVOLUTION_INSTANCE"); v != "" {
		cfg.Evolution.Instance = v
	}
	if v := os.Getenv("SERPAPI_KEY"); v != "" {
		cfg.SerpAPI.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LEAD_FILE"); v != "" {
		cfg.Storage.LeadFile = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AWSAccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.AWSSecretKey = v
	}

	return cfg, nil
}

// Policy-building helpers live with the engine; weekday parsing is here so
// the YAML names stay a config concern.

// Weekdays converts the configured day names to time.Weekday values.
// Unknown names are reported rather than silently dropped.
func (c CampaignConfig) Weekdays() (map[time.Weekday]bool, error) {
	names := map[string]time.Weekday{
		"Sunday":    time.Sunday,
		"Monday":    time.Monday,
		"Tuesday":   time.Tuesday,
		"Wednesday": time.Wednesday,
		"Thursday":  time.Thursday,
		"Friday":    time.Friday,
		"Saturday":  time.Saturday,
	}
	out := make(map[time.Weekday]bool, len(c.AllowedWeekdays))
	for _, name := range c.AllowedWeekdays {
		d, ok := names[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		out[d] = true
	}
	return out, nil
}
