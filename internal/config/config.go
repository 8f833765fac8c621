package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. VIBESCORE_DB_PATH.
const EnvPrefix = "VIBESCORE"

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" envconfig:"DB"`
	Schedule  ScheduleConfig  `yaml:"schedule" envconfig:"SCHEDULE"`
	Ranking   RankingConfig   `yaml:"ranking" envconfig:"RANKING"`
	Spotlight SpotlightConfig `yaml:"spotlight" envconfig:"SPOTLIGHT"`
	Featured  FeaturedConfig  `yaml:"featured" envconfig:"FEATURED"`
	Notify    NotifyConfig    `yaml:"notify" envconfig:"NOTIFY"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Log       LogConfig       `yaml:"log" envconfig:"LOG"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// ScheduleConfig configures how often each pass runs.
type ScheduleConfig struct {
	RankingInterval     string `yaml:"ranking_interval" split_words:"true"`
	AchievementInterval string `yaml:"achievement_interval" split_words:"true"`
	SpotlightInterval   string `yaml:"spotlight_interval" split_words:"true"`
	FeaturedInterval    string `yaml:"featured_interval" split_words:"true"`
	EditorPickInterval  string `yaml:"editor_pick_interval" split_words:"true"`
}

func parseInterval(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ParseRankingInterval returns the ranking interval as time.Duration.
func (s ScheduleConfig) ParseRankingInterval() time.Duration {
	return parseInterval(s.RankingInterval, time.Hour)
}

// ParseAchievementInterval returns the achievement sweep interval.
func (s ScheduleConfig) ParseAchievementInterval() time.Duration {
	return parseInterval(s.AchievementInterval, 6*time.Hour)
}

// ParseSpotlightInterval returns how often the active spotlight is checked.
func (s ScheduleConfig) ParseSpotlightInterval() time.Duration {
	return parseInterval(s.SpotlightInterval, time.Hour)
}

// ParseFeaturedInterval returns the featured suggestion interval.
func (s ScheduleConfig) ParseFeaturedInterval() time.Duration {
	return parseInterval(s.FeaturedInterval, 6*time.Hour)
}

// ParseEditorPickInterval returns the editor feed poll interval.
func (s ScheduleConfig) ParseEditorPickInterval() time.Duration {
	return parseInterval(s.EditorPickInterval, 30*time.Minute)
}

// RankingConfig tunes the ranking pass.
type RankingConfig struct {
	Workers            int     `yaml:"workers" validate:"gte=1,lte=64"`
	MomentumDays       int     `yaml:"momentum_days" split_words:"true" validate:"gte=1"`
	ViralLikeThreshold int     `yaml:"viral_like_threshold" split_words:"true" validate:"gte=1"`
	DecayGraceDays     int     `yaml:"decay_grace_days" split_words:"true" validate:"gte=0"`
	DecayPeriodDays    int     `yaml:"decay_period_days" split_words:"true" validate:"gte=1"`
	DecayFactor        float64 `yaml:"decay_factor" split_words:"true" validate:"gt=0,lte=1"`
}

// SpotlightConfig tunes spotlight selection.
type SpotlightConfig struct {
	DurationDays  int    `yaml:"duration_days" split_words:"true" validate:"gte=1"`
	CooldownDays  int    `yaml:"cooldown_days" split_words:"true" validate:"gte=0"`
	ActivityDays  int    `yaml:"activity_days" split_words:"true" validate:"gte=1"`
	TopLists      int    `yaml:"top_lists" split_words:"true" validate:"gte=1,lte=20"`
	EditorFeedURL string `yaml:"editor_feed_url" split_words:"true" validate:"omitempty,url"`
}

// FeaturedConfig tunes featured suggestions.
type FeaturedConfig struct {
	CandidateCap  int     `yaml:"candidate_cap" split_words:"true" validate:"gte=1"`
	TopN          int     `yaml:"top_n" split_words:"true" validate:"gte=1,lte=50"`
	RefeatureDays int     `yaml:"refeature_days" split_words:"true" validate:"gte=0"`
	RotationDays  int     `yaml:"rotation_days" split_words:"true" validate:"gte=1"`
	ImpactDays    int     `yaml:"impact_days" split_words:"true" validate:"gte=1"`
	RotationBound float64 `yaml:"rotation_bound" split_words:"true" validate:"gte=0,lte=1"`
}

// NotifyConfig configures event delivery.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack" envconfig:"SLACK"`
	Webhook WebhookConfig `yaml:"webhook" envconfig:"WEBHOOK"`
	NATS    NATSConfig    `yaml:"nats" envconfig:"NATS"`

	FailureThreshold uint32 `yaml:"failure_threshold" split_words:"true"`
	OpenTimeout      string `yaml:"open_timeout" split_words:"true"`
}

// ParseOpenTimeout returns how long a tripped notifier stays open.
func (n NotifyConfig) ParseOpenTimeout() time.Duration {
	return parseInterval(n.OpenTimeout, 30*time.Second)
}

// SlackConfig for Slack webhook notifications.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url" split_words:"true" validate:"required_if=Enabled true"`
}

// WebhookConfig for generic signed webhooks.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true"`
	Secret  string `yaml:"secret"`
}

// NATSConfig for publishing events to NATS subjects.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url" validate:"required_if=Enabled true"`
	SubjectPrefix string `yaml:"subject_prefix" split_words:"true"`
}

// RedisConfig configures the distributed run lock. An empty Addr falls
// back to an in-process lock.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	LockTTL  string `yaml:"lock_ttl" split_words:"true"`
}

// ParseLockTTL returns the lock expiry.
func (r RedisConfig) ParseLockTTL() time.Duration {
	return parseInterval(r.LockTTL, 15*time.Minute)
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./vibescore.db"},
		Schedule: ScheduleConfig{
			RankingInterval:     "1h",
			AchievementInterval: "6h",
			SpotlightInterval:   "1h",
			FeaturedInterval:    "6h",
			EditorPickInterval:  "30m",
		},
		Ranking: RankingConfig{
			Workers:            8,
			MomentumDays:       30,
			ViralLikeThreshold: 50,
			DecayGraceDays:     60,
			DecayPeriodDays:    30,
			DecayFactor:        0.85,
		},
		Spotlight: SpotlightConfig{
			DurationDays: 7,
			CooldownDays: 60,
			ActivityDays: 7,
			TopLists:     3,
		},
		Featured: FeaturedConfig{
			CandidateCap:  200,
			TopN:          5,
			RefeatureDays: 14,
			RotationDays:  28,
			ImpactDays:    30,
			RotationBound: 0.3,
		},
		Notify: NotifyConfig{
			NATS:             NATSConfig{SubjectPrefix: "vibescore"},
			FailureThreshold: 5,
			OpenTimeout:      "30s",
		},
		Redis:  RedisConfig{LockTTL: "15m"},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads configuration from a YAML file, applies VIBESCORE_* env var
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
