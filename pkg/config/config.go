package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:digestpool.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Curation CurationConfig `yaml:"curation" json:"curation" jsonschema:"description=Curation engine configuration"`
}

// CurationConfig holds all tunables of the curation engine. Thresholds and
// weights live here rather than in code so source-type-specific scales can be
// tuned per deployment.
type CurationConfig struct {
	Validation ValidationConfig `yaml:"validation" json:"validation" jsonschema:"description=Candidate validation settings"`
	Scoring    ScoringConfig    `yaml:"scoring" json:"scoring" jsonschema:"description=Base quality scoring weights"`
	Merge      MergeConfig      `yaml:"merge" json:"merge" jsonschema:"description=Duplicate merge policy"`
	Tracker    TrackerConfig    `yaml:"tracker" json:"tracker" jsonschema:"description=Source quality tracking settings"`
	Preference PreferenceConfig `yaml:"preference" json:"preference" jsonschema:"description=Preference extraction settings"`
	Adjuster   AdjusterConfig   `yaml:"adjuster" json:"adjuster" jsonschema:"description=Final score adjustment multipliers"`
}

// ValidationConfig holds candidate acceptance rules
type ValidationConfig struct {
	MinContentLength int `yaml:"min_content_length" json:"min_content_length" jsonschema:"default=100,description=Minimum content length in characters"`
	MaxTitleLength   int `yaml:"max_title_length" json:"max_title_length" jsonschema:"default=500,description=Maximum title length before truncation"`
}

// ScoringConfig holds the base score weights: base = score + comments*comment_weight + views*view_weight + shares*share_weight
type ScoringConfig struct {
	CommentWeight float64 `yaml:"comment_weight" json:"comment_weight" jsonschema:"default=1.0,description=Weight applied to comment count"`
	ViewWeight    float64 `yaml:"view_weight" json:"view_weight" jsonschema:"default=0.1,description=Weight applied to view count"`
	ShareWeight   float64 `yaml:"share_weight" json:"share_weight" jsonschema:"default=2.0,description=Weight applied to share count"`
}

// MergeConfig holds the duplicate merge policy. PreferredSources orders the
// "first non-null wins" fields: a listed source beats an unlisted one, and an
// earlier listed source beats a later one.
type MergeConfig struct {
	PreferredSources []string `yaml:"preferred_sources" json:"preferred_sources" jsonschema:"description=Source precedence for order-sensitive merge fields"`
}

// TrackerConfig holds source quality tracking settings
type TrackerConfig struct {
	TrendingHalfLife time.Duration `yaml:"trending_half_life" json:"trending_half_life" jsonschema:"default=168h,description=Half-life of the exponential decay used for the trending score"`
}

// PreferenceConfig holds preference extraction settings
type PreferenceConfig struct {
	SourceQualityThreshold float64 `yaml:"source_quality_threshold" json:"source_quality_threshold" jsonschema:"default=0.6,minimum=0,maximum=1,description=Quality score above which a source becomes preferred"`
	FullConfidenceFeedback int     `yaml:"full_confidence_feedback" json:"full_confidence_feedback" jsonschema:"default=50,description=Feedback count at which confidence saturates to 1.0"`
	TopicMinCount          int     `yaml:"topic_min_count" json:"topic_min_count" jsonschema:"default=2,description=Minimum occurrences for a tag to become a topic preference"`
	MaxTopics              int     `yaml:"max_topics" json:"max_topics" jsonschema:"default=10,description=Maximum number of preferred or avoided topics kept"`
}

// AdjusterConfig holds the final score multipliers
type AdjusterConfig struct {
	PreferredSourceBoost  float64 `yaml:"preferred_source_boost" json:"preferred_source_boost" jsonschema:"default=1.2,description=Multiplier for items from preferred sources"`
	BelowThresholdPenalty float64 `yaml:"below_threshold_penalty" json:"below_threshold_penalty" jsonschema:"default=0.7,description=Multiplier for items below the learned minimum score"`
	SourceQualityBase     float64 `yaml:"source_quality_base" json:"source_quality_base" jsonschema:"default=0.5,description=Source multiplier at quality score 0"`
	SourceQualityWeight   float64 `yaml:"source_quality_weight" json:"source_quality_weight" jsonschema:"default=1.0,description=Source multiplier gain per quality score point"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, for library
// callers that embed the engine without a config file
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	// set defaults for database
	if c.Database.DSN == "" {
		c.Database.DSN = "file:digestpool.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	// set defaults for validation
	if c.Curation.Validation.MinContentLength == 0 {
		c.Curation.Validation.MinContentLength = 100
	}
	if c.Curation.Validation.MaxTitleLength == 0 {
		c.Curation.Validation.MaxTitleLength = 500
	}

	// set defaults for scoring weights
	if c.Curation.Scoring.CommentWeight == 0 {
		c.Curation.Scoring.CommentWeight = 1.0
	}
	if c.Curation.Scoring.ViewWeight == 0 {
		c.Curation.Scoring.ViewWeight = 0.1
	}
	if c.Curation.Scoring.ShareWeight == 0 {
		c.Curation.Scoring.ShareWeight = 2.0
	}

	// set defaults for tracking
	if c.Curation.Tracker.TrendingHalfLife == 0 {
		c.Curation.Tracker.TrendingHalfLife = 168 * time.Hour
	}

	// set defaults for preference extraction
	if c.Curation.Preference.SourceQualityThreshold == 0 {
		c.Curation.Preference.SourceQualityThreshold = 0.6
	}
	if c.Curation.Preference.FullConfidenceFeedback == 0 {
		c.Curation.Preference.FullConfidenceFeedback = 50
	}
	if c.Curation.Preference.TopicMinCount == 0 {
		c.Curation.Preference.TopicMinCount = 2
	}
	if c.Curation.Preference.MaxTopics == 0 {
		c.Curation.Preference.MaxTopics = 10
	}

	// set defaults for score adjustment
	if c.Curation.Adjuster.PreferredSourceBoost == 0 {
		c.Curation.Adjuster.PreferredSourceBoost = 1.2
	}
	if c.Curation.Adjuster.BelowThresholdPenalty == 0 {
		c.Curation.Adjuster.BelowThresholdPenalty = 0.7
	}
	if c.Curation.Adjuster.SourceQualityBase == 0 {
		c.Curation.Adjuster.SourceQualityBase = 0.5
	}
	if c.Curation.Adjuster.SourceQualityWeight == 0 {
		c.Curation.Adjuster.SourceQualityWeight = 1.0
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	cur := &cfg.Curation

	if cur.Validation.MinContentLength < 0 {
		return fmt.Errorf("curation.validation.min_content_length must be non-negative")
	}
	if cur.Scoring.CommentWeight < 0 || cur.Scoring.ViewWeight < 0 || cur.Scoring.ShareWeight < 0 {
		return fmt.Errorf("curation.scoring weights must be non-negative")
	}
	if cur.Tracker.TrendingHalfLife < time.Minute {
		return fmt.Errorf("curation.tracker.trending_half_life must be at least 1 minute")
	}
	if cur.Preference.SourceQualityThreshold < 0 || cur.Preference.SourceQualityThreshold > 1 {
		return fmt.Errorf("curation.preference.source_quality_threshold must be between 0 and 1")
	}
	if cur.Preference.FullConfidenceFeedback < 1 {
		return fmt.Errorf("curation.preference.full_confidence_feedback must be at least 1")
	}
	if cur.Adjuster.PreferredSourceBoost <= 0 {
		return fmt.Errorf("curation.adjuster.preferred_source_boost must be positive")
	}
	if cur.Adjuster.BelowThresholdPenalty <= 0 || cur.Adjuster.BelowThresholdPenalty > 1 {
		return fmt.Errorf("curation.adjuster.below_threshold_penalty must be in (0,1]")
	}

	return nil
}

// GetCurationConfig returns the curation engine configuration
func (c *Config) GetCurationConfig() CurationConfig {
	return c.Curation
}
