// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Render   RenderConfig   `mapstructure:"render"`
	Model    ModelConfig    `mapstructure:"model"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Contract ContractConfig `mapstructure:"contract"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// HarvestConfig governs traversal and pipeline behavior.
type HarvestConfig struct {
	Concurrency    int    `mapstructure:"concurrency"`
	UserAgent      string `mapstructure:"user_agent"`
	PerHostDelayMs int    `mapstructure:"per_host_delay_ms"`
	MaxDepth       int    `mapstructure:"max_depth"`
	MaxPages       int    `mapstructure:"max_pages"`
	SinglePage     bool   `mapstructure:"single_page"`
	Deterministic  bool   `mapstructure:"deterministic"`
	QueueDepth     int    `mapstructure:"queue_depth"`
	RunsDir        string `mapstructure:"runs_dir"`
	DefaultOwner   string `mapstructure:"default_owner"`
}

// RenderConfig configures the page rendering subsystem.
type RenderConfig struct {
	Headless       bool `mapstructure:"headless"`
	MaxParallel    int  `mapstructure:"max_parallel"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
}

// ModelConfig toggles external-model augmentation.
type ModelConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Name    string `mapstructure:"name"`
}

// SnapshotConfig sets raw-markup archival behavior.
type SnapshotConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// ContractConfig points at the CUE capsule contract.
type ContractConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory store.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// PubSubConfig selects the job subscription. An empty project keeps the
// in-memory queue.
type PubSubConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	Subscription string `mapstructure:"subscription"`
	Topic        string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("harvest.concurrency", 4)
	v.SetDefault("harvest.user_agent", "structharvest-bot/0.1")
	v.SetDefault("harvest.per_host_delay_ms", 1000)
	v.SetDefault("harvest.max_depth", 2)
	v.SetDefault("harvest.max_pages", 25)
	v.SetDefault("harvest.single_page", false)
	v.SetDefault("harvest.deterministic", true)
	v.SetDefault("harvest.queue_depth", 64)
	v.SetDefault("harvest.runs_dir", "runs")
	v.SetDefault("harvest.default_owner", "default")
	v.SetDefault("render.headless", false)
	v.SetDefault("render.max_parallel", 2)
	v.SetDefault("render.timeout_seconds", 25)
	v.SetDefault("model.enabled", false)
	v.SetDefault("model.name", "claude-sonnet-4-5")
	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.dir", "snapshots")
	v.SetDefault("contract.enabled", true)
	v.SetDefault("contract.path", "schemas/capsule.cue")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if c.Harvest.MaxPages <= 0 {
		return fmt.Errorf("harvest.max_pages must be > 0")
	}
	if c.Harvest.MaxDepth < 0 {
		return fmt.Errorf("harvest.max_depth must be >= 0")
	}
	if c.Harvest.PerHostDelayMs < 0 {
		return fmt.Errorf("harvest.per_host_delay_ms must be >= 0")
	}
	if c.Render.TimeoutSeconds <= 0 {
		return fmt.Errorf("render.timeout_seconds must be > 0")
	}
	if c.Render.Headless && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when headless is enabled")
	}
	if c.Model.Enabled && c.Model.APIKey == "" {
		return fmt.Errorf("model.api_key must be set when model augmentation is enabled")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.Subscription == "" {
		return fmt.Errorf("pubsub.subscription must be set when pubsub.project_id is set")
	}
	return nil
}

// PerHostDelay converts the millisecond knob into a duration.
func (c Config) PerHostDelay() time.Duration {
	return time.Duration(c.Harvest.PerHostDelayMs) * time.Millisecond
}

// RenderTimeout converts the seconds knob into a duration.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}
