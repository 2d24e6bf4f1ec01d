// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Planner  PlannerConfig  `mapstructure:"planner" yaml:"planner"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`

	// File sink, rotated by lumberjack. Disabled when LogFile is empty.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the headless browser process and its pages.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	// MaxSessions caps concurrently open tabs on the shared browser process.
	MaxSessions int `mapstructure:"max_sessions" yaml:"max_sessions"`
	NoSandbox   bool `mapstructure:"no_sandbox" yaml:"no_sandbox"`
}

// ExecutorConfig tunes the plan execution engine's budgets.
type ExecutorConfig struct {
	// PollInterval is the fixed short interval between element probes.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// CandidateTimeout is the per-candidate resolution budget.
	CandidateTimeout time.Duration `mapstructure:"candidate_timeout" yaml:"candidate_timeout"`
	// ActionTimeout is the default budget for actions that declare none.
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// ExpectTimeout is the default budget for expected follow-on elements.
	ExpectTimeout time.Duration `mapstructure:"expect_timeout" yaml:"expect_timeout"`
	// SettleDelay is slept before taking a recovery snapshot, letting UI
	// animations finish.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// CaptureVerifyTimeout bounds the best-effort wait before a screenshot.
	CaptureVerifyTimeout time.Duration `mapstructure:"capture_verify_timeout" yaml:"capture_verify_timeout"`
	// MaxRecoveryCandidates caps how many salvaged references a single
	// recovery attempt will trial.
	MaxRecoveryCandidates int `mapstructure:"max_recovery_candidates" yaml:"max_recovery_candidates"`
}

// PlannerConfig configures the plan-generation collaborator client.
type PlannerConfig struct {
	Provider   string        `mapstructure:"provider" yaml:"provider"`
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	// RequestsPerMinute rate-limits outbound generation calls.
	RequestsPerMinute int     `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// StorageConfig controls where checkpoint artifacts land.
type StorageConfig struct {
	// ArtifactsDir is the root under which per-run directories are created.
	// A leading "~" is expanded to the user's home directory.
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
}

// HistoryConfig enables the optional Postgres run-history sink.
type HistoryConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// NewDefaultConfig returns the configuration used when no file or environment
// overrides are present.
func NewDefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "waypoint-cli",
			MaxSize:     50,
			MaxBackups:  3,
			MaxAge:      14,
		},
		Browser: BrowserConfig{
			Headless:          true,
			ViewportWidth:     1280,
			ViewportHeight:    900,
			NavigationTimeout: 45 * time.Second,
			PostLoadWait:      1500 * time.Millisecond,
			MaxSessions:       4,
		},
		Executor: ExecutorConfig{
			PollInterval:          100 * time.Millisecond,
			CandidateTimeout:      5 * time.Second,
			ActionTimeout:         15 * time.Second,
			ExpectTimeout:         10 * time.Second,
			SettleDelay:           750 * time.Millisecond,
			CaptureVerifyTimeout:  5 * time.Second,
			MaxRecoveryCandidates: 12,
		},
		Planner: PlannerConfig{
			Provider:          "gemini",
			Model:             "gemini-2.0-flash",
			APITimeout:        60 * time.Second,
			RequestsPerMinute: 30,
			Temperature:       0.2,
			MaxTokens:         8192,
		},
		Storage: StorageConfig{
			ArtifactsDir: "~/.waypoint/runs",
		},
	}
}

// Load unmarshals the viper state over the defaults and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes and sanity-checks the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logger.Format) {
	case "console", "json", "":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.Logger.Format)
	}

	if c.Executor.PollInterval <= 0 {
		return fmt.Errorf("executor.poll_interval must be positive")
	}
	if c.Executor.CandidateTimeout <= 0 {
		return fmt.Errorf("executor.candidate_timeout must be positive")
	}
	if c.Executor.MaxRecoveryCandidates <= 0 {
		c.Executor.MaxRecoveryCandidates = 12
	}
	if c.Browser.MaxSessions <= 0 {
		c.Browser.MaxSessions = 1
	}

	if c.Storage.ArtifactsDir == "" {
		return fmt.Errorf("storage.artifacts_dir must not be empty")
	}
	expanded, err := homedir.Expand(c.Storage.ArtifactsDir)
	if err != nil {
		return fmt.Errorf("failed to expand storage.artifacts_dir: %w", err)
	}
	c.Storage.ArtifactsDir = filepath.Clean(expanded)

	return nil
}
