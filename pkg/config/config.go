// Package config loads the autofill configuration file
// (~/.autofill/config.yaml by default), fills in defaults and validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EnvHome overrides the autofill home directory.
const EnvHome = "AUTOFILL_HOME"

// Config is the full autofill configuration.
type Config struct {
	ProfilePath  string `yaml:"profile_path" json:"profile_path" validate:"required"`
	LearnedPath  string `yaml:"learned_path" json:"learned_path" validate:"required"`
	TemplatesDir string `yaml:"templates_dir" json:"templates_dir"`
	ArchivePath  string `yaml:"archive_path" json:"archive_path"`

	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`
	Matching  MatchingConfig `yaml:"matching" json:"matching"`
	Timing    TimingConfig   `yaml:"timing" json:"timing"`
	Session   SessionConfig  `yaml:"session" json:"session"`
	Browser   BrowserConfig  `yaml:"browser" json:"browser"`
	Suggest   SuggestConfig  `yaml:"suggest" json:"suggest"`
	Logging   LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// ArtifactConfig defines artifact generation configuration
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir" validate:"required_if=Enabled true"`
}

// MatchingConfig holds the matcher and validator settings.
type MatchingConfig struct {
	// Scorer names the similarity function: blend, token or edit.
	Scorer        string  `yaml:"scorer" json:"scorer" validate:"omitempty,oneof=blend token edit default"`
	MatchFloor    float64 `yaml:"match_floor" json:"match_floor" validate:"gte=0,lte=1"`
	HighThreshold float64 `yaml:"high_threshold" json:"high_threshold" validate:"gte=0,lte=1"`
	LowThreshold  float64 `yaml:"low_threshold" json:"low_threshold" validate:"gte=0,lte=1,ltefield=HighThreshold"`

	// LearnSoft also learns soft matches nobody corrected.
	LearnSoft bool `yaml:"learn_soft" json:"learn_soft"`

	// Aliases adds label wordings per profile key.
	Aliases map[string][]string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// TimingConfig holds the bounds of every wait.
type TimingConfig struct {
	SettleDelay       time.Duration `yaml:"settle_delay" json:"settle_delay" validate:"gte=0"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout" validate:"gt=0"`
	// ConfirmationTimeout of zero waits for the operator indefinitely.
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout" json:"confirmation_timeout" validate:"gte=0"`
	PollInterval        time.Duration `yaml:"poll_interval" json:"poll_interval" validate:"gt=0"`
}

// SessionConfig holds the session tracker settings.
type SessionConfig struct {
	AutoAdvance bool `yaml:"auto_advance" json:"auto_advance"`
	MaxPages    int  `yaml:"max_pages" json:"max_pages" validate:"min=1"`
	MaxRescans  int  `yaml:"max_rescans" json:"max_rescans" validate:"min=0"`

	// Interactive asks the operator about deferred fields while filling.
	Interactive bool `yaml:"interactive" json:"interactive"`

	ContinueLabels       []string `yaml:"continue_labels,omitempty" json:"continue_labels,omitempty"`
	ConfirmationPatterns []string `yaml:"confirmation_patterns,omitempty" json:"confirmation_patterns,omitempty"`
}

// BrowserConfig selects the browser driver.
type BrowserConfig struct {
	Driver    string        `yaml:"driver" json:"driver" validate:"oneof=playwright rod html"`
	DebugPort int           `yaml:"debug_port" json:"debug_port" validate:"min=0,max=65535"`
	RemoteURL string        `yaml:"remote_url,omitempty" json:"remote_url,omitempty" validate:"omitempty,url"`
	Headless  bool          `yaml:"headless" json:"headless"`
	StartURL  string        `yaml:"start_url,omitempty" json:"start_url,omitempty"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
}

// SuggestConfig configures LLM answer suggestions for deferred fields.
type SuggestConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Model           string `yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL         string `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"omitempty,url"`
	APIKey          string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens" json:"max_prompt_tokens" validate:"min=0"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity" validate:"omitempty,oneof=quiet normal verbose debug"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is written after every session when set.
	Textfile string `yaml:"textfile,omitempty" json:"textfile,omitempty"`
}

// Home returns the autofill home directory: $AUTOFILL_HOME or ~/.autofill.
func Home() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".autofill"), nil
}

// DefaultPath returns the default configuration file path.
func DefaultPath() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// DefaultConfig returns a default configuration rooted at home.
func DefaultConfig(home string) *Config {
	return &Config{
		ProfilePath:  filepath.Join(home, "profile.yaml"),
		LearnedPath:  filepath.Join(home, "learned.json"),
		TemplatesDir: filepath.Join(home, "templates"),
		ArchivePath:  filepath.Join(home, "sessions.db"),
		Artifacts: ArtifactConfig{
			Enabled:   true,
			OutputDir: filepath.Join(home, "artifacts"),
		},
		Matching: MatchingConfig{
			Scorer:        "blend",
			MatchFloor:    0.5,
			HighThreshold: 0.85,
			LowThreshold:  0.6,
		},
		Timing: TimingConfig{
			SettleDelay:         300 * time.Millisecond,
			NavigationTimeout:   15 * time.Second,
			ConfirmationTimeout: 2 * time.Minute,
			PollInterval:        250 * time.Millisecond,
		},
		Session: SessionConfig{
			AutoAdvance: true,
			MaxPages:    20,
			MaxRescans:  2,
			Interactive: true,
		},
		Browser: BrowserConfig{
			Driver:    "playwright",
			DebugPort: 9222,
			Timeout:   30 * time.Second,
		},
		Suggest: SuggestConfig{
			MaxPromptTokens: 3000,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration and fills the defaults validation
// depends on.
func (c *Config) Validate() error {
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	if c.Browser.Driver == "" {
		c.Browser.Driver = "playwright"
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}
