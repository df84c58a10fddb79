package config

import (
	"fmt"
	"os"
	"time"

	"github.com/actionsum/actionlog/internal/bucket"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Output layout configuration
	Output OutputConfig `mapstructure:"output" yaml:"output"`

	// Capture loop configuration
	Tracker TrackerConfig `mapstructure:"tracker" yaml:"tracker"`

	// Report rendering configuration
	Report ReportConfig `mapstructure:"report" yaml:"report"`

	// Capture index configuration
	Index IndexConfig `mapstructure:"index" yaml:"index"`

	// Windowing system configuration
	Display DisplayConfig `mapstructure:"display" yaml:"display"`

	// Daemon configuration
	Daemon DaemonConfig `mapstructure:"daemon" yaml:"daemon"`
}

// OutputConfig holds the output root
type OutputConfig struct {
	Root string `mapstructure:"root" yaml:"root" validate:"required"` // Day partitions are created below this
}

// TrackerConfig holds capture loop behavior
type TrackerConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"min=1s,max=300s"` // Sleep between passes
	Alignment           time.Duration `mapstructure:"alignment" yaml:"alignment" validate:"min=1s"`                  // Bucket width
	CallTimeout         time.Duration `mapstructure:"call_timeout" yaml:"call_timeout" validate:"min=10ms"`          // Bound on each X request
	StatusShowsArtifact bool          `mapstructure:"status_shows_artifact" yaml:"status_shows_artifact"`            // Print artifact path instead of title
}

// ReportConfig holds report rendering configuration
type ReportConfig struct {
	TemplateDir    string `mapstructure:"template_dir" yaml:"template_dir"`
	TemplateName   string `mapstructure:"template_name" yaml:"template_name" validate:"required"`
	TimeZone       string `mapstructure:"time_zone" yaml:"time_zone" validate:"required"`
	WatchTemplates bool   `mapstructure:"watch_templates" yaml:"watch_templates"`
}

// IndexConfig holds the SQLite capture index configuration
type IndexConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"` // Empty means ~/.config/actionlog/actionlog.db
}

// DisplayConfig selects the X display
type DisplayConfig struct {
	Name string `mapstructure:"name" yaml:"name"` // Empty means $DISPLAY
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `mapstructure:"pid_file" yaml:"pid_file" validate:"required"`
}

var validate = validator.New()

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Root: "", // Empty means the current working directory
		},
		Tracker: TrackerConfig{
			PollInterval: 10 * time.Second,
			Alignment:    bucket.DefaultAlignment,
			CallTimeout:  2 * time.Second,
		},
		Report: ReportConfig{
			TemplateDir:    "templates",
			TemplateName:   "table.html",
			TimeZone:       "Local",
			WatchTemplates: true,
		},
		Index: IndexConfig{
			Enabled: true,
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/actionlog-%d.pid", os.Getuid()),
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := bucket.ValidateAlignment(c.Tracker.Alignment); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.Report.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Report.TimeZone, err)
	}

	return nil
}

// Location returns the time zone reports are partitioned in
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Report.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// String returns a YAML representation of the config
func (c *Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%+v", *c)
	}
	return string(out)
}
