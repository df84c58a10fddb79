package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix = "ACTIONLOG"

	// OutputRootEnv overrides the output root
	OutputRootEnv = "PERSONAL_LOGS"

	// ConfigFileEnv points at an optional YAML config file
	ConfigFileEnv = "ACTIONLOG_CONFIG"
)

// Load builds the configuration from defaults, an optional .env file, an optional
// config file named by ACTIONLOG_CONFIG and the environment, in increasing precedence.
func Load() (*Config, error) {
	// A missing .env file is fine; existing variables are never overridden.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("output.root", OutputRootEnv, envPrefix+"_OUTPUT_ROOT"); err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", OutputRootEnv, err)
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("output.root", d.Output.Root)

	v.SetDefault("tracker.poll_interval", d.Tracker.PollInterval)
	v.SetDefault("tracker.alignment", d.Tracker.Alignment)
	v.SetDefault("tracker.call_timeout", d.Tracker.CallTimeout)
	v.SetDefault("tracker.status_shows_artifact", d.Tracker.StatusShowsArtifact)

	v.SetDefault("report.template_dir", d.Report.TemplateDir)
	v.SetDefault("report.template_name", d.Report.TemplateName)
	v.SetDefault("report.time_zone", d.Report.TimeZone)
	v.SetDefault("report.watch_templates", d.Report.WatchTemplates)

	v.SetDefault("index.enabled", d.Index.Enabled)
	v.SetDefault("index.path", d.Index.Path)

	v.SetDefault("display.name", d.Display.Name)

	v.SetDefault("daemon.pid_file", d.Daemon.PIDFile)
}

// resolvePaths makes the output root absolute, defaulting to the working directory.
func (c *Config) resolvePaths() error {
	root := c.Output.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve output root %q: %w", root, err)
	}
	c.Output.Root = abs
	return nil
}

// New loads the configuration, falling back to defaults rooted at the
// working directory when loading fails. The load error is logged.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Printf("Failed to load configuration, using defaults: %v", err)
		cfg = Default()
		_ = cfg.resolvePaths()
	}
	return cfg
}
