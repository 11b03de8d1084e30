// Package config loads browserd settings from an optional YAML file, the
// skill directory's .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Browser engines Playwright can launch.
const (
	BrowserChromium = "chromium"
	BrowserFirefox  = "firefox"
	BrowserWebKit   = "webkit"
)

// DefaultShutdownGrace is how long the process lingers after acknowledging close.
const DefaultShutdownGrace = 50 * time.Millisecond

// Config represents the configuration of one worker process
type Config struct {
	// SkillDir is the working directory: module resolution root and engine cwd
	SkillDir string `yaml:"skill_dir" json:"skill_dir"`

	// Engine controls the Playwright driver and browser launch defaults
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Sandbox controls script execution
	Sandbox SandboxConfig `yaml:"sandbox" json:"sandbox"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// ShutdownGrace is the delay between the close acknowledgment and exit
	ShutdownGrace time.Duration `yaml:"shutdown_grace" json:"shutdown_grace"`

	// ConfigFilePath is the YAML file this config was read from, if any
	ConfigFilePath string `yaml:"-" json:"-"`
}

// EngineConfig defines Playwright driver settings
type EngineConfig struct {
	// AutoInstall permits a one-time driver and browser install at startup
	AutoInstall bool `yaml:"auto_install" json:"auto_install"`

	// DriverDirectory overrides where the Playwright driver is looked up and installed
	DriverDirectory string `yaml:"driver_directory" json:"driver_directory"`

	// BrowserType is the engine launched when PW_BROWSER_TYPE is unset
	BrowserType string `yaml:"browser_type" json:"browser_type"`

	// Headless is the launch mode used when PW_HEADLESS is unset
	Headless bool `yaml:"headless" json:"headless"`
}

// SandboxConfig defines script execution settings
type SandboxConfig struct {
	// BlockedEnvPatterns are glob patterns added to the fixed environment blocklist
	BlockedEnvPatterns []string `yaml:"blocked_env_patterns" json:"blocked_env_patterns"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// envOverrides lists the variables read through envconfig. It is flat on
// purpose: envconfig prefixes the keys of nested structs.
type envOverrides struct {
	LogLevel        string        `envconfig:"BROWSERD_LOG_LEVEL"`
	LogFile         string        `envconfig:"BROWSERD_LOG_FILE"`
	ShutdownGrace   time.Duration `envconfig:"BROWSERD_SHUTDOWN_GRACE"`
	DriverDirectory string        `envconfig:"PLAYWRIGHT_DRIVER_PATH"`
	BrowserType     string        `envconfig:"PW_BROWSER_TYPE"`
	Headless        bool          `envconfig:"PW_HEADLESS"`
}

// AutoInstallEnv is the install-permission toggle. Any value other than
// "false" keeps installation allowed.
const AutoInstallEnv = "PLAYWRIGHT_AUTO_INSTALL"

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			AutoInstall: true,
			BrowserType: BrowserChromium,
			Headless:    false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		ShutdownGrace: DefaultShutdownGrace,
	}
}

// LoadOptions selects the inputs of Load.
type LoadOptions struct {
	SkillDir   string
	ConfigFile string
}

// Load builds the effective configuration: defaults, then the YAML file, then
// <skill-dir>/.env (never overriding variables already set), then the
// environment.
func Load(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	if opts.ConfigFile != "" {
		fileCfg, err := LoadFile(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if opts.SkillDir != "" {
		cfg.SkillDir = opts.SkillDir
	}
	if cfg.SkillDir == "" {
		return nil, errors.New("skill directory is required")
	}

	absDir, err := filepath.Abs(cfg.SkillDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve skill directory: %w", err)
	}
	cfg.SkillDir = absDir

	if err := loadDotEnv(cfg.SkillDir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile loads configuration from a YAML file on top of the defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ConfigFilePath = path

	return cfg, nil
}

func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	env := envOverrides{
		LogLevel:        c.Logging.Level,
		LogFile:         c.Logging.File,
		ShutdownGrace:   c.ShutdownGrace,
		DriverDirectory: c.Engine.DriverDirectory,
		BrowserType:     c.Engine.BrowserType,
		Headless:        c.Engine.Headless,
	}
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	c.Logging.Level = env.LogLevel
	c.Logging.File = env.LogFile
	c.ShutdownGrace = env.ShutdownGrace
	c.Engine.DriverDirectory = env.DriverDirectory
	c.Engine.BrowserType = strings.ToLower(env.BrowserType)
	c.Engine.Headless = env.Headless

	if v, ok := os.LookupEnv(AutoInstallEnv); ok {
		c.Engine.AutoInstall = AutoInstallAllowed(v)
	}
	return nil
}

// AutoInstallAllowed interprets a PLAYWRIGHT_AUTO_INSTALL value.
func AutoInstallAllowed(v string) bool {
	return !strings.EqualFold(strings.TrimSpace(v), "false")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SkillDir == "" {
		return fmt.Errorf("skill directory is required")
	}

	info, err := os.Stat(c.SkillDir)
	if err != nil {
		return fmt.Errorf("skill directory is not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("skill directory %s is not a directory", c.SkillDir)
	}

	if !IsKnownBrowser(c.Engine.BrowserType) {
		return fmt.Errorf("invalid browser_type: %s (must be 'chromium', 'firefox', or 'webkit')", c.Engine.BrowserType)
	}

	if c.ShutdownGrace < 0 {
		return fmt.Errorf("shutdown_grace cannot be negative")
	}

	validLevels := map[string]bool{
		"trace":   true,
		"debug":   true,
		"info":    true,
		"warn":    true,
		"warning": true,
		"error":   true,
	}
	if c.Logging.Level != "" && !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	return nil
}

// IsKnownBrowser reports whether name is a browser engine Playwright ships.
func IsKnownBrowser(name string) bool {
	switch strings.ToLower(name) {
	case BrowserChromium, BrowserFirefox, BrowserWebKit:
		return true
	}
	return false
}
