package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/focusmute/focusmute/internal/catalog"
	"github.com/focusmute/focusmute/internal/logging"
)

const (
	MinWorkers         = 1
	MaxWorkers         = 64
	MinRefreshInterval = time.Second
	MaxRefreshInterval = 10 * time.Minute
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig `yaml:"database" envconfig:"DB"`

	// Catalog configuration
	Catalog CatalogConfig `yaml:"catalog"`

	// Controller configuration
	Controller ControllerConfig `yaml:"controller"`

	// Daemon configuration
	Daemon DaemonConfig `yaml:"daemon"`

	// Report configuration
	Report ReportConfig `yaml:"report"`

	// Web server configuration
	Web WebConfig `yaml:"web"`

	// Log configuration
	Log LogConfig `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path    string `yaml:"path"`    // Path to SQLite journal, empty means the user config dir
	Journal bool   `yaml:"journal"` // Record mute commands and errors
}

// CatalogConfig holds process catalog configuration
type CatalogConfig struct {
	Denylist        []string      `yaml:"denylist"`
	RefreshInterval time.Duration `yaml:"refresh_interval" split_words:"true"` // 0 disables periodic refresh
}

// ControllerConfig holds mute controller configuration
type ControllerConfig struct {
	Workers         int           `yaml:"workers"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `yaml:"pid_file" envconfig:"PID_FILE"` // Path to PID file for daemon management
}

// ReportConfig holds report generation configuration
type ReportConfig struct {
	TimeZone string `yaml:"timezone" envconfig:"TIMEZONE"`
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host string `yaml:"host"` // Host to bind web server to
	Port int    `yaml:"port"` // Port for web server
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"` // Extra output path besides stderr
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:    "", // Empty means use default <UserConfigDir>/focusmute/journal.db
			Journal: true,
		},
		Catalog: CatalogConfig{
			Denylist:        append([]string(nil), catalog.DefaultDenylist...),
			RefreshInterval: 0,
		},
		Controller: ControllerConfig{
			Workers:         4,
			ShutdownTimeout: 5 * time.Second,
		},
		Daemon: DaemonConfig{
			PIDFile: filepath.Join(os.TempDir(), "focusmute.pid"),
		},
		Report: ReportConfig{
			TimeZone: "Local",
		},
		Web: WebConfig{
			Host: "localhost",
			Port: 17820,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate controller config
	if c.Controller.Workers < MinWorkers || c.Controller.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between %d and %d, got %d",
			MinWorkers, MaxWorkers, c.Controller.Workers)
	}

	if c.Controller.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	// Validate catalog config
	if err := validateRefreshInterval(c.Catalog.RefreshInterval); err != nil {
		return err
	}

	// Validate web config
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	// Validate report config
	if _, err := time.LoadLocation(c.Report.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Report.TimeZone, err)
	}

	// Validate log config
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

func validateRefreshInterval(interval time.Duration) error {
	if interval == 0 {
		return nil
	}
	if interval < MinRefreshInterval {
		return fmt.Errorf("refresh interval cannot be less than %v", MinRefreshInterval)
	}
	if interval > MaxRefreshInterval {
		return fmt.Errorf("refresh interval cannot be greater than %v", MaxRefreshInterval)
	}
	return nil
}

// SetRefreshInterval sets the catalog refresh interval with validation.
// Zero disables periodic refresh.
func (c *Config) SetRefreshInterval(interval time.Duration) error {
	if err := validateRefreshInterval(interval); err != nil {
		return err
	}
	c.Catalog.RefreshInterval = interval
	return nil
}

// SetWorkers sets the dispatcher pool size with validation
func (c *Config) SetWorkers(workers int) error {
	if workers < MinWorkers || workers > MaxWorkers {
		return fmt.Errorf("workers must be between %d and %d, got %d", MinWorkers, MaxWorkers, workers)
	}
	c.Controller.Workers = workers
	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// WebAddr returns host:port of the API server
func (c *Config) WebAddr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// Logging converts the log section for internal/logging
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Console = c.Log.Development
	cfg.File = c.Log.File
	return cfg
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
    Journal: %v
  Catalog:
    Denylist: %s
    Refresh Interval: %v
  Controller:
    Workers: %d
    Shutdown Timeout: %v
  Daemon:
    PID File: %s
  Report:
    Time Zone: %s
  Web:
    Host: %s
    Port: %d
  Log:
    Level: %s
    Development: %v
    File: %s`,
		c.Database.Path,
		c.Database.Journal,
		strings.Join(c.Catalog.Denylist, ", "),
		c.Catalog.RefreshInterval,
		c.Controller.Workers,
		c.Controller.ShutdownTimeout,
		c.Daemon.PIDFile,
		c.Report.TimeZone,
		c.Web.Host,
		c.Web.Port,
		c.Log.Level,
		c.Log.Development,
		c.Log.File,
	)
}
