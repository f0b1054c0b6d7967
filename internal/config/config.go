package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Backend  BackendConfig  `yaml:"backend"`
	Printing PrintingConfig `yaml:"printing"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BackendConfig points at the POTLAM backend that holds the orders
// awaiting print and receives status updates for them.
type BackendConfig struct {
	Host               string        `yaml:"host"`
	PublicKey          string        `yaml:"public_key"`
	PrintListPath      string        `yaml:"print_list_path"`
	StatusUpdatePath   string        `yaml:"status_update_path"`
	BulkStatusPath     string        `yaml:"bulk_status_path"`
	FetchInterval      time.Duration `yaml:"fetch_interval"`
	Timeout            time.Duration `yaml:"timeout"`
	AnnounceInProgress bool          `yaml:"announce_in_progress"`
}

type PrintingConfig struct {
	AuthToken    string        `yaml:"auth_token"`
	AuthWindow   time.Duration `yaml:"auth_window"`
	TemplatePath string        `yaml:"template_path"`
	TempDir      string        `yaml:"temp_dir"`
	CputilPath   string        `yaml:"cputil_path"`
	CputilFormat string        `yaml:"cputil_format"`
	MediaType    string        `yaml:"media_type"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/cp_orders.db",
		},
		Backend: BackendConfig{
			PrintListPath:    "/cloudprint/list",
			StatusUpdatePath: "/cloudprint/status",
			BulkStatusPath:   "/cloudprint/status/bulk",
			FetchInterval:    30 * time.Second,
			Timeout:          10 * time.Second,
		},
		Printing: PrintingConfig{
			AuthWindow:   5 * time.Minute,
			TemplatePath: "./conf/order_template.stm",
			TempDir:      "./tmp",
			CputilPath:   "cputil",
			CputilFormat: "thermal3",
			MediaType:    "application/vnd.star.starprnt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CLOUDPRINT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("CLOUDPRINT_DB_PATH"); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv("CLOUDPRINT_BACKEND_HOST"); v != "" {
		c.Backend.Host = v
	}

	if v := os.Getenv("CLOUDPRINT_BACKEND_PUBLIC_KEY"); v != "" {
		c.Backend.PublicKey = v
	}

	if v := os.Getenv("CLOUDPRINT_AUTH_TOKEN"); v != "" {
		c.Printing.AuthToken = v
	}

	if v := os.Getenv("CLOUDPRINT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Backend.Host == "" {
		return fmt.Errorf("backend host is required")
	}

	if c.Backend.FetchInterval <= 0 {
		return fmt.Errorf("backend fetch interval must be positive")
	}

	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}

	if c.Printing.AuthToken == "" {
		return fmt.Errorf("printing auth token is required")
	}

	if c.Printing.AuthWindow <= 0 {
		return fmt.Errorf("printing auth window must be positive")
	}

	if c.Printing.TemplatePath == "" {
		return fmt.Errorf("printing template path is required")
	}

	if c.Printing.TempDir == "" {
		return fmt.Errorf("printing temp dir is required")
	}

	if c.Printing.CputilPath == "" {
		return fmt.Errorf("cputil path is required")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}
