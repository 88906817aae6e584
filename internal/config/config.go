package config

import (
	"fmt"
	"time"
)

// Config is the top-level skilld configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Skills   SkillsConfig   `koanf:"skills"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Poller   PollerConfig   `koanf:"poller"`
	GitHub   GitHubConfig   `koanf:"github"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// SkillsConfig locates skill manifests.
type SkillsConfig struct {
	// Dir is a single skill directory or a directory of skill
	// directories.
	Dir string `koanf:"dir"`

	// Watch enables hot reload of manifests.
	Watch bool `koanf:"watch"`
}

// PipelineConfig controls pipeline execution.
type PipelineConfig struct {
	// RepoPath is the working repository the integrate phase commits in.
	RepoPath string `koanf:"repo_path"`

	// Branch is the branch remediations are pushed to. Defaults to a
	// per-skill branch under skilld/.
	Branch string `koanf:"branch"`

	// Parallel allows independent actions of one skill to run
	// concurrently. Off by default to keep failure attribution simple.
	Parallel bool `koanf:"parallel"`

	// MaxConcurrent bounds in-flight actions when Parallel is set.
	MaxConcurrent int `koanf:"max_concurrent"`
}

// PollerConfig controls CI verification polling.
type PollerConfig struct {
	MaxAttempts int      `koanf:"max_attempts"`
	Interval    Duration `koanf:"interval"`
}

// GitHubConfig identifies the external CI status source.
type GitHubConfig struct {
	Token Secret `koanf:"token"`
	Owner string `koanf:"owner"`
	Repo  string `koanf:"repo"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults fills in zero values with production defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9190
	}
	if cfg.Skills.Dir == "" {
		cfg.Skills.Dir = "./skills"
	}
	if cfg.Pipeline.MaxConcurrent == 0 {
		cfg.Pipeline.MaxConcurrent = 4
	}
	if cfg.Poller.MaxAttempts == 0 {
		cfg.Poller.MaxAttempts = 30
	}
	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = Duration(10 * time.Second)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks configuration invariants after defaults are applied.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Poller.MaxAttempts < 1 {
		return fmt.Errorf("poller.max_attempts must be positive")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}
