// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for forgeloop.
type Config struct {
	ProjectName      string            `mapstructure:"project_name" yaml:"project_name"`
	ProjectsDir      string            `mapstructure:"projects_dir" yaml:"projects_dir"`
	DataDir          string            `mapstructure:"data_dir" yaml:"data_dir"`
	MaxIterations    int               `mapstructure:"max_iterations" yaml:"max_iterations"`
	IterationPause   time.Duration     `mapstructure:"iteration_pause" yaml:"iteration_pause"`
	InstallTimeout   time.Duration     `mapstructure:"install_timeout" yaml:"install_timeout"`
	BuildTimeout     time.Duration     `mapstructure:"build_timeout" yaml:"build_timeout"`
	TypecheckTimeout time.Duration     `mapstructure:"typecheck_timeout" yaml:"typecheck_timeout"`
	LogLevel         string            `mapstructure:"log_level" yaml:"log_level"`
	LogFile          string            `mapstructure:"log_file" yaml:"log_file"`
	Headless         bool              `mapstructure:"headless" yaml:"headless"`
	Events           bool              `mapstructure:"events" yaml:"events"`
	DatabaseType     string            `mapstructure:"database_type" yaml:"database_type,omitempty"`
	DatabaseURL      string            `mapstructure:"database_url" yaml:"database_url,omitempty"`
	DatabaseSSL      bool              `mapstructure:"database_ssl" yaml:"database_ssl,omitempty"`
	APIKeys          map[string]string `mapstructure:"api_keys" yaml:"api_keys,omitempty"`
}

// apiKeyEnv maps well-known services to the plain environment variables
// that override their stored keys.
var apiKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"stripe": "STRIPE_API_KEY",
	"github": "GITHUB_TOKEN",
}

// Load loads configuration with full precedence:
// ENV vars > project config > XDG global config > defaults.
// CLI flags are applied on top by the caller.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("forgeloop")

	v.SetDefault("project_name", "forgeloop-app")
	v.SetDefault("projects_dir", "projects")
	v.SetDefault("data_dir", ".forgeloop")
	v.SetDefault("max_iterations", 50)
	v.SetDefault("iteration_pause", 2*time.Second)
	v.SetDefault("install_timeout", 300*time.Second)
	v.SetDefault("build_timeout", 300*time.Second)
	v.SetDefault("typecheck_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("headless", false)
	v.SetDefault("events", true)
	v.SetDefault("database_type", "")
	v.SetDefault("database_url", "")
	v.SetDefault("database_ssl", false)

	v.SetEnvPrefix("FORGELOOP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindings := map[string][]string{
		"project_name":      {"FORGELOOP_PROJECT_NAME"},
		"projects_dir":      {"FORGELOOP_PROJECTS_DIR"},
		"data_dir":          {"FORGELOOP_DATA_DIR"},
		"max_iterations":    {"FORGELOOP_MAX_ITERATIONS"},
		"iteration_pause":   {"FORGELOOP_ITERATION_PAUSE"},
		"install_timeout":   {"FORGELOOP_INSTALL_TIMEOUT"},
		"build_timeout":     {"FORGELOOP_BUILD_TIMEOUT"},
		"typecheck_timeout": {"FORGELOOP_TYPECHECK_TIMEOUT"},
		"log_level":         {"FORGELOOP_LOG_LEVEL"},
		"log_file":          {"FORGELOOP_LOG_FILE"},
		"headless":          {"FORGELOOP_HEADLESS"},
		"events":            {"FORGELOOP_EVENTS"},
		"database_type":     {"FORGELOOP_DATABASE_TYPE", "DATABASE_TYPE"},
		"database_url":      {"FORGELOOP_DATABASE_URL", "DATABASE_URL"},
	}
	keys := make([]string, 0, len(bindings))
	for key := range bindings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args := append([]string{key}, bindings[key]...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.APIKeys == nil {
		cfg.APIKeys = make(map[string]string)
	}
	for service, env := range apiKeyEnv {
		if val := os.Getenv(env); val != "" {
			cfg.APIKeys[service] = val
		}
	}

	return &cfg, nil
}

// Credential returns the stored key for a service, if any.
func (c *Config) Credential(service string) (string, bool) {
	if c.APIKeys == nil {
		return "", false
	}
	val, ok := c.APIKeys[strings.ToLower(service)]
	return val, ok && val != ""
}

// ConfiguredServices returns the sorted names of services with a non-empty key.
func (c *Config) ConfiguredServices() []string {
	var out []string
	for service, key := range c.APIKeys {
		if key != "" {
			out = append(out, service)
		}
	}
	sort.Strings(out)
	return out
}

// Redacted returns a copy safe to show to users: keys and the database URL are masked.
func (c *Config) Redacted() Config {
	out := *c
	out.APIKeys = make(map[string]string, len(c.APIKeys))
	for service, key := range c.APIKeys {
		out.APIKeys[service] = mask(key)
	}
	out.DatabaseURL = mask(c.DatabaseURL)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// SetCredential stores a key for service and persists it to the project config.
func SetCredential(cfg *Config, service, value string) error {
	service = strings.ToLower(strings.TrimSpace(service))
	if service == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if cfg.APIKeys == nil {
		cfg.APIKeys = make(map[string]string)
	}
	cfg.APIKeys[service] = value
	return WriteProject(cfg)
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/forgeloop/forgeloop.yml or $XDG_CONFIG_HOME/forgeloop/forgeloop.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "forgeloop", "forgeloop.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "forgeloop", "forgeloop.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "forgeloop.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return writeFile(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return writeFile(ProjectPath(), cfg)
}

func writeFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Credentials live in this file.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
