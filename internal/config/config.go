// Package config handles taskdeck configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/taskdeck/config.yaml, /etc/taskdeck/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "taskdeck", "config.yaml"))
	}

	paths = append(paths, "/etc/taskdeck/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all taskdeck configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Model    ModelConfig    `yaml:"model"`
	ToolHost ToolHostConfig `yaml:"tool_host"`
	Engine   EngineConfig   `yaml:"engine"`
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
}

// ListenConfig defines the HTTP server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ModelConfig defines the completion model settings.
type ModelConfig struct {
	APIKey    string `yaml:"api_key"`
	Name      string `yaml:"name"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ToolHostConfig defines how the engine reaches the MCP tool host.
// Transport is "http" (URL) or "stdio" (Command/Args/Env subprocess).
// When Mount is true the daemon serves its own tool host at /mcp, and
// an empty URL defaults to that mount.
type ToolHostConfig struct {
	Transport string            `yaml:"transport"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       []string          `yaml:"env"`
	Mount     bool              `yaml:"mount"`
}

// EngineConfig tunes the conversation loop.
type EngineConfig struct {
	// MaxIterations caps model/tool round-trips per exchange.
	MaxIterations int `yaml:"max_iterations"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8084},
		Model: ModelConfig{
			Name:      "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		ToolHost: ToolHostConfig{
			Transport: "http",
			Mount:     true,
		},
		Engine: EngineConfig{
			MaxIterations: 8,
		},
		DataDir: ".",
	}
}
