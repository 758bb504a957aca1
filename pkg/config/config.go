// Package config holds the bridge process configuration: serving mode,
// logging and the agents to connect at startup. Sources are a YAML file
// and a JSON agents flag; string values may reference environment
// variables, so secrets stay out of config files.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Logger LoggerConfig `yaml:"logger"`
	Agents []AgentEntry `yaml:"agents"`
}

type ServerConfig struct {
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AgentEntry describes one agent to auto-load at startup. JSON tags
// match the agents flag; YAML tags match the config file.
type AgentEntry struct {
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	AccessToken string `json:"accessToken,omitempty" yaml:"access_token"`
	CardPath    string `json:"cardPath,omitempty" yaml:"card_path"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: TransportStdio,
			Host:      "0.0.0.0",
			Port:      8080,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "simple",
		},
	}
}

// LoadFile reads a YAML config file over the defaults and expands
// environment references in agent entries.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.expand()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// ParseAgentsJSON decodes the agents flag, a JSON array of entries, and
// expands environment references so tokens can be passed as ${VAR}.
func ParseAgentsJSON(raw string) ([]AgentEntry, error) {
	var entries []AgentEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse agents JSON: %w", err)
	}
	for i := range entries {
		entries[i].expand()
		if entries[i].Endpoint == "" {
			return nil, fmt.Errorf("agents entry %d has no endpoint", i)
		}
	}
	return entries, nil
}

func (c *Config) expand() {
	for i := range c.Agents {
		c.Agents[i].expand()
	}
	c.Logger.File = expandEnvVars(c.Logger.File)
}

func (e *AgentEntry) expand() {
	e.Endpoint = expandEnvVars(e.Endpoint)
	e.AccessToken = expandEnvVars(e.AccessToken)
	e.CardPath = expandEnvVars(e.CardPath)
}

func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q (expected %q or %q)", c.Server.Transport, TransportStdio, TransportHTTP)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}

	for i, agent := range c.Agents {
		if agent.Endpoint == "" {
			return fmt.Errorf("agents entry %d has no endpoint", i)
		}
	}

	return nil
}
