// Package config aggregates the settings of every component into one JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/culling"
	"github.com/df07/go-corner-culling/pkg/session"
	"github.com/df07/go-corner-culling/pkg/sim"
)

// ServerConfig holds the web server settings
type ServerConfig struct {
	Port         int           `json:"port"`
	FrameRate    int           `json:"frame_rate"`    // Session ticks per second
	DatabasePath string        `json:"database_path"` // SQLite map store
	Scene        string        `json:"scene"`         // Scene loaded at startup
	WriteTimeout core.Duration `json:"write_timeout"` // Per websocket message
}

// Config is the full configuration file
type Config struct {
	Culling culling.Config `json:"culling"`
	Session session.Config `json:"session"`
	Sim     sim.Config     `json:"sim"`
	Server  ServerConfig   `json:"server"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Culling: culling.DefaultConfig(),
		Session: session.DefaultConfig(),
		Sim:     sim.DefaultConfig(),
		Server: ServerConfig{
			Port:         8080,
			FrameRate:    64,
			DatabasePath: "maps.db",
			Scene:        "arena",
			WriteTimeout: core.Duration(2 * time.Second),
		},
	}
}

// Load reads the configuration from a JSON file. Fields missing from the file
// keep their defaults; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no component can run with
func (c *Config) Validate() error {
	switch {
	case c.Culling.Workers < 0:
		return fmt.Errorf("culling.workers must not be negative, got %d", c.Culling.Workers)
	case c.Culling.Epsilon < 0:
		return fmt.Errorf("culling.epsilon must not be negative, got %g", c.Culling.Epsilon)
	case c.Session.CullingPeriod < 1:
		return fmt.Errorf("session.culling_period must be at least 1, got %d", c.Session.CullingPeriod)
	case c.Session.TickRate < 1:
		return fmt.Errorf("session.tick_rate must be at least 1, got %d", c.Session.TickRate)
	case c.Server.FrameRate < 1:
		return fmt.Errorf("server.frame_rate must be at least 1, got %d", c.Server.FrameRate)
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}
