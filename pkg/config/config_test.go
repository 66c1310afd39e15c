package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/df07/go-corner-culling/pkg/core"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Expected defaults for a missing file, got %v", err)
	}
	if cfg.Session.CullingPeriod != 4 {
		t.Errorf("Expected culling period 4, got %d", cfg.Session.CullingPeriod)
	}
	if cfg.Culling.CacheSize != 3 {
		t.Errorf("Expected cache size 3, got %d", cfg.Culling.CacheSize)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"server": {"port": 9090}, "culling": {"frame_budget": 2000000}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Culling.FrameBudget != core.Duration(2*time.Millisecond) {
		t.Errorf("Expected 2ms frame budget, got %v", cfg.Culling.FrameBudget)
	}
	if cfg.Server.FrameRate != 64 {
		t.Errorf("Expected default frame rate 64, got %d", cfg.Server.FrameRate)
	}
	if cfg.Session.MaxTimerIncrement != 18 {
		t.Errorf("Expected default max timer increment 18, got %d", cfg.Session.MaxTimerIncrement)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"Malformed", `{"server": `, "failed to parse"},
		{"Zero period", `{"session": {"culling_period": 0}}`, "culling_period"},
		{"Negative workers", `{"culling": {"workers": -2}}`, "workers"},
		{"Bad port", `{"server": {"port": 70000}}`, "port"},
		{"Bad duration", `{"session": {"load_threshold": "soon"}}`, "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Expected error mentioning %q, got %v", tt.message, err)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	want := Default()
	want.Server.Scene = "city"
	want.Sim.Characters = 12
	want.Culling.Epsilon = 0.5

	if err := want.Save(path); err != nil {
		t.Fatalf("Expected save to succeed, got %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Expected saved config to load, got %v", err)
	}
	if *got != *want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestLoad_Durations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"culling": {"frame_budget": "2.5ms"},
		"session": {"load_threshold": "750us"},
		"sim": {"latency": "80ms"},
		"server": {"write_timeout": "1m"}
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}

	tests := []struct {
		name     string
		got      core.Duration
		expected time.Duration
	}{
		{"frame_budget", cfg.Culling.FrameBudget, 2500 * time.Microsecond},
		{"load_threshold", cfg.Session.LoadThreshold, 750 * time.Microsecond},
		{"latency", cfg.Sim.Latency, 80 * time.Millisecond},
		{"write_timeout", cfg.Server.WriteTimeout, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.Std() != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}

func TestSave_WritesReadableDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Default().Save(path); err != nil {
		t.Fatalf("Expected save to succeed, got %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var raw struct {
		Culling struct {
			FrameBudget string `json:"frame_budget"`
		} `json:"culling"`
		Server struct {
			WriteTimeout string `json:"write_timeout"`
		} `json:"server"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Expected durations saved as strings, got %v", err)
	}
	if raw.Culling.FrameBudget != "4ms" {
		t.Errorf("Expected frame_budget \"4ms\", got %q", raw.Culling.FrameBudget)
	}
	if raw.Server.WriteTimeout != "2s" {
		t.Errorf("Expected write_timeout \"2s\", got %q", raw.Server.WriteTimeout)
	}
}
