// Package app provides configuration management for the NES emulator.
package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all application configuration
type Config struct {
	Window    WindowConfig    `json:"window"`
	Video     VideoConfig     `json:"video"`
	Emulation EmulationConfig `json:"emulation"`
	Debug     DebugConfig     `json:"debug"`
	Paths     PathsConfig     `json:"paths"`

	// Internal state
	configPath string
}

// WindowConfig contains window-related configuration
type WindowConfig struct {
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	Fullscreen bool `json:"fullscreen"`
	Scale      int  `json:"scale"` // NES resolution multiplier
}

// VideoConfig contains video rendering configuration
type VideoConfig struct {
	VSync       bool   `json:"vsync"`
	AspectRatio string `json:"aspect_ratio"` // "4:3", "16:9", "original"
	Filter      string `json:"filter"`       // "ntsc", "pixellate"
	Backend     string `json:"backend"`      // "ebitengine", "headless", "terminal"
}

// EmulationConfig contains emulation-specific settings
type EmulationConfig struct {
	Region         string `json:"region"` // "NTSC", "PAL", "Dendy"
	SaveStateSlots int    `json:"save_state_slots"`
}

// DebugConfig contains debugging and development options
type DebugConfig struct {
	ShowDebugInfo bool `json:"show_debug_info"`
}

// PathsConfig contains file and directory paths
type PathsConfig struct {
	SaveData   string `json:"save_data"`
	SaveStates string `json:"save_states"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Width:      800,
			Height:     600,
			Fullscreen: false,
			Scale:      2, // 512x480 (256x240 * 2)
		},
		Video: VideoConfig{
			VSync:       true,
			AspectRatio: "4:3",
			Filter:      "pixellate",
			Backend:     "ebitengine", // Default to Ebitengine for GUI mode
		},
		Emulation: EmulationConfig{
			Region:         "NTSC",
			SaveStateSlots: 10,
		},
		Debug: DebugConfig{
			ShowDebugInfo: false,
		},
		Paths: PathsConfig{
			SaveData:   "./saves",
			SaveStates: "./states",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func (c *Config) LoadFromFile(path string) error {
	c.configPath = path

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// File doesn't exist - save default config and return
		return c.SaveToFile(path)
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %v", err)
	}

	// Parse JSON
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %v", err)
	}

	c.validate()

	// Ensure required directories exist
	if err := c.createDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %v", err)
	}

	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}

	c.configPath = path
	return nil
}

// validate clamps configuration values to sane defaults
func (c *Config) validate() {
	if c.Window.Width <= 0 {
		c.Window.Width = 800
	}
	if c.Window.Height <= 0 {
		c.Window.Height = 600
	}
	if c.Window.Scale <= 0 {
		c.Window.Scale = 1
	}

	if c.Emulation.SaveStateSlots <= 0 {
		c.Emulation.SaveStateSlots = 10
	}
}

// createDirectories creates required directories
func (c *Config) createDirectories() error {
	dirs := []string{
		c.Paths.SaveData,
		c.Paths.SaveStates,
	}

	for _, dir := range dirs {
		if dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %v", dir, err)
			}
		}
	}

	return nil
}

// GetNESResolution returns the native NES resolution
func (c *Config) GetNESResolution() (int, int) {
	return 256, 240
}

// GetWindowResolution returns the window resolution based on scale
func (c *Config) GetWindowResolution() (int, int) {
	nesWidth, nesHeight := c.GetNESResolution()
	return nesWidth * c.Window.Scale, nesHeight * c.Window.Scale
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	return "./config/nesdeck.json"
}
