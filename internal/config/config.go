// Package config handles obfusps-tool configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (OBFUSPS_*)
//  2. Config file (~/.config/obfusps-tool/config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultWorkspaceRoot is the working folder created next to where the tool runs.
	DefaultWorkspaceRoot = "ObfusPS"
	// DefaultLevel is the default obfuscation level for manual mode.
	DefaultLevel = 3
	// DefaultProfile is the profile used when none (or an unknown one) is chosen.
	DefaultProfile = "balanced"
)

// Config holds the obfusps-tool configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	// Set defaults
	v.SetDefault("workspace.root", DefaultWorkspaceRoot)
	v.SetDefault("obfuscate.level", DefaultLevel)
	v.SetDefault("obfuscate.profile", DefaultProfile)
	v.SetDefault("obfuscate.use_ast", true)
	v.SetDefault("obfuscate.validate", false)
	v.SetDefault("engine.path", "")
	v.SetDefault("update.check", true)

	// Config file location
	home, err := os.UserHomeDir()
	if err == nil {
		configDir := filepath.Join(home, ".config", "obfusps-tool")
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix("OBFUSPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, but warn on other errors)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// Get returns a configuration value.
func (c *Config) Get(key string) interface{} {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns a configuration value as int.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool returns a configuration value as bool.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// Set sets a configuration value and persists it.
func (c *Config) Set(key string, value interface{}) error {
	c.v.Set(key, value)

	// Ensure config directory exists
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".config", "obfusps-tool")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")
	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]interface{} {
	return c.v.AllSettings()
}

// WorkspaceRoot returns the configured working folder.
func (c *Config) WorkspaceRoot() string {
	return c.GetString("workspace.root")
}

// Level returns the default obfuscation level.
func (c *Config) Level() int {
	return c.GetInt("obfuscate.level")
}

// Profile returns the default obfuscation profile.
func (c *Config) Profile() string {
	return c.GetString("obfuscate.profile")
}

// UseAST reports whether AST-assisted transforms are requested by default.
func (c *Config) UseAST() bool {
	return c.GetBool("obfuscate.use_ast")
}

// Validate reports whether output validation is requested by default.
func (c *Config) Validate() bool {
	return c.GetBool("obfuscate.validate")
}

// EnginePath returns an explicit engine binary path, if configured.
func (c *Config) EnginePath() string {
	return c.GetString("engine.path")
}

// UpdateCheckEnabled reports whether background update checks run.
func (c *Config) UpdateCheckEnabled() bool {
	return c.GetBool("update.check")
}
