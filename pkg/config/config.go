// Package config loads the server configuration from a YAML file with
// sensible defaults for everything left unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings.
type Config struct {
	ListenAddr string `yaml:"listen_addr"` // TCP bind address
	Hostname   string `yaml:"hostname"`    // announced in the protocol banner
	ServerID   string `yaml:"server_id"`
	ServerNick string `yaml:"server_nick"` // reserved nickname, may not be claimed
	DBPath     string `yaml:"db_path"`     // SQLite nickname database
	MetricsAddr string `yaml:"metrics_addr"` // HTTP bind address for /metrics (empty = disabled)

	// Well-known groups.
	DefaultGroup string `yaml:"default_group"` // joined when login names no group
	DefaultTopic string `yaml:"default_topic"`
	IdleGroup    string `yaml:"idle_group"` // idlers get moved here
	BootGroup    string `yaml:"boot_group"` // booted users land here

	// Login behavior.
	EnableUnsecureLogin bool `yaml:"enable_unsecure_login"` // allow last-login based auto-registration

	MOTD []string `yaml:"motd"`

	Timeouts TimeoutConfig `yaml:"timeouts"`

	Logging LoggingConfig `yaml:"logging"`
}

// TimeoutConfig groups all timer settings. Values are seconds in YAML.
type TimeoutConfig struct {
	Ping       Seconds `yaml:"ping"`        // send a keepalive probe after this much inactivity
	Connection Seconds `yaml:"connection"`  // disconnect after this much inactivity
	AwayNotice Seconds `yaml:"away_notice"` // suppress repeated away notices per sender/target pair
	MboxNotice Seconds `yaml:"mbox_notice"` // suppress repeated mailbox-full notices
	IdleMod    Seconds `yaml:"idle_mod"`    // demote an idle moderator after this long
	IdleBoot   Seconds `yaml:"idle_boot"`   // move an idle member to the idle group after this long
}

// Seconds is a duration stored as an integer number of seconds in YAML.
type Seconds time.Duration

// UnmarshalYAML parses an integer second count.
func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	var secs int64
	if err := node.Decode(&secs); err != nil {
		return fmt.Errorf("config: invalid duration: %w", err)
	}
	*s = Seconds(time.Duration(secs) * time.Second)
	return nil
}

// Duration returns the value as a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// LoggingConfig mirrors the logging package options.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		ListenAddr:   ":7326",
		Hostname:     "localhost",
		ServerID:     "fuchsschwanz",
		ServerNick:   "server",
		DBPath:       "icbd.db",
		MetricsAddr:  "",
		DefaultGroup: "1",
		DefaultTopic: "(None)",
		IdleGroup:    "idle",
		BootGroup:    "boot",
		MOTD:         []string{"Welcome!"},
		Timeouts: TimeoutConfig{
			Ping:       Seconds(90 * time.Second),
			Connection: Seconds(6 * time.Hour),
			AwayNotice: Seconds(5 * time.Minute),
			MboxNotice: Seconds(10 * time.Minute),
			IdleMod:    Seconds(30 * time.Minute),
			IdleBoot:   Seconds(2 * time.Hour),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML config file on top of the defaults. An empty path
// yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings no server could run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.DefaultGroup == "" {
		return fmt.Errorf("config: default_group must not be empty")
	}
	if c.ServerNick == "" {
		return fmt.Errorf("config: server_nick must not be empty")
	}
	return nil
}
