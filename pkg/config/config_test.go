package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.DefaultGroup != "1" {
		t.Errorf("DefaultGroup = %q, want 1", cfg.DefaultGroup)
	}
	if cfg.Timeouts.Ping.Duration() != 90*time.Second {
		t.Errorf("Ping timeout = %v, want 90s", cfg.Timeouts.Ping.Duration())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icbd.yaml")
	body := `
listen_addr: ":7000"
hostname: chat.example.org
default_group: lobby
default_topic: "be nice"
enable_unsecure_login: true
motd:
  - "line one"
  - "line two"
timeouts:
  ping: 30
  away_notice: 120
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":7000" || cfg.Hostname != "chat.example.org" {
		t.Errorf("addresses = %q/%q", cfg.ListenAddr, cfg.Hostname)
	}
	if cfg.DefaultGroup != "lobby" || cfg.DefaultTopic != "be nice" {
		t.Errorf("group settings = %q/%q", cfg.DefaultGroup, cfg.DefaultTopic)
	}
	if !cfg.EnableUnsecureLogin {
		t.Error("EnableUnsecureLogin = false")
	}
	if len(cfg.MOTD) != 2 {
		t.Errorf("MOTD lines = %d, want 2", len(cfg.MOTD))
	}
	if cfg.Timeouts.Ping.Duration() != 30*time.Second {
		t.Errorf("Ping = %v, want 30s", cfg.Timeouts.Ping.Duration())
	}
	if cfg.Timeouts.AwayNotice.Duration() != 2*time.Minute {
		t.Errorf("AwayNotice = %v, want 2m", cfg.Timeouts.AwayNotice.Duration())
	}
	// Unset values keep their defaults.
	if cfg.Timeouts.Connection.Duration() != 6*time.Hour {
		t.Errorf("Connection = %v, want default 6h", cfg.Timeouts.Connection.Duration())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("Load() error = nil for missing file")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.ListenAddr != Default().ListenAddr {
		t.Error("empty path did not yield defaults")
	}
}

func TestValidateRejectsEmptyListen(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil for empty listen_addr")
	}
}
