package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func relayFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("huddle-relay", pflag.ContinueOnError)
	RelayFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return fs
}

func TestLoadRelayDefaults(t *testing.T) {
	relay, err := LoadRelay(relayFlags(t), "")
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if relay.Addr != ":8080" || relay.LogLevel != "info" || relay.ShutdownTimeout != 5*time.Second {
		t.Errorf("defaults = %+v", relay)
	}
	if len(relay.AllowedOrigins) != 1 || relay.AllowedOrigins[0] != "*" {
		t.Errorf("origins = %v", relay.AllowedOrigins)
	}
}

func TestLoadRelayPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "relay.yaml")
	err := os.WriteFile(file, []byte("addr: \":7000\"\nlog_level: debug\nlog_format: json\n"), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("HUDDLE_LOG_LEVEL", "warn")
	t.Setenv("HUDDLE_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	relay, err := LoadRelay(relayFlags(t, "--addr", ":9000"), file)
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if relay.Addr != ":9000" {
		t.Errorf("flag should win, addr = %q", relay.Addr)
	}
	if relay.LogLevel != "warn" {
		t.Errorf("env should beat file, log level = %q", relay.LogLevel)
	}
	if relay.LogFormat != "json" {
		t.Errorf("file should beat default, log format = %q", relay.LogFormat)
	}
	if len(relay.AllowedOrigins) != 2 || relay.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", relay.AllowedOrigins)
	}
}

func TestLoadRelayMissingFile(t *testing.T) {
	if _, err := LoadRelay(relayFlags(t), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
