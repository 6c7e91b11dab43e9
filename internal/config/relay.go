package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Relay configuration keys, shared by flags, HUDDLE_* env vars and the
// config file.
const (
	KeyAddr            = "addr"
	KeyAllowedOrigins  = "allowed_origins"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
	KeyShutdownTimeout = "shutdown_timeout"
)

const envPrefix = "HUDDLE"

// Relay holds huddle-relay settings.
type Relay struct {
	Addr            string
	AllowedOrigins  []string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// RelayFlags registers the relay flags on fs.
func RelayFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8080", "listen address")
	fs.StringSlice("allowed-origins", []string{"*"}, "origins allowed to open a WebSocket (* allows all)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "text", "log format (text, json)")
	fs.Duration("shutdown-timeout", 5*time.Second, "graceful shutdown timeout")
}

// LoadRelay resolves relay settings from flags, the environment and an
// optional YAML file, in that order of priority.
func LoadRelay(fs *pflag.FlagSet, configFile string) (*Relay, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		KeyAddr:            "addr",
		KeyAllowedOrigins:  "allowed-origins",
		KeyLogLevel:        "log-level",
		KeyLogFormat:       "log-format",
		KeyShutdownTimeout: "shutdown-timeout",
	}
	for key, flag := range bindings {
		f := fs.Lookup(flag)
		if f == nil {
			return nil, fmt.Errorf("flag --%s is not registered", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	relay := &Relay{
		Addr:            v.GetString(KeyAddr),
		AllowedOrigins:  splitOrigins(v.GetStringSlice(KeyAllowedOrigins)),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
	}
	if relay.Addr == "" {
		return nil, errors.New("listen address is required")
	}
	if relay.ShutdownTimeout <= 0 {
		relay.ShutdownTimeout = 5 * time.Second
	}
	return relay, nil
}

// splitOrigins accepts both list values and a single comma separated env
// value.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, origin := range strings.Split(item, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}
