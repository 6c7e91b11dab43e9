package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/pion/webrtc/v4"
)

// Default configuration values
const (
	DefaultServer = "localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Config holds the participant client configuration
type Config struct {
	// Server is the relay address as given by the user
	Server string

	// WebSocketURL and HealthURL are derived from Server
	WebSocketURL string
	HealthURL    string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Server     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	server := firstNonEmpty(opts.Server, os.Getenv("HUDDLE_SERVER"), DefaultServer)
	stunServer := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"))
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"))
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"))

	forceRelay := opts.ForceRelay
	if !forceRelay {
		if v, ok := os.LookupEnv("HUDDLE_FORCE_RELAY"); ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid HUDDLE_FORCE_RELAY: %w", err)
			}
			forceRelay = parsed
		}
	}

	if forceRelay && turnServer == "" {
		return nil, fmt.Errorf("relay-only mode needs a TURN server")
	}

	wsURL, err := endpoint(server, "ws", "/ws")
	if err != nil {
		return nil, err
	}
	healthURL, err := endpoint(server, "http", "/health")
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:       server,
		WebSocketURL: wsURL,
		HealthURL:    healthURL,
		STUNServer:   stunServer,
		TURNServer:   turnServer,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
		ForceRelay:   forceRelay,
	}, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured. A bare host gets
// the standard UDP, TCP and TLS ports.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turns:"), "turn:")
	if strings.Contains(host, ":") || strings.Contains(host, "?") {
		return []string{c.TURNServer}
	}
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// ICEServers assembles the pion ICE server list.
func (c *Config) ICEServers() []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if stun := c.GetSTUNServers(); len(stun) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}
	if turn := c.GetTURNServers(); len(turn) > 0 {
		user, pass := c.GetTURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs:           turn,
			Username:       user,
			Credential:     pass,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	return servers
}

// endpoint builds a URL for path on server. scheme is "ws" or "http"; the
// secure variant is used unless the server is a loopback address or an
// explicit insecure scheme was given.
func endpoint(server, scheme, path string) (string, error) {
	raw := server
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server address %q", server)
	}

	secure := !isLoopback(u.Hostname())
	switch u.Scheme {
	case "ws", "http":
		secure = false
	case "wss", "https":
		secure = true
	case "":
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}

	u.Scheme = scheme
	if secure {
		u.Scheme += "s"
	}
	u.Path = path
	u.RawQuery = ""
	return u.String(), nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
