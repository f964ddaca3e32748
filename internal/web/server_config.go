package web

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

const (
	EnvListenAddr = "PANELCORE_LISTEN"
	EnvDevMode    = "PANELCORE_DEV"
	EnvStaticDir  = "PANELCORE_STATIC_DIR"
)

// ServerConfig holds the HTTP server settings shared by the device binary
// (default :80) and the simulator (default :8080).
type ServerConfig struct {
	ListenAddr string
	DevMode    bool
	// StaticDir replaces the embedded UI when set.
	StaticDir string
}

func DefaultServerConfigFromEnv(defaultListenAddr string) (ServerConfig, error) {
	cfg := ServerConfig{ListenAddr: defaultListenAddr, StaticDir: os.Getenv(EnvStaticDir)}

	if raw := os.Getenv(EnvListenAddr); raw != "" {
		if _, _, err := net.SplitHostPort(raw); err != nil {
			return ServerConfig{}, fmt.Errorf("%s must be host:port (got %q): %w", EnvListenAddr, raw, err)
		}
		cfg.ListenAddr = raw
	}

	if raw := os.Getenv(EnvDevMode); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("%s must be a boolean (got %q): %w", EnvDevMode, raw, err)
		}
		cfg.DevMode = parsed
	}

	return cfg, nil
}
