// Package config loads server runtime parameters from a flat
// KEY=VALUE file, falling back to defaults for anything missing.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every runtime parameter the server reads once at
// startup and treats as read-only afterward.
type Config struct {
	Port            int
	MaxRooms        int
	MaxClients      int
	BindAddress     string
	DisconnectGrace int // seconds
}

// Defaults matches original_source/server/src/config.c's fallback
// values exactly.
func Defaults() Config {
	return Config{
		Port:            10000,
		MaxRooms:        16,
		MaxClients:      128,
		BindAddress:     "0.0.0.0",
		DisconnectGrace: 15,
	}
}

// Load reads path and overlays any recognized KEY=VALUE lines onto
// the defaults. A missing file is not an error: it simply yields the
// defaults, matching config_load's fopen-failure fallback.
func Load(path string) (Config, error) {
	cfg := Defaults()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "PORT":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.Port = v
			}
		case "MAX_ROOMS":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.MaxRooms = v
			}
		case "MAX_CLIENTS":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.MaxClients = v
			}
		case "BIND_ADDRESS":
			if value != "" {
				cfg.BindAddress = value
			}
		case "DISCONNECT_GRACE":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.DisconnectGrace = v
			}
		}
		// Unknown keys are ignored per spec.
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyPortOverride parses raw as a positive TCP port and, if valid,
// overrides cfg.Port. It mirrors the CLI argv[1] override in
// original_source/server/src/main.c.
func ApplyPortOverride(cfg *Config, raw string) error {
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("config: invalid port %q", raw)
	}
	cfg.Port = port
	return nil
}
