package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openclaw/kobo-linktap/internal/canvas"
	"github.com/openclaw/kobo-linktap/internal/eink"
)

type FileConfig struct {
	Gateway          string `json:"gateway"`
	GatewayPort      int    `json:"gatewayPort,omitempty"`
	GatewayTLS       bool   `json:"gatewayTLS,omitempty"`
	GatewayPath      string `json:"gatewayPath,omitempty"`
	Name             string `json:"name"`
	StateDir         string `json:"stateDir,omitempty"`
	Tailnet          *bool  `json:"tailnet,omitempty"`
	TouchDevice      string `json:"touchDevice,omitempty"`
	TouchTolerance   *int   `json:"touchTolerance,omitempty"`
	TapMaxTravel     int    `json:"tapMaxTravel,omitempty"`
	TapMaxDurationMs int    `json:"tapMaxDurationMs,omitempty"`
	Framebuffer      string `json:"framebuffer,omitempty"`
	LogLevel         string `json:"logLevel,omitempty"`
	HTTPUserAgent    string `json:"httpUserAgent,omitempty"`
}

// Overrides holds command line values. Zero values and negative tolerances
// mean "not set".
type Overrides struct {
	GatewayHost    string
	GatewayPort    int
	GatewayTLS     bool
	GatewayPath    string
	Name           string
	StateDir       string
	NoTailnet      bool
	TouchDevice    string
	TouchTolerance int
	Framebuffer    string
	LogLevel       string
}

func loadConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileConfig{}, nil
		}
		return FileConfig{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func applyOverrides(cfg *FileConfig, o Overrides) {
	if o.GatewayHost != "" {
		cfg.Gateway = o.GatewayHost
	}
	if o.GatewayPort != 0 {
		cfg.GatewayPort = o.GatewayPort
	}
	if o.GatewayPath != "" {
		cfg.GatewayPath = o.GatewayPath
	}
	if o.Name != "" {
		cfg.Name = o.Name
	}
	if o.StateDir != "" {
		cfg.StateDir = o.StateDir
	}
	if o.NoTailnet {
		disabled := false
		cfg.Tailnet = &disabled
	}
	if o.TouchDevice != "" {
		cfg.TouchDevice = o.TouchDevice
	}
	if o.TouchTolerance >= 0 {
		tolerance := o.TouchTolerance
		cfg.TouchTolerance = &tolerance
	}
	if o.Framebuffer != "" {
		cfg.Framebuffer = o.Framebuffer
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	cfg.GatewayTLS = o.GatewayTLS || cfg.GatewayTLS
}

func applyDefaults(cfg *FileConfig, cfgPath string) {
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(filepath.Dir(cfgPath), "tsnet-state")
	}
	if cfg.GatewayPath == "" {
		cfg.GatewayPath = "/ws"
	}
	if cfg.GatewayPort == 0 {
		cfg.GatewayPort = 443
		if !cfg.GatewayTLS {
			cfg.GatewayPort = 80
		}
	}
	if cfg.Framebuffer == "" {
		cfg.Framebuffer = "/dev/fb0"
	}
	if cfg.Tailnet == nil {
		enabled := true
		cfg.Tailnet = &enabled
	}
	if cfg.TouchTolerance == nil {
		tolerance := canvas.DefaultTolerance
		cfg.TouchTolerance = &tolerance
	}
	if cfg.TapMaxTravel == 0 {
		cfg.TapMaxTravel = eink.DefaultTapMaxTravel
	}
	if cfg.TapMaxDurationMs == 0 {
		cfg.TapMaxDurationMs = int(eink.DefaultTapMaxDuration / time.Millisecond)
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Name == "" {
		return errors.New("config requires name")
	}
	if cfg.Gateway == "" {
		return errors.New("config requires gateway")
	}
	if cfg.TouchTolerance != nil && *cfg.TouchTolerance < 0 {
		return fmt.Errorf("touchTolerance must be >= 0, got %d", *cfg.TouchTolerance)
	}
	if cfg.TapMaxTravel < 0 {
		return fmt.Errorf("tapMaxTravel must be >= 0, got %d", cfg.TapMaxTravel)
	}
	if cfg.TapMaxDurationMs < 0 {
		return fmt.Errorf("tapMaxDurationMs must be >= 0, got %d", cfg.TapMaxDurationMs)
	}
	return nil
}

func gatewayURL(tls bool, host string, port int, path string) string {
	scheme := "ws"
	if tls {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, host, port, path)
}

func userAgent(cfg FileConfig) string {
	if cfg.HTTPUserAgent != "" {
		return cfg.HTTPUserAgent
	}
	return "kobo-linktap/0.1"
}
