// Package config loads the service configuration from a JSON or YAML file
// with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/wastemaster/wastemaster/auth"
	"github.com/wastemaster/wastemaster/core/metrics"
	"github.com/wastemaster/wastemaster/core/orchestrator"
	"github.com/wastemaster/wastemaster/infra/mqtt"
)

type Config struct {
	MQTT         mqtt.Config         `json:"mqtt"`
	Orchestrator orchestrator.Config `json:"orchestrator"`
	Metrics      metrics.Config      `json:"metrics"`
	Store        StoreConfig         `json:"store"`
	PassLog      PassLogConfig       `json:"pass_log"`
	Auth         AuthConfig          `json:"auth"`
}

// AuthConfig lists the accounts allowed to send lifecycle signals.
type AuthConfig struct {
	Accounts []auth.Account `json:"accounts"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("WM_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "wm_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Orchestrator.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.PassLog.SetDefaults()
	if err := cfg.Orchestrator.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.PassLog.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
