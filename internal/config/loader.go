package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadAndValidate is the loader binaries use. It loads with defaults
// applied and rejects anything Validate does not accept.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadWithDefaults loads a config file and applies defaults to unset fields.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Load reads one YAML config file as written, with no defaulting or
// validation. ${VAR} references expand against the process environment
// before the YAML is parsed; undefined variables expand to the empty
// string.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Config, error) {
	cfg := new(Config)
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
