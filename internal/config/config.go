// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-presence.
//
// go-presence is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the verifier tool configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the presence tools.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Policy    PolicyConfig    `yaml:"policy"`
	Trust     TrustConfig     `yaml:"trust"`
	Pack      PackConfig      `yaml:"pack"`
	Challenge ChallengeConfig `yaml:"challenge"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// PolicyConfig locates the verification policy.
type PolicyConfig struct {
	File          string `yaml:"file"`
	RequireSigned bool   `yaml:"require_signed"`
}

// TrustConfig locates attestor trust material and selects how root
// validity is evaluated.
type TrustConfig struct {
	RootsFile string `yaml:"roots_file"`
	EvalMode  string `yaml:"eval_mode"` // strict, asof, both
}

// PackConfig pins the expected export pack signer.
type PackConfig struct {
	PinnedKeyFile string `yaml:"pinned_key_file"`
	PinnedKeyID   string `yaml:"pinned_key_id"`
}

// ChallengeConfig controls challenge issuance.
type ChallengeConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Trust:     TrustConfig{EvalMode: "strict"},
		Challenge: ChallengeConfig{TTL: 60 * time.Second},
	}
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("PRESENCE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if policyFile := os.Getenv("PRESENCE_POLICY_FILE"); policyFile != "" {
		cfg.Policy.File = policyFile
	}
	if rootsFile := os.Getenv("PRESENCE_TRUST_ROOTS"); rootsFile != "" {
		cfg.Trust.RootsFile = rootsFile
	}
	if mode := os.Getenv("PRESENCE_TRUST_EVAL"); mode != "" {
		cfg.Trust.EvalMode = mode
	}
	if keyID := os.Getenv("PRESENCE_PACK_KEY_ID"); keyID != "" {
		cfg.Pack.PinnedKeyID = keyID
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}
	switch c.Trust.EvalMode {
	case "", "strict", "asof", "both":
	default:
		return fmt.Errorf("invalid trust eval mode: %s", c.Trust.EvalMode)
	}
	if c.Challenge.TTL < 0 {
		return fmt.Errorf("challenge ttl cannot be negative")
	}
	return nil
}
