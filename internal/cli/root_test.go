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

package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.OutputFormat != "json" {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if cfg.Verbose {
		t.Error("Verbose should be false by default")
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile should be empty by default, got %v", cfg.ConfigFile)
	}
}

func TestConfig_LoadFileConfigDefaults(t *testing.T) {
	// No --config and no $HOME/.presence.yaml falls back to built-in
	// defaults instead of failing.
	t.Setenv("HOME", t.TempDir())

	cfg := NewConfig()
	fileCfg, err := cfg.LoadFileConfig()
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fileCfg.Trust.EvalMode != "strict" {
		t.Errorf("Trust.EvalMode = %v, want strict", fileCfg.Trust.EvalMode)
	}
}

func TestConfig_LoadFileConfigMissingExplicitPath(t *testing.T) {
	cfg := NewConfig()
	cfg.ConfigFile = "/nonexistent/presence.yaml"

	if _, err := cfg.LoadFileConfig(); err == nil {
		t.Error("expected error for explicit missing config file")
	}
}

func TestIsCobraUsageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unknown command", errors.New(`unknown command "frobnicate" for "presence"`), true},
		{"required flags", errors.New(`required flag(s) "bundle", "roots" not set`), true},
		{"bad arg count", errors.New("accepts 1 arg(s), received 0"), true},
		{"io error", errors.New("read attestor trust file: no such file"), false},
		{"verification error", &verificationError{detail: "pack_integrity: [file_digest_mismatch]"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCobraUsageError(tt.err); got != tt.want {
				t.Errorf("isCobraUsageError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestUsageErrorUnwraps(t *testing.T) {
	sentinel := errors.New("bad flag")
	err := &usageError{err: sentinel}

	if !errors.Is(err, sentinel) {
		t.Error("usageError should unwrap to the underlying error")
	}

	wrapped := fmt.Errorf("context: %w", usagef("--trust-now: not an RFC3339 timestamp"))
	var uerr *usageError
	if !errors.As(wrapped, &uerr) {
		t.Error("errors.As should find a usageError through wrapping")
	}
}
