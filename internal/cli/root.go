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

// Package cli implements the presence command line tools: offline pack
// verification, trust bundle verification, pack building and challenge
// issuance.
//
// Exit codes follow the verifier convention: 0 on success, 1 on a
// verification failure or operational error, 2 on a usage error.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-presence/pkg/logging"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitFail  = 1
	ExitUsage = 2
)

var (
	// Global configuration
	globalConfig *Config
	logger       *logging.Logger
)

// usageError marks an error caused by bad invocation rather than a failed
// verification.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// verificationError marks a completed run whose verdict is negative. The
// result has already been printed to stdout when this is returned.
type verificationError struct {
	detail string
}

func (e *verificationError) Error() string { return e.detail }

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "presence",
	Short: "presence CLI - WebAuthn receipt and export pack verification",
	Long: `presence CLI verifies presence receipts, attestations and signed
export packs entirely offline.

A pack directory contains a signed manifest, deterministic receipts
NDJSON and the policy/trust snapshots the receipts were verified
against. All verification is fail-closed: the first failing check
decides the verdict.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps errors to process exit codes.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var uerr *usageError
		if errors.As(err, &uerr) || isCobraUsageError(err) {
			return ExitUsage
		}
		return ExitFail
	}
	return ExitOK
}

// isCobraUsageError classifies the errors cobra itself produces for bad
// invocations, which do not pass through our usageError wrapper.
func isCobraUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.Contains(msg, "required flag(s)") ||
		strings.HasPrefix(msg, "accepts ")
}

func init() {
	globalConfig = NewConfig()
	logger = logging.DefaultLogger()

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.PersistentFlags().StringVar(&globalConfig.ConfigFile, "config", "",
		"config file (default is $HOME/.presence.yaml)")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat, "output", "o", "json",
		"output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&globalConfig.Verbose, "verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(packVerifyCmd)
	rootCmd.AddCommand(trustVerifyCmd)
	rootCmd.AddCommand(packBuildCmd)
	rootCmd.AddCommand(challengeCmd)
}

// getConfig returns the global configuration
func getConfig() *Config {
	return globalConfig
}

// getLogger returns a logger honoring the --verbose flag.
func getLogger() *logging.Logger {
	if globalConfig.Verbose {
		return logging.NewLogger(true)
	}
	return logger
}
