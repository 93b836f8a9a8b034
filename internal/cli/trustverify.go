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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-presence/pkg/trust"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

var trustVerifyOpts struct {
	bundle    string
	roots     string
	pretty    bool
	trustEval string
	trustNow  string
}

// trustVerifyCmd verifies a signed attestor trust bundle against a root set.
var trustVerifyCmd = &cobra.Command{
	Use:   "attestor-trust-verify",
	Short: "Verify a signed attestor trust bundle against a root set",
	Long: `Verify a signed trust bundle: the signer's keyId must match its
embedded public key, resolve to a trusted, non-revoked, time-valid
root, and the Ed25519 signature must cover the canonicalized bundle
with the signature field removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundleData, err := os.ReadFile(trustVerifyOpts.bundle)
		if err != nil {
			return fmt.Errorf("read bundle: %w", err)
		}
		bundle, fail := types.ParseSignedTrustBundle(bundleData)
		if fail != nil {
			return fmt.Errorf("bundle: %w", fail)
		}

		rootsData, err := os.ReadFile(trustVerifyOpts.roots)
		if err != nil {
			return fmt.Errorf("read roots: %w", err)
		}
		roots, fail := types.ParseTrustRootsFile(rootsData)
		if fail != nil {
			return fmt.Errorf("roots: %w", fail)
		}

		mode, err := trust.ParseEvalMode(trustVerifyOpts.trustEval)
		if err != nil {
			return usagef("--trust-eval: %v", err)
		}
		now := time.Now()
		if trustVerifyOpts.trustNow != "" {
			now, err = time.Parse(time.RFC3339, trustVerifyOpts.trustNow)
			if err != nil {
				return usagef("--trust-now: not an RFC3339 timestamp: %q", trustVerifyOpts.trustNow)
			}
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout).Pretty(trustVerifyOpts.pretty)

		fields := map[string]any{}
		if bundle.Signature != nil {
			fields["keyId"] = bundle.Signature.KeyID
		}
		if fail := trust.VerifySignedBundle(bundle, roots, mode, now, now); fail != nil {
			fields["code"] = fail.Code
			fields["detail"] = fail.Detail
			if err := printer.PrintVerdict(false, fields); err != nil {
				return err
			}
			return &verificationError{detail: fail.Error()}
		}
		return printer.PrintVerdict(true, fields)
	},
}

func init() {
	trustVerifyCmd.Flags().StringVar(&trustVerifyOpts.bundle, "bundle", "",
		"signed trust bundle file")
	trustVerifyCmd.Flags().StringVar(&trustVerifyOpts.roots, "roots", "",
		"trust roots file")
	trustVerifyCmd.Flags().BoolVar(&trustVerifyOpts.pretty, "pretty", false,
		"pretty-print the JSON result")
	trustVerifyCmd.Flags().StringVar(&trustVerifyOpts.trustEval, "trust-eval", "strict",
		"trust evaluation mode (strict, asof, both)")
	trustVerifyCmd.Flags().StringVar(&trustVerifyOpts.trustNow, "trust-now", "",
		"RFC3339 instant for trust evaluation (default wall clock)")

	_ = trustVerifyCmd.MarkFlagRequired("bundle")
	_ = trustVerifyCmd.MarkFlagRequired("roots")
}
