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

	"github.com/jeremyhahn/go-presence/internal/encoding"
	"github.com/jeremyhahn/go-presence/pkg/offline"
	"github.com/jeremyhahn/go-presence/pkg/trust"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

var packVerifyOpts struct {
	pretty            bool
	attestorTrust     string
	attestorAllowlist string
	trustEval         string
	trustNow          string
	pinnedKeyFile     string
	pinnedKeyID       string
}

// packVerifyCmd verifies a complete export pack offline.
var packVerifyCmd = &cobra.Command{
	Use:   "pack-verify <packDir>",
	Short: "Verify an export pack offline",
	Long: `Verify an export pack: manifest signature and file digests, the
policy snapshot, every receipt, every attestation, and optionally the
attestor trust chain.

The verdict is printed to stdout as JSON. Exit code 0 means the pack
verified, 1 means it did not.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := offline.Options{}

		fileCfg, err := getConfig().LoadFileConfig()
		if err != nil {
			return err
		}
		if packVerifyOpts.trustEval == "" {
			packVerifyOpts.trustEval = fileCfg.Trust.EvalMode
		}
		if packVerifyOpts.trustEval == "" {
			packVerifyOpts.trustEval = "strict"
		}
		if packVerifyOpts.pinnedKeyID == "" {
			packVerifyOpts.pinnedKeyID = fileCfg.Pack.PinnedKeyID
		}
		if packVerifyOpts.pinnedKeyFile == "" {
			packVerifyOpts.pinnedKeyFile = fileCfg.Pack.PinnedKeyFile
		}
		if packVerifyOpts.attestorTrust == "" {
			packVerifyOpts.attestorTrust = fileCfg.Trust.RootsFile
		}

		mode, err := trust.ParseEvalMode(packVerifyOpts.trustEval)
		if err != nil {
			return usagef("--trust-eval: %v", err)
		}
		opts.TrustEval = mode

		if packVerifyOpts.trustNow != "" {
			now, err := time.Parse(time.RFC3339, packVerifyOpts.trustNow)
			if err != nil {
				return usagef("--trust-now: not an RFC3339 timestamp: %q", packVerifyOpts.trustNow)
			}
			opts.Now = now
		}

		if packVerifyOpts.attestorTrust != "" {
			data, err := os.ReadFile(packVerifyOpts.attestorTrust)
			if err != nil {
				return fmt.Errorf("read attestor trust file: %w", err)
			}
			roots, fail := types.ParseTrustRootsFile(data)
			if fail != nil {
				return fmt.Errorf("attestor trust file: %w", fail)
			}
			opts.TrustRoots = roots
		}

		if packVerifyOpts.attestorAllowlist != "" {
			if opts.TrustRoots == nil {
				return usagef("--attestor-allowlist requires --attestor-trust")
			}
			data, err := os.ReadFile(packVerifyOpts.attestorAllowlist)
			if err != nil {
				return fmt.Errorf("read attestor allowlist: %w", err)
			}
			bundle, fail := types.ParseSignedTrustBundle(data)
			if fail != nil {
				return fmt.Errorf("attestor allowlist: %w", fail)
			}
			opts.AttestorAllowlist = bundle
		}

		if packVerifyOpts.pinnedKeyFile != "" {
			data, err := os.ReadFile(packVerifyOpts.pinnedKeyFile)
			if err != nil {
				return fmt.Errorf("read pinned key file: %w", err)
			}
			pub, err := encoding.DecodeEd25519PublicKeyPEM(data)
			if err != nil {
				return fmt.Errorf("pinned key file: %w", err)
			}
			opts.PinnedPackKey = pub
		}
		opts.PinnedPackKeyID = packVerifyOpts.pinnedKeyID

		getLogger().Debug("verifying pack", "dir", args[0], "trustEval", string(mode))

		report, err := offline.VerifyPack(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout).Pretty(packVerifyOpts.pretty)
		if err := printer.PrintReport(report); err != nil {
			return err
		}
		if !report.OK {
			last := report.Stages[len(report.Stages)-1]
			return &verificationError{detail: fmt.Sprintf("%s: [%s] %s", last.Stage, last.Code, last.Detail)}
		}
		return nil
	},
}

func init() {
	packVerifyCmd.Flags().BoolVar(&packVerifyOpts.pretty, "pretty", false,
		"pretty-print the JSON result")
	packVerifyCmd.Flags().StringVar(&packVerifyOpts.attestorTrust, "attestor-trust", "",
		"trust roots file to evaluate attestation signers against")
	packVerifyCmd.Flags().StringVar(&packVerifyOpts.attestorAllowlist, "attestor-allowlist", "",
		"signed attestor allowlist bundle (requires --attestor-trust)")
	packVerifyCmd.Flags().StringVar(&packVerifyOpts.trustEval, "trust-eval", "",
		"trust evaluation mode (strict, asof, both; default strict)")
	packVerifyCmd.Flags().StringVar(&packVerifyOpts.trustNow, "trust-now", "",
		"RFC3339 instant for strict trust evaluation (default wall clock)")
	packVerifyCmd.Flags().StringVar(&packVerifyOpts.pinnedKeyFile, "pinned-key", "",
		"PEM public key the pack manifest must be signed with")
	packVerifyCmd.Flags().StringVar(&packVerifyOpts.pinnedKeyID, "pinned-key-id", "",
		"keyId the pack manifest signature must declare")
}
