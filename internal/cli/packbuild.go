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
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-presence/internal/encoding"
	"github.com/jeremyhahn/go-presence/internal/password"
	"github.com/jeremyhahn/go-presence/pkg/export"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

var packBuildOpts struct {
	receipts string
	policy   string
	trust    string
	key      string
	out      string
	aud      string
}

// packBuildCmd assembles and signs an export pack.
var packBuildCmd = &cobra.Command{
	Use:   "pack-build",
	Short: "Build and sign an export pack",
	Long: `Build an export pack from a receipts NDJSON file and the policy
snapshot the receipts were verified against, then sign its manifest
with an Ed25519 key.

The signing key is a PKCS#8 PEM file. Encrypted keys read their
passphrase from the PRESENCE_KEY_PASSWORD environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		receiptsData, err := os.ReadFile(packBuildOpts.receipts)
		if err != nil {
			return fmt.Errorf("read receipts: %w", err)
		}
		var entries []*types.ExportEntry
		for i, line := range bytes.Split(bytes.TrimSpace(receiptsData), []byte("\n")) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			entry, fail := types.ParseExportEntry(line)
			if fail != nil {
				return fmt.Errorf("receipts line %d: %w", i+1, fail)
			}
			entries = append(entries, entry)
		}
		if len(entries) == 0 {
			return usagef("--receipts: %s contains no entries", packBuildOpts.receipts)
		}

		policyData, err := os.ReadFile(packBuildOpts.policy)
		if err != nil {
			return fmt.Errorf("read policy: %w", err)
		}
		var trustData []byte
		if packBuildOpts.trust != "" {
			trustData, err = os.ReadFile(packBuildOpts.trust)
			if err != nil {
				return fmt.Errorf("read trust snapshot: %w", err)
			}
		}

		keyData, err := os.ReadFile(packBuildOpts.key)
		if err != nil {
			return fmt.Errorf("read signing key: %w", err)
		}
		var pwd password.Password
		if pass := os.Getenv("PRESENCE_KEY_PASSWORD"); pass != "" {
			pwd, err = password.NewClearPasswordFromString(pass)
			if err != nil {
				return err
			}
			defer pwd.Clear()
		}
		key, err := encoding.DecodeEd25519PrivateKeyPEM(keyData, pwd)
		if err != nil {
			return fmt.Errorf("signing key: %w", err)
		}

		filters := map[string]any{}
		if packBuildOpts.aud != "" {
			filters["aud"] = packBuildOpts.aud
		}

		pack, err := export.Build(entries, filters, policyData, trustData, key, "", time.Now())
		if err != nil {
			return err
		}
		if err := export.WriteDir(pack, packBuildOpts.out); err != nil {
			return err
		}

		getLogger().Info("pack built",
			"dir", packBuildOpts.out,
			"receipts", len(entries),
			"keyId", pack.Signature.KeyID)

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		return printer.PrintVerdict(true, map[string]any{
			"packDir":        packBuildOpts.out,
			"receiptCount":   len(entries),
			"keyId":          pack.Signature.KeyID,
			"manifestSha256": pack.Signature.ManifestSha256,
		})
	},
}

func init() {
	packBuildCmd.Flags().StringVar(&packBuildOpts.receipts, "receipts", "",
		"receipts NDJSON file (one export entry per line)")
	packBuildCmd.Flags().StringVar(&packBuildOpts.policy, "policy", "",
		"policy snapshot file to ship in the pack")
	packBuildCmd.Flags().StringVar(&packBuildOpts.trust, "trust", "",
		"trust snapshot file to ship in the pack")
	packBuildCmd.Flags().StringVar(&packBuildOpts.key, "key", "",
		"Ed25519 PKCS#8 PEM signing key")
	packBuildCmd.Flags().StringVar(&packBuildOpts.out, "out", "",
		"output pack directory")
	packBuildCmd.Flags().StringVar(&packBuildOpts.aud, "aud", "",
		"audience filter recorded in the manifest")

	_ = packBuildCmd.MarkFlagRequired("receipts")
	_ = packBuildCmd.MarkFlagRequired("policy")
	_ = packBuildCmd.MarkFlagRequired("key")
	_ = packBuildCmd.MarkFlagRequired("out")
}
