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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-presence/pkg/receipt"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

var challengeNewOpts struct {
	action  string
	aud     string
	purpose string
	ttl     time.Duration
}

// challengeCmd groups challenge operations.
var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Challenge operations",
}

// challengeNewCmd issues a challenge record bound to an action.
var challengeNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Issue a challenge bound to an action",
	Long: `Issue a single-use challenge record for the action in the given
file. The record carries the action hash, audience and purpose so a
receipt can only be produced for exactly this operation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(challengeNewOpts.action)
		if err != nil {
			return fmt.Errorf("read action: %w", err)
		}
		if challengeNewOpts.aud != "" || challengeNewOpts.purpose != "" {
			var doc map[string]any
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("action: %w", err)
			}
			if challengeNewOpts.aud != "" {
				doc["aud"] = challengeNewOpts.aud
			}
			if challengeNewOpts.purpose != "" {
				doc["purpose"] = challengeNewOpts.purpose
			}
			if data, err = json.Marshal(doc); err != nil {
				return fmt.Errorf("action: %w", err)
			}
		}
		action, fail := types.ParseAction(data)
		if fail != nil {
			return fmt.Errorf("action: %w", fail)
		}

		ttl := challengeNewOpts.ttl
		if ttl <= 0 {
			fileCfg, err := getConfig().LoadFileConfig()
			if err != nil {
				return err
			}
			ttl = fileCfg.Challenge.TTL
		}

		rec, err := receipt.IssueChallenge(action, ttl, time.Now())
		if err != nil {
			return err
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		return printer.PrintChallenge(rec)
	},
}

func init() {
	challengeNewCmd.Flags().StringVar(&challengeNewOpts.action, "action", "",
		"action JSON file the challenge binds to")
	challengeNewCmd.Flags().StringVar(&challengeNewOpts.aud, "aud", "",
		"audience override")
	challengeNewCmd.Flags().StringVar(&challengeNewOpts.purpose, "purpose", "",
		"purpose override")
	challengeNewCmd.Flags().DurationVar(&challengeNewOpts.ttl, "ttl", 0,
		"challenge lifetime (default from config, 60s)")

	_ = challengeNewCmd.MarkFlagRequired("action")

	challengeCmd.AddCommand(challengeNewCmd)
}
