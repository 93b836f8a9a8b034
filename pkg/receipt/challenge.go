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

package receipt

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// challengeBytes is the entropy of a fresh challenge.
const challengeBytes = 32

// IssueChallenge builds a fresh challenge record bound to an action. The
// record starts unused and expires ttl after now.
func IssueChallenge(action *types.Action, ttl time.Duration, now time.Time) (*types.ChallengeRecord, error) {
	actionHash, fail := types.HashAction(action)
	if fail != nil {
		return nil, fail
	}
	raw := make([]byte, challengeBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("receipt: challenge entropy: %w", err)
	}
	return &types.ChallengeRecord{
		V:           types.VersionChallenge,
		ChallengeID: uuid.NewString(),
		Challenge:   canonical.EncodeB64URL(raw),
		ActionHash:  actionHash,
		Aud:         action.Aud,
		Purpose:     action.Purpose,
		ExpiresAt:   now.Add(ttl).UTC().Format(time.RFC3339),
		UsedAt:      nil,
	}, nil
}
