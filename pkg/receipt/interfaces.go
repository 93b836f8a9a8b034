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
	"context"

	"github.com/jeremyhahn/go-presence/pkg/jwk"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// ChallengeStore is the challenge persistence layer supplied by the caller.
//
// Implementations must make get-then-mark-used effectively atomic across one
// verification attempt: two attempts racing on the same challengeId must not
// both observe UsedAt == nil and both succeed. The verifier calls the two
// operations in order and relies on the store for that guarantee (a
// conditional UPDATE, or a transaction with row-level locking).
type ChallengeStore interface {
	// GetChallenge retrieves a challenge record by ID.
	// Returns ErrChallengeNotFound if no record exists.
	GetChallenge(ctx context.Context, challengeID string) (*types.ChallengeRecord, error)

	// MarkUsed transitions the record from unused to used, recording the
	// verified receipt hash for audit linkage. Returns ErrChallengeUsed if
	// the record was already consumed.
	MarkUsed(ctx context.Context, challengeID, receiptHash string) error
}

// CredentialStore resolves WebAuthn credential public keys.
type CredentialStore interface {
	// GetPublicKeyJWK retrieves the P-256 public key registered for a
	// credential ID. Returns ErrCredentialNotFound if the credential is
	// unknown.
	GetPublicKeyJWK(ctx context.Context, credID string) (*jwk.JWK, error)
}
