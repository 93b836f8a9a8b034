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

import "errors"

var (
	// ErrChallengeNotFound is returned by a ChallengeStore when no record
	// exists for a challenge ID.
	ErrChallengeNotFound = errors.New("receipt: challenge not found")

	// ErrChallengeUsed is returned by a ChallengeStore when MarkUsed races a
	// concurrent consumer and loses.
	ErrChallengeUsed = errors.New("receipt: challenge already used")

	// ErrCredentialNotFound is returned by a CredentialStore when no public
	// key is registered for a credential ID.
	ErrCredentialNotFound = errors.New("receipt: credential not found")

	// ErrNoPublicKey indicates the verifier had neither a credential store
	// nor an explicit public key to check the assertion with.
	ErrNoPublicKey = errors.New("receipt: no credential store and no explicit public key")

	// ErrNoPolicy indicates the verifier was invoked without a policy.
	ErrNoPolicy = errors.New("receipt: verify policy required")
)
