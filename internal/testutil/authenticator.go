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

// Package testutil provides a software authenticator that emulates a WebAuthn
// device for tests: it produces genuine ES256 assertions over caller-chosen
// challenges, origins and flags.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
	"github.com/jeremyhahn/go-presence/pkg/jwk"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// Authenticator simulates a WebAuthn authenticator. Each instance holds one
// P-256 credential.
type Authenticator struct {
	RPID         string
	Origin       string
	CredentialID []byte
	SignCount    uint32
	UserPresent  bool
	UserVerified bool
	CrossOrigin  *bool

	privateKey *ecdsa.PrivateKey
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithUserPresent controls the UP flag on produced assertions.
func WithUserPresent(up bool) Option {
	return func(a *Authenticator) { a.UserPresent = up }
}

// WithUserVerified controls the UV flag on produced assertions.
func WithUserVerified(uv bool) Option {
	return func(a *Authenticator) { a.UserVerified = uv }
}

// WithCrossOrigin sets the crossOrigin member of clientDataJSON.
func WithCrossOrigin(cross bool) Option {
	return func(a *Authenticator) { a.CrossOrigin = &cross }
}

// WithSignCount sets the initial signature counter.
func WithSignCount(count uint32) Option {
	return func(a *Authenticator) { a.SignCount = count }
}

// NewAuthenticator creates a software authenticator with a fresh P-256 key.
func NewAuthenticator(rpID, origin string, opts ...Option) (*Authenticator, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		return nil, err
	}
	a := &Authenticator{
		RPID:         rpID,
		Origin:       origin,
		CredentialID: credID,
		UserPresent:  true,
		UserVerified: true,
		privateKey:   privateKey,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// PublicKeyJWK returns the credential public key as a JWK.
func (a *Authenticator) PublicKeyJWK() (*jwk.JWK, error) {
	return jwk.FromECDSAPublicKey(&a.privateKey.PublicKey)
}

// PublicKey returns the credential's ECDSA public key.
func (a *Authenticator) PublicKey() *ecdsa.PublicKey {
	return &a.privateKey.PublicKey
}

// CredIDB64 returns the credential ID in its wire encoding.
func (a *Authenticator) CredIDB64() string {
	return canonical.EncodeB64URL(a.CredentialID)
}

// Assert produces an ES256 assertion over the given challenge string, exactly
// as a device ceremony would during a "webauthn.get" flow.
func (a *Authenticator) Assert(challenge string) (*types.AuthorSig, error) {
	a.SignCount++

	clientData := map[string]any{
		"type":      "webauthn.get",
		"challenge": challenge,
		"origin":    a.Origin,
	}
	if a.CrossOrigin != nil {
		clientData["crossOrigin"] = *a.CrossOrigin
	}
	clientDataJSON, err := json.Marshal(clientData)
	if err != nil {
		return nil, err
	}

	authData := a.buildAuthenticatorData()
	clientDataHash := sha256.Sum256(clientDataJSON)
	signedBase := append(append([]byte{}, authData...), clientDataHash[:]...)
	baseHash := sha256.Sum256(signedBase)

	sig, err := ecdsa.SignASN1(rand.Reader, a.privateKey, baseHash[:])
	if err != nil {
		return nil, err
	}

	return &types.AuthorSig{
		CredID:            a.CredIDB64(),
		AuthenticatorData: canonical.EncodeB64URL(authData),
		ClientDataJSON:    canonical.EncodeB64URL(clientDataJSON),
		Signature:         canonical.EncodeB64URL(sig),
	}, nil
}

// Receipt assembles a full receipt for a challenge record by running the
// assertion ceremony over its challenge.
func (a *Authenticator) Receipt(rec *types.ChallengeRecord) (*types.Receipt, error) {
	sig, err := a.Assert(rec.Challenge)
	if err != nil {
		return nil, err
	}
	return &types.Receipt{
		V:           types.VersionReceipt,
		ChallengeID: rec.ChallengeID,
		Challenge:   rec.Challenge,
		ActionHash:  rec.ActionHash,
		Aud:         rec.Aud,
		Purpose:     rec.Purpose,
		AuthorSig:   *sig,
	}, nil
}

func (a *Authenticator) buildAuthenticatorData() []byte {
	rpIDHash := sha256.Sum256([]byte(a.RPID))

	var flags byte
	if a.UserPresent {
		flags |= 0x01
	}
	if a.UserVerified {
		flags |= 0x04
	}

	out := make([]byte, 0, 37)
	out = append(out, rpIDHash[:]...)
	out = append(out, flags)
	out = binary.BigEndian.AppendUint32(out, a.SignCount)
	return out
}
