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

// Package jwk models the public JSON Web Keys exchanged by this module:
// P-256 ECDSA keys for WebAuthn credentials and Ed25519 keys for verifiers,
// attestors and trust roots.
//
// A key's stable fingerprint (key ID) is the SHA-256 of its canonicalized
// public form. Only the kty/crv/x/y members participate in the fingerprint;
// metadata such as alg or kid never does.
package jwk

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"errors"
	"fmt"
	"math/big"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
)

var (
	// ErrInvalidKeyType is returned for a kty/crv combination this module
	// does not exchange.
	ErrInvalidKeyType = errors.New("jwk: unsupported key type")

	// ErrInvalidCoordinate is returned when a coordinate fails to decode or
	// has the wrong length for its curve.
	ErrInvalidCoordinate = errors.New("jwk: invalid key coordinate")
)

// Key type and curve values used on the wire.
const (
	KeyTypeEC  = "EC"
	KeyTypeOKP = "OKP"

	CurveP256    = "P-256"
	CurveEd25519 = "Ed25519"
)

// JWK is a public JSON Web Key (RFC 7517), restricted to the members relevant
// to EC P-256 and OKP Ed25519 public keys.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
}

// PublicOnly returns a copy stripped to the members that define the key
// material. This is the form that is canonicalized and fingerprinted.
func (k *JWK) PublicOnly() *JWK {
	return &JWK{Kty: k.Kty, Crv: k.Crv, X: k.X, Y: k.Y}
}

// KeyID returns the stable fingerprint of k: the lowercase hex SHA-256 of the
// canonicalized public-only form.
func (k *JWK) KeyID() (string, error) {
	if err := k.validate(); err != nil {
		return "", err
	}
	return canonical.Sha256HexCanonical(k.PublicOnly())
}

func (k *JWK) validate() error {
	switch {
	case k.Kty == KeyTypeEC && k.Crv == CurveP256:
		if k.X == "" || k.Y == "" {
			return ErrInvalidCoordinate
		}
	case k.Kty == KeyTypeOKP && k.Crv == CurveEd25519:
		if k.X == "" {
			return ErrInvalidCoordinate
		}
	default:
		return fmt.Errorf("%w: kty=%q crv=%q", ErrInvalidKeyType, k.Kty, k.Crv)
	}
	return nil
}

// ECDSAPublicKey materializes a P-256 ECDSA public key from k.
func (k *JWK) ECDSAPublicKey() (*ecdsa.PublicKey, error) {
	if k.Kty != KeyTypeEC || k.Crv != CurveP256 {
		return nil, fmt.Errorf("%w: kty=%q crv=%q", ErrInvalidKeyType, k.Kty, k.Crv)
	}
	x, err := decodeCoordinate(k.X, 32)
	if err != nil {
		return nil, err
	}
	y, err := decodeCoordinate(k.Y, 32)
	if err != nil {
		return nil, err
	}
	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, ErrInvalidCoordinate
	}
	return pub, nil
}

// Ed25519PublicKey materializes an Ed25519 public key from k.
func (k *JWK) Ed25519PublicKey() (ed25519.PublicKey, error) {
	if k.Kty != KeyTypeOKP || k.Crv != CurveEd25519 {
		return nil, fmt.Errorf("%w: kty=%q crv=%q", ErrInvalidKeyType, k.Kty, k.Crv)
	}
	x, err := decodeCoordinate(k.X, ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(x), nil
}

// FromECDSAPublicKey builds a JWK from a P-256 public key.
func FromECDSAPublicKey(pub *ecdsa.PublicKey) (*JWK, error) {
	if pub == nil || pub.Curve != elliptic.P256() {
		return nil, ErrInvalidKeyType
	}
	return &JWK{
		Kty: KeyTypeEC,
		Crv: CurveP256,
		X:   canonical.EncodeB64URL(padCoordinate(pub.X, 32)),
		Y:   canonical.EncodeB64URL(padCoordinate(pub.Y, 32)),
	}, nil
}

// FromEd25519PublicKey builds a JWK from an Ed25519 public key.
func FromEd25519PublicKey(pub ed25519.PublicKey) (*JWK, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, ErrInvalidCoordinate
	}
	return &JWK{
		Kty: KeyTypeOKP,
		Crv: CurveEd25519,
		X:   canonical.EncodeB64URL(pub),
	}, nil
}

func decodeCoordinate(s string, size int) ([]byte, error) {
	b, err := canonical.DecodeB64URL(s)
	if err != nil {
		return nil, ErrInvalidCoordinate
	}
	if len(b) != size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidCoordinate, len(b), size)
	}
	return b, nil
}

func padCoordinate(v *big.Int, size int) []byte {
	out := make([]byte, size)
	v.FillBytes(out)
	return out
}
