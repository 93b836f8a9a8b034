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

// Package encoding provides cryptographic key encoding and decoding utilities.
//
// This package supports PEM and DER encoding for the two key types this
// module signs and verifies with: ECDSA P-256 and Ed25519. Private keys use
// PKCS#8, optionally encrypted with a passphrase.
package encoding

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/youmark/pkcs8"

	"github.com/jeremyhahn/go-presence/internal/password"
)

var (
	// ErrInvalidEncodingPEM is returned when PEM decoding fails.
	ErrInvalidEncodingPEM = errors.New("invalid PEM encoding")

	// ErrInvalidPassword is returned when the password is incorrect.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrInvalidKeyType is returned when an unsupported key type is provided.
	ErrInvalidKeyType = errors.New("invalid key type")
)

// EncodePrivateKey encodes a private key to ASN.1 DER PKCS#8 format.
//
// If a password is provided, the key will be encrypted using PKCS#8.
// If password is nil, the key will be encoded without encryption.
func EncodePrivateKey(privateKey crypto.PrivateKey, pwd password.Password) ([]byte, error) {
	if privateKey == nil {
		return nil, errors.New("private key cannot be nil")
	}
	if err := checkKeyType(privateKey); err != nil {
		return nil, err
	}

	var passwordBytes []byte
	if pwd != nil {
		passwordBytes = pwd.Bytes()
		defer func() {
			for i := range passwordBytes {
				passwordBytes[i] = 0
			}
		}()
	}

	pkcs8Data, err := pkcs8.MarshalPrivateKey(privateKey, passwordBytes, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return pkcs8Data, nil
}

// EncodePrivateKeyPEM encodes a private key to PEM format.
//
// Encrypted keys use the "ENCRYPTED PRIVATE KEY" block type, unencrypted
// keys use "PRIVATE KEY".
func EncodePrivateKeyPEM(privateKey crypto.PrivateKey, pwd password.Password) ([]byte, error) {
	der, err := EncodePrivateKey(privateKey, pwd)
	if err != nil {
		return nil, err
	}

	blockType := "PRIVATE KEY"
	if pwd != nil {
		blockType = "ENCRYPTED PRIVATE KEY"
	}

	buf := new(bytes.Buffer)
	if err := pem.Encode(buf, &pem.Block{
		Type:  blockType,
		Bytes: der,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode PEM: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodePrivateKeyPEM decodes a PEM encoded private key.
//
// The password parameter is required for encrypted keys and should be nil
// for unencrypted keys. Returns an error if the password is incorrect or
// if the PEM data is invalid.
func DecodePrivateKeyPEM(pemData []byte, pwd password.Password) (crypto.PrivateKey, error) {
	if len(pemData) == 0 {
		return nil, errors.New("PEM data cannot be empty")
	}

	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, ErrInvalidEncodingPEM
	}

	var passwordBytes []byte
	if pwd != nil {
		passwordBytes = pwd.Bytes()
		defer func() {
			for i := range passwordBytes {
				passwordBytes[i] = 0
			}
		}()
	}

	key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, passwordBytes)
	if err != nil {
		if strings.Contains(err.Error(), "pkcs8: incorrect password") {
			return nil, ErrInvalidPassword
		}
		// The PKCS8 package doesn't always return "incorrect password",
		// sometimes this ASN.1 error is given when it fails to parse the
		// private key because it's encrypted and the password is incorrect.
		if strings.Contains(err.Error(), "asn1: structure error: tags don't match") {
			return nil, ErrInvalidPassword
		}
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	if err := checkKeyType(key); err != nil {
		return nil, err
	}
	return key, nil
}

// DecodeEd25519PrivateKeyPEM decodes a PEM encoded private key and requires
// it to be Ed25519. Attestation and manifest signing accept no other type.
func DecodeEd25519PrivateKeyPEM(pemData []byte, pwd password.Password) (ed25519.PrivateKey, error) {
	key, err := DecodePrivateKeyPEM(pemData, pwd)
	if err != nil {
		return nil, err
	}
	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: want ed25519, got %T", ErrInvalidKeyType, key)
	}
	return edKey, nil
}

// EncodePublicKey encodes a public key to ASN.1 DER PKIX format.
func EncodePublicKey(publicKey crypto.PublicKey) ([]byte, error) {
	if publicKey == nil {
		return nil, errors.New("public key cannot be nil")
	}

	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	return der, nil
}

// EncodePublicKeyPEM encodes a public key to PEM format.
func EncodePublicKeyPEM(publicKey crypto.PublicKey) ([]byte, error) {
	der, err := EncodePublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := pem.Encode(buf, &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode PEM: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodePublicKeyPEM decodes a PEM encoded public key.
func DecodePublicKeyPEM(pemData []byte) (crypto.PublicKey, error) {
	if len(pemData) == 0 {
		return nil, errors.New("PEM data cannot be empty")
	}

	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, ErrInvalidEncodingPEM
	}

	publicKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return publicKey, nil
}

// DecodeEd25519PublicKeyPEM decodes a PEM encoded public key and requires it
// to be Ed25519.
func DecodeEd25519PublicKeyPEM(pemData []byte) (ed25519.PublicKey, error) {
	pub, err := DecodePublicKeyPEM(pemData)
	if err != nil {
		return nil, err
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: want ed25519, got %T", ErrInvalidKeyType, pub)
	}
	return edPub, nil
}

// ExtractPublicKey extracts the public key from a private key.
func ExtractPublicKey(privateKey crypto.PrivateKey) (crypto.PublicKey, error) {
	switch key := privateKey.(type) {
	case *ecdsa.PrivateKey:
		return &key.PublicKey, nil
	case ed25519.PrivateKey:
		return key.Public(), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidKeyType, privateKey)
	}
}

func checkKeyType(key crypto.PrivateKey) error {
	switch key.(type) {
	case *ecdsa.PrivateKey, ed25519.PrivateKey:
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrInvalidKeyType, key)
	}
}
