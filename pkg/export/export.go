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

// Package export builds and verifies signed receipt export packs.
//
// A pack is a set of files (deterministic receipts NDJSON plus policy and
// trust snapshots) fingerprinted by a manifest, with a detached Ed25519
// signature over the canonicalized manifest. Every snapshot is hashed over
// the exact bytes shipped, so a verifier never has to re-serialize anything
// except the manifest itself.
package export

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-presence/internal/encoding"
	"github.com/jeremyhahn/go-presence/pkg/canonical"
	"github.com/jeremyhahn/go-presence/pkg/jwk"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// File names inside a pack directory.
const (
	FileManifest    = "manifest.json"
	FileManifestSig = "manifest.sig.json"
	FileReceipts    = "receipts.ndjson"
	FilePolicy      = "policy.snapshot.json"
	FileTrust       = "trust.snapshot.json"
)

// SignatureAlgorithm is the only manifest signature algorithm produced or
// accepted.
const SignatureAlgorithm = "Ed25519"

// Pack is an export pack held in memory: the manifest, its detached
// signature, and the payload files by name.
type Pack struct {
	Manifest  *types.ExportManifest
	Signature *types.ManifestSignature
	Files     map[string][]byte
}

// Build assembles and signs an export pack.
//
// Each entry is canonicalized to one NDJSON line; lines are joined with a
// single newline so the same entries always produce byte-identical output.
// policySnapshot is required; trustSnapshot may be nil, in which case the
// pack ships without a trust snapshot file. keyID may be empty, in which
// case it is computed from the signing key's public JWK; a non-empty keyID
// must equal that fingerprint.
func Build(entries []*types.ExportEntry, filters map[string]any, policySnapshot, trustSnapshot []byte,
	key ed25519.PrivateKey, keyID string, now time.Time) (*Pack, error) {

	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("export: bad signing key length %d", len(key))
	}
	if len(policySnapshot) == 0 {
		return nil, fmt.Errorf("export: policy snapshot is required")
	}

	lines := make([]string, 0, len(entries))
	for i, entry := range entries {
		line, err := canonical.Canonicalize(entry)
		if err != nil {
			return nil, fmt.Errorf("export: entry %d: %w", i, err)
		}
		lines = append(lines, string(line))
	}

	files := map[string][]byte{
		FileReceipts: []byte(strings.Join(lines, "\n")),
		FilePolicy:   policySnapshot,
	}
	if trustSnapshot != nil {
		files[FileTrust] = trustSnapshot
	}

	digests := make(map[string]types.FileDigest, len(files))
	for name, data := range files {
		digests[name] = types.FileDigest{
			Sha256: canonical.Sha256Hex(data),
			Bytes:  int64(len(data)),
		}
	}

	manifest := &types.ExportManifest{
		V:           types.VersionExportManifest,
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Filters:     filters,
		TotalCount:  len(entries),
		Files:       digests,
	}

	manifestBytes, err := canonical.Canonicalize(manifest)
	if err != nil {
		return nil, fmt.Errorf("export: canonicalize manifest: %w", err)
	}

	signerJWK, err := jwk.FromEd25519PublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("export: signer JWK: %w", err)
	}
	kid, err := signerJWK.KeyID()
	if err != nil {
		return nil, fmt.Errorf("export: signer kid: %w", err)
	}
	if keyID == "" {
		keyID = kid
	} else if keyID != kid {
		return nil, fmt.Errorf("export: keyId %s is not the signing key's fingerprint", keyID)
	}

	pubPEM, err := encoding.EncodePublicKeyPEM(key.Public())
	if err != nil {
		return nil, fmt.Errorf("export: encode public key: %w", err)
	}

	sig := ed25519.Sign(key, manifestBytes)
	return &Pack{
		Manifest: manifest,
		Signature: &types.ManifestSignature{
			Algorithm:       SignatureAlgorithm,
			KeyID:           keyID,
			PublicKeyPem:    string(pubPEM),
			SignatureB64Url: canonical.EncodeB64URL(sig),
			ManifestSha256:  canonical.Sha256Hex(manifestBytes),
			SignedAt:        now.UTC().Format(time.RFC3339),
		},
		Files: files,
	}, nil
}

// VerifyOpts pins the expected manifest signer. Without a pin the signature
// check only proves some Ed25519 key signed the manifest; authenticity
// requires the caller to pin the key or keyId out-of-band.
type VerifyOpts struct {
	PinnedPublicKey ed25519.PublicKey
	PinnedKeyID     string
}

// Result reports a pack verification outcome.
type Result struct {
	OK     bool       `json:"ok"`
	Code   types.Code `json:"code,omitempty"`
	Detail string     `json:"detail,omitempty"`
}

func denied(code types.Code, detail string) *Result {
	return &Result{Code: code, Detail: detail}
}

// Verify checks a pack's integrity: manifest signature, declared manifest
// hash, exact file-set equality, and every file's digest and length. All
// four must pass; the first failure invalidates the pack.
func (p *Pack) Verify(opts VerifyOpts) *Result {
	if p.Manifest == nil || p.Signature == nil {
		return denied(types.CodeInvalidStructure, "pack is missing manifest or signature")
	}
	if p.Signature.Algorithm != SignatureAlgorithm {
		return denied(types.CodeInvalidStructure,
			fmt.Sprintf("unsupported signature algorithm %q", p.Signature.Algorithm))
	}

	pub := opts.PinnedPublicKey
	if pub == nil {
		var err error
		pub, err = encoding.DecodeEd25519PublicKeyPEM([]byte(p.Signature.PublicKeyPem))
		if err != nil {
			return denied(types.CodeInvalidStructure, fmt.Sprintf("signer public key: %v", err))
		}
	}

	// The keyId must be the fingerprint of the key the signature actually
	// verifies against, not just a declared string, or a re-signed manifest
	// could keep the original keyId while shipping a different key.
	signerJWK, err := jwk.FromEd25519PublicKey(pub)
	if err != nil {
		return denied(types.CodeInvalidStructure, fmt.Sprintf("signer public key: %v", err))
	}
	kid, err := signerJWK.KeyID()
	if err != nil {
		return denied(types.CodeInvalidStructure, fmt.Sprintf("signer kid: %v", err))
	}
	if kid != p.Signature.KeyID {
		return denied(types.CodeManifestSigInvalid,
			fmt.Sprintf("declared keyId %s is not the verification key's fingerprint", p.Signature.KeyID))
	}
	if opts.PinnedKeyID != "" && opts.PinnedKeyID != kid {
		return denied(types.CodeManifestSigInvalid,
			fmt.Sprintf("signer keyId %s does not match pinned keyId", kid))
	}

	manifestBytes, err := canonical.Canonicalize(p.Manifest)
	if err != nil {
		return denied(types.CodeInvalidStructure, fmt.Sprintf("canonicalize manifest: %v", err))
	}
	sig, err := canonical.DecodeB64URL(p.Signature.SignatureB64Url)
	if err != nil {
		return denied(types.CodeInvalidEncoding, "manifest signature: not base64url")
	}
	if !ed25519.Verify(pub, manifestBytes, sig) {
		return denied(types.CodeManifestSigInvalid, "signature does not verify over canonicalized manifest")
	}

	if canonical.Sha256Hex(manifestBytes) != p.Signature.ManifestSha256 {
		return denied(types.CodeManifestHashMismatch,
			"recomputed manifest hash does not match declared manifestSha256")
	}

	// Exact file-set equality: no extra files, no missing files.
	for name := range p.Manifest.Files {
		if _, ok := p.Files[name]; !ok {
			return denied(types.CodeFileSetMismatch, fmt.Sprintf("manifest lists missing file %s", name))
		}
	}
	for name := range p.Files {
		if _, ok := p.Manifest.Files[name]; !ok {
			return denied(types.CodeFileSetMismatch, fmt.Sprintf("pack contains unlisted file %s", name))
		}
	}

	for name, want := range p.Manifest.Files {
		data := p.Files[name]
		if int64(len(data)) != want.Bytes {
			return denied(types.CodeFileDigestMismatch,
				fmt.Sprintf("%s: %d bytes, manifest declares %d", name, len(data), want.Bytes))
		}
		if canonical.Sha256Hex(data) != want.Sha256 {
			return denied(types.CodeFileDigestMismatch, fmt.Sprintf("%s: sha256 mismatch", name))
		}
	}

	return &Result{OK: true}
}

// Entries decodes and validates the pack's receipts NDJSON.
func (p *Pack) Entries() ([]*types.ExportEntry, *types.Failure) {
	data, ok := p.Files[FileReceipts]
	if !ok {
		return nil, types.Failuref(types.CodeInvalidStructure, "pack has no %s", FileReceipts)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []*types.ExportEntry
	for i, line := range bytes.Split(data, []byte("\n")) {
		entry, fail := types.ParseExportEntry(line)
		if fail != nil {
			return nil, types.Failuref(fail.Code, "receipts line %d: %s", i+1, fail.Detail)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
