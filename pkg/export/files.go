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

package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeremyhahn/go-presence/pkg/types"
)

// ReadDir loads a pack from a directory. Every regular file in the directory
// other than the manifest and its signature is treated as a payload file, so
// files a builder never shipped still surface as a file-set mismatch during
// Verify.
func ReadDir(dir string) (*Pack, error) {
	manifestData, err := os.ReadFile(filepath.Join(dir, FileManifest))
	if err != nil {
		return nil, fmt.Errorf("export: read manifest: %w", err)
	}
	manifest, fail := types.ParseExportManifest(manifestData)
	if fail != nil {
		return nil, fmt.Errorf("export: %w", fail)
	}

	sigData, err := os.ReadFile(filepath.Join(dir, FileManifestSig))
	if err != nil {
		return nil, fmt.Errorf("export: read manifest signature: %w", err)
	}
	sig, fail := types.ParseManifestSignature(sigData)
	if fail != nil {
		return nil, fmt.Errorf("export: %w", fail)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("export: read pack dir: %w", err)
	}

	files := make(map[string][]byte)
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if name == FileManifest || name == FileManifestSig {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("export: read %s: %w", name, err)
		}
		files[name] = data
	}

	return &Pack{Manifest: manifest, Signature: sig, Files: files}, nil
}

// WriteDir writes a pack to a directory, creating it if needed. Payload
// files are written byte-exact; the manifest and signature are pretty-printed
// since their integrity checks recanonicalize rather than hash file bytes.
func WriteDir(pack *Pack, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create pack dir: %w", err)
	}

	manifestData, err := json.MarshalIndent(pack.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileManifest), manifestData, 0o644); err != nil {
		return fmt.Errorf("export: write manifest: %w", err)
	}

	sigData, err := json.MarshalIndent(pack.Signature, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal manifest signature: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileManifestSig), sigData, 0o644); err != nil {
		return fmt.Errorf("export: write manifest signature: %w", err)
	}

	for name, data := range pack.Files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("export: write %s: %w", name, err)
		}
	}
	return nil
}
