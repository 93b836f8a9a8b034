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

// Package memory provides in-memory implementations of the challenge and
// credential stores. Suitable for tests and single-process tooling; durable
// deployments supply their own database-backed stores.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jeremyhahn/go-presence/pkg/jwk"
	"github.com/jeremyhahn/go-presence/pkg/receipt"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// ChallengeStore is a mutex-guarded in-memory challenge store. The mutex
// makes get-then-mark-used atomic per record, satisfying the single-use
// contract under concurrent verification attempts.
type ChallengeStore struct {
	mu      sync.Mutex
	records map[string]*types.ChallengeRecord
	now     func() time.Time
}

// NewChallengeStore creates an empty in-memory challenge store.
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		records: make(map[string]*types.ChallengeRecord),
		now:     time.Now,
	}
}

// Put stores a challenge record, replacing any record with the same ID.
func (s *ChallengeStore) Put(rec *types.ChallengeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.ChallengeID] = &cp
}

// GetChallenge implements receipt.ChallengeStore.
func (s *ChallengeStore) GetChallenge(_ context.Context, challengeID string) (*types.ChallengeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[challengeID]
	if !ok {
		return nil, receipt.ErrChallengeNotFound
	}
	cp := *rec
	return &cp, nil
}

// MarkUsed implements receipt.ChallengeStore. The unused check and the
// transition happen under one lock acquisition, so only one of two racing
// attempts can succeed.
func (s *ChallengeStore) MarkUsed(_ context.Context, challengeID, receiptHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[challengeID]
	if !ok {
		return receipt.ErrChallengeNotFound
	}
	if rec.UsedAt != nil {
		return receipt.ErrChallengeUsed
	}
	usedAt := s.now().UTC().Format(time.RFC3339)
	rec.UsedAt = &usedAt
	rec.UsedReceiptHash = receiptHash
	return nil
}

// CredentialStore is a mutex-guarded in-memory credential key store.
type CredentialStore struct {
	mu   sync.RWMutex
	keys map[string]*jwk.JWK
}

// NewCredentialStore creates an empty in-memory credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{keys: make(map[string]*jwk.JWK)}
}

// Put registers a credential public key.
func (s *CredentialStore) Put(credID string, key *jwk.JWK) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *key
	s.keys[credID] = &cp
}

// GetPublicKeyJWK implements receipt.CredentialStore.
func (s *CredentialStore) GetPublicKeyJWK(_ context.Context, credID string) (*jwk.JWK, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[credID]
	if !ok {
		return nil, receipt.ErrCredentialNotFound
	}
	cp := *key
	return &cp, nil
}
