// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package token defines the fungible-token primitive the bridge mints and
// burns against. The primitive itself is an external collaborator; this
// package carries only its interface, an id-to-instance registry, and an
// in-memory implementation for tests and examples.
package token

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// Token is the underlying mint/burn primitive with standard allowance and
// transfer semantics. Mint and TransferFrom report success; Burn consumes
// from the holder's own balance unconditionally.
type Token interface {
	Mint(to ids.ID, amount *uint256.Int) bool
	Burn(holder ids.ID, amount *uint256.Int)
	Approve(owner, spender ids.ID, amount *uint256.Int)
	TransferFrom(spender, from, to ids.ID, amount *uint256.Int) bool
	BalanceOf(holder ids.ID) *uint256.Int
}

// Registry resolves token identities to primitive instances.
type Registry struct {
	mu     sync.RWMutex
	tokens map[ids.ID]Token
}

// NewRegistry returns an empty token registry.
func NewRegistry() *Registry {
	return &Registry{
		tokens: make(map[ids.ID]Token),
	}
}

// Register binds a token identity to a primitive instance.
func (r *Registry) Register(id ids.ID, t Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[id] = t
}

// Get returns the primitive for a token identity.
func (r *Registry) Get(id ids.ID) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[id]
	return t, ok
}
