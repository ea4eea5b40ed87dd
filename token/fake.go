// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

var _ Token = (*FakeToken)(nil)

type allowanceKey struct {
	owner   ids.ID
	spender ids.ID
}

// FakeToken is an in-memory Token with standard allowance semantics.
type FakeToken struct {
	mu         sync.Mutex
	balances   map[ids.ID]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

// NewFakeToken returns an empty in-memory token.
func NewFakeToken() *FakeToken {
	return &FakeToken{
		balances:   make(map[ids.ID]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

func (t *FakeToken) Mint(to ids.ID, amount *uint256.Int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, amount)
	return true
}

func (t *FakeToken) Burn(holder ids.ID, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	balance := t.balance(holder)
	if balance.Lt(amount) {
		balance.Clear()
		return
	}
	balance.Sub(balance, amount)
}

func (t *FakeToken) Approve(owner, spender ids.ID, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[allowanceKey{owner: owner, spender: spender}] = amount.Clone()
}

func (t *FakeToken) TransferFrom(spender, from, to ids.ID, amount *uint256.Int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowance, ok := t.allowances[allowanceKey{owner: from, spender: spender}]
	if !ok || allowance.Lt(amount) {
		return false
	}
	balance := t.balance(from)
	if balance.Lt(amount) {
		return false
	}
	allowance.Sub(allowance, amount)
	balance.Sub(balance, amount)
	t.credit(to, amount)
	return true
}

func (t *FakeToken) BalanceOf(holder ids.ID) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance(holder).Clone()
}

func (t *FakeToken) balance(holder ids.ID) *uint256.Int {
	balance, ok := t.balances[holder]
	if !ok {
		balance = new(uint256.Int)
		t.balances[holder] = balance
	}
	return balance
}

func (t *FakeToken) credit(to ids.ID, amount *uint256.Int) {
	t.balance(to).Add(t.balance(to), amount)
}
