// Package ledger provides token-ledger implementations behind the
// domain.TokenLedger interface.
package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predmarket/internal/domain"
)

// account keys balances and allowances per (token, owner).
type account struct {
	token common.Address
	owner common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// Memory is an in-process token ledger. Transfers are atomic under a single
// mutex and fail loudly on insufficient balance or allowance, matching the
// contract of an on-chain fungible token.
type Memory struct {
	self common.Address // the identity that Transfer debits

	mu         sync.Mutex
	balances   map[account]int64
	allowances map[allowanceKey]int64
}

// NewMemory creates an empty in-memory ledger whose Transfer calls debit the
// given custody identity.
func NewMemory(self common.Address) *Memory {
	return &Memory{
		self:       self,
		balances:   make(map[account]int64),
		allowances: make(map[allowanceKey]int64),
	}
}

// Mint credits the owner's balance out of thin air. Test and bootstrap
// helper; not part of domain.TokenLedger.
func (m *Memory) Mint(token, owner common.Address, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account{token, owner}] += amount
}

// Approve grants the custody identity an allowance to pull from owner.
func (m *Memory) Approve(token, owner common.Address, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{token, owner, m.self}] = amount
}

// Transfer moves tokens from the custody identity to the recipient.
func (m *Memory) Transfer(ctx context.Context, token, to common.Address, amount int64) error {
	if amount < 0 {
		return domain.Validationf("ledger: negative transfer amount %d", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := account{token, m.self}
	if m.balances[from] < amount {
		return domain.Insufficientf("ledger: balance %d below transfer %d", m.balances[from], amount)
	}
	m.balances[from] -= amount
	m.balances[account{token, to}] += amount
	return nil
}

// TransferFrom pulls tokens from a third party into the recipient, consuming
// the custody identity's allowance.
func (m *Memory) TransferFrom(ctx context.Context, token, from, to common.Address, amount int64) error {
	if amount < 0 {
		return domain.Validationf("ledger: negative transfer amount %d", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ak := allowanceKey{token, from, m.self}
	if m.allowances[ak] < amount {
		return domain.Insufficientf("ledger: allowance %d below transfer %d", m.allowances[ak], amount)
	}

	src := account{token, from}
	if m.balances[src] < amount {
		return domain.Insufficientf("ledger: balance %d below transfer %d", m.balances[src], amount)
	}

	m.allowances[ak] -= amount
	m.balances[src] -= amount
	m.balances[account{token, to}] += amount
	return nil
}

// BalanceOf returns the owner's balance for the token.
func (m *Memory) BalanceOf(ctx context.Context, token, owner common.Address) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account{token, owner}], nil
}

// Compile-time interface check.
var _ domain.TokenLedger = (*Memory)(nil)
