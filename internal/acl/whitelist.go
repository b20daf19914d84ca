package acl

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Whitelist is the set of betting tokens accepted at market creation. It is
// an ordered slice with an index map so removal is O(1) via swap-remove;
// insertion order is not preserved after a removal.
type Whitelist struct {
	mu     sync.RWMutex
	tokens []common.Address
	index  map[common.Address]int
}

// NewWhitelist creates an empty token whitelist.
func NewWhitelist() *Whitelist {
	return &Whitelist{
		index: make(map[common.Address]int),
	}
}

// Add whitelists the token. Returns false if it was already present.
func (w *Whitelist) Add(token common.Address) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.index[token]; ok {
		return false
	}
	w.index[token] = len(w.tokens)
	w.tokens = append(w.tokens, token)
	return true
}

// Remove delists the token by swapping the last element into its slot.
// Returns false if the token was not present.
func (w *Whitelist) Remove(token common.Address) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i, ok := w.index[token]
	if !ok {
		return false
	}

	last := len(w.tokens) - 1
	if i != last {
		moved := w.tokens[last]
		w.tokens[i] = moved
		w.index[moved] = i
	}
	w.tokens = w.tokens[:last]
	delete(w.index, token)
	return true
}

// IsWhitelisted reports whether the token is accepted.
func (w *Whitelist) IsWhitelisted(token common.Address) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.index[token]
	return ok
}

// Tokens returns a copy of the current whitelist.
func (w *Whitelist) Tokens() []common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]common.Address, len(w.tokens))
	copy(out, w.tokens)
	return out
}
