// Package acl provides the capability registry and token whitelist consulted
// by the engine's gated operations.
package acl

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Capability names a granted permission checked at the top of gated engine
// operations.
type Capability string

const (
	// CapAdmin may create markets and manage grants.
	CapAdmin Capability = "admin"

	// CapResolver may resolve and invalidate markets.
	CapResolver Capability = "resolver"

	// CapValidator may mark markets validated.
	CapValidator Capability = "validator"

	// CapOperator may withdraw unlocked platform fees.
	CapOperator Capability = "operator"
)

// Registry maps identities to their granted capability sets. It is an
// explicit ACL rather than role inheritance: membership is checked per call.
type Registry struct {
	mu     sync.RWMutex
	grants map[common.Address]map[Capability]bool
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		grants: make(map[common.Address]map[Capability]bool),
	}
}

// Grant gives the identity the capability. Granting twice is a no-op.
func (r *Registry) Grant(id common.Address, cap Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.grants[id]
	if !ok {
		set = make(map[Capability]bool)
		r.grants[id] = set
	}
	set[cap] = true
}

// Revoke removes the capability from the identity. Revoking an absent grant
// is a no-op.
func (r *Registry) Revoke(id common.Address, cap Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.grants[id]; ok {
		delete(set, cap)
		if len(set) == 0 {
			delete(r.grants, id)
		}
	}
}

// Has reports whether the identity holds the capability.
func (r *Registry) Has(id common.Address, cap Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grants[id][cap]
}

// Capabilities returns the identity's granted capabilities.
func (r *Registry) Capabilities(id common.Address) []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.grants[id]
	caps := make([]Capability, 0, len(set))
	for c := range set {
		caps = append(caps, c)
	}
	return caps
}
