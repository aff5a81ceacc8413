package chainalias

import "fmt"

// Resolver maps provider aliases to canonical chain identifiers and back.
type Resolver struct {
	toCanonical map[string]string
	toAlias     map[string]string
}

// Default is the alias table used by the providers: the subgraph names chains
// by alias while the prices API expects canonical identifiers.
var Default = MustNew(map[string]string{
	"mainnet": "ethereum",
	"matic":   "polygon",
})

// New builds a Resolver from an alias -> canonical table. The table must be
// injective and no alias may also be a canonical identifier.
func New(table map[string]string) (*Resolver, error) {
	r := &Resolver{
		toCanonical: make(map[string]string, len(table)),
		toAlias:     make(map[string]string, len(table)),
	}
	for alias, canonical := range table {
		if alias == "" || canonical == "" {
			return nil, fmt.Errorf("empty chain alias entry: %q -> %q", alias, canonical)
		}
		if alias == canonical {
			return nil, fmt.Errorf("chain alias %q maps to itself", alias)
		}
		if prev, ok := r.toAlias[canonical]; ok {
			return nil, fmt.Errorf("chain %q has two aliases: %q and %q", canonical, prev, alias)
		}
		r.toCanonical[alias] = canonical
		r.toAlias[canonical] = alias
	}
	for alias := range r.toCanonical {
		if _, ok := r.toAlias[alias]; ok {
			return nil, fmt.Errorf("chain alias %q is also a canonical chain", alias)
		}
	}
	return r, nil
}

// MustNew is like New but panics on an invalid table.
func MustNew(table map[string]string) *Resolver {
	r, err := New(table)
	if err != nil {
		panic(err)
	}
	return r
}

// ToCanonical returns the canonical identifier for alias, or alias unchanged.
func (r *Resolver) ToCanonical(alias string) string {
	if canonical, ok := r.toCanonical[alias]; ok {
		return canonical
	}
	return alias
}

// ToAlias returns the provider alias for chain, or chain unchanged.
func (r *Resolver) ToAlias(chain string) string {
	if alias, ok := r.toAlias[chain]; ok {
		return alias
	}
	return chain
}

// Label returns the caller-facing name of chain, which is the alias form
// whether the caller passed the alias or the canonical identifier.
func (r *Resolver) Label(chain string) string {
	return r.ToAlias(r.ToCanonical(chain))
}
