// Package domain defines core data structures used throughout the engine.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Pair spot market.
type Pair struct {
	// From base asset symbol.
	From string
	// To quote asset symbol.
	To string
}

// NewPair builds a pair with upper-cased asset symbols.
func NewPair(from, to string) Pair {
	return Pair{From: NormalizeAsset(from), To: NormalizeAsset(to)}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated exchange symbol, e.g. BTCUSDT.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// Has reports whether the asset is one of the pair sides.
func (p Pair) Has(asset string) bool {
	return p.From == asset || p.To == asset
}

// NormalizeAsset upper-cases and trims an asset symbol.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// PairSet tradeable pairs indexed by exchange symbol.
type PairSet map[string]Pair

// NewPairSet creates a set from the given pairs.
func NewPairSet(pairs ...Pair) PairSet {
	set := make(PairSet, len(pairs))
	for _, p := range pairs {
		set.Add(p)
	}

	return set
}

// Add inserts the pair.
func (s PairSet) Add(p Pair) {
	s[p.Symbol()] = p
}

// Lookup returns the pair whose base is from and quote is to.
func (s PairSet) Lookup(from, to string) (Pair, bool) {
	p, ok := s[from+to]
	if !ok || p.From != from || p.To != to {
		return Pair{}, false
	}

	return p, true
}

// Symbols returns all symbols sorted alphabetically.
func (s PairSet) Symbols() []string {
	symbols := make([]string, 0, len(s))
	for symbol := range s {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	return symbols
}
