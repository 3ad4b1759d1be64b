// Package dsa provides compact data structures used by the search tools.
// Uses go-radix for a compressed prefix tree (radix tree).
package dsa

import "github.com/armon/go-radix"

// OrderedSet is a set of strings that remembers first-insertion order.
// Membership lives in a radix tree, which stays small for file paths that
// share long directory prefixes.
//
// Not safe for concurrent use.
type OrderedSet struct {
	tree  *radix.Tree
	order []string
}

// NewOrderedSet creates an empty set.
func NewOrderedSet() *OrderedSet {
	return &OrderedSet{tree: radix.New()}
}

// Add inserts key and reports whether it was new.
// Time Complexity: O(k) where k is key length.
func (s *OrderedSet) Add(key string) bool {
	if _, found := s.tree.Get(key); found {
		return false
	}
	s.tree.Insert(key, len(s.order))
	s.order = append(s.order, key)
	return true
}

// Len returns the number of distinct keys.
func (s *OrderedSet) Len() int {
	return len(s.order)
}

// Items returns the keys in first-insertion order.
func (s *OrderedSet) Items() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
