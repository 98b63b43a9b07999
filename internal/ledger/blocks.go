// Package ledger segments free-form work-order ledgers into per-order blocks
// and merges successive partial submissions into a deduplicated pool.
package ledger

import "strings"

// SentinelKey is used when no order-number boundary was detected in a
// non-empty ledger: the whole input becomes one block under this key.
// It is not a real order and is excluded from counts and merge totals.
const SentinelKey = "_RAW_"

// BlockMap is an insertion-ordered mapping of order number to block text.
// Overwriting an existing key keeps its original position, which makes
// merge output stable across repeated submissions.
type BlockMap struct {
	blocks map[string]string
	order  []string
}

// NewBlockMap returns an empty block map.
func NewBlockMap() *BlockMap {
	return &BlockMap{blocks: make(map[string]string)}
}

// Set stores text under key, preserving the key's original position if it
// already exists.
func (m *BlockMap) Set(key, text string) {
	if _, ok := m.blocks[key]; !ok {
		m.order = append(m.order, key)
	}
	m.blocks[key] = text
}

// Get returns the block for key, reporting whether it exists.
func (m *BlockMap) Get(key string) (string, bool) {
	text, ok := m.blocks[key]
	return text, ok
}

// Has reports whether key is present.
func (m *BlockMap) Has(key string) bool {
	_, ok := m.blocks[key]
	return ok
}

// Keys returns all keys in insertion order.
func (m *BlockMap) Keys() []string {
	keys := make([]string, len(m.order))
	copy(keys, m.order)
	return keys
}

// OrderNumbers returns all keys except the sentinel, in insertion order.
func (m *BlockMap) OrderNumbers() []string {
	var keys []string
	for _, k := range m.order {
		if k != SentinelKey {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of blocks, sentinel included.
func (m *BlockMap) Len() int {
	return len(m.order)
}

// Count returns the number of real order blocks, excluding the sentinel.
func (m *BlockMap) Count() int {
	n := len(m.order)
	if m.Has(SentinelKey) {
		n--
	}
	return n
}

// Join reserializes the blocks as ledger text, blank-line separated in
// mapping order. Segmenting the result yields the same key set.
func (m *BlockMap) Join() string {
	parts := make([]string, 0, len(m.order))
	for _, k := range m.order {
		parts = append(parts, m.blocks[k])
	}
	return strings.Join(parts, "\n\n")
}
