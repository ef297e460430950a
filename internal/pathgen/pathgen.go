// Package pathgen generates shard-forced operation identifiers and derives
// the hierarchical key set each operation writes.
package pathgen

import (
	"path"

	"github.com/google/uuid"
)

// KeySet holds one operation's identifier and the four metadata keys
// derived from it.
type KeySet struct {
	ID        string
	LargeKey  string
	SmallKey1 string
	SmallKey2 string
	LeafKey   string
}

// Generator derives key sets under the configured roots. Identifiers are
// UUIDs with their leading bytes overwritten by the shard prefix, so every
// operation lands on the same directory shard regardless of randomness.
type Generator struct {
	prefix    string
	largeRoot string
	smallRoot string

	// newID is swappable for tests.
	newID func() string
}

// New creates a Generator for the given shard prefix and path roots.
func New(prefix, largeRoot, smallRoot string) *Generator {
	return &Generator{
		prefix:    prefix,
		largeRoot: largeRoot,
		smallRoot: smallRoot,
		newID:     func() string { return uuid.NewString() },
	}
}

// NewKeySet generates a fresh identifier and derives its keys.
func (g *Generator) NewKeySet() KeySet {
	id := g.newID()
	if len(g.prefix) > 0 && len(g.prefix) <= len(id) {
		id = g.prefix + id[len(g.prefix):]
	}
	return g.Derive(id)
}

// Derive computes the key set for a known identifier. The 2-character and
// 16-character prefixes are shared between operations on purpose: racing
// to create the same intermediate directories models the hot-shard
// workload. Identifiers shorter than a prefix use the whole identifier.
func (g *Generator) Derive(id string) KeySet {
	p2 := head(id, 2)
	p16 := head(id, 16)
	return KeySet{
		ID:        id,
		LargeKey:  path.Join(g.largeRoot, id),
		SmallKey1: path.Join(g.smallRoot, p2),
		SmallKey2: path.Join(g.smallRoot, p2, p16),
		LeafKey:   path.Join(g.smallRoot, p2, p16, id),
	}
}

func head(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
