package model

import (
	"hash/fnv"
	"strings"
)

// Hash identifies a model independently of the letter case of its name.
type Hash uint64

// HashName returns the FNV-1a 64 hash of the upper-cased name.
// "world\\Tree.m2" and "WORLD\\TREE.M2" hash identically. Distinct names that
// collide are treated as the same model.
//
// Parameters:
//   - name: the model name
//
// Returns:
//   - Hash: the model identity
func HashName(name string) Hash {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToUpper(name)))
	return Hash(h.Sum64())
}
