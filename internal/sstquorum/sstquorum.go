// Package sstquorum holds the pure index arithmetic of the
// distributed-keygen protocol: which leaves and which division-level
// node a given signing entity owns. It has no notion of hashing or
// trees — that lives in the root package, which is the only importer.
package sstquorum

import "fmt"

// NumSigningEntities returns N = 2^l0TopDiv, the size of the signing
// quorum for a root tree split at l0TopDiv.
func NumSigningEntities(l0TopDiv uint8) uint32 {
	return uint32(1) << l0TopDiv
}

// Validate checks that an (entityIdx, l0TopDiv) pair is a legal split
// of a tree of the given height: entities are numbered 1..N, and the
// division level must lie in 1..treeHeight (below the root, at most at
// the leaves).
func Validate(entityIdx, l0TopDiv, treeHeight uint8) error {
	if l0TopDiv == 0 || l0TopDiv > treeHeight {
		return fmt.Errorf("l0_top_div %d out of range for tree height %d", l0TopDiv, treeHeight)
	}
	n := NumSigningEntities(l0TopDiv)
	if entityIdx < 1 || uint32(entityIdx) > n {
		return fmt.Errorf("signing entity index %d out of range [1,%d]", entityIdx, n)
	}
	return nil
}

// RootNodeIndex returns the node index, in the full tree's 1-based
// heap numbering, of the subtree root owned by entityIdx.
func RootNodeIndex(entityIdx, l0TopDiv uint8) uint32 {
	return uint32(1)<<l0TopDiv + uint32(entityIdx) - 1
}

// NumLeaves returns the number of leaves in one entity's subtree.
func NumLeaves(treeHeight, l0TopDiv uint8) uint32 {
	return uint32(1) << (treeHeight - l0TopDiv)
}

// FirstLeafIdx returns the first (lowest) leaf index, counting leaves
// from 0, owned by entityIdx.
func FirstLeafIdx(entityIdx, l0TopDiv, treeHeight uint8) uint32 {
	return (uint32(entityIdx) - 1) * NumLeaves(treeHeight, l0TopDiv)
}

// LastLeafIdx returns the last (highest) leaf index owned by entityIdx.
func LastLeafIdx(entityIdx, l0TopDiv, treeHeight uint8) uint32 {
	return FirstLeafIdx(entityIdx, l0TopDiv, treeHeight) + NumLeaves(treeHeight, l0TopDiv) - 1
}
