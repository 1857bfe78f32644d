package lms

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSstSplitTreeMatchesWholeTree checks the pure splitting math:
// building one full tree directly must equal building each entity's
// subtree independently (over the same shared seed, standing in for
// what would normally be N distinct entities) and combining their
// roots.
func TestSstSplitTreeMatchesWholeTree(t *testing.T) {
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	treeID := make([]byte, 16)
	for i := range treeID {
		treeID[i] = byte(0xa0 + i)
	}
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i * 3)
	}

	_, wholeRoot := buildTree(lp, op, treeID, seed, nil)

	const l0TopDiv = 2
	var roots [][]byte
	for idx := uint8(1); idx <= 4; idx++ {
		first, last := sstLeafRange(idx, l0TopDiv, lp.H)
		_, root := buildSubtree(lp, op, treeID, seed, first, last+1)
		roots = append(roots, root)
	}

	_, combinedRoot := combineSubtreeRoots(lp, treeID, l0TopDiv, roots)
	require.Equal(t, wholeRoot, combinedRoot)
}

func TestSstAuthPathVerifiesAgainstWholeTreePublicKey(t *testing.T) {
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	treeID := make([]byte, 16)
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i * 5)
	}

	_, wholeRoot := buildTree(lp, op, treeID, seed, nil)
	pk := LmsPublicKey{LmsParam: lp, LmotsParam: op, TreeID: treeID, Root: wholeRoot}

	const l0TopDiv uint8 = 2
	const entityIdx uint8 = 3
	first, last := sstLeafRange(entityIdx, l0TopDiv, lp.H)
	localNodes, _ := buildSubtree(lp, op, treeID, seed, first, last+1)

	var roots [][]byte
	for idx := uint8(1); idx <= 4; idx++ {
		f, l := sstLeafRange(idx, l0TopDiv, lp.H)
		_, root := buildSubtree(lp, op, treeID, seed, f, l+1)
		roots = append(roots, root)
	}
	upperNodes, _ := combineSubtreeRoots(lp, treeID, l0TopDiv, roots)

	leafInSubtree := first
	path := sstAuthPath(lp.H, l0TopDiv, localNodes, upperNodes, entityIdx, leafInSubtree)
	require.Len(t, path, int(lp.H))

	randomizer := make([]byte, lp.Hash.OutputSize())
	message := []byte("message signed by one sst entity")
	ots := LmotsSign(op, treeID, leafInSubtree, seed, randomizer, message)
	sig := LmsSignature{Param: lp, LeafID: leafInSubtree, Ots: ots, Path: path}

	require.NoError(t, LmsVerify(sig, treeID, pk, message))
}

func TestDecomposeCounterSstOffsetsIntoEntityRange(t *testing.T) {
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	params := []HssParam{{Lms: lp, Ots: op}}

	const l0TopDiv uint8 = 2
	const entityIdx uint8 = 3
	first, last := sstLeafRange(entityIdx, l0TopDiv, lp.H)

	q0 := decomposeCounterSst(params, l0TopDiv, first, 0)
	require.Equal(t, first, q0[0])

	qLast := decomposeCounterSst(params, l0TopDiv, first, uint64(last-first))
	require.Equal(t, last, qLast[0])
}
