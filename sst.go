package lms

import "github.com/keylayer/lms-go/internal/sstquorum"

// SstExtension marks a private key as one signing entity's share of a
// distributed-keygen root tree split at level L0TopDiv (§4.8). Entity
// indices count from 1 (left-most) to N = 2^L0TopDiv (right-most).
type SstExtension struct {
	SigningEntityIdx uint8
	L0TopDiv         uint8
}

func (e SstExtension) MarshalBinary() []byte {
	return []byte{e.SigningEntityIdx, e.L0TopDiv}
}

func unmarshalSstExtension(buf []byte) (SstExtension, Error) {
	if len(buf) < 2 {
		return SstExtension{}, errorf(ErrParse, "sst extension truncated")
	}
	return SstExtension{SigningEntityIdx: buf[0], L0TopDiv: buf[1]}, nil
}

func validateSstExtension(ext SstExtension, treeHeight uint8) Error {
	if err := sstquorum.Validate(ext.SigningEntityIdx, ext.L0TopDiv, treeHeight); err != nil {
		return errorf(ErrParameter, "%s", err)
	}
	return nil
}

// NumSigningEntities returns N = 2^l0_top_div for this extension.
func (e SstExtension) NumSigningEntities() uint32 {
	return sstquorum.NumSigningEntities(e.L0TopDiv)
}

func sstLeafRange(entityIdx, l0TopDiv, treeHeight uint8) (first, last uint32) {
	return sstquorum.FirstLeafIdx(entityIdx, l0TopDiv, treeHeight), sstquorum.LastLeafIdx(entityIdx, l0TopDiv, treeHeight)
}

// buildSubtree computes only the nodes needed to sign from one
// entity's leaf range [leafStart, leafEnd), keyed by their global node
// index in the full tree's numbering, plus the subtree's own root.
// Unlike buildTree, it never touches leaves outside the given range:
// an entity only ever knows the seed for its own subtree.
func buildSubtree(lp LmsParam, op LmotsParam, treeID, levelSeed []byte, leafStart, leafEnd uint32) (nodes map[uint64][]byte, root []byte) {
	leafBase := uint64(1) << uint(lp.H)
	nodes = make(map[uint64][]byte, 2*int(leafEnd-leafStart))
	for q := leafStart; q < leafEnd; q++ {
		pk := LmotsKeygen(op, treeID, q, levelSeed)
		idx := leafBase + uint64(q)
		nodes[idx] = lmsLeafHash(lp, treeID, idx, pk.Key)
	}

	rowStart, rowEnd := leafBase+uint64(leafStart), leafBase+uint64(leafEnd)
	for rowEnd-rowStart > 1 {
		newStart, newEnd := rowStart/2, rowEnd/2
		for r := newStart; r < newEnd; r++ {
			nodes[r] = lmsInteriorHash(lp, treeID, r, nodes[2*r], nodes[2*r+1])
		}
		rowStart, rowEnd = newStart, newEnd
	}
	return nodes, nodes[rowStart]
}

// combineSubtreeRoots folds the N = 2^l0TopDiv exchanged subtree roots
// (ordered by ascending signing entity index) upward into the global
// LMS root. The roots already occupy the division-level row of the
// full tree's numbering, so this is exactly buildTree's interior-row
// loop with externally supplied leaves.
func combineSubtreeRoots(lp LmsParam, treeID []byte, l0TopDiv uint8, subtreeRoots [][]byte) (upperNodes [][]byte, root []byte) {
	n := uint64(1) << l0TopDiv
	upperNodes = make([][]byte, 2*n)
	copy(upperNodes[n:], subtreeRoots)
	for height := 1; height <= int(l0TopDiv); height++ {
		rowStart := n >> uint(height)
		rowEnd := rowStart << 1
		for r := rowStart; r < rowEnd; r++ {
			upperNodes[r] = lmsInteriorHash(lp, treeID, r, upperNodes[2*r], upperNodes[2*r+1])
		}
	}
	return upperNodes, upperNodes[1]
}

// upperNodesFromAux reconstructs the division-level-and-above node
// array combineSubtreeRoots produces, from an aux cache carrying all
// levels 0..l0TopDiv. Used at sign time so the combine step (an
// O(N) hash cost, paid once at finalize) is never repeated.
func upperNodesFromAux(aux *AuxCache, l0TopDiv uint8) ([][]byte, Error) {
	n := uint64(1) << l0TopDiv
	nodes := make([][]byte, 2*n)
	for level := uint32(0); level <= uint32(l0TopDiv); level++ {
		if !aux.hasLevel(level) {
			return nil, errorf(ErrParameter, "sst aux cache missing level %d", level)
		}
		row := aux.level(level)
		base := uint64(1) << level
		for i, node := range row {
			nodes[base+uint64(i)] = node
		}
	}
	return nodes, nil
}

// sstAuthPath assembles a full-height authentication path for a leaf
// inside entity idx's subtree: the local sibling chain up to the
// division level (recomputed from the entity's own seed), then the
// exchanged-subtree-root siblings from the division level up to the
// global root (§4.8).
func sstAuthPath(h, l0TopDiv uint8, localNodes map[uint64][]byte, upperNodes [][]byte, entityIdx uint8, leafID uint32) [][]byte {
	r := (uint64(1) << uint(h)) + uint64(leafID)
	path := make([][]byte, h)
	localLevels := int(h - l0TopDiv)
	for i := 0; i < localLevels; i++ {
		path[i] = localNodes[(r>>uint(i))^1]
	}
	copy(path[localLevels:], authPath(upperNodes, l0TopDiv, uint32(entityIdx-1)))
	return path
}

// decomposeCounterSst is decomposeCounter generalized to a root tree
// whose level-0 index space is restricted to this entity's own
// subtree: only h0-l0TopDiv bits are consumed for level 0, and the
// result is offset into the entity's owned leaf range.
func decomposeCounterSst(params []HssParam, l0TopDiv uint8, firstLeaf uint32, counter uint64) []uint32 {
	l := len(params)
	q := make([]uint32, l)
	rem := counter
	for i := l - 1; i >= 1; i-- {
		h := params[i].Lms.H
		mask := uint64(1)<<h - 1
		q[i] = uint32(rem & mask)
		rem >>= h
	}
	localBits := params[0].Lms.H - l0TopDiv
	mask0 := uint64(1)<<localBits - 1
	q[0] = firstLeaf + uint32(rem&mask0)
	return q
}

// totalTreeHeightSst is totalTreeHeight generalized to one SST entity's
// share of the lifetime: level 0 only contributes h0-l0TopDiv bits,
// since the other levels' worth of leaves belong to other entities.
func totalTreeHeightSst(params []HssParam, l0TopDiv uint8) uint32 {
	total := uint32(params[0].Lms.H - l0TopDiv)
	for i := 1; i < len(params); i++ {
		total += uint32(params[i].Lms.H)
	}
	return total
}

// materializeHssPrivateKeySst rebuilds the signing stack for one SST
// entity at the given counter: level 0 is assembled from the entity's
// own local subtree plus the already-combined upper nodes, and levels
// 1..L-1 descend from level 0's leaf exactly as in the non-SST case.
func materializeHssPrivateKeySst(params []HssParam, seed, treeID []byte, sst SstExtension, upperNodes [][]byte, counter uint64) (*HssPrivateKey, Error) {
	l := len(params)
	if l == 0 || l > MaxHssLevels {
		return nil, errorf(ErrParameter, "hss stack must have 1..%d levels", MaxHssLevels)
	}
	h0 := params[0].Lms.H
	if err := validateSstExtension(sst, h0); err != nil {
		return nil, err
	}
	if counter >= uint64(1)<<totalTreeHeightSst(params, sst.L0TopDiv) {
		return nil, exhaustedErrorf("used-leaves counter %d exceeds sst entity lifetime", counter)
	}

	firstLeaf, lastLeaf := sstLeafRange(sst.SigningEntityIdx, sst.L0TopDiv, h0)
	q := decomposeCounterSst(params, sst.L0TopDiv, firstLeaf, counter)

	localNodes, _ := buildSubtree(params[0].Lms, params[0].Ots, treeID, seed, firstLeaf, lastLeaf+1)

	levels := make([]*hssLevelState, l)
	levels[0] = &hssLevelState{
		Param:  params[0],
		Seed:   seed,
		TreeID: treeID,
		Pub:    LmsPublicKey{LmsParam: params[0].Lms, LmotsParam: params[0].Ots, TreeID: treeID, Root: upperNodes[1]},
	}
	// Level 0 in SST mode is split across entities and never fully
	// materialized as a flat node array (only the entity's local leaf
	// range plus the combined upper nodes exist). When it is also the
	// bottom (signing) level, Sign needs this context to assemble an
	// SST auth path instead of indexing into a nil array.
	var sstBottom *sstBottomSignContext
	if l == 1 {
		sstBottom = &sstBottomSignContext{
			localNodes: localNodes,
			upperNodes: upperNodes,
			l0TopDiv:   sst.L0TopDiv,
			entityIdx:  sst.SigningEntityIdx,
		}
	}

	curSeed, curTreeID := seed, treeID
	for i := 1; i < l; i++ {
		childSeed, childTreeID := deriveChildSeedAndTreeID(params[i-1].Lms.Hash, curSeed, curTreeID, q[i-1])
		nodes, root := buildTree(params[i].Lms, params[i].Ots, childTreeID, childSeed, nil)
		levels[i] = &hssLevelState{
			Param:  params[i],
			Seed:   childSeed,
			TreeID: childTreeID,
			Nodes:  nodes,
			Pub:    LmsPublicKey{LmsParam: params[i].Lms, LmotsParam: params[i].Ots, TreeID: childTreeID, Root: root},
		}
		curSeed, curTreeID = childSeed, childTreeID
	}

	for i := 1; i < l; i++ {
		parent := levels[i-1]
		randomizer := deriveSignatureRandomizer(parent.Param.Lms.Hash, parent.Seed, parent.TreeID, q[i-1])
		if i == 1 {
			ots := LmotsSign(parent.Param.Ots, parent.TreeID, q[0], parent.Seed, randomizer, levels[1].Pub.MarshalBinary())
			path := sstAuthPath(parent.Param.Lms.H, sst.L0TopDiv, localNodes, upperNodes, sst.SigningEntityIdx, q[0])
			levels[i].SignedPK = LmsSignature{Param: parent.Param.Lms, LeafID: q[0], Ots: ots, Path: path}
		} else {
			levels[i].SignedPK = LmsSign(parent.Param.Lms, parent.Param.Ots, parent.TreeID, parent.Seed, parent.Nodes, q[i-1], randomizer, levels[i].Pub.MarshalBinary())
		}
	}

	return &HssPrivateKey{Params: params, Levels: levels, Q: q, SstBottom: sstBottom}, nil
}
