package lms

import "crypto/subtle"

// LmsPublicKey is `lms_type || lmots_type || I || root(n)` in memory.
type LmsPublicKey struct {
	LmsParam   LmsParam
	LmotsParam LmotsParam
	TreeID     []byte
	Root       []byte
}

// LmsSignature is `be32(q) || LMOTS sig || be32(lms_type) || path(n*h)`.
type LmsSignature struct {
	Param  LmsParam
	LeafID uint32
	Ots    LmotsSignature
	Path   [][]byte
}

func lmsLeafHash(lp LmsParam, treeID []byte, nodeIdx uint64, otsKey []byte) []byte {
	return lp.Hash.Hash(treeID, be32(uint32(nodeIdx)), be16(dLeaf), otsKey)
}

func lmsInteriorHash(lp LmsParam, treeID []byte, nodeIdx uint64, left, right []byte) []byte {
	return lp.Hash.Hash(treeID, be32(uint32(nodeIdx)), be16(dIntr), left, right)
}

// buildTree iteratively computes every node of a full LMS tree
// (levels are materialized bottom-up, never recursed into), returning
// the node array indexed 1..2^(h+1)-1 (index 0 unused) and the root.
// An aux cache, when non-nil and valid, substitutes its stored levels
// instead of recomputing them and is populated with any level it was
// configured to track but didn't yet have.
func buildTree(lp LmsParam, op LmotsParam, treeID, levelSeed []byte, aux *AuxCache) (nodes [][]byte, root []byte) {
	h := int(lp.H)
	numLeaves := uint64(1) << uint(h)
	size := 2 * numLeaves
	nodes = make([][]byte, size)

	leafBase := numLeaves
	for q := uint64(0); q < numLeaves; q++ {
		pk := LmotsKeygen(op, treeID, uint32(q), levelSeed)
		nodes[leafBase+q] = lmsLeafHash(lp, treeID, leafBase+q, pk.Key)
	}

	for height := 1; height <= h; height++ {
		levelFromRoot := uint32(h - height)
		rowStart := uint64(1) << uint(h-height)
		rowEnd := rowStart << 1
		if aux != nil && aux.hasLevel(levelFromRoot) {
			cached := aux.level(levelFromRoot)
			for r := rowStart; r < rowEnd; r++ {
				nodes[r] = cached[r-rowStart]
			}
			continue
		}
		for r := rowStart; r < rowEnd; r++ {
			nodes[r] = lmsInteriorHash(lp, treeID, r, nodes[2*r], nodes[2*r+1])
		}
		if aux != nil && aux.tracks(levelFromRoot) {
			aux.setLevel(levelFromRoot, nodes[rowStart:rowEnd])
		}
	}
	return nodes, nodes[1]
}

// authPath extracts the h sibling nodes from leaf q up to the root,
// using the (r>>i)^1 sibling-index rule.
func authPath(nodes [][]byte, h uint8, leafID uint32) [][]byte {
	r := (uint64(1) << uint(h)) + uint64(leafID)
	path := make([][]byte, h)
	for i := 0; i < int(h); i++ {
		path[i] = nodes[(r>>uint(i))^1]
	}
	return path
}

// LmsSign signs message at leaf q, deriving the OTS leaf key, its
// signature, and the authentication path from the full node array.
func LmsSign(lp LmsParam, op LmotsParam, treeID, levelSeed []byte, nodes [][]byte, leafID uint32, randomizer, message []byte) LmsSignature {
	ots := LmotsSign(op, treeID, leafID, levelSeed, randomizer, message)
	path := authPath(nodes, lp.H, leafID)
	return LmsSignature{Param: lp, LeafID: leafID, Ots: ots, Path: path}
}

// LmsVerify checks sig against message and the expected public key.
func LmsVerify(sig LmsSignature, treeID []byte, pk LmsPublicKey, message []byte) Error {
	if sig.Param.H != pk.LmsParam.H || sig.Param.Hash != pk.LmsParam.Hash {
		return errorf(ErrParse, "lms signature/public key parameter mismatch")
	}
	if sig.Ots.Param.TypeID != pk.LmotsParam.TypeID {
		return errorf(ErrParse, "lm-ots signature/public key type mismatch")
	}
	if len(sig.Path) != int(sig.Param.H) {
		return errorf(ErrParse, "lms authentication path has wrong length")
	}
	candidate := LmotsPublicKeyCandidate(sig.Ots, treeID, sig.LeafID, message)

	nodeIdx := (uint64(1) << uint(sig.Param.H)) + uint64(sig.LeafID)
	node := lmsLeafHash(sig.Param, treeID, nodeIdx, candidate.Key)
	for i := 0; i < len(sig.Path); i++ {
		sibling := sig.Path[i]
		parentIdx := nodeIdx >> 1
		if nodeIdx%2 == 0 {
			node = lmsInteriorHash(sig.Param, treeID, parentIdx, node, sibling)
		} else {
			node = lmsInteriorHash(sig.Param, treeID, parentIdx, sibling, node)
		}
		nodeIdx = parentIdx
	}
	if subtle.ConstantTimeCompare(node, pk.Root) != 1 {
		return errorf(ErrVerification, "lms root mismatch")
	}
	return nil
}

// MarshalBinary encodes an LMS public key: be32(lms_type) ||
// be32(lmots_type) || I(16) || root(n).
func (pk LmsPublicKey) MarshalBinary() []byte {
	out := make([]byte, 0, 8+16+pk.LmsParam.Hash.OutputSize())
	out = append(out, be32(pk.LmsParam.TypeID)...)
	out = append(out, be32(pk.LmotsParam.TypeID)...)
	out = append(out, pk.TreeID...)
	out = append(out, pk.Root...)
	return out
}

// UnmarshalLmsPublicKey parses the wire format written by MarshalBinary.
func UnmarshalLmsPublicKey(buf []byte) (LmsPublicKey, []byte, Error) {
	if len(buf) < 8+16 {
		return LmsPublicKey{}, nil, errorf(ErrParse, "lms public key truncated")
	}
	lp, err := LmsParamFromID(getBe32(buf))
	if err != nil {
		return LmsPublicKey{}, nil, err
	}
	op, err := LmotsParamFromID(getBe32(buf[4:]))
	if err != nil {
		return LmsPublicKey{}, nil, err
	}
	off := 8
	treeID := buf[off : off+16]
	off += 16
	n := lp.Hash.OutputSize()
	if len(buf) < off+n {
		return LmsPublicKey{}, nil, errorf(ErrParse, "lms public key truncated")
	}
	root := buf[off : off+n]
	off += n
	return LmsPublicKey{LmsParam: lp, LmotsParam: op, TreeID: treeID, Root: root}, buf[off:], nil
}

// MarshalBinary encodes an LMS signature: be32(q) || LMOTS sig ||
// be32(lms_type) || path(n*h).
func (sig LmsSignature) MarshalBinary() []byte {
	out := make([]byte, 0, 4+len(sig.Ots.MarshalBinary())+4+int(sig.Param.H)*sig.Param.Hash.OutputSize())
	out = append(out, be32(sig.LeafID)...)
	out = append(out, sig.Ots.MarshalBinary()...)
	out = append(out, be32(sig.Param.TypeID)...)
	for _, node := range sig.Path {
		out = append(out, node...)
	}
	return out
}

// UnmarshalLmsSignature parses the wire format written by MarshalBinary.
func UnmarshalLmsSignature(buf []byte) (LmsSignature, []byte, Error) {
	if len(buf) < 4 {
		return LmsSignature{}, nil, errorf(ErrParse, "lms signature truncated")
	}
	leafID := getBe32(buf)
	rest := buf[4:]
	ots, rest, err := UnmarshalLmotsSignature(rest)
	if err != nil {
		return LmsSignature{}, nil, err
	}
	if len(rest) < 4 {
		return LmsSignature{}, nil, errorf(ErrParse, "lms signature truncated")
	}
	lp, err := LmsParamFromID(getBe32(rest))
	if err != nil {
		return LmsSignature{}, nil, err
	}
	rest = rest[4:]
	n := lp.Hash.OutputSize()
	need := int(lp.H) * n
	if len(rest) < need {
		return LmsSignature{}, nil, errorf(ErrParse, "lms signature authentication path truncated")
	}
	path := make([][]byte, lp.H)
	for i := 0; i < int(lp.H); i++ {
		path[i] = rest[i*n : (i+1)*n]
	}
	return LmsSignature{Param: lp, LeafID: leafID, Ots: ots, Path: path}, rest[need:], nil
}
