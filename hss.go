package lms

// HssPublicKey is `be32(L) || LMS public key of level 0`.
type HssPublicKey struct {
	L   int
	Top LmsPublicKey
}

func (pk HssPublicKey) MarshalBinary() []byte {
	out := make([]byte, 0, 4+len(pk.Top.MarshalBinary()))
	out = append(out, be32(uint32(pk.L))...)
	out = append(out, pk.Top.MarshalBinary()...)
	return out
}

func UnmarshalHssPublicKey(buf []byte) (HssPublicKey, Error) {
	if len(buf) < 4 {
		return HssPublicKey{}, errorf(ErrParse, "hss public key truncated")
	}
	l := int(getBe32(buf))
	if l < 1 || l > MaxHssLevels {
		return HssPublicKey{}, errorf(ErrParameter, "hss level count %d out of range", l)
	}
	top, rest, err := UnmarshalLmsPublicKey(buf[4:])
	if err != nil {
		return HssPublicKey{}, err
	}
	if len(rest) != 0 {
		return HssPublicKey{}, errorf(ErrParse, "hss public key has trailing bytes")
	}
	return HssPublicKey{L: l, Top: top}, nil
}

// signedPublicKey binds a child level's public key into its parent's
// tree: an LMS signature over the child's marshalled public key,
// carried alongside that public key.
type signedPublicKey struct {
	Sig LmsSignature
	Pub LmsPublicKey
}

// HssSignature is `be32(L-1) || (LMS sig + LMS public key)*(L-1) || LMS sig`.
type HssSignature struct {
	SignedPKs []signedPublicKey
	Bottom    LmsSignature
}

func (sig HssSignature) MarshalBinary() []byte {
	out := be32(uint32(len(sig.SignedPKs)))
	for _, spk := range sig.SignedPKs {
		out = append(out, spk.Sig.MarshalBinary()...)
		out = append(out, spk.Pub.MarshalBinary()...)
	}
	out = append(out, sig.Bottom.MarshalBinary()...)
	return out
}

func UnmarshalHssSignature(buf []byte) (HssSignature, Error) {
	if len(buf) < 4 {
		return HssSignature{}, errorf(ErrParse, "hss signature truncated")
	}
	count := int(getBe32(buf))
	if count < 0 || count >= MaxHssLevels {
		return HssSignature{}, errorf(ErrParameter, "hss signature level count %d out of range", count)
	}
	rest := buf[4:]
	signedPKs := make([]signedPublicKey, count)
	for i := 0; i < count; i++ {
		sig, next, err := UnmarshalLmsSignature(rest)
		if err != nil {
			return HssSignature{}, err
		}
		pub, next2, err := UnmarshalLmsPublicKey(next)
		if err != nil {
			return HssSignature{}, err
		}
		signedPKs[i] = signedPublicKey{Sig: sig, Pub: pub}
		rest = next2
	}
	bottom, rest, err := UnmarshalLmsSignature(rest)
	if err != nil {
		return HssSignature{}, err
	}
	if len(rest) != 0 {
		return HssSignature{}, errorf(ErrParse, "hss signature has trailing bytes")
	}
	return HssSignature{SignedPKs: signedPKs, Bottom: bottom}, nil
}

// HssVerify walks the signed-public-key chain from the root, promoting
// the accepted public key at each step, and finally verifies the
// bottom LMS signature against the leaf-most public key (§4.6).
func HssVerify(pk HssPublicKey, sig HssSignature, message []byte) Error {
	if len(sig.SignedPKs) != pk.L-1 {
		return errorf(ErrVerification, "hss signature has %d levels, want %d", len(sig.SignedPKs)+1, pk.L)
	}
	current := pk.Top
	for _, spk := range sig.SignedPKs {
		if err := LmsVerify(spk.Sig, current.TreeID, current, spk.Pub.MarshalBinary()); err != nil {
			return err
		}
		current = spk.Pub
	}
	return LmsVerify(sig.Bottom, current.TreeID, current, message)
}

// hssLevelState is one materialized level of the HSS stack.
type hssLevelState struct {
	Param    HssParam
	Seed     []byte
	TreeID   []byte
	Nodes    [][]byte
	Pub      LmsPublicKey
	SignedPK LmsSignature // signature over Pub by the parent level; zero value at level 0
}

// HssPrivateKey is the in-memory materialization of a signing-key
// stack for one specific counter value.
type HssPrivateKey struct {
	Params []HssParam
	Levels []*hssLevelState
	// Q is the per-level leaf index this materialization was built
	// for, as decomposed from the used-leaves counter. Stored rather
	// than recomputed in Sign so that an SST materialization (whose
	// level-0 index space is a restricted subtree range) and a plain
	// HSS materialization can share one Sign implementation.
	Q []uint32
	// SstBottom is non-nil only when level 0 is also the bottom
	// (signing) level of an SST-split stack (an L=1 parameter stack
	// under distributed keygen): level 0 then has no full node array
	// to run the ordinary authPath over, only the entity's own local
	// subtree plus the already-combined upper nodes, so Sign must
	// assemble the bottom auth path with sstAuthPath instead.
	SstBottom *sstBottomSignContext
}

// sstBottomSignContext carries what Sign needs to build an SST auth
// path for the bottom level when that level is also level 0.
type sstBottomSignContext struct {
	localNodes map[uint64][]byte
	upperNodes [][]byte
	l0TopDiv   uint8
	entityIdx  uint8
}

// decomposeCounter extracts each level's leaf index from the single
// used-leaves counter, from the LSB upward using the sequence
// (h_{L-1}, ..., h_0): the bottom level consumes the low bits.
func decomposeCounter(params []HssParam, counter uint64) []uint32 {
	l := len(params)
	q := make([]uint32, l)
	rem := counter
	for i := l - 1; i >= 0; i-- {
		h := params[i].Lms.H
		mask := uint64(1)<<h - 1
		q[i] = uint32(rem & mask)
		rem >>= h
	}
	return q
}

// totalTreeHeight sums the tree heights across all HSS levels: log2 of
// the key's total lifetime.
func totalTreeHeight(params []HssParam) uint32 {
	var total uint32
	for _, p := range params {
		total += uint32(p.Lms.H)
	}
	return total
}

// materializeHssPrivateKey rebuilds every level's LMS tree needed to
// sign at the given counter value, deriving each level's seed from its
// parent and the parent leaf index that the child descends from, and
// having each parent sign its child's freshly built public key. aux,
// when non-nil, is consulted (and, on keygen, populated) while
// building level 0's tree: level 0's seed is invariant across every
// materialization of a given key, so it is the only level whose tree
// is worth caching (§4.4).
func materializeHssPrivateKey(params []HssParam, masterSeed []byte, counter uint64, aux *AuxCache) (*HssPrivateKey, Error) {
	l := len(params)
	if l == 0 || l > MaxHssLevels {
		return nil, errorf(ErrParameter, "hss stack must have 1..%d levels", MaxHssLevels)
	}
	if counter >= uint64(1)<<totalTreeHeight(params) {
		return nil, exhaustedErrorf("used-leaves counter %d exceeds lifetime", counter)
	}
	q := decomposeCounter(params, counter)

	levels := make([]*hssLevelState, l)
	seed, treeID := deriveRootSeedAndTreeID(params[0].Lms.Hash, masterSeed)
	for i := 0; i < l; i++ {
		var levelAux *AuxCache
		if i == 0 {
			levelAux = aux
		}
		nodes, root := buildTree(params[i].Lms, params[i].Ots, treeID, seed, levelAux)
		pub := LmsPublicKey{LmsParam: params[i].Lms, LmotsParam: params[i].Ots, TreeID: treeID, Root: root}
		levels[i] = &hssLevelState{Param: params[i], Seed: seed, TreeID: treeID, Nodes: nodes, Pub: pub}

		if i+1 < l {
			childSeed, childTreeID := deriveChildSeedAndTreeID(params[i].Lms.Hash, seed, treeID, q[i])
			seed, treeID = childSeed, childTreeID
		}
	}

	// Sign each child's public key with its parent's leaf q[i-1].
	for i := 1; i < l; i++ {
		parent := levels[i-1]
		randomizer := deriveSignatureRandomizer(parent.Param.Lms.Hash, parent.Seed, parent.TreeID, q[i-1])
		levels[i].SignedPK = LmsSign(parent.Param.Lms, parent.Param.Ots, parent.TreeID, parent.Seed, parent.Nodes, q[i-1], randomizer, levels[i].Pub.MarshalBinary())
	}

	return &HssPrivateKey{Params: params, Levels: levels, Q: q}, nil
}

// PublicKey returns the HSS public key (level 0's LMS public key).
func (sk *HssPrivateKey) PublicKey() HssPublicKey {
	return HssPublicKey{L: len(sk.Levels), Top: sk.Levels[0].Pub}
}

// Sign signs message with the bottom level's leaf this materialization
// was built for (sk.Q), returning the full HSS signature chain. When
// the bottom level is level 0 of an SST-split stack, its auth path is
// assembled from the entity's local subtree and the exchanged upper
// nodes instead of a full node array, since that array was never
// built (§4.8).
func (sk *HssPrivateKey) Sign(message []byte) HssSignature {
	bottom := sk.Levels[len(sk.Levels)-1]
	leafID := sk.Q[len(sk.Q)-1]
	randomizer := deriveSignatureRandomizer(bottom.Param.Lms.Hash, bottom.Seed, bottom.TreeID, leafID)

	var bottomSig LmsSignature
	if sk.SstBottom != nil {
		ots := LmotsSign(bottom.Param.Ots, bottom.TreeID, leafID, bottom.Seed, randomizer, message)
		path := sstAuthPath(bottom.Param.Lms.H, sk.SstBottom.l0TopDiv, sk.SstBottom.localNodes, sk.SstBottom.upperNodes, sk.SstBottom.entityIdx, leafID)
		bottomSig = LmsSignature{Param: bottom.Param.Lms, LeafID: leafID, Ots: ots, Path: path}
	} else {
		bottomSig = LmsSign(bottom.Param.Lms, bottom.Param.Ots, bottom.TreeID, bottom.Seed, bottom.Nodes, leafID, randomizer, message)
	}

	signedPKs := make([]signedPublicKey, len(sk.Levels)-1)
	for i := 1; i < len(sk.Levels); i++ {
		signedPKs[i-1] = signedPublicKey{Sig: sk.Levels[i].SignedPK, Pub: sk.Levels[i].Pub}
	}
	return HssSignature{SignedPKs: signedPKs, Bottom: bottomSig}
}
