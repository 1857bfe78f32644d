package lms

// ReferenceImplPrivateKey is the engine's on-disk signing-key state
// (§3, §4.7): a monotonic used-leaves counter, the HSS parameter stack
// compressed into one nibble-pair byte per level, the master seed, and
// an optional SST extension. It carries no in-memory tree state of its
// own; every sign rematerializes the stack it needs from the seed.
type ReferenceImplPrivateKey struct {
	UsedLeavesCounter uint64
	Params            []HssParam
	Seed              []byte
	Sst               *SstExtension
}

// wipe zeroes the seed in place. Called only when a signing operation
// has just consumed the last leaf of this key's lifetime: the
// persisted state thereafter carries no secret material, so any
// future load-and-sign attempt fails cleanly instead of risking leaf
// reuse from a stale backup of the seed.
func (sk *ReferenceImplPrivateKey) wipe() {
	for i := range sk.Seed {
		sk.Seed[i] = 0
	}
}

// marshalCompressedParameters packs one (lms_type<<4)|lmots_type byte
// per HSS level, padding unused levels (and, for fewer than 8 levels,
// the slots after the last one) with the 0xFF terminator.
func marshalCompressedParameters(params []HssParam) [8]byte {
	var out [8]byte
	for i := range out {
		out[i] = 0xff
	}
	for i, p := range params {
		out[i] = byte((p.Lms.TypeID<<4)&0xf0) | byte(p.Ots.TypeID&0x0f)
	}
	return out
}

func unmarshalCompressedParameters(buf [8]byte) ([]HssParam, Error) {
	var params []HssParam
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0xff {
			break
		}
		lmsID := uint32(buf[i] >> 4)
		otsID := uint32(buf[i] & 0x0f)
		lp, err := LmsParamFromID(lmsID)
		if err != nil {
			return nil, err
		}
		op, err := LmotsParamFromID(otsID)
		if err != nil {
			return nil, err
		}
		params = append(params, HssParam{Ots: op, Lms: lp})
	}
	if len(params) == 0 {
		return nil, errorf(ErrParse, "private key has no hss levels")
	}
	if len(params) > MaxHssLevels {
		return nil, errorf(ErrParse, "private key has more than %d hss levels", MaxHssLevels)
	}
	return params, nil
}

// MarshalBinary encodes the private key: used_leaves_counter(8) ||
// compressed_parameters(8) || seed(n) || sst_extension(2)?.
func (sk *ReferenceImplPrivateKey) MarshalBinary() []byte {
	cp := marshalCompressedParameters(sk.Params)
	out := make([]byte, 0, 16+len(sk.Seed)+2)
	out = append(out, be64(sk.UsedLeavesCounter)...)
	out = append(out, cp[:]...)
	out = append(out, sk.Seed...)
	if sk.Sst != nil {
		out = append(out, sk.Sst.MarshalBinary()...)
	}
	return out
}

// UnmarshalReferenceImplPrivateKey parses the wire format written by
// MarshalBinary. The seed length, and so the presence of a trailing
// SST extension, follows from level 0's hash family once the
// compressed parameters are decoded.
func UnmarshalReferenceImplPrivateKey(buf []byte) (*ReferenceImplPrivateKey, Error) {
	if len(buf) < 8+8 {
		return nil, errorf(ErrParse, "private key truncated")
	}
	counter := getBe64(buf)
	var cp [8]byte
	copy(cp[:], buf[8:16])
	params, err := unmarshalCompressedParameters(cp)
	if err != nil {
		return nil, err
	}

	n := params[0].Lms.Hash.OutputSize()
	rest := buf[16:]
	var sst *SstExtension
	switch len(rest) {
	case n:
	case n + 2:
		ext, err := unmarshalSstExtension(rest[n:])
		if err != nil {
			return nil, err
		}
		sst = &ext
	default:
		return nil, errorf(ErrParse, "private key has wrong length for a %d-byte seed", n)
	}
	return &ReferenceImplPrivateKey{
		UsedLeavesCounter: counter,
		Params:            params,
		Seed:              rest[:n],
		Sst:               sst,
	}, nil
}

// Keygen builds a fresh HSS signing key over the given parameter stack
// and master seed, returning the private and public key wire formats
// (§6). The counter starts at zero. When auxBudget is positive, level
// 0's tree is built under a fresh aux cache sized to that budget and
// the resulting MAC-authenticated blob is returned for the caller to
// persist alongside the private key and hand back to later Sign calls
// (§4.4); a non-positive budget skips aux entirely and auxBytes is nil.
func Keygen(params []HssParam, seed []byte, auxBudget int) (skBytes, vkBytes, auxBytes []byte, err Error) {
	if len(params) == 0 || len(params) > MaxHssLevels {
		return nil, nil, nil, errorf(ErrParameter, "hss stack must have 1..%d levels", MaxHssLevels)
	}
	n := params[0].Lms.Hash.OutputSize()
	if len(seed) != n {
		return nil, nil, nil, errorf(ErrParameter, "seed must be %d bytes for the chosen hash family", n)
	}

	var aux *AuxCache
	if auxBudget > 0 {
		aux = NewAuxCache(params[0].Lms.Hash, params[0].Lms.H, seed, auxBudget)
	}
	hssSk, err := materializeHssPrivateKey(params, seed, 0, aux)
	if err != nil {
		return nil, nil, nil, err
	}
	if aux != nil {
		auxBytes = aux.MarshalBinary()
	}
	sk := &ReferenceImplPrivateKey{UsedLeavesCounter: 0, Params: params, Seed: append([]byte{}, seed...)}
	return sk.MarshalBinary(), hssSk.PublicKey().MarshalBinary(), auxBytes, nil
}

// Sign implements the sign transition of §4.7: parse and load,
// materialize the minimum stack needed for the current counter, sign,
// persist the advanced counter, and only then release the signature.
// If persist fails the signature is discarded. An SST-extended private
// key requires the shared tree identifier and the aux bytes produced
// by FinalizeSstKeygen (carrying the exchanged subtree roots). A plain
// key's auxBytes, when non-empty, is the blob Keygen returned; a MAC
// mismatch or absent blob falls back to rebuilding level 0 from
// scratch, never to a wrong signature.
func Sign(message, skBytes []byte, persist func([]byte) error, auxBytes, treeID []byte) (sigBytes []byte, err Error) {
	sk, err := UnmarshalReferenceImplPrivateKey(skBytes)
	if err != nil {
		return nil, err
	}

	var hssSk *HssPrivateKey
	var totalHeight uint32
	if sk.Sst != nil {
		if len(treeID) != 16 {
			return nil, errorf(ErrParameter, "sst signing requires the 16-byte shared tree identifier")
		}
		aux := ParseAuxCache(auxBytes, sk.Params[0].Lms.Hash, sk.Sst.L0TopDiv, treeID)
		upperNodes, uerr := upperNodesFromAux(aux, sk.Sst.L0TopDiv)
		if uerr != nil {
			return nil, uerr
		}
		totalHeight = totalTreeHeightSst(sk.Params, sk.Sst.L0TopDiv)
		if sk.UsedLeavesCounter >= uint64(1)<<totalHeight {
			return nil, exhaustedErrorf("sst entity %d leaf counter exhausted", sk.Sst.SigningEntityIdx)
		}
		hssSk, err = materializeHssPrivateKeySst(sk.Params, sk.Seed, treeID, *sk.Sst, upperNodes, sk.UsedLeavesCounter)
	} else {
		totalHeight = totalTreeHeight(sk.Params)
		if sk.UsedLeavesCounter >= uint64(1)<<totalHeight {
			return nil, exhaustedErrorf("private key leaf counter exhausted")
		}
		aux := ParseAuxCache(auxBytes, sk.Params[0].Lms.Hash, sk.Params[0].Lms.H, sk.Seed)
		hssSk, err = materializeHssPrivateKey(sk.Params, sk.Seed, sk.UsedLeavesCounter, aux)
	}
	if err != nil {
		return nil, err
	}

	sig := hssSk.Sign(message)
	sigBytesOut := sig.MarshalBinary()

	next := &ReferenceImplPrivateKey{
		UsedLeavesCounter: sk.UsedLeavesCounter + 1,
		Params:            sk.Params,
		Seed:              sk.Seed,
		Sst:               sk.Sst,
	}
	if next.UsedLeavesCounter >= uint64(1)<<totalHeight {
		next.wipe()
	}
	if perr := persist(next.MarshalBinary()); perr != nil {
		return nil, wrapErrorf(ErrPersistFailure, perr, "persist callback failed, signature discarded")
	}
	return sigBytesOut, nil
}

// Verify checks sigBytes against message under the verifying key
// vkBytes. Verifiers never see SST structure: an entity's signature is
// an ordinary HSS signature (§4.8).
func Verify(message, sigBytes, vkBytes []byte) Error {
	pk, err := UnmarshalHssPublicKey(vkBytes)
	if err != nil {
		return err
	}
	sig, err := UnmarshalHssSignature(sigBytes)
	if err != nil {
		return err
	}
	return HssVerify(pk, sig, message)
}

// PrepareSstKeygen is step 1 of the distributed-keygen protocol
// (§4.8): this entity computes the root of its own subtree, under a
// tree identifier shared out of band (the first entity's prepare
// output), and returns its serialized private key alongside the
// subtree root to publish to the rest of the signing quorum.
func PrepareSstKeygen(params []HssParam, ext SstExtension, seed, treeID []byte) (skBytes, subtreeRoot []byte, err Error) {
	if len(params) == 0 || len(params) > MaxHssLevels {
		return nil, nil, errorf(ErrParameter, "hss stack must have 1..%d levels", MaxHssLevels)
	}
	h0 := params[0].Lms.H
	if err := validateSstExtension(ext, h0); err != nil {
		return nil, nil, err
	}
	n := params[0].Lms.Hash.OutputSize()
	if len(seed) != n {
		return nil, nil, errorf(ErrParameter, "seed must be %d bytes for the chosen hash family", n)
	}
	if len(treeID) != 16 {
		return nil, nil, errorf(ErrParameter, "tree identifier must be 16 bytes")
	}

	firstLeaf, lastLeaf := sstLeafRange(ext.SigningEntityIdx, ext.L0TopDiv, h0)
	_, root := buildSubtree(params[0].Lms, params[0].Ots, treeID, seed, firstLeaf, lastLeaf+1)

	sk := &ReferenceImplPrivateKey{
		UsedLeavesCounter: 0,
		Params:            params,
		Seed:              append([]byte{}, seed...),
		Sst:               &ext,
	}
	return sk.MarshalBinary(), root, nil
}

// FinalizeSstKeygen is step 2 of the distributed-keygen protocol
// (§4.8): given every entity's published subtree root (in ascending
// signing-entity-index order), this entity combines them into the
// global LMS root and returns the shared verifying key, along with an
// aux-cache blob carrying the combined upper levels so that later
// Sign calls never need to repeat the combine step.
func FinalizeSstKeygen(skBytes []byte, allSubtreeRoots [][]byte, treeID []byte) (vkBytes, auxBytes []byte, err Error) {
	sk, err := UnmarshalReferenceImplPrivateKey(skBytes)
	if err != nil {
		return nil, nil, err
	}
	if sk.Sst == nil {
		return nil, nil, errorf(ErrParameter, "private key has no sst extension")
	}
	n := sk.Sst.NumSigningEntities()
	if uint32(len(allSubtreeRoots)) != n {
		return nil, nil, errorf(ErrParameter, "expected %d subtree roots, got %d", n, len(allSubtreeRoots))
	}
	if len(treeID) != 16 {
		return nil, nil, errorf(ErrParameter, "tree identifier must be 16 bytes")
	}

	lp := sk.Params[0].Lms
	upperNodes, root := combineSubtreeRoots(lp, treeID, sk.Sst.L0TopDiv, allSubtreeRoots)

	// Keyed off the shared tree identifier, not this entity's own
	// seed: the aux blob is distributed to every signing entity, each
	// of which holds a different seed, so a seed-keyed MAC would only
	// ever validate for whichever entity happened to run Finalize.
	aux := newSstAuxCache(lp.Hash, sk.Sst.L0TopDiv, treeID)
	for level := uint32(0); level <= uint32(sk.Sst.L0TopDiv); level++ {
		base := uint64(1) << level
		aux.setLevel(level, upperNodes[base:base<<1])
	}

	pub := LmsPublicKey{LmsParam: lp, LmotsParam: sk.Params[0].Ots, TreeID: treeID, Root: root}
	hssPub := HssPublicKey{L: len(sk.Params), Top: pub}
	return hssPub.MarshalBinary(), aux.MarshalBinary(), nil
}

// GetNumSigningEntities returns N = 2^l0_top_div for an SST-extended
// private key, or a parameter error if the key carries no extension.
func GetNumSigningEntities(skBytes []byte) (uint32, Error) {
	sk, err := UnmarshalReferenceImplPrivateKey(skBytes)
	if err != nil {
		return 0, err
	}
	if sk.Sst == nil {
		return 0, errorf(ErrParameter, "private key has no sst extension")
	}
	return sk.Sst.NumSigningEntities(), nil
}
