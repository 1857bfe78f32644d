package lms

import "crypto/subtle"

// LmotsPublicKey is a reconstructed or generated LM-OTS one-time
// public key: the hashed concatenation of its chain endpoints.
type LmotsPublicKey struct {
	Param  LmotsParam
	TreeID []byte // I, 16 bytes
	LeafID uint32 // q
	Key    []byte // n bytes
}

// LmotsSignature is (C, y_0, ..., y_{p-1}) per §4.3.
type LmotsSignature struct {
	Param      LmotsParam
	Randomizer []byte // C, n bytes
	Chains     [][]byte
}

// coef extracts the i-th w-bit digit of bs, MSB-first within each
// byte. Defined only for w in {1,2,4,8} (§4.3).
func coef(bs []byte, i int, w uint8) uint8 {
	digitsPerByte := 8 / int(w)
	byteIdx := i / digitsPerByte
	shift := 8 - (uint(i%digitsPerByte)+1)*uint(w)
	mask := byte((1 << w) - 1)
	return (bs[byteIdx] >> shift) & mask
}

// lmotsChainCoefficients computes the p base-2^w digits a message hash
// Q expands to: the hash-chain-count digits of Q itself, followed by
// the digits of its checksum.
func lmotsChainCoefficients(p LmotsParam, q []byte) []uint8 {
	n := p.Hash.OutputSize()
	numQDigits := (n * 8) / int(p.W)
	digits := make([]uint8, p.P)
	for i := 0; i < numQDigits; i++ {
		digits[i] = coef(q, i, p.W)
	}

	var csum uint32
	maxDigit := uint32(1)<<p.W - 1
	for i := 0; i < numQDigits; i++ {
		csum += maxDigit - uint32(digits[i])
	}
	csum <<= p.Ls

	// the checksum always fits a 16-bit word once ls-shifted; its
	// remaining w-bit digits are extracted the same way Q's are.
	csumBytes := be16(uint16(csum))
	for i := numQDigits; i < int(p.P); i++ {
		digits[i] = coef(csumBytes, i-numQDigits, p.W)
	}
	return digits
}

// lmotsChain walks buf from step `from` to `to` (exclusive), applying
// the domain-separated hash F at each step.
func lmotsChain(p LmotsParam, treeID []byte, leafID uint32, chainIdx int, from, to int, buf []byte) []byte {
	maxSteps := int(1<<p.W) - 1
	if to > maxSteps {
		to = maxSteps
	}
	for j := from; j < to; j++ {
		buf = p.Hash.Hash(treeID, be32(leafID), be16(uint16(chainIdx)), []byte{byte(j)}, buf)
	}
	return buf
}

// lmotsSecret derives the i-th chain's secret seed x_i from the level
// seed S.
func lmotsSecret(p LmotsParam, treeID []byte, leafID uint32, chainIdx int, levelSeed []byte) []byte {
	return p.Hash.Hash(treeID, be32(leafID), be16(uint16(chainIdx)), []byte{0xff}, levelSeed)
}

// LmotsKeygen derives the one-time public key for leaf (treeID, leafID)
// from the level seed.
func LmotsKeygen(p LmotsParam, treeID []byte, leafID uint32, levelSeed []byte) LmotsPublicKey {
	n := p.Hash.OutputSize()
	maxSteps := int(1<<p.W) - 1
	concat := make([]byte, 0, int(p.P)*n)
	for i := 0; i < int(p.P); i++ {
		x := lmotsSecret(p, treeID, leafID, i, levelSeed)
		y := lmotsChain(p, treeID, leafID, i, 0, maxSteps, x)
		concat = append(concat, y...)
	}
	key := p.Hash.Hash(treeID, be32(leafID), be16(dPblc), concat)
	return LmotsPublicKey{Param: p, TreeID: treeID, LeafID: leafID, Key: key}
}

// LmotsSign produces a one-time signature of message with the given
// level seed and randomizer C.
func LmotsSign(p LmotsParam, treeID []byte, leafID uint32, levelSeed, randomizer, message []byte) LmotsSignature {
	q := p.Hash.Hash(treeID, be32(leafID), be16(dMesg), randomizer, message)
	digits := lmotsChainCoefficients(p, q)

	chains := make([][]byte, p.P)
	for i := 0; i < int(p.P); i++ {
		x := lmotsSecret(p, treeID, leafID, i, levelSeed)
		chains[i] = lmotsChain(p, treeID, leafID, i, 0, int(digits[i]), x)
	}
	return LmotsSignature{Param: p, Randomizer: randomizer, Chains: chains}
}

// LmotsPublicKeyCandidate reconstructs the public key implied by a
// signature over message; the caller compares it to the expected leaf
// value (done by the LMS layer, which knows the expected leaf hash).
func LmotsPublicKeyCandidate(sig LmotsSignature, treeID []byte, leafID uint32, message []byte) LmotsPublicKey {
	p := sig.Param
	maxSteps := int(1<<p.W) - 1
	q := p.Hash.Hash(treeID, be32(leafID), be16(dMesg), sig.Randomizer, message)
	digits := lmotsChainCoefficients(p, q)

	concat := make([]byte, 0, int(p.P)*p.Hash.OutputSize())
	for i := 0; i < int(p.P); i++ {
		z := lmotsChain(p, treeID, leafID, i, int(digits[i]), maxSteps, sig.Chains[i])
		concat = append(concat, z...)
	}
	key := p.Hash.Hash(treeID, be32(leafID), be16(dPblc), concat)
	return LmotsPublicKey{Param: p, TreeID: treeID, LeafID: leafID, Key: key}
}

// Equal performs a constant-time comparison of two public keys' Key
// bytes (used on the LMS verify path).
func (pk LmotsPublicKey) Equal(other LmotsPublicKey) bool {
	return subtle.ConstantTimeCompare(pk.Key, other.Key) == 1
}

// MarshalBinary encodes an LMOTS signature: be32(lmots_type) || C || y_0 || ... || y_{p-1}.
func (sig LmotsSignature) MarshalBinary() []byte {
	n := sig.Param.Hash.OutputSize()
	out := make([]byte, 0, 4+n+int(sig.Param.P)*n)
	out = append(out, be32(sig.Param.TypeID)...)
	out = append(out, sig.Randomizer...)
	for _, c := range sig.Chains {
		out = append(out, c...)
	}
	return out
}

// UnmarshalLmotsSignature parses the wire format written by
// MarshalBinary.
func UnmarshalLmotsSignature(buf []byte) (LmotsSignature, []byte, Error) {
	if len(buf) < 4 {
		return LmotsSignature{}, nil, errorf(ErrParse, "lmots signature truncated")
	}
	typeID := getBe32(buf)
	p, err := LmotsParamFromID(typeID)
	if err != nil {
		return LmotsSignature{}, nil, err
	}
	n := p.Hash.OutputSize()
	need := 4 + n + int(p.P)*n
	if len(buf) < need {
		return LmotsSignature{}, nil, errorf(ErrParse, "lmots signature truncated: need %d have %d", need, len(buf))
	}
	off := 4
	randomizer := buf[off : off+n]
	off += n
	chains := make([][]byte, p.P)
	for i := 0; i < int(p.P); i++ {
		chains[i] = buf[off : off+n]
		off += n
	}
	return LmotsSignature{Param: p, Randomizer: randomizer, Chains: chains}, buf[need:], nil
}
