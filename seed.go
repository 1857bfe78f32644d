package lms

// seedDerive implements the per-leaf/per-child/per-randomizer seed
// derivation of §4.2: buf := I || be32(q) || be16(tag) || 0xFF || S,
// hashed and truncated to the hash's output size. A single seedDerive
// is reused across calls and only the child tag is bumped in between,
// mirroring how a child tree's seed and its co-located I value are
// derived from the same preimage with consecutive tags.
type seedDerive struct {
	hash        HashAlgorithm
	masterSeed  []byte
	treeID      []byte // 16 bytes
	leafID      uint32
	childTag    uint16
}

const (
	prngI       = 0
	prngQ       = 16
	prngJ       = 20
	prngFF      = 22
	prngSeed    = 23
	prngMaxLen  = prngSeed + 32 // largest supported master seed is 32 bytes
)

func newSeedDerive(hash HashAlgorithm, masterSeed, treeID []byte) *seedDerive {
	return &seedDerive{hash: hash, masterSeed: masterSeed, treeID: treeID}
}

func (d *seedDerive) setLeafID(id uint32)   { d.leafID = id }
func (d *seedDerive) setChildTag(tag uint16) { d.childTag = tag }

// derive computes H(buf) truncated to the hash's output size. If
// incrementTag is set, childTag is bumped afterwards so that a
// subsequent call derives the co-located value (e.g. a child tree's I
// value after its seed).
func (d *seedDerive) derive(incrementTag bool) []byte {
	var buf [prngMaxLen]byte
	copy(buf[prngI:prngI+16], d.treeID)
	copy(buf[prngQ:prngQ+4], be32(d.leafID))
	copy(buf[prngJ:prngJ+2], be16(d.childTag))
	buf[prngFF] = 0xff
	copy(buf[prngSeed:prngSeed+len(d.masterSeed)], d.masterSeed)

	if incrementTag {
		d.childTag++
	}
	return d.hash.Hash(buf[:prngSeed+len(d.masterSeed)])
}

// deriveChildSeedAndTreeID derives a child level's (seed, treeID) pair
// from the parent's (seed, treeID) and the parent leaf index that the
// child descends from, using the seedChildSeed tag.
func deriveChildSeedAndTreeID(hash HashAlgorithm, parentSeed, parentTreeID []byte, parentLeafID uint32) (seed, treeID []byte) {
	d := newSeedDerive(hash, parentSeed, parentTreeID)
	d.setLeafID(parentLeafID)
	d.setChildTag(seedChildSeed)
	seed = d.derive(true)
	treeID = d.derive(false)[:16]
	return
}

// deriveSignatureRandomizer derives the per-signature randomizer C for
// a leaf from that leaf's level (seed, treeID) and its leaf index.
func deriveSignatureRandomizer(hash HashAlgorithm, seed, treeID []byte, leafID uint32) []byte {
	d := newSeedDerive(hash, seed, treeID)
	d.setLeafID(leafID)
	d.setChildTag(seedSignatureRandomizerSeed)
	return d.derive(false)
}

// topseedLen/topseedD/topseedWhich/topseedSeedOff mirror the offsets of
// the two-stage D_TOPSEED construction used to derive the root LMS
// tree's seed and identifier from the master private-key seed.
const (
	topseedSeedOff = 23
	topseedD       = 20
	topseedWhich   = 22
	topseedLen     = topseedSeedOff + 32
)

// deriveRootSeedAndTreeID derives the topmost HSS level's (seed,
// treeID) from the master private-key seed via the D_TOPSEED
// construction: hash the master seed once to fold it into a fixed
// 55-byte preimage, then hash that preimage twice more (marker bytes
// 0x01, 0x02) to split out an independent seed and tree identifier.
func deriveRootSeedAndTreeID(hash HashAlgorithm, masterSeed []byte) (seed, treeID []byte) {
	var preimage [topseedLen]byte
	preimage[topseedD] = byte(dTopseed >> 8)
	preimage[topseedD+1] = byte(dTopseed)
	copy(preimage[topseedSeedOff:topseedSeedOff+len(masterSeed)], masterSeed)

	folded := hash.Hash(preimage[:])
	copy(preimage[topseedSeedOff:topseedSeedOff+len(folded)], folded)

	preimage[topseedWhich] = 0x01
	seed = hash.Hash(preimage[:])

	preimage[topseedWhich] = 0x02
	treeID = hash.Hash(preimage[:])[:16]
	return
}
