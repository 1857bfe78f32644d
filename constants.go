package lms

// Domain separators, carried verbatim from the reference construction
// this engine implements. They never overlap across construction
// inputs (§3 invariant).
const (
	dPblc    uint16 = 0x8080
	dMesg    uint16 = 0x8181
	dLeaf    uint16 = 0x8282
	dIntr    uint16 = 0x8383
	dTopseed uint16 = 0xfefe
	dDaux    uint16 = 0xfdfd
)

// Seed-derivation child tags (§4.2).
const (
	seedChildSeed              uint16 = 0xfffe
	seedSignatureRandomizerSeed uint16 = 0xabba
)

// auxLevelMask masks the aux-data level bitmap to 31 usable bits (top
// bit reserved: MarshalBinary sets it so a stored bitmap's first byte
// is never NO_AUX_DATA). A precursor revision of this construction used
// 0x7ffffffff (35 bits) by mistake; the correct mask is 0x7fffffff.
const auxLevelMask uint32 = 0x7fffffff

// noAuxData is the aux-buffer first byte meaning "cache disabled".
const noAuxData byte = 0x00

// maxHashOptimizations bounds the fast-verify randomizer grind (C9).
const maxHashOptimizations = 10000
