package lms

import (
	"crypto/subtle"

	"github.com/templexxx/xorsimd"
)

// AuxCache is the caller-owned, MAC-authenticated cache of interior
// Merkle nodes (C5). Levels are numbered from the root: level 0 is
// the root itself (1 node), level ℓ has 2^ℓ nodes. Caching a prefix
// of levels closest to the root is what the data model's "largest
// suffix of levels (heights closest to the root)" selection means in
// practice: those levels represent the largest subtrees and so are
// the most expensive to recompute from scratch on every sign.
type AuxCache struct {
	hash   HashAlgorithm
	h      uint8
	bitmap uint32
	levels map[uint32][][]byte
	macKey []byte
}

// hssOptimalAuxLevel selects the largest prefix of interior levels
// (from the root; the leaf level h is never cached, since buildTree
// only caches interior rows) whose combined slab size fits within
// budget, after subtracting the fixed 4-byte bitmap and n-byte MAC
// overhead.
func hssOptimalAuxLevel(budget int, h uint8, n int) uint32 {
	avail := budget - 4 - n
	if avail <= 0 {
		return 0
	}
	var bitmap uint32
	total := 0
	for level := uint32(0); level < uint32(h); level++ {
		size := n * (1 << level)
		if total+size > avail {
			break
		}
		total += size
		bitmap |= 1 << level
	}
	return bitmap & auxLevelMask
}

// NewAuxCache allocates a fresh, empty cache sized by budget bytes for
// an LMS tree of height h under hash, keyed from masterSeed.
func NewAuxCache(hash HashAlgorithm, h uint8, masterSeed []byte, budget int) *AuxCache {
	bitmap := hssOptimalAuxLevel(budget, h, hash.OutputSize())
	return &AuxCache{
		hash:   hash,
		h:      h,
		bitmap: bitmap,
		levels: make(map[uint32][][]byte),
		macKey: auxMacKey(hash, masterSeed),
	}
}

// newSstAuxCache allocates a cache that forces every level from the
// root down to l0TopDiv inclusive to be tracked: unlike the general
// budget-driven selection, SST finalize has no use for a partial
// prefix, since every one of those levels was just computed from
// exchanged subtree roots and nothing else can reconstruct it later.
// keyMaterial authenticates the cache: callers must pass the shared
// tree identifier here, not any one entity's private seed, since the
// resulting blob is distributed to every signing entity and each
// holds a different seed.
func newSstAuxCache(hash HashAlgorithm, l0TopDiv uint8, keyMaterial []byte) *AuxCache {
	bitmap := uint32(1)<<(l0TopDiv+1) - 1
	return &AuxCache{
		hash:   hash,
		h:      l0TopDiv,
		bitmap: bitmap,
		levels: make(map[uint32][][]byte),
		macKey: auxMacKey(hash, keyMaterial),
	}
}

func auxMacKey(hash HashAlgorithm, masterSeed []byte) []byte {
	return hash.Hash(be16(dDaux), masterSeed)
}

func (c *AuxCache) tracks(level uint32) bool { return c != nil && c.bitmap&(1<<level) != 0 }
func (c *AuxCache) hasLevel(level uint32) bool {
	if c == nil || !c.tracks(level) {
		return false
	}
	_, ok := c.levels[level]
	return ok
}
func (c *AuxCache) level(level uint32) [][]byte { return c.levels[level] }
func (c *AuxCache) setLevel(level uint32, nodes [][]byte) {
	cp := make([][]byte, len(nodes))
	copy(cp, nodes)
	c.levels[level] = cp
}

// computeMAC is an HMAC-like construction (ipad/opad 0x36/0x5c over
// BLOCK_SIZE) built directly on the package's Hash function rather
// than crypto/hmac, since it must work uniformly for both the SHA-2
// and SHAKE-256 hash families.
func computeMAC(hash HashAlgorithm, key []byte, parts ...[]byte) []byte {
	blockSize := hash.BlockSize()
	paddedKey := make([]byte, blockSize)
	if len(key) > blockSize {
		copy(paddedKey, hash.Hash(key))
	} else {
		copy(paddedKey, key)
	}

	ipadConst := make([]byte, blockSize)
	opadConst := make([]byte, blockSize)
	for i := range ipadConst {
		ipadConst[i] = 0x36
		opadConst[i] = 0x5c
	}
	ipad := make([]byte, blockSize)
	opad := make([]byte, blockSize)
	xorsimd.Bytes(ipad, paddedKey, ipadConst)
	xorsimd.Bytes(opad, paddedKey, opadConst)

	innerParts := append([][]byte{ipad}, parts...)
	inner := hash.Hash(innerParts...)
	return hash.Hash(opad, inner)
}

// MarshalBinary serializes the cache to its wire layout: bitmap(4) ||
// slab_levels_set(...) || mac(n). The bitmap word is written with its
// reserved top bit set, so its first byte never equals NO_AUX_DATA. An
// empty/disabled cache serializes to a single NO_AUX_DATA byte.
func (c *AuxCache) MarshalBinary() []byte {
	if c == nil || c.bitmap == 0 {
		return []byte{noAuxData}
	}
	word := c.bitmap | ^auxLevelMask
	buf := make([]byte, 4)
	buf[0], buf[1], buf[2], buf[3] = byte(word>>24), byte(word>>16), byte(word>>8), byte(word)

	var slabs [][]byte
	for level := uint32(0); level <= uint32(c.h); level++ {
		if !c.tracks(level) {
			continue
		}
		nodes := c.levels[level]
		for _, node := range nodes {
			slabs = append(slabs, node)
		}
	}
	out := append([]byte{}, buf...)
	for _, s := range slabs {
		out = append(out, s...)
	}
	mac := computeMAC(c.hash, c.macKey, out)
	return append(out, mac...)
}

// ParseAuxCache parses the wire layout produced by MarshalBinary,
// verifying its MAC in constant time. A MAC mismatch demotes the
// cache to empty (never a silent wrong root, per the testable
// property in §8) rather than returning a hard error: the signer
// falls back to recomputing the tree from scratch. The MAC is read
// right after the slabs the bitmap names, so bytes trailing it (such as
// the zero padding of a caller's fixed-size aux buffer) are ignored.
func ParseAuxCache(buf []byte, hash HashAlgorithm, h uint8, masterSeed []byte) *AuxCache {
	empty := &AuxCache{hash: hash, h: h, levels: make(map[uint32][][]byte), macKey: auxMacKey(hash, masterSeed)}
	if len(buf) == 0 || buf[0] == noAuxData {
		return empty
	}
	n := hash.OutputSize()
	if len(buf) < 4+n {
		log.Logf("lms: aux data too short, disabling cache")
		return empty
	}
	bitmap := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	bitmap &= auxLevelMask

	bodyLen := 4
	for level := uint32(0); level <= uint32(h); level++ {
		if bitmap&(1<<level) != 0 {
			bodyLen += n << level
		}
	}
	if len(buf) < bodyLen+n {
		log.Logf("lms: aux data truncated, disabling cache")
		return empty
	}
	body := buf[:bodyLen]
	mac := buf[bodyLen : bodyLen+n]
	expected := computeMAC(hash, empty.macKey, body)
	if subtle.ConstantTimeCompare(mac, expected) != 1 {
		log.Logf("lms: aux data mac mismatch, disabling cache")
		return empty
	}

	c := &AuxCache{hash: hash, h: h, bitmap: bitmap, levels: make(map[uint32][][]byte), macKey: empty.macKey}
	off := 4
	for level := uint32(0); level <= uint32(h); level++ {
		if !c.tracks(level) {
			continue
		}
		count := 1 << level
		nodes := make([][]byte, count)
		for i := 0; i < count; i++ {
			if off+n > len(body) {
				log.Logf("lms: aux data truncated, disabling cache")
				return empty
			}
			nodes[i] = body[off : off+n]
			off += n
		}
		c.levels[level] = nodes
	}
	return c
}
