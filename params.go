package lms

import (
	"encoding/binary"
)

// LmotsParam describes one LM-OTS one-time-signature parameter set: a
// Winternitz width and the hash family it is built over. P and Ls are
// derived from W and the hash's output size (RFC 8554 Appendix B),
// never stored independently of (Hash, W).
type LmotsParam struct {
	TypeID uint32
	Hash   HashAlgorithm
	W      uint8 // winternitz width, one of {1,2,4,8}
	P      uint16
	Ls     uint8
}

// LmsParam describes one LMS Merkle-tree parameter set: a tree height
// and the hash family it is built over.
type LmsParam struct {
	TypeID uint32
	Hash   HashAlgorithm
	H      uint8 // tree height, one of {5,10,15,20,25}
}

// HssParam is one level of an HSS stack: an LM-OTS parameter for its
// leaves and an LMS parameter for its tree.
type HssParam struct {
	Ots LmotsParam
	Lms LmsParam
}

// bitLen returns floor(log2(x))+1 for x > 0, and 0 for x == 0.
func bitLen(x int) int {
	n := 0
	for x > 0 {
		n++
		x >>= 1
	}
	return n
}

// lmotsPAndLs derives (P, Ls) from the hash output size n and
// Winternitz width w per RFC 8554 Appendix B.
func lmotsPAndLs(n int, w uint8) (p uint16, ls uint8) {
	u := (8*n + int(w) - 1) / int(w)
	maxDigit := (1 << w) - 1
	csumMax := u * maxDigit
	v := (bitLen(csumMax) + int(w) - 1) / int(w)
	return uint16(u + v), uint8(16 - v*int(w))
}

// NewLmotsParam builds the LM-OTS parameter set for the given hash
// family and Winternitz width, computing P and Ls.
func NewLmotsParam(typeID uint32, hash HashAlgorithm, w uint8) (LmotsParam, Error) {
	switch w {
	case 1, 2, 4, 8:
	default:
		return LmotsParam{}, errorf(ErrParameter, "winternitz width %d not in {1,2,4,8}", w)
	}
	if !hash.Valid() {
		return LmotsParam{}, errorf(ErrParameter, "invalid hash algorithm %d", hash)
	}
	p, ls := lmotsPAndLs(hash.OutputSize(), w)
	return LmotsParam{TypeID: typeID, Hash: hash, W: w, P: p, Ls: ls}, nil
}

// NewLmsParam builds the LMS parameter set for the given hash family
// and tree height.
func NewLmsParam(typeID uint32, hash HashAlgorithm, h uint8) (LmsParam, Error) {
	switch h {
	case 5, 10, 15, 20, 25:
	default:
		return LmsParam{}, errorf(ErrParameter, "tree height %d not in {5,10,15,20,25}", h)
	}
	if !hash.Valid() {
		return LmsParam{}, errorf(ErrParameter, "invalid hash algorithm %d", hash)
	}
	return LmsParam{TypeID: typeID, Hash: hash, H: h}, nil
}

// Leaves returns the number of OTS leaves, 2^h, in the LMS tree.
func (p LmsParam) Leaves() uint64 { return uint64(1) << p.H }

// Well-known type ids. The LM-OTS SHA-256/n=32 ids match RFC 8554's;
// the LMS ids are numbered from 1 (RFC 8554 numbers its SHA-256 LMS
// sets from 5). Ids are also registered for the SHA-256/n=24
// truncation and the SHAKE-256/n=32 family; no n=16 sets are
// registered.
const (
	LmotsSHA256N32W1 uint32 = 1
	LmotsSHA256N32W2 uint32 = 2
	LmotsSHA256N32W4 uint32 = 3
	LmotsSHA256N32W8 uint32 = 4

	LmotsSHA256N24W1 uint32 = 5
	LmotsSHA256N24W2 uint32 = 6
	LmotsSHA256N24W4 uint32 = 7
	LmotsSHA256N24W8 uint32 = 8

	LmotsSHAKE256N32W1 uint32 = 9
	LmotsSHAKE256N32W2 uint32 = 10
	LmotsSHAKE256N32W4 uint32 = 11
	LmotsSHAKE256N32W8 uint32 = 12

	// LMS type ids are kept within a 4-bit nibble, like the LM-OTS ids
	// above: the reference private key's CompressedParameters packs
	// one (lms_type<<4)|lmots_type byte per HSS level (§4.7), which
	// only round-trips losslessly if both ids fit in 4 bits.
	LmsSHA256H5  uint32 = 1
	LmsSHA256H10 uint32 = 2
	LmsSHA256H15 uint32 = 3
	LmsSHA256H20 uint32 = 4
	LmsSHA256H25 uint32 = 5

	LmsSHA256N24H5  uint32 = 6
	LmsSHA256N24H10 uint32 = 7
	LmsSHA256N24H15 uint32 = 8
	LmsSHA256N24H20 uint32 = 9
	LmsSHA256N24H25 uint32 = 10

	LmsSHAKE256H5  uint32 = 11
	LmsSHAKE256H10 uint32 = 12
	LmsSHAKE256H15 uint32 = 13
	LmsSHAKE256H20 uint32 = 14
	LmsSHAKE256H25 uint32 = 15
)

var lmotsRegistry = map[uint32]LmotsParam{}
var lmsRegistry = map[uint32]LmsParam{}
var lmotsByName = map[string]uint32{}
var lmsByName = map[string]uint32{}

func mustLmots(id uint32, name string, hash HashAlgorithm, w uint8) {
	p, err := NewLmotsParam(id, hash, w)
	if err != nil {
		panic(err)
	}
	lmotsRegistry[id] = p
	lmotsByName[name] = id
}

func mustLms(id uint32, name string, hash HashAlgorithm, h uint8) {
	p, err := NewLmsParam(id, hash, h)
	if err != nil {
		panic(err)
	}
	lmsRegistry[id] = p
	lmsByName[name] = id
}

func init() {
	mustLmots(LmotsSHA256N32W1, "LMOTS_SHA256_N32_W1", HashSHA256, 1)
	mustLmots(LmotsSHA256N32W2, "LMOTS_SHA256_N32_W2", HashSHA256, 2)
	mustLmots(LmotsSHA256N32W4, "LMOTS_SHA256_N32_W4", HashSHA256, 4)
	mustLmots(LmotsSHA256N32W8, "LMOTS_SHA256_N32_W8", HashSHA256, 8)

	mustLmots(LmotsSHA256N24W1, "LMOTS_SHA256_N24_W1", HashSHA256_192, 1)
	mustLmots(LmotsSHA256N24W2, "LMOTS_SHA256_N24_W2", HashSHA256_192, 2)
	mustLmots(LmotsSHA256N24W4, "LMOTS_SHA256_N24_W4", HashSHA256_192, 4)
	mustLmots(LmotsSHA256N24W8, "LMOTS_SHA256_N24_W8", HashSHA256_192, 8)

	mustLmots(LmotsSHAKE256N32W1, "LMOTS_SHAKE256_N32_W1", HashSHAKE256, 1)
	mustLmots(LmotsSHAKE256N32W2, "LMOTS_SHAKE256_N32_W2", HashSHAKE256, 2)
	mustLmots(LmotsSHAKE256N32W4, "LMOTS_SHAKE256_N32_W4", HashSHAKE256, 4)
	mustLmots(LmotsSHAKE256N32W8, "LMOTS_SHAKE256_N32_W8", HashSHAKE256, 8)

	mustLms(LmsSHA256H5, "LMS_SHA256_H5", HashSHA256, 5)
	mustLms(LmsSHA256H10, "LMS_SHA256_H10", HashSHA256, 10)
	mustLms(LmsSHA256H15, "LMS_SHA256_H15", HashSHA256, 15)
	mustLms(LmsSHA256H20, "LMS_SHA256_H20", HashSHA256, 20)
	mustLms(LmsSHA256H25, "LMS_SHA256_H25", HashSHA256, 25)

	mustLms(LmsSHA256N24H5, "LMS_SHA256_N24_H5", HashSHA256_192, 5)
	mustLms(LmsSHA256N24H10, "LMS_SHA256_N24_H10", HashSHA256_192, 10)
	mustLms(LmsSHA256N24H15, "LMS_SHA256_N24_H15", HashSHA256_192, 15)
	mustLms(LmsSHA256N24H20, "LMS_SHA256_N24_H20", HashSHA256_192, 20)
	mustLms(LmsSHA256N24H25, "LMS_SHA256_N24_H25", HashSHA256_192, 25)

	mustLms(LmsSHAKE256H5, "LMS_SHAKE256_H5", HashSHAKE256, 5)
	mustLms(LmsSHAKE256H10, "LMS_SHAKE256_H10", HashSHAKE256, 10)
	mustLms(LmsSHAKE256H15, "LMS_SHAKE256_H15", HashSHAKE256, 15)
	mustLms(LmsSHAKE256H20, "LMS_SHAKE256_H20", HashSHAKE256, 20)
	mustLms(LmsSHAKE256H25, "LMS_SHAKE256_H25", HashSHAKE256, 25)
}

// LmotsParamFromID looks up a registered LM-OTS parameter set by its
// wire type id.
func LmotsParamFromID(id uint32) (LmotsParam, Error) {
	p, ok := lmotsRegistry[id]
	if !ok {
		return LmotsParam{}, errorf(ErrParse, "unknown lm-ots type id %d", id)
	}
	return p, nil
}

// LmsParamFromID looks up a registered LMS parameter set by its wire
// type id.
func LmsParamFromID(id uint32) (LmsParam, Error) {
	p, ok := lmsRegistry[id]
	if !ok {
		return LmsParam{}, errorf(ErrParse, "unknown lms type id %d", id)
	}
	return p, nil
}

// LmotsParamFromName resolves a registered LM-OTS parameter set by
// its canonical name, e.g. "LMOTS_SHA256_N32_W2".
func LmotsParamFromName(name string) (LmotsParam, Error) {
	id, ok := lmotsByName[name]
	if !ok {
		return LmotsParam{}, errorf(ErrParameter, "unknown lm-ots parameter name %q", name)
	}
	return lmotsRegistry[id], nil
}

// LmsParamFromName resolves a registered LMS parameter set by its
// canonical name, e.g. "LMS_SHA256_H10".
func LmsParamFromName(name string) (LmsParam, Error) {
	id, ok := lmsByName[name]
	if !ok {
		return LmsParam{}, errorf(ErrParameter, "unknown lms parameter name %q", name)
	}
	return lmsRegistry[id], nil
}

// HssParamFromNames resolves one HssParam per (ots,lms) name pair,
// building the stack top (root tree) first.
func HssParamFromNames(pairs [][2]string) ([]HssParam, Error) {
	if len(pairs) == 0 || len(pairs) > MaxHssLevels {
		return nil, errorf(ErrParameter, "hss stack must have 1..%d levels, got %d", MaxHssLevels, len(pairs))
	}
	out := make([]HssParam, len(pairs))
	for i, pair := range pairs {
		ots, err := LmotsParamFromName(pair[0])
		if err != nil {
			return nil, err
		}
		l, err := LmsParamFromName(pair[1])
		if err != nil {
			return nil, err
		}
		out[i] = HssParam{Ots: ots, Lms: l}
	}
	return out, nil
}

// MaxHssLevels bounds the HSS stack depth (REF_IMPL_MAX_ALLOWED_HSS_LEVELS).
const MaxHssLevels = 8

// MarshalHssParams encodes an HSS parameter stack as a standalone
// blob: a level count followed by one (lms_type,lmots_type) pair per
// level. Distinct from the private key's own compressed parameter
// encoding in privatekey.go, which has no level-count prefix and is
// terminated by 0xFF instead.
func MarshalHssParams(params []HssParam) ([]byte, Error) {
	if len(params) == 0 || len(params) > MaxHssLevels {
		return nil, errorf(ErrParameter, "hss stack must have 1..%d levels", MaxHssLevels)
	}
	buf := make([]byte, 1+4*len(params))
	buf[0] = byte(len(params))
	off := 1
	for _, p := range params {
		binary.BigEndian.PutUint16(buf[off:], uint16(p.Lms.TypeID))
		binary.BigEndian.PutUint16(buf[off+2:], uint16(p.Ots.TypeID))
		off += 4
	}
	return buf, nil
}

// UnmarshalHssParams decodes the framing produced by MarshalHssParams.
func UnmarshalHssParams(buf []byte) ([]HssParam, Error) {
	if len(buf) < 1 {
		return nil, errorf(ErrParse, "hss params buffer too short")
	}
	n := int(buf[0])
	if n == 0 || n > MaxHssLevels {
		return nil, errorf(ErrParse, "hss stack level count %d out of range", n)
	}
	if len(buf) < 1+4*n {
		return nil, errorf(ErrParse, "hss params buffer truncated")
	}
	out := make([]HssParam, n)
	off := 1
	for i := 0; i < n; i++ {
		lmsID := uint32(binary.BigEndian.Uint16(buf[off:]))
		otsID := uint32(binary.BigEndian.Uint16(buf[off+2:]))
		lp, err := LmsParamFromID(lmsID)
		if err != nil {
			return nil, err
		}
		op, err := LmotsParamFromID(otsID)
		if err != nil {
			return nil, err
		}
		out[i] = HssParam{Ots: op, Lms: lp}
		off += 4
	}
	return out, nil
}
