package lms

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testTreeID() []byte {
	id := make([]byte, 16)
	for i := range id {
		id[i] = byte(0x40 + i)
	}
	return id
}

func TestLmsSignVerifyRoundTrip(t *testing.T) {
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)

	treeID := testTreeID()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i * 7)
	}

	nodes, root := buildTree(lp, op, treeID, seed, nil)
	pk := LmsPublicKey{LmsParam: lp, LmotsParam: op, TreeID: treeID, Root: root}

	message := []byte("a 17-byte message")
	require.Len(t, message, 17)
	randomizer := make([]byte, lp.Hash.OutputSize())
	sig := LmsSign(lp, op, treeID, seed, nodes, 5, randomizer, message)

	require.NoError(t, LmsVerify(sig, treeID, pk, message))
}

func TestLmsVerifyRejectsTamperedSignature(t *testing.T) {
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)

	treeID := testTreeID()
	seed := make([]byte, 32)
	nodes, root := buildTree(lp, op, treeID, seed, nil)
	pk := LmsPublicKey{LmsParam: lp, LmotsParam: op, TreeID: treeID, Root: root}

	message := []byte("message")
	randomizer := make([]byte, lp.Hash.OutputSize())
	sig := LmsSign(lp, op, treeID, seed, nodes, 2, randomizer, message)

	sig.Path[0] = append([]byte{}, sig.Path[0]...)
	sig.Path[0][0] ^= 0xff

	require.Error(t, LmsVerify(sig, treeID, pk, message))
}

func TestLmsPublicKeyMarshalRoundTrip(t *testing.T) {
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	treeID := testTreeID()
	seed := make([]byte, 32)
	_, root := buildTree(lp, op, treeID, seed, nil)
	pk := LmsPublicKey{LmsParam: lp, LmotsParam: op, TreeID: treeID, Root: root}

	buf := pk.MarshalBinary()
	got, rest, err := UnmarshalLmsPublicKey(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, pk.Root, got.Root)
	require.Equal(t, pk.TreeID, got.TreeID)
}

func TestAuxCacheProducesSameTreeAsUncached(t *testing.T) {
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	treeID := testTreeID()
	seed := make([]byte, 32)

	_, rootNoCache := buildTree(lp, op, treeID, seed, nil)

	aux := NewAuxCache(lp.Hash, lp.H, seed, 4096)
	_, rootFirstBuild := buildTree(lp, op, treeID, seed, aux)
	require.Equal(t, rootNoCache, rootFirstBuild)

	_, rootCachedBuild := buildTree(lp, op, treeID, seed, aux)
	require.Equal(t, rootNoCache, rootCachedBuild)
}

func TestAuxCacheMarshalParseRoundTrip(t *testing.T) {
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	treeID := testTreeID()
	seed := make([]byte, 32)

	aux := NewAuxCache(lp.Hash, lp.H, seed, 4096)
	_, root := buildTree(lp, op, treeID, seed, aux)

	buf := aux.MarshalBinary()
	parsed := ParseAuxCache(buf, lp.Hash, lp.H, seed)

	_, rootFromParsed := buildTree(lp, op, treeID, seed, parsed)
	require.Equal(t, root, rootFromParsed)
}

func TestAuxCacheTamperedMacIsDiscarded(t *testing.T) {
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	treeID := testTreeID()
	seed := make([]byte, 32)

	aux := NewAuxCache(lp.Hash, lp.H, seed, 4096)
	_, root := buildTree(lp, op, treeID, seed, aux)
	buf := aux.MarshalBinary()
	buf[len(buf)-1] ^= 0xff

	parsed := ParseAuxCache(buf, lp.Hash, lp.H, seed)
	_, rootAfterTamper := buildTree(lp, op, treeID, seed, parsed)
	require.Equal(t, root, rootAfterTamper)
}
