package lms

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func twoLevelH5Params(t *testing.T) []HssParam {
	t.Helper()
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	return []HssParam{{Lms: lp, Ots: op}, {Lms: lp, Ots: op}}
}

func TestHssSignVerifyRoundTrip(t *testing.T) {
	params := twoLevelH5Params(t)
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	sk, err := materializeHssPrivateKey(params, seed, 0, nil)
	require.NoError(t, err)
	pub := sk.PublicKey()

	message := []byte("a 17-byte message")
	sig := sk.Sign(message)

	require.NoError(t, HssVerify(pub, sig, message))
}

func TestHssTwoSignaturesInSuccessionAtDifferentCounters(t *testing.T) {
	params := twoLevelH5Params(t)
	seed := make([]byte, 32)

	skFirst, err := materializeHssPrivateKey(params, seed, 0, nil)
	require.NoError(t, err)
	pub := skFirst.PublicKey()
	sigFirst := skFirst.Sign([]byte("message one"))
	require.NoError(t, HssVerify(pub, sigFirst, []byte("message one")))

	skSecond, err := materializeHssPrivateKey(params, seed, 1, nil)
	require.NoError(t, err)
	sigSecond := skSecond.Sign([]byte("message two"))
	require.NoError(t, HssVerify(pub, sigSecond, []byte("message two")))

	require.NotEqual(t, sigFirst.Bottom.LeafID, sigSecond.Bottom.LeafID)
}

func TestHssVerifyRejectsWrongMessage(t *testing.T) {
	params := twoLevelH5Params(t)
	seed := make([]byte, 32)

	sk, err := materializeHssPrivateKey(params, seed, 0, nil)
	require.NoError(t, err)
	pub := sk.PublicKey()
	sig := sk.Sign([]byte("signed message"))

	require.Error(t, HssVerify(pub, sig, []byte("different message")))
}

func TestMaterializeHssPrivateKeyRejectsExhaustedCounter(t *testing.T) {
	params := twoLevelH5Params(t)
	seed := make([]byte, 32)

	_, err := materializeHssPrivateKey(params, seed, 1<<10, nil)
	require.Error(t, err)
	require.Equal(t, ErrExhausted, err.Kind())
	require.True(t, err.Locked())
}

func TestHssPublicKeyMarshalRoundTrip(t *testing.T) {
	params := twoLevelH5Params(t)
	seed := make([]byte, 32)
	sk, err := materializeHssPrivateKey(params, seed, 0, nil)
	require.NoError(t, err)
	pub := sk.PublicKey()

	buf := pub.MarshalBinary()
	got, err := UnmarshalHssPublicKey(buf)
	require.NoError(t, err)
	require.Equal(t, pub.Top.Root, got.Top.Root)
	require.Equal(t, pub.L, got.L)
}
