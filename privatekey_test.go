package lms

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func twoLevelH5HssParams(t *testing.T) []HssParam {
	t.Helper()
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	return []HssParam{{Lms: lp, Ots: op}, {Lms: lp, Ots: op}}
}

func TestKeygenSignVerifyRoundTrip(t *testing.T) {
	params := twoLevelH5HssParams(t)
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	skBytes, vkBytes, _, err := Keygen(params, seed, 0)
	require.NoError(t, err)

	var persisted []byte
	persist := func(buf []byte) error {
		persisted = append([]byte{}, buf...)
		return nil
	}

	message := []byte("a 17-byte message")
	sigBytes, err := Sign(message, skBytes, persist, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, persisted)

	require.NoError(t, Verify(message, sigBytes, vkBytes))
}

func TestSignTwiceInSuccessionAdvancesCounter(t *testing.T) {
	params := twoLevelH5HssParams(t)
	seed := make([]byte, 32)
	skBytes, vkBytes, _, err := Keygen(params, seed, 0)
	require.NoError(t, err)

	var state []byte
	persist := func(buf []byte) error { state = append([]byte{}, buf...); return nil }

	sig1, err := Sign([]byte("first"), skBytes, persist, nil, nil)
	require.NoError(t, err)
	require.NoError(t, Verify([]byte("first"), sig1, vkBytes))

	sig2, err := Sign([]byte("second"), state, persist, nil, nil)
	require.NoError(t, err)
	require.NoError(t, Verify([]byte("second"), sig2, vkBytes))

	sk1, err := UnmarshalReferenceImplPrivateKey(skBytes)
	require.NoError(t, err)
	sk2, err := UnmarshalReferenceImplPrivateKey(state)
	require.NoError(t, err)
	require.Equal(t, sk1.UsedLeavesCounter+2, sk2.UsedLeavesCounter)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	params := twoLevelH5HssParams(t)
	seed := make([]byte, 32)
	skBytes, vkBytes, _, err := Keygen(params, seed, 0)
	require.NoError(t, err)

	persist := func(buf []byte) error { return nil }
	message := []byte("message")
	sigBytes, err := Sign(message, skBytes, persist, nil, nil)
	require.NoError(t, err)

	tampered := append([]byte{}, sigBytes...)
	tampered[len(tampered)-1] ^= 0xff

	err = Verify(message, tampered, vkBytes)
	require.Error(t, err)
	require.Equal(t, ErrVerification, err.Kind())
}

func TestSignAtLastLeafSucceedsAndWipesSeed(t *testing.T) {
	params := twoLevelH5HssParams(t)
	seed := make([]byte, 32)
	skBytes, vkBytes, _, err := Keygen(params, seed, 0)
	require.NoError(t, err)

	sk, err := UnmarshalReferenceImplPrivateKey(skBytes)
	require.NoError(t, err)
	sk.UsedLeavesCounter = (1 << 10) - 1 // last of 1024 leaves
	lastSkBytes := sk.MarshalBinary()

	var state []byte
	persist := func(buf []byte) error { state = append([]byte{}, buf...); return nil }

	sigBytes, err := Sign([]byte("final message"), lastSkBytes, persist, nil, nil)
	require.NoError(t, err)
	require.NoError(t, Verify([]byte("final message"), sigBytes, vkBytes))

	next, err := UnmarshalReferenceImplPrivateKey(state)
	require.NoError(t, err)
	require.Equal(t, uint64(1<<10), next.UsedLeavesCounter)
	for _, b := range next.Seed {
		require.Zero(t, b)
	}
}

func TestSignPastLastLeafIsExhausted(t *testing.T) {
	params := twoLevelH5HssParams(t)
	seed := make([]byte, 32)
	skBytes, _, _, err := Keygen(params, seed, 0)
	require.NoError(t, err)

	sk, err := UnmarshalReferenceImplPrivateKey(skBytes)
	require.NoError(t, err)
	sk.UsedLeavesCounter = 1 << 10 // one past the last valid leaf
	exhaustedSkBytes := sk.MarshalBinary()

	persist := func(buf []byte) error { t.Fatal("persist must not be called on an exhausted key"); return nil }
	_, err = Sign([]byte("message"), exhaustedSkBytes, persist, nil, nil)
	require.Error(t, err)
	require.Equal(t, ErrExhausted, err.Kind())
	require.True(t, err.Locked())
}

func TestSignDiscardsSignatureOnPersistFailure(t *testing.T) {
	params := twoLevelH5HssParams(t)
	seed := make([]byte, 32)
	skBytes, _, _, err := Keygen(params, seed, 0)
	require.NoError(t, err)

	persist := func(buf []byte) error { return errors.New("simulated disk failure") }
	_, err = Sign([]byte("message"), skBytes, persist, nil, nil)
	require.Error(t, err)
	require.Equal(t, ErrPersistFailure, err.Kind())
}

func TestSignWithAuxCacheProducesIdenticalSignature(t *testing.T) {
	params := twoLevelH5HssParams(t)
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 7)
	}

	skBytes, vkBytes, auxBytes, err := Keygen(params, seed, 100000)
	require.NoError(t, err)
	require.NotEmpty(t, auxBytes)

	noopPersist := func([]byte) error { return nil }
	message := []byte("identical regardless of aux reuse")

	sigWithoutAux, err := Sign(message, skBytes, noopPersist, nil, nil)
	require.NoError(t, err)

	sigWithAux, err := Sign(message, skBytes, noopPersist, auxBytes, nil)
	require.NoError(t, err)

	require.Equal(t, sigWithoutAux, sigWithAux)
	require.NoError(t, Verify(message, sigWithAux, vkBytes))
}

func TestSignWithTamperedAuxFallsBackToRecompute(t *testing.T) {
	params := twoLevelH5HssParams(t)
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 11)
	}

	skBytes, vkBytes, auxBytes, err := Keygen(params, seed, 100000)
	require.NoError(t, err)
	require.NotEmpty(t, auxBytes)

	tamperedAux := append([]byte{}, auxBytes...)
	tamperedAux[len(tamperedAux)-1] ^= 0xff

	message := []byte("tampered aux must not corrupt the signature")
	sigBytes, err := Sign(message, skBytes, func([]byte) error { return nil }, tamperedAux, nil)
	require.NoError(t, err)
	require.NoError(t, Verify(message, sigBytes, vkBytes))
}

func TestSstPrepareFinalizeSignVerifyRoundTrip(t *testing.T) {
	lp, err := LmsParamFromID(LmsSHA256H5)
	require.NoError(t, err)
	op, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	params := []HssParam{{Lms: lp, Ots: op}}

	const l0TopDiv = 2 // N = 4 signing entities
	treeID := make([]byte, 16)
	for i := range treeID {
		treeID[i] = byte(0x90 + i)
	}

	n := lp.Hash.OutputSize()

	var skBytesPerEntity [][]byte
	var roots [][]byte
	for idx := uint8(1); idx <= 4; idx++ {
		seed := make([]byte, n)
		for i := range seed {
			seed[i] = byte(int(idx)*31 + i)
		}
		ext := SstExtension{SigningEntityIdx: idx, L0TopDiv: l0TopDiv}
		skBytes, root, perr := PrepareSstKeygen(params, ext, seed, treeID)
		require.NoError(t, perr)
		skBytesPerEntity = append(skBytesPerEntity, skBytes)
		roots = append(roots, root)
	}

	vkBytes, auxBytes, ferr := FinalizeSstKeygen(skBytesPerEntity[0], roots, treeID)
	require.NoError(t, ferr)

	message := []byte("a message signed by one sst entity")
	sigBytes, serr := Sign(message, skBytesPerEntity[2], func([]byte) error { return nil }, auxBytes, treeID)
	require.NoError(t, serr)
	require.NoError(t, Verify(message, sigBytes, vkBytes))

	numSigners, nerr := GetNumSigningEntities(skBytesPerEntity[0])
	require.NoError(t, nerr)
	require.EqualValues(t, 4, numSigners)
}
