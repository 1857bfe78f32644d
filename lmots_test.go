package lms

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLmotsSignVerifyRoundTrip(t *testing.T) {
	p, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	treeID := make([]byte, 16)
	for i := range treeID {
		treeID[i] = byte(i)
	}
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(0x11 * (i + 1))
	}
	message := []byte("a 17-byte message")
	require.Len(t, message, 17)

	pub := LmotsKeygen(p, treeID, 0, seed)
	randomizer := make([]byte, p.Hash.OutputSize())
	sig := LmotsSign(p, treeID, 0, seed, randomizer, message)

	candidate := LmotsPublicKeyCandidate(sig, treeID, 0, message)
	require.True(t, pub.Equal(candidate))
}

func TestLmotsSignVerifyTamperedMessageFails(t *testing.T) {
	p, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	treeID := make([]byte, 16)
	seed := make([]byte, 32)
	message := []byte("original message")
	tampered := []byte("original mussage")

	pub := LmotsKeygen(p, treeID, 0, seed)
	randomizer := make([]byte, p.Hash.OutputSize())
	sig := LmotsSign(p, treeID, 0, seed, randomizer, message)

	candidate := LmotsPublicKeyCandidate(sig, treeID, 0, tampered)
	require.False(t, pub.Equal(candidate))
}

func TestLmotsSignatureMarshalRoundTrip(t *testing.T) {
	p, err := LmotsParamFromID(LmotsSHA256N32W4)
	require.NoError(t, err)
	treeID := make([]byte, 16)
	seed := make([]byte, 32)
	message := []byte("message")
	randomizer := make([]byte, p.Hash.OutputSize())

	sig := LmotsSign(p, treeID, 3, seed, randomizer, message)
	buf := sig.MarshalBinary()

	got, rest, err := UnmarshalLmotsSignature(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, sig.Randomizer, got.Randomizer)
	require.Equal(t, sig.Chains, got.Chains)
}
