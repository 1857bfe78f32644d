package lms

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFastVerifyRandomizerSignsAndVerifies(t *testing.T) {
	p, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	treeID := make([]byte, 16)
	seed := make([]byte, 32)
	message := []byte("a message to fast-verify")

	randomizer := FastVerifyRandomizer(p, treeID, 0, seed, message)
	sig := LmotsSign(p, treeID, 0, seed, randomizer, message)

	pub := LmotsKeygen(p, treeID, 0, seed)
	candidate := LmotsPublicKeyCandidate(sig, treeID, 0, message)
	require.True(t, pub.Equal(candidate))
}

func TestFastVerifyRandomizerNeverIncreasesVerifierCost(t *testing.T) {
	p, err := LmotsParamFromID(LmotsSHA256N32W8)
	require.NoError(t, err)
	treeID := make([]byte, 16)
	seed := make([]byte, 32)
	message := []byte("message")

	baseline := verifierChainCost(p, treeID, 0, seed, message)
	ground := FastVerifyRandomizer(p, treeID, 0, seed, message)
	optimized := verifierChainCost(p, treeID, 0, ground, message)

	require.LessOrEqual(t, optimized, baseline)
}
