package lms

// FastVerifyRandomizer grinds signature randomizers C to minimize a
// verifier's total hash-chain work (C9): C_0 = seed, C_{k+1} = H(C_k),
// retaining whichever C drives the smallest sum of remaining
// hash-chain steps the verifier has to walk, capped at
// maxHashOptimizations attempts. Ties keep the earlier C
// (first-found-wins), an explicit choice for an otherwise
// under-specified tie-break (§9). This is purely a signer-side
// optimization: signature format and verifier behavior are unchanged,
// since any randomizer is equally valid to LmotsSign.
func FastVerifyRandomizer(p LmotsParam, treeID []byte, leafID uint32, seed, message []byte) []byte {
	best := seed
	bestCost := verifierChainCost(p, treeID, leafID, best, message)

	c := seed
	for i := 1; i < maxHashOptimizations; i++ {
		c = p.Hash.Hash(c)
		cost := verifierChainCost(p, treeID, leafID, c, message)
		if cost < bestCost {
			best, bestCost = c, cost
		}
	}
	return best
}

// verifierChainCost sums, over all p hash chains, the number of steps
// a verifier must still walk from a signature's y_i to the end of
// chain i -- (2^w-1-a_i) -- for the digit vector Q and its checksum
// derive from this randomizer. This is exactly the quantity fast
// verification trades signer time to shrink.
func verifierChainCost(p LmotsParam, treeID []byte, leafID uint32, randomizer, message []byte) int {
	q := p.Hash.Hash(treeID, be32(leafID), be16(dMesg), randomizer, message)
	digits := lmotsChainCoefficients(p, q)
	maxSteps := int(1<<p.W) - 1

	cost := 0
	for _, a := range digits {
		cost += maxSteps - int(a)
	}
	return cost
}
