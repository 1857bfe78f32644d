// Package lms implements the LMS / HSS hash-based signature scheme of
// RFC 8554, including a Single-Subtree-Structure (SST) distributed
// keygen extension that lets several independent signing entities
// jointly own one LMS tree.
//
// The package is organized leaf-first: hashing and seed derivation
// primitives, LM-OTS one-time signatures, the LMS Merkle layer over
// them, the HSS multi-level composition on top of that, and the
// reference private-key state machine that ties a signing session to
// persisted state. SST quorum index arithmetic (entity count, leaf
// ranges, subtree root indices) lives in a separate internal package;
// the SST tree building and protocol steps live in this package. A
// filesystem-backed PrivateKeyContainer and a small CLI are
// provided in sibling packages as consumers of this package's
// byte-slice API.
package lms
