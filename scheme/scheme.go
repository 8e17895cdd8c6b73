// Package scheme defines the per-chain cryptographic adapter of spec §4.1.
// The engine is polymorphic over Scheme; concrete chains live in
// subpackages (scheme/evm, scheme/bitcoin, scheme/polkadot, scheme/solana).
package scheme

import (
	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
)

// Signature is the scheme's wire-encoded signature, already shaped for the
// target chain's verifier.
type Signature []byte

// PublicKey is the scheme's wire-encoded public key.
type PublicKey []byte

// Scheme is the adapter described in spec §4.1. Every method is a pure
// function of its arguments; no scheme implementation holds ceremony
// state.
type Scheme interface {
	// Tag identifies the scheme for the P2P wire envelope and the
	// Ceremony Manager's per-scheme registry.
	Tag() ids.SchemeTag

	// Field returns the curve field this scheme signs over.
	Field() curve.Field

	// BuildChallenge computes the scheme-specific hash-to-scalar fitting
	// the on-chain verifying contract.
	BuildChallenge(aggregatePubkey curve.Point, groupCommitment curve.Point, payload []byte) curve.Scalar

	// BuildResponse computes a signer's local response scalar. For EVM
	// it is nonce - challenge*privateKey; for other schemes it is the
	// standard Schnorr response nonce + challenge*privateKey.
	BuildResponse(nonce curve.Scalar, nonceCommitment curve.Point, privateKey curve.Scalar, challenge curve.Scalar) curve.Scalar

	// IsPartyResponseValid checks a single signer's local response
	// against its bound commitment.
	IsPartyResponseValid(yi curve.Point, lambdaI curve.Scalar, boundCommitmentI curve.Point, groupCommitment curve.Point, challenge curve.Scalar, response curve.Scalar) bool

	// BuildSignature encodes (z, R) into the chain's wire signature
	// format.
	BuildSignature(z curve.Scalar, r curve.Point) Signature

	// PubkeyFromPoint encodes a group element as the chain's public key
	// wire format.
	PubkeyFromPoint(p curve.Point) PublicKey

	// IsPubkeyCompatible is the compatibility predicate of spec §4.1 —
	// for EVM keys it restricts the public key's x-coordinate to the
	// lower half of the curve order; other schemes accept all valid
	// points.
	IsPubkeyCompatible(p curve.Point) bool
}

// ScaleForCompatibility finds the smallest positive integer k such that
// k*y is compatible, per spec §4.1's keygen-completion "compatibility
// scaling" step. It returns k as a scalar, ready to multiply into x_i, y,
// and every party public key.
func ScaleForCompatibility(s Scheme, y curve.Point) curve.Scalar {
	f := s.Field()
	k := f.ScalarFromUint64(1)
	candidate := y
	for i := uint64(1); ; i++ {
		if s.IsPubkeyCompatible(candidate) {
			return k
		}
		k = f.ScalarFromUint64(i + 1)
		candidate = y.Mul(k)
	}
}
