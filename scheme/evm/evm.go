// Package evm implements the scheme.Scheme adapter for EVM-chain (Ethereum,
// Arbitrum) contract-compatible Schnorr signatures over secp256k1.
//
// The verifying contract checks a Schnorr signature of the form
// z*G + c*Y == R, so the response here is "negative": build_response
// computes nonce - challenge*privateKey rather than the textbook
// nonce + challenge*privateKey (spec §4.1).
package evm

import (
	"golang.org/x/crypto/sha3"

	"github.com/chainflip-io/multisig-engine/curve"
	secpcurve "github.com/chainflip-io/multisig-engine/curve/secp256k1"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/scheme"
)

type evmScheme struct{}

// New returns the EVM scheme.Scheme adapter.
func New() scheme.Scheme { return evmScheme{} }

func (evmScheme) Tag() ids.SchemeTag { return ids.SchemeEvm }
func (evmScheme) Field() curve.Field { return secpcurve.Field }

// BuildChallenge hashes (R, parity(R), pubkeyX, payload) with Keccak256,
// matching the on-chain verifier's expected challenge derivation, and
// reduces it into a scalar.
func (s evmScheme) BuildChallenge(pubkey curve.Point, groupCommitment curve.Point, payload []byte) curve.Scalar {
	rx, parity := xAndParity(groupCommitment)
	px, _ := xAndParity(pubkey)

	h := sha3.NewLegacyKeccak256()
	h.Write(rx[:])
	h.Write([]byte{parity})
	h.Write(px[:])
	h.Write(payload)
	digest := h.Sum(nil)

	return s.Field().ScalarFromBytesModOrder(digest)
}

// BuildResponse computes z_i = nonce - challenge*privateKey.
func (evmScheme) BuildResponse(nonce curve.Scalar, _ curve.Point, privateKey curve.Scalar, challenge curve.Scalar) curve.Scalar {
	return nonce.Sub(challenge.Mul(privateKey))
}

// IsPartyResponseValid checks boundCommitment_i == z_i*G + challenge*lambda_i*y_i.
func (s evmScheme) IsPartyResponseValid(yi curve.Point, lambdaI curve.Scalar, boundCommitmentI curve.Point, _ curve.Point, challenge curve.Scalar, response curve.Scalar) bool {
	lhs := s.Field().ScalarBaseMul(response)
	clY := yi.Mul(challenge.Mul(lambdaI))
	rhs := boundCommitmentI.Sub(clY)
	return lhs.Equal(rhs)
}

// BuildSignature encodes (parity(R), R.x, z) as the wire signature.
func (evmScheme) BuildSignature(z curve.Scalar, r curve.Point) scheme.Signature {
	rx, parity := xAndParity(r)
	out := make([]byte, 0, 1+32+32)
	out = append(out, parity)
	out = append(out, rx[:]...)
	out = append(out, z.Bytes()...)
	return out
}

func (evmScheme) PubkeyFromPoint(p curve.Point) scheme.PublicKey {
	return append([]byte(nil), p.Bytes()...)
}

// IsPubkeyCompatible restricts the public key's x-coordinate to the lower
// half of the curve order, per the EVM verifying contract's convention
// (spec §4.1 GLOSSARY "Compatibility predicate").
func (evmScheme) IsPubkeyCompatible(p curve.Point) bool {
	x, ok := secpcurve.AsSecp256k1Point(p)
	if !ok {
		return false
	}
	// secp256k1 order is a 256-bit prime just under 2^256; "lower half"
	// is equivalent to the top bit of the 32-byte big-endian encoding
	// being clear, which is exact enough for the compatibility filter's
	// purpose of picking a canonical representative.
	return x[0]&0x80 == 0
}

func xAndParity(p curve.Point) (x [32]byte, parity byte) {
	b := p.Bytes()
	if len(b) == 0 {
		return x, 0
	}
	switch b[0] {
	case 0x02:
		parity = 0
	case 0x03:
		parity = 1
	}
	if len(b) >= 33 {
		copy(x[:], b[1:33])
	}
	return x, parity
}
