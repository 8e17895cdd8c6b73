// Package polkadot implements the scheme.Scheme adapter for standard
// Schnorr signatures over Ristretto, approximating Polkadot's sr25519
// (Schnorrkel) scheme for vault signing.
package polkadot

import (
	"golang.org/x/crypto/blake2b"

	"github.com/chainflip-io/multisig-engine/curve"
	ristrettocurve "github.com/chainflip-io/multisig-engine/curve/ristretto"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/scheme"
)

type polkadotScheme struct{}

// New returns the Polkadot scheme.Scheme adapter.
func New() scheme.Scheme { return polkadotScheme{} }

func (polkadotScheme) Tag() ids.SchemeTag { return ids.SchemePolkadot }
func (polkadotScheme) Field() curve.Field { return ristrettocurve.Field }

func (s polkadotScheme) BuildChallenge(pubkey curve.Point, groupCommitment curve.Point, payload []byte) curve.Scalar {
	h := blake2b.Sum256(append(append(append([]byte{}, groupCommitment.Bytes()...), pubkey.Bytes()...), payload...))
	return s.Field().ScalarFromBytesModOrder(h[:])
}

func (polkadotScheme) BuildResponse(nonce curve.Scalar, _ curve.Point, privateKey curve.Scalar, challenge curve.Scalar) curve.Scalar {
	return nonce.Add(challenge.Mul(privateKey))
}

func (s polkadotScheme) IsPartyResponseValid(yi curve.Point, lambdaI curve.Scalar, boundCommitmentI curve.Point, _ curve.Point, challenge curve.Scalar, response curve.Scalar) bool {
	lhs := s.Field().ScalarBaseMul(response)
	rhs := boundCommitmentI.Add(yi.Mul(challenge.Mul(lambdaI)))
	return lhs.Equal(rhs)
}

func (polkadotScheme) BuildSignature(z curve.Scalar, r curve.Point) scheme.Signature {
	return append(append([]byte(nil), r.Bytes()...), z.Bytes()...)
}

func (polkadotScheme) PubkeyFromPoint(p curve.Point) scheme.PublicKey {
	return append([]byte(nil), p.Bytes()...)
}

// IsPubkeyCompatible accepts every valid point; sr25519 has no analogous
// x-coordinate restriction.
func (polkadotScheme) IsPubkeyCompatible(curve.Point) bool { return true }
