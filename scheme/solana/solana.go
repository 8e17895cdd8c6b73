// Package solana implements the scheme.Scheme adapter for standard Schnorr
// signatures over edwards25519, used for Solana vault signing.
package solana

import (
	"golang.org/x/crypto/blake2b"

	"github.com/chainflip-io/multisig-engine/curve"
	ed25519curve "github.com/chainflip-io/multisig-engine/curve/ed25519"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/scheme"
)

type solanaScheme struct{}

// New returns the Solana scheme.Scheme adapter.
func New() scheme.Scheme { return solanaScheme{} }

func (solanaScheme) Tag() ids.SchemeTag { return ids.SchemeSolana }
func (solanaScheme) Field() curve.Field { return ed25519curve.Field }

func (s solanaScheme) BuildChallenge(pubkey curve.Point, groupCommitment curve.Point, payload []byte) curve.Scalar {
	h := blake2b.Sum256(append(append(append([]byte{}, groupCommitment.Bytes()...), pubkey.Bytes()...), payload...))
	return s.Field().ScalarFromBytesModOrder(h[:])
}

func (solanaScheme) BuildResponse(nonce curve.Scalar, _ curve.Point, privateKey curve.Scalar, challenge curve.Scalar) curve.Scalar {
	return nonce.Add(challenge.Mul(privateKey))
}

func (s solanaScheme) IsPartyResponseValid(yi curve.Point, lambdaI curve.Scalar, boundCommitmentI curve.Point, _ curve.Point, challenge curve.Scalar, response curve.Scalar) bool {
	lhs := s.Field().ScalarBaseMul(response)
	rhs := boundCommitmentI.Add(yi.Mul(challenge.Mul(lambdaI)))
	return lhs.Equal(rhs)
}

func (solanaScheme) BuildSignature(z curve.Scalar, r curve.Point) scheme.Signature {
	return append(append([]byte(nil), r.Bytes()...), z.Bytes()...)
}

func (solanaScheme) PubkeyFromPoint(p curve.Point) scheme.PublicKey {
	return append([]byte(nil), p.Bytes()...)
}

// IsPubkeyCompatible accepts every valid point; the Solana Ed25519
// verifier has no analogous x-coordinate restriction.
func (solanaScheme) IsPubkeyCompatible(curve.Point) bool { return true }
