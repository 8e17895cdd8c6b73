// Package bitcoin implements the scheme.Scheme adapter for BIP-340-style
// Schnorr signatures over secp256k1, used for Bitcoin deposit/withdrawal
// vaults. Unlike the EVM scheme it uses the textbook Schnorr response and
// accepts any valid public key (no compatibility restriction).
package bitcoin

import (
	"golang.org/x/crypto/blake2b"

	"github.com/chainflip-io/multisig-engine/curve"
	secpcurve "github.com/chainflip-io/multisig-engine/curve/secp256k1"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/scheme"
)

type bitcoinScheme struct{}

// New returns the Bitcoin scheme.Scheme adapter.
func New() scheme.Scheme { return bitcoinScheme{} }

func (bitcoinScheme) Tag() ids.SchemeTag { return ids.SchemeBitcoin }
func (bitcoinScheme) Field() curve.Field { return secpcurve.Field }

func (s bitcoinScheme) BuildChallenge(pubkey curve.Point, groupCommitment curve.Point, payload []byte) curve.Scalar {
	h := blake2b.Sum256(concat(groupCommitment.Bytes(), pubkey.Bytes(), payload))
	return s.Field().ScalarFromBytesModOrder(h[:])
}

// BuildResponse computes the standard Schnorr response z_i = nonce + challenge*privateKey.
func (bitcoinScheme) BuildResponse(nonce curve.Scalar, _ curve.Point, privateKey curve.Scalar, challenge curve.Scalar) curve.Scalar {
	return nonce.Add(challenge.Mul(privateKey))
}

// IsPartyResponseValid checks z_i*G == boundCommitment_i + challenge*lambda_i*y_i.
func (s bitcoinScheme) IsPartyResponseValid(yi curve.Point, lambdaI curve.Scalar, boundCommitmentI curve.Point, _ curve.Point, challenge curve.Scalar, response curve.Scalar) bool {
	lhs := s.Field().ScalarBaseMul(response)
	rhs := boundCommitmentI.Add(yi.Mul(challenge.Mul(lambdaI)))
	return lhs.Equal(rhs)
}

func (bitcoinScheme) BuildSignature(z curve.Scalar, r curve.Point) scheme.Signature {
	return append(append([]byte(nil), r.Bytes()...), z.Bytes()...)
}

func (bitcoinScheme) PubkeyFromPoint(p curve.Point) scheme.PublicKey {
	return append([]byte(nil), p.Bytes()...)
}

// IsPubkeyCompatible accepts every valid point; Bitcoin Schnorr output
// scripts have no public-key-shape restriction analogous to EVM's.
func (bitcoinScheme) IsPubkeyCompatible(curve.Point) bool { return true }

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
