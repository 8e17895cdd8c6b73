package shamir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainflip-io/multisig-engine/curve/secp256k1"
	"github.com/chainflip-io/multisig-engine/ids"
)

func TestLagrangeCoefficient_SingleSigner(t *testing.T) {
	field := secp256k1.Field
	lambda, err := LagrangeCoefficient(field, 1, []ids.PartyIndex{1})
	require.NoError(t, err)
	require.True(t, lambda.Equal(field.ScalarFromUint64(1)))
}

func TestLagrangeCoefficient_ReconstructsSecret(t *testing.T) {
	field := secp256k1.Field
	poly, err := GeneratePolynomial(field, 2) // t=2, degree-2 polynomial, needs 3 shares
	require.NoError(t, err)

	signers := []ids.PartyIndex{1, 2, 3, 4}
	reconstructed := field.ScalarFromUint64(0)
	for _, j := range signers {
		lambda, err := LagrangeCoefficient(field, j, signers)
		require.NoError(t, err)
		reconstructed = reconstructed.Add(lambda.Mul(poly.Evaluate(j)))
	}
	require.True(t, reconstructed.Equal(poly.Secret()), "Lagrange interpolation at 0 must recover the constant term")
}

func TestLagrangeCoefficient_DuplicateSignerRejected(t *testing.T) {
	field := secp256k1.Field
	_, err := LagrangeCoefficient(field, 1, []ids.PartyIndex{1, 1, 2})
	require.Error(t, err)
}

func TestVerifyShare(t *testing.T) {
	field := secp256k1.Field
	poly, err := GeneratePolynomial(field, 1)
	require.NoError(t, err)
	commitments := CommitCoefficients(field, poly)

	for _, j := range []ids.PartyIndex{1, 2, 3} {
		share := poly.Evaluate(j)
		require.True(t, VerifyShare(field, share, j, commitments))
	}
}

func TestVerifyShare_RejectsWrongShare(t *testing.T) {
	field := secp256k1.Field
	poly, err := GeneratePolynomial(field, 1)
	require.NoError(t, err)
	commitments := CommitCoefficients(field, poly)

	wrongShare := poly.Evaluate(2) // evaluated at the wrong index
	require.False(t, VerifyShare(field, wrongShare, 1, commitments))
}

func TestReconstructPublicKey(t *testing.T) {
	field := secp256k1.Field
	poly, err := GeneratePolynomial(field, 1)
	require.NoError(t, err)
	commitments := CommitCoefficients(field, poly)

	y := ReconstructPublicKey(field, commitments)
	expected := field.ScalarBaseMul(poly.Secret())
	require.True(t, y.Equal(expected))
}
