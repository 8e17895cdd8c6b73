package evm

import (
	"testing"

	"github.com/stretchr/testify/require"

	secpcurve "github.com/chainflip-io/multisig-engine/curve/secp256k1"
)

func TestIsPubkeyCompatible_MatchesTopBitOfX(t *testing.T) {
	scm := New()
	field := scm.Field()

	sawCompatible, sawIncompatible := false, false
	for k := uint64(1); k <= 64; k++ {
		y := field.ScalarBaseMul(field.ScalarFromUint64(k))
		x, ok := secpcurve.AsSecp256k1Point(y)
		require.True(t, ok)
		want := x[0]&0x80 == 0
		require.Equal(t, want, scm.IsPubkeyCompatible(y), "k=%d", k)
		if want {
			sawCompatible = true
		} else {
			sawIncompatible = true
		}
	}
	require.True(t, sawCompatible, "expected at least one compatible key in the sample")
	require.True(t, sawIncompatible, "expected at least one incompatible key in the sample")
}

func TestBuildResponse_VerifiesAgainstBoundCommitment(t *testing.T) {
	scm := New()
	field := scm.Field()

	privateKey := field.ScalarFromUint64(7)
	y := field.ScalarBaseMul(privateKey)
	nonce := field.ScalarFromUint64(11)
	r := field.ScalarBaseMul(nonce)
	challenge := field.ScalarFromUint64(13)
	lambda := field.ScalarFromUint64(1)

	response := scm.BuildResponse(nonce, nil, privateKey, challenge)
	require.True(t, scm.IsPartyResponseValid(y, lambda, r, nil, challenge, response))

	wrongResponse := response.Add(field.ScalarFromUint64(1))
	require.False(t, scm.IsPartyResponseValid(y, lambda, r, nil, challenge, wrongResponse))
}

func TestBuildSignature_SatisfiesNegativeChallengeEquation(t *testing.T) {
	scm := New()
	field := scm.Field()

	privateKey := field.ScalarFromUint64(7)
	y := field.ScalarBaseMul(privateKey)
	nonce := field.ScalarFromUint64(11)
	r := field.ScalarBaseMul(nonce)
	payload := []byte("evm-payload")

	challenge := scm.BuildChallenge(y, r, payload)
	z := scm.BuildResponse(nonce, nil, privateKey, challenge)
	sig := scm.BuildSignature(z, r)
	require.Len(t, sig, 1+32+32)

	parity, rx := sig[0], sig[1:33]
	decodedR, err := field.PointFromBytes(append([]byte{0x02 + parity}, rx...))
	require.NoError(t, err)
	require.True(t, decodedR.Equal(r))

	decodedZ := field.ScalarFromBytesModOrder(sig[33:])
	// The EVM verifying contract's convention: z*G + c*Y == R.
	lhs := field.ScalarBaseMul(decodedZ).Add(y.Mul(challenge))
	require.True(t, lhs.Equal(r))
}
