package commitment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/curve/secp256k1"
)

func TestHash_IsDeterministicAndTagSeparated(t *testing.T) {
	a := Hash(TagCoefficientCommitments, []byte("same-input"))
	b := Hash(TagCoefficientCommitments, []byte("same-input"))
	require.Equal(t, a, b)

	c := Hash(TagBindingFactor, []byte("same-input"))
	require.NotEqual(t, a, c, "the same bytes under a different tag must commit to a different digest")
}

func TestHash_DistinguishesConcatenationBoundaries(t *testing.T) {
	// Without length-prefixing, ("ab","c") and ("a","bc") would collide.
	a := Hash(TagCoefficientCommitments, []byte("ab"), []byte("c"))
	b := Hash(TagCoefficientCommitments, []byte("a"), []byte("bc"))
	require.NotEqual(t, a, b)
}

func TestCommitPoints_DetectsDifferentContextOrPoints(t *testing.T) {
	field := secp256k1.Field
	p1 := field.ScalarBaseMul(field.ScalarFromUint64(1))
	p2 := field.ScalarBaseMul(field.ScalarFromUint64(2))

	base := CommitPoints(TagCoefficientCommitments, []byte("ctx"), []curve.Point{p1, p2})
	sameAgain := CommitPoints(TagCoefficientCommitments, []byte("ctx"), []curve.Point{p1, p2})
	require.Equal(t, base, sameAgain)

	differentContext := CommitPoints(TagCoefficientCommitments, []byte("other-ctx"), []curve.Point{p1, p2})
	require.NotEqual(t, base, differentContext)

	reordered := CommitPoints(TagCoefficientCommitments, []byte("ctx"), []curve.Point{p2, p1})
	require.NotEqual(t, base, reordered)
}

func TestScalarFromHash_RemapsZeroToOne(t *testing.T) {
	field := secp256k1.Field
	var zeroDigest Digest
	s := ScalarFromHash(field, zeroDigest)
	require.True(t, s.Equal(field.ScalarFromUint64(1)))
}
