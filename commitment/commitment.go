// Package commitment implements the 32-byte hash commitment primitive of
// spec §4.2, domain-separated by a single-byte tag. It commits to Blake2b
// (golang.org/x/crypto/blake2b) as the one hash function used throughout
// the ceremony, resolving the spec §9 open question.
package commitment

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/chainflip-io/multisig-engine/curve"
)

// Tag domain-separates a commitment's purpose so the same byte digest
// never means two different things.
type Tag byte

const (
	TagCoefficientCommitments Tag = 0x01
	TagBindingFactor          Tag = 0x02
	TagKeyShareCheck          Tag = 0x03
)

// Digest is a 32-byte Blake2b commitment.
type Digest [32]byte

// Hash computes H(tag, parts...) by concatenating length-prefixed parts.
func Hash(tag Tag, parts ...[]byte) Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for an over-long key, and we pass nil.
		panic(err)
	}
	h.Write([]byte{byte(tag)})
	var lenBuf [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// CommitPoints hashes a slice of curve points under the given tag, used to
// commit to a party's VSS coefficient commitments (spec §4.5 stage 2).
func CommitPoints(tag Tag, context []byte, points []curve.Point) Digest {
	parts := make([][]byte, 0, len(points)+1)
	parts = append(parts, context)
	for _, p := range points {
		parts = append(parts, p.Bytes())
	}
	return Hash(tag, parts...)
}

// ScalarFromHash reduces a hash digest into a scalar in the given field,
// remapping a zero result to one as required by the FROST binding-factor
// nonzero precondition (spec §9).
func ScalarFromHash(f curve.Field, d Digest) curve.Scalar {
	s := f.ScalarFromBytesModOrder(d[:])
	if s.IsZero() {
		return f.ScalarFromUint64(1)
	}
	return s
}
