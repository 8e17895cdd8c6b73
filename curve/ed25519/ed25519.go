// Package ed25519 implements curve.Scalar/curve.Point over edwards25519,
// backing the Solana scheme adapter. Built on filippo.io/edwards25519.
package ed25519

import (
	"crypto/rand"
	"errors"

	"filippo.io/edwards25519"

	"github.com/chainflip-io/multisig-engine/curve"
)

type field struct{}

// Field is the curve.Field for edwards25519.
var Field curve.Field = field{}

func (field) Name() string { return "edwards25519" }

func (field) ScalarFromUint64(v uint64) curve.Scalar {
	var b [32]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b[:])
	if err != nil {
		// A little-endian uint64 is always < L, so this cannot fail.
		panic(err)
	}
	return &scalar{s: s}
}

func (field) RandomScalar() (curve.Scalar, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	s, err := edwards25519.NewScalar().SetUniformBytes(buf[:])
	if err != nil {
		return nil, err
	}
	if s.Equal(edwards25519.NewScalar()) == 1 {
		return field{}.RandomScalar()
	}
	return &scalar{s: s}, nil
}

func (field) ScalarFromBytesModOrder(b []byte) curve.Scalar {
	buf := make([]byte, 64)
	copy(buf, b)
	s, err := edwards25519.NewScalar().SetUniformBytes(buf)
	if err != nil {
		panic(err)
	}
	return &scalar{s: s}
}

func (field) BasePoint() curve.Point {
	return &point{p: edwards25519.NewGeneratorPoint()}
}

func (field) ScalarBaseMul(s curve.Scalar) curve.Point {
	sc := s.(*scalar)
	return &point{p: edwards25519.NewIdentityPoint().ScalarBaseMult(sc.s)}
}

func (field) IdentityPoint() curve.Point {
	return &point{p: edwards25519.NewIdentityPoint()}
}

func (field) PointFromBytes(b []byte) (curve.Point, error) {
	p, err := edwards25519.NewIdentityPoint().SetBytes(b)
	if err != nil {
		return nil, err
	}
	return &point{p: p}, nil
}

type scalar struct{ s *edwards25519.Scalar }

func (a *scalar) Add(b curve.Scalar) curve.Scalar {
	return &scalar{s: edwards25519.NewScalar().Add(a.s, b.(*scalar).s)}
}

func (a *scalar) Sub(b curve.Scalar) curve.Scalar {
	return &scalar{s: edwards25519.NewScalar().Subtract(a.s, b.(*scalar).s)}
}

func (a *scalar) Mul(b curve.Scalar) curve.Scalar {
	return &scalar{s: edwards25519.NewScalar().Multiply(a.s, b.(*scalar).s)}
}

func (a *scalar) Neg() curve.Scalar {
	return &scalar{s: edwards25519.NewScalar().Negate(a.s)}
}

func (a *scalar) Invert() (curve.Scalar, error) {
	if a.IsZero() {
		return nil, errors.New("edwards25519: cannot invert zero scalar")
	}
	return &scalar{s: edwards25519.NewScalar().Invert(a.s)}, nil
}

func (a *scalar) Equal(b curve.Scalar) bool {
	ob, ok := b.(*scalar)
	return ok && a.s.Equal(ob.s) == 1
}

func (a *scalar) IsZero() bool {
	return a.s.Equal(edwards25519.NewScalar()) == 1
}

func (a *scalar) Bytes() []byte {
	return a.s.Bytes()
}

func (a *scalar) Zeroize() {
	zero := make([]byte, 32)
	_, _ = a.s.SetCanonicalBytes(zero)
}

type point struct{ p *edwards25519.Point }

func (a *point) Add(b curve.Point) curve.Point {
	return &point{p: edwards25519.NewIdentityPoint().Add(a.p, b.(*point).p)}
}

func (a *point) Sub(b curve.Point) curve.Point {
	return &point{p: edwards25519.NewIdentityPoint().Subtract(a.p, b.(*point).p)}
}

func (a *point) Mul(s curve.Scalar) curve.Point {
	return &point{p: edwards25519.NewIdentityPoint().ScalarMult(s.(*scalar).s, a.p)}
}

func (a *point) Equal(b curve.Point) bool {
	ob, ok := b.(*point)
	return ok && a.p.Equal(ob.p) == 1
}

func (a *point) IsInfinity() bool {
	return a.p.Equal(edwards25519.NewIdentityPoint()) == 1
}

func (a *point) Bytes() []byte {
	return a.p.Bytes()
}
