// Package ristretto implements curve.Scalar/curve.Point over the Ristretto
// group, approximating Polkadot's sr25519 Schnorr construction (which is
// itself built over Ristretto by the Schnorrkel scheme). Built on
// github.com/gtank/ristretto255.
package ristretto

import (
	"crypto/rand"
	"errors"

	"github.com/gtank/ristretto255"

	"github.com/chainflip-io/multisig-engine/curve"
)

type field struct{}

// Field is the curve.Field for Ristretto255.
var Field curve.Field = field{}

func (field) Name() string { return "ristretto255" }

func (field) ScalarFromUint64(v uint64) curve.Scalar {
	var b [64]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	s := ristretto255.NewScalar().FromUniformBytes(b[:])
	return &scalar{s: s}
}

func (field) RandomScalar() (curve.Scalar, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	s := ristretto255.NewScalar().FromUniformBytes(buf[:])
	if s.Equal(ristretto255.NewScalar()) == 1 {
		return field{}.RandomScalar()
	}
	return &scalar{s: s}, nil
}

func (field) ScalarFromBytesModOrder(b []byte) curve.Scalar {
	buf := make([]byte, 64)
	copy(buf, b)
	s := ristretto255.NewScalar().FromUniformBytes(buf)
	return &scalar{s: s}
}

func (field) BasePoint() curve.Point {
	return &point{p: ristretto255.NewElement().Base()}
}

func (field) ScalarBaseMul(s curve.Scalar) curve.Point {
	sc := s.(*scalar)
	return &point{p: ristretto255.NewElement().ScalarBaseMult(sc.s)}
}

func (field) IdentityPoint() curve.Point {
	return &point{p: ristretto255.NewElement()}
}

func (field) PointFromBytes(b []byte) (curve.Point, error) {
	e := ristretto255.NewElement()
	if err := e.Decode(b); err != nil {
		return nil, err
	}
	return &point{p: e}, nil
}

type scalar struct{ s *ristretto255.Scalar }

func (a *scalar) Add(b curve.Scalar) curve.Scalar {
	return &scalar{s: ristretto255.NewScalar().Add(a.s, b.(*scalar).s)}
}

func (a *scalar) Sub(b curve.Scalar) curve.Scalar {
	return &scalar{s: ristretto255.NewScalar().Subtract(a.s, b.(*scalar).s)}
}

func (a *scalar) Mul(b curve.Scalar) curve.Scalar {
	return &scalar{s: ristretto255.NewScalar().Multiply(a.s, b.(*scalar).s)}
}

func (a *scalar) Neg() curve.Scalar {
	return &scalar{s: ristretto255.NewScalar().Negate(a.s)}
}

func (a *scalar) Invert() (curve.Scalar, error) {
	if a.IsZero() {
		return nil, errors.New("ristretto255: cannot invert zero scalar")
	}
	return &scalar{s: ristretto255.NewScalar().Invert(a.s)}, nil
}

func (a *scalar) Equal(b curve.Scalar) bool {
	ob, ok := b.(*scalar)
	return ok && a.s.Equal(ob.s) == 1
}

func (a *scalar) IsZero() bool {
	return a.s.Equal(ristretto255.NewScalar()) == 1
}

func (a *scalar) Bytes() []byte {
	return a.s.Encode(nil)
}

func (a *scalar) Zeroize() {
	a.s = ristretto255.NewScalar()
}

type point struct{ p *ristretto255.Element }

func (a *point) Add(b curve.Point) curve.Point {
	return &point{p: ristretto255.NewElement().Add(a.p, b.(*point).p)}
}

func (a *point) Sub(b curve.Point) curve.Point {
	return &point{p: ristretto255.NewElement().Subtract(a.p, b.(*point).p)}
}

func (a *point) Mul(s curve.Scalar) curve.Point {
	return &point{p: ristretto255.NewElement().ScalarMult(s.(*scalar).s, a.p)}
}

func (a *point) Equal(b curve.Point) bool {
	ob, ok := b.(*point)
	return ok && a.p.Equal(ob.p) == 1
}

func (a *point) IsInfinity() bool {
	return a.p.Equal(ristretto255.NewElement()) == 1
}

func (a *point) Bytes() []byte {
	return a.p.Encode(nil)
}
