// Package secp256k1 implements curve.Scalar/curve.Point over secp256k1,
// backing the EVM and Bitcoin scheme adapters. Built on
// github.com/decred/dcrd/dcrec/secp256k1/v4, the same library the pack's
// Bitcoin- and Ethereum-adjacent repos depend on.
package secp256k1

import (
	"crypto/rand"
	"errors"

	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/chainflip-io/multisig-engine/curve"
)

type field struct{}

// Field is the curve.Field for secp256k1.
var Field curve.Field = field{}

func (field) Name() string { return "secp256k1" }

func (field) ScalarFromUint64(v uint64) curve.Scalar {
	var s secp.ModNScalar
	s.SetInt(uint32(v))
	if v > 1<<32-1 {
		// SetInt only takes a uint32; fall back to byte reduction for
		// larger small values (party indices never realistically exceed
		// this, but keep the path correct).
		b := make([]byte, 8)
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * (7 - i)))
		}
		return field{}.ScalarFromBytesModOrder(b)
	}
	return &scalar{s: s}
}

func (field) RandomScalar() (curve.Scalar, error) {
	for {
		var buf [32]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, err
		}
		s := new(secp.ModNScalar)
		overflow := s.SetBytes((*[32]byte)(&buf))
		if overflow == 0 && !s.IsZero() {
			return &scalar{s: *s}, nil
		}
	}
}

func (field) ScalarFromBytesModOrder(b []byte) curve.Scalar {
	var s secp.ModNScalar
	s.SetByteSlice(b)
	return &scalar{s: s}
}

func (field) BasePoint() curve.Point {
	var j secp.JacobianPoint
	secp.ScalarBaseMultNonConst(scalarOne(), &j)
	j.ToAffine()
	return &point{p: j}
}

func (field) ScalarBaseMul(s curve.Scalar) curve.Point {
	sc := s.(*scalar)
	var j secp.JacobianPoint
	secp.ScalarBaseMultNonConst(&sc.s, &j)
	j.ToAffine()
	return &point{p: j}
}

func (field) IdentityPoint() curve.Point {
	var j secp.JacobianPoint
	j.X.SetInt(0)
	j.Y.SetInt(0)
	j.Z.SetInt(0)
	return &point{p: j}
}

func (field) PointFromBytes(b []byte) (curve.Point, error) {
	pk, err := secp.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	var j secp.JacobianPoint
	pk.AsJacobian(&j)
	return &point{p: j}, nil
}

func scalarOne() *secp.ModNScalar {
	var one secp.ModNScalar
	one.SetInt(1)
	return &one
}

// scalar wraps secp.ModNScalar.
type scalar struct{ s secp.ModNScalar }

func (a *scalar) Add(b curve.Scalar) curve.Scalar {
	r := a.s
	r.Add(&b.(*scalar).s)
	return &scalar{s: r}
}

func (a *scalar) Sub(b curve.Scalar) curve.Scalar {
	var neg secp.ModNScalar
	neg.Set(&b.(*scalar).s).Negate()
	r := a.s
	r.Add(&neg)
	return &scalar{s: r}
}

func (a *scalar) Mul(b curve.Scalar) curve.Scalar {
	r := a.s
	r.Mul(&b.(*scalar).s)
	return &scalar{s: r}
}

func (a *scalar) Neg() curve.Scalar {
	r := a.s
	r.Negate()
	return &scalar{s: r}
}

func (a *scalar) Invert() (curve.Scalar, error) {
	if a.s.IsZero() {
		return nil, errors.New("secp256k1: cannot invert zero scalar")
	}
	r := a.s
	r.InverseNonConst()
	return &scalar{s: r}, nil
}

func (a *scalar) Equal(b curve.Scalar) bool {
	ob, ok := b.(*scalar)
	return ok && a.s.Equals(&ob.s)
}

func (a *scalar) IsZero() bool { return a.s.IsZero() }

func (a *scalar) Bytes() []byte {
	var b [32]byte
	a.s.PutBytes(&b)
	return b[:]
}

func (a *scalar) Zeroize() {
	a.s.Zero()
}

// point wraps a secp.JacobianPoint kept in affine form.
type point struct{ p secp.JacobianPoint }

func (a *point) Add(b curve.Point) curve.Point {
	ob := b.(*point)
	var r secp.JacobianPoint
	secp.AddNonConst(&a.p, &ob.p, &r)
	r.ToAffine()
	return &point{p: r}
}

func (a *point) Sub(b curve.Point) curve.Point {
	ob := b.(*point)
	var neg secp.JacobianPoint
	neg.X.Set(&ob.p.X)
	neg.Y.Set(&ob.p.Y).Negate(1)
	neg.Y.Normalize()
	neg.Z.Set(&ob.p.Z)
	var r secp.JacobianPoint
	secp.AddNonConst(&a.p, &neg, &r)
	r.ToAffine()
	return &point{p: r}
}

func (a *point) Mul(s curve.Scalar) curve.Point {
	sc := s.(*scalar)
	var r secp.JacobianPoint
	secp.ScalarMultNonConst(&sc.s, &a.p, &r)
	r.ToAffine()
	return &point{p: r}
}

func (a *point) Equal(b curve.Point) bool {
	ob, ok := b.(*point)
	if !ok {
		return false
	}
	if a.IsInfinity() || ob.IsInfinity() {
		return a.IsInfinity() == ob.IsInfinity()
	}
	return a.p.X.Equals(&ob.p.X) && a.p.Y.Equals(&ob.p.Y)
}

func (a *point) IsInfinity() bool {
	return (a.p.X.IsZero() && a.p.Y.IsZero()) || a.p.Z.IsZero()
}

func (a *point) Bytes() []byte {
	if a.IsInfinity() {
		return []byte{0x00}
	}
	pk := secp.NewPublicKey(&a.p.X, &a.p.Y)
	return pk.SerializeCompressed()
}

// X returns the affine X coordinate as a big-endian 32-byte array, used by
// the EVM compatibility predicate.
func (a *point) X() [32]byte {
	x := a.p.X
	return *x.Bytes()
}

// AsSecp256k1Point exposes the concrete type for scheme adapters that need
// the raw X coordinate (the EVM compatibility predicate).
func AsSecp256k1Point(p curve.Point) (x [32]byte, ok bool) {
	pp, isP := p.(*point)
	if !isP {
		return x, false
	}
	return pp.X(), true
}
