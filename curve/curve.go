// Package curve defines the scalar/point abstractions shared across scheme
// adapters (spec §3.2). Concrete curves live in subpackages
// (curve/secp256k1, curve/ed25519, curve/ristretto); the stage machine,
// Shamir math, and broadcast-verification layer never import a concrete
// curve directly.
package curve

// Scalar is an element of a scheme's scalar field. Implementations must
// zeroize their backing bytes on Zeroize (spec §9 "zeroization"). The
// zero scalar is a valid value; Invert on it must return an error rather
// than panic, per spec §3.2.
type Scalar interface {
	Add(Scalar) Scalar
	Sub(Scalar) Scalar
	Mul(Scalar) Scalar
	Neg() Scalar
	Invert() (Scalar, error)
	Equal(Scalar) bool
	IsZero() bool
	Bytes() []byte
	Zeroize()
}

// Point is a group element, serialized to a fixed-size compressed byte
// string.
type Point interface {
	Add(Point) Point
	Sub(Point) Point
	Mul(Scalar) Point
	Equal(Point) bool
	IsInfinity() bool
	Bytes() []byte
}

// Field bundles the constructors a scheme adapter or the generic Shamir/
// Lagrange math needs, without committing to a concrete curve.
type Field interface {
	// Name identifies the curve for logging and error messages.
	Name() string

	// ScalarFromUint64 builds a small scalar, used for party indices in
	// Lagrange interpolation.
	ScalarFromUint64(uint64) Scalar

	// RandomScalar samples a uniformly random nonzero scalar.
	RandomScalar() (Scalar, error)

	// ScalarFromBytesModOrder reduces an arbitrary byte string into a
	// scalar. Per spec §9, bias from this reduction is acceptable for
	// the non-adversarial-controlled values it is used on (rho
	// derivation, hash-to-scalar of commitments).
	ScalarFromBytesModOrder([]byte) Scalar

	// BasePoint returns G.
	BasePoint() Point

	// ScalarBaseMul computes s*G.
	ScalarBaseMul(Scalar) Point

	// IdentityPoint returns the point at infinity.
	IdentityPoint() Point

	// PointFromBytes deserializes a compressed point.
	PointFromBytes([]byte) (Point, error)
}
