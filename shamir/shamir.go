// Package shamir implements polynomial share generation, Pedersen/VSS
// coefficient commitments, and Lagrange interpolation (spec §4.2), over an
// arbitrary curve.Field.
package shamir

import (
	"fmt"

	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
)

// Polynomial is a degree-t polynomial over the scalar field, coefficient
// 0 being the secret.
type Polynomial struct {
	field        curve.Field
	coefficients []curve.Scalar
}

// GeneratePolynomial samples a random degree-t polynomial.
func GeneratePolynomial(field curve.Field, threshold int) (*Polynomial, error) {
	coeffs := make([]curve.Scalar, threshold+1)
	for i := range coeffs {
		s, err := field.RandomScalar()
		if err != nil {
			return nil, fmt.Errorf("shamir: sampling coefficient %d: %w", i, err)
		}
		coeffs[i] = s
	}
	return &Polynomial{field: field, coefficients: coeffs}, nil
}

// Secret returns f(0), the constant term.
func (p *Polynomial) Secret() curve.Scalar {
	return p.coefficients[0]
}

// Coefficients returns the raw coefficient slice (not to be mutated).
func (p *Polynomial) Coefficients() []curve.Scalar {
	return p.coefficients
}

// Evaluate computes f(x) for a 1-based party index x, via Horner's method.
func (p *Polynomial) Evaluate(x ids.PartyIndex) curve.Scalar {
	xs := p.field.ScalarFromUint64(uint64(x))
	acc := p.field.ScalarFromUint64(0)
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		acc = acc.Mul(xs).Add(p.coefficients[i])
	}
	return acc
}

// Zeroize clears every coefficient, including the secret.
func (p *Polynomial) Zeroize() {
	for _, c := range p.coefficients {
		c.Zeroize()
	}
}

// CommitCoefficients computes C_j = coeff_j * G for every coefficient,
// i.e. the Pedersen/VSS commitment vector of spec §4.2.
func CommitCoefficients(field curve.Field, p *Polynomial) []curve.Point {
	commitments := make([]curve.Point, len(p.coefficients))
	for i, c := range p.coefficients {
		commitments[i] = field.ScalarBaseMul(c)
	}
	return commitments
}

// VerifyShare checks a received share s = f_i(j) against the sender's
// published coefficient commitments: s*G == sum_k j^k * C_k.
func VerifyShare(field curve.Field, share curve.Scalar, j ids.PartyIndex, commitments []curve.Point) bool {
	lhs := field.ScalarBaseMul(share)

	xs := field.ScalarFromUint64(uint64(j))
	power := field.ScalarFromUint64(1)
	rhs := field.IdentityPoint()
	for _, c := range commitments {
		rhs = rhs.Add(c.Mul(power))
		power = power.Mul(xs)
	}
	return lhs.Equal(rhs)
}

// LagrangeCoefficient computes lambda_j for party j within signer set S:
//
//	lambda_j = prod_{m in S, m != j} m / (m - j)
//
// Division by zero (a duplicate index in S) is an implementation bug and
// is rejected before reaching this code (see the precondition check
// below), per spec §4.2.
func LagrangeCoefficient(field curve.Field, j ids.PartyIndex, signers []ids.PartyIndex) (curve.Scalar, error) {
	seen := make(map[ids.PartyIndex]bool, len(signers))
	for _, m := range signers {
		if seen[m] {
			return nil, fmt.Errorf("shamir: duplicate party index %d in signer set", m)
		}
		seen[m] = true
	}

	xj := field.ScalarFromUint64(uint64(j))
	num := field.ScalarFromUint64(1)
	den := field.ScalarFromUint64(1)

	for _, m := range signers {
		if m == j {
			continue
		}
		xm := field.ScalarFromUint64(uint64(m))
		num = num.Mul(xm)
		diff := xm.Sub(xj)
		if diff.IsZero() {
			// Unreachable given the duplicate check above, but spec §4.2
			// requires this never silently produce an invalid signature.
			panic("shamir: zero denominator in lagrange coefficient despite distinct indices")
		}
		den = den.Mul(diff)
	}

	denInv, err := den.Invert()
	if err != nil {
		panic(fmt.Sprintf("shamir: cryptographic invariant violated inverting nonzero denominator: %v", err))
	}
	return num.Mul(denInv), nil
}

// ReconstructPublicKey sums coefficient-0 commitments across all parties,
// i.e. y = sum_i C_i0 (spec §4.5 "Outcome").
func ReconstructPublicKey(field curve.Field, constantTermCommitments []curve.Point) curve.Point {
	y := field.IdentityPoint()
	for _, c := range constantTermCommitments {
		y = y.Add(c)
	}
	return y
}
