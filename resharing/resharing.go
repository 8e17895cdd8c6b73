// Package resharing implements the committee-handover protocol of spec
// §4.7: the old committee's shares of a fixed public key y are
// redistributed to a (possibly disjoint) new committee without y
// changing.
package resharing

import (
	"fmt"
	"time"

	"github.com/chainflip-io/multisig-engine/commitment"
	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/scheme"
	"github.com/chainflip-io/multisig-engine/shamir"
)

// Stage names, mirroring keygen's but scoped to resharing (spec §4.7
// reuses "the same complaint/blame stages as DKG").
const (
	StageHashCommitments1        = "ReshareHashCommitments1"
	StageVerifyHashCommitments2  = "ReshareVerifyHashCommitments2"
	StageCoefficientCommitments3 = "ReshareCoefficientCommitments3"
	StageVerifyCommitmentsBcast4 = "ReshareVerifyCommitmentsBroadcast4"
	StageSecretShares5           = "ReshareSecretShares5"
	StageComplaints6             = "ReshareComplaints6"
	StageVerifyComplaints7       = "ReshareVerifyComplaints7"
	StageBlameResponses8         = "ReshareBlameResponses8"
	StageVerifyBlameResponses9   = "ReshareVerifyBlameResponses9"
)

// Role is this party's part in the handover, spec §4.7's
// ParticipantStatus.
type Role int

const (
	// RoleSharing holds a share of the old key and contributes a
	// nonzero polynomial.
	RoleSharing Role = iota
	// RoleNonSharing neither holds the old key nor receives a new
	// share; it still runs the protocol, contributing a zero
	// polynomial, so the broadcast-verification rounds stay uniform.
	RoleNonSharing
	// RoleNonSharingReceivedKeys is RoleNonSharing but additionally
	// holds the old committee's public key shares, needed to verify
	// the y_old == y_new invariant.
	RoleNonSharingReceivedKeys
)

// ParticipantStatus is spec §4.7's per-party status.
type ParticipantStatus struct {
	Role Role

	// SecretShare is this party's old x_i. Only meaningful when Role
	// is RoleSharing.
	SecretShare curve.Scalar

	// PublicKeyShares is the old committee's party public keys,
	// Y_old_j for every old-committee party j. Used to reconstruct
	// y_old for the invariant check.
	PublicKeyShares map[ids.PartyIndex]curve.Point
}

// Config parameterizes one resharing ceremony.
type Config struct {
	Scheme scheme.Scheme

	// AllParties is the union of Sharing and Receiving: every party
	// that participates in the broadcast-verification rounds.
	AllParties []ids.PartyIndex
	// Sharing is the old committee (or the subset of it still online).
	Sharing []ids.PartyIndex
	// Receiving is the new committee.
	Receiving []ids.PartyIndex
	// OldSignerSet is the old committee's qualified signer subset,
	// used to compute each sharing party's lambda_i_over_old_set.
	OldSignerSet []ids.PartyIndex

	Self      ids.PartyIndex
	Status    ParticipantStatus
	Threshold int // t_new, the new committee's threshold

	// OldPublicKey is y_old, already known to every party from the key
	// database entry being reshared; the finished ceremony's y_new must
	// equal it (spec §4.7).
	OldPublicKey curve.Point

	Context      []byte
	StageTimeout time.Duration
}

// Result is the new committee's KeygenResult-shaped outcome.
type Result struct {
	KeyShare        KeyShare
	PartyPublicKeys map[ids.PartyIndex]curve.Point
}

// KeyShare is (x_i_new, y), matching keygen.KeyShare's shape.
type KeyShare struct {
	Xi curve.Scalar
	Y  curve.Point
}

func (k *KeyShare) Zeroize() {
	if k.Xi != nil {
		k.Xi.Zeroize()
	}
}

type session struct {
	cfg   Config
	field curve.Field

	myPoly             *shamir.Polynomial
	myCommitmentPoints []curve.Point
	myCommitmentsBytes [][]byte
	myHash             commitment.Digest

	hashConsensus       map[ids.PartyIndex]commitment.Digest
	commitmentConsensus map[ids.PartyIndex][]curve.Point

	sentShares     map[ids.PartyIndex]curve.Scalar
	receivedShares map[ids.PartyIndex]curve.Scalar

	myComplaints       []ids.PartyIndex
	complaintConsensus map[ids.PartyIndex][]ids.PartyIndex

	isReceiving bool
}

func isMember(set []ids.PartyIndex, p ids.PartyIndex) bool {
	for _, x := range set {
		if x == p {
			return true
		}
	}
	return false
}

func newSession(cfg Config) (*session, error) {
	field := cfg.Scheme.Field()

	var secret curve.Scalar
	if cfg.Status.Role == RoleSharing && isMember(cfg.Sharing, cfg.Self) {
		lambda, err := shamir.LagrangeCoefficient(field, cfg.Self, cfg.OldSignerSet)
		if err != nil {
			return nil, fmt.Errorf("resharing: computing lambda_over_old_set: %w", err)
		}
		secret = lambda.Mul(cfg.Status.SecretShare)
	} else {
		secret = field.ScalarFromUint64(0)
	}

	poly, err := shamir.GeneratePolynomial(field, cfg.Threshold)
	if err != nil {
		return nil, err
	}
	// Overwrite the sampled constant term with the (possibly zero)
	// weighted old share; the higher-degree coefficients stay random so
	// the new committee's shares are still a fresh VSS sharing of that
	// constant (spec §4.7).
	poly.Coefficients()[0].Zeroize()
	coeffs := poly.Coefficients()
	coeffs[0] = secret

	return &session{
		cfg:            cfg,
		field:          field,
		myPoly:         poly,
		sentShares:     make(map[ids.PartyIndex]curve.Scalar),
		receivedShares: make(map[ids.PartyIndex]curve.Scalar),
		isReceiving:    isMember(cfg.Receiving, cfg.Self),
	}, nil
}

// Start builds the first stage of a resharing ceremony.
func Start(cfg Config) (*HashCommitments1Stage, error) {
	sess, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	return newHashCommitments1Stage(sess), nil
}
