// Package keygen implements the 10-stage distributed key generation
// protocol of spec §4.5.
package keygen

import (
	"time"

	"github.com/chainflip-io/multisig-engine/commitment"
	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/scheme"
	"github.com/chainflip-io/multisig-engine/shamir"
)

// Stage names, in protocol order (spec §4.5).
const (
	StagePubkeyShares0           = "PubkeyShares0"
	StageHashCommitments1        = "HashCommitments1"
	StageVerifyHashCommitments2  = "VerifyHashCommitments2"
	StageCoefficientCommitments3 = "CoefficientCommitments3"
	StageVerifyCommitmentsBcast4 = "VerifyCommitmentsBroadcast4"
	StageSecretShares5           = "SecretShares5"
	StageComplaints6             = "Complaints6"
	StageVerifyComplaints7       = "VerifyComplaints7"
	StageBlameResponses8         = "BlameResponses8"
	StageVerifyBlameResponses9   = "VerifyBlameResponses9"
)

// Config parameterizes a keygen ceremony.
type Config struct {
	Scheme        scheme.Scheme
	Participants  []ids.PartyIndex
	Self          ids.PartyIndex
	Threshold     int // t, per spec §3.3 ThresholdParameters
	Context       []byte
	StageTimeout  time.Duration
	MyPubkeyShare []byte // stable long-term pubkey share of spec §4.5 stage 1
}

// Result is spec §3.2's KeygenResult: the produced key share plus the
// public key share of every party, with the invariant that y is
// compatible and that Lagrange-interpolating the party public keys at
// zero reproduces y.
type Result struct {
	KeyShare        KeyShare
	PartyPublicKeys map[ids.PartyIndex]curve.Point
	PubkeyShares    map[ids.PartyIndex][]byte
}

// KeyShare is spec §3.2's KeyShare: (x_i, y). Xi is zeroized on drop.
type KeyShare struct {
	Xi curve.Scalar
	Y  curve.Point
}

// Zeroize clears the secret share.
func (k *KeyShare) Zeroize() {
	if k.Xi != nil {
		k.Xi.Zeroize()
	}
}

// session holds the cross-stage state of one keygen ceremony, the
// equivalent of tss-lib's LocalPartyTempData.
type session struct {
	cfg   Config
	field curve.Field

	myPoly             *shamir.Polynomial
	myCommitmentPoints []curve.Point
	myCommitmentsBytes [][]byte
	myHash             commitment.Digest

	pubkeyShares map[ids.PartyIndex][]byte

	hashConsensus       map[ids.PartyIndex]commitment.Digest
	commitmentConsensus map[ids.PartyIndex][]curve.Point

	sentShares     map[ids.PartyIndex]curve.Scalar // f_self(k), kept to answer blame
	receivedShares map[ids.PartyIndex]curve.Scalar // f_k(self)

	myComplaints       []ids.PartyIndex
	complaintConsensus map[ids.PartyIndex][]ids.PartyIndex // complainer -> blamed set

	myBlameResponses map[ids.PartyIndex][]byte // complainer index -> revealed share bytes
}

func newSession(cfg Config) (*session, error) {
	poly, err := shamir.GeneratePolynomial(cfg.Scheme.Field(), cfg.Threshold)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:            cfg,
		field:          cfg.Scheme.Field(),
		myPoly:         poly,
		pubkeyShares:   make(map[ids.PartyIndex][]byte),
		sentShares:     make(map[ids.PartyIndex]curve.Scalar),
		receivedShares: make(map[ids.PartyIndex]curve.Scalar),
	}, nil
}

// Start builds the first stage of a keygen ceremony (spec §4.8
// "start_authorised" adopts this as stage0).
func Start(cfg Config) (*PubkeyShares0Stage, error) {
	sess, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	return newPubkeyShares0Stage(sess), nil
}
