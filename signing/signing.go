// Package signing implements the 4-stage FROST threshold signing
// protocol of spec §4.6.
package signing

import (
	"time"

	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/scheme"
)

// Stage names, in protocol order (spec §4.6).
const (
	StageAwaitCommitments1  = "AwaitCommitments1"
	StageVerifyCommitments2 = "VerifyCommitments2"
	StageLocalSig3          = "LocalSig3"
	StageVerifyLocalSigs4   = "VerifyLocalSigs4"
)

// Config parameterizes a signing ceremony over an already-completed key
// share.
type Config struct {
	Scheme          scheme.Scheme
	Xi              curve.Scalar // this party's secret share
	Y               curve.Point  // the joint public key
	PartyPublicKeys map[ids.PartyIndex]curve.Point
	Signers         []ids.PartyIndex // S, the signer subset, |S| >= t+1
	Self            ids.PartyIndex
	Payload         []byte
	StageTimeout    time.Duration
}

// Result is the finished aggregate signature.
type Result struct {
	Signature scheme.Signature
}

// commitmentPair is one signer's published nonce commitments (D_i, E_i).
type commitmentPair struct {
	D []byte `cbor:"1,keyasint"`
	E []byte `cbor:"2,keyasint"`
}

// session holds the cross-stage state of one signing ceremony.
type session struct {
	cfg   Config
	field curve.Field

	myNonceD curve.Scalar
	myNonceE curve.Scalar

	commitmentConsensus map[ids.PartyIndex]decodedCommitment

	rho map[ids.PartyIndex]curve.Scalar
	r   curve.Point
	c   curve.Scalar

	myZ curve.Scalar
}

type decodedCommitment struct {
	D curve.Point
	E curve.Point
}

func newSession(cfg Config) (*session, error) {
	field := cfg.Scheme.Field()
	d, err := field.RandomScalar()
	if err != nil {
		return nil, err
	}
	e, err := field.RandomScalar()
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:      cfg,
		field:    field,
		myNonceD: d,
		myNonceE: e,
	}, nil
}

// Start builds the first stage of a signing ceremony.
func Start(cfg Config) (*AwaitCommitments1Stage, error) {
	sess, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	return newAwaitCommitments1Stage(sess), nil
}
