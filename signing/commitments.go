package signing

import (
	"time"

	"github.com/chainflip-io/multisig-engine/broadcast"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/p2p"
	"github.com/chainflip-io/multisig-engine/stage"
)

// AwaitCommitments1Stage is stage 1: every signer samples a nonce pair
// and publishes its commitment (spec §4.6).
type AwaitCommitments1Stage struct {
	*broadcast.Round
	sess *session
}

func newAwaitCommitments1Stage(sess *session) *AwaitCommitments1Stage {
	d := sess.field.ScalarBaseMul(sess.myNonceD)
	e := sess.field.ScalarBaseMul(sess.myNonceE)

	payload, err := p2p.Encode(commitmentPair{D: d.Bytes(), E: e.Bytes()})
	if err != nil {
		panic(err)
	}
	r := broadcast.NewRound(StageAwaitCommitments1, 1, sess.cfg.Signers, sess.cfg.Self, payload)
	return &AwaitCommitments1Stage{Round: r, sess: sess}
}

func (s *AwaitCommitments1Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}
	if !s.Complete() {
		return &stage.Transition{
			Kind:      stage.TransitionError,
			Offenders: s.Missing(),
			Reason:    stage.ReasonMissingMessage,
		}, true
	}

	next, err := newVerifyCommitments2Stage(s.sess, s.Collected())
	if err != nil {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.Signers, Reason: stage.ReasonMalformedMessage}, true
	}
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// VerifyCommitments2Stage is stage 2: the broadcast-verify pair of stage
// 1. Once consensus is reached, the binding scalars rho_j and group
// commitment R are derived deterministically (spec §4.6).
type VerifyCommitments2Stage struct {
	*broadcast.VerifyRound
	sess *session
}

func newVerifyCommitments2Stage(sess *session, roundA map[ids.PartyIndex][]byte) (*VerifyCommitments2Stage, error) {
	vr, err := broadcast.NewVerifyRound(StageVerifyCommitments2, 2, sess.cfg.Signers, sess.cfg.Self, roundA)
	if err != nil {
		return nil, err
	}
	return &VerifyCommitments2Stage{VerifyRound: vr, sess: sess}, nil
}

func (s *VerifyCommitments2Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}

	consensus, blamed := s.ExtractConsensus()
	if len(blamed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: blamed, Reason: stage.ReasonInconsistentBcast}, true
	}

	field := s.sess.field
	decoded := make(map[ids.PartyIndex]decodedCommitment, len(consensus))
	var malformed []ids.PartyIndex

	for _, signer := range s.sess.cfg.Signers {
		raw, ok := consensus[signer]
		if !ok {
			malformed = append(malformed, signer)
			continue
		}
		var pair commitmentPair
		if err := p2p.Decode(raw, &pair); err != nil {
			malformed = append(malformed, signer)
			continue
		}
		d, err1 := field.PointFromBytes(pair.D)
		e, err2 := field.PointFromBytes(pair.E)
		if err1 != nil || err2 != nil {
			malformed = append(malformed, signer)
			continue
		}
		decoded[signer] = decodedCommitment{D: d, E: e}
	}

	if len(malformed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: malformed, Reason: stage.ReasonMalformedMessage}, true
	}
	s.sess.commitmentConsensus = decoded

	rho := deriveBindingFactors(s.sess.cfg.Signers, s.sess.cfg.Payload, decoded, field)
	s.sess.rho = rho

	r := field.IdentityPoint()
	for _, j := range s.sess.cfg.Signers {
		c := decoded[j]
		r = r.Add(c.D.Add(c.E.Mul(rho[j])))
	}
	s.sess.r = r
	s.sess.c = s.sess.cfg.Scheme.BuildChallenge(s.sess.cfg.Y, r, s.sess.cfg.Payload)

	next := newLocalSig3Stage(s.sess)
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}
