package keygen

import (
	"time"

	"github.com/chainflip-io/multisig-engine/broadcast"
	"github.com/chainflip-io/multisig-engine/commitment"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/shamir"
	"github.com/chainflip-io/multisig-engine/stage"
)

// HashCommitments1Stage is stage 2: party i computes
// h_i = H(coefficient_commitments_i, context) and broadcasts h_i (spec
// §4.5).
type HashCommitments1Stage struct {
	*broadcast.Round
	sess *session
}

func newHashCommitments1Stage(sess *session) *HashCommitments1Stage {
	points := shamir.CommitCoefficients(sess.field, sess.myPoly)
	sess.myCommitmentPoints = points

	bytesOut := make([][]byte, len(points))
	for i, p := range points {
		bytesOut[i] = p.Bytes()
	}
	sess.myCommitmentsBytes = bytesOut
	sess.myHash = commitment.CommitPoints(commitment.TagCoefficientCommitments, sess.cfg.Context, points)

	r := broadcast.NewRound(StageHashCommitments1, 2, sess.cfg.Participants, sess.cfg.Self, sess.myHash[:])
	return &HashCommitments1Stage{Round: r, sess: sess}
}

func (s *HashCommitments1Stage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	if len(payload) != 32 {
		return
	}
	s.Round.ProcessMessage(sender, payload)
}

func (s *HashCommitments1Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
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

	next, err := newVerifyHashCommitments2Stage(s.sess, s.Collected())
	if err != nil {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.Participants, Reason: stage.ReasonMalformedMessage}, true
	}
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// VerifyHashCommitments2Stage is stage 3: the broadcast-verify pair of
// stage 2.
type VerifyHashCommitments2Stage struct {
	*broadcast.VerifyRound
	sess *session
}

func newVerifyHashCommitments2Stage(sess *session, roundA map[ids.PartyIndex][]byte) (*VerifyHashCommitments2Stage, error) {
	vr, err := broadcast.NewVerifyRound(StageVerifyHashCommitments2, 3, sess.cfg.Participants, sess.cfg.Self, roundA)
	if err != nil {
		return nil, err
	}
	return &VerifyHashCommitments2Stage{VerifyRound: vr, sess: sess}, nil
}

func (s *VerifyHashCommitments2Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}

	consensus, blamed := s.ExtractConsensus()
	if len(blamed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: blamed, Reason: stage.ReasonInconsistentBcast}, true
	}

	hashConsensus := make(map[ids.PartyIndex]commitment.Digest, len(consensus))
	for party, digest := range consensus {
		var d commitment.Digest
		if len(digest) != 32 {
			return &stage.Transition{Kind: stage.TransitionError, Offenders: []ids.PartyIndex{party}, Reason: stage.ReasonMalformedMessage}, true
		}
		copy(d[:], digest)
		hashConsensus[party] = d
	}
	s.sess.hashConsensus = hashConsensus

	next := newCoefficientCommitments3Stage(s.sess)
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}
