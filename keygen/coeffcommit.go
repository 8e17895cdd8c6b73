package keygen

import (
	"time"

	"github.com/chainflip-io/multisig-engine/broadcast"
	"github.com/chainflip-io/multisig-engine/commitment"
	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/p2p"
	"github.com/chainflip-io/multisig-engine/stage"
)

// commitmentList is the wire shape of a party's coefficient commitment
// vector: (t+1) compressed curve points.
type commitmentList struct {
	Points [][]byte `cbor:"1,keyasint"`
}

// CoefficientCommitments3Stage is stage 4: every party reveals the
// coefficient commitment points whose hash it committed to in stage 2
// (spec §4.5).
type CoefficientCommitments3Stage struct {
	*broadcast.Round
	sess *session
}

func newCoefficientCommitments3Stage(sess *session) *CoefficientCommitments3Stage {
	payload, err := p2p.Encode(commitmentList{Points: sess.myCommitmentsBytes})
	if err != nil {
		// Encoding our own already-validated points cannot fail; a panic
		// here would indicate a broken cbor codec, not a protocol fault.
		panic(err)
	}
	r := broadcast.NewRound(StageCoefficientCommitments3, 4, sess.cfg.Participants, sess.cfg.Self, payload)
	return &CoefficientCommitments3Stage{Round: r, sess: sess}
}

// ProcessMessage size-validates the commitment vector's point count
// against the agreed threshold before it is ever collected, so an
// oversized vector is discarded without paying for point decompression.
func (s *CoefficientCommitments3Stage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	var list commitmentList
	if err := p2p.Decode(payload, &list); err != nil {
		return
	}
	if len(list.Points) != s.sess.cfg.Threshold+1 {
		return
	}
	s.Round.ProcessMessage(sender, payload)
}

func (s *CoefficientCommitments3Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
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

	next, err := newVerifyCommitmentsBcast4Stage(s.sess, s.Collected())
	if err != nil {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.Participants, Reason: stage.ReasonMalformedMessage}, true
	}
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// VerifyCommitmentsBcast4Stage is stage 5: the broadcast-verify pair of
// stage 4. After consensus is reached on each party's revealed
// commitment vector, each vector is checked against that party's stage-2
// hash commitment and decoded into curve points.
type VerifyCommitmentsBcast4Stage struct {
	*broadcast.VerifyRound
	sess *session
}

func newVerifyCommitmentsBcast4Stage(sess *session, roundA map[ids.PartyIndex][]byte) (*VerifyCommitmentsBcast4Stage, error) {
	vr, err := broadcast.NewVerifyRound(StageVerifyCommitmentsBcast4, 5, sess.cfg.Participants, sess.cfg.Self, roundA)
	if err != nil {
		return nil, err
	}
	return &VerifyCommitmentsBcast4Stage{VerifyRound: vr, sess: sess}, nil
}

func (s *VerifyCommitmentsBcast4Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}

	consensus, blamed := s.ExtractConsensus()
	if len(blamed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: blamed, Reason: stage.ReasonInconsistentBcast}, true
	}

	field := s.sess.field
	commitments := make(map[ids.PartyIndex][]curve.Point, len(consensus))
	var mismatched []ids.PartyIndex

	for _, party := range s.sess.cfg.Participants {
		raw, ok := consensus[party]
		if !ok {
			mismatched = append(mismatched, party)
			continue
		}

		var list commitmentList
		if err := p2p.Decode(raw, &list); err != nil {
			mismatched = append(mismatched, party)
			continue
		}

		points := make([]curve.Point, len(list.Points))
		for i, b := range list.Points {
			p, err := field.PointFromBytes(b)
			if err != nil {
				points = nil
				break
			}
			points[i] = p
		}
		if points == nil {
			mismatched = append(mismatched, party)
			continue
		}

		gotHash := commitment.CommitPoints(commitment.TagCoefficientCommitments, s.sess.cfg.Context, points)
		wantHash, ok := s.sess.hashConsensus[party]
		if !ok || gotHash != wantHash {
			mismatched = append(mismatched, party)
			continue
		}

		commitments[party] = points
	}

	if len(mismatched) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: mismatched, Reason: stage.ReasonInconsistentBcast}, true
	}

	s.sess.commitmentConsensus = commitments
	next := newSecretShares5Stage(s.sess)
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}
