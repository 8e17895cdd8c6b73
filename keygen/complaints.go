package keygen

import (
	"sort"
	"time"

	"github.com/chainflip-io/multisig-engine/broadcast"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/p2p"
	"github.com/chainflip-io/multisig-engine/stage"
)

// complaintList is the wire shape of a party's stage-7 complaint set.
type complaintList struct {
	Against []ids.PartyIndex `cbor:"1,keyasint"`
}

func isParticipant(participants []ids.PartyIndex, p ids.PartyIndex) bool {
	for _, x := range participants {
		if x == p {
			return true
		}
	}
	return false
}

// Complaints6Stage is stage 7: every party broadcasts the set of parties
// whose secret share it could not verify against the agreed coefficient
// commitments (spec §4.5).
type Complaints6Stage struct {
	*broadcast.Round
	sess *session
}

func newComplaints6Stage(sess *session) *Complaints6Stage {
	sorted := append([]ids.PartyIndex{}, sess.myComplaints...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	payload, err := p2p.Encode(complaintList{Against: sorted})
	if err != nil {
		panic(err)
	}
	r := broadcast.NewRound(StageComplaints6, 7, sess.cfg.Participants, sess.cfg.Self, payload)
	return &Complaints6Stage{Round: r, sess: sess}
}

// ProcessMessage rejects a complaint list longer than it could ever
// legitimately be (one entry per other participant), before it is
// collected.
func (s *Complaints6Stage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	var list complaintList
	if err := p2p.Decode(payload, &list); err != nil {
		return
	}
	if len(list.Against) > len(s.sess.cfg.Participants)-1 {
		return
	}
	s.Round.ProcessMessage(sender, payload)
}

func (s *Complaints6Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
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

	next, err := newVerifyComplaints7Stage(s.sess, s.Collected())
	if err != nil {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.Participants, Reason: stage.ReasonMalformedMessage}, true
	}
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// VerifyComplaints7Stage is stage 8: the broadcast-verify pair of stage
// 7. If no party lodged any complaint, keygen is done once consensus on
// the (empty) complaint sets is reached; otherwise every complained-about
// party must reveal the disputed shares in stage 9 (spec §4.5).
type VerifyComplaints7Stage struct {
	*broadcast.VerifyRound
	sess *session
}

func newVerifyComplaints7Stage(sess *session, roundA map[ids.PartyIndex][]byte) (*VerifyComplaints7Stage, error) {
	vr, err := broadcast.NewVerifyRound(StageVerifyComplaints7, 8, sess.cfg.Participants, sess.cfg.Self, roundA)
	if err != nil {
		return nil, err
	}
	return &VerifyComplaints7Stage{VerifyRound: vr, sess: sess}, nil
}

func (s *VerifyComplaints7Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}

	consensus, blamed := s.ExtractConsensus()
	if len(blamed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: blamed, Reason: stage.ReasonInconsistentBcast}, true
	}

	complaintConsensus := make(map[ids.PartyIndex][]ids.PartyIndex, len(consensus))
	anyComplaints := false
	for _, complainer := range s.sess.cfg.Participants {
		raw, ok := consensus[complainer]
		if !ok {
			return &stage.Transition{Kind: stage.TransitionError, Offenders: []ids.PartyIndex{complainer}, Reason: stage.ReasonMalformedMessage}, true
		}
		var list complaintList
		if err := p2p.Decode(raw, &list); err != nil {
			return &stage.Transition{Kind: stage.TransitionError, Offenders: []ids.PartyIndex{complainer}, Reason: stage.ReasonMalformedMessage}, true
		}
		for _, accused := range list.Against {
			if !isParticipant(s.sess.cfg.Participants, accused) {
				// A complaint naming a party outside the authorised set
				// is the complainer's own fault, never passed through
				// into the offender set.
				return &stage.Transition{Kind: stage.TransitionError, Offenders: []ids.PartyIndex{complainer}, Reason: stage.ReasonInvalidComplaint}, true
			}
		}
		complaintConsensus[complainer] = list.Against
		if len(list.Against) > 0 {
			anyComplaints = true
		}
	}
	s.sess.complaintConsensus = complaintConsensus

	if !anyComplaints {
		result, err := finishKeygen(s.sess)
		if err != nil {
			return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.Participants, Reason: stage.ReasonInvalidShare}, true
		}
		return &stage.Transition{Kind: stage.TransitionDone, Artifact: result}, true
	}

	next := newBlameResponses8Stage(s.sess)
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}
