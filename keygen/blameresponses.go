package keygen

import (
	"time"

	"github.com/chainflip-io/multisig-engine/broadcast"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/p2p"
	"github.com/chainflip-io/multisig-engine/shamir"
	"github.com/chainflip-io/multisig-engine/stage"
)

// blameEntry reveals the share a party sent to one complainer, in the
// clear, so every other party can check it against the sender's agreed
// coefficient commitments.
type blameEntry struct {
	Complainer ids.PartyIndex `cbor:"1,keyasint"`
	Share      []byte         `cbor:"2,keyasint"`
}

type blameResponseList struct {
	Responses []blameEntry `cbor:"1,keyasint"`
}

// BlameResponses8Stage is stage 9: every party that was named in any
// stage-7 complaint reveals, for each complainer, the share it privately
// sent them in stage 6 (spec §4.5).
type BlameResponses8Stage struct {
	*broadcast.Round
	sess *session
}

func newBlameResponses8Stage(sess *session) *BlameResponses8Stage {
	var entries []blameEntry
	for _, complainer := range sess.cfg.Participants {
		against := sess.complaintConsensus[complainer]
		for _, accused := range against {
			if accused != sess.cfg.Self {
				continue
			}
			share, ok := sess.sentShares[complainer]
			if !ok {
				continue
			}
			entries = append(entries, blameEntry{Complainer: complainer, Share: share.Bytes()})
		}
	}

	payload, err := p2p.Encode(blameResponseList{Responses: entries})
	if err != nil {
		panic(err)
	}
	r := broadcast.NewRound(StageBlameResponses8, 9, sess.cfg.Participants, sess.cfg.Self, payload)
	return &BlameResponses8Stage{Round: r, sess: sess}
}

// ProcessMessage rejects a blame-response list longer than it could ever
// legitimately be (one entry per complainer who named this sender),
// before it is collected.
func (s *BlameResponses8Stage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	var list blameResponseList
	if err := p2p.Decode(payload, &list); err != nil {
		return
	}
	if len(list.Responses) > len(s.sess.cfg.Participants)-1 {
		return
	}
	s.Round.ProcessMessage(sender, payload)
}

func (s *BlameResponses8Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
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

	next, err := newVerifyBlameResponses9Stage(s.sess, s.Collected())
	if err != nil {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.Participants, Reason: stage.ReasonMalformedMessage}, true
	}
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// VerifyBlameResponses9Stage is stage 10: the broadcast-verify pair of
// stage 9, and the adjudication of every outstanding complaint. A
// ceremony that reaches this stage always terminates in TransitionError:
// either the accused party's revealed share fails verification (the
// complaint was justified) or it succeeds (the complaint was false) —
// either way, someone is blamed (spec §4.5 "Adjudication").
type VerifyBlameResponses9Stage struct {
	*broadcast.VerifyRound
	sess *session
}

func newVerifyBlameResponses9Stage(sess *session, roundA map[ids.PartyIndex][]byte) (*VerifyBlameResponses9Stage, error) {
	vr, err := broadcast.NewVerifyRound(StageVerifyBlameResponses9, 10, sess.cfg.Participants, sess.cfg.Self, roundA)
	if err != nil {
		return nil, err
	}
	return &VerifyBlameResponses9Stage{VerifyRound: vr, sess: sess}, nil
}

func (s *VerifyBlameResponses9Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}

	consensus, blamed := s.ExtractConsensus()
	if len(blamed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: blamed, Reason: stage.ReasonInconsistentBcast}, true
	}

	responses := make(map[ids.PartyIndex]map[ids.PartyIndex][]byte, len(consensus))
	for accused, raw := range consensus {
		var list blameResponseList
		if err := p2p.Decode(raw, &list); err != nil {
			responses[accused] = nil
			continue
		}
		byComplainer := make(map[ids.PartyIndex][]byte, len(list.Responses))
		for _, e := range list.Responses {
			byComplainer[e.Complainer] = e.Share
		}
		responses[accused] = byComplainer
	}

	offenderSet := make(map[ids.PartyIndex]struct{})
	var reason stage.Reason

	for _, complainer := range s.sess.cfg.Participants {
		for _, accused := range s.sess.complaintConsensus[complainer] {
			raw, ok := responses[accused][complainer]
			valid := false
			if ok {
				share := s.sess.field.ScalarFromBytesModOrder(raw)
				commitments := s.sess.commitmentConsensus[accused]
				valid = shamir.VerifyShare(s.sess.field, share, complainer, commitments)
			}

			if valid {
				offenderSet[complainer] = struct{}{}
				reason = stage.ReasonFalseComplaint
			} else {
				offenderSet[accused] = struct{}{}
				reason = stage.ReasonInvalidShare
			}
		}
	}

	offenders := make([]ids.PartyIndex, 0, len(offenderSet))
	for idx := range offenderSet {
		offenders = append(offenders, idx)
	}
	offenders = sortedPartyIndices(offenders)

	return &stage.Transition{Kind: stage.TransitionError, Offenders: offenders, Reason: reason}, true
}

func sortedPartyIndices(s []ids.PartyIndex) []ids.PartyIndex {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
	return s
}
