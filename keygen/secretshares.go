package keygen

import (
	"time"

	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/p2p"
	"github.com/chainflip-io/multisig-engine/shamir"
	"github.com/chainflip-io/multisig-engine/stage"
)

// shareMsg is the private payload of stage 6: party i's evaluation
// f_i(j), sent only to party j (spec §4.5).
type shareMsg struct {
	Share []byte `cbor:"1,keyasint"`
}

// maxShareWireSize bounds the encoded shareMsg payload: comfortably
// above any supported curve's scalar encoding plus CBOR overhead, so an
// oversized share is rejected before it is even decoded.
const maxShareWireSize = 128

// SecretShares5Stage is stage 6: every party privately sends every other
// party (including itself) its Shamir evaluation at that party's index.
// Unlike the broadcast stages, delivery here is point-to-point and is not
// itself consensus-checked — correctness is established retroactively by
// complaints against the coefficient commitments already agreed in stage
// 5 (spec §4.5).
type SecretShares5Stage struct {
	sess     *session
	received map[ids.PartyIndex]bool
}

func newSecretShares5Stage(sess *session) *SecretShares5Stage {
	self := sess.cfg.Self
	own := sess.myPoly.Evaluate(self)
	sess.receivedShares[self] = own
	sess.sentShares[self] = own

	received := make(map[ids.PartyIndex]bool, len(sess.cfg.Participants))
	received[self] = true

	return &SecretShares5Stage{sess: sess, received: received}
}

func (s *SecretShares5Stage) Name() stage.Name { return StageSecretShares5 }
func (s *SecretShares5Stage) Index() int       { return 6 }

func (s *SecretShares5Stage) Init() (stage.Outgoing, error) {
	out := stage.Outgoing{Private: make(map[ids.PartyIndex][]byte, len(s.sess.cfg.Participants)-1)}
	for _, party := range s.sess.cfg.Participants {
		if party == s.sess.cfg.Self {
			continue
		}
		share := s.sess.myPoly.Evaluate(party)
		s.sess.sentShares[party] = share

		payload, err := p2p.Encode(shareMsg{Share: share.Bytes()})
		if err != nil {
			return stage.Outgoing{}, err
		}
		out.Private[party] = payload
	}
	return out, nil
}

func (s *SecretShares5Stage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	if s.received[sender] {
		return // first message kept, duplicates ignored
	}
	if len(payload) > maxShareWireSize {
		return // oversized, discarded silently
	}

	var msg shareMsg
	if err := p2p.Decode(payload, &msg); err != nil {
		return // malformed: invalid input, discarded silently per spec §7
	}

	share := s.sess.field.ScalarFromBytesModOrder(msg.Share)
	s.sess.receivedShares[sender] = share
	s.received[sender] = true
}

func (s *SecretShares5Stage) ShouldDelay(stageIndex int) bool {
	return stageIndex == s.Index()+1
}

func (s *SecretShares5Stage) missing() []ids.PartyIndex {
	var out []ids.PartyIndex
	for _, p := range s.sess.cfg.Participants {
		if !s.received[p] {
			out = append(out, p)
		}
	}
	return out
}

func (s *SecretShares5Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	missing := s.missing()
	if len(missing) > 0 && now.Before(deadline) {
		return nil, false
	}

	// Parties that never delivered a share are complained against
	// directly, same as a party whose delivered share fails verification
	// (spec §4.5 stage 7 "Complaints").
	complaints := append([]ids.PartyIndex{}, missing...)
	for _, party := range s.sess.cfg.Participants {
		if party == s.sess.cfg.Self {
			continue
		}
		share, ok := s.sess.receivedShares[party]
		if !ok {
			continue // already in complaints via missing()
		}
		commitments := s.sess.commitmentConsensus[party]
		if !shamir.VerifyShare(s.sess.field, share, s.sess.cfg.Self, commitments) {
			complaints = append(complaints, party)
		}
	}

	s.sess.myComplaints = complaints
	next := newComplaints6Stage(s.sess)
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}
