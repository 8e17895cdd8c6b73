package keygen

import (
	"time"

	"github.com/chainflip-io/multisig-engine/broadcast"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/stage"
)

// maxPubkeyShareSize bounds the "sanity-size-checked only" pubkey share
// payload of stage 1 (spec §4.5).
const maxPubkeyShareSize = 256

// PubkeyShares0Stage is stage 1: every party publishes their stable
// long-term public key share. Not cryptographically verified here, only
// size-checked (spec §4.5).
type PubkeyShares0Stage struct {
	*broadcast.Round
	sess *session
}

func newPubkeyShares0Stage(sess *session) *PubkeyShares0Stage {
	r := broadcast.NewRound(StagePubkeyShares0, 1, sess.cfg.Participants, sess.cfg.Self, sess.cfg.MyPubkeyShare)
	return &PubkeyShares0Stage{Round: r, sess: sess}
}

func (s *PubkeyShares0Stage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	if len(payload) > maxPubkeyShareSize {
		return // invalid input, discarded silently per spec §4.8
	}
	s.Round.ProcessMessage(sender, payload)
}

func (s *PubkeyShares0Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
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

	s.sess.pubkeyShares = s.Collected()
	next := newHashCommitments1Stage(s.sess)
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}
