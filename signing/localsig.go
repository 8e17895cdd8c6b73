package signing

import (
	"time"

	"github.com/chainflip-io/multisig-engine/broadcast"
	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/p2p"
	"github.com/chainflip-io/multisig-engine/shamir"
	"github.com/chainflip-io/multisig-engine/stage"
)

// LocalSig3Stage is stage 3: every signer computes and broadcasts its
// local response z_i, then zeroizes its nonce pair (spec §4.6).
type LocalSig3Stage struct {
	*broadcast.Round
	sess *session
}

func newLocalSig3Stage(sess *session) *LocalSig3Stage {
	lambda, err := shamir.LagrangeCoefficient(sess.field, sess.cfg.Self, sess.cfg.Signers)
	if err != nil {
		panic(err)
	}

	myCommitment := sess.commitmentConsensus[sess.cfg.Self]
	boundNonceCommitment := myCommitment.D.Add(myCommitment.E.Mul(sess.rho[sess.cfg.Self]))
	nonce := sess.myNonceD.Add(sess.rho[sess.cfg.Self].Mul(sess.myNonceE))
	privateKey := lambda.Mul(sess.cfg.Xi)

	z := sess.cfg.Scheme.BuildResponse(nonce, boundNonceCommitment, privateKey, sess.c)
	sess.myZ = z

	sess.myNonceD.Zeroize()
	sess.myNonceE.Zeroize()
	nonce.Zeroize()
	privateKey.Zeroize()

	payload, encErr := p2p.Encode(zMsg{Z: z.Bytes()})
	if encErr != nil {
		panic(encErr)
	}
	r := broadcast.NewRound(StageLocalSig3, 3, sess.cfg.Signers, sess.cfg.Self, payload)
	return &LocalSig3Stage{Round: r, sess: sess}
}

type zMsg struct {
	Z []byte `cbor:"1,keyasint"`
}

func (s *LocalSig3Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
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

	next, err := newVerifyLocalSigs4Stage(s.sess, s.Collected())
	if err != nil {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.Signers, Reason: stage.ReasonMalformedMessage}, true
	}
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// VerifyLocalSigs4Stage is stage 4: the broadcast-verify pair of stage 3.
// Every signer's response is checked independently; failing signers are
// blamed, otherwise the responses are aggregated into the final
// signature (spec §4.6).
type VerifyLocalSigs4Stage struct {
	*broadcast.VerifyRound
	sess *session
}

func newVerifyLocalSigs4Stage(sess *session, roundA map[ids.PartyIndex][]byte) (*VerifyLocalSigs4Stage, error) {
	vr, err := broadcast.NewVerifyRound(StageVerifyLocalSigs4, 4, sess.cfg.Signers, sess.cfg.Self, roundA)
	if err != nil {
		return nil, err
	}
	return &VerifyLocalSigs4Stage{VerifyRound: vr, sess: sess}, nil
}

func (s *VerifyLocalSigs4Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}

	consensus, blamed := s.ExtractConsensus()
	if len(blamed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: blamed, Reason: stage.ReasonInconsistentBcast}, true
	}

	field := s.sess.field
	scm := s.sess.cfg.Scheme
	responses := make(map[ids.PartyIndex]curve.Scalar, len(consensus))
	var failing []ids.PartyIndex

	for _, j := range s.sess.cfg.Signers {
		raw, ok := consensus[j]
		if !ok {
			failing = append(failing, j)
			continue
		}
		var msg zMsg
		if err := p2p.Decode(raw, &msg); err != nil {
			failing = append(failing, j)
			continue
		}
		z := field.ScalarFromBytesModOrder(msg.Z)

		lambdaJ, err := shamir.LagrangeCoefficient(field, j, s.sess.cfg.Signers)
		if err != nil {
			failing = append(failing, j)
			continue
		}
		yj := s.sess.cfg.PartyPublicKeys[j]
		cj := s.sess.commitmentConsensus[j]
		boundCommitmentJ := cj.D.Add(cj.E.Mul(s.sess.rho[j]))

		if !scm.IsPartyResponseValid(yj, lambdaJ, boundCommitmentJ, s.sess.r, s.sess.c, z) {
			failing = append(failing, j)
			continue
		}
		responses[j] = z
	}

	if len(failing) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: failing, Reason: stage.ReasonInvalidSignature}, true
	}

	z := field.ScalarFromUint64(0)
	for _, j := range s.sess.cfg.Signers {
		z = z.Add(responses[j])
	}
	sig := scm.BuildSignature(z, s.sess.r)

	return &stage.Transition{Kind: stage.TransitionDone, Artifact: Result{Signature: sig}}, true
}
