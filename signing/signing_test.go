package signing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/keygen"
	"github.com/chainflip-io/multisig-engine/scheme"
	"github.com/chainflip-io/multisig-engine/scheme/bitcoin"
	"github.com/chainflip-io/multisig-engine/stage"
)

// runRound drives a map of party->stage in lockstep rounds (every party
// is assumed to be on the same logical stage index each round, true for
// an honest always-on network) until every party reaches a terminal
// transition.
func runRound(t *testing.T, participants []ids.PartyIndex, stages map[ids.PartyIndex]stage.Stage) map[ids.PartyIndex]stage.Transition {
	t.Helper()
	now := time.Now()
	deadline := now.Add(time.Hour)
	done := make(map[ids.PartyIndex]stage.Transition)
	current := stages

	for len(done) < len(participants) {
		outgoing := make(map[ids.PartyIndex]stage.Outgoing, len(current))
		for p, s := range current {
			out, err := s.Init()
			require.NoError(t, err)
			outgoing[p] = out
		}
		for sender, out := range outgoing {
			for _, recipient := range participants {
				if recipient == sender {
					continue
				}
				rs, active := current[recipient]
				if !active {
					continue
				}
				if out.Broadcast != nil {
					rs.ProcessMessage(sender, out.Broadcast)
				}
				if payload, ok := out.Private[recipient]; ok {
					rs.ProcessMessage(sender, payload)
				}
			}
		}
		next := make(map[ids.PartyIndex]stage.Stage, len(current))
		for p, s := range current {
			transition, ok := s.TryAdvance(now, deadline)
			require.True(t, ok)
			switch transition.Kind {
			case stage.TransitionNextStage:
				next[p] = transition.Next
			case stage.TransitionDone, stage.TransitionError:
				done[p] = *transition
			}
		}
		current = next
	}
	return done
}

func mkParticipants(n int) []ids.PartyIndex {
	out := make([]ids.PartyIndex, n)
	for i := range out {
		out[i] = ids.PartyIndex(i + 1)
	}
	return out
}

func TestSigning_HonestCeremonyProducesVerifiableSignature(t *testing.T) {
	scm := bitcoin.New()
	all := mkParticipants(4)
	threshold := 2

	keygenStages := make(map[ids.PartyIndex]stage.Stage, len(all))
	for _, self := range all {
		stage0, err := keygen.Start(keygen.Config{
			Scheme:        scm,
			Participants:  all,
			Self:          self,
			Threshold:     threshold,
			Context:       []byte("keygen-for-signing-test"),
			StageTimeout:  time.Second,
			MyPubkeyShare: []byte{byte(self)},
		})
		require.NoError(t, err)
		keygenStages[self] = stage0
	}
	keygenResults := runRound(t, all, keygenStages)

	results := make(map[ids.PartyIndex]keygen.Result, len(all))
	for _, p := range all {
		transition := keygenResults[p]
		require.Equal(t, stage.TransitionDone, transition.Kind)
		res, ok := transition.Artifact.(keygen.Result)
		require.True(t, ok)
		results[p] = res
	}

	signers := []ids.PartyIndex{1, 2, 3} // a strict t+1-sized subset, t=2
	y := results[1].KeyShare.Y
	partyKeys := results[1].PartyPublicKeys
	payload := []byte("sign me")

	signingStages := make(map[ids.PartyIndex]stage.Stage, len(signers))
	for _, self := range signers {
		stage0, err := Start(Config{
			Scheme:          scm,
			Xi:              results[self].KeyShare.Xi,
			Y:               y,
			PartyPublicKeys: partyKeys,
			Signers:         signers,
			Self:            self,
			Payload:         payload,
			StageTimeout:    time.Second,
		})
		require.NoError(t, err)
		signingStages[self] = stage0
	}

	signingResults := runRound(t, signers, signingStages)

	var sig scheme.Signature
	for _, p := range signers {
		transition := signingResults[p]
		require.Equal(t, stage.TransitionDone, transition.Kind, "party %d did not finish signing", p)
		res, ok := transition.Artifact.(Result)
		require.True(t, ok)
		if sig == nil {
			sig = res.Signature
		} else {
			require.Equal(t, sig, res.Signature, "every signer must produce the identical aggregate signature")
		}
	}

	// Verify the aggregate signature algebraically: z*G == R + c*Y.
	z, r := decodeBitcoinSignature(t, sig)
	c := scm.BuildChallenge(y, r, payload)
	lhs := scm.Field().ScalarBaseMul(z)
	rhs := r.Add(y.Mul(c))
	require.True(t, lhs.Equal(rhs), "aggregate signature must satisfy the Schnorr verification equation")
}

func decodeBitcoinSignature(t *testing.T, sig []byte) (curve.Scalar, curve.Point) {
	t.Helper()
	field := bitcoin.New().Field()
	// bitcoinScheme.BuildSignature concatenates R.Bytes() || z.Bytes();
	// both secp256k1 point and scalar encodings are 33 and 32 bytes.
	const pointLen = 33
	require.Greater(t, len(sig), pointLen)
	r, err := field.PointFromBytes(sig[:pointLen])
	require.NoError(t, err)
	z := field.ScalarFromBytesModOrder(sig[pointLen:])
	return z, r
}
