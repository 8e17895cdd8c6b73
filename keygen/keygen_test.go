package keygen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/p2p"
	"github.com/chainflip-io/multisig-engine/scheme/bitcoin"
	"github.com/chainflip-io/multisig-engine/stage"
)

// runToCompletion drives one stage.Stage per party in lockstep rounds: in
// an honest, always-on network every party advances through the same
// stage sequence at the same cadence, so a single Init/exchange/TryAdvance
// round is run for every still-active party before any of them move to
// the next stage (messages are always addressed to the sender's current
// logical round, matching the real P2P envelope's explicit stage index).
func runToCompletion(t *testing.T, participants []ids.PartyIndex, stages map[ids.PartyIndex]stage.Stage) map[ids.PartyIndex]stage.Transition {
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
			require.True(t, ok, "party %d did not complete its round despite full delivery", p)
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

// TestKeygen_CorruptedTransitDoesNotBlameSender corrupts the wire bytes
// of the secret share party 1 sends to party 2 in transit only (not the
// value party 1 actually computed and recorded). Party 2 rightly
// complains, but party 1's stage-9 reveal is the untouched original
// share, which still verifies against its committed polynomial — so the
// complaint is adjudicated false and the complainer, not the sender, is
// blamed (spec §4.5 "Adjudication": only the act of producing an
// unverifiable share is attributable, not transit corruption the
// protocol cannot distinguish from a baseless complaint).
func TestKeygen_CorruptedTransitDoesNotBlameSender(t *testing.T) {
	scm := bitcoin.New()
	participants := mkParticipants(4)
	threshold := 2
	const badSender, victim = ids.PartyIndex(1), ids.PartyIndex(2)

	stages := make(map[ids.PartyIndex]stage.Stage, len(participants))
	for _, self := range participants {
		stage0, err := Start(Config{
			Scheme:        scm,
			Participants:  participants,
			Self:          self,
			Threshold:     threshold,
			Context:       []byte("test-ceremony"),
			StageTimeout:  time.Second,
			MyPubkeyShare: []byte{byte(self)},
		})
		require.NoError(t, err)
		stages[self] = stage0
	}

	now := time.Now()
	deadline := now.Add(time.Hour)
	done := make(map[ids.PartyIndex]stage.Transition)
	current := stages

	for len(done) < len(participants) {
		outgoing := make(map[ids.PartyIndex]stage.Outgoing, len(current))
		for p, s := range current {
			out, err := s.Init()
			require.NoError(t, err)
			if p == badSender && s.Name() == StageSecretShares5 && out.Private != nil {
				if payload, ok := out.Private[victim]; ok {
					out.Private[victim] = append(append([]byte{}, payload...), 0xFF)
				}
			}
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

	for _, p := range participants {
		transition := done[p]
		require.Equal(t, stage.TransitionError, transition.Kind, "party %d should not finish cleanly", p)
		require.Contains(t, transition.Offenders, victim, "the complainer is blamed once the accused share verifies")
		require.NotContains(t, transition.Offenders, badSender)
	}
}

func TestKeygen_HonestCeremonySucceeds(t *testing.T) {
	scm := bitcoin.New()
	participants := mkParticipants(4)
	threshold := 2 // t = ceil(2*4/3) - 1 = 2

	stages := make(map[ids.PartyIndex]stage.Stage, len(participants))
	for _, self := range participants {
		stage0, err := Start(Config{
			Scheme:        scm,
			Participants:  participants,
			Self:          self,
			Threshold:     threshold,
			Context:       []byte("test-ceremony"),
			StageTimeout:  time.Second,
			MyPubkeyShare: []byte{byte(self)},
		})
		require.NoError(t, err)
		stages[self] = stage0
	}

	results := runToCompletion(t, participants, stages)
	require.Len(t, results, len(participants))

	var firstY []byte
	for _, p := range participants {
		transition := results[p]
		require.Equal(t, stage.TransitionDone, transition.Kind, "party %d did not finish successfully", p)
		res, ok := transition.Artifact.(Result)
		require.True(t, ok)
		require.True(t, scm.IsPubkeyCompatible(res.KeyShare.Y))

		if firstY == nil {
			firstY = res.KeyShare.Y.Bytes()
		} else {
			require.Equal(t, firstY, res.KeyShare.Y.Bytes(), "every party must agree on the joint public key")
		}

		// Every party's own public key share must match what every
		// other party reconstructs for it: spot check against the
		// base-point multiplication of its own secret share.
		require.True(t, scm.Field().ScalarBaseMul(res.KeyShare.Xi).Equal(res.PartyPublicKeys[p]))
	}
}

// TestKeygen_OutOfSetComplaintBlamesOnlyComplainer has party 1 lodge a
// stage-7 complaint against a party index that was never part of the
// ceremony. Every honest party must reject that entry at consensus-
// extraction time and blame only the complainer, never carrying the
// bogus index into the reported offender set.
func TestKeygen_OutOfSetComplaintBlamesOnlyComplainer(t *testing.T) {
	scm := bitcoin.New()
	participants := mkParticipants(4)
	threshold := 2
	const complainer, bogus = ids.PartyIndex(1), ids.PartyIndex(99)

	stages := make(map[ids.PartyIndex]stage.Stage, len(participants))
	for _, self := range participants {
		stage0, err := Start(Config{
			Scheme:        scm,
			Participants:  participants,
			Self:          self,
			Threshold:     threshold,
			Context:       []byte("test-ceremony"),
			StageTimeout:  time.Second,
			MyPubkeyShare: []byte{byte(self)},
		})
		require.NoError(t, err)
		stages[self] = stage0
	}

	now := time.Now()
	deadline := now.Add(time.Hour)
	done := make(map[ids.PartyIndex]stage.Transition)
	current := stages

	for len(done) < len(participants) {
		outgoing := make(map[ids.PartyIndex]stage.Outgoing, len(current))
		for p, s := range current {
			out, err := s.Init()
			require.NoError(t, err)
			if p == complainer && s.Name() == StageComplaints6 {
				payload, err := p2p.Encode(complaintList{Against: []ids.PartyIndex{bogus}})
				require.NoError(t, err)
				out.Broadcast = payload
			}
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

	for _, p := range participants {
		transition := done[p]
		require.Equal(t, stage.TransitionError, transition.Kind, "party %d should not finish cleanly", p)
		require.Equal(t, stage.ReasonInvalidComplaint, transition.Reason)
		require.Equal(t, []ids.PartyIndex{complainer}, transition.Offenders)
	}
}

// TestCoefficientCommitments3Stage_RejectsOversizedVector confirms the
// size-validation pre-filter: a commitment vector with more points than
// the agreed threshold allows is never collected, not even decoded into
// curve points.
func TestCoefficientCommitments3Stage_RejectsOversizedVector(t *testing.T) {
	scm := bitcoin.New()
	threshold := 2

	sess, err := newSession(Config{
		Scheme:       scm,
		Participants: mkParticipants(4),
		Self:         1,
		Threshold:    threshold,
		Context:      []byte("test-ceremony"),
		StageTimeout: time.Second,
	})
	require.NoError(t, err)
	sess.myCommitmentsBytes = make([][]byte, threshold+1)
	for i := range sess.myCommitmentsBytes {
		sess.myCommitmentsBytes[i] = []byte{byte(i)}
	}

	s := newCoefficientCommitments3Stage(sess)

	oversized := make([][]byte, threshold+2)
	for i := range oversized {
		oversized[i] = []byte{byte(i)}
	}
	payload, err := p2p.Encode(commitmentList{Points: oversized})
	require.NoError(t, err)

	const sender = ids.PartyIndex(2)
	s.ProcessMessage(sender, payload)

	_, collected := s.Collected()[sender]
	require.False(t, collected, "an oversized commitment vector must never be collected")
	require.Contains(t, s.Missing(), sender)
}
