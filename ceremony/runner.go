// Package ceremony implements the Ceremony Runner and Manager of spec
// §4.8 and §4.9: the per-ceremony state machine driver and the
// per-scheme registry that routes incoming P2P and upstream traffic to
// it.
package ceremony

import (
	"time"

	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/stage"
)

// OutcomeKind discriminates a finished ceremony's two possible results.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
)

// Outcome is what a Runner reports exactly once, upstream, on
// completion.
type Outcome struct {
	Kind      OutcomeKind
	Artifact  interface{}
	Offenders []ids.PartyIndex
	Reason    stage.Reason
}

// delayedMessage is a message queued because it belongs to a stage not
// yet reached.
type delayedMessage struct {
	sender     ids.PartyIndex
	stageIndex int
	payload    []byte
}

// runnerPhase discriminates a Runner's two lifecycle states (spec §4.8).
type runnerPhase int

const (
	phaseUnauthorised runnerPhase = iota
	phaseAuthorised
)

// Runner drives a single ceremony's stage machine.
type Runner struct {
	ID           ids.CeremonyID
	Self         ids.PartyIndex
	Participants []ids.PartyIndex

	phase runnerPhase

	// Unauthorised-phase state.
	delayedFirstStage []delayedMessage
	createdAt         time.Time
	unauthorisedDeadline time.Time

	// Authorised-phase state.
	currentStage   stage.Stage
	delayedNext    []delayedMessage
	stageDeadline  time.Time
	stageTimeout   time.Duration

	done   bool
	result *Outcome
}

// NewUnauthorised constructs a Runner that has not yet seen its
// start-authorised request, per spec §4.8.
func NewUnauthorised(id ids.CeremonyID, self ids.PartyIndex, participants []ids.PartyIndex, now time.Time, unauthorisedTimeout time.Duration) *Runner {
	return &Runner{
		ID:                   id,
		Self:                 self,
		Participants:         participants,
		phase:                phaseUnauthorised,
		createdAt:            now,
		unauthorisedDeadline: now.Add(unauthorisedTimeout),
	}
}

func isParticipant(participants []ids.PartyIndex, p ids.PartyIndex) bool {
	for _, x := range participants {
		if x == p {
			return true
		}
	}
	return false
}

// ProcessOrDelayMessage routes one incoming message (spec §4.8). A
// non-participant sender is rejected outright (invalid input, never
// blamed, per spec §7). Returns a non-nil Outcome if the message's
// processing completed the ceremony.
func (r *Runner) ProcessOrDelayMessage(sender ids.PartyIndex, stageIndex int, payload []byte) *Outcome {
	if r.done || !isParticipant(r.Participants, sender) {
		return nil
	}

	if r.phase == phaseUnauthorised {
		if stageIndex == 1 {
			r.delayedFirstStage = append(r.delayedFirstStage, delayedMessage{sender, stageIndex, payload})
		}
		// Any other stage index while unauthorised is discarded.
		return nil
	}

	if stageIndex == r.currentStage.Index() {
		r.currentStage.ProcessMessage(sender, payload)
		return nil
	}
	if r.currentStage.ShouldDelay(stageIndex) {
		r.delayedNext = append(r.delayedNext, delayedMessage{sender, stageIndex, payload})
	}
	// Anything else (a stale or far-future stage index) is discarded.
	return nil
}

// StartAuthorised adopts stage0 as the current stage, replays any
// delayed first-stage messages in arrival order, and sets the stage
// deadline (spec §4.8).
func (r *Runner) StartAuthorised(now time.Time, stageTimeout time.Duration, stage0 stage.Stage) error {
	r.phase = phaseAuthorised
	r.currentStage = stage0
	r.stageTimeout = stageTimeout
	r.stageDeadline = stage.Deadline(now, stageTimeout)

	if _, err := stage0.Init(); err != nil {
		return err
	}

	for _, m := range r.delayedFirstStage {
		if m.stageIndex == stage0.Index() {
			r.currentStage.ProcessMessage(m.sender, m.payload)
		}
	}
	r.delayedFirstStage = nil
	return nil
}

// Tick drives the ceremony forward: in the Authorised phase, forces a
// blamed transition once the stage deadline has passed; in the
// Unauthorised phase, fails with the senders of any delayed messages
// once the unauthorised deadline has passed (spec §4.8).
func (r *Runner) Tick(now time.Time) *Outcome {
	if r.done {
		return nil
	}

	if r.phase == phaseUnauthorised {
		if now.Before(r.unauthorisedDeadline) {
			return nil
		}
		senders := make([]ids.PartyIndex, 0, len(r.delayedFirstStage))
		seen := make(map[ids.PartyIndex]bool)
		for _, m := range r.delayedFirstStage {
			if !seen[m.sender] {
				senders = append(senders, m.sender)
				seen[m.sender] = true
			}
		}
		out := &Outcome{Kind: OutcomeFailure, Offenders: senders, Reason: stage.ReasonUnauthorisedExpiry}
		r.finish(out)
		return out
	}

	transition, ready := r.currentStage.TryAdvance(now, r.stageDeadline)
	if !ready {
		return nil
	}
	return r.applyTransition(now, transition)
}

func (r *Runner) applyTransition(now time.Time, t *stage.Transition) *Outcome {
	switch t.Kind {
	case stage.TransitionDone:
		out := &Outcome{Kind: OutcomeSuccess, Artifact: t.Artifact}
		r.finish(out)
		return out
	case stage.TransitionError:
		out := &Outcome{Kind: OutcomeFailure, Offenders: t.Offenders, Reason: t.Reason}
		r.finish(out)
		return out
	default: // TransitionNextStage
		r.currentStage = t.Next
		r.stageDeadline = stage.Deadline(now, r.stageTimeout)
		if _, err := r.currentStage.Init(); err != nil {
			out := &Outcome{Kind: OutcomeFailure, Offenders: r.Participants, Reason: stage.ReasonMalformedMessage}
			r.finish(out)
			return out
		}

		pending := r.delayedNext
		r.delayedNext = nil
		for _, m := range pending {
			if m.stageIndex == r.currentStage.Index() {
				r.currentStage.ProcessMessage(m.sender, m.payload)
			} else if r.currentStage.ShouldDelay(m.stageIndex) {
				r.delayedNext = append(r.delayedNext, m)
			}
		}
		// A stage that completes immediately from replayed messages
		// advances again on the Manager's next tick; this mirrors
		// spec §5's "Suspension points" note that the stage machine
		// itself is synchronous but a Runner only yields at await
		// boundaries.
		return nil
	}
}

func (r *Runner) finish(out *Outcome) {
	r.done = true
	r.result = out
}

// Done reports whether this Runner has reported its terminal outcome.
func (r *Runner) Done() bool { return r.done }
