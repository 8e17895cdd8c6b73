// Package stage implements the generic stage machine of spec §4.4: an
// ordered sequence of broadcast stages with message collection, timeout,
// and transition, shared by the keygen, signing, and resharing protocols.
package stage

import (
	"time"

	"github.com/chainflip-io/multisig-engine/ids"
)

// Name labels the current stage of a ceremony (KeygenStageName,
// SigningStageName, etc. are concrete string values of this type defined
// by each protocol package).
type Name string

// Reason is a human-readable blame reason, attached to every offender
// report for slashing-evidence audit (restored from
// original_source/engine/src/multisig/client/common.rs, which tags every
// blame with a reason string).
type Reason string

const (
	ReasonMissingMessage     Reason = "missing message"
	ReasonInconsistentBcast  Reason = "inconsistent broadcast"
	ReasonInvalidShare       Reason = "invalid secret share"
	ReasonInvalidComplaint   Reason = "invalid complaint"
	ReasonFalseComplaint     Reason = "false complaint"
	ReasonInvalidSignature   Reason = "invalid local signature share"
	ReasonMalformedMessage   Reason = "malformed message"
	ReasonStageTimeout       Reason = "stage timeout"
	ReasonUnauthorisedExpiry Reason = "unauthorised ceremony timeout"
)

// TransitionKind discriminates the three outcomes try_advance can produce.
type TransitionKind int

const (
	TransitionNextStage TransitionKind = iota
	TransitionDone
	TransitionError
)

// Transition is the result of try_advance, per spec §4.4.
type Transition struct {
	Kind      TransitionKind
	Next      Stage       // valid when Kind == TransitionNextStage
	Artifact  interface{} // valid when Kind == TransitionDone
	Offenders []ids.PartyIndex
	Reason    Reason
}

// Outgoing is what Init returns: either one payload broadcast to every
// other participant, or a map of distinct payloads per recipient (used by
// the keygen SecretShares5 stage, spec §4.5).
type Outgoing struct {
	Broadcast []byte
	Private   map[ids.PartyIndex][]byte
}

// IsEmpty reports whether this stage has nothing to send (only valid for
// stages that are pure local computation, which this engine has none of,
// kept for completeness of the interface).
func (o Outgoing) IsEmpty() bool {
	return o.Broadcast == nil && len(o.Private) == 0
}

// Stage is the interface every concrete protocol round implements (spec
// §4.4).
type Stage interface {
	// Name identifies this stage for logging and wire tagging.
	Name() Name

	// Index is this stage's 1-based position in the protocol's ordered
	// stage sequence, used to decide ShouldDelay.
	Index() int

	// Init is called exactly once on entry and returns this stage's
	// outgoing traffic.
	Init() (Outgoing, error)

	// ProcessMessage routes a message into the stage's collector. It is
	// the caller's responsibility (the Ceremony Runner) to have already
	// filtered out non-participants and wrong-ceremony messages;
	// ProcessMessage itself ignores duplicates from the same sender
	// (the first is kept, spec §3.5 invariant 4) and malformed payloads
	// (spec §7 "invalid input").
	ProcessMessage(sender ids.PartyIndex, payload []byte)

	// TryAdvance reports a transition if every expected party has
	// delivered, or if deadline has passed (now >= deadline).
	TryAdvance(now time.Time, deadline time.Time) (*Transition, bool)

	// ShouldDelay reports whether an incoming message addressed to
	// stageIndex belongs to the stage immediately following this one,
	// and so must be queued rather than processed or dropped.
	ShouldDelay(stageIndex int) bool
}

// Collector tracks, per expected party index, an optionally-decoded
// payload; every expected index starts mapped to nil (spec §3.4
// "StageCollector").
type Collector struct {
	expected map[ids.PartyIndex]struct{}
	received map[ids.PartyIndex][]byte
	order    []ids.PartyIndex
}

// NewCollector seeds a Collector with every expected party index mapped
// to "not yet received".
func NewCollector(expected []ids.PartyIndex) *Collector {
	c := &Collector{
		expected: make(map[ids.PartyIndex]struct{}, len(expected)),
		received: make(map[ids.PartyIndex][]byte, len(expected)),
	}
	for _, idx := range expected {
		c.expected[idx] = struct{}{}
	}
	return c
}

// Put records sender's payload, ignoring non-participants and duplicates
// (the first delivery for a sender within a stage is kept, per spec §3.5
// invariant 4).
func (c *Collector) Put(sender ids.PartyIndex, payload []byte) (accepted bool) {
	if _, expected := c.expected[sender]; !expected {
		return false
	}
	if _, already := c.received[sender]; already {
		return false
	}
	c.received[sender] = payload
	c.order = append(c.order, sender)
	return true
}

// Get returns sender's payload and whether it has been received.
func (c *Collector) Get(sender ids.PartyIndex) ([]byte, bool) {
	p, ok := c.received[sender]
	return p, ok
}

// Complete reports whether every expected party has delivered.
func (c *Collector) Complete() bool {
	return len(c.received) == len(c.expected)
}

// Missing returns the expected parties that have not yet delivered, in
// ascending order.
func (c *Collector) Missing() []ids.PartyIndex {
	var missing []ids.PartyIndex
	for idx := range c.expected {
		if _, ok := c.received[idx]; !ok {
			missing = append(missing, idx)
		}
	}
	sortIndices(missing)
	return missing
}

// Received returns the parties that have delivered, in arrival order
// (stable, for replay of delayed messages per spec §4.8).
func (c *Collector) Received() []ids.PartyIndex {
	return append([]ids.PartyIndex(nil), c.order...)
}

func sortIndices(s []ids.PartyIndex) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Threshold is ceil(2N/3), the consensus bar used throughout broadcast
// verification (spec §4.3).
func Threshold(n ids.AuthorityCount) int {
	return (2*int(n) + 2) / 3
}

// Deadline returns now+stageTimeout, the per-stage wall-clock deadline of
// spec §4.4.
func Deadline(now time.Time, stageTimeout time.Duration) time.Time {
	return now.Add(stageTimeout)
}
