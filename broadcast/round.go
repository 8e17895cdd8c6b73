package broadcast

import (
	"time"

	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/p2p"
	"github.com/chainflip-io/multisig-engine/stage"
)

// Round is the shared skeleton of a broadcast round-A stage: every party
// sends one payload to every other party. Concrete protocol stages embed
// Round and add protocol-specific transition logic.
type Round struct {
	name         stage.Name
	index        int
	participants []ids.PartyIndex
	self         ids.PartyIndex
	myPayload    []byte
	collector    *stage.Collector
}

// NewRound constructs a round-A broadcast stage.
func NewRound(name stage.Name, index int, participants []ids.PartyIndex, self ids.PartyIndex, myPayload []byte) *Round {
	c := stage.NewCollector(participants)
	c.Put(self, myPayload)
	return &Round{
		name:         name,
		index:        index,
		participants: participants,
		self:         self,
		myPayload:    myPayload,
		collector:    c,
	}
}

func (r *Round) Name() stage.Name { return r.name }
func (r *Round) Index() int       { return r.index }

func (r *Round) Init() (stage.Outgoing, error) {
	return stage.Outgoing{Broadcast: r.myPayload}, nil
}

func (r *Round) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	r.collector.Put(sender, payload)
}

func (r *Round) ShouldDelay(stageIndex int) bool {
	return stageIndex == r.index+1
}

// Complete reports whether every participant has delivered a round-A
// payload (including self).
func (r *Round) Complete() bool { return r.collector.Complete() }

// Missing returns participants that have not yet delivered.
func (r *Round) Missing() []ids.PartyIndex { return r.collector.Missing() }

// Collected returns the full round-A map, keyed by sender.
func (r *Round) Collected() map[ids.PartyIndex][]byte {
	out := make(map[ids.PartyIndex][]byte, len(r.participants))
	for _, p := range r.participants {
		if v, ok := r.collector.Get(p); ok {
			out[p] = v
		}
	}
	return out
}

// VerifyRound is the shared skeleton of a broadcast round-B stage: reveal
// what was received in round A, then extract consensus.
type VerifyRound struct {
	name         stage.Name
	index        int
	participants []ids.PartyIndex
	self         ids.PartyIndex
	threshold    int
	myReport     Report
	collector    *stage.Collector
}

// NewVerifyRound constructs a round-B verify stage from the round-A
// Round's collected map.
func NewVerifyRound(name stage.Name, index int, participants []ids.PartyIndex, self ids.PartyIndex, roundA map[ids.PartyIndex][]byte) (*VerifyRound, error) {
	report := Report(roundA)
	encoded, err := p2p.Encode(report)
	if err != nil {
		return nil, err
	}
	c := stage.NewCollector(participants)
	c.Put(self, encoded)
	return &VerifyRound{
		name:         name,
		index:        index,
		participants: participants,
		self:         self,
		threshold:    stage.Threshold(ids.AuthorityCount(len(participants))),
		myReport:     report,
		collector:    c,
	}, nil
}

func (r *VerifyRound) Name() stage.Name { return r.name }
func (r *VerifyRound) Index() int       { return r.index }

func (r *VerifyRound) Init() (stage.Outgoing, error) {
	encoded, err := p2p.Encode(r.myReport)
	if err != nil {
		return stage.Outgoing{}, err
	}
	return stage.Outgoing{Broadcast: encoded}, nil
}

func (r *VerifyRound) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	r.collector.Put(sender, payload)
}

func (r *VerifyRound) ShouldDelay(stageIndex int) bool {
	return stageIndex == r.index+1
}

func (r *VerifyRound) Complete() bool      { return r.collector.Complete() }
func (r *VerifyRound) Missing() []ids.PartyIndex { return r.collector.Missing() }

// ExtractConsensus decodes every reporter's Report and runs the spec
// §4.3 consensus rule over them.
func (r *VerifyRound) ExtractConsensus() (consensus map[ids.PartyIndex][]byte, blamed []ids.PartyIndex) {
	reports := make(map[ids.PartyIndex]Report, len(r.participants))
	for _, reporter := range r.participants {
		raw, ok := r.collector.Get(reporter)
		if !ok {
			continue
		}
		var rep Report
		if err := p2p.Decode(raw, &rep); err != nil {
			// Malformed round-B report: treat as if this reporter sent
			// nothing (spec §7 "invalid input" never blames, but an
			// unparseable report cannot contribute to consensus either).
			continue
		}
		reports[reporter] = rep
	}
	return ExtractConsensus(r.participants, reports, r.threshold)
}

// Deadline computes this round's absolute deadline from a relative stage
// timeout, per spec §4.4.
func Deadline(now time.Time, timeout time.Duration) time.Time {
	return stage.Deadline(now, timeout)
}
