package ceremony

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/chainflip-io/multisig-engine/config"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/log"
	"github.com/chainflip-io/multisig-engine/metrics"
	"github.com/chainflip-io/multisig-engine/stage"
)

// fakeStage is a minimal two-round stage.Stage: it collects one message
// from every other participant and, once collected, hands control to
// fakeStage2 (or reports TransitionDone directly if next is nil).
type fakeStage struct {
	name         stage.Name
	index        int
	participants []ids.PartyIndex
	self         ids.PartyIndex
	collector    *stage.Collector
	next         stage.Stage
	initCalls    *int
}

func (s *fakeStage) Name() stage.Name { return s.name }
func (s *fakeStage) Index() int       { return s.index }

func (s *fakeStage) Init() (stage.Outgoing, error) {
	if s.initCalls != nil {
		*s.initCalls++
	}
	s.collector = stage.NewCollector(s.participants)
	s.collector.Put(s.self, []byte("hello"))
	return stage.Outgoing{Broadcast: []byte("hello")}, nil
}

func (s *fakeStage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	s.collector.Put(sender, payload)
}

func (s *fakeStage) ShouldDelay(stageIndex int) bool { return stageIndex == s.index+1 }

func (s *fakeStage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.collector.Complete() && now.Before(deadline) {
		return nil, false
	}
	if !s.collector.Complete() {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.collector.Missing(), Reason: stage.ReasonMissingMessage}, true
	}
	if s.next != nil {
		return &stage.Transition{Kind: stage.TransitionNextStage, Next: s.next}, true
	}
	return &stage.Transition{Kind: stage.TransitionDone, Artifact: "done"}, true
}

func TestRunner_AuthorisedCeremonyCompletesAcrossStages(t *testing.T) {
	participants := []ids.PartyIndex{1, 2, 3}
	self := ids.PartyIndex(1)

	stage2InitCalls := 0
	stage2 := &fakeStage{name: "stage2", index: 2, participants: participants, self: self, initCalls: &stage2InitCalls}
	stage1 := &fakeStage{name: "stage1", index: 1, participants: participants, self: self, next: stage2}

	now := time.Now()
	r := NewUnauthorised(42, self, participants, now, time.Minute)
	require.NoError(t, r.StartAuthorised(now, time.Minute, stage1))

	// A stage-2 message from party 3 arrives before this party has even
	// reached stage 2: it must be queued, not dropped or misapplied.
	require.Nil(t, r.ProcessOrDelayMessage(3, 2, []byte("early")))

	// Stage 1 messages from the other two participants complete the
	// collector and the ceremony advances to stage 2, replaying the
	// queued message from party 3.
	require.Nil(t, r.ProcessOrDelayMessage(2, 1, []byte("hi")))
	require.Nil(t, r.ProcessOrDelayMessage(3, 1, []byte("hi")))

	out := r.Tick(now)
	require.Nil(t, out, "stage 1 -> stage 2 transition does not itself finish the ceremony")
	require.Equal(t, 1, stage2InitCalls)

	// Only party 2's stage-2 message is still needed: party 3's was
	// already replayed from the delayed queue.
	require.Nil(t, r.ProcessOrDelayMessage(2, 2, []byte("hi-2")))

	out = r.Tick(now)
	require.NotNil(t, out)
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Equal(t, "done", out.Artifact)
	require.True(t, r.Done())
}

func TestRunner_StageTimeoutBlamesMissingSenders(t *testing.T) {
	participants := []ids.PartyIndex{1, 2, 3}
	self := ids.PartyIndex(1)
	stage1 := &fakeStage{name: "stage1", index: 1, participants: participants, self: self}

	now := time.Now()
	r := NewUnauthorised(7, self, participants, now, time.Minute)
	require.NoError(t, r.StartAuthorised(now, time.Minute, stage1))

	// Only party 2 reports in; party 3 never does.
	require.Nil(t, r.ProcessOrDelayMessage(2, 1, []byte("hi")))

	out := r.Tick(now.Add(2 * time.Minute))
	require.NotNil(t, out)
	require.Equal(t, OutcomeFailure, out.Kind)
	require.Equal(t, stage.ReasonMissingMessage, out.Reason)
	require.Equal(t, []ids.PartyIndex{3}, out.Offenders)
}

func TestRunner_UnauthorisedExpiryBlamesEarlySenders(t *testing.T) {
	participants := []ids.PartyIndex{1, 2, 3}
	self := ids.PartyIndex(1)

	now := time.Now()
	r := NewUnauthorised(9, self, participants, now, time.Minute)

	// Messages arrive before this party's own ceremony has been
	// authorised by the state chain: they are queued, not processed.
	require.Nil(t, r.ProcessOrDelayMessage(2, 1, []byte("too early")))
	require.Nil(t, r.ProcessOrDelayMessage(3, 1, []byte("too early")))

	// A non-participant's message is rejected outright, never blamed.
	require.Nil(t, r.ProcessOrDelayMessage(99, 1, []byte("not a participant")))

	require.Nil(t, r.Tick(now)) // deadline not yet passed

	out := r.Tick(now.Add(2 * time.Minute))
	require.NotNil(t, out)
	require.Equal(t, OutcomeFailure, out.Kind)
	require.Equal(t, stage.ReasonUnauthorisedExpiry, out.Reason)
	require.ElementsMatch(t, []ids.PartyIndex{2, 3}, out.Offenders)
	require.True(t, r.Done())
	require.Nil(t, r.Tick(now.Add(3*time.Minute)), "a done Runner reports no further outcomes")
}

type fakeUpstream struct {
	outcomes map[ids.CeremonyID]Outcome
}

func (u *fakeUpstream) CeremonyFinished(scheme ids.SchemeTag, id ids.CeremonyID, out Outcome) {
	if u.outcomes == nil {
		u.outcomes = make(map[ids.CeremonyID]Outcome)
	}
	u.outcomes[id] = out
}

func TestManager_RejectsDuplicateAuthoriseOfLiveCeremony(t *testing.T) {
	cfg := config.Default()
	upstream := &fakeUpstream{}
	m := NewManager(ids.SchemeBitcoin, 1, cfg, upstream, log.NewNop(), metrics.New(prometheus.NewRegistry()))

	participants := []ids.PartyIndex{1, 2, 3}
	self := ids.PartyIndex(1)
	now := time.Now()

	first := &fakeStage{name: "stage1", index: 1, participants: participants, self: self}
	require.NoError(t, m.Authorise(now, 5, participants, first))
	require.True(t, m.Active(5))

	second := &fakeStage{name: "stage1", index: 1, participants: participants, self: self}
	err := m.Authorise(now, 5, participants, second)
	require.Error(t, err, "a ceremony id already authorised must be rejected")
	require.True(t, m.Active(5), "the original Runner must still own the id after a rejected re-authorisation")
}

func TestManager_ReportsOutcomeUpstreamAndForgetsCeremony(t *testing.T) {
	cfg := config.Default()
	upstream := &fakeUpstream{}
	m := NewManager(ids.SchemeBitcoin, 1, cfg, upstream, log.NewNop(), metrics.New(prometheus.NewRegistry()))

	participants := []ids.PartyIndex{1, 2, 3}
	self := ids.PartyIndex(1)
	now := time.Now()

	stage1 := &fakeStage{name: "stage1", index: 1, participants: participants, self: self}
	require.NoError(t, m.Authorise(now, 11, participants, stage1))

	m.Tick(now.Add(time.Hour)) // past stage deadline with missing senders

	out, ok := upstream.outcomes[11]
	require.True(t, ok, "upstream must be notified once the ceremony finishes")
	require.Equal(t, OutcomeFailure, out.Kind)
	require.False(t, m.Active(11), "a finished ceremony must no longer be tracked by the Manager")
}
