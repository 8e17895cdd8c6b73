package ceremony

import (
	"fmt"
	"time"

	"github.com/chainflip-io/multisig-engine/config"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/log"
	"github.com/chainflip-io/multisig-engine/metrics"
	"github.com/chainflip-io/multisig-engine/p2p"
	"github.com/chainflip-io/multisig-engine/stage"
)

// Upstream is the boundary the Manager reports finished ceremonies to
// (the state-chain client, spec §6.1) — out of this module's scope
// beyond this interface.
type Upstream interface {
	CeremonyFinished(scheme ids.SchemeTag, id ids.CeremonyID, out Outcome)
}

// Manager owns every in-flight ceremony for one scheme, keyed by
// ceremony id (spec §4.9).
type Manager struct {
	scheme ids.SchemeTag
	self   ids.PartyIndex

	runners map[ids.CeremonyID]*Runner

	cfg      config.Config
	upstream Upstream
	log      *log.Logger
	metrics  *metrics.Metrics
}

// NewManager constructs an empty Manager for one scheme.
func NewManager(scheme ids.SchemeTag, self ids.PartyIndex, cfg config.Config, upstream Upstream, logger *log.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		scheme:   scheme,
		self:     self,
		runners:  make(map[ids.CeremonyID]*Runner),
		cfg:      cfg,
		upstream: upstream,
		log:      logger,
		metrics:  m,
	}
}

// OnP2PMessage routes an incoming ceremony message (spec §4.9): if no
// Runner owns this ceremony id yet, an Unauthorised one is created.
func (m *Manager) OnP2PMessage(now time.Time, sender ids.PartyIndex, env p2p.Envelope, participants []ids.PartyIndex) {
	r, ok := m.runners[env.CeremonyID]
	if !ok {
		r = NewUnauthorised(env.CeremonyID, m.self, participants, now, m.cfg.UnauthorisedTimeout)
		m.runners[env.CeremonyID] = r
		m.metrics.LiveCeremonies.WithLabelValues(m.scheme.String()).Inc()
	}

	out := r.ProcessOrDelayMessage(sender, int(env.StageIndex), env.Payload)
	m.report(env.CeremonyID, out)
}

// Authorise transitions ceremony id to Authorised with stage0, creating
// the Runner if an Unauthorised one does not already exist. Per the
// ceremony-id collision guard (spec §3.5's uniqueness invariant,
// restored from the ceremony runner's duplicate-request rejection
// tests), a request naming an id that is already Authorised is rejected.
func (m *Manager) Authorise(now time.Time, id ids.CeremonyID, participants []ids.PartyIndex, stage0 stage.Stage) error {
	r, ok := m.runners[id]
	if !ok {
		r = NewUnauthorised(id, m.self, participants, now, m.cfg.UnauthorisedTimeout)
		m.runners[id] = r
		m.metrics.LiveCeremonies.WithLabelValues(m.scheme.String()).Inc()
	} else if r.phase == phaseAuthorised {
		return fmt.Errorf("ceremony: id %d already authorised", id)
	}

	m.metrics.CeremoniesStarted.WithLabelValues(m.scheme.String(), "ceremony").Inc()
	if err := r.StartAuthorised(now, m.cfg.StageTimeout, stage0); err != nil {
		delete(m.runners, id)
		return err
	}
	return nil
}

// Tick drives every owned Runner's timeout logic and forwards any
// outcome upstream (spec §4.9's "background tick").
func (m *Manager) Tick(now time.Time) {
	for id, r := range m.runners {
		out := r.Tick(now)
		m.report(id, out)
	}
}

func (m *Manager) report(id ids.CeremonyID, out *Outcome) {
	if out == nil {
		return
	}
	delete(m.runners, id)
	m.metrics.LiveCeremonies.WithLabelValues(m.scheme.String()).Dec()

	switch out.Kind {
	case OutcomeSuccess:
		m.metrics.CeremoniesSucceeded.WithLabelValues(m.scheme.String(), "ceremony").Inc()
		m.log.Info("ceremony succeeded", "scheme", m.scheme.String(), "ceremony_id", id)
	case OutcomeFailure:
		m.metrics.CeremoniesFailed.WithLabelValues(m.scheme.String(), "ceremony", string(out.Reason)).Inc()
		m.log.Warn("ceremony failed", "scheme", m.scheme.String(), "ceremony_id", id, "offenders", out.Offenders, "reason", out.Reason)
	}
	m.upstream.CeremonyFinished(m.scheme, id, *out)
}

// Active reports whether id is currently owned by this Manager.
func (m *Manager) Active(id ids.CeremonyID) bool {
	_, ok := m.runners[id]
	return ok
}
