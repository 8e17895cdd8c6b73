// Package dispatch wires statechain.Dispatcher requests into concrete
// keygen/signing/resharing ceremonies, routed through one Ceremony
// Manager per scheme and persisted in the key database. It is the
// concrete implementation cmd/engine builds and hands to the (excluded)
// state-chain RPC client.
package dispatch

import (
	"fmt"
	"math"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/chainflip-io/multisig-engine/ceremony"
	"github.com/chainflip-io/multisig-engine/config"
	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/keydb"
	"github.com/chainflip-io/multisig-engine/keygen"
	"github.com/chainflip-io/multisig-engine/log"
	"github.com/chainflip-io/multisig-engine/metrics"
	"github.com/chainflip-io/multisig-engine/resharing"
	"github.com/chainflip-io/multisig-engine/scheme"
	"github.com/chainflip-io/multisig-engine/signing"
	"github.com/chainflip-io/multisig-engine/statechain"
)

// storedKey is the keydb-persisted form of a keygen.Result, scoped to
// this party's own share (spec §6.3 — each node only ever persists its
// own x_i, never another party's).
type storedKey struct {
	Participants    []ids.ValidatorID
	Threshold       int
	Xi              []byte
	Y               []byte
	PartyPublicKeys map[uint32][]byte
}

// Engine implements statechain.Dispatcher, holding one Ceremony Manager
// per enabled scheme plus the shared key database.
type Engine struct {
	self     ids.ValidatorID
	schemes  map[ids.SchemeTag]scheme.Scheme
	managers map[ids.SchemeTag]*ceremony.Manager
	store    *keydb.Store
	log      *log.Logger
	cfg      config.Config
}

// New builds an Engine with a Manager for every scheme in schemes.
func New(self ids.ValidatorID, schemes map[ids.SchemeTag]scheme.Scheme, cfg config.Config, upstream ceremony.Upstream, logger *log.Logger, m *metrics.Metrics, store *keydb.Store) (*Engine, error) {
	e := &Engine{
		self:     self,
		schemes:  schemes,
		managers: make(map[ids.SchemeTag]*ceremony.Manager, len(schemes)),
		store:    store,
		log:      logger,
		cfg:      cfg,
	}
	for tag := range schemes {
		// Runner.Self is resolved fresh per ceremony from that ceremony's
		// own participant mapping (see StartKeygen/StartSigning/
		// StartResharing); the Manager-level value is never read once a
		// ceremony has its own Runner.
		e.managers[tag] = ceremony.NewManager(tag, ids.PartyIndex(0), cfg, upstream, logger, m)
	}
	return e, nil
}

// Manager returns the Manager owning tag, for P2P message routing.
func (e *Engine) Manager(tag ids.SchemeTag) (*ceremony.Manager, bool) {
	mgr, ok := e.managers[tag]
	return mgr, ok
}

func thresholdFor(n int) int {
	return int(math.Ceil(2*float64(n)/3)) - 1
}

// StartKeygen implements statechain.Dispatcher.
func (e *Engine) StartKeygen(req statechain.StartKeygenRequest) error {
	scm, ok := e.schemes[req.Scheme]
	if !ok {
		return fmt.Errorf("dispatch: scheme %s is not enabled", req.Scheme)
	}
	mapping := ids.NewIndexMapping(req.Participants)
	selfIdx, ok := mapping.IndexOf(e.self)
	if !ok {
		return fmt.Errorf("dispatch: this party is not a participant in ceremony %d", req.CeremonyID)
	}

	participants := make([]ids.PartyIndex, mapping.Count())
	for i := range participants {
		participants[i] = ids.PartyIndex(i + 1)
	}

	stage0, err := keygen.Start(keygen.Config{
		Scheme:       scm,
		Participants: participants,
		Self:         selfIdx,
		Threshold:    thresholdFor(len(participants)),
		Context:      ceremonyContext(req.Scheme, req.CeremonyID),
		StageTimeout: e.stageTimeout(),
	})
	if err != nil {
		return fmt.Errorf("dispatch: starting keygen ceremony %d: %w", req.CeremonyID, err)
	}

	mgr, ok := e.managers[req.Scheme]
	if !ok {
		return fmt.Errorf("dispatch: no manager for scheme %s", req.Scheme)
	}
	return mgr.Authorise(nowFunc(), req.CeremonyID, participants, stage0)
}

// StartSigning implements statechain.Dispatcher, loading this party's
// persisted share for keyID before starting the ceremony.
func (e *Engine) StartSigning(req statechain.StartSigningRequest) error {
	scm, ok := e.schemes[req.Scheme]
	if !ok {
		return fmt.Errorf("dispatch: scheme %s is not enabled", req.Scheme)
	}
	key, err := e.loadKey(uint16(req.Scheme), req.KeyID)
	if err != nil {
		return fmt.Errorf("dispatch: loading key %d: %w", req.KeyID, err)
	}

	mapping := ids.NewIndexMapping(key.Participants)
	selfIdx, ok := mapping.IndexOf(e.self)
	if !ok {
		return fmt.Errorf("dispatch: this party does not hold a share of key %d", req.KeyID)
	}

	signers := make([]ids.PartyIndex, 0, len(req.Signers))
	for _, v := range req.Signers {
		idx, ok := mapping.IndexOf(v)
		if !ok {
			return fmt.Errorf("dispatch: signer %s is not a holder of key %d", v, req.KeyID)
		}
		signers = append(signers, idx)
	}

	field := scm.Field()
	xi := field.ScalarFromBytesModOrder(key.Xi)
	y, err := field.PointFromBytes(key.Y)
	if err != nil {
		return fmt.Errorf("dispatch: decoding group key: %w", err)
	}
	partyKeys := make(map[ids.PartyIndex]curve.Point, len(key.PartyPublicKeys))
	for idx, b := range key.PartyPublicKeys {
		p, err := field.PointFromBytes(b)
		if err != nil {
			return fmt.Errorf("dispatch: decoding party key %d: %w", idx, err)
		}
		partyKeys[ids.PartyIndex(idx)] = p
	}

	stage0, err := signing.Start(signing.Config{
		Scheme:          scm,
		Xi:              xi,
		Y:               y,
		PartyPublicKeys: partyKeys,
		Signers:         signers,
		Self:            selfIdx,
		Payload:         req.Payload,
		StageTimeout:    e.stageTimeout(),
	})
	if err != nil {
		return fmt.Errorf("dispatch: starting signing ceremony %d: %w", req.CeremonyID, err)
	}

	mgr, ok := e.managers[req.Scheme]
	if !ok {
		return fmt.Errorf("dispatch: no manager for scheme %s", req.Scheme)
	}
	return mgr.Authorise(nowFunc(), req.CeremonyID, signers, stage0)
}

// StartResharing implements statechain.Dispatcher.
func (e *Engine) StartResharing(req statechain.StartResharingRequest) error {
	scm, ok := e.schemes[req.Scheme]
	if !ok {
		return fmt.Errorf("dispatch: scheme %s is not enabled", req.Scheme)
	}
	key, err := e.loadKey(uint16(req.Scheme), req.KeyID)
	if err != nil {
		return fmt.Errorf("dispatch: loading key %d: %w", req.KeyID, err)
	}

	all := append(append([]ids.ValidatorID{}, req.Sharing...), req.Receiving...)
	mapping := ids.NewIndexMapping(all)
	selfIdx, ok := mapping.IndexOf(e.self)
	if !ok {
		return fmt.Errorf("dispatch: this party is not part of resharing ceremony %d", req.CeremonyID)
	}

	toIndices := func(vs []ids.ValidatorID) []ids.PartyIndex {
		out := make([]ids.PartyIndex, 0, len(vs))
		for _, v := range vs {
			if idx, ok := mapping.IndexOf(v); ok {
				out = append(out, idx)
			}
		}
		return out
	}
	allParties := make([]ids.PartyIndex, mapping.Count())
	for i := range allParties {
		allParties[i] = ids.PartyIndex(i + 1)
	}

	oldMapping := ids.NewIndexMapping(key.Participants)
	oldSigners := make([]ids.PartyIndex, oldMapping.Count())
	for i := range oldSigners {
		oldSigners[i] = ids.PartyIndex(i + 1)
	}

	field := scm.Field()
	y, err := field.PointFromBytes(key.Y)
	if err != nil {
		return fmt.Errorf("dispatch: decoding group key: %w", err)
	}

	status := resharing.ParticipantStatus{Role: resharing.RoleNonSharing}
	sharingSet := map[ids.ValidatorID]bool{}
	for _, v := range req.Sharing {
		sharingSet[v] = true
	}
	if sharingSet[e.self] {
		if _, ok := oldMapping.IndexOf(e.self); !ok {
			return fmt.Errorf("dispatch: sharing party %s held no share of key %d", e.self, req.KeyID)
		}
		xi := field.ScalarFromBytesModOrder(key.Xi)
		status = resharing.ParticipantStatus{Role: resharing.RoleSharing, SecretShare: xi}
	}

	stage0, err := resharing.Start(resharing.Config{
		Scheme:       scm,
		AllParties:   allParties,
		Sharing:      toIndices(req.Sharing),
		Receiving:    toIndices(req.Receiving),
		OldSignerSet: oldSigners,
		Self:         selfIdx,
		Status:       status,
		Threshold:    thresholdFor(len(req.Receiving)),
		OldPublicKey: y,
		Context:      ceremonyContext(req.Scheme, req.CeremonyID),
		StageTimeout: e.stageTimeout(),
	})
	if err != nil {
		return fmt.Errorf("dispatch: starting resharing ceremony %d: %w", req.CeremonyID, err)
	}

	mgr, ok := e.managers[req.Scheme]
	if !ok {
		return fmt.Errorf("dispatch: no manager for scheme %s", req.Scheme)
	}
	return mgr.Authorise(nowFunc(), req.CeremonyID, allParties, stage0)
}

// PersistKeygenResult writes a finished keygen's own share to the key
// database, keyed by keyID (assigned by the state chain once it accepts
// the new public key).
func (e *Engine) PersistKeygenResult(schemeTag ids.SchemeTag, keyID uint64, participants []ids.ValidatorID, threshold int, res keygen.Result, self ids.PartyIndex) error {
	pub := make(map[uint32][]byte, len(res.PartyPublicKeys))
	for idx, p := range res.PartyPublicKeys {
		pub[uint32(idx)] = p.Bytes()
	}
	sk := storedKey{
		Participants:    participants,
		Threshold:       threshold,
		Xi:              res.KeyShare.Xi.Bytes(),
		Y:               res.KeyShare.Y.Bytes(),
		PartyPublicKeys: pub,
	}
	data, err := cbor.Marshal(sk)
	if err != nil {
		return fmt.Errorf("dispatch: encoding key %d: %w", keyID, err)
	}
	return e.store.Put(uint16(schemeTag), keyID, data)
}

func (e *Engine) loadKey(schemeTag uint16, keyID uint64) (storedKey, error) {
	data, err := e.store.Get(schemeTag, keyID)
	if err != nil {
		return storedKey{}, err
	}
	var sk storedKey
	if err := cbor.Unmarshal(data, &sk); err != nil {
		return storedKey{}, fmt.Errorf("dispatch: decoding key %d: %w", keyID, err)
	}
	return sk, nil
}

func (e *Engine) stageTimeout() time.Duration {
	return e.cfg.StageTimeout
}

func ceremonyContext(s ids.SchemeTag, id ids.CeremonyID) []byte {
	return []byte(fmt.Sprintf("%s:%d", s, id))
}

// nowFunc is a seam for deterministic testing; production callers always
// get time.Now.
var nowFunc = time.Now
