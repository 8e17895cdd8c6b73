package resharing

import (
	"sort"
	"time"

	"github.com/chainflip-io/multisig-engine/broadcast"
	"github.com/chainflip-io/multisig-engine/commitment"
	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/p2p"
	"github.com/chainflip-io/multisig-engine/shamir"
	"github.com/chainflip-io/multisig-engine/stage"
)

type commitmentList struct {
	Points [][]byte `cbor:"1,keyasint"`
}

// HashCommitments1Stage broadcasts H(coefficient_commitments_i, context)
// over the union of sharing and receiving parties (spec §4.7's reuse of
// the DKG commit-then-reveal stages).
type HashCommitments1Stage struct {
	*broadcast.Round
	sess *session
}

func newHashCommitments1Stage(sess *session) *HashCommitments1Stage {
	points := shamir.CommitCoefficients(sess.field, sess.myPoly)
	sess.myCommitmentPoints = points

	bytesOut := make([][]byte, len(points))
	for i, p := range points {
		bytesOut[i] = p.Bytes()
	}
	sess.myCommitmentsBytes = bytesOut
	sess.myHash = commitment.CommitPoints(commitment.TagCoefficientCommitments, sess.cfg.Context, points)

	r := broadcast.NewRound(StageHashCommitments1, 1, sess.cfg.AllParties, sess.cfg.Self, sess.myHash[:])
	return &HashCommitments1Stage{Round: r, sess: sess}
}

func (s *HashCommitments1Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}
	if !s.Complete() {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.Missing(), Reason: stage.ReasonMissingMessage}, true
	}
	next, err := newVerifyHashCommitments2Stage(s.sess, s.Collected())
	if err != nil {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.AllParties, Reason: stage.ReasonMalformedMessage}, true
	}
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// VerifyHashCommitments2Stage is the broadcast-verify pair of stage 1.
type VerifyHashCommitments2Stage struct {
	*broadcast.VerifyRound
	sess *session
}

func newVerifyHashCommitments2Stage(sess *session, roundA map[ids.PartyIndex][]byte) (*VerifyHashCommitments2Stage, error) {
	vr, err := broadcast.NewVerifyRound(StageVerifyHashCommitments2, 2, sess.cfg.AllParties, sess.cfg.Self, roundA)
	if err != nil {
		return nil, err
	}
	return &VerifyHashCommitments2Stage{VerifyRound: vr, sess: sess}, nil
}

func (s *VerifyHashCommitments2Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}
	consensus, blamed := s.ExtractConsensus()
	if len(blamed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: blamed, Reason: stage.ReasonInconsistentBcast}, true
	}
	hashConsensus := make(map[ids.PartyIndex]commitment.Digest, len(consensus))
	for party, digest := range consensus {
		if len(digest) != 32 {
			return &stage.Transition{Kind: stage.TransitionError, Offenders: []ids.PartyIndex{party}, Reason: stage.ReasonMalformedMessage}, true
		}
		var d commitment.Digest
		copy(d[:], digest)
		hashConsensus[party] = d
	}
	s.sess.hashConsensus = hashConsensus

	next := newCoefficientCommitments3Stage(s.sess)
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// CoefficientCommitments3Stage reveals the committed coefficient points.
type CoefficientCommitments3Stage struct {
	*broadcast.Round
	sess *session
}

func newCoefficientCommitments3Stage(sess *session) *CoefficientCommitments3Stage {
	payload, err := p2p.Encode(commitmentList{Points: sess.myCommitmentsBytes})
	if err != nil {
		panic(err)
	}
	r := broadcast.NewRound(StageCoefficientCommitments3, 3, sess.cfg.AllParties, sess.cfg.Self, payload)
	return &CoefficientCommitments3Stage{Round: r, sess: sess}
}

// ProcessMessage size-validates the commitment vector's point count
// against the agreed threshold before it is ever collected, so an
// oversized vector is discarded without paying for point decompression.
func (s *CoefficientCommitments3Stage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	var list commitmentList
	if err := p2p.Decode(payload, &list); err != nil {
		return
	}
	if len(list.Points) != s.sess.cfg.Threshold+1 {
		return
	}
	s.Round.ProcessMessage(sender, payload)
}

func (s *CoefficientCommitments3Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}
	if !s.Complete() {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.Missing(), Reason: stage.ReasonMissingMessage}, true
	}
	next, err := newVerifyCommitmentsBcast4Stage(s.sess, s.Collected())
	if err != nil {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.AllParties, Reason: stage.ReasonMalformedMessage}, true
	}
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// VerifyCommitmentsBcast4Stage is the broadcast-verify pair of stage 3,
// plus the hash-commitment cross-check of stage 2's consensus.
type VerifyCommitmentsBcast4Stage struct {
	*broadcast.VerifyRound
	sess *session
}

func newVerifyCommitmentsBcast4Stage(sess *session, roundA map[ids.PartyIndex][]byte) (*VerifyCommitmentsBcast4Stage, error) {
	vr, err := broadcast.NewVerifyRound(StageVerifyCommitmentsBcast4, 4, sess.cfg.AllParties, sess.cfg.Self, roundA)
	if err != nil {
		return nil, err
	}
	return &VerifyCommitmentsBcast4Stage{VerifyRound: vr, sess: sess}, nil
}

func (s *VerifyCommitmentsBcast4Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}
	consensus, blamed := s.ExtractConsensus()
	if len(blamed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: blamed, Reason: stage.ReasonInconsistentBcast}, true
	}

	field := s.sess.field
	commitments := make(map[ids.PartyIndex][]curve.Point, len(consensus))
	var mismatched []ids.PartyIndex

	for _, party := range s.sess.cfg.AllParties {
		raw, ok := consensus[party]
		if !ok {
			mismatched = append(mismatched, party)
			continue
		}
		var list commitmentList
		if err := p2p.Decode(raw, &list); err != nil {
			mismatched = append(mismatched, party)
			continue
		}
		points := make([]curve.Point, len(list.Points))
		ok2 := true
		for i, b := range list.Points {
			p, err := field.PointFromBytes(b)
			if err != nil {
				ok2 = false
				break
			}
			points[i] = p
		}
		if !ok2 {
			mismatched = append(mismatched, party)
			continue
		}
		gotHash := commitment.CommitPoints(commitment.TagCoefficientCommitments, s.sess.cfg.Context, points)
		wantHash, ok := s.sess.hashConsensus[party]
		if !ok || gotHash != wantHash {
			mismatched = append(mismatched, party)
			continue
		}
		commitments[party] = points
	}

	if len(mismatched) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: mismatched, Reason: stage.ReasonInconsistentBcast}, true
	}

	s.sess.commitmentConsensus = commitments
	next := newSecretShares5Stage(s.sess)
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

type shareMsg struct {
	Share []byte `cbor:"1,keyasint"`
}

// maxShareWireSize bounds the encoded shareMsg payload: comfortably
// above any supported curve's scalar encoding plus CBOR overhead, so an
// oversized share is rejected before it is even decoded.
const maxShareWireSize = 128

// SecretShares5Stage privately sends every contributor's evaluation to
// every receiving party only (spec §4.7: "each receiving party sums the
// received shares"). A party outside Receiving has nothing to collect
// and passes through immediately.
type SecretShares5Stage struct {
	sess     *session
	received map[ids.PartyIndex]bool
}

func newSecretShares5Stage(sess *session) *SecretShares5Stage {
	received := make(map[ids.PartyIndex]bool, len(sess.cfg.AllParties))
	if sess.isReceiving {
		own := sess.myPoly.Evaluate(sess.cfg.Self)
		sess.receivedShares[sess.cfg.Self] = own
		sess.sentShares[sess.cfg.Self] = own
		received[sess.cfg.Self] = true
	}
	return &SecretShares5Stage{sess: sess, received: received}
}

func (s *SecretShares5Stage) Name() stage.Name { return StageSecretShares5 }
func (s *SecretShares5Stage) Index() int       { return 5 }

func (s *SecretShares5Stage) Init() (stage.Outgoing, error) {
	out := stage.Outgoing{Private: make(map[ids.PartyIndex][]byte)}
	for _, party := range s.sess.cfg.Receiving {
		if party == s.sess.cfg.Self {
			continue
		}
		share := s.sess.myPoly.Evaluate(party)
		s.sess.sentShares[party] = share

		payload, err := p2p.Encode(shareMsg{Share: share.Bytes()})
		if err != nil {
			return stage.Outgoing{}, err
		}
		out.Private[party] = payload
	}
	return out, nil
}

func (s *SecretShares5Stage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	if !s.sess.isReceiving || s.received[sender] {
		return
	}
	if len(payload) > maxShareWireSize {
		return // oversized, discarded silently
	}
	var msg shareMsg
	if err := p2p.Decode(payload, &msg); err != nil {
		return
	}
	s.sess.receivedShares[sender] = s.sess.field.ScalarFromBytesModOrder(msg.Share)
	s.received[sender] = true
}

func (s *SecretShares5Stage) ShouldDelay(stageIndex int) bool { return stageIndex == s.Index()+1 }

func (s *SecretShares5Stage) missing() []ids.PartyIndex {
	if !s.sess.isReceiving {
		return nil
	}
	var out []ids.PartyIndex
	for _, p := range s.sess.cfg.AllParties {
		if !s.received[p] {
			out = append(out, p)
		}
	}
	return out
}

func (s *SecretShares5Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	missing := s.missing()
	if len(missing) > 0 && now.Before(deadline) {
		return nil, false
	}

	complaints := append([]ids.PartyIndex{}, missing...)
	if s.sess.isReceiving {
		for _, party := range s.sess.cfg.AllParties {
			if party == s.sess.cfg.Self {
				continue
			}
			share, ok := s.sess.receivedShares[party]
			if !ok {
				continue
			}
			commitments := s.sess.commitmentConsensus[party]
			if !shamir.VerifyShare(s.sess.field, share, s.sess.cfg.Self, commitments) {
				complaints = append(complaints, party)
			}
		}
	}

	s.sess.myComplaints = complaints
	next := newComplaints6Stage(s.sess)
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

type complaintList struct {
	Against []ids.PartyIndex `cbor:"1,keyasint"`
}

// Complaints6Stage broadcasts this party's complaint set.
type Complaints6Stage struct {
	*broadcast.Round
	sess *session
}

func newComplaints6Stage(sess *session) *Complaints6Stage {
	sorted := append([]ids.PartyIndex{}, sess.myComplaints...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	payload, err := p2p.Encode(complaintList{Against: sorted})
	if err != nil {
		panic(err)
	}
	r := broadcast.NewRound(StageComplaints6, 6, sess.cfg.AllParties, sess.cfg.Self, payload)
	return &Complaints6Stage{Round: r, sess: sess}
}

// ProcessMessage rejects a complaint list longer than it could ever
// legitimately be (one entry per other participant), before it is
// collected.
func (s *Complaints6Stage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	var list complaintList
	if err := p2p.Decode(payload, &list); err != nil {
		return
	}
	if len(list.Against) > len(s.sess.cfg.AllParties)-1 {
		return
	}
	s.Round.ProcessMessage(sender, payload)
}

func (s *Complaints6Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}
	if !s.Complete() {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.Missing(), Reason: stage.ReasonMissingMessage}, true
	}
	next, err := newVerifyComplaints7Stage(s.sess, s.Collected())
	if err != nil {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.AllParties, Reason: stage.ReasonMalformedMessage}, true
	}
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// VerifyComplaints7Stage is the broadcast-verify pair of stage 6. No
// outstanding complaints means the handover is done, once the y_old ==
// y_new invariant is also checked.
type VerifyComplaints7Stage struct {
	*broadcast.VerifyRound
	sess *session
}

func newVerifyComplaints7Stage(sess *session, roundA map[ids.PartyIndex][]byte) (*VerifyComplaints7Stage, error) {
	vr, err := broadcast.NewVerifyRound(StageVerifyComplaints7, 7, sess.cfg.AllParties, sess.cfg.Self, roundA)
	if err != nil {
		return nil, err
	}
	return &VerifyComplaints7Stage{VerifyRound: vr, sess: sess}, nil
}

func (s *VerifyComplaints7Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}
	consensus, blamed := s.ExtractConsensus()
	if len(blamed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: blamed, Reason: stage.ReasonInconsistentBcast}, true
	}

	complaintConsensus := make(map[ids.PartyIndex][]ids.PartyIndex, len(consensus))
	anyComplaints := false
	for _, complainer := range s.sess.cfg.AllParties {
		raw, ok := consensus[complainer]
		if !ok {
			return &stage.Transition{Kind: stage.TransitionError, Offenders: []ids.PartyIndex{complainer}, Reason: stage.ReasonMalformedMessage}, true
		}
		var list complaintList
		if err := p2p.Decode(raw, &list); err != nil {
			return &stage.Transition{Kind: stage.TransitionError, Offenders: []ids.PartyIndex{complainer}, Reason: stage.ReasonMalformedMessage}, true
		}
		for _, accused := range list.Against {
			if !isMember(s.sess.cfg.AllParties, accused) {
				return &stage.Transition{Kind: stage.TransitionError, Offenders: []ids.PartyIndex{complainer}, Reason: stage.ReasonInvalidComplaint}, true
			}
		}
		complaintConsensus[complainer] = list.Against
		if len(list.Against) > 0 {
			anyComplaints = true
		}
	}
	s.sess.complaintConsensus = complaintConsensus

	if !anyComplaints {
		result, offenders, err := finishResharing(s.sess)
		if err != nil {
			return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.AllParties, Reason: stage.ReasonInvalidShare}, true
		}
		if len(offenders) > 0 {
			return &stage.Transition{Kind: stage.TransitionError, Offenders: offenders, Reason: stage.ReasonInvalidShare}, true
		}
		return &stage.Transition{Kind: stage.TransitionDone, Artifact: result}, true
	}

	next := newBlameResponses8Stage(s.sess)
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

type blameEntry struct {
	Complainer ids.PartyIndex `cbor:"1,keyasint"`
	Share      []byte         `cbor:"2,keyasint"`
}

type blameResponseList struct {
	Responses []blameEntry `cbor:"1,keyasint"`
}

// BlameResponses8Stage reveals, for each complainer naming this party,
// the share sent to them.
type BlameResponses8Stage struct {
	*broadcast.Round
	sess *session
}

func newBlameResponses8Stage(sess *session) *BlameResponses8Stage {
	var entries []blameEntry
	for _, complainer := range sess.cfg.AllParties {
		for _, accused := range sess.complaintConsensus[complainer] {
			if accused != sess.cfg.Self {
				continue
			}
			share, ok := sess.sentShares[complainer]
			if !ok {
				continue
			}
			entries = append(entries, blameEntry{Complainer: complainer, Share: share.Bytes()})
		}
	}
	payload, err := p2p.Encode(blameResponseList{Responses: entries})
	if err != nil {
		panic(err)
	}
	r := broadcast.NewRound(StageBlameResponses8, 8, sess.cfg.AllParties, sess.cfg.Self, payload)
	return &BlameResponses8Stage{Round: r, sess: sess}
}

// ProcessMessage rejects a blame-response list longer than it could ever
// legitimately be (one entry per complainer who named this sender),
// before it is collected.
func (s *BlameResponses8Stage) ProcessMessage(sender ids.PartyIndex, payload []byte) {
	var list blameResponseList
	if err := p2p.Decode(payload, &list); err != nil {
		return
	}
	if len(list.Responses) > len(s.sess.cfg.AllParties)-1 {
		return
	}
	s.Round.ProcessMessage(sender, payload)
}

func (s *BlameResponses8Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}
	if !s.Complete() {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.Missing(), Reason: stage.ReasonMissingMessage}, true
	}
	next, err := newVerifyBlameResponses9Stage(s.sess, s.Collected())
	if err != nil {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: s.sess.cfg.AllParties, Reason: stage.ReasonMalformedMessage}, true
	}
	return &stage.Transition{Kind: stage.TransitionNextStage, Next: next}, true
}

// VerifyBlameResponses9Stage adjudicates every outstanding complaint;
// like keygen, reaching this stage always ends in blame.
type VerifyBlameResponses9Stage struct {
	*broadcast.VerifyRound
	sess *session
}

func newVerifyBlameResponses9Stage(sess *session, roundA map[ids.PartyIndex][]byte) (*VerifyBlameResponses9Stage, error) {
	vr, err := broadcast.NewVerifyRound(StageVerifyBlameResponses9, 9, sess.cfg.AllParties, sess.cfg.Self, roundA)
	if err != nil {
		return nil, err
	}
	return &VerifyBlameResponses9Stage{VerifyRound: vr, sess: sess}, nil
}

func (s *VerifyBlameResponses9Stage) TryAdvance(now, deadline time.Time) (*stage.Transition, bool) {
	if !s.Complete() && now.Before(deadline) {
		return nil, false
	}
	consensus, blamed := s.ExtractConsensus()
	if len(blamed) > 0 {
		return &stage.Transition{Kind: stage.TransitionError, Offenders: blamed, Reason: stage.ReasonInconsistentBcast}, true
	}

	responses := make(map[ids.PartyIndex]map[ids.PartyIndex][]byte, len(consensus))
	for accused, raw := range consensus {
		var list blameResponseList
		if err := p2p.Decode(raw, &list); err != nil {
			continue
		}
		byComplainer := make(map[ids.PartyIndex][]byte, len(list.Responses))
		for _, e := range list.Responses {
			byComplainer[e.Complainer] = e.Share
		}
		responses[accused] = byComplainer
	}

	offenderSet := make(map[ids.PartyIndex]struct{})
	var reason stage.Reason
	for _, complainer := range s.sess.cfg.AllParties {
		for _, accused := range s.sess.complaintConsensus[complainer] {
			raw, ok := responses[accused][complainer]
			valid := false
			if ok {
				share := s.sess.field.ScalarFromBytesModOrder(raw)
				valid = shamir.VerifyShare(s.sess.field, share, complainer, s.sess.commitmentConsensus[accused])
			}
			if valid {
				offenderSet[complainer] = struct{}{}
				reason = stage.ReasonFalseComplaint
			} else {
				offenderSet[accused] = struct{}{}
				reason = stage.ReasonInvalidShare
			}
		}
	}

	offenders := make([]ids.PartyIndex, 0, len(offenderSet))
	for idx := range offenderSet {
		offenders = append(offenders, idx)
	}
	sort.Slice(offenders, func(i, j int) bool { return offenders[i] < offenders[j] })
	return &stage.Transition{Kind: stage.TransitionError, Offenders: offenders, Reason: reason}, true
}

// finishResharing reconstructs y_new and every receiving party's new
// public key share, and checks the y_old == y_new invariant. A mismatch
// blames every sharing party, since any one of them could be responsible
// for the deviation and the broadcast-verified commitments give no finer
// attribution (spec §4.7).
func finishResharing(sess *session) (Result, []ids.PartyIndex, error) {
	field := sess.field

	y := field.IdentityPoint()
	for _, p := range sess.cfg.AllParties {
		y = y.Add(sess.commitmentConsensus[p][0])
	}

	if sess.cfg.OldPublicKey != nil && !y.Equal(sess.cfg.OldPublicKey) {
		return Result{}, append([]ids.PartyIndex{}, sess.cfg.Sharing...), nil
	}

	partyKeys := make(map[ids.PartyIndex]curve.Point, len(sess.cfg.Receiving))
	for _, target := range sess.cfg.Receiving {
		partyKeys[target] = partyPublicKey(field, sess.commitmentConsensus, target)
	}

	var xi curve.Scalar
	if sess.isReceiving {
		xi = field.ScalarFromUint64(0)
		for _, p := range sess.cfg.AllParties {
			xi = xi.Add(sess.receivedShares[p])
		}
	}

	return Result{
		KeyShare:        KeyShare{Xi: xi, Y: y},
		PartyPublicKeys: partyKeys,
	}, nil, nil
}

func partyPublicKey(field curve.Field, commitments map[ids.PartyIndex][]curve.Point, target ids.PartyIndex) curve.Point {
	xs := field.ScalarFromUint64(uint64(target))
	total := field.IdentityPoint()
	for _, points := range commitments {
		power := field.ScalarFromUint64(1)
		for _, c := range points {
			total = total.Add(c.Mul(power))
			power = power.Mul(xs)
		}
	}
	return total
}
