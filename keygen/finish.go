package keygen

import (
	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/scheme"
)

// finishKeygen runs the spec §4.5 "Outcome" computation once every
// party's coefficient commitments and shares are fully agreed with no
// outstanding complaint: reconstruct the joint public key, each party's
// secret share and public key share, then apply compatibility scaling.
func finishKeygen(sess *session) (Result, error) {
	field := sess.field

	constantTerms := make([]curve.Point, 0, len(sess.cfg.Participants))
	for _, p := range sess.cfg.Participants {
		constantTerms = append(constantTerms, sess.commitmentConsensus[p][0])
	}
	y := field.IdentityPoint()
	for _, c := range constantTerms {
		y = y.Add(c)
	}

	xi := field.ScalarFromUint64(0)
	for _, p := range sess.cfg.Participants {
		xi = xi.Add(sess.receivedShares[p])
	}

	partyKeys := make(map[ids.PartyIndex]curve.Point, len(sess.cfg.Participants))
	for _, target := range sess.cfg.Participants {
		partyKeys[target] = partyPublicKey(field, sess.commitmentConsensus, target)
	}

	k := scheme.ScaleForCompatibility(sess.cfg.Scheme, y)
	y = y.Mul(k)
	xi = xi.Mul(k)
	for p, pk := range partyKeys {
		partyKeys[p] = pk.Mul(k)
	}

	return Result{
		KeyShare:        KeyShare{Xi: xi, Y: y},
		PartyPublicKeys: partyKeys,
		PubkeyShares:    sess.pubkeyShares,
	}, nil
}

// partyPublicKey evaluates, in the exponent, the sum of every
// participant's committed polynomial at target's index: Y_target =
// sum_sender sum_k target^k * C_sender_k.
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
