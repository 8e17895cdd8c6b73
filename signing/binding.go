package signing

import (
	"encoding/binary"
	"sort"

	"github.com/chainflip-io/multisig-engine/commitment"
	"github.com/chainflip-io/multisig-engine/curve"
	"github.com/chainflip-io/multisig-engine/ids"
)

// deriveBindingFactors computes rho_j = H("I", j, payload, {(k, D_k, E_k)
// for k in S}) for every signer j, iterating S in ascending index order
// so every honest party derives byte-identical bindings (spec §4.6).
func deriveBindingFactors(signers []ids.PartyIndex, payload []byte, commitments map[ids.PartyIndex]decodedCommitment, field curve.Field) map[ids.PartyIndex]curve.Scalar {
	sorted := append([]ids.PartyIndex{}, signers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var common [][]byte
	for _, k := range sorted {
		c := commitments[k]
		var idxBuf [4]byte
		binary.BigEndian.PutUint32(idxBuf[:], uint32(k))
		common = append(common, idxBuf[:], c.D.Bytes(), c.E.Bytes())
	}

	rho := make(map[ids.PartyIndex]curve.Scalar, len(sorted))
	for _, j := range sorted {
		var jBuf [4]byte
		binary.BigEndian.PutUint32(jBuf[:], uint32(j))

		parts := make([][]byte, 0, len(common)+3)
		parts = append(parts, []byte("I"), jBuf[:], payload)
		parts = append(parts, common...)

		d := commitment.Hash(commitment.TagBindingFactor, parts...)
		rho[j] = commitment.ScalarFromHash(field, d)
	}
	return rho
}
