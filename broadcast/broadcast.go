// Package broadcast implements the reliably-broadcast two-round pattern of
// spec §4.3: round A sends a payload to every party, round B reveals what
// each party received, and consensus is extracted per sender if at least
// t+1 parties agree. This pattern is reused, parameterized only by the
// opaque payload bytes, for hash commitments, coefficient commitments,
// complaints, blame responses, nonce commitments, and local signatures.
package broadcast

import (
	"bytes"
	"sort"

	"github.com/chainflip-io/multisig-engine/ids"
	"github.com/chainflip-io/multisig-engine/stage"
)

// Report is one party's round-B message: what it claims to have received
// from every sender in round A. A missing entry (or a nil value) means
// "received nothing from this sender".
type Report map[ids.PartyIndex][]byte

// ExtractConsensus implements spec §4.3's consensus rule. For every
// sender k, it looks at every reporter's claim about what k sent; if at
// least threshold reporters agree on the same byte string, that string is
// accepted as k's broadcast value. Senders with no agreeing value are
// blamed. Reports whose key set does not exactly match participants are
// discarded (not their sender).
func ExtractConsensus(participants []ids.PartyIndex, reports map[ids.PartyIndex]Report, threshold int) (consensus map[ids.PartyIndex][]byte, blamed []ids.PartyIndex) {
	valid := make(map[ids.PartyIndex]Report, len(reports))
	for reporter, report := range reports {
		if sameIndexSet(report, participants) {
			valid[reporter] = report
		}
	}

	consensus = make(map[ids.PartyIndex][]byte)
	for _, sender := range participants {
		counts := make(map[string]int)
		values := make(map[string][]byte)
		for _, report := range valid {
			v, ok := report[sender]
			if !ok || v == nil {
				continue
			}
			key := string(v)
			counts[key]++
			values[key] = v
		}

		var winner []byte
		for key, count := range counts {
			if count >= threshold {
				winner = values[key]
				break
			}
		}
		if winner == nil {
			blamed = append(blamed, sender)
			continue
		}
		consensus[sender] = winner
	}

	sort.Slice(blamed, func(i, j int) bool { return blamed[i] < blamed[j] })
	return consensus, blamed
}

func sameIndexSet(report Report, participants []ids.PartyIndex) bool {
	if len(report) != len(participants) {
		return false
	}
	for _, p := range participants {
		if _, ok := report[p]; !ok {
			return false
		}
	}
	return true
}

// Equal reports whether two round-A payloads are byte-identical, used by
// stages that need to compare a party's own observation against the
// extracted consensus (e.g. keygen's CoefficientCommitments3 checking its
// revealed commitments against the hash consensus of VerifyHashCommitments2).
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// Threshold re-exports stage.Threshold for callers that only import
// broadcast.
func Threshold(n ids.AuthorityCount) int {
	return stage.Threshold(n)
}
