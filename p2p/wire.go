// Package p2p defines the wire envelope and codec for ceremony messages
// (spec §6.2), and the boundary contract toward the Chain Muxer — the
// actual P2P ZMQ transport is an explicitly excluded external collaborator
// (spec §1); only its interface is modeled here.
package p2p

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chainflip-io/multisig-engine/ids"
)

// Envelope is the wire format every ceremony message travels in: a
// scheme tag, a ceremony id, a stage index identifying which round the
// payload belongs to, and the opaque stage payload itself.
//
// CBOR's map-based encoding means fields appended at the end of a struct
// in a later version are simply absent from an older decoder's output
// (and vice versa) rather than an error — this is what spec §6.2 calls
// "fields are appended at the end only; unknown tags are discarded
// without blame".
type Envelope struct {
	Scheme     ids.SchemeTag `cbor:"1,keyasint"`
	CeremonyID ids.CeremonyID `cbor:"2,keyasint"`
	StageIndex uint8         `cbor:"3,keyasint"`
	Payload    []byte        `cbor:"4,keyasint"`
}

// EncodeEnvelope serializes an Envelope for the outgoing P2P channel.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	b, err := cbor.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("p2p: encoding envelope: %w", err)
	}
	return b, nil
}

// DecodeEnvelope deserializes an incoming wire message. A scheme tag
// outside the enumerated set is the caller's responsibility to reject
// (spec §6.2 "The scheme-tag must be one of the enumerated chain tags").
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := cbor.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("p2p: decoding envelope: %w", err)
	}
	return e, nil
}

// Encode serializes an arbitrary stage payload with the same
// forward-compatible CBOR encoding used for the envelope.
func Encode(v interface{}) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("p2p: encoding payload: %w", err)
	}
	return b, nil
}

// Decode deserializes an arbitrary stage payload. Unknown trailing fields
// in v's struct tags are silently ignored by cbor, matching the spec's
// forward-compatibility requirement; malformed payloads surface as an
// error for the caller to treat as spec §7 "invalid input" (discard,
// never blame).
func Decode(b []byte, v interface{}) error {
	if err := cbor.Unmarshal(b, v); err != nil {
		return fmt.Errorf("p2p: decoding payload: %w", err)
	}
	return nil
}

// OutChannel is the boundary contract toward the Chain Muxer: a handle
// for sending one outgoing ceremony message. The concrete ZMQ-backed
// implementation lives outside this module's scope (spec §1).
type OutChannel interface {
	// Send delivers env to recipient, or broadcasts to every participant
	// when recipient is the zero ValidatorID.
	Send(recipient ids.ValidatorID, env Envelope) error
}

// Incoming is one message as delivered to a Ceremony Manager, tagging the
// sender's ValidatorID (the Manager maps it to a PartyIndex once the
// ceremony's participant set is known).
type Incoming struct {
	Sender   ids.ValidatorID
	Envelope Envelope
}
