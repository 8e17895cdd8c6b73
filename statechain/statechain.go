// Package statechain models the boundary contract toward the upstream
// state-chain client (spec §6.1). The RPC client and its retry policy
// live outside this module's scope; only the request/response shapes
// and the dispatch interface are modeled here.
package statechain

import (
	"github.com/chainflip-io/multisig-engine/ceremony"
	"github.com/chainflip-io/multisig-engine/ids"
)

// StartKeygenRequest is spec §6.1's start_keygen request.
type StartKeygenRequest struct {
	Scheme       ids.SchemeTag
	CeremonyID   ids.CeremonyID
	Participants []ids.ValidatorID
	Epoch        uint32
}

// StartSigningRequest is spec §6.1's start_signing request.
type StartSigningRequest struct {
	Scheme     ids.SchemeTag
	CeremonyID ids.CeremonyID
	KeyID      uint64
	Signers    []ids.ValidatorID
	Payload    []byte
}

// StartResharingRequest is spec §6.1's start_resharing request.
type StartResharingRequest struct {
	Scheme     ids.SchemeTag
	CeremonyID ids.CeremonyID
	KeyID      uint64
	Sharing    []ids.ValidatorID
	Receiving  []ids.ValidatorID
	Epoch      uint32
}

// Response is the engine's single reply to any of the three requests
// above, carried upstream once a ceremony finishes.
type Response struct {
	CeremonyID ids.CeremonyID
	Outcome    ceremony.Outcome
}

// Dispatcher is implemented by the engine's entrypoint: it accepts
// upstream ceremony requests and starts the corresponding Manager
// ceremony. The actual state-chain RPC transport is an excluded external
// collaborator (spec §1); this is only the call boundary.
type Dispatcher interface {
	StartKeygen(req StartKeygenRequest) error
	StartSigning(req StartSigningRequest) error
	StartResharing(req StartResharingRequest) error
}
