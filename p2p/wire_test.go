package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainflip-io/multisig-engine/ids"
)

func TestEnvelope_RoundTripsThroughCBOR(t *testing.T) {
	env := Envelope{
		Scheme:     ids.SchemeBitcoin,
		CeremonyID: 7,
		StageIndex: 3,
		Payload:    []byte("stage payload"),
	}

	b, err := EncodeEnvelope(env)
	require.NoError(t, err)

	got, err := DecodeEnvelope(b)
	require.NoError(t, err)
	require.Equal(t, env, got)
}

func TestDecodeEnvelope_RejectsMalformedBytes(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not cbor at all"))
	require.Error(t, err)
}

type payload struct {
	A int    `cbor:"1,keyasint"`
	B []byte `cbor:"2,keyasint"`
}

func TestDecode_RejectsTrailingGarbage(t *testing.T) {
	// A payload corrupted by appending stray bytes in transit must
	// surface as a decode error, not silently decode into a different
	// (wrong) value: the protocol treats it as a missing message, never
	// as a parseable-but-wrong one.
	b, err := Encode(payload{A: 1, B: []byte("hello")})
	require.NoError(t, err)

	corrupted := append(append([]byte{}, b...), 0xFF)
	var v payload
	err = Decode(corrupted, &v)
	require.Error(t, err)
}

func TestEncodeDecode_RoundTripsArbitraryPayload(t *testing.T) {
	original := payload{A: 99, B: []byte{1, 2, 3}}
	b, err := Encode(original)
	require.NoError(t, err)

	var got payload
	require.NoError(t, Decode(b, &got))
	require.Equal(t, original, got)
}
