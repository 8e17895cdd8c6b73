package stage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainflip-io/multisig-engine/ids"
)

func TestCollector_KeepsFirstDeliveryPerSender(t *testing.T) {
	c := NewCollector([]ids.PartyIndex{1, 2, 3})

	require.True(t, c.Put(1, []byte("first")))
	require.False(t, c.Put(1, []byte("second")), "a duplicate delivery from the same sender must be rejected")

	got, ok := c.Get(1)
	require.True(t, ok)
	require.Equal(t, []byte("first"), got)
}

func TestCollector_RejectsNonParticipant(t *testing.T) {
	c := NewCollector([]ids.PartyIndex{1, 2, 3})
	require.False(t, c.Put(99, []byte("not expected")))
	_, ok := c.Get(99)
	require.False(t, ok)
}

func TestCollector_CompleteAndMissing(t *testing.T) {
	c := NewCollector([]ids.PartyIndex{1, 2, 3})
	require.False(t, c.Complete())
	require.Equal(t, []ids.PartyIndex{1, 2, 3}, c.Missing())

	c.Put(2, []byte("x"))
	require.False(t, c.Complete())
	require.Equal(t, []ids.PartyIndex{1, 3}, c.Missing())

	c.Put(1, []byte("x"))
	c.Put(3, []byte("x"))
	require.True(t, c.Complete())
	require.Empty(t, c.Missing())
}

func TestCollector_ReceivedPreservesArrivalOrder(t *testing.T) {
	c := NewCollector([]ids.PartyIndex{1, 2, 3})
	c.Put(3, []byte("x"))
	c.Put(1, []byte("x"))
	c.Put(2, []byte("x"))
	require.Equal(t, []ids.PartyIndex{3, 1, 2}, c.Received())
}

func TestThreshold(t *testing.T) {
	require.Equal(t, 3, Threshold(4)) // ceil(2*4/3) = 3
	require.Equal(t, 2, Threshold(3)) // ceil(2*3/3) = 2
	require.Equal(t, 1, Threshold(1))
}
