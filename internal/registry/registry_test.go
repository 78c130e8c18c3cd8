package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/augmental/mouthpad-bridge/internal/kind"
)

func TestInsertEnforcesSingleWearable(t *testing.T) {
	r := New(4)
	_, err := r.Insert(Link{Handle: 1, Kind: kind.Wearable, Address: "AA:BB"})
	require.NoError(t, err)

	_, err = r.Insert(Link{Handle: 2, Kind: kind.Wearable, Address: "CC:DD"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestInsertEnforcesCapacity(t *testing.T) {
	r := New(1)
	_, err := r.Insert(Link{Handle: 1, Kind: kind.GenericUart})
	require.NoError(t, err)

	_, err = r.Insert(Link{Handle: 2, Kind: kind.GenericUart})
	require.ErrorIs(t, err, ErrFull)
}

func TestNeedGlassesPair(t *testing.T) {
	r := New(4)
	require.True(t, r.NeedGlassesPair())

	_, err := r.Insert(Link{Handle: 1, Kind: kind.GlassesLeft})
	require.NoError(t, err)
	require.True(t, r.NeedGlassesPair())

	_, err = r.Insert(Link{Handle: 2, Kind: kind.GlassesRight})
	require.NoError(t, err)
	require.False(t, r.NeedGlassesPair())
}

func TestRemoveFiresSubscribers(t *testing.T) {
	r := New(4)
	var inserted, removed *Link
	r.OnInsert(func(l *Link) { inserted = l })
	r.OnRemove(func(l *Link) { removed = l })

	_, err := r.Insert(Link{Handle: 7, Kind: kind.Wearable})
	require.NoError(t, err)
	require.NotNil(t, inserted)
	require.Equal(t, uint64(7), inserted.Handle)

	l, ok := r.Remove(7)
	require.True(t, ok)
	require.NotNil(t, removed)
	require.Equal(t, l.Handle, removed.Handle)
}

func TestSetFlagUnknownHandle(t *testing.T) {
	r := New(4)
	err := r.SetFlag(99, FlagNUSReady, true)
	require.ErrorIs(t, err, ErrNotFound)
}
