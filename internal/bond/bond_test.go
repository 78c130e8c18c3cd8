package bond

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bond.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreAndGet(t *testing.T) {
	s := openTestStore(t)
	require.False(t, s.Has())

	require.NoError(t, s.Store("AA:BB:CC:DD:EE:FF"))
	require.True(t, s.Has())

	addr, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, "AA:BB:CC:DD:EE:FF", addr)
}

func TestMatchesWithNoBondAcceptsAny(t *testing.T) {
	s := openTestStore(t)
	require.True(t, s.Matches("11:22:33:44:55:66"))
}

func TestMatchesOnlyBondedAddress(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Store("AA:BB:CC:DD:EE:F0"))

	require.True(t, s.Matches("AA:BB:CC:DD:EE:F0"))
	require.False(t, s.Matches("11:22:33:44:55:66"))
}

func TestClearInvokesUnpair(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Store("AA:BB:CC:DD:EE:F0"))

	var unpaired string
	require.NoError(t, s.Clear(func(addr string) { unpaired = addr }))

	require.Equal(t, "AA:BB:CC:DD:EE:F0", unpaired)
	require.False(t, s.Has())
}
