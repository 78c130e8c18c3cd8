package hogp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/augmental/mouthpad-bridge/internal/registry"
)

type fakeForwarder struct {
	sent     []byte
	reportID byte
	released bool
}

func (f *fakeForwarder) Send(reportID byte, payload []byte) error {
	f.reportID = reportID
	f.sent = payload
	return nil
}

func (f *fakeForwarder) ReleaseAll() {
	f.released = true
}

func TestMarkDiscoveredSetsHIDReady(t *testing.T) {
	reg := registry.New(4)
	_, err := reg.Insert(registry.Link{Handle: 1})
	require.NoError(t, err)

	c := New(reg, &fakeForwarder{})
	c.MarkDiscovered(1, nil)

	l, ok := reg.LookupByHandle(1)
	require.True(t, ok)
	require.True(t, l.HIDReady)
}

func TestHandleReportForwardsVerbatim(t *testing.T) {
	reg := registry.New(4)
	_, err := reg.Insert(registry.Link{Handle: 1})
	require.NoError(t, err)

	fw := &fakeForwarder{}
	c := New(reg, fw)
	c.MarkDiscovered(1, nil)
	c.HandleReport(1, 2, []byte{0x01, 0x02})

	require.Equal(t, byte(2), fw.reportID)
	require.Equal(t, []byte{0x01, 0x02}, fw.sent)
}

func TestReleaseClearsHIDReadyAndCallsReleaseAll(t *testing.T) {
	reg := registry.New(4)
	_, err := reg.Insert(registry.Link{Handle: 1})
	require.NoError(t, err)

	fw := &fakeForwarder{}
	c := New(reg, fw)
	c.MarkDiscovered(1, nil)
	c.Release(1)

	require.True(t, fw.released)
	l, ok := reg.LookupByHandle(1)
	require.True(t, ok)
	require.False(t, l.HIDReady)
}

func TestHandleReportIgnoredForUnknownHandle(t *testing.T) {
	reg := registry.New(4)
	fw := &fakeForwarder{}
	c := New(reg, fw)
	c.HandleReport(99, 1, []byte{0x01})
	require.Nil(t, fw.sent)
}
