package collab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHCIDriverReadRSSIUnknownHandle(t *testing.T) {
	h := NewHCIDriver()
	_, err := h.ReadRSSI(1)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestHCIDriverSetAndReadRSSI(t *testing.T) {
	h := NewHCIDriver()
	h.SetRSSI(1, -55)
	v, err := h.ReadRSSI(1)
	require.NoError(t, err)
	require.Equal(t, int16(-55), v)

	h.Forget(1)
	_, err = h.ReadRSSI(1)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestUSBDeviceStackRecordsWrites(t *testing.T) {
	u := NewUSBDeviceStack()
	require.NoError(t, u.WriteEndpoint("hid-in", []byte{0x01, 0x02}))
	require.NoError(t, u.WriteEndpoint("hid-in", []byte{0x03}))

	got := u.Written("hid-in")
	require.Equal(t, [][]byte{{0x01, 0x02}, {0x03}}, got)
	require.Empty(t, u.Written("cdc-data-in"))
}

func TestIndicatorStateTracksLEDAndBuzzer(t *testing.T) {
	s := NewIndicatorState()
	require.False(t, s.LED())
	s.SetLED(true)
	require.True(t, s.LED())

	require.False(t, s.Buzzer())
	s.SetBuzzer(true)
	require.True(t, s.Buzzer())
}

func TestIndicatorStateRendersOLED(t *testing.T) {
	s := NewIndicatorState()
	s.RenderOLED([]string{"left ready", "right ready"})
	require.Equal(t, []string{"left ready", "right ready"}, s.OLEDLines())
}

func TestBootloaderRequestEntry(t *testing.T) {
	b := NewBootloader()
	require.False(t, b.Requested())
	require.NoError(t, b.RequestEntry())
	require.True(t, b.Requested())
}
