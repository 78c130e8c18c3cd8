package glasses

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildTextLayout(t *testing.T) {
	pkt := BuildText(5, "hi")
	require.Equal(t, byte(OpText), pkt[0])
	require.Equal(t, byte(5), pkt[1])
	require.Equal(t, byte(1), pkt[2]) // totalPkg
	require.Equal(t, byte(0), pkt[3]) // currentPkg
	require.Equal(t, byte(0x71), pkt[4])
	require.Equal(t, []byte("hi"), pkt[9:])
}

func TestBuildTextTruncatesOversizePayload(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	pkt := BuildText(0, string(long))
	require.Len(t, pkt[9:], textMaxPayload)
}

func TestBuildHeartbeat(t *testing.T) {
	pkt := BuildHeartbeat(7)
	require.Equal(t, []byte{byte(OpHeartbeat), 0x06, 0x00, 7, 0x04, 7}, pkt)
}

func TestBuildBmpChunkFirstIncludesAddress(t *testing.T) {
	pkt := BuildBmpChunk(0, true, []byte{0x01, 0x02})
	require.Equal(t, byte(OpBmpChunk), pkt[0])
	require.Equal(t, byte(0), pkt[1])
	require.Equal(t, bmpAddressPrefix, pkt[2:6])
	require.Equal(t, []byte{0x01, 0x02}, pkt[6:])
}

func TestBuildBmpChunkSubsequentOmitsAddress(t *testing.T) {
	pkt := BuildBmpChunk(1, false, []byte{0x01, 0x02})
	require.Equal(t, []byte{byte(OpBmpChunk), 1, 0x01, 0x02}, pkt)
}

func TestBuildBmpEnd(t *testing.T) {
	require.Equal(t, []byte{byte(OpBmpEnd), 0x0D, 0x0E}, BuildBmpEnd())
}

func TestBuildBmpCrc(t *testing.T) {
	pkt := BuildBmpCrc(0xCBF43926)
	require.Equal(t, []byte{byte(OpBmpCrc), 0xCB, 0xF4, 0x39, 0x26}, pkt)
}
