package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripPassThroughToMouthpad(t *testing.T) {
	msg := AppToRelay{
		Destination: 1,
		Body:        BodyPassThroughToMouthpad,
		PassThrough: []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
	b := EncodeAppToRelay(msg)

	got, err := DecodeAppToRelay(b)
	require.NoError(t, err)
	require.Equal(t, msg.Destination, got.Destination)
	require.Equal(t, BodyPassThroughToMouthpad, got.Body)
	require.Equal(t, msg.PassThrough, got.PassThrough)
}

func TestRoundTripEmptyVariants(t *testing.T) {
	for _, body := range []AppBody{BodyBleConnectionStatusRead, BodyDeviceInfoRead, BodyClearBondsWrite, BodyDfuWrite} {
		b := EncodeAppToRelay(AppToRelay{Destination: 7, Body: body})
		got, err := DecodeAppToRelay(b)
		require.NoError(t, err)
		require.Equal(t, uint32(7), got.Destination)
		require.Equal(t, body, got.Body)
	}
}

func TestRoundTripPassThroughToApp(t *testing.T) {
	msg := RelayToApp{
		Body:          RelayBodyPassThroughToApp,
		PassThrough:   []byte{1, 2, 3},
		PassThroughSt: StatusTimeout,
	}
	b := EncodeRelayToApp(msg)

	got, err := DecodeRelayToApp(b)
	require.NoError(t, err)
	require.Equal(t, RelayBodyPassThroughToApp, got.Body)
	require.Equal(t, msg.PassThrough, got.PassThrough)
	require.Equal(t, StatusTimeout, got.PassThroughSt)
}

func TestDecodeAppToRelayMalformedTag(t *testing.T) {
	_, err := DecodeAppToRelay([]byte{0xFF})
	require.Error(t, err)
}

func TestDecodeRelayToAppEmpty(t *testing.T) {
	got, err := DecodeRelayToApp(nil)
	require.NoError(t, err)
	require.Equal(t, RelayBodyNone, got.Body)
}
