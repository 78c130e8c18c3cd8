package cdc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := NewFrameParser()
	var got []byte
	p.OnFrame = func(payload []byte) { got = payload }

	frame := Encode([]byte("hello"))
	p.Feed(frame)

	require.Equal(t, []byte("hello"), got)
}

func TestEncodeDecodeEmptyPayload(t *testing.T) {
	p := NewFrameParser()
	var called bool
	p.OnFrame = func(payload []byte) { called = true; require.Empty(t, payload) }
	p.Feed(Encode(nil))
	require.True(t, called)
}

func TestBadMarkerSequenceResets(t *testing.T) {
	p := NewFrameParser()
	var frames int
	p.OnFrame = func(payload []byte) { frames++ }

	p.Feed([]byte{0xAA, 0x00}) // marker1 then garbage, not marker2
	p.Feed(Encode([]byte("ok")))

	require.Equal(t, 1, frames)
}

func TestOversizeLengthFailsAndResets(t *testing.T) {
	p := NewFrameParser()
	var gotErr error
	p.OnError = func(err error) { gotErr = err }

	p.Feed([]byte{0xAA, 0x55, 0xFF, 0xFF}) // length 65535 > MaxPayload
	require.ErrorIs(t, gotErr, ErrBadLength)

	// Parser should have reset and accept a fresh valid frame.
	var got []byte
	p.OnFrame = func(payload []byte) { got = payload }
	p.Feed(Encode([]byte("ok")))
	require.Equal(t, []byte("ok"), got)
}

func TestBadCRCDiscards(t *testing.T) {
	p := NewFrameParser()
	var gotErr error
	p.OnError = func(err error) { gotErr = err }
	var gotFrame []byte
	p.OnFrame = func(payload []byte) { gotFrame = payload }

	frame := Encode([]byte("hello"))
	frame[len(frame)-1] ^= 0xFF // corrupt CRC low byte
	p.Feed(frame)

	require.ErrorIs(t, gotErr, ErrBadCRC)
	require.Nil(t, gotFrame)
}
