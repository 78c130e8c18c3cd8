// Package cdc implements C9, the CDC/framing bridge: the two logical
// host ports (framed data port, line-delimited log/command port) and
// the framed packet codec spec.md §3/§4.9 defines.
//
// The framed parser generalizes the teacher's fixed-size binary decode
// in ble/packet.go (ParsePacket: validate length, then slice fixed
// fields out with encoding/binary) into a byte-at-a-time state machine
// since the host frame's payload length is variable and arrives
// incrementally over a serial stream rather than all at once off a
// completed BLE notification.
package cdc

import (
	"encoding/binary"
	"errors"

	"github.com/augmental/mouthpad-bridge/internal/crcutil"
)

// MaxPayload is the largest payload a framed packet may carry.
const MaxPayload = 64

const (
	marker1 byte = 0xAA
	marker2 byte = 0x55
)

// parserState names the framed-parser state machine's states
// (spec.md §4.9: Idle -> WaitMarker2 -> LenHi -> LenLo -> Data[L] ->
// CrcHi -> CrcLo -> check -> dispatch).
type parserState int

const (
	stateIdle parserState = iota
	stateWaitMarker2
	stateLenHi
	stateLenLo
	stateData
	stateCrcHi
	stateCrcLo
)

// ErrBadLength is surfaced via OnError when L > MaxPayload; the parser
// resets itself automatically.
var ErrBadLength = errors.New("cdc: frame length exceeds maximum")

// ErrBadCRC is surfaced via OnError on CRC mismatch; the payload is
// discarded and the parser resets.
var ErrBadCRC = errors.New("cdc: frame CRC mismatch")

// FrameParser is a streaming decoder for the framed host protocol.
// Feed it bytes one at a time (or in bulk via Feed); it calls OnFrame
// for every validated payload and OnError for malformed frames.
type FrameParser struct {
	state   parserState
	length  int
	payload []byte
	crcHi   byte

	OnFrame func(payload []byte)
	OnError func(err error)
}

// NewFrameParser creates a parser ready to consume bytes.
func NewFrameParser() *FrameParser {
	return &FrameParser{state: stateIdle}
}

// Feed processes data byte by byte, invoking OnFrame/OnError as
// complete or invalid frames are recognized.
func (p *FrameParser) Feed(data []byte) {
	for _, b := range data {
		p.feedByte(b)
	}
}

func (p *FrameParser) feedByte(b byte) {
	switch p.state {
	case stateIdle:
		if b == marker1 {
			p.state = stateWaitMarker2
		}
	case stateWaitMarker2:
		if b == marker2 {
			p.state = stateLenHi
		} else {
			// Invalid marker sequence resets the parser (spec.md
			// §4.9); a fresh 0xAA restarts the sequence immediately
			// rather than requiring an intervening non-marker byte.
			p.state = stateIdle
			if b == marker1 {
				p.state = stateWaitMarker2
			}
		}
	case stateLenHi:
		p.length = int(b) << 8
		p.state = stateLenLo
	case stateLenLo:
		p.length |= int(b)
		if p.length > MaxPayload {
			p.reset()
			p.fail(ErrBadLength)
			return
		}
		p.payload = make([]byte, 0, p.length)
		if p.length == 0 {
			p.state = stateCrcHi
		} else {
			p.state = stateData
		}
	case stateData:
		p.payload = append(p.payload, b)
		if len(p.payload) == p.length {
			p.state = stateCrcHi
		}
	case stateCrcHi:
		p.crcHi = b
		p.state = stateCrcLo
	case stateCrcLo:
		got := uint16(p.crcHi)<<8 | uint16(b)
		want := crcutil.CCITTFalse16(p.payload)
		payload := p.payload
		p.reset()
		if got != want {
			p.fail(ErrBadCRC)
			return
		}
		if p.OnFrame != nil {
			p.OnFrame(payload)
		}
	}
}

func (p *FrameParser) reset() {
	p.state = stateIdle
	p.length = 0
	p.payload = nil
	p.crcHi = 0
}

func (p *FrameParser) fail(err error) {
	if p.OnError != nil {
		p.OnError(err)
	}
}

// Encode serializes payload into the framed wire format: marker bytes,
// big-endian length, payload, big-endian CRC-16/CCITT-FALSE.
func Encode(payload []byte) []byte {
	buf := make([]byte, 0, 4+len(payload)+2)
	buf = append(buf, marker1, marker2)
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(payload)))
	buf = append(buf, lenBuf...)
	buf = append(buf, payload...)
	crc := crcutil.CCITTFalse16(payload)
	crcBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(crcBuf, crc)
	buf = append(buf, crcBuf...)
	return buf
}
