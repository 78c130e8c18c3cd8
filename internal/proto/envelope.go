// Package proto implements the AppToRelay / RelayToApp wire envelope
// from spec.md §3/§4.9 directly against google.golang.org/protobuf's
// low-level protowire primitives. No .proto file is compiled in this
// tree (no protoc stage is available here); protowire is the same
// varint/length-delimited machinery protoc-gen-go would emit, used by
// hand the way a firmware bridge without a build-time codegen step
// would have to.
package proto

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// PassThroughStatus mirrors spec.md §4.9's status codes for
// PassThroughToMouthpad responses.
type PassThroughStatus int32

const (
	StatusUnspecified PassThroughStatus = iota
	StatusNotConnected
	StatusTooLarge
	StatusTimeout
	StatusUnknown
)

// Field numbers for AppToRelay. destination=1, then one field per
// oneof variant so decode can distinguish which arm was sent without a
// reflective oneof wrapper.
const (
	fieldDestination           = protowire.Number(1)
	fieldBleConnStatusRead     = protowire.Number(2)
	fieldDeviceInfoRead        = protowire.Number(3)
	fieldClearBondsWrite       = protowire.Number(4)
	fieldDfuWrite              = protowire.Number(5)
	fieldPassThroughToMouth    = protowire.Number(6)
	fieldPassThroughToMouthPld = protowire.Number(1) // nested field inside PassThroughToMouthpad
)

// Field numbers for RelayToApp.
const (
	fieldBleConnStatusResp  = protowire.Number(1)
	fieldDeviceInfoResp     = protowire.Number(2)
	fieldClearBondsResp     = protowire.Number(3)
	fieldDfuResp            = protowire.Number(4)
	fieldPassThroughToApp   = protowire.Number(5)
	fieldPassThroughToAppPl = protowire.Number(1)
	fieldPassThroughStatus  = protowire.Number(2) // status alongside PassThroughToMouthpad's response
)

// AppBody is the oneof variant carried by an AppToRelay message.
type AppBody int

const (
	BodyNone AppBody = iota
	BodyBleConnectionStatusRead
	BodyDeviceInfoRead
	BodyClearBondsWrite
	BodyDfuWrite
	BodyPassThroughToMouthpad
)

// AppToRelay is the host -> dongle envelope.
type AppToRelay struct {
	Destination uint32
	Body        AppBody
	PassThrough []byte // valid only when Body == BodyPassThroughToMouthpad
}

// EncodeAppToRelay serializes msg using length-delimited embedded
// messages for the active oneof arm, the way generated oneof code
// would, minus the reflective wrapper type.
func EncodeAppToRelay(msg AppToRelay) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldDestination, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Destination))

	switch msg.Body {
	case BodyBleConnectionStatusRead:
		b = appendEmptyMessage(b, fieldBleConnStatusRead)
	case BodyDeviceInfoRead:
		b = appendEmptyMessage(b, fieldDeviceInfoRead)
	case BodyClearBondsWrite:
		b = appendEmptyMessage(b, fieldClearBondsWrite)
	case BodyDfuWrite:
		b = appendEmptyMessage(b, fieldDfuWrite)
	case BodyPassThroughToMouthpad:
		inner := protowire.AppendTag(nil, fieldPassThroughToMouthPld, protowire.BytesType)
		inner = protowire.AppendBytes(inner, msg.PassThrough)
		b = protowire.AppendTag(b, fieldPassThroughToMouth, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b
}

func appendEmptyMessage(b []byte, num protowire.Number) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, nil)
}

// ErrMalformed is returned when a wire buffer cannot be parsed.
var ErrMalformed = errors.New("proto: malformed message")

// DecodeAppToRelay parses the bytes produced by EncodeAppToRelay.
func DecodeAppToRelay(b []byte) (AppToRelay, error) {
	var msg AppToRelay
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return msg, fmt.Errorf("%w: tag", ErrMalformed)
		}
		b = b[n:]

		switch num {
		case fieldDestination:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return msg, fmt.Errorf("%w: destination", ErrMalformed)
			}
			msg.Destination = uint32(v)
			b = b[n:]
		case fieldBleConnStatusRead:
			if _, n, err := consumeSkippedMessage(b, typ); err != nil {
				return msg, err
			} else {
				msg.Body = BodyBleConnectionStatusRead
				b = b[n:]
			}
		case fieldDeviceInfoRead:
			if _, n, err := consumeSkippedMessage(b, typ); err != nil {
				return msg, err
			} else {
				msg.Body = BodyDeviceInfoRead
				b = b[n:]
			}
		case fieldClearBondsWrite:
			if _, n, err := consumeSkippedMessage(b, typ); err != nil {
				return msg, err
			} else {
				msg.Body = BodyClearBondsWrite
				b = b[n:]
			}
		case fieldDfuWrite:
			if _, n, err := consumeSkippedMessage(b, typ); err != nil {
				return msg, err
			} else {
				msg.Body = BodyDfuWrite
				b = b[n:]
			}
		case fieldPassThroughToMouth:
			payload, n, err := consumeSkippedMessage(b, typ)
			if err != nil {
				return msg, err
			}
			inner, innerErr := decodeSingleBytesField(payload, fieldPassThroughToMouthPld)
			if innerErr != nil {
				return msg, innerErr
			}
			msg.Body = BodyPassThroughToMouthpad
			msg.PassThrough = inner
			b = b[n:]
		default:
			n, err := skipField(b, typ)
			if err != nil {
				return msg, err
			}
			b = b[n:]
		}
	}
	return msg, nil
}

// AppBody response equivalents for RelayToApp.
type RelayBody int

const (
	RelayBodyNone RelayBody = iota
	RelayBodyBleConnectionStatus
	RelayBodyDeviceInfo
	RelayBodyClearBonds
	RelayBodyDfu
	RelayBodyPassThroughToApp
)

// RelayToApp is the dongle -> host envelope.
type RelayToApp struct {
	Body          RelayBody
	PassThrough   []byte
	PassThroughSt PassThroughStatus
}

// EncodeRelayToApp serializes msg.
func EncodeRelayToApp(msg RelayToApp) []byte {
	var b []byte
	switch msg.Body {
	case RelayBodyBleConnectionStatus:
		b = appendEmptyMessage(b, fieldBleConnStatusResp)
	case RelayBodyDeviceInfo:
		b = appendEmptyMessage(b, fieldDeviceInfoResp)
	case RelayBodyClearBonds:
		b = appendEmptyMessage(b, fieldClearBondsResp)
	case RelayBodyDfu:
		b = appendEmptyMessage(b, fieldDfuResp)
	case RelayBodyPassThroughToApp:
		inner := protowire.AppendTag(nil, fieldPassThroughToAppPl, protowire.BytesType)
		inner = protowire.AppendBytes(inner, msg.PassThrough)
		inner = protowire.AppendTag(inner, fieldPassThroughStatus, protowire.VarintType)
		inner = protowire.AppendVarint(inner, uint64(msg.PassThroughSt))
		b = protowire.AppendTag(b, fieldPassThroughToApp, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b
}

// DecodeRelayToApp parses the bytes produced by EncodeRelayToApp.
func DecodeRelayToApp(b []byte) (RelayToApp, error) {
	var msg RelayToApp
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return msg, fmt.Errorf("%w: tag", ErrMalformed)
		}
		b = b[n:]

		switch num {
		case fieldBleConnStatusResp:
			if _, n, err := consumeSkippedMessage(b, typ); err != nil {
				return msg, err
			} else {
				msg.Body = RelayBodyBleConnectionStatus
				b = b[n:]
			}
		case fieldDeviceInfoResp:
			if _, n, err := consumeSkippedMessage(b, typ); err != nil {
				return msg, err
			} else {
				msg.Body = RelayBodyDeviceInfo
				b = b[n:]
			}
		case fieldClearBondsResp:
			if _, n, err := consumeSkippedMessage(b, typ); err != nil {
				return msg, err
			} else {
				msg.Body = RelayBodyClearBonds
				b = b[n:]
			}
		case fieldDfuResp:
			if _, n, err := consumeSkippedMessage(b, typ); err != nil {
				return msg, err
			} else {
				msg.Body = RelayBodyDfu
				b = b[n:]
			}
		case fieldPassThroughToApp:
			payload, n, err := consumeSkippedMessage(b, typ)
			if err != nil {
				return msg, err
			}
			pl, plErr := decodeSingleBytesField(payload, fieldPassThroughToAppPl)
			if plErr != nil {
				return msg, plErr
			}
			st, stErr := decodeSingleVarintField(payload, fieldPassThroughStatus)
			if stErr != nil {
				return msg, stErr
			}
			msg.Body = RelayBodyPassThroughToApp
			msg.PassThrough = pl
			msg.PassThroughSt = PassThroughStatus(st)
			b = b[n:]
		default:
			n, err := skipField(b, typ)
			if err != nil {
				return msg, err
			}
			b = b[n:]
		}
	}
	return msg, nil
}

func consumeSkippedMessage(b []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: expected bytes type", ErrMalformed)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: embedded message", ErrMalformed)
	}
	return v, n, nil
}

func decodeSingleBytesField(b []byte, want protowire.Number) ([]byte, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: nested tag", ErrMalformed)
		}
		b = b[n:]
		if num == want && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: nested bytes", ErrMalformed)
			}
			return v, nil
		}
		n, err := skipField(b, typ)
		if err != nil {
			return nil, err
		}
		b = b[n:]
	}
	return nil, nil
}

func decodeSingleVarintField(b []byte, want protowire.Number) (uint64, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, fmt.Errorf("%w: nested tag", ErrMalformed)
		}
		b = b[n:]
		if num == want && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, fmt.Errorf("%w: nested varint", ErrMalformed)
			}
			return v, nil
		}
		n, err := skipField(b, typ)
		if err != nil {
			return 0, err
		}
		b = b[n:]
	}
	return 0, nil
}

func skipField(b []byte, typ protowire.Type) (int, error) {
	n := protowire.ConsumeFieldValue(0, typ, b)
	if n < 0 {
		return 0, fmt.Errorf("%w: skip field", ErrMalformed)
	}
	return n, nil
}
