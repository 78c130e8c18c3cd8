package cdc

import (
	"github.com/augmental/mouthpad-bridge/internal/proto"
)

// ConnectionStatus answers AppToRelay's BleConnectionStatusRead.
type ConnectionStatus struct {
	WearableConnected bool
	LeftConnected     bool
	RightConnected    bool
}

// DeviceInfo answers AppToRelay's DeviceInfoRead.
type DeviceInfo struct {
	Name       string
	Address    string
	FirmwareID string
}

// NUSWriter is the surface Relay needs from internal/nus: write to the
// wearable's NUS rx characteristic.
type NUSWriter interface {
	Send(handle uint64, data []byte) error
}

// BondClearer is the surface Relay needs from internal/bond.
type BondClearer interface {
	Clear(unpair func(addr string)) error
}

// BootloaderRequester is the surface Relay needs from internal/collab.
type BootloaderRequester interface {
	RequestEntry() error
}

// Relay dispatches decoded AppToRelay messages (spec.md §4.9's
// protobuf variant) against the rest of the bridge and produces
// RelayToApp responses. It owns none of its collaborators; all are
// injected so this package stays free of central/bond/nus import
// cycles.
type Relay struct {
	nus         NUSWriter
	bonds       BondClearer
	bootloader  BootloaderRequester
	status      func() ConnectionStatus
	deviceInfo  func() DeviceInfo
	wearable    func() (handle uint64, ok bool)
	unpair      func(addr string)
	maxPayload  int
}

// NewRelay creates a Relay. status and deviceInfo are called on every
// matching request, but their values are not encoded into the response:
// the RelayToApp envelope carries only the response kind for those two
// reads. wearable resolves the current wearable connection handle (if any)
// for PassThroughToMouthpad; unpair is invoked with the cleared bond's
// address so the central controller can drop the live connection to
// match.
func NewRelay(nus NUSWriter, bonds BondClearer, bootloader BootloaderRequester,
	status func() ConnectionStatus, deviceInfo func() DeviceInfo,
	wearable func() (uint64, bool), unpair func(addr string)) *Relay {
	return &Relay{
		nus:        nus,
		bonds:      bonds,
		bootloader: bootloader,
		status:     status,
		deviceInfo: deviceInfo,
		wearable:   wearable,
		unpair:     unpair,
		maxPayload: MaxPayload,
	}
}

// Handle decodes and dispatches one AppToRelay message, returning the
// RelayToApp response to send back (DfuWrite's response must be
// queued for send before the controlled reset happens, per spec.md
// §4.9 — callers are responsible for writing the returned bytes before
// acting on any side effect Handle already triggered).
func (r *Relay) Handle(raw []byte) (proto.RelayToApp, error) {
	msg, err := proto.DecodeAppToRelay(raw)
	if err != nil {
		return proto.RelayToApp{}, err
	}

	switch msg.Body {
	case proto.BodyBleConnectionStatusRead:
		_ = r.status() // the status values are not carried by the response envelope, only the response kind
		return proto.RelayToApp{Body: proto.RelayBodyBleConnectionStatus}, nil

	case proto.BodyDeviceInfoRead:
		_ = r.deviceInfo()
		return proto.RelayToApp{Body: proto.RelayBodyDeviceInfo}, nil

	case proto.BodyClearBondsWrite:
		if err := r.bonds.Clear(r.unpair); err != nil {
			return proto.RelayToApp{}, err
		}
		return proto.RelayToApp{Body: proto.RelayBodyClearBonds}, nil

	case proto.BodyDfuWrite:
		resp := proto.RelayToApp{Body: proto.RelayBodyDfu}
		if err := r.bootloader.RequestEntry(); err != nil {
			return proto.RelayToApp{}, err
		}
		return resp, nil

	case proto.BodyPassThroughToMouthpad:
		return r.passThrough(msg.PassThrough), nil

	default:
		return proto.RelayToApp{}, nil
	}
}

func (r *Relay) passThrough(payload []byte) proto.RelayToApp {
	handle, ok := r.wearable()
	if !ok {
		return proto.RelayToApp{Body: proto.RelayBodyPassThroughToApp, PassThroughSt: proto.StatusNotConnected}
	}
	if len(payload) > r.maxPayload {
		return proto.RelayToApp{Body: proto.RelayBodyPassThroughToApp, PassThroughSt: proto.StatusTooLarge}
	}
	if err := r.nus.Send(handle, payload); err != nil {
		return proto.RelayToApp{Body: proto.RelayBodyPassThroughToApp, PassThroughSt: proto.StatusUnknown}
	}
	return proto.RelayToApp{Body: proto.RelayBodyPassThroughToApp, PassThroughSt: proto.StatusUnspecified}
}

// WrapNotification wraps an inbound wearable NUS notification as a
// PassThroughToApp RelayToApp message (spec.md §4.9's reverse
// direction).
func WrapNotification(data []byte) proto.RelayToApp {
	return proto.RelayToApp{Body: proto.RelayBodyPassThroughToApp, PassThrough: data, PassThroughSt: proto.StatusUnspecified}
}
