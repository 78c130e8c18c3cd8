// Package hogp implements C6, the HID-over-GATT client: wraps HOGP
// input-report discovery and routes reports verbatim to the USB HID
// forwarder (descriptor-mirroring strategy, spec.md §4.6). Grounded on
// the teacher's GATT-characteristic-consumption idiom
// (ble/central.go's handleNotification/StartNotify pairing) applied to
// HOGP's input-report characteristics instead of the custom sensor
// characteristic.
package hogp

import (
	"sync"

	"github.com/muka/go-bluetooth/bluez/profile/gatt"

	"github.com/augmental/mouthpad-bridge/internal/registry"
)

// Forwarder is the minimal surface internal/usbhid exposes to hogp: a
// single verbatim send per USB HID report ID, and a release-all hook
// invoked on disconnect.
type Forwarder interface {
	Send(reportID byte, payload []byte) error
	ReleaseAll()
}

type link struct {
	handle       uint64
	reportChars  []*gatt.GattCharacteristic1
	propChannels []chan struct{}
}

// Client drives HOGP discovery completion and report routing for the
// wearable's single HID-ready link.
type Client struct {
	reg       *registry.Registry
	forwarder Forwarder

	mu    sync.Mutex
	links map[uint64]*link
}

// New creates a Client that marks reg's HIDReady flag and forwards
// reports through fw.
func New(reg *registry.Registry, fw Forwarder) *Client {
	return &Client{reg: reg, forwarder: fw, links: make(map[uint64]*link)}
}

// MarkDiscovered records that HOGP discovery completed for handle and
// flips the registry's HIDReady flag (spec.md §4.6: "On discovery
// complete marks the link HID-ready").
func (c *Client) MarkDiscovered(handle uint64, reportChars []*gatt.GattCharacteristic1) {
	c.mu.Lock()
	c.links[handle] = &link{handle: handle, reportChars: reportChars}
	c.mu.Unlock()
	_ = c.reg.SetFlag(handle, registry.FlagHIDReady, true)
}

// HandleReport routes an inbound HOGP input report byte-identical to
// the USB HID descriptor on reportID; no scaling or reframing is
// performed.
func (c *Client) HandleReport(handle uint64, reportID byte, payload []byte) {
	c.mu.Lock()
	_, ok := c.links[handle]
	c.mu.Unlock()
	if !ok || c.forwarder == nil {
		return
	}
	_ = c.forwarder.Send(reportID, payload)
}

// Release tears down handle's HOGP state, releases all USB HID report
// state, and clears HIDReady (spec.md §4.6: "On disconnect calls C8's
// releaseAll() and releases the HOGP handle").
func (c *Client) Release(handle uint64) {
	c.mu.Lock()
	delete(c.links, handle)
	c.mu.Unlock()

	if c.forwarder != nil {
		c.forwarder.ReleaseAll()
	}
	_ = c.reg.SetFlag(handle, registry.FlagHIDReady, false)
}
