// Package usbhid implements C8, the USB HID forwarder: a composite
// mouse report descriptor (report IDs 1=buttons+wheel, 2=X/Y,
// 3=consumer controls), a binary semaphore gating endpoint-in
// availability, and the releaseAll() neutral-report sequence spec.md
// §4.8 requires on disconnect.
//
// No library in the retrieval pack implements the USB-HID *gadget*
// (device) role used here — the pack's USB-HID entries
// (rafaelmartins.com/p/usbhid, kevmo314/go-usb, periph.io/x/periph)
// are all host-side consumers that open and read an existing HID
// device node, the opposite direction from what a dongle presenting
// itself as a mouse needs. This package is therefore stdlib-only; see
// the grounding ledger for the per-dependency justification.
package usbhid

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Report IDs match the composite descriptor's three collections.
const (
	ReportButtonsWheel byte = 1
	ReportXY           byte = 2
	ReportConsumer     byte = 3
)

// ErrBusy is returned by Send when the endpoint-in semaphore could not
// be acquired within the timeout.
var ErrBusy = errors.New("usbhid: endpoint busy")

// sendTimeout bounds how long Send waits on epReady before giving up,
// matching spec.md §4.8's "short timeout."
const sendTimeout = 20 * time.Millisecond

// Endpoint abstracts the USB HID gadget endpoint write, usually a
// file under /dev/hidg* on a Linux USB gadget stack (functionfs/
// configfs configured elsewhere, outside this package's scope).
type Endpoint interface {
	Write(reportID byte, payload []byte) error
}

// fileEndpoint is the concrete Endpoint backing Forwarder in
// production: a single write(2) per report to a /dev/hidgN node, with
// the report ID prepended as the first byte the way Linux's hidg
// driver expects for a report-ID'd descriptor.
type fileEndpoint struct {
	f *os.File
}

// OpenFileEndpoint opens path (typically /dev/hidg0) as the HID gadget
// endpoint.
func OpenFileEndpoint(path string) (Endpoint, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("usbhid: open %s: %w", path, err)
	}
	return &fileEndpoint{f: f}, nil
}

func (e *fileEndpoint) Write(reportID byte, payload []byte) error {
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, reportID)
	buf = append(buf, payload...)
	_, err := e.f.Write(buf)
	return err
}

// Forwarder is the composite USB HID mouse endpoint.
type Forwarder struct {
	ep Endpoint

	epReady chan struct{}

	mu       sync.Mutex
	suspended bool
}

// New creates a Forwarder writing reports to ep. The endpoint-in
// semaphore starts signalled (ready), mirroring the gadget stack's
// idle state before the first IN token.
func New(ep Endpoint) *Forwarder {
	f := &Forwarder{ep: ep, epReady: make(chan struct{}, 1)}
	f.epReady <- struct{}{}
	return f
}

// EndpointInComplete is invoked by the gadget stack's endpoint-in
// completion callback to re-signal the semaphore after a prior Send.
func (f *Forwarder) EndpointInComplete() {
	select {
	case f.epReady <- struct{}{}:
	default:
	}
}

// Send takes the endpoint-in semaphore with a short timeout and writes
// reportID+payload. Returns ErrBusy on timeout.
func (f *Forwarder) Send(reportID byte, payload []byte) error {
	select {
	case <-f.epReady:
	case <-time.After(sendTimeout):
		return ErrBusy
	}

	if err := f.maybeWake(); err != nil {
		f.EndpointInComplete()
		return err
	}

	err := f.ep.Write(reportID, payload)
	f.EndpointInComplete()
	return err
}

func (f *Forwarder) maybeWake() error {
	f.mu.Lock()
	suspended := f.suspended
	f.mu.Unlock()
	if !suspended {
		return nil
	}
	return f.RemoteWakeup()
}

// SetSuspended records the gadget stack's current suspend state so
// Send knows to request a remote wakeup first.
func (f *Forwarder) SetSuspended(suspended bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended = suspended
}

// RemoteWakeup requests the host resume the bus; a no-op stub here
// since the actual wakeup signal is a gadget-stack-specific sysfs/ioctl
// write outside this package's USB-HID-report scope.
func (f *Forwarder) RemoteWakeup() error {
	f.mu.Lock()
	f.suspended = false
	f.mu.Unlock()
	return nil
}

// ReleaseAll sends the three neutral reports in order (buttons/wheel
// cleared, XY zero, consumer zero), idempotent, per spec.md §4.8.
func (f *Forwarder) ReleaseAll() {
	_ = f.Send(ReportButtonsWheel, []byte{0x00, 0x00})
	_ = f.Send(ReportXY, []byte{0x00, 0x00, 0x00, 0x00})
	_ = f.Send(ReportConsumer, []byte{0x00, 0x00})
}

// Descriptor is the composite HID report descriptor byte string: a
// three-collection mouse (buttons+wheel, X/Y, consumer controls), each
// tagged with its own report ID so a single HID interface can multiplex
// all three. Report-descriptor byte values follow the USB HID usage
// tables directly; no parsing library is involved on the device side.
var Descriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x02, // Usage (Mouse)
	0xA1, 0x01, // Collection (Application)
	0x85, ReportButtonsWheel, //   Report ID 1
	0x09, 0x01, //   Usage (Pointer)
	0xA1, 0x00, //   Collection (Physical)
	0x05, 0x09, //     Usage Page (Buttons)
	0x19, 0x01, //     Usage Minimum (1)
	0x29, 0x05, //     Usage Maximum (5)
	0x15, 0x00, //     Logical Minimum (0)
	0x25, 0x01, //     Logical Maximum (1)
	0x95, 0x05, //     Report Count (5)
	0x75, 0x01, //     Report Size (1)
	0x81, 0x02, //     Input (Data, Variable, Absolute)
	0x95, 0x01, //     Report Count (1)
	0x75, 0x03, //     Report Size (3)
	0x81, 0x03, //     Input (Constant) — padding
	0x05, 0x01, //     Usage Page (Generic Desktop)
	0x09, 0x38, //     Usage (Wheel)
	0x15, 0x81, //     Logical Minimum (-127)
	0x25, 0x7F, //     Logical Maximum (127)
	0x75, 0x08, //     Report Size (8)
	0x95, 0x01, //     Report Count (1)
	0x81, 0x06, //     Input (Data, Variable, Relative)
	0xC0, //   End Collection
	0xC0, // End Collection

	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x02, // Usage (Mouse)
	0xA1, 0x01, // Collection (Application)
	0x85, ReportXY, //   Report ID 2
	0x09, 0x01, //   Usage (Pointer)
	0xA1, 0x00, //   Collection (Physical)
	0x05, 0x01, //     Usage Page (Generic Desktop)
	0x09, 0x30, //     Usage (X)
	0x09, 0x31, //     Usage (Y)
	0x16, 0x01, 0x80, //     Logical Minimum (-32767)
	0x26, 0xFF, 0x7F, //     Logical Maximum (32767)
	0x75, 0x10, //     Report Size (16)
	0x95, 0x02, //     Report Count (2)
	0x81, 0x06, //     Input (Data, Variable, Relative)
	0xC0, //   End Collection
	0xC0, // End Collection

	0x05, 0x0C, // Usage Page (Consumer)
	0x09, 0x01, // Usage (Consumer Control)
	0xA1, 0x01, // Collection (Application)
	0x85, ReportConsumer, //   Report ID 3
	0x19, 0x00, //   Usage Minimum (0)
	0x2A, 0x3C, 0x02, //   Usage Maximum (0x023C)
	0x15, 0x00, //   Logical Minimum (0)
	0x26, 0x3C, 0x02, //   Logical Maximum (0x023C)
	0x75, 0x10, //   Report Size (16)
	0x95, 0x01, //   Report Count (1)
	0x81, 0x00, //   Input (Data, Array, Absolute)
	0xC0, // End Collection
}
