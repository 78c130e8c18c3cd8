// Package collab provides the fake collaborator stubs spec.md's §1
// Non-goals call for: an HCI RSSI reader, a USB device-stack descriptor
// sink, GPIO/LED/buzzer/OLED drivers, and a ROM-bootloader/DFU-entry
// hook. None of these talk to real hardware or a real kernel driver —
// each is the minimal surface internal/telemetry, internal/usbhid and
// internal/cdc need to compile and be tested against, mirroring the way
// the teacher's analytics package stubbed out "the accelerometer is
// just a channel of already-decoded samples" rather than touching a
// real IMU driver.
package collab

import (
	"errors"
	"sync"
)

// ErrNotConnected is returned by HCI operations against an unknown
// handle.
var ErrNotConnected = errors.New("collab: handle not connected")

// HCIDriver is the minimal surface internal/telemetry needs from an
// HCI stack: reading the last-known RSSI for a connection handle.
// ReadRSSI satisfies telemetry.RSSIReader's signature directly.
type HCIDriver struct {
	mu   sync.Mutex
	rssi map[uint64]int16
}

// NewHCIDriver creates a fake HCI driver with no connections known.
func NewHCIDriver() *HCIDriver {
	return &HCIDriver{rssi: make(map[uint64]int16)}
}

// SetRSSI lets a test or the central controller record the RSSI a real
// HCI_Read_RSSI command would have returned for handle.
func (h *HCIDriver) SetRSSI(handle uint64, rssi int16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rssi[handle] = rssi
}

// Forget drops a handle's cached RSSI, e.g. on disconnect.
func (h *HCIDriver) Forget(handle uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rssi, handle)
}

// ReadRSSI implements telemetry.RSSIReader.
func (h *HCIDriver) ReadRSSI(handle uint64) (int16, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.rssi[handle]
	if !ok {
		return 0, ErrNotConnected
	}
	return v, nil
}

// USBDeviceStack is the minimal surface a real USB gadget/composite
// device stack would expose to internal/usbhid and internal/cdc: "send
// these bytes out this endpoint" and "tell me when the host completed
// an IN transfer." Production wiring replaces this with a real gadget
// driver; this fake just records writes for assembly by a caller that
// wants to inspect them (e.g. a dashboard or test harness).
type USBDeviceStack struct {
	mu      sync.Mutex
	written map[string][][]byte
}

// NewUSBDeviceStack creates an in-memory fake endpoint sink.
func NewUSBDeviceStack() *USBDeviceStack {
	return &USBDeviceStack{written: make(map[string][][]byte)}
}

// WriteEndpoint records bytes written to the named endpoint (e.g.
// "hid-in", "cdc-data-in").
func (u *USBDeviceStack) WriteEndpoint(name string, data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cp := append([]byte(nil), data...)
	u.written[name] = append(u.written[name], cp)
	return nil
}

// Written returns everything recorded for the named endpoint, for test
// assertions.
func (u *USBDeviceStack) Written(name string) [][]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([][]byte, len(u.written[name]))
	copy(out, u.written[name])
	return out
}

// IndicatorState is the GPIO/LED/buzzer/OLED surface the rest of the
// tree can drive for user-visible feedback. A real board wires this to
// actual GPIO lines and an OLED controller; this just tracks the last
// commanded state.
type IndicatorState struct {
	mu        sync.Mutex
	ledOn     bool
	buzzerOn  bool
	oledLines []string
}

// NewIndicatorState creates indicators in their idle state.
func NewIndicatorState() *IndicatorState {
	return &IndicatorState{}
}

// SetLED turns the status LED on or off.
func (s *IndicatorState) SetLED(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledOn = on
}

// LED reports the LED's last-commanded state.
func (s *IndicatorState) LED() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledOn
}

// SetBuzzer turns the buzzer on or off.
func (s *IndicatorState) SetBuzzer(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buzzerOn = on
}

// Buzzer reports the buzzer's last-commanded state.
func (s *IndicatorState) Buzzer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buzzerOn
}

// RenderOLED records the lines a real OLED driver would paint, e.g.
// the glasses' own on-arm status text mirrored to a dongle display.
func (s *IndicatorState) RenderOLED(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oledLines = append([]string(nil), lines...)
}

// OLEDLines returns the last rendered frame.
func (s *IndicatorState) OLEDLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.oledLines))
	copy(out, s.oledLines)
	return out
}

// Bootloader is the single hook spec.md's Non-goals keep in scope: the
// CDC `dfu` command's *request* to enter the ROM bootloader, not the
// bootloader itself.
type Bootloader struct {
	mu        sync.Mutex
	requested bool
}

// NewBootloader creates a Bootloader that has not been asked to enter
// DFU mode.
func NewBootloader() *Bootloader {
	return &Bootloader{}
}

// RequestEntry records a request to enter the bootloader. A real board
// would reset into ROM DFU here; this fake only flips a flag so
// internal/cdc's dispatch path has something to call and tests can
// observe it fired.
func (b *Bootloader) RequestEntry() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requested = true
	return nil
}

// Requested reports whether DFU entry was requested.
func (b *Bootloader) Requested() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requested
}
