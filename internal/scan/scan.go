// Package scan implements C1, the scanner and classifier, generalizing
// the teacher's ble/scanner.go polling loop and ble/central.go's
// name-dispatch switch in StartScanning into mode-aware, policy-driven
// scanning against tinygo.org/x/bluetooth.
package scan

import (
	"errors"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/augmental/mouthpad-bridge/internal/kind"
)

// Mode selects what the scanner reports.
type Mode int

const (
	// ModeOpen reports every advertisement the classifier recognizes.
	ModeOpen Mode = iota
	// ModeSmart reports only kinds for which the SlotFree predicate
	// says the registry slot is currently free. Addresses are not
	// checked against already-active links.
	ModeSmart
)

// ErrScanBusy is returned by Start when a scan is already running in
// an incompatible mode.
var ErrScanBusy = errors.New("scan: already running in incompatible mode")

// Candidate is delivered to C4 for every qualifying advertisement.
type Candidate struct {
	Address     bluetooth.Address
	Kind        kind.Kind
	Name        string
	RSSI        int16
	Connectable bool
}

// SlotFree reports whether the registry currently has a free slot for
// k, used by ModeSmart to filter advertisements.
type SlotFree func(k kind.Kind) bool

// Scanner drives tinygo.org/x/bluetooth's adapter scan and classifies
// each advertisement via internal/kind before handing qualifying
// candidates to the central controller.
type Scanner struct {
	adapter *bluetooth.Adapter
	rules   kind.IdentityRules

	mu      sync.Mutex
	running bool
	mode    Mode

	onCandidate func(Candidate)
	slotFree    SlotFree
}

// New creates a Scanner bound to adapter using rules to classify
// advertised names.
func New(adapter *bluetooth.Adapter, rules kind.IdentityRules) *Scanner {
	return &Scanner{adapter: adapter, rules: rules}
}

// OnCandidate registers the callback invoked for each qualifying
// advertisement. Must be called before Start.
func (s *Scanner) OnCandidate(fn func(Candidate)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCandidate = fn
}

// SetSlotFree registers the predicate ModeSmart uses to decide whether
// a classified kind is still wanted.
func (s *Scanner) SetSlotFree(fn SlotFree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slotFree = fn
}

// Start begins scanning in mode. Returns ErrScanBusy if a scan is
// already running under a different mode.
func (s *Scanner) Start(mode Mode) error {
	s.mu.Lock()
	if s.running && s.mode != mode {
		s.mu.Unlock()
		return ErrScanBusy
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if s.adapter == nil {
		// No radio to scan with (unit tests construct a Scanner this
		// way to exercise classification/FSM logic without BlueZ).
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mode = mode
	s.mu.Unlock()

	go func() {
		err := s.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			s.handleAdvertisement(result)
		})
		if err != nil {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}
	}()
	return nil
}

// Stop halts the current scan. Idempotent.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	s.adapter.StopScan()
}

// Running reports whether a scan is currently active.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scanner) handleAdvertisement(result bluetooth.ScanResult) {
	adv := kind.Advertised{
		HasHIDService:  result.HasServiceUUID(hogpServiceUUID),
		HasUARTService: result.HasServiceUUID(nusServiceUUID),
		Name:           result.LocalName(),
	}
	k := kind.Classify(adv, s.rules)
	if k == kind.Unknown {
		// Re-examine on the no-filter-match path: some glasses
		// peripherals don't advertise their service UUID in every
		// packet, only their name, so a name-only match still counts.
		if adv.Name != "" {
			k = kind.Classify(kind.Advertised{Name: adv.Name, HasUARTService: true}, s.rules)
		}
		if k != kind.GlassesLeft && k != kind.GlassesRight {
			return
		}
	}

	s.mu.Lock()
	mode := s.mode
	onCandidate := s.onCandidate
	slotFree := s.slotFree
	s.mu.Unlock()

	if mode == ModeSmart && slotFree != nil && !slotFree(k) {
		return
	}
	if onCandidate == nil {
		return
	}
	onCandidate(Candidate{
		Address:     result.Address,
		Kind:        k,
		Name:        adv.Name,
		RSSI:        result.RSSI,
		Connectable: true,
	})
}

// hogpServiceUUID and nusServiceUUID are the service UUIDs the
// classifier keys HID/UART detection on: HOGP's standard 16-bit Human
// Interface Device service (0x1812) and Nordic's 128-bit UART Service.
var (
	hogpServiceUUID = bluetooth.New16BitUUID(0x1812)
	nusServiceUUID  = bluetooth.NewUUID([16]byte{
		0x6e, 0x40, 0x00, 0x01, 0xb5, 0xa3, 0xf3, 0x93,
		0xe0, 0xa9, 0xe5, 0x0e, 0x24, 0xdc, 0xca, 0x9e,
	})
)
