// Package telemetry implements C11: RSSI polling, activity flags, and
// status-string assembly (see StatusLine). Grounded on
// the teacher's per-second ticker goroutine in main.go
// (time.NewTicker(time.Second) driving the dashboard broadcast/log
// block), generalized from "log accel/gyro" to "poll RSSI and render
// status strings."
package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/augmental/mouthpad-bridge/internal/battery"
	"github.com/augmental/mouthpad-bridge/internal/registry"
	"github.com/augmental/mouthpad-bridge/internal/sched"
)

// rssiPollInterval matches spec.md §4.11: "Polls RSSI every 2s for
// each active link."
const rssiPollInterval = 2 * time.Second

// activityWindow is how recent a link's last traffic must be to count
// as "active" for LED-animation purposes (spec.md §4.11: "data within
// last 100 ms").
const activityWindow = 100 * time.Millisecond

// RSSIReader performs an HCI "read RSSI" for handle, injected here to
// keep this package free of adapter plumbing; cmd/dongle wires it to
// collab.HCIDriver.ReadRSSI, which returns the value cached by SetRSSI.
type RSSIReader func(handle uint64) (int16, error)

// Telemetry polls RSSI and tracks per-link activity.
type Telemetry struct {
	reg    *registry.Registry
	read   RSSIReader
	sched  *sched.Scheduler
	pollID int

	mu           sync.Mutex
	lastActivity map[uint64]time.Time
}

// New creates a Telemetry polling reg's links via read, scheduled
// through s.
func New(reg *registry.Registry, read RSSIReader, s *sched.Scheduler) *Telemetry {
	return &Telemetry{reg: reg, read: read, sched: s, lastActivity: make(map[uint64]time.Time)}
}

// Start begins the RSSI poll loop.
func (t *Telemetry) Start() {
	t.mu.Lock()
	if t.pollID != 0 {
		t.mu.Unlock()
		return
	}
	t.pollID = t.sched.Every(rssiPollInterval, t.pollOnce)
	t.mu.Unlock()
}

// Stop halts the poll loop.
func (t *Telemetry) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pollID != 0 {
		t.sched.Cancel(t.pollID)
		t.pollID = 0
	}
}

func (t *Telemetry) pollOnce() {
	for _, handle := range t.reg.Handles() {
		rssi, err := t.read(handle)
		if err != nil {
			continue
		}
		_ = t.reg.SetRSSI(handle, rssi)
	}
}

// MarkActivity records that handle had traffic just now.
func (t *Telemetry) MarkActivity(handle uint64) {
	t.mu.Lock()
	t.lastActivity[handle] = time.Now()
	t.mu.Unlock()
}

// IsActive reports whether handle has had traffic within the activity
// window.
func (t *Telemetry) IsActive(handle uint64) bool {
	t.mu.Lock()
	last, ok := t.lastActivity[handle]
	t.mu.Unlock()
	return ok && time.Since(last) <= activityWindow
}

// rssiBars maps an RSSI reading to a 0-4 bar count for the glasses
// status display.
func rssiBars(rssi int16) int {
	switch {
	case rssi >= -50:
		return 4
	case rssi >= -60:
		return 3
	case rssi >= -70:
		return 2
	case rssi >= -80:
		return 1
	default:
		return 0
	}
}

// batteryBars maps a 0-100 level (or battery.Invalid) to a 0-4 bar
// count.
func batteryBars(level int) int {
	if level < 0 {
		return 0
	}
	switch {
	case level > 80:
		return 4
	case level > 55:
		return 3
	case level > 30:
		return 2
	case level > 10:
		return 1
	default:
		return 0
	}
}

// StatusLine assembles a status string: connected device name, status
// word, battery bars, RSSI bars. cmd/dongle renders these lines on the
// OLED indicator; they are not sent to the glasses.
func StatusLine(link registry.Link, batteryLevel int) string {
	status := "connecting"
	if link.HIDReady || link.NUSReady {
		status = "ready"
	}
	return fmt.Sprintf("%s %s bat:%s rssi:%s",
		link.Name, status, bars(batteryBars(batteryLevel)), bars(rssiBars(link.RSSI)))
}

func bars(n int) string {
	full := ""
	for i := 0; i < 4; i++ {
		if i < n {
			full += "#"
		} else {
			full += "-"
		}
	}
	return full
}

// batterySentinel re-exports battery.Invalid for callers assembling a
// StatusLine before a battery reading has ever arrived.
const batterySentinel = battery.Invalid
