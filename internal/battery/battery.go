// Package battery implements C7: battery level tracking that prefers
// GATT notifications and falls back to periodic reads, plus the
// discrete/gradient color mapping the glasses status display renders.
// spec.md §4.7 is the completed version of the teacher's
// GetBatteryLevel stub in ble/central.go, which always returned
// `0, false` because the teacher's firmware folded battery into every
// sensor packet instead of a dedicated characteristic.
package battery

import (
	"sync"
	"time"

	"github.com/augmental/mouthpad-bridge/internal/sched"
)

// Invalid is returned by Level when no reading has ever arrived.
const Invalid = -1

// ReadFallbackInterval is how often Client falls back to an active
// read when notifications aren't flowing (spec.md §4.7: "falls back
// to periodic read (~10 s)").
const ReadFallbackInterval = 10 * time.Second

// ColorMode selects how Color renders a level.
type ColorMode int

const (
	// Discrete maps level into a small number of fixed bands.
	Discrete ColorMode = iota
	// Gradient interpolates smoothly between red and green.
	Gradient
)

// RGB is a simple 8-bit-per-channel color.
type RGB struct{ R, G, B uint8 }

// Reader performs the active battery-level read fallback, injected so
// this package stays free of GATT plumbing. cmd/dongle resolves no
// battery-level characteristic and supplies a Reader that always
// returns collab.ErrNotConnected.
type Reader func(handle uint64) (level int, err error)

// Client tracks one link's battery level.
type Client struct {
	read  Reader
	sched *sched.Scheduler

	mu         sync.Mutex
	level      int
	lastUpdate time.Time
	pollID     int
	notifying  bool
}

// New creates a Client using r as the read fallback and s to schedule
// the periodic poll.
func New(r Reader, s *sched.Scheduler) *Client {
	return &Client{read: r, sched: s, level: Invalid}
}

// OnNotify feeds a notified battery level (0..100) in, and disables
// the read fallback for as long as notifications keep arriving.
func (c *Client) OnNotify(handle uint64, level int) {
	c.mu.Lock()
	c.level = level
	c.lastUpdate = time.Now()
	c.notifying = true
	if c.pollID != 0 {
		c.sched.Cancel(c.pollID)
		c.pollID = 0
	}
	c.mu.Unlock()
}

// StartReadFallback begins the ~10s periodic read poll for handle. Has
// no effect once OnNotify has been observed for this client's lifetime
// unless StopNotifications is called first.
func (c *Client) StartReadFallback(handle uint64) {
	c.mu.Lock()
	if c.notifying || c.pollID != 0 {
		c.mu.Unlock()
		return
	}
	c.pollID = c.sched.Every(ReadFallbackInterval, func() {
		level, err := c.read(handle)
		if err != nil {
			return
		}
		c.mu.Lock()
		c.level = level
		c.lastUpdate = time.Now()
		c.mu.Unlock()
	})
	c.mu.Unlock()
}

// StopNotifications reverts to the read-fallback path, used when a
// peer stops sending battery notifications without disconnecting.
func (c *Client) StopNotifications(handle uint64) {
	c.mu.Lock()
	c.notifying = false
	c.mu.Unlock()
	c.StartReadFallback(handle)
}

// Close cancels any in-flight poll.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollID != 0 {
		c.sched.Cancel(c.pollID)
		c.pollID = 0
	}
}

// Level returns the most recently known level, or Invalid.
func (c *Client) Level() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Color maps the current level to an RGB value for the glasses status
// display under the given mode.
func (c *Client) Color(mode ColorMode) RGB {
	level := c.Level()
	if level < 0 {
		return RGB{R: 0x40, G: 0x40, B: 0x40}
	}
	switch mode {
	case Discrete:
		switch {
		case level <= 15:
			return RGB{R: 0xFF, G: 0x00, B: 0x00}
		case level <= 40:
			return RGB{R: 0xFF, G: 0xA5, B: 0x00}
		default:
			return RGB{R: 0x00, G: 0xFF, B: 0x00}
		}
	default: // Gradient
		clamped := level
		if clamped > 100 {
			clamped = 100
		}
		red := uint8(255 - (255 * clamped / 100))
		green := uint8(255 * clamped / 100)
		return RGB{R: red, G: green, B: 0}
	}
}
