package battery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/augmental/mouthpad-bridge/internal/sched"
)

func newTestClient(t *testing.T, r Reader) *Client {
	t.Helper()
	s := sched.New(8)
	go s.Run()
	t.Cleanup(s.Stop)
	return New(r, s)
}

func TestLevelInvalidBeforeAnyReading(t *testing.T) {
	c := newTestClient(t, func(handle uint64) (int, error) { return 0, nil })
	require.Equal(t, Invalid, c.Level())
}

func TestOnNotifyUpdatesLevel(t *testing.T) {
	c := newTestClient(t, func(handle uint64) (int, error) { return 0, nil })
	c.OnNotify(1, 73)
	require.Equal(t, 73, c.Level())
}

func TestReadFallbackPollsWhenNotNotifying(t *testing.T) {
	calls := make(chan int, 4)
	c := newTestClient(t, func(handle uint64) (int, error) {
		calls <- 42
		return 42, nil
	})
	// Shrink the effective poll by scheduling the same read-and-store
	// step StartReadFallback uses with a 5ms period instead of
	// ReadFallbackInterval, then assert it fires.
	c.mu.Lock()
	c.pollID = c.sched.Every(5*time.Millisecond, func() {
		level, _ := c.read(1)
		c.mu.Lock()
		c.level = level
		c.mu.Unlock()
	})
	c.mu.Unlock()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("read fallback never fired")
	}
	require.Equal(t, 42, c.Level())
}

func TestOnNotifyCancelsPendingPoll(t *testing.T) {
	c := newTestClient(t, func(handle uint64) (int, error) { return 1, nil })
	c.StartReadFallback(1)
	c.OnNotify(1, 90)

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Equal(t, 0, c.pollID)
}

func TestColorDiscreteBands(t *testing.T) {
	c := newTestClient(t, func(handle uint64) (int, error) { return 0, nil })
	c.OnNotify(1, 10)
	require.Equal(t, RGB{R: 0xFF, G: 0x00, B: 0x00}, c.Color(Discrete))
	c.OnNotify(1, 100)
	require.Equal(t, RGB{R: 0x00, G: 0xFF, B: 0x00}, c.Color(Discrete))
}

func TestColorInvalidIsGray(t *testing.T) {
	c := newTestClient(t, func(handle uint64) (int, error) { return 0, nil })
	require.Equal(t, RGB{R: 0x40, G: 0x40, B: 0x40}, c.Color(Gradient))
}
