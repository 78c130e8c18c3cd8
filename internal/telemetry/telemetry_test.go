package telemetry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/augmental/mouthpad-bridge/internal/kind"
	"github.com/augmental/mouthpad-bridge/internal/registry"
	"github.com/augmental/mouthpad-bridge/internal/sched"
)

func newTestTelemetry(t *testing.T, read RSSIReader) (*Telemetry, *registry.Registry, *sched.Scheduler) {
	t.Helper()
	reg := registry.New(4)
	s := sched.New(8)
	go s.Run()
	t.Cleanup(s.Stop)
	return New(reg, read, s), reg, s
}

func TestPollOnceUpdatesRegistryRSSI(t *testing.T) {
	var mu sync.Mutex
	polled := map[uint64]int16{1: -42}

	tel, reg, _ := newTestTelemetry(t, func(handle uint64) (int16, error) {
		mu.Lock()
		defer mu.Unlock()
		return polled[handle], nil
	})
	link, err := reg.Insert(registry.Link{Handle: 1, Kind: kind.Wearable, Name: "mp"})
	require.NoError(t, err)
	require.Zero(t, link.RSSI)

	tel.pollOnce()

	got, ok := reg.LookupByHandle(1)
	require.True(t, ok)
	require.Equal(t, int16(-42), got.RSSI)
}

func TestPollOnceIgnoresReadErrors(t *testing.T) {
	tel, reg, _ := newTestTelemetry(t, func(handle uint64) (int16, error) {
		return 0, errors.New("hci read failed")
	})
	_, err := reg.Insert(registry.Link{Handle: 1, Kind: kind.Wearable})
	require.NoError(t, err)

	require.NotPanics(t, tel.pollOnce)
}

func TestStartStopIsIdempotent(t *testing.T) {
	tel, _, _ := newTestTelemetry(t, func(uint64) (int16, error) { return 0, nil })
	tel.Start()
	tel.Start() // second call is a no-op, doesn't leak a second ticker
	tel.Stop()
	tel.Stop() // second call is a no-op
}

func TestMarkActivityThenIsActive(t *testing.T) {
	tel, _, _ := newTestTelemetry(t, func(uint64) (int16, error) { return 0, nil })
	require.False(t, tel.IsActive(1))

	tel.MarkActivity(1)
	require.True(t, tel.IsActive(1))

	time.Sleep(activityWindow + 20*time.Millisecond)
	require.False(t, tel.IsActive(1))
}

func TestRSSIBarsBuckets(t *testing.T) {
	require.Equal(t, 4, rssiBars(-45))
	require.Equal(t, 3, rssiBars(-55))
	require.Equal(t, 2, rssiBars(-65))
	require.Equal(t, 1, rssiBars(-75))
	require.Equal(t, 0, rssiBars(-90))
}

func TestBatteryBarsBuckets(t *testing.T) {
	require.Equal(t, 0, batteryBars(-1))
	require.Equal(t, 4, batteryBars(90))
	require.Equal(t, 3, batteryBars(60))
	require.Equal(t, 2, batteryBars(40))
	require.Equal(t, 1, batteryBars(15))
	require.Equal(t, 0, batteryBars(5))
}

func TestStatusLineReflectsReadiness(t *testing.T) {
	link := registry.Link{Name: "left", HIDReady: true, RSSI: -50}
	line := StatusLine(link, 90)
	require.Contains(t, line, "left")
	require.Contains(t, line, "ready")
	require.Contains(t, line, "bat:####")
}

func TestStatusLineConnectingWhenNotReady(t *testing.T) {
	line := StatusLine(registry.Link{Name: "right"}, batterySentinel)
	require.Contains(t, line, "connecting")
	require.Contains(t, line, "bat:----")
}
