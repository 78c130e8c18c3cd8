package glasses

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/augmental/mouthpad-bridge/internal/sched"
)

func newTestEngine(t *testing.T) (*Engine, *sync.Mutex, *[][]byte) {
	t.Helper()
	s := sched.New(8)
	go s.Run()
	t.Cleanup(s.Stop)

	var mu sync.Mutex
	var sent [][]byte
	e := NewEngine(func(arm Arm, payload []byte) error {
		mu.Lock()
		sent = append(sent, payload)
		mu.Unlock()
		return nil
	}, s)
	return e, &mu, &sent
}

func TestSendTextEnqueuesAndMarksActivity(t *testing.T) {
	e, mu, sent := newTestEngine(t)
	before := e.lastActivity
	e.SendText("status")

	mu.Lock()
	require.Len(t, *sent, 1)
	mu.Unlock()
	require.True(t, e.lastActivity.After(before) || e.lastActivity.Equal(before))
}

func TestSetBitmapModeClearsOpposite(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Queue.Enqueue([]byte("pending"))
	require.Equal(t, 0, e.Queue.Len()) // enqueued command goes straight in-flight

	e.SetBitmapMode(true)
	require.True(t, e.BitmapMode())

	e.Bitmap.Start([]byte{0x01})
	e.SetBitmapMode(false)
	require.False(t, e.Bitmap.InProgress())
}

func TestStopResetsQueueAndBitmap(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Start()
	e.Bitmap.Start([]byte{0x01})
	e.Stop()

	require.False(t, e.Bitmap.InProgress())
	require.Equal(t, 0, e.Queue.Len())
}

func TestHeartbeatFiresAfterInactivity(t *testing.T) {
	e, mu, sent := newTestEngine(t)
	e.mu.Lock()
	e.lastActivity = time.Now().Add(-heartbeatThreshold - time.Second)
	e.mu.Unlock()

	e.checkHeartbeat()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *sent, 2) // one packet to each arm
}

func TestHeartbeatSkippedWhenRecentlyActive(t *testing.T) {
	e, mu, sent := newTestEngine(t)
	e.MarkActivity()
	e.checkHeartbeat()

	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, *sent)
}
