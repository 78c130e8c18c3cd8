package glasses

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBitmap(t *testing.T) (*Bitmap, *sync.Mutex, *[]Arm) {
	t.Helper()
	var mu sync.Mutex
	var sentTo []Arm
	b := NewBitmap(func(arm Arm, payload []byte) error {
		mu.Lock()
		sentTo = append(sentTo, arm)
		mu.Unlock()
		return nil
	})
	return b, &mu, &sentTo
}

func TestBitmapSendsLeftFirstThenRight(t *testing.T) {
	b, mu, sentTo := newTestBitmap(t)
	b.Start([]byte{0x01, 0x02})

	mu.Lock()
	require.Equal(t, []Arm{ArmLeft}, *sentTo)
	mu.Unlock()

	b.OnArmChunkSent(ArmLeft, true)

	mu.Lock()
	require.Equal(t, []Arm{ArmLeft, ArmRight}, *sentTo)
	mu.Unlock()
}

func TestBitmapCompletesFullHandshake(t *testing.T) {
	b, _, _ := newTestBitmap(t)
	var result BitmapResult
	b.OnComplete = func(r BitmapResult) { result = r }

	data := make([]byte, bmpChunkPayload-len(bmpAddressPrefix))
	b.Start(data)

	b.OnArmChunkSent(ArmLeft, true)
	b.OnArmChunkSent(ArmRight, true) // last chunk done on both arms -> sendEnd fires
	require.True(t, b.InProgress())  // still waiting on BmpEnd/BmpCrc acks

	b.OnArmEndAck(ArmLeft, StatusAck)
	b.OnArmEndAck(ArmRight, StatusAck)
	require.True(t, b.InProgress()) // still waiting on BmpCrc acks

	b.OnArmCrcAck(ArmLeft, StatusAck)
	b.OnArmCrcAck(ArmRight, StatusAck)

	require.False(t, b.InProgress())
	require.True(t, result.Success)
}

func TestBitmapRetriesFailedChunkThenGivesUp(t *testing.T) {
	b, mu, sentTo := newTestBitmap(t)
	data := []byte{0x01, 0x02}
	b.Start(data)

	for i := 0; i < maxArmRetries; i++ {
		b.OnArmChunkSent(ArmLeft, false)
	}
	mu.Lock()
	require.Equal(t, maxArmRetries+1, len(*sentTo)) // initial send + retries, still under the cap
	mu.Unlock()

	// One more failure exceeds maxArmRetries: Left is given up on and
	// Right is sent the chunk instead of another Left retry.
	b.OnArmChunkSent(ArmLeft, false)
	mu.Lock()
	require.Equal(t, ArmRight, (*sentTo)[len(*sentTo)-1])
	mu.Unlock()
}

func TestBitmapAbortMarksNotInProgress(t *testing.T) {
	b, _, _ := newTestBitmap(t)
	b.Start([]byte{0x01})
	require.True(t, b.InProgress())
	b.Abort()
	require.False(t, b.InProgress())
}

func TestBitmapCrcFailureAborts(t *testing.T) {
	b, _, _ := newTestBitmap(t)
	var result BitmapResult
	b.OnComplete = func(r BitmapResult) { result = r }
	b.Start([]byte{0x01})
	b.OnArmCrcAck(ArmLeft, 0xFF)
	require.False(t, result.Success)
}
