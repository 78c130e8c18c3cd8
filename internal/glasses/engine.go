package glasses

import (
	"sync"
	"time"

	"github.com/augmental/mouthpad-bridge/internal/sched"
)

// heartbeatInterval is how often the engine checks for inactivity
// (spec.md §4.10: "Every 8 s the engine checks now - lastActivity").
const heartbeatInterval = 8 * time.Second

// heartbeatThreshold is the inactivity duration that triggers a
// heartbeat send.
const heartbeatThreshold = 6 * time.Second

// Engine ties the command queue, bitmap FSM, and heartbeat timer
// together and owns the text/bitmap display-mode toggle.
type Engine struct {
	Queue  *Queue
	Bitmap *Bitmap
	sched  *sched.Scheduler
	send   Sender

	mu           sync.Mutex
	lastActivity time.Time
	seq          byte
	bitmapMode   bool
	heartbeatID  int
	running      bool
}

// NewEngine creates an Engine sending via send.
func NewEngine(send Sender, s *sched.Scheduler) *Engine {
	e := &Engine{
		Queue:        NewQueue(send, s),
		Bitmap:       NewBitmap(send),
		sched:        s,
		send:         send,
		lastActivity: time.Now(),
	}
	return e
}

// Start begins the heartbeat timer. Called once both arms reach
// BothReady (spec.md §4.4 step 6: "unblocks the keepalive timer").
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.heartbeatID = e.sched.Every(heartbeatInterval, e.checkHeartbeat)
	e.mu.Unlock()
}

// Stop halts the heartbeat timer and resets the queue/bitmap state,
// used on disconnect of either arm.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.sched.Cancel(e.heartbeatID)
	e.mu.Unlock()

	e.Queue.Reset()
	e.Bitmap.Abort()
}

// MarkActivity records non-heartbeat traffic, resetting the inactivity
// clock the heartbeat timer watches.
func (e *Engine) MarkActivity() {
	e.mu.Lock()
	e.lastActivity = time.Now()
	e.mu.Unlock()
}

func (e *Engine) checkHeartbeat() {
	e.mu.Lock()
	idle := time.Since(e.lastActivity)
	if idle < heartbeatThreshold {
		e.mu.Unlock()
		return
	}
	e.seq++
	seq := e.seq
	e.mu.Unlock()

	packet := BuildHeartbeat(seq)
	// Heartbeats themselves do not count as activity for this timer.
	_ = e.send(ArmLeft, packet)
	_ = e.send(ArmRight, packet)
}

// SendText enqueues a text status packet through the ACK-gated queue.
func (e *Engine) SendText(payload string) {
	e.mu.Lock()
	e.seq++
	seq := e.seq
	e.mu.Unlock()
	e.Queue.Enqueue(BuildText(seq, payload))
	e.MarkActivity()
}

// SetBitmapMode toggles between text-status and bitmap rendering,
// clearing the opposite modality's in-flight state first (spec.md
// §4.10: "must clear the opposite modality before switching").
func (e *Engine) SetBitmapMode(bitmap bool) {
	e.mu.Lock()
	if e.bitmapMode == bitmap {
		e.mu.Unlock()
		return
	}
	e.bitmapMode = bitmap
	e.mu.Unlock()

	if bitmap {
		e.Queue.Reset()
	} else {
		e.Bitmap.Abort()
	}
}

// BitmapMode reports the current display modality.
func (e *Engine) BitmapMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bitmapMode
}
