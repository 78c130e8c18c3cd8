package glasses

import (
	"sync"
	"time"

	"github.com/augmental/mouthpad-bridge/internal/sched"
)

// CommandStatus is a dual-arm command's lifecycle state.
type CommandStatus int

const (
	StatusPending CommandStatus = iota
	StatusInFlight
	StatusDone
	StatusFailed
)

// queueCapacity is the command ring buffer's capacity (spec.md §4.10:
// "ring buffer capacity 8").
const queueCapacity = 8

// ackTimeout bounds how long the engine waits for an arm's ACK before
// marking a command Failed and advancing the queue.
const ackTimeout = 2 * time.Second

// Sender delivers a payload to one arm; production wiring points this
// at internal/nus.Table.Send keyed by the arm's connection handle.
type Sender func(arm Arm, payload []byte) error

type command struct {
	payload []byte
	status  CommandStatus
}

// awaitingArm names which arm's ACK the in-flight command is waiting
// on: Left is always sent (and ACKed) before Right (spec.md §4.10).
type awaitingArm int

const (
	awaitingLeft awaitingArm = iota
	awaitingRight
	awaitingNone
)

// Queue is the dual-arm ACK-gated command queue.
type Queue struct {
	send  Sender
	sched *sched.Scheduler

	mu        sync.Mutex
	pending   []*command
	current   *command
	awaiting  awaitingArm
	timeoutID int

	onDone func(payload []byte, status CommandStatus)
}

// NewQueue creates a Queue that sends via send and schedules ACK
// timeouts via s.
func NewQueue(send Sender, s *sched.Scheduler) *Queue {
	return &Queue{send: send, sched: s, awaiting: awaitingNone}
}

// OnCommandDone registers the callback fired once a command reaches
// Done or Failed.
func (q *Queue) OnCommandDone(fn func(payload []byte, status CommandStatus)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDone = fn
}

// Enqueue adds payload to the queue. If the ring buffer is full, the
// oldest Pending (not yet in flight) command is dropped to make room —
// an in-flight command is never dropped.
func (q *Queue) Enqueue(payload []byte) {
	q.mu.Lock()
	if len(q.pending) >= queueCapacity {
		for i, c := range q.pending {
			if c.status == StatusPending {
				q.pending = append(q.pending[:i], q.pending[i+1:]...)
				break
			}
		}
	}
	q.pending = append(q.pending, &command{payload: payload, status: StatusPending})
	q.mu.Unlock()
	q.pump()
}

// pump starts the next queued command if none is currently in flight.
func (q *Queue) pump() {
	q.mu.Lock()
	if q.current != nil || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	next.status = StatusInFlight
	q.current = next
	q.awaiting = awaitingLeft
	q.mu.Unlock()

	_ = q.send(ArmLeft, next.payload)
	q.armTimeout()
}

func (q *Queue) armTimeout() {
	q.mu.Lock()
	q.timeoutID = q.sched.After(ackTimeout, q.onTimeout)
	q.mu.Unlock()
}

func (q *Queue) cancelTimeout() {
	q.mu.Lock()
	if q.timeoutID != 0 {
		q.sched.Cancel(q.timeoutID)
		q.timeoutID = 0
	}
	q.mu.Unlock()
}

func (q *Queue) onTimeout() {
	q.mu.Lock()
	cur := q.current
	if cur == nil {
		q.mu.Unlock()
		return
	}
	cur.status = StatusFailed
	q.current = nil
	q.awaiting = awaitingNone
	onDone := q.onDone
	q.mu.Unlock()

	if onDone != nil {
		onDone(cur.payload, StatusFailed)
	}
	q.pump()
}

// HandleAck processes an ACK observed from arm (an incoming 0x4E with
// status 0xC9, or for some events an 0xF5 treated as an implicit ACK).
// When Left ACKs, the identical packet is sent to Right; when Right
// ACKs, the command is marked Done and the next is pulled.
func (q *Queue) HandleAck(arm Arm) {
	q.mu.Lock()
	cur := q.current
	waiting := q.awaiting
	q.mu.Unlock()

	if cur == nil {
		return
	}

	switch {
	case waiting == awaitingLeft && arm == ArmLeft:
		q.cancelTimeout()
		q.mu.Lock()
		q.awaiting = awaitingRight
		q.mu.Unlock()
		_ = q.send(ArmRight, cur.payload)
		q.armTimeout()
	case waiting == awaitingRight && arm == ArmRight:
		q.cancelTimeout()
		q.mu.Lock()
		cur.status = StatusDone
		q.current = nil
		q.awaiting = awaitingNone
		onDone := q.onDone
		q.mu.Unlock()
		if onDone != nil {
			onDone(cur.payload, StatusDone)
		}
		q.pump()
	}
}

// Reset aborts the in-flight command (if any) and clears pending work,
// used on disconnect of either arm (spec.md §5: "Disconnection cancels
// in-flight commands on the affected arm(s); the FSM resets").
func (q *Queue) Reset() {
	q.cancelTimeout()
	q.mu.Lock()
	q.current = nil
	q.awaiting = awaitingNone
	q.pending = nil
	q.mu.Unlock()
}

// Len reports the number of pending (not yet in flight) commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
