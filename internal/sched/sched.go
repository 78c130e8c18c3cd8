// Package sched replaces the implicit global work-queue and ad-hoc
// timers the Design Notes flag ("Implicit global work queue and ad-hoc
// timers. Replace with a named scheduler abstraction exposing spawn,
// after, cancel"). GATT/HCI/USB callbacks run at an elevated context
// and must not block (spec.md §5); they call Spawn to hand work off to
// this single consumer goroutine instead of doing it inline, the same
// way the teacher hands GATT notifications off to a goroutine reading
// propCh in Central.connectToDevice.
package sched

import (
	"sync"
	"time"
)

// Scheduler is a single-consumer work queue plus a timer table. All
// FSM/command logic the callbacks trigger runs serialized on the
// worker goroutine, so no additional locking is needed between
// Scheduler-dispatched callbacks.
type Scheduler struct {
	work chan func()
	done chan struct{}

	mu       sync.Mutex
	timers   map[int]*time.Timer
	stoppers map[int]chan struct{}
	nextID   int
}

// New creates a Scheduler with the given work-queue depth.
func New(queueDepth int) *Scheduler {
	return &Scheduler{
		work:   make(chan func(), queueDepth),
		done:   make(chan struct{}),
		timers: make(map[int]*time.Timer),
	}
}

// Run drains the work queue until Stop is called. Callers typically
// `go s.Run()` once at startup, mirroring the teacher's `go m.sendLoop()`
// / `go s.scanLoop()` single-goroutine-pump pattern.
func (s *Scheduler) Run() {
	for {
		select {
		case fn := <-s.work:
			fn()
		case <-s.done:
			s.drain()
			return
		}
	}
}

func (s *Scheduler) drain() {
	for {
		select {
		case fn := <-s.work:
			fn()
		default:
			return
		}
	}
}

// Stop halts Run after any already-queued work finishes.
func (s *Scheduler) Stop() {
	close(s.done)
}

// Spawn enqueues fn for execution on the worker goroutine. Safe to call
// from an interrupt-context-like callback (GATT notify, USB
// endpoint-in) since it never blocks beyond the channel send.
func (s *Scheduler) Spawn(fn func()) {
	select {
	case s.work <- fn:
	case <-s.done:
	}
}

// After schedules fn to run on the worker goroutine once, after d has
// elapsed. The returned id can be passed to Cancel.
func (s *Scheduler) After(d time.Duration, fn func()) int {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.mu.Unlock()

	timer := time.AfterFunc(d, func() { s.Spawn(fn) })

	s.mu.Lock()
	s.timers[id] = timer
	s.mu.Unlock()
	return id
}

// Every schedules fn to run on the worker goroutine repeatedly, every
// d, until Cancel(id) is called. Used for the glasses heartbeat
// (spec.md §4.10) and the RSSI poll (spec.md §4.11).
func (s *Scheduler) Every(d time.Duration, fn func()) int {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.mu.Unlock()

	stop := make(chan struct{})
	ticker := time.NewTicker(d)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Spawn(fn)
			case <-stop:
				ticker.Stop()
				return
			case <-s.done:
				ticker.Stop()
				return
			}
		}
	}()

	s.mu.Lock()
	if s.stoppers == nil {
		s.stoppers = make(map[int]chan struct{})
	}
	s.stoppers[id] = stop
	s.mu.Unlock()
	return id
}

// Cancel stops a pending After timer or an Every ticker. A no-op if id
// is unknown or already fired/cancelled.
func (s *Scheduler) Cancel(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	if stop, ok := s.stoppers[id]; ok {
		close(stop)
		delete(s.stoppers, id)
	}
}
