package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnRunsOnWorker(t *testing.T) {
	s := New(8)
	go s.Run()
	defer s.Stop()

	done := make(chan struct{})
	s.Spawn(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("spawned func did not run")
	}
}

func TestAfterFiresOnce(t *testing.T) {
	s := New(8)
	go s.Run()
	defer s.Stop()

	count := 0
	done := make(chan struct{})
	s.After(10*time.Millisecond, func() {
		count++
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("after did not fire")
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, count)
}

func TestCancelStopsAfter(t *testing.T) {
	s := New(8)
	go s.Run()
	defer s.Stop()

	fired := false
	id := s.After(30*time.Millisecond, func() { fired = true })
	s.Cancel(id)

	time.Sleep(60 * time.Millisecond)
	require.False(t, fired)
}

func TestEveryFiresRepeatedly(t *testing.T) {
	s := New(8)
	go s.Run()
	defer s.Stop()

	ticks := make(chan struct{}, 10)
	id := s.Every(10*time.Millisecond, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})
	defer s.Cancel(id)

	time.Sleep(50 * time.Millisecond)
	require.Greater(t, len(ticks), 1)
}
