package timer

import (
	"testing"
	"time"
)

func TestManager_OneShotFires(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	fired := make(chan struct{})
	m.Schedule(10*time.Millisecond, 0, func() {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected one-shot task to fire")
	}
}

func TestManager_CancelPreventsFire(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	fired := make(chan struct{}, 1)
	id := m.Schedule(300*time.Millisecond, 0, func() {
		fired <- struct{}{}
	})

	if !m.Cancel(id) {
		t.Fatal("Cancel should report the pending task as removed")
	}

	select {
	case <-fired:
		t.Fatal("Cancelled task should not fire")
	case <-time.After(700 * time.Millisecond):
	}

	if m.Cancel(id) {
		t.Error("Cancel of an already-removed task should return false")
	}
}

func TestManager_PeriodicRepeats(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	fired := make(chan struct{}, 16)
	m.Schedule(10*time.Millisecond, 50*time.Millisecond, func() {
		fired <- struct{}{}
	})

	deadline := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-deadline:
			t.Fatalf("Expected at least 2 periodic fires, got %d", i)
		}
	}
}

func TestManager_StopHaltsPending(t *testing.T) {
	m := NewManager()

	fired := make(chan struct{}, 1)
	m.Schedule(200*time.Millisecond, 0, func() {
		fired <- struct{}{}
	})
	m.Stop()

	select {
	case <-fired:
		t.Fatal("Task should not fire after Stop")
	case <-time.After(600 * time.Millisecond):
	}
}
